// Package forum implements thread creation, replies and the read models of
// forum pages on top of the db package
package forum

import (
	"strings"
	"sync"

	"github.com/bakape/lunachat/common"
	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/parser"
	"github.com/go-playground/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	threadsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lunachat_threads_created_total",
		Help: "Threads created",
	})
	repliesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lunachat_replies_created_total",
		Help: "Replies created",
	})
)

// Forum performs sanitized mutations of the post tree
type Forum struct {
	db        *db.DB
	sanitizer parser.Sanitizer

	// Replies read the latest post of a thread and then append to it. Keeps
	// concurrent replies from forking the chain or losing children.
	replyMu sync.Mutex
}

// New creates a Forum writing to d
func New(d *db.DB, s parser.Sanitizer) *Forum {
	return &Forum{
		db:        d,
		sanitizer: s,
	}
}

func (f *Forum) cleanBody(body string) (string, error) {
	switch {
	case len(body) > common.MaxLenBody:
		return "", common.ErrBodyTooLong
	case strings.ContainsRune(body, 0):
		return "", common.ErrContainsNull
	}
	body = f.sanitizer.Clean(body)
	if body == "" {
		return "", common.ErrEmptyBody
	}
	return body, nil
}

func (f *Forum) cleanTitle(title string) (string, error) {
	switch {
	case len(title) > common.MaxLenTitle:
		return "", common.ErrTitleTooLong
	case strings.ContainsRune(title, 0):
		return "", common.ErrContainsNull
	}
	return f.sanitizer.Clean(title), nil
}

// CreateThread creates a thread with its root post and returns the thread's
// ID. The root post is written and flushed before the thread. A failure in
// between leaves an orphaned root post, which migrations assign a thread to.
func (f *Forum) CreateThread(author *db.User, title, body string) (
	id db.ThreadID, err error,
) {
	if author == nil {
		err = common.ErrNotLoggedIn
		return
	}
	title, err = f.cleanTitle(title)
	if err != nil {
		return
	}
	body, err = f.cleanBody(body)
	if err != nil {
		return
	}

	id, err = f.db.Threads.NextKey()
	if err != nil {
		return
	}
	postID, err := f.db.Posts.NextKey()
	if err != nil {
		return
	}

	err = f.db.Posts.Insert(postID, db.Post{
		ID:       postID,
		Body:     body,
		Author:   author.ID,
		Children: []db.PostID{},
		Thread:   id,
	})
	if err != nil {
		return
	}
	err = f.db.Posts.Flush()
	if err != nil {
		return
	}

	err = f.db.Threads.Insert(id, db.Thread{
		ID:    id,
		Title: title,
		Post:  postID,
	})
	if err != nil {
		return
	}
	err = f.db.Threads.Flush()
	if err != nil {
		return
	}

	threadsCreated.Inc()
	log.WithFields(
		log.F("thread", uint64(id)),
		log.F("user", uint64(author.ID)),
	).Info("thread created")
	return
}

// Reply appends a post to the latest post of a thread and returns the new
// post's ID. Replies form a chain, not a fan-out.
//
// The reply is written before its parent lists it as a child, so readers may
// briefly observe a post missing from its parent's children.
func (f *Forum) Reply(author *db.User, thread db.ThreadID, body string) (
	id db.PostID, err error,
) {
	if author == nil {
		err = common.ErrNotLoggedIn
		return
	}
	body, err = f.cleanBody(body)
	if err != nil {
		return
	}

	f.replyMu.Lock()
	defer f.replyMu.Unlock()

	latest, ok, err := f.db.Posts.Latest(thread)
	if err != nil {
		return
	}
	if !ok {
		err = common.ErrThreadHasNoPosts(thread)
		return
	}
	parentID := latest.ID

	// Thread of the reply is always derived from the parent
	parent, err := f.db.Posts.Load(parentID)
	if err != nil {
		return
	}
	thread = parent.Thread

	id, err = f.db.Posts.NextKey()
	if err != nil {
		return
	}
	err = f.db.Posts.Insert(id, db.Post{
		ID:       id,
		Body:     body,
		Author:   author.ID,
		Parent:   &parentID,
		Children: []db.PostID{},
		Thread:   thread,
	})
	if err != nil {
		return
	}

	parent, err = f.db.Posts.Load(parentID)
	if err != nil {
		return
	}
	parent.Children = append(parent.Children, id)
	err = f.db.Posts.Insert(parentID, parent)
	if err != nil {
		return
	}
	err = f.db.Posts.Flush()
	if err != nil {
		return
	}

	repliesCreated.Inc()
	log.WithFields(
		log.F("thread", uint64(thread)),
		log.F("post", uint64(id)),
		log.F("user", uint64(author.ID)),
	).Info("reply created")
	return
}
