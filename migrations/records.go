package migrations

import (
	"fmt"

	"github.com/bakape/lunachat/codec"
	"github.com/bakape/lunachat/common"
	"github.com/bakape/lunachat/db"
)

// User layout before avatars
type user1 struct {
	ID       db.UserID
	Username string
	Password string
}

var user1Codec = codec.Codec[user1]{
	Encode: func(e *codec.Encoder, u user1) {
		e.Uint64(uint64(u.ID))
		e.String(u.Username)
		e.String(u.Password)
	},
	Decode: func(d *codec.Decoder) (u user1, err error) {
		if u.ID, err = db.UserIDCodec.Decode(d); err != nil {
			return
		}
		if u.Username, err = d.String(); err != nil {
			return
		}
		u.Password, err = d.String()
		return
	},
}

func migrateUser1(_ Row, u user1) (db.User, error) {
	return db.User{
		ID:       u.ID,
		Username: u.Username,
		Password: u.Password,
	}, nil
}

// Post layout of the single linear thread era
type post1 struct {
	ID     db.PostID
	Body   string
	Author db.UserID
}

var post1Codec = codec.Codec[post1]{
	Encode: func(e *codec.Encoder, p post1) {
		e.Uint64(uint64(p.ID))
		e.String(p.Body)
		e.Uint64(uint64(p.Author))
	},
	Decode: func(d *codec.Decoder) (p post1, err error) {
		if p.ID, err = db.PostIDCodec.Decode(d); err != nil {
			return
		}
		if p.Body, err = d.String(); err != nil {
			return
		}
		p.Author, err = db.UserIDCodec.Decode(d)
		return
	},
}

// Post layout with tree links, but without a thread reference
type post2 struct {
	ID       db.PostID
	Body     string
	Author   db.UserID
	Parent   *db.PostID
	Children []db.PostID
}

var post2Codec = codec.Codec[post2]{
	Encode: func(e *codec.Encoder, p post2) {
		e.Uint64(uint64(p.ID))
		e.String(p.Body)
		e.Uint64(uint64(p.Author))
		codec.Option(e, p.Parent, db.PostIDCodec.Encode)
		codec.List(e, p.Children, db.PostIDCodec.Encode)
	},
	Decode: func(d *codec.Decoder) (p post2, err error) {
		if p.ID, err = db.PostIDCodec.Decode(d); err != nil {
			return
		}
		if p.Body, err = d.String(); err != nil {
			return
		}
		if p.Author, err = db.UserIDCodec.Decode(d); err != nil {
			return
		}
		if p.Parent, err = codec.DecodeOption(d, db.PostIDCodec.Decode); err != nil {
			return
		}
		p.Children, err = codec.DecodeList(d, db.PostIDCodec.Decode)
		return
	},
}

// Link each post to its neighbours in key order. The predecessor becomes the
// parent and the successor the only child, so both directions of every edge
// are set. Posts without a predecessor root a new thread.
func migratePost1(r Row, p post1) (res post2, err error) {
	res = post2{
		ID:       p.ID,
		Body:     p.Body,
		Author:   p.Author,
		Children: []db.PostID{},
	}
	if k, ok := r.Prev(); ok {
		var id db.PostID
		id, err = db.PostIDCodec.Unmarshal(k)
		if err != nil {
			return
		}
		res.Parent = &id
	}
	if k, ok := r.Next(); ok {
		var id db.PostID
		id, err = db.PostIDCodec.Unmarshal(k)
		if err != nil {
			return
		}
		res.Children = append(res.Children, id)
	}
	if res.Parent == nil {
		_, err = r.threads.ensure(p.ID)
	}
	return
}

// Threads resolved during a step. Lets each post tree be walked and each
// thread looked up only once.
type threadIndex struct {
	d      *db.DB
	byRoot map[db.PostID]db.ThreadID // Loaded on first use
	byPost map[db.PostID]db.ThreadID
}

func newThreadIndex(d *db.DB) *threadIndex {
	return &threadIndex{
		d:      d,
		byPost: make(map[db.PostID]db.ThreadID),
	}
}

// Find the thread rooted at post or create an untitled one
func (ix *threadIndex) ensure(root db.PostID) (id db.ThreadID, err error) {
	if ix.byRoot == nil {
		ix.byRoot, err = ix.d.Threads.Roots()
		if err != nil {
			ix.byRoot = nil
			return
		}
	}
	id, ok := ix.byRoot[root]
	if ok {
		return
	}

	id, err = ix.d.Threads.NextKey()
	if err != nil {
		return
	}
	err = ix.d.Threads.Insert(id, db.Thread{
		ID:   id,
		Post: root,
	})
	if err != nil {
		return
	}
	err = ix.d.Threads.Flush()
	if err != nil {
		return
	}
	ix.byRoot[root] = id
	return
}

// Resolve the thread of each post by walking up to the root of its tree
func migratePost2(r Row, p post2) (res db.Post, err error) {
	res = db.Post{
		ID:       p.ID,
		Body:     p.Body,
		Author:   p.Author,
		Parent:   p.Parent,
		Children: p.Children,
	}

	posts := db.NewTable(r.DB, db.BucketPosts, db.PostIDCodec, post2Codec)
	var (
		cur  = p
		path = []db.PostID{p.ID}
		seen = map[db.PostID]struct{}{p.ID: {}}
	)
	for {
		if cur.Parent == nil {
			res.Thread, err = r.threads.ensure(cur.ID)
			if err != nil {
				return
			}
			break
		}

		parent := *cur.Parent
		if th, ok := r.threads.byPost[parent]; ok {
			res.Thread = th
			break
		}
		if _, ok := seen[parent]; ok {
			err = fmt.Errorf("parent cycle at post %d", parent)
			return
		}
		seen[parent] = struct{}{}
		path = append(path, parent)

		var ok bool
		cur, ok, err = posts.Get(parent)
		if err != nil {
			return
		}
		if !ok {
			err = fmt.Errorf("post %d: %w", p.ID, common.ErrPostNotFound(parent))
			return
		}
	}

	for _, id := range path {
		r.threads.byPost[id] = res.Thread
	}
	return
}
