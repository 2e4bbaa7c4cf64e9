package forum

import (
	"sort"

	"github.com/bakape/lunachat/db"
)

// ThreadSummary is a thread with its root post, as displayed on the forum
// index
type ThreadSummary struct {
	Thread   db.Thread
	Root     db.Post
	Author   db.User
	NumPosts int
}

// PostView is a post and its resolved author
type PostView struct {
	Post   db.Post
	Author db.User
}

// Author resolves a post author. Missing users are replaced with a
// deactivated placeholder.
func (f *Forum) Author(id db.UserID) (db.User, error) {
	u, ok, err := f.db.Users.Get(id)
	if err != nil {
		return db.User{}, err
	}
	if !ok {
		return db.DeactivatedUser(id), nil
	}
	return u, nil
}

// Threads returns all threads, newest first. Threads whose root post has not
// been written yet are skipped.
func (f *Forum) Threads() (threads []ThreadSummary, err error) {
	counts, err := f.db.Posts.CountByThread()
	if err != nil {
		return
	}

	it := f.db.Threads.Reverse()
	for it.Next() {
		t := it.Value()
		root, ok, err := f.db.Posts.Get(t.Post)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		author, err := f.Author(root.Author)
		if err != nil {
			return nil, err
		}
		threads = append(threads, ThreadSummary{
			Thread:   t,
			Root:     root,
			Author:   author,
			NumPosts: counts[t.ID],
		})
	}
	err = it.Err()
	return
}

// Thread returns a thread and its posts in depth-first pre-order of the post
// tree. Children are visited in the order they were appended.
func (f *Forum) Thread(id db.ThreadID) (
	thread db.Thread, posts []PostView, err error,
) {
	thread, err = f.db.Threads.Load(id)
	if err != nil {
		return
	}

	var (
		stack   = []db.PostID{thread.Post}
		visited = make(map[db.PostID]struct{})
	)
	for len(stack) != 0 {
		postID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[postID]; ok {
			continue
		}
		visited[postID] = struct{}{}

		var (
			p      db.Post
			author db.User
		)
		p, err = f.db.Posts.Load(postID)
		if err != nil {
			return
		}
		author, err = f.Author(p.Author)
		if err != nil {
			return
		}
		posts = append(posts, PostView{
			Post:   p,
			Author: author,
		})
		for i := len(p.Children) - 1; i >= 0; i-- {
			stack = append(stack, p.Children[i])
		}
	}
	return
}

// User returns a user and the threads they started
func (f *Forum) User(id db.UserID) (
	user db.User, threads []db.Thread, err error,
) {
	user, err = f.db.Users.Load(id)
	if err != nil {
		return
	}

	it := f.db.Threads.Iter()
	for it.Next() {
		t := it.Value()
		root, ok, err := f.db.Posts.Get(t.Post)
		if err != nil {
			return db.User{}, nil, err
		}
		if ok && root.Author == id {
			threads = append(threads, t)
		}
	}
	if err = it.Err(); err != nil {
		return
	}
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].ID > threads[j].ID
	})
	return
}
