package db

import (
	"github.com/bakape/lunachat/codec"
	"github.com/bakape/lunachat/common"
)

// Post is a single message of a thread. Posts form a tree through Parent and
// Children, rooted at the post referenced by the thread.
type Post struct {
	ID       PostID
	Body     string
	Author   UserID
	Parent   *PostID
	Children []PostID
	Thread   ThreadID
}

// IsRoot returns, if the post is the root of its thread
func (p Post) IsRoot() bool {
	return p.Parent == nil
}

// PostCodec is the current on-disk layout of posts
var PostCodec = codec.Codec[Post]{
	Encode: func(e *codec.Encoder, p Post) {
		e.Uint64(uint64(p.ID))
		e.String(p.Body)
		e.Uint64(uint64(p.Author))
		codec.Option(e, p.Parent, PostIDCodec.Encode)
		codec.List(e, p.Children, PostIDCodec.Encode)
		e.Uint64(uint64(p.Thread))
	},
	Decode: func(d *codec.Decoder) (p Post, err error) {
		if p.ID, err = PostIDCodec.Decode(d); err != nil {
			return
		}
		if p.Body, err = d.String(); err != nil {
			return
		}
		if p.Author, err = UserIDCodec.Decode(d); err != nil {
			return
		}
		if p.Parent, err = codec.DecodeOption(d, PostIDCodec.Decode); err != nil {
			return
		}
		if p.Children, err = codec.DecodeList(d, PostIDCodec.Decode); err != nil {
			return
		}
		p.Thread, err = ThreadIDCodec.Decode(d)
		return
	},
}

// Posts stores all posts
type Posts struct {
	*Table[PostID, Post]
	keys HighestKeys
}

// NextKey allocates a new post ID
func (p Posts) NextKey() (PostID, error) {
	id, err := p.keys.Next(TablePosts)
	return PostID(id), err
}

// Load retrieves a post or returns common.ErrPostNotFound
func (p Posts) Load(id PostID) (post Post, err error) {
	post, ok, err := p.Get(id)
	if err == nil && !ok {
		err = common.ErrPostNotFound(id)
	}
	return
}

// Latest returns the post of thread with the highest key
func (p Posts) Latest(thread ThreadID) (post Post, ok bool, err error) {
	it := p.Reverse()
	for it.Next() {
		if post = it.Value(); post.Thread == thread {
			return post, true, nil
		}
	}
	return Post{}, false, it.Err()
}

// CountByThread returns the number of posts in each thread
func (p Posts) CountByThread() (map[ThreadID]int, error) {
	counts := make(map[ThreadID]int)
	it := p.Iter()
	for it.Next() {
		counts[it.Value().Thread]++
	}
	return counts, it.Err()
}
