package db

import (
	"github.com/bakape/lunachat/codec"
	"github.com/bakape/lunachat/common"
)

// Thread is a titled collection of posts
type Thread struct {
	ID    ThreadID
	Title string

	// Root post of the thread
	Post PostID
}

// ThreadCodec is the current on-disk layout of threads
var ThreadCodec = codec.Codec[Thread]{
	Encode: func(e *codec.Encoder, t Thread) {
		e.Uint64(uint64(t.ID))
		e.String(t.Title)
		e.Uint64(uint64(t.Post))
	},
	Decode: func(d *codec.Decoder) (t Thread, err error) {
		if t.ID, err = ThreadIDCodec.Decode(d); err != nil {
			return
		}
		if t.Title, err = d.String(); err != nil {
			return
		}
		t.Post, err = PostIDCodec.Decode(d)
		return
	},
}

// Threads stores all threads
type Threads struct {
	*Table[ThreadID, Thread]
	keys HighestKeys
}

// NextKey allocates a new thread ID
func (t Threads) NextKey() (ThreadID, error) {
	id, err := t.keys.Next(TableThreads)
	return ThreadID(id), err
}

// Load retrieves a thread or returns common.ErrThreadNotFound
func (t Threads) Load(id ThreadID) (thread Thread, err error) {
	thread, ok, err := t.Get(id)
	if err == nil && !ok {
		err = common.ErrThreadNotFound(id)
	}
	return
}

// Roots maps the root post of each thread to the thread. When several threads
// share a root, the one with the lowest ID is kept.
func (t Threads) Roots() (roots map[PostID]ThreadID, err error) {
	roots = make(map[PostID]ThreadID)
	it := t.Iter()
	for it.Next() {
		th := it.Value()
		if _, ok := roots[th.Post]; !ok {
			roots[th.Post] = th.ID
		}
	}
	err = it.Err()
	return
}
