package feeds

import (
	"context"
	"sync"

	"github.com/bakape/lunachat/db"
)

// PostsFeed emits a card for every new post of a thread
type PostsFeed struct {
	thread   db.ThreadID
	db       *db.DB
	watcher  *db.Watcher[db.PostID, db.Post]
	renderer Renderer
	once     sync.Once
}

// SubscribePosts subscribes to new posts of thread. Only posts created after
// the call are emitted. Existing posts gaining children are not new posts.
func SubscribePosts(d *db.DB, r Renderer, thread db.ThreadID) *PostsFeed {
	subscribers.WithLabelValues(KindPost).Inc()
	return &PostsFeed{
		thread:   thread,
		db:       d,
		watcher:  d.Posts.Watch(),
		renderer: r,
	}
}

// Next implements Feed
func (f *PostsFeed) Next(ctx context.Context) (Item, error) {
	for {
		ev, err := f.watcher.Next(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil || err == db.ErrWatcherClosed:
			return Item{}, err
		default:
			return Item{}, itemError(err)
		}
		if ev.Kind != db.Insert || ev.Update || ev.Value.Thread != f.thread {
			continue
		}
		return f.project(ev.Value)
	}
}

func (f *PostsFeed) project(p db.Post) (item Item, err error) {
	author, err := loadAuthor(f.db, p.Author)
	if err != nil {
		return
	}
	card := PostCard{
		ID:     p.ID,
		Body:   p.Body,
		Author: author,
		SSE:    true,
	}
	html, err := render(func() ([]byte, error) {
		return f.renderer.PostCard(card)
	})
	if err != nil {
		return
	}
	return Item{
		Kind: KindPost,
		ID:   uint64(p.ID),
		HTML: html,
	}, nil
}

// Close implements Feed
func (f *PostsFeed) Close() {
	f.once.Do(func() {
		subscribers.WithLabelValues(KindPost).Dec()
		f.watcher.Close()
	})
}
