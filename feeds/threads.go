package feeds

import (
	"context"
	"sync"

	"github.com/bakape/lunachat/db"
)

// ThreadsFeed emits a card for every newly created thread
type ThreadsFeed struct {
	db       *db.DB
	watcher  *db.Watcher[db.ThreadID, db.Thread]
	renderer Renderer
	once     sync.Once
}

// SubscribeThreads subscribes to new threads. Only threads created after the
// call are emitted.
func SubscribeThreads(d *db.DB, r Renderer) *ThreadsFeed {
	subscribers.WithLabelValues(KindThread).Inc()
	return &ThreadsFeed{
		db:       d,
		watcher:  d.Threads.Watch(),
		renderer: r,
	}
}

// Next implements Feed
func (f *ThreadsFeed) Next(ctx context.Context) (Item, error) {
	for {
		ev, err := f.watcher.Next(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil || err == db.ErrWatcherClosed:
			return Item{}, err
		default:
			return Item{}, itemError(err)
		}
		if ev.Kind != db.Insert || ev.Update {
			continue
		}
		return f.project(ev.Value)
	}
}

func (f *ThreadsFeed) project(t db.Thread) (item Item, err error) {
	root, err := f.db.Posts.Load(t.Post)
	if err != nil {
		return item, itemError(err)
	}
	author, err := loadAuthor(f.db, root.Author)
	if err != nil {
		return
	}

	card := ThreadCard{
		ID:       t.ID,
		Title:    t.Title,
		Body:     root.Body,
		Author:   author,
		NumPosts: 1,
		SSE:      true,
	}
	html, err := render(func() ([]byte, error) {
		return f.renderer.ThreadCard(card)
	})
	if err != nil {
		return
	}
	return Item{
		Kind: KindThread,
		ID:   uint64(t.ID),
		HTML: html,
	}, nil
}

// Close implements Feed
func (f *ThreadsFeed) Close() {
	f.once.Do(func() {
		subscribers.WithLabelValues(KindThread).Dec()
		f.watcher.Close()
	})
}
