package feeds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bakape/lunachat/common"
	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/forum"
	"github.com/bakape/lunachat/parser"
	"github.com/bakape/lunachat/test"
)

type textRenderer struct {
	fail bool
}

func (r textRenderer) ThreadCard(c ThreadCard) ([]byte, error) {
	if r.fail {
		return nil, errors.New("broken template")
	}
	return []byte(fmt.Sprintf("thread %d: %s by %s", c.ID, c.Title, c.Author.Username)), nil
}

func (r textRenderer) PostCard(c PostCard) ([]byte, error) {
	if r.fail {
		return nil, errors.New("broken template")
	}
	return []byte(fmt.Sprintf("post %d: %s by %s", c.ID, c.Body, c.Author.Username)), nil
}

func setup(t *testing.T) (*db.DB, *forum.Forum, *db.User) {
	t.Helper()

	d := db.OpenTest(t)
	alice := db.User{ID: 1, Username: "alice", Password: "hash"}
	if err := d.Users.Insert(alice.ID, alice); err != nil {
		t.Fatal(err)
	}
	return d, forum.New(d, parser.NewSanitizer()), &alice
}

// Pull all items available within a short window
func drain(t *testing.T, f Feed) (items []Item) {
	t.Helper()
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		item, err := f.Next(ctx)
		cancel()
		switch {
		case err == nil:
			items = append(items, item)
		case errors.Is(err, context.DeadlineExceeded):
			return
		default:
			t.Fatal(err)
		}
	}
}

func TestThreadsFeed(t *testing.T) {
	t.Parallel()
	d, f, alice := setup(t)

	feed := SubscribeThreads(d, textRenderer{})
	defer feed.Close()

	if _, err := f.CreateThread(alice, "hi", "<b>hello</b>"); err != nil {
		t.Fatal(err)
	}

	items := drain(t, feed)
	test.AssertEquals(t, len(items), 1)
	item := items[0]
	test.AssertEquals(t, item.Kind, KindThread)
	test.AssertEquals(t, item.ID, uint64(1))
	html := string(item.HTML)
	if !strings.Contains(html, "hi") || !strings.Contains(html, "alice") {
		t.Fatalf("unexpected card: %s", html)
	}
}

func TestPostsFeedFiltersThreads(t *testing.T) {
	t.Parallel()
	d, f, alice := setup(t)

	thread, err := f.CreateThread(alice, "hi", "<b>hello</b>")
	if err != nil {
		t.Fatal(err)
	}

	first := SubscribePosts(d, textRenderer{}, 1)
	defer first.Close()
	second := SubscribePosts(d, textRenderer{}, 2)
	defer second.Close()

	for _, body := range [...]string{"r1", "r2"} {
		if _, err := f.Reply(alice, thread, body); err != nil {
			t.Fatal(err)
		}
	}

	items := drain(t, first)
	test.AssertEquals(t, len(items), 2)
	for i, item := range items {
		test.AssertEquals(t, item.Kind, KindPost)
		test.AssertEquals(t, item.ID, uint64(i+2))
	}
	test.AssertEquals(t, string(items[0].HTML), "post 2: r1 by alice")

	test.AssertEquals(t, len(drain(t, second)), 0)
}

func TestFailedItemsDoNotEndFeed(t *testing.T) {
	t.Parallel()
	d, _, _ := setup(t)

	feed := SubscribeThreads(d, textRenderer{})
	defer feed.Close()

	// Root post not written yet
	if err := d.Threads.Insert(1, db.Thread{ID: 1, Post: 5}); err != nil {
		t.Fatal(err)
	}
	// Author missing
	err := d.Posts.Insert(6, db.Post{ID: 6, Author: 9, Thread: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Threads.Insert(2, db.Thread{ID: 2, Post: 6}); err != nil {
		t.Fatal(err)
	}
	// Valid
	err = d.Posts.Insert(7, db.Post{ID: 7, Author: 1, Thread: 3})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Threads.Insert(3, db.Thread{ID: 3, Title: "ok", Post: 7}); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	cases := [...]error{
		common.ErrPostNotFound(5),
		common.ErrUserNotFound(9),
	}
	for _, std := range cases {
		_, err := feed.Next(ctx)
		var ie ItemError
		if !errors.As(err, &ie) {
			t.Fatalf("expected item error, got: %#v", err)
		}
		test.AssertEquals(t, ie.Err, std)
	}

	item, err := feed.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEquals(t, item.ID, uint64(3))
}

func TestRenderingError(t *testing.T) {
	t.Parallel()
	d, f, alice := setup(t)

	feed := SubscribeThreads(d, textRenderer{fail: true})
	defer feed.Close()
	if _, err := f.CreateThread(alice, "hi", "hello"); err != nil {
		t.Fatal(err)
	}

	_, err := feed.Next(context.Background())
	var re common.ErrRendering
	if !errors.As(err, &re) {
		t.Fatalf("expected rendering error, got: %#v", err)
	}
}

func TestFrameErrorMessage(t *testing.T) {
	t.Parallel()

	cases := [...]struct {
		name     string
		err      error
		msg      string
		internal bool
	}{
		{
			"missing author",
			ItemError{Err: common.ErrUserNotFound(4)},
			"feed item: user 4 not found",
			false,
		},
		{
			"rendering",
			ItemError{Err: common.ErrRendering{Err: errors.New("broken template")}},
			"internal server error",
			true,
		},
		{
			"storage",
			errors.New("bolt: page 12 already freed"),
			"internal server error",
			true,
		},
	}
	for i := range cases {
		c := cases[i]
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			msg, internal := Frame{Err: c.err}.ErrorMessage()
			test.AssertEquals(t, msg, c.msg)
			test.AssertEquals(t, internal, c.internal)
		})
	}
}

func TestClose(t *testing.T) {
	t.Parallel()
	d, _, _ := setup(t)

	feed := SubscribePosts(d, textRenderer{}, 1)
	test.AssertEquals(t, d.Subscribers(db.BucketPosts), 1)
	feed.Close()
	feed.Close()
	test.AssertEquals(t, d.Subscribers(db.BucketPosts), 0)

	_, err := feed.Next(context.Background())
	test.AssertError(t, err, db.ErrWatcherClosed)
}

type recorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *recorder) emit(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

func (r *recorder) snapshot() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame{}, r.frames...)
}

func TestPump(t *testing.T) {
	t.Parallel()
	d, f, alice := setup(t)

	feed := SubscribeThreads(d, textRenderer{})
	defer feed.Close()

	var (
		rec         recorder
		ctx, cancel = context.WithCancel(context.Background())
		done        = make(chan error, 1)
	)
	go func() {
		done <- Pump(ctx, feed, 20*time.Millisecond, rec.emit)
	}()

	// Idle long enough for keep-alives
	time.Sleep(100 * time.Millisecond)
	if _, err := f.CreateThread(alice, "hi", "hello"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	cancel()
	test.AssertError(t, <-done, context.Canceled)

	var keepAlives, items int
	for _, fr := range rec.snapshot() {
		switch {
		case fr.KeepAlive:
			keepAlives++
		case fr.Err != nil:
			t.Fatal(fr.Err)
		default:
			items++
		}
	}
	test.AssertEquals(t, items, 1)
	if keepAlives == 0 {
		t.Fatal("no keep-alive frames")
	}
}

func TestPumpEmitError(t *testing.T) {
	t.Parallel()
	d, _, _ := setup(t)

	feed := SubscribeThreads(d, textRenderer{})
	defer feed.Close()

	stop := errors.New("client gone")
	err := Pump(context.Background(), feed, time.Millisecond, func(Frame) error {
		return stop
	})
	test.AssertError(t, err, stop)
}
