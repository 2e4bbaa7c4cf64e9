// Package feeds projects table change events into rendered thread and post
// cards for live clients
package feeds

import (
	"context"
	"errors"
	"time"

	"github.com/bakape/lunachat/common"
	"github.com/bakape/lunachat/db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultKeepAlive is the idle interval after which a keep-alive is emitted
const DefaultKeepAlive = time.Second

var subscribers = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "lunachat_feed_subscribers",
		Help: "Active live feed subscriptions",
	},
	[]string{"feed"},
)

// ThreadCard is the data of a thread as displayed in the thread list
type ThreadCard struct {
	ID       db.ThreadID
	Title    string
	Body     string
	Author   db.User
	NumPosts int

	// Rendered for a live feed instead of a full page
	SSE bool
}

// PostCard is the data of a post as displayed in a thread
type PostCard struct {
	ID     db.PostID
	Body   string
	Author db.User
	SSE    bool
}

// Renderer produces HTML fragments from cards
type Renderer interface {
	ThreadCard(ThreadCard) ([]byte, error)
	PostCard(PostCard) ([]byte, error)
}

// Kinds of items
const (
	KindThread = "thread"
	KindPost   = "post"
)

// Item is a single rendered card of a feed
type Item struct {
	Kind string
	ID   uint64
	HTML []byte
}

// ItemError is a failure to produce a single item. The feed stays usable.
type ItemError struct {
	Err error
}

func (e ItemError) Error() string {
	return "feed item: " + e.Err.Error()
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// Feed is an infinite, pull-based sequence of items
type Feed interface {
	// Next blocks until the next item, a failed item or until ctx is done.
	// Failed items are reported as ItemError. Any other error ends the feed.
	Next(ctx context.Context) (Item, error)

	// Close cancels the subscription
	Close()
}

// Frame is a single unit of output of Pump
type Frame struct {
	Item Item

	// Set for failed items
	Err error

	// No item arrived during the keep-alive interval
	KeepAlive bool
}

// ErrorMessage returns the text sent to clients for a failed item. Only
// missing entities are described. internal is set for all other causes,
// which are to be logged by the caller instead.
func (fr Frame) ErrorMessage() (msg string, internal bool) {
	if common.IsNotFound(fr.Err) {
		return fr.Err.Error(), false
	}
	return "internal server error", true
}

// Pump pulls items from f and passes them to emit. When no item arrives for
// keepAlive, a keep-alive frame is emitted instead. Returns, when ctx is done,
// the feed ends or emit fails.
func Pump(
	ctx context.Context,
	f Feed,
	keepAlive time.Duration,
	emit func(Frame) error,
) error {
	for {
		wait, cancel := context.WithTimeout(ctx, keepAlive)
		item, err := f.Next(wait)
		cancel()

		var (
			frame Frame
			ie    ItemError
		)
		switch {
		case err == nil:
			frame.Item = item
		case errors.As(err, &ie):
			frame.Err = err
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			frame.KeepAlive = true
		default:
			return err
		}
		if err := emit(frame); err != nil {
			return err
		}
	}
}

// Wrap an enrichment failure as a failed item
func itemError(err error) error {
	return ItemError{Err: err}
}

func render(fn func() ([]byte, error)) ([]byte, error) {
	buf, err := fn()
	if err != nil {
		return nil, itemError(common.ErrRendering{Err: err})
	}
	return buf, nil
}

// Resolve a user for a card. Missing users fail the item.
func loadAuthor(d *db.DB, id db.UserID) (db.User, error) {
	u, err := d.Users.Load(id)
	if err != nil {
		return db.User{}, itemError(err)
	}
	return u, nil
}
