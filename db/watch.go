package db

import (
	"context"
	"sync"

	"github.com/boltdb/bolt"
)

// EventKind discriminates table change events
type EventKind uint8

const (
	Insert EventKind = iota
	Remove
)

// Event is a change of a single table entry
type Event[K, V any] struct {
	Kind EventKind
	Key  K

	// Only set on Insert events
	Value V

	// Insert overwrote an existing entry
	Update bool
}

type rawEvent struct {
	kind       EventKind
	key, value []byte
	update     bool
}

// Commit a single key write and publish it to the bucket's subscribers.
// A nil value removes the key.
//
// Publishing happens under the same lock as the commit, so subscribers always
// observe events in commit order.
func (d *DB) write(bucket string, key, value []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	ev := rawEvent{
		key:   key,
		value: value,
	}
	err := d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		ev.update = b.Get(key) != nil
		if value == nil {
			ev.kind = Remove
			return b.Delete(key)
		}
		ev.kind = Insert
		return b.Put(key, value)
	})
	if err != nil {
		return storageError("write", bucket, err)
	}
	if ev.kind == Remove && !ev.update {
		return nil
	}
	d.hub.publish(bucket, ev)
	return nil
}

// Routes change events to the subscribers of each bucket
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

func (h *hub) subscribe(bucket string) *subscription {
	s := &subscription{
		hub:    h,
		bucket: bucket,
		signal: make(chan struct{}, 1),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[string]map[*subscription]struct{})
	}
	m := h.subs[bucket]
	if m == nil {
		m = make(map[*subscription]struct{})
		h.subs[bucket] = m
	}
	m[s] = struct{}{}
	return s
}

func (h *hub) unsubscribe(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[s.bucket], s)
}

func (h *hub) publish(bucket string, ev rawEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[bucket] {
		s.push(ev)
	}
}

// Number of active subscriptions on a bucket
func (h *hub) count(bucket string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[bucket])
}

// Unbounded event queue of a single subscriber. Writers never block on slow
// readers.
type subscription struct {
	hub    *hub
	bucket string

	mu     sync.Mutex
	queue  []rawEvent
	closed bool
	signal chan struct{}
}

func (s *subscription) push(ev rawEvent) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, ev)
	}
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) pop() (ev rawEvent, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return
	}
	ev = s.queue[0]
	s.queue[0] = rawEvent{}
	s.queue = s.queue[1:]
	return ev, true
}

func (s *subscription) next(ctx context.Context) (rawEvent, error) {
	for {
		if ev, ok := s.pop(); ok {
			return ev, nil
		}
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return rawEvent{}, ErrWatcherClosed
		}

		select {
		case <-s.signal:
		case <-ctx.Done():
			return rawEvent{}, ctx.Err()
		}
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	s.hub.unsubscribe(s)
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Watcher is a pull-based subscription to the changes of a table
type Watcher[K, V any] struct {
	t   *Table[K, V]
	sub *subscription
}

// Next blocks until the next change event or until ctx is done. Events that
// fail to decode are returned together with a codec error; the subscription
// stays usable.
func (w *Watcher[K, V]) Next(ctx context.Context) (ev Event[K, V], err error) {
	raw, err := w.sub.next(ctx)
	if err != nil {
		return
	}

	ev.Kind = raw.kind
	ev.Update = raw.update
	ev.Key, err = w.t.key.Unmarshal(raw.key)
	if err != nil || raw.kind != Insert {
		return
	}
	ev.Value, err = w.t.value.Unmarshal(raw.value)
	return
}

// Close cancels the subscription. Pending and future calls to Next return
// ErrWatcherClosed.
func (w *Watcher[K, V]) Close() {
	w.sub.close()
}
