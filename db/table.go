package db

import (
	"bytes"

	"github.com/bakape/lunachat/codec"
	"github.com/boltdb/bolt"
)

// Number of entries read per bolt transaction during iteration
const iterPageSize = 128

// Table is a typed view of a bolt bucket. Handles are cheap to copy and safe
// for concurrent use.
type Table[K, V any] struct {
	db     *DB
	bucket string
	key    codec.Codec[K]
	value  codec.Codec[V]
}

// NewTable creates a typed view of the named bucket. Several views of
// different types may share a bucket, which the migrator relies on.
func NewTable[K, V any](
	d *DB,
	bucket string,
	key codec.Codec[K],
	value codec.Codec[V],
) *Table[K, V] {
	return &Table[K, V]{
		db:     d,
		bucket: bucket,
		key:    key,
		value:  value,
	}
}

// Bucket returns the name of the underlying bucket
func (t *Table[K, V]) Bucket() string {
	return t.bucket
}

func (t *Table[K, V]) buc(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket([]byte(t.bucket))
}

// Get retrieves the value stored under k. ok is false, if none is.
func (t *Table[K, V]) Get(k K) (v V, ok bool, err error) {
	var buf []byte
	err = t.db.bolt.View(func(tx *bolt.Tx) error {
		if b := t.buc(tx).Get(t.key.Marshal(k)); b != nil {
			// Bolt memory is only valid for the duration of the transaction
			buf = append([]byte{}, b...)
		}
		return nil
	})
	if err != nil {
		err = storageError("get", t.bucket, err)
		return
	}
	if buf == nil {
		return
	}
	v, err = t.value.Unmarshal(buf)
	ok = err == nil
	return
}

// Insert writes v under k and notifies subscribers of the bucket
func (t *Table[K, V]) Insert(k K, v V) error {
	return t.db.write(t.bucket, t.key.Marshal(k), t.value.Marshal(v))
}

// Remove deletes the value stored under k, if any
func (t *Table[K, V]) Remove(k K) error {
	return t.db.write(t.bucket, t.key.Marshal(k), nil)
}

// Flush waits for all prior writes to reach stable storage
func (t *Table[K, V]) Flush() error {
	return storageError("flush", t.bucket, t.db.bolt.Sync())
}

// Len returns the number of entries in the table
func (t *Table[K, V]) Len() (n int, err error) {
	err = t.db.bolt.View(func(tx *bolt.Tx) error {
		n = t.buc(tx).Stats().KeyN
		return nil
	})
	err = storageError("len", t.bucket, err)
	return
}

// Iter iterates all entries in key order. Entries are read in pages, so no
// transaction is held open between calls to Next and the table may be written
// to during iteration.
func (t *Table[K, V]) Iter() *Iterator[K, V] {
	return &Iterator[K, V]{t: t}
}

// Keys iterates all keys in key order without decoding values
func (t *Table[K, V]) Keys() *Iterator[K, V] {
	return &Iterator[K, V]{
		t:        t,
		keysOnly: true,
	}
}

// Values iterates all values in key order. Equivalent to Iter.
func (t *Table[K, V]) Values() *Iterator[K, V] {
	return t.Iter()
}

// Reverse iterates all entries in descending key order
func (t *Table[K, V]) Reverse() *Iterator[K, V] {
	return &Iterator[K, V]{
		t:       t,
		reverse: true,
	}
}

// Watch subscribes to changes of the table. The returned Watcher must be
// closed by the caller.
func (t *Table[K, V]) Watch() *Watcher[K, V] {
	return &Watcher[K, V]{
		t:   t,
		sub: t.db.hub.subscribe(t.bucket),
	}
}

type rawPair struct {
	key, value []byte
}

// Iterator is a lazy, finite sequence of table entries. Restart iteration by
// creating a new Iterator.
//
//	it := table.Iter()
//	for it.Next() {
//		use(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type Iterator[K, V any] struct {
	t                 *Table[K, V]
	keysOnly, reverse bool

	page          []rawPair
	pos           int
	last          []byte
	started, done bool

	key   K
	value V
	err   error
}

// Next advances the iterator and reports, if an entry is available
func (it *Iterator[K, V]) Next() bool {
	if it.err != nil {
		return false
	}
	if it.pos >= len(it.page) {
		if it.done {
			return false
		}
		it.fill()
		if it.err != nil || len(it.page) == 0 {
			return false
		}
	}

	p := it.page[it.pos]
	it.pos++
	it.key, it.err = it.t.key.Unmarshal(p.key)
	if it.err != nil {
		return false
	}
	if !it.keysOnly {
		it.value, it.err = it.t.value.Unmarshal(p.value)
		if it.err != nil {
			return false
		}
	}
	return true
}

// Read the next page of entries after the last read key
func (it *Iterator[K, V]) fill() {
	it.page = it.page[:0]
	it.pos = 0
	err := it.t.db.bolt.View(func(tx *bolt.Tx) error {
		c := it.t.buc(tx).Cursor()
		var k, v []byte
		switch {
		case !it.started && !it.reverse:
			k, v = c.First()
		case !it.started:
			k, v = c.Last()
		case !it.reverse:
			k, v = c.Seek(it.last)
			for k != nil && bytes.Compare(k, it.last) <= 0 {
				k, v = c.Next()
			}
		default:
			k, v = c.Seek(it.last)
			if k == nil {
				k, v = c.Last()
			}
			for k != nil && bytes.Compare(k, it.last) >= 0 {
				k, v = c.Prev()
			}
		}

		for ; k != nil && len(it.page) < iterPageSize; k, v = it.step(c) {
			p := rawPair{key: append([]byte{}, k...)}
			if !it.keysOnly {
				p.value = append([]byte{}, v...)
			}
			it.page = append(it.page, p)
		}
		if k == nil {
			it.done = true
		}
		return nil
	})
	it.started = true
	if err != nil {
		it.err = storageError("iterate", it.t.bucket, err)
		return
	}
	if n := len(it.page); n != 0 {
		it.last = it.page[n-1].key
	}
}

func (it *Iterator[K, V]) step(c *bolt.Cursor) ([]byte, []byte) {
	if it.reverse {
		return c.Prev()
	}
	return c.Next()
}

// Key returns the key of the current entry
func (it *Iterator[K, V]) Key() K {
	return it.key
}

// Value returns the value of the current entry. Zero for iterators created
// with Keys.
func (it *Iterator[K, V]) Value() V {
	return it.value
}

// Err returns the first error encountered during iteration
func (it *Iterator[K, V]) Err() error {
	return it.err
}
