// Package db handles all persistent storage. Records are kept in an embedded
// bolt database as big-endian binary encoded values in one bucket per table.
package db

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/boltdb/bolt"
	"github.com/go-playground/log"
)

// FileName of the bolt database inside the database directory
const FileName = "lunachat.db"

// Bucket names. Reserved: must not be reused for other tables.
const (
	BucketPosts       = "posts"
	BucketThreads     = "threads"
	BucketUsers       = "users"
	BucketUsernames   = "usernames"
	BucketHighestKeys = "highest_keys"
	BucketVersions    = "versions"
)

var buckets = [...]string{
	BucketPosts,
	BucketThreads,
	BucketUsers,
	BucketUsernames,
	BucketHighestKeys,
	BucketVersions,
}

// Options of opening the database
type Options struct {
	// Skip fsync on each commit. Durability then only holds after Flush.
	NoSync bool
}

// DB is an open database and the typed stores of its tables
type DB struct {
	bolt    *bolt.DB
	writeMu sync.Mutex
	hub     hub

	Posts       Posts
	Threads     Threads
	Users       Users
	HighestKeys HighestKeys
	Versions    Versions
}

// Open opens or creates the database in dir
func Open(dir string, opts Options) (d *DB, err error) {
	log.Infof("opening database in %s", dir)

	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return
	}
	b, err := bolt.Open(
		filepath.Join(dir, FileName),
		0600,
		&bolt.Options{Timeout: time.Second},
	)
	if err != nil {
		return nil, storageError("open", dir, err)
	}
	b.NoSync = opts.NoSync

	err = b.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			_, err := tx.CreateBucketIfNotExists([]byte(name))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Close()
		return nil, storageError("create buckets", dir, err)
	}

	d = &DB{bolt: b}
	d.HighestKeys = HighestKeys{
		NewTable(d, BucketHighestKeys, TableTypeCodec, uint64Codec),
	}
	d.Versions = Versions{
		NewTable(d, BucketVersions, TableTypeCodec, uint64Codec),
	}
	d.Posts = Posts{
		Table: NewTable(d, BucketPosts, PostIDCodec, PostCodec),
		keys:  d.HighestKeys,
	}
	d.Threads = Threads{
		Table: NewTable(d, BucketThreads, ThreadIDCodec, ThreadCodec),
		keys:  d.HighestKeys,
	}
	d.Users = Users{
		Table:     NewTable(d, BucketUsers, UserIDCodec, UserCodec),
		usernames: NewTable(d, BucketUsernames, usernameCodec, UserIDCodec),
		keys:      d.HighestKeys,
	}
	return
}

// OpenTest opens a database in a temporary directory, that is closed and
// removed after the test
func OpenTest(t testing.TB) *DB {
	t.Helper()

	d, err := Open(t.TempDir(), Options{NoSync: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Error(err)
		}
	})
	return d
}

// Close releases the database file. Handles derived from d must not be used
// afterwards.
func (d *DB) Close() error {
	return storageError("close", d.bolt.Path(), d.bolt.Close())
}

// Path returns the path of the database file
func (d *DB) Path() string {
	return d.bolt.Path()
}

// Subscribers returns the number of active watchers of a bucket
func (d *DB) Subscribers(bucket string) int {
	return d.hub.count(bucket)
}
