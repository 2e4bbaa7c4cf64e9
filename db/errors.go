package db

import (
	"errors"
	"fmt"
)

// StorageError is returned, when the underlying KV engine fails
type StorageError struct {
	Op     string
	Bucket string
	Err    error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %s", e.Op, e.Bucket, e.Err)
}

func (e StorageError) Unwrap() error {
	return e.Err
}

func storageError(op, bucket string, err error) error {
	if err == nil {
		return nil
	}
	return StorageError{
		Op:     op,
		Bucket: bucket,
		Err:    err,
	}
}

// ErrWatcherClosed is returned from Watcher.Next after the Watcher is closed
var ErrWatcherClosed = errors.New("watcher closed")
