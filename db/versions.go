package db

import (
	"github.com/bakape/lunachat/codec"
	"github.com/go-playground/log"
)

// Current schema versions of each table. Raised together with a migration
// registered in the migrations package.
const (
	PostsVersion       = 3
	UsersVersion       = 2
	HighestKeysVersion = 1
	ThreadsVersion     = 1
)

// CurrentVersion returns the schema version of a table this build reads and
// writes
func CurrentVersion(t TableType) uint64 {
	switch t {
	case TablePosts:
		return PostsVersion
	case TableUsers:
		return UsersVersion
	case TableThreads:
		return ThreadsVersion
	default:
		return HighestKeysVersion
	}
}

// Versions stores the schema version of each table
type Versions struct {
	*Table[TableType, uint64]
}

// Initial returns the version to record for a table, that has none stored.
// An empty table has never been written to, so it is already in the current
// schema. Rows without a version predate version tracking and are in the first
// layout.
func (v Versions) Initial(t TableType) (uint64, error) {
	n, err := NewTable(v.db, t.Bucket(), codec.Raw, codec.Raw).Len()
	if err != nil {
		return 0, err
	}
	if n != 0 {
		return 1, nil
	}
	return CurrentVersion(t), nil
}

// Init records a version for every table, that does not have one yet, and
// flushes. See Initial.
func (v Versions) Init() (err error) {
	var changed bool
	for _, t := range Tables {
		var ok bool
		_, ok, err = v.Get(t)
		if err != nil {
			return
		}
		if ok {
			continue
		}
		var ver uint64
		ver, err = v.Initial(t)
		if err != nil {
			return
		}
		log.Infof("setting %s table version to %d", t, ver)
		err = v.Insert(t, ver)
		if err != nil {
			return
		}
		changed = true
	}
	if changed {
		err = v.Flush()
	}
	return
}

// Outdated returns the tables whose stored version is behind the schema of
// this build
func (v Versions) Outdated() (tables []TableType, err error) {
	for _, t := range Tables {
		ver, ok, err := v.Get(t)
		if err != nil {
			return nil, err
		}
		if ok && ver < CurrentVersion(t) {
			tables = append(tables, t)
		}
	}
	return
}
