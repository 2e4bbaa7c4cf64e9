// Package migrations upgrades the on-disk layout of tables written by older
// versions. Migrations run offline, with no concurrent writers.
package migrations

import (
	"fmt"

	"github.com/bakape/lunachat/codec"
	"github.com/bakape/lunachat/db"
	"github.com/go-playground/log"
)

// Row is the record being migrated and its position among all keys of the
// table in key order
type Row struct {
	DB    *db.DB
	Index int
	Keys  [][]byte

	// Shared by all rows of the same step
	threads *threadIndex
}

// Key returns the raw key of the row
func (r Row) Key() []byte {
	return r.Keys[r.Index]
}

// Prev returns the key preceding the row, if any
func (r Row) Prev() (key []byte, ok bool) {
	if r.Index == 0 {
		return nil, false
	}
	return r.Keys[r.Index-1], true
}

// Next returns the key following the row, if any
func (r Row) Next() (key []byte, ok bool) {
	if r.Index+1 >= len(r.Keys) {
		return nil, false
	}
	return r.Keys[r.Index+1], true
}

// Step upgrades every record of a table from version From to From+1
type Step struct {
	From    uint64
	Name    string
	migrate func(Row, []byte) ([]byte, error)
}

// NewStep creates a Step decoding records as F, converting them with fn and
// encoding the result as T
func NewStep[F, T any](
	from uint64,
	name string,
	dec codec.Codec[F],
	enc codec.Codec[T],
	fn func(Row, F) (T, error),
) Step {
	return Step{
		From: from,
		Name: name,
		migrate: func(r Row, buf []byte) ([]byte, error) {
			v, err := dec.Unmarshal(buf)
			if err != nil {
				return nil, err
			}
			res, err := fn(r, v)
			if err != nil {
				return nil, err
			}
			return enc.Marshal(res), nil
		},
	}
}

// Pipeline is the ordered list of steps bringing a table to its current
// version
type Pipeline struct {
	Table  db.TableType
	Bucket string
	Steps  []Step
}

// Target returns the version the pipeline migrates to
func (p Pipeline) Target() uint64 {
	return db.CurrentVersion(p.Table)
}

func (p Pipeline) step(from uint64) (Step, bool) {
	for _, s := range p.Steps {
		if s.From == from {
			return s, true
		}
	}
	return Step{}, false
}

// Pipelines lists the registered migrations of all tables
var Pipelines = []Pipeline{
	{
		Table:  db.TableUsers,
		Bucket: db.BucketUsers,
		Steps: []Step{
			NewStep(1, "add avatar", user1Codec, db.UserCodec, migrateUser1),
		},
	},
	{
		Table:  db.TablePosts,
		Bucket: db.BucketPosts,
		Steps: []Step{
			NewStep(1, "link post tree", post1Codec, post2Codec, migratePost1),
			NewStep(2, "add thread", post2Codec, db.PostCodec, migratePost2),
		},
	},
	{
		Table:  db.TableThreads,
		Bucket: db.BucketThreads,
	},
	{
		Table:  db.TableHighestKeys,
		Bucket: db.BucketHighestKeys,
	},
}

// Run migrates all tables to their current version
func Run(d *db.DB) (err error) {
	for _, p := range Pipelines {
		err = p.Run(d)
		if err != nil {
			return fmt.Errorf("migrating %s: %w", p.Table, err)
		}
	}
	return
}

// Run migrates the table to its current version. Any error aborts. Progress
// is persisted after each completed step.
func (p Pipeline) Run(d *db.DB) (err error) {
	target := p.Target()
	ver, ok, err := d.Versions.Get(p.Table)
	if err != nil {
		return
	}
	if !ok {
		ver, err = d.Versions.Initial(p.Table)
		if err != nil {
			return
		}
		log.Infof("%s: setting version to %d", p.Table, ver)
		err = d.Versions.Insert(p.Table, ver)
		if err != nil {
			return
		}
		err = d.Versions.Flush()
		if err != nil {
			return
		}
	}
	if ver > target {
		return fmt.Errorf("stored version %d newer than supported %d", ver, target)
	}

	for ; ver < target; ver++ {
		s, ok := p.step(ver)
		if !ok {
			return fmt.Errorf("no migration from version %d", ver)
		}
		log.Infof(
			"migrating %s from version %d to %d: %s",
			p.Table, ver, ver+1, s.Name,
		)
		err = p.apply(d, s)
		if err != nil {
			return
		}
		err = d.Versions.Insert(p.Table, ver+1)
		if err != nil {
			return
		}
		err = d.Versions.Flush()
		if err != nil {
			return
		}
	}
	return
}

// Transform all rows before writing any, so transforms reading the same
// table only ever see the old layout
func (p Pipeline) apply(d *db.DB, s Step) (err error) {
	raw := db.NewTable(d, p.Bucket, codec.Raw, codec.Raw)

	var (
		keys   [][]byte
		values [][]byte
	)
	it := raw.Iter()
	for it.Next() {
		keys = append(keys, it.Key())
		values = append(values, it.Value())
	}
	if err = it.Err(); err != nil {
		return
	}

	migrated := make([][]byte, len(keys))
	threads := newThreadIndex(d)
	for i := range keys {
		migrated[i], err = s.migrate(
			Row{
				DB:      d,
				Index:   i,
				Keys:    keys,
				threads: threads,
			},
			values[i],
		)
		if err != nil {
			return fmt.Errorf("key %x: %w", keys[i], err)
		}
	}

	for i, k := range keys {
		err = raw.Insert(k, migrated[i])
		if err != nil {
			return
		}
	}
	log.Infof("%s: migrated %d records", p.Table, len(keys))
	return raw.Flush()
}
