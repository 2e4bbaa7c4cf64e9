package db

import (
	"encoding/binary"

	"github.com/bakape/lunachat/codec"
	"github.com/boltdb/bolt"
)

var uint64Codec = codec.Uint64

// HighestKeys stores the last allocated key of each table
type HighestKeys struct {
	*Table[TableType, uint64]
}

// Next atomically increments the counter of table t and returns the new
// value. The first allocated key is 1.
func (h HighestKeys) Next(t TableType) (id uint64, err error) {
	key := TableTypeCodec.Marshal(t)
	err = h.db.bolt.Update(func(tx *bolt.Tx) error {
		b := h.buc(tx)
		if v := b.Get(key); v != nil {
			if len(v) != 8 {
				return codec.Error{
					Offset: len(v),
					Reason: "invalid highest key length",
				}
			}
			id = binary.BigEndian.Uint64(v)
		}
		id++
		return b.Put(key, uint64Codec.Marshal(id))
	})
	if err != nil {
		if _, ok := err.(codec.Error); !ok {
			err = storageError("next key", h.bucket, err)
		}
		id = 0
	}
	return
}
