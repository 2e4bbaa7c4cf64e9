package db

import (
	"encoding/binary"
	"fmt"

	"github.com/bakape/lunachat/codec"
)

// Key is the 64 bit identifier shared by all entity tables. Stored big-endian,
// so the byte order of keys matches their numeric order.
type Key uint64

// Type-distinct identifiers of each entity table
type (
	PostID   Key
	ThreadID Key
	UserID   Key
)

// ID is any of the typed identifiers
type ID interface {
	~uint64
}

// EncodeID converts an identifier to its 8 byte big-endian form
func EncodeID[T ID](id T) (buf [8]byte) {
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return
}

// DecodeID converts an 8 byte big-endian form back to an identifier
func DecodeID[T ID](buf [8]byte) T {
	return T(binary.BigEndian.Uint64(buf[:]))
}

// IDCodec returns the codec of a typed identifier
func IDCodec[T ID]() codec.Codec[T] {
	return codec.Codec[T]{
		Encode: func(e *codec.Encoder, id T) {
			e.Uint64(uint64(id))
		},
		Decode: func(d *codec.Decoder) (T, error) {
			v, err := d.Uint64()
			return T(v), err
		},
	}
}

// Codecs of the identifier types
var (
	PostIDCodec   = IDCodec[PostID]()
	ThreadIDCodec = IDCodec[ThreadID]()
	UserIDCodec   = IDCodec[UserID]()
)

// TableType identifies a table in the version and key allocation registries
type TableType uint64

// Recognised tables. The values are part of the on-disk format.
const (
	TablePosts TableType = iota
	TableUsers
	TableHighestKeys
	TableThreads
)

// Tables lists all recognised tables
var Tables = [...]TableType{
	TablePosts,
	TableUsers,
	TableHighestKeys,
	TableThreads,
}

func (t TableType) String() string {
	switch t {
	case TablePosts:
		return "posts"
	case TableUsers:
		return "users"
	case TableHighestKeys:
		return "highest_keys"
	case TableThreads:
		return "threads"
	default:
		return fmt.Sprintf("table(%d)", uint64(t))
	}
}

// Bucket returns the name of the bucket holding the table's rows
func (t TableType) Bucket() string {
	switch t {
	case TablePosts:
		return BucketPosts
	case TableUsers:
		return BucketUsers
	case TableThreads:
		return BucketThreads
	default:
		return BucketHighestKeys
	}
}

// TableTypeCodec encodes TableType as its u64 discriminant
var TableTypeCodec = codec.Codec[TableType]{
	Encode: func(e *codec.Encoder, t TableType) {
		e.Uint64(uint64(t))
	},
	Decode: func(d *codec.Decoder) (TableType, error) {
		v, err := d.Uint64()
		return TableType(v), err
	},
}
