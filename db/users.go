package db

import (
	"fmt"

	"github.com/bakape/lunachat/codec"
	"github.com/bakape/lunachat/common"
)

// User is a registered account
type User struct {
	ID       UserID
	Username string

	// Password hash. Only read by the auth package.
	Password string
	Avatar   *string
}

// SessionAuthHash returns the bytes sessions are bound to. Changing the
// password invalidates all sessions of the user.
func (u User) SessionAuthHash() []byte {
	return []byte(u.Password)
}

// String redacts the password hash
func (u User) String() string {
	return fmt.Sprintf("User{ID: %d, Username: %q}", u.ID, u.Username)
}

// GoString redacts the password hash
func (u User) GoString() string {
	avatar := "nil"
	if u.Avatar != nil {
		avatar = fmt.Sprintf("%q", *u.Avatar)
	}
	return fmt.Sprintf(
		"db.User{ID: %d, Username: %q, Password: \"[redacted]\", Avatar: %s}",
		u.ID, u.Username, avatar,
	)
}

// DeactivatedUser is displayed in place of authors, that no longer resolve
func DeactivatedUser(id UserID) User {
	return User{
		ID:       id,
		Username: common.DeactivatedUsername,
	}
}

// UserCodec is the current on-disk layout of users
var UserCodec = codec.Codec[User]{
	Encode: func(e *codec.Encoder, u User) {
		e.Uint64(uint64(u.ID))
		e.String(u.Username)
		e.String(u.Password)
		codec.Option(e, u.Avatar, (*codec.Encoder).String)
	},
	Decode: func(d *codec.Decoder) (u User, err error) {
		if u.ID, err = UserIDCodec.Decode(d); err != nil {
			return
		}
		if u.Username, err = d.String(); err != nil {
			return
		}
		if u.Password, err = d.String(); err != nil {
			return
		}
		u.Avatar, err = codec.DecodeOption(d, (*codec.Decoder).String)
		return
	},
}

// Username index keys are the raw username bytes
var usernameCodec = codec.Bytes

// Users stores accounts and the username index
type Users struct {
	*Table[UserID, User]
	usernames *Table[string, UserID]
	keys      HighestKeys
}

// NextKey allocates a new user ID
func (u Users) NextKey() (UserID, error) {
	id, err := u.keys.Next(TableUsers)
	return UserID(id), err
}

// Insert writes the user record and its username index entry. The two writes
// are not atomic: the index is only trusted, when both resolve.
func (u Users) Insert(id UserID, user User) (err error) {
	err = u.Table.Insert(id, user)
	if err != nil {
		return
	}
	return u.usernames.Insert(user.Username, id)
}

// Load retrieves a user or returns common.ErrUserNotFound
func (u Users) Load(id UserID) (user User, err error) {
	user, ok, err := u.Get(id)
	if err == nil && !ok {
		err = common.ErrUserNotFound(id)
	}
	return
}

// GetByUsername looks up a user through the username index. An index entry
// without a matching user record is reported as not found.
func (u Users) GetByUsername(name string) (user User, ok bool, err error) {
	id, ok, err := u.usernames.Get(name)
	if err != nil || !ok {
		return
	}
	return u.Get(id)
}

// Flush flushes both the user records and the username index
func (u Users) Flush() error {
	if err := u.Table.Flush(); err != nil {
		return err
	}
	return u.usernames.Flush()
}
