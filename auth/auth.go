// Package auth verifies credentials, binds login sessions to users and
// determines user permissions
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnknownHash is returned for stored password hashes, that are malformed or
// of an unsupported scheme
var ErrUnknownHash = errors.New("unrecognised password hash")

// Upper bounds on argon2 parameters read from stored hashes
const (
	maxArgon2Memory  = 1 << 18 // KiB
	maxArgon2Time    = 16
	maxArgon2KeySize = 128
)

// Permission to perform an action
type Permission uint8

const (
	// Create threads and replies
	Post Permission = iota
)

func (p Permission) String() string {
	switch p {
	case Post:
		return "post"
	default:
		return fmt.Sprintf("permission(%d)", uint8(p))
	}
}

// Credentials submitted on login or registration
type Credentials struct {
	Username, Password string

	// Path to redirect to after a successful login
	Next string
}

// Error is a failure of the authentication subsystem itself, as opposed to
// incorrect credentials
type Error struct {
	Op  string
	Err error
}

func (e Error) Error() string {
	return fmt.Sprintf("auth: %s: %s", e.Op, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// RandomID generates a randomized URL-safe base64 string of length bytes
func RandomID(length int) (string, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf), err
}

// BcryptHash generates a bcrypt hash from the passed string
func BcryptHash(password string, rounds int) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), rounds)
}

// BcryptCompare compares a bcrypt hash with a user-supplied string
func BcryptCompare(password string, hash []byte) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(password))
}

// ComparePassword verifies password against a stored bcrypt or argon2 PHC
// hash. Returns bcrypt.ErrMismatchedHashAndPassword on mismatch and
// ErrUnknownHash, if the hash can not be parsed.
func ComparePassword(password, hash string) error {
	switch {
	case strings.HasPrefix(hash, "$argon2"):
		return Argon2Compare(password, hash)
	case strings.HasPrefix(hash, "$2"):
		err := BcryptCompare(password, []byte(hash))
		if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			err = fmt.Errorf("%w: %s", ErrUnknownHash, err)
		}
		return err
	default:
		return ErrUnknownHash
	}
}

// NeedsRehash reports, if a stored hash should be replaced with a bcrypt one
// after the next successful login
func NeedsRehash(hash string) bool {
	return strings.HasPrefix(hash, "$argon2")
}

// Argon2Compare compares an argon2i or argon2id hash in PHC string format,
// like "$argon2id$v=19$m=19456,t=2,p=1$<salt>$<key>", with a user-supplied
// string. Mismatches return bcrypt.ErrMismatchedHashAndPassword, so callers
// can treat both schemes alike.
func Argon2Compare(password, encoded string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return ErrUnknownHash
	}

	var derive func(password, salt []byte, time, memory uint32, threads uint8, keyLen uint32) []byte
	switch parts[1] {
	case "argon2id":
		derive = argon2.IDKey
	case "argon2i":
		derive = argon2.Key
	default:
		return ErrUnknownHash
	}

	var version int
	_, err := fmt.Sscanf(parts[2], "v=%d", &version)
	if err != nil || version != argon2.Version {
		return ErrUnknownHash
	}

	var (
		memory, time uint32
		threads      uint8
	)
	_, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads)
	switch {
	case err != nil,
		memory == 0 || memory > maxArgon2Memory,
		time == 0 || time > maxArgon2Time,
		threads == 0:
		return ErrUnknownHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrUnknownHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > maxArgon2KeySize {
		return ErrUnknownHash
	}

	derived := derive([]byte(password), salt, time, memory, threads, uint32(len(key)))
	if subtle.ConstantTimeCompare(derived, key) != 1 {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return nil
}
