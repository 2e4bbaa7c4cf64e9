package auth

import (
	"crypto/subtle"
	"sync"

	"github.com/bakape/lunachat/db"
)

// Length of the random part of session tokens in bytes
const sessionLength = 32

type session struct {
	user db.UserID
	hash []byte
}

// Sessions is an in-memory login session store. Sessions are lost on
// restart.
type Sessions struct {
	users db.Users

	mu       sync.RWMutex
	sessions map[string]session
}

// NewSessions creates an empty session store resolving users from users
func NewSessions(users db.Users) *Sessions {
	return &Sessions{
		users:    users,
		sessions: make(map[string]session),
	}
}

// Login creates a new session for user and returns its token
func (s *Sessions) Login(user db.User) (token string, err error) {
	token, err = RandomID(sessionLength)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = session{
		user: user.ID,
		hash: user.SessionAuthHash(),
	}
	return
}

// Restore returns the user of a session. Sessions of users, that no longer
// exist or have changed their password since login, are invalidated.
func (s *Sessions) Restore(token string) (user db.User, ok bool, err error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return
	}

	user, ok, err = s.users.Get(sess.user)
	if err != nil {
		return
	}
	if !ok || subtle.ConstantTimeCompare(sess.hash, user.SessionAuthHash()) != 1 {
		s.Logout(token)
		return db.User{}, false, nil
	}
	return
}

// Logout ends a session
func (s *Sessions) Logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
