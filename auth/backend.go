package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/bakape/lunachat/common"
	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/parser"
	"github.com/go-playground/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

var loginAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lunachat_login_attempts_total",
		Help: "Login attempts by result",
	},
	[]string{"result"},
)

// Options of the authentication backend
type Options struct {
	// bcrypt cost of new password hashes
	Cost int

	// Maximum number of concurrent hashing operations
	Workers int
}

// Backend authenticates and registers users
type Backend struct {
	users db.Users
	cost  int
	pool  *semaphore.Weighted

	// Serializes username checks with user creation
	registerMu sync.Mutex
}

// NewBackend creates a Backend reading and writing users
func NewBackend(users db.Users, opts Options) *Backend {
	if opts.Cost == 0 {
		opts.Cost = bcrypt.DefaultCost
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Backend{
		users: users,
		cost:  opts.Cost,
		pool:  semaphore.NewWeighted(int64(opts.Workers)),
	}
}

// Run fn on a separate goroutine, bounded by the worker pool. Hashing is CPU
// bound and must not stall request handling.
func (b *Backend) offload(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.pool.Acquire(ctx, 1); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer b.pool.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- common.ErrTask{Err: fmt.Errorf("panic: %v", r)}
			}
		}()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Authenticate returns the user matching the credentials. ok is false, if
// the user does not exist or the password is incorrect.
func (b *Backend) Authenticate(ctx context.Context, creds Credentials) (
	user db.User, ok bool, err error,
) {
	user, ok, err = b.users.GetByUsername(creds.Username)
	if err != nil || !ok {
		loginAttempts.WithLabelValues("unknown_user").Inc()
		return
	}

	err = b.offload(ctx, func() error {
		return ComparePassword(creds.Password, user.Password)
	})
	switch {
	case err == nil:
		loginAttempts.WithLabelValues("success").Inc()
		if NeedsRehash(user.Password) {
			user = b.rehash(ctx, user, creds.Password)
		}
		return
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		loginAttempts.WithLabelValues("wrong_password").Inc()
		return db.User{}, false, nil
	case errors.Is(err, ErrUnknownHash):
		loginAttempts.WithLabelValues("invalid_hash").Inc()
		log.WithFields(log.F("user", user.ID)).Warnf("verify password: %s", err)
		return db.User{}, false, nil
	default:
		var task common.ErrTask
		if !errors.As(err, &task) &&
			!errors.Is(err, context.Canceled) &&
			!errors.Is(err, context.DeadlineExceeded) {
			err = Error{"verify password", err}
		}
		return db.User{}, false, err
	}
}

// Replace a legacy password hash with a bcrypt one. Failures are logged and
// leave the stored user unchanged, as the login itself succeeded.
func (b *Backend) rehash(ctx context.Context, user db.User, password string) db.User {
	var hash []byte
	err := b.offload(ctx, func() (err error) {
		hash, err = BcryptHash(password, b.cost)
		return
	})
	if err == nil {
		updated := user
		updated.Password = string(hash)
		err = b.users.Insert(user.ID, updated)
		if err == nil {
			err = b.users.Flush()
		}
		if err == nil {
			log.Infof("rehashed password of user %d", user.ID)
			return updated
		}
	}
	log.WithFields(log.F("user", user.ID)).Errorf("rehash password: %s", err)
	return user
}

// Register creates a new user from the credentials
func (b *Backend) Register(ctx context.Context, creds Credentials) (
	user db.User, err error,
) {
	err = validateCreds(creds)
	if err != nil {
		return
	}

	var hash []byte
	err = b.offload(ctx, func() (err error) {
		hash, err = BcryptHash(creds.Password, b.cost)
		return
	})
	if err != nil {
		var task common.ErrTask
		if !errors.As(err, &task) {
			err = Error{"hash password", err}
		}
		return
	}

	b.registerMu.Lock()
	defer b.registerMu.Unlock()

	_, taken, err := b.users.GetByUsername(creds.Username)
	switch {
	case err != nil:
		return
	case taken:
		err = common.ErrUsernameTaken
		return
	}

	id, err := b.users.NextKey()
	if err != nil {
		return
	}
	user = db.User{
		ID:       id,
		Username: creds.Username,
		Password: string(hash),
	}
	err = b.users.Insert(id, user)
	if err != nil {
		return
	}
	err = b.users.Flush()
	if err != nil {
		return
	}
	log.Infof("registered user %d", id)
	return
}

func validateCreds(c Credentials) error {
	switch {
	case c.Username == "":
		return common.ErrEmptyUsername
	case c.Password == "":
		return common.ErrEmptyPassword
	case len(c.Username) > common.MaxLenUsername:
		return common.ErrUsernameTooLong
	case len(c.Password) > common.MaxLenPassword:
		return common.ErrPasswordTooLong
	case strings.ContainsRune(c.Username, 0):
		return common.ErrContainsNull
	}
	return parser.IsPrintableString(c.Username, false)
}

// GetUser retrieves a user by ID
func (b *Backend) GetUser(id db.UserID) (db.User, bool, error) {
	return b.users.Get(id)
}

// GetUserPermissions returns the permissions of an authenticated user. All
// users may post.
func (b *Backend) GetUserPermissions(_ db.User) (map[Permission]struct{}, error) {
	return map[Permission]struct{}{
		Post: {},
	}, nil
}

// HasPermission returns, if user holds perm
func (b *Backend) HasPermission(user db.User, perm Permission) (bool, error) {
	perms, err := b.GetUserPermissions(user)
	if err != nil {
		return false, err
	}
	_, ok := perms[perm]
	return ok, nil
}
