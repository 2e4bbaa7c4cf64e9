// Package config holds the configuration of this server instance passed on
// the command line
package config

import (
	"time"

	"github.com/jessevdk/go-flags"
)

// Configurations of this specific instance passed from the command line.
// Immutable after parsing.
var Server ServerConfigs

// ServerConfigs configures the server and migrator processes
type ServerConfigs struct {
	// Address for the server to listen on
	Address string `short:"a" long:"address" description:"Address for the server to listen on" default:"0.0.0.0:8002"`

	// Directory of the database file
	Database string `short:"d" long:"database" description:"Directory of the database file" default:"db"`

	// Directory served under /static
	Static string `short:"s" long:"static" description:"Directory of static files served under /static" default:"static"`

	// Indicates this server is behind a reverse proxy and can honour
	// X-Forwarded-For and similar headers
	ReverseProxied bool `short:"r" long:"reverse-proxied" description:"Indicates this server is behind a reverse proxy and can honour X-Forwarded-For and similar headers"`

	// Compress pages with gzip
	Gzip bool `short:"g" long:"gzip" description:"Compress HTTP responses with gzip"`

	// Skip fsync on each database commit
	NoSync bool `long:"no-sync" description:"Do not fsync each database commit. Writes are only durable after explicit flushes."`

	// bcrypt cost of new password hashes
	BcryptCost int `long:"bcrypt-cost" description:"bcrypt cost of new password hashes" default:"10"`

	// Maximum concurrent password hashing operations. 0 for the number of
	// CPUs.
	HashWorkers int `long:"hash-workers" description:"Maximum concurrent password hashing operations. 0 for the number of CPUs." default:"0"`

	// Idle interval of live feeds before a keep-alive is sent
	KeepAlive time.Duration `long:"keep-alive" description:"Idle interval of live feeds before a keep-alive is sent" default:"1s"`

	// Email error-level log entries
	EmailErrors bool     `long:"email-errors" description:"Send error-level log entries by email"`
	EmailHost   string   `long:"email-host" description:"SMTP server host" default:"localhost"`
	EmailPort   int      `long:"email-port" description:"SMTP server port" default:"587"`
	EmailUser   string   `long:"email-user" description:"SMTP user and sender address"`
	EmailPass   string   `long:"email-pass" description:"SMTP password"`
	EmailTo     []string `long:"email-to" description:"Recipient of error emails. Can be repeated."`
}

// Parse parses command line arguments into Server and returns the remaining
// positional arguments
func Parse(args []string) ([]string, error) {
	return flags.ParseArgs(&Server, args)
}

// SetDefaults sets Server to its default values without parsing any
// arguments. Used in tests.
func SetDefaults() error {
	Server = ServerConfigs{}
	_, err := flags.ParseArgs(&Server, nil)
	return err
}
