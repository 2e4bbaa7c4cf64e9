// Package server handles client requests, both for HTML page rendering and
// live feed connections.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bakape/lunachat/auth"
	"github.com/bakape/lunachat/config"
	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/forum"
	"github.com/bakape/lunachat/parser"
	"github.com/bakape/lunachat/templates"
	"github.com/bakape/lunachat/util"
	"github.com/go-playground/log"
)

// Time allowed for open requests to complete on shutdown
const shutdownTimeout = 10 * time.Second

var (
	store    *db.DB
	posting  *forum.Forum
	backend  *auth.Backend
	sessions *auth.Sessions
	renderer templates.Renderer
)

// Executes a daemon verb. Overridden on platforms, that support
// daemonisation.
var handleDaemon = func(verb string) error {
	if verb == "debug" {
		return startServer()
	}
	return fmt.Errorf("unsupported command on this platform: %s", verb)
}

// Start executes the daemon verb passed on the command line
func Start(verb string) error {
	switch verb {
	case "", "help":
		printUsage()
		return nil
	case "start", "stop", "restart", "debug":
		return handleDaemon(verb)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", verb)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: lunachat [OPTIONS] [ start | stop | restart | debug | help ]
    start   - start the server as a daemon
    stop    - stop a running daemonised server
    restart - combination of stop + start
    debug   - run the server in the foreground
    help    - print this help text
`)
}

// Open the database and set up the services depending on it
func load() (err error) {
	d, err := db.Open(config.Server.Database, db.Options{
		NoSync: config.Server.NoSync,
	})
	if err != nil {
		return
	}
	err = util.Waterfall(d.Versions.Init, func() error {
		return assertMigrated(d)
	})
	if err != nil {
		d.Close()
		return
	}

	setState(d)
	util.Hook("stop", d.Close)
	util.Hook("stop", d.Posts.Flush)
	return
}

// Refuse to serve tables stored in an older schema
func assertMigrated(d *db.DB) error {
	outdated, err := d.Versions.Outdated()
	if err != nil {
		return err
	}
	if len(outdated) == 0 {
		return nil
	}
	names := make([]string, len(outdated))
	for i, t := range outdated {
		names[i] = t.String()
	}
	return fmt.Errorf(
		"tables need migration: %s: run the migrator first",
		strings.Join(names, ", "),
	)
}

func setState(d *db.DB) {
	store = d
	posting = forum.New(d, parser.NewSanitizer())
	backend = auth.NewBackend(d.Users, auth.Options{
		Cost:    config.Server.BcryptCost,
		Workers: config.Server.HashWorkers,
	})
	sessions = auth.NewSessions(d.Users)
}

// Run the web server until SIGINT or SIGTERM
func startServer() (err error) {
	err = load()
	if err != nil {
		return
	}
	defer func() {
		if e := util.Trigger("stop"); e != nil && err == nil {
			err = e
		}
	}()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	// Live feeds only end, when their request context is cancelled
	base, cancelBase := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:    config.Server.Address,
		Handler: createRouter(),
		BaseContext: func(net.Listener) context.Context {
			return base
		},
	}
	srv.RegisterOnShutdown(cancelBase)

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening on " + config.Server.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		cancelBase()
		return util.WrapError("error starting web server", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(sctx)
	if err == nil {
		err = <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}
	return
}
