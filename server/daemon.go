//go:build linux || darwin

// Daemonisation logic for the server

package server

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/go-playground/log"
	"github.com/sevlyar/go-daemon"
)

func init() {
	handleDaemon = func(verb string) error {
		switch verb {
		case "debug":
			return startServer()
		case "stop":
			return killDaemon()
		case "restart":
			if err := killDaemon(); err != nil {
				return err
			}
		}
		return daemonise()
	}
}

// Configuration variables for handling daemons
var daemonContext = &daemon.Context{
	PidFileName: ".pid",
	PidFilePerm: 0644,
	LogFileName: "error.log",
	LogFilePerm: 0640,
	Umask:       027,
}

// Spawn a detached process to work in the background
func daemonise() (err error) {
	child, err := daemonContext.Reborn()
	if err != nil {
		if err.Error() == "resource temporarily unavailable" {
			err = errors.New("server already running")
		}
		return
	}
	if child != nil {
		return
	}
	defer daemonContext.Release()

	log.Info("server started ------------------------------------")
	err = startServer()
	if err != nil {
		log.Errorf("daemon runtime error: %s", err)
	}
	log.Info("server terminated")
	return
}

// Terminate the running server daemon
func killDaemon() error {
	proc, err := daemonContext.Search()
	if err != nil && !os.IsNotExist(err) && err.Error() != "EOF" {
		return err
	}
	if proc == nil {
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	// Ascertain process has exited
	for {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			if err.Error() == "os: process already finished" {
				return nil
			}
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}
}
