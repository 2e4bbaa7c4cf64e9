// Command migrate upgrades the tables of a database to the schema versions of
// this build. The server must not be running.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bakape/lunachat/config"
	"github.com/bakape/lunachat/db"
	mLog "github.com/bakape/lunachat/log"
	"github.com/bakape/lunachat/migrations"
	"github.com/bakape/lunachat/util"
	"github.com/go-playground/log"
	"github.com/jessevdk/go-flags"
)

func main() {
	err := func() (err error) {
		_, err = config.Parse(os.Args[1:])
		if err != nil {
			return
		}
		mLog.Init(true)

		d, err := db.Open(config.Server.Database, db.Options{})
		if err != nil {
			return
		}
		defer func() {
			if e := d.Close(); e != nil && err == nil {
				err = e
			}
		}()

		log.Infof("migrating %s", d.Path())
		err = migrations.Run(d)
		if err != nil {
			return util.WrapError("migration failed", err)
		}
		log.Info("migration complete")
		return
	}()
	if err != nil {
		// Flag errors are already printed by the parser
		var ferr *flags.Error
		if errors.As(err, &ferr) {
			if ferr.Type == flags.ErrHelp {
				return
			}
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
