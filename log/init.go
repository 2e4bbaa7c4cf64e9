// Package mLog installs the log handlers of the server and migrator processes
package mLog

import (
	"sync"

	"github.com/bakape/lunachat/config"
	"github.com/go-playground/log"
	"github.com/go-playground/log/handlers/console"
	"github.com/go-playground/log/handlers/email"
)

// DefaultTimeFormat of log entry timestamps
const DefaultTimeFormat = "2006-01-02 15:04:05"

var once sync.Once

// Init installs the console handler and, if enabled in config.Server, the
// error email handler. Only the first call has any effect.
func Init(color bool) {
	once.Do(func() {
		c := console.New(true)
		c.SetTimestampFormat(DefaultTimeFormat)
		c.SetDisplayColor(color)
		log.AddHandler(c, log.AllLevels...)

		conf := config.Server
		if conf.EmailErrors && len(conf.EmailTo) != 0 {
			e := email.New(
				conf.EmailHost,
				conf.EmailPort,
				conf.EmailUser,
				conf.EmailPass,
				conf.EmailUser,
				conf.EmailTo,
			)
			e.SetTimestampFormat(DefaultTimeFormat)
			log.AddHandler(
				e,
				log.ErrorLevel,
				log.PanicLevel,
				log.AlertLevel,
				log.FatalLevel,
			)
		}
	})
}
