package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ErikDubbelboer/gspt"
	"github.com/bakape/lunachat/config"
	mLog "github.com/bakape/lunachat/log"
	"github.com/bakape/lunachat/server"
	"github.com/jessevdk/go-flags"
)

func main() {
	err := func() (err error) {
		args, err := config.Parse(os.Args[1:])
		if err != nil {
			return
		}
		var verb string
		if len(args) != 0 {
			verb = args[0]
		}

		gspt.SetProcTitle(censorArgs(os.Args))
		mLog.Init(verb == "debug")
		return server.Start(verb)
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

// Censor the SMTP password, if any
func censorArgs(argv []string) string {
	args := make([]string, 0, len(argv))
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case strings.HasPrefix(arg, "--email-pass="):
			args = append(args, "--email-pass=****")
		case arg == "--email-pass":
			args = append(args, arg, "****")
			i++ // Jump to args after password
		default:
			args = append(args, arg)
		}
	}
	return strings.Join(args, " ")
}
