// Command ivrctl is an operator tool for the call-control service: it mints
// softphone tokens, requests outbound calls and renders the IVR documents
// locally.
package main

import (
	"errors"
	"fmt"
	"os"

	"voice-ivr/pkg/logger"

	"github.com/jessevdk/go-flags"
)

func main() {
	log := logger.NewWithWriter(os.Stderr, os.Getenv("APP_ENV"), "ivrctl")
	if err := Run(os.Args[1:], os.Stdout, log); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, ferr.Message)
			return
		}
		log.Error("ivrctl failed", "err", err)
		os.Exit(1)
	}
}
