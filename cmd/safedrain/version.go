package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/james-lawrence/safedrain/cmd/safedrain/cmdopts"
	"github.com/logrusorgru/aurora"
	"github.com/mattn/go-isatty"
)

type cmdVersion struct{}

func (t cmdVersion) Run(ctx *cmdopts.Global) (err error) {
	defer ctx.Shutdown()

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return errors.New("unable to detect build information")
	}

	var (
		revision = "unknown"
		ts       time.Time
		modified bool
	)

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			if ts, err = time.Parse(time.RFC3339, s.Value); err != nil {
				return err
			}
		case "vcs.modified":
			if modified, err = strconv.ParseBool(s.Value); err != nil {
				return err
			}
		}
	}

	fmt.Println(info.Main.Path, ts.Format(time.DateOnly), revision)

	if modified {
		au := aurora.NewAurora(isatty.IsTerminal(os.Stdout.Fd()))
		fmt.Println(au.Yellow("built from a locally modified tree"))
	}

	return nil
}
