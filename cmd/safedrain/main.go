// Command safedrain coordinates a safe restart of services on instances
// behind a classic load balancer, draining this instance only when the
// remaining pool holds quorum.
package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"sync"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/james-lawrence/safedrain"
	"github.com/james-lawrence/safedrain/cmd/commandutils"
	"github.com/james-lawrence/safedrain/cmd/safedrain/cmdopts"
	"github.com/james-lawrence/safedrain/internal/debugx"
	"github.com/james-lawrence/safedrain/internal/systemx"
	"github.com/posener/complete"
	"github.com/willabides/kongplete"
)

func main() {
	var shellCli struct {
		cmdopts.Global
		Restart            cmdRestart                   `cmd:"" help:"restart a service once the pool can tolerate losing this instance"`
		Deregister         cmdDeregister                `cmd:"" help:"drain this instance out of its load balancer"`
		Register           cmdRegister                  `cmd:"" help:"register this instance with the named load balancer"`
		Count              cmdCount                     `cmd:"" help:"report the quorum decision for this instance's pool"`
		Version            cmdVersion                   `cmd:"" help:"display versioning information"`
		InstallCompletions kongplete.InstallCompletions `cmd:"" help:"install shell completions"`
	}

	var (
		err error
		ctx *kong.Context
	)

	shellCli.Context, shellCli.Shutdown = context.WithCancel(context.Background())
	shellCli.Cleanup = &sync.WaitGroup{}

	log.SetFlags(log.Flags() | log.Lshortfile)
	log.SetPrefix("[SAFEDRAIN] ")
	go debugx.DumpOnSignal(shellCli.Context, syscall.SIGUSR2)
	go systemx.Cleanup(shellCli.Context, shellCli.Shutdown, shellCli.Cleanup, os.Kill, os.Interrupt)(func() {
		log.Println("waiting for systems to shutdown")
	})

	parser := kong.Must(
		&shellCli,
		kong.Name("safedrain"),
		kong.Description("coordinates safe restarts of services behind a load balancer"),
		kong.Vars{
			"vars_safedrain_sentinel":        safedrain.DefaultSentinelPath,
			"vars_safedrain_quorum_fraction": strconv.FormatFloat(safedrain.DefaultQuorumFraction, 'f', -1, 64),
			"vars_safedrain_quorum_minimum":  strconv.Itoa(safedrain.DefaultQuorumMinimum),
			"env_safedrain_logs_verbose":     safedrain.EnvLogsVerbose,
			"env_safedrain_domains":          safedrain.EnvDomains,
			"env_safedrain_sentinel":         safedrain.EnvSentinel,
			"env_safedrain_quorum_fraction":  safedrain.EnvQuorumFraction,
			"env_safedrain_quorum_minimum":   safedrain.EnvQuorumMinimum,
		},
		kong.UsageOnError(),
		kong.Bind(&shellCli.Global),
	)

	kongplete.Complete(parser,
		kongplete.WithPredictor("path", complete.PredictFiles("*")),
	)

	if ctx, err = parser.Parse(os.Args[1:]); err != nil {
		commandutils.LogCause(err)
		shellCli.Shutdown()
		os.Exit(1)
	}

	if err = commandutils.LogCause(ctx.Run()); err != nil {
		shellCli.Shutdown()
	}

	shellCli.Cleanup.Wait()
	if err != nil {
		os.Exit(1)
	}
}
