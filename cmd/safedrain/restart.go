package main

import (
	"log"

	"github.com/james-lawrence/safedrain/cmd/safedrain/cmdopts"
	"github.com/james-lawrence/safedrain/coordinator"
	"github.com/james-lawrence/safedrain/internal/errorsx"
	"github.com/james-lawrence/safedrain/quorum"
	"github.com/james-lawrence/safedrain/systemd"
	"github.com/pkg/errors"
)

type cmdRestart struct {
	cmdopts.Cluster
	cmdopts.Quorum
	Service      string `arg:"" help:"systemd unit to restart"`
	LoadBalancer string `arg:"" optional:"" help:"load balancer to re-register with, discovered or guessed when omitted"`
}

func (t cmdRestart) Run(global *cmdopts.Global) (err error) {
	defer global.Shutdown()

	env, err := bootstrap(global.Context, global, t.Cluster)
	if err != nil {
		return err
	}

	restarter, err := systemd.Connect(global.Context, systemd.OptionDebug(env.debug))
	if err != nil {
		return err
	}
	defer restarter.Close()

	o, err := coordinator.New(
		env.instance,
		env.ident,
		env.probe,
		quorum.NewEvaluator(t.Fraction, t.Minimum, env.probe, quorum.EvaluatorOptionDebug(env.debug)),
		controller(env, t.Cluster),
		restarter,
		coordinator.OptionDebug(env.debug),
	).Run(global.Context, t.Service, t.LoadBalancer)

	if err != nil {
		return err
	}

	if !o.Success {
		return errorsx.UserFriendly(errors.Errorf(
			"restart of %s failed: deregistered %t restarted %t reregistered %t",
			t.Service, o.Deregistered, o.Restarted, o.Reregistered,
		))
	}

	log.Println("restart complete", t.Service)
	return nil
}
