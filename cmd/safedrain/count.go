package main

import (
	"fmt"

	"github.com/james-lawrence/safedrain/balancer"
	"github.com/james-lawrence/safedrain/cmd/safedrain/cmdopts"
	"github.com/james-lawrence/safedrain/internal/errorsx"
	"github.com/james-lawrence/safedrain/quorum"
	"github.com/pkg/errors"
)

type cmdCount struct {
	cmdopts.Cluster
	cmdopts.Quorum
	LoadBalancer string `arg:"" optional:"" help:"load balancer to evaluate, discovered when omitted"`
}

func (t cmdCount) Run(global *cmdopts.Global) (err error) {
	var (
		target balancer.Target
	)

	defer global.Shutdown()

	env, err := bootstrap(global.Context, global, t.Cluster)
	if err != nil {
		return err
	}

	if t.LoadBalancer != "" {
		if target, err = env.probe.LookupByName(global.Context, t.LoadBalancer); err != nil {
			return err
		}
	} else {
		current, cause := env.probe.CurrentMembership(global.Context, env.instance)
		if cause != nil {
			return cause
		}

		if current == nil {
			return errorsx.UserFriendly(errors.Errorf("%s is not registered with any load balancer, name one explicitly", env.instance))
		}

		target = *current
	}

	d, err := quorum.NewEvaluator(t.Fraction, t.Minimum, env.probe, quorum.EvaluatorOptionDebug(env.debug)).Evaluate(global.Context, env.ident, target)
	if err != nil {
		return err
	}

	fmt.Printf("%s: fleet %d healthy %d fraction %.2f quorum %t\n", target.Name, d.FleetSize, d.Healthy, d.Fraction, d.Met)

	if !d.Met {
		return errorsx.UserFriendly(errors.Errorf("%s does not hold quorum", target.Name))
	}

	return nil
}
