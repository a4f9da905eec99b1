package main

import (
	"context"
	"log"

	"github.com/davecgh/go-spew/spew"
	"github.com/james-lawrence/safedrain"
	"github.com/james-lawrence/safedrain/awsx"
	"github.com/james-lawrence/safedrain/balancer"
	"github.com/james-lawrence/safedrain/cluster"
	"github.com/james-lawrence/safedrain/cmd/safedrain/cmdopts"
	"github.com/james-lawrence/safedrain/internal/envx"
	"github.com/james-lawrence/safedrain/internal/logx"
	"github.com/james-lawrence/safedrain/internal/systemx"
	"github.com/james-lawrence/safedrain/membership"
	"github.com/pkg/errors"
)

// environment the collaborators every command builds on, resolved once per
// run. identity failures abort here, before any state machine work.
type environment struct {
	instance string
	ident    cluster.Identity
	api      awsx.ELB
	probe    balancer.Probe
	debug    *log.Logger
}

func bootstrap(ctx context.Context, global *cmdopts.Global, c cmdopts.Cluster) (env environment, err error) {
	env.debug = logx.Maybe(global.Verbose)

	sess, identdoc, err := awsx.NewSession(ctx)
	if err != nil {
		return env, err
	}
	env.instance = identdoc.InstanceID

	fqdn, err := systemx.FQDN()
	if err != nil {
		return env, errors.Wrap(err, "unable to determine hostname")
	}

	if env.ident, err = cluster.Resolve(fqdn, c.Domains); err != nil {
		return env, err
	}

	env.api = awsx.NewELB(sess)
	env.probe = balancer.NewProbe(env.api, balancer.ProbeOptionDebug(env.debug))

	if global.Verbose {
		env.debug.Println("resolved identity", spew.Sdump(env.ident))
	}

	return env, nil
}

func controller(env environment, c cmdopts.Cluster) membership.Controller {
	return membership.New(
		env.api,
		env.probe,
		membership.OptionSentinel(c.Sentinel),
		membership.OptionPollInterval(envx.Duration(safedrain.DefaultPollInterval, safedrain.EnvPollInterval)),
		membership.OptionDrainTimeout(envx.Duration(safedrain.DefaultDrainTimeout, safedrain.EnvDrainTimeout)),
		membership.OptionRegisterTimeout(envx.Duration(safedrain.DefaultRegisterTimeout, safedrain.EnvRegisterTimeout)),
		membership.OptionDebug(env.debug),
	)
}
