package main

import (
	"log"

	"github.com/james-lawrence/safedrain/cmd/safedrain/cmdopts"
	"github.com/james-lawrence/safedrain/internal/errorsx"
	"github.com/pkg/errors"
)

type cmdRegister struct {
	cmdopts.Cluster
	LoadBalancer string `arg:"" help:"load balancer to register with"`
}

func (t cmdRegister) Run(global *cmdopts.Global) (err error) {
	defer global.Shutdown()

	env, err := bootstrap(global.Context, global, t.Cluster)
	if err != nil {
		return err
	}

	c := controller(env, t.Cluster)
	if c.Suppressed() {
		env.debug.Println("registration suppressed, sentinel present:", t.Sentinel)
		return nil
	}

	healthy, err := c.Register(global.Context, env.instance, t.LoadBalancer, env.ident.LoadBalancer)
	if err != nil {
		return err
	}

	if !healthy {
		return errorsx.UserFriendly(errors.Errorf("%s did not reach InService on %s within the registration window", env.instance, t.LoadBalancer))
	}

	log.Println("registered", env.instance, "with", t.LoadBalancer)
	return nil
}
