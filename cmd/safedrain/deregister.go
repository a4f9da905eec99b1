package main

import (
	"log"

	"github.com/james-lawrence/safedrain/cmd/safedrain/cmdopts"
	"github.com/james-lawrence/safedrain/internal/errorsx"
	"github.com/pkg/errors"
)

type cmdDeregister struct {
	cmdopts.Cluster
}

func (t cmdDeregister) Run(global *cmdopts.Global) (err error) {
	defer global.Shutdown()

	env, err := bootstrap(global.Context, global, t.Cluster)
	if err != nil {
		return err
	}

	current, err := env.probe.CurrentMembership(global.Context, env.instance)
	if err != nil {
		return err
	}

	if current == nil {
		log.Println("instance is not registered with any load balancer, nothing to do")
		return nil
	}

	drained, err := controller(env, t.Cluster).Deregister(global.Context, current.Name, env.instance)
	if err != nil {
		return err
	}

	if !drained {
		return errorsx.UserFriendly(errors.Errorf("drain of %s from %s did not complete within the timeout", env.instance, current.Name))
	}

	log.Println("deregistered", env.instance, "from", current.Name)
	return nil
}
