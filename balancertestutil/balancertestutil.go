// Package balancertestutil provides a scriptable balancer.API for tests.
package balancertestutil

import (
	"context"

	"github.com/james-lawrence/safedrain/balancer"
	"github.com/james-lawrence/safedrain/internal/errorsx"
	"github.com/pkg/errors"
)

// ErrTransient stand in for a retryable provider failure.
const ErrTransient = errorsx.String("transient provider error")

// ErrFatal stand in for a non retryable provider failure.
const ErrFatal = errorsx.String("fatal provider error")

// NewAPI a fake with empty defaults, individual operations are overridden by
// assigning the matching func field.
func NewAPI() *API {
	return &API{}
}

// API scriptable implementation of balancer.API. nil funcs fall back to
// benign defaults.
type API struct {
	LoadBalancersFunc    func(ctx context.Context, names ...string) ([]balancer.Target, error)
	InstanceHealthFunc   func(ctx context.Context, name string, instances ...string) ([]balancer.HealthRecord, error)
	RegisterFunc         func(ctx context.Context, name string, instance string) error
	DeregisterFunc       func(ctx context.Context, name string, instance string) error
	RunningInstancesFunc func(ctx context.Context, domain string, role string) (int, error)
}

func (t *API) LoadBalancers(ctx context.Context, names ...string) ([]balancer.Target, error) {
	if t.LoadBalancersFunc == nil {
		return nil, nil
	}

	return t.LoadBalancersFunc(ctx, names...)
}

func (t *API) InstanceHealth(ctx context.Context, name string, instances ...string) ([]balancer.HealthRecord, error) {
	if t.InstanceHealthFunc == nil {
		return nil, nil
	}

	return t.InstanceHealthFunc(ctx, name, instances...)
}

func (t *API) Register(ctx context.Context, name string, instance string) error {
	if t.RegisterFunc == nil {
		return nil
	}

	return t.RegisterFunc(ctx, name, instance)
}

func (t *API) Deregister(ctx context.Context, name string, instance string) error {
	if t.DeregisterFunc == nil {
		return nil
	}

	return t.DeregisterFunc(ctx, name, instance)
}

func (t *API) RunningInstances(ctx context.Context, domain string, role string) (int, error) {
	if t.RunningInstancesFunc == nil {
		return 0, nil
	}

	return t.RunningInstancesFunc(ctx, domain, role)
}

func (t *API) Transient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// StaticHealth health records that never change, keyed by load balancer name.
func StaticHealth(records map[string][]balancer.HealthRecord) func(ctx context.Context, name string, instances ...string) ([]balancer.HealthRecord, error) {
	return func(ctx context.Context, name string, instances ...string) ([]balancer.HealthRecord, error) {
		return records[name], nil
	}
}

// StaticTargets load balancers that never change, honoring the name filter.
func StaticTargets(targets ...balancer.Target) func(ctx context.Context, names ...string) ([]balancer.Target, error) {
	return func(ctx context.Context, names ...string) (matched []balancer.Target, err error) {
		if len(names) == 0 {
			return targets, nil
		}

		for _, target := range targets {
			for _, name := range names {
				if target.Name == name {
					matched = append(matched, target)
				}
			}
		}

		return matched, nil
	}
}
