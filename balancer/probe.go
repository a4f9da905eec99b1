package balancer

import (
	"context"
	"io"
	"log"

	"github.com/james-lawrence/safedrain"
	"github.com/james-lawrence/safedrain/backoff"
	"github.com/pkg/errors"
)

// ProbeOption ...
type ProbeOption func(*Probe)

// ProbeOptionRetry override the retry ceiling and delay for provider reads.
func ProbeOptionRetry(attempts int, delay backoff.Strategy) ProbeOption {
	return func(p *Probe) {
		p.attempts = attempts
		p.delay = delay
	}
}

// ProbeOptionDebug diagnostic logger for the probe.
func ProbeOptionDebug(l *log.Logger) ProbeOption {
	return func(p *Probe) {
		p.debug = l
	}
}

// NewProbe a probe reading membership and health through the provider api.
func NewProbe(api API, options ...ProbeOption) Probe {
	p := Probe{
		api:      api,
		attempts: safedrain.DefaultRequestAttempts,
		delay:    backoff.Constant(safedrain.DefaultRequestBackoff),
		debug:    log.New(io.Discard, "", 0),
	}

	for _, opt := range options {
		opt(&p)
	}

	return p
}

// Probe reads membership and health information from the provider, retrying
// transient failures up to a fixed ceiling with a fixed delay.
type Probe struct {
	api      API
	attempts int
	delay    backoff.Strategy
	debug    *log.Logger
}

// CurrentMembership scans every load balancer for the instance and returns
// the first holding it, nil when none do. assumes single membership, an
// instance registered with multiple load balancers only ever reports the
// first match.
func (t Probe) CurrentMembership(ctx context.Context, instance string) (m *Target, err error) {
	err = backoff.Retry(ctx, t.attempts, t.delay, t.api.Transient, func() error {
		var (
			cause   error
			targets []Target
		)

		m = nil
		if targets, cause = t.api.LoadBalancers(ctx); cause != nil {
			return cause
		}

		for _, target := range targets {
			if target.Registered(instance) {
				found := target
				m = &found
				return nil
			}
		}

		t.debug.Println("instance", instance, "is not registered with any of the", len(targets), "load balancers")
		return nil
	})

	return m, err
}

// LookupByName describes the named load balancer, ErrTargetNotFound when the
// provider reports none.
func (t Probe) LookupByName(ctx context.Context, name string) (m Target, err error) {
	err = backoff.Retry(ctx, t.attempts, t.delay, t.api.Transient, func() error {
		var (
			cause   error
			targets []Target
		)

		if targets, cause = t.api.LoadBalancers(ctx, name); cause != nil {
			return cause
		}

		if len(targets) == 0 {
			return errors.Wrap(ErrTargetNotFound, name)
		}

		m = targets[0]
		return nil
	})

	return m, err
}

// Health reports the health records for the given instances as seen by the
// named load balancer.
func (t Probe) Health(ctx context.Context, name string, instances ...string) (records []HealthRecord, err error) {
	err = backoff.Retry(ctx, t.attempts, t.delay, t.api.Transient, func() (cause error) {
		records, cause = t.api.InstanceHealth(ctx, name, instances...)
		return cause
	})

	return records, err
}

// FleetSize counts the running instances tagged with the domain and role
// pair, ErrEmptyFleet when there are none.
func (t Probe) FleetSize(ctx context.Context, domain string, role string) (n int, err error) {
	err = backoff.Retry(ctx, t.attempts, t.delay, t.api.Transient, func() (cause error) {
		n, cause = t.api.RunningInstances(ctx, domain, role)
		return cause
	})

	if err != nil {
		return n, err
	}

	if n == 0 {
		return n, errors.Wrapf(ErrEmptyFleet, "domain %s role %s", domain, role)
	}

	return n, nil
}
