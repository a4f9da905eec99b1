// Package coordinator sequences a quorum gated restart: membership check,
// quorum gate, deregistration with drain, service restart, re-registration
// with health confirmation. an instance is never removed from service without
// confirming the pool tolerates the loss, and a run is never reported
// successful unless the instance ended up back InService.
package coordinator

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/james-lawrence/safedrain"
	"github.com/james-lawrence/safedrain/balancer"
	"github.com/james-lawrence/safedrain/cluster"
	"github.com/james-lawrence/safedrain/quorum"
)

// Outcome built incrementally as the run progresses, the final value is the
// reported result of the process.
type Outcome struct {
	Deregistered bool
	Restarted    bool
	Reregistered bool
	Success      bool
}

// Prober membership reads used to locate the instance.
type Prober interface {
	CurrentMembership(ctx context.Context, instance string) (*balancer.Target, error)
	Health(ctx context.Context, name string, instances ...string) ([]balancer.HealthRecord, error)
}

// Gate quorum evaluation.
type Gate interface {
	Evaluate(ctx context.Context, ident cluster.Identity, target balancer.Target) (quorum.Decision, error)
}

// Membership write transitions.
type Membership interface {
	Deregister(ctx context.Context, name string, instance string) (bool, error)
	Register(ctx context.Context, instance string, name string, guess string) (bool, error)
}

// Restarter the local service restart collaborator, invoked at most once per
// run.
type Restarter interface {
	Restart(ctx context.Context, unit string) error
}

type state int

const (
	idle state = iota
	checkMembership
	quorumGate
	deregistering
	restarting
	registering
	done
)

// Option ...
type Option func(*Coordinator)

// OptionQuorumAttempts override the quorum evaluation ceiling and the pause
// between evaluations.
func OptionQuorumAttempts(attempts int, delay time.Duration) Option {
	return func(c *Coordinator) {
		c.quorumAttempts = attempts
		c.quorumDelay = delay
	}
}

// OptionDebug diagnostic logger for the coordinator.
func OptionDebug(l *log.Logger) Option {
	return func(c *Coordinator) {
		c.debug = l
	}
}

// New a coordinator for the given instance.
func New(instance string, ident cluster.Identity, probe Prober, gate Gate, membership Membership, restarter Restarter, options ...Option) Coordinator {
	c := Coordinator{
		instance:       instance,
		ident:          ident,
		probe:          probe,
		gate:           gate,
		membership:     membership,
		restarter:      restarter,
		quorumAttempts: safedrain.DefaultQuorumAttempts,
		quorumDelay:    safedrain.DefaultQuorumDelay,
		debug:          log.New(io.Discard, "", 0),
	}

	for _, opt := range options {
		opt(&c)
	}

	return c
}

// Coordinator the top level state machine. a fresh coordinator is built per
// invocation, no state survives the process.
type Coordinator struct {
	instance       string
	ident          cluster.Identity
	probe          Prober
	gate           Gate
	membership     Membership
	restarter      Restarter
	quorumAttempts int
	quorumDelay    time.Duration
	debug          *log.Logger
}

// Run executes the restart sequence for the named service unit. an empty
// service skips the restart itself, re-registration still runs. the explicit
// target overrides the discovered or guessed load balancer for registration.
// boolean failures, quorum never holding or a transition timing out, yield a
// failed Outcome without an error.
func (t Coordinator) Run(ctx context.Context, service string, target string) (o Outcome, err error) {
	var (
		current *balancer.Target
	)

	for s := idle; s != done; {
		switch s {
		case idle:
			s = checkMembership
		case checkMembership:
			if current, err = t.probe.CurrentMembership(ctx, t.instance); err != nil {
				return o, err
			}

			switch {
			case current == nil:
				// nothing to drain, straight to the restart.
				t.debug.Println("instance is not registered with any load balancer")
				s = restarting
			case !t.inservice(ctx, *current):
				// registered but already out of service, nothing to drain and
				// no quorum pass to spend on a restart. recover the membership.
				t.debug.Println("instance is not in service on", current.Name)
				s = registering
			default:
				s = quorumGate
			}
		case quorumGate:
			var (
				passed bool
			)

			if passed, err = t.awaitQuorum(ctx, *current); err != nil {
				return o, err
			}

			if !passed {
				log.Printf("quorum never held after %d attempts, refusing to deregister %s\n", t.quorumAttempts, t.instance)
				return o, nil
			}

			s = deregistering
		case deregistering:
			var (
				drained bool
			)

			if drained, err = t.membership.Deregister(ctx, current.Name, t.instance); err != nil {
				return o, err
			}

			if !drained {
				log.Println("drain did not complete within the timeout, aborting")
				return o, nil
			}

			o.Deregistered = true
			s = restarting
		case restarting:
			if service == "" {
				t.debug.Println("no restart requested")
				s = registering
				continue
			}

			if err = t.restarter.Restart(ctx, service); err != nil {
				return o, err
			}

			o.Restarted = true
			s = registering
		case registering:
			var (
				healthy bool
			)

			name := target
			if name == "" && current != nil {
				name = current.Name
			}

			if healthy, err = t.membership.Register(ctx, t.instance, name, t.ident.LoadBalancer); err != nil {
				return o, err
			}

			if !healthy {
				log.Println("instance did not reach InService within the registration window")
				return o, nil
			}

			o.Reregistered = true
			o.Success = true
			s = done
		}
	}

	return o, nil
}

// inservice reports whether the instance is currently InService on the
// target. health read failures here are treated as not in service, the
// registration path recovers either way.
func (t Coordinator) inservice(ctx context.Context, target balancer.Target) bool {
	records, err := t.probe.Health(ctx, target.Name, t.instance)
	if err != nil {
		t.debug.Println("health check failed, assuming not in service:", err)
		return false
	}

	for _, r := range records {
		if r.InstanceID == t.instance {
			return r.State == balancer.InService
		}
	}

	return false
}

// awaitQuorum evaluates quorum up to the attempt ceiling with a fixed pause
// between evaluations, each against a fresh fleet snapshot.
func (t Coordinator) awaitQuorum(ctx context.Context, target balancer.Target) (bool, error) {
	for attempt := 0; attempt < t.quorumAttempts; attempt++ {
		d, err := t.gate.Evaluate(ctx, t.ident, target)
		if err != nil {
			return false, err
		}

		if d.Met {
			return true, nil
		}

		log.Printf("quorum not met: healthy %d of fleet %d (%.2f)\n", d.Healthy, d.FleetSize, d.Fraction)

		if attempt == t.quorumAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.quorumDelay):
		}
	}

	return false, nil
}
