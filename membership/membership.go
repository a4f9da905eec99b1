// Package membership performs the register and deregister transitions
// against the load balancer and confirms them by polling instance health.
package membership

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/james-lawrence/safedrain"
	"github.com/james-lawrence/safedrain/backoff"
	"github.com/james-lawrence/safedrain/balancer"
	"github.com/james-lawrence/safedrain/internal/fsx"
	"github.com/pkg/errors"
)

// Prober lookup used to resolve registration targets.
type Prober interface {
	LookupByName(ctx context.Context, name string) (balancer.Target, error)
}

// Option ...
type Option func(*Controller)

// OptionRetry override the request retry ceiling and delay.
func OptionRetry(attempts int, delay backoff.Strategy) Option {
	return func(c *Controller) {
		c.attempts = attempts
		c.delay = delay
	}
}

// OptionPollInterval override the delay between health polls.
func OptionPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.pollInterval = d
	}
}

// OptionDrainTimeout override the window for a drain to complete.
func OptionDrainTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.drainTimeout = d
	}
}

// OptionRegisterTimeout override the window for an instance to reach InService.
func OptionRegisterTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.registerTimeout = d
	}
}

// OptionSentinel override the path which suppresses registration.
func OptionSentinel(path string) Option {
	return func(c *Controller) {
		c.sentinel = path
	}
}

// OptionDebug diagnostic logger for the controller.
func OptionDebug(l *log.Logger) Option {
	return func(c *Controller) {
		c.debug = l
	}
}

// New a controller writing membership transitions through the provider api.
func New(api balancer.API, probe Prober, options ...Option) Controller {
	c := Controller{
		api:             api,
		probe:           probe,
		attempts:        safedrain.DefaultRequestAttempts,
		delay:           backoff.Constant(safedrain.DefaultRequestBackoff),
		pollInterval:    safedrain.DefaultPollInterval,
		drainTimeout:    safedrain.DefaultDrainTimeout,
		registerTimeout: safedrain.DefaultRegisterTimeout,
		sentinel:        safedrain.DefaultSentinelPath,
		debug:           log.New(io.Discard, "", 0),
	}

	for _, opt := range options {
		opt(&c)
	}

	return c
}

// Controller issues membership mutations and awaits their confirmation.
// operations report timeouts as a false outcome rather than an error so the
// caller decides the overall result.
type Controller struct {
	api             balancer.API
	probe           Prober
	attempts        int
	delay           backoff.Strategy
	pollInterval    time.Duration
	drainTimeout    time.Duration
	registerTimeout time.Duration
	sentinel        string
	debug           *log.Logger
}

// Deregister removes the instance from the named load balancer and polls
// until it reports OutOfService or the drain window elapses. reissuing the
// request for an already absent instance succeeds immediately.
func (t Controller) Deregister(ctx context.Context, name string, instance string) (ok bool, err error) {
	err = backoff.Retry(ctx, t.attempts, t.delay, t.api.Transient, func() error {
		return t.api.Deregister(ctx, name, instance)
	})
	if err != nil {
		return false, errors.Wrapf(err, "deregister request failed: %s", name)
	}

	t.debug.Println("deregister requested, awaiting drain", name, instance)

	return t.await(ctx, name, instance, t.drainTimeout, func(r balancer.HealthRecord, found bool) bool {
		return !found || r.State == balancer.OutOfService
	})
}

// Suppressed reports whether the sentinel path currently disables
// registration.
func (t Controller) Suppressed() bool {
	return fsx.Exists(t.sentinel)
}

// Register adds the instance to the named load balancer, falling back to the
// guessed name when none is given, and polls until it reaches InService or
// the registration window elapses. presence of the sentinel path skips the
// operation entirely and reports success, an operational escape hatch for
// maintenance mode.
func (t Controller) Register(ctx context.Context, instance string, name string, guess string) (ok bool, err error) {
	var (
		target balancer.Target
	)

	if t.Suppressed() {
		t.debug.Println("sentinel present, skipping registration:", t.sentinel)
		return true, nil
	}

	if name == "" {
		name = guess
	}

	if target, err = t.probe.LookupByName(ctx, name); err != nil {
		return false, err
	}

	err = backoff.Retry(ctx, t.attempts, t.delay, t.api.Transient, func() error {
		return t.api.Register(ctx, target.Name, instance)
	})
	if err != nil {
		return false, errors.Wrapf(err, "register request failed: %s", target.Name)
	}

	t.debug.Println("register requested, awaiting health", target.Name, instance)

	return t.await(ctx, target.Name, instance, t.registerTimeout, func(r balancer.HealthRecord, found bool) bool {
		return found && r.Healthy()
	})
}

// await polls instance health until the predicate is satisfied or the window
// elapses. transient query failures are tolerated for the duration of the
// window, fatal ones propagate.
func (t Controller) await(ctx context.Context, name string, instance string, window time.Duration, done func(r balancer.HealthRecord, found bool) bool) (bool, error) {
	deadline := time.NewTimer(window)
	defer deadline.Stop()

	for {
		records, err := t.api.InstanceHealth(ctx, name, instance)
		switch {
		case err == nil:
			r, found := locate(records, instance)
			if done(r, found) {
				return true, nil
			}
		case t.api.Transient(err):
			t.debug.Println("tolerating transient health query failure:", err)
		default:
			return false, err
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			t.debug.Printf("%s did not transition within %s\n", instance, window)
			return false, nil
		case <-time.After(t.pollInterval):
		}
	}
}

func locate(records []balancer.HealthRecord, instance string) (r balancer.HealthRecord, found bool) {
	for _, r = range records {
		if r.InstanceID == instance {
			return r, true
		}
	}

	return r, false
}
