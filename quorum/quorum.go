// Package quorum decides whether a load balancer pool can tolerate losing
// another member.
package quorum

import (
	"context"
	"io"
	"log"

	"github.com/james-lawrence/safedrain/balancer"
	"github.com/james-lawrence/safedrain/cluster"
)

// Decision snapshot of a quorum evaluation, derived and never persisted. the
// fleet size may go stale within seconds of being read, evaluations are made
// against a fresh snapshot immediately before acting on them.
type Decision struct {
	FleetSize int
	Healthy   int
	Fraction  float64
	Met       bool
}

// Prober fleet and health reads required to evaluate quorum.
type Prober interface {
	Health(ctx context.Context, name string, instances ...string) ([]balancer.HealthRecord, error)
	FleetSize(ctx context.Context, domain string, role string) (int, error)
}

// EvaluatorOption ...
type EvaluatorOption func(*Evaluator)

// EvaluatorOptionDebug diagnostic logger for the evaluator.
func EvaluatorOptionDebug(l *log.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.debug = l
	}
}

// NewEvaluator an evaluator enforcing the healthy fraction and absolute floor.
func NewEvaluator(fraction float64, minimum int, probe Prober, options ...EvaluatorOption) Evaluator {
	e := Evaluator{
		fraction: fraction,
		minimum:  minimum,
		probe:    probe,
		debug:    log.New(io.Discard, "", 0),
	}

	for _, opt := range options {
		opt(&e)
	}

	return e
}

// Evaluator computes quorum decisions for a load balancer pool.
type Evaluator struct {
	fraction float64
	minimum  int
	probe    Prober
	debug    *log.Logger
}

// Evaluate fetches a fresh fleet and health snapshot and reports whether the
// pool holds quorum. quorum holds iff the healthy count meets the absolute
// floor and the healthy proportion of the fleet meets the fraction.
func (t Evaluator) Evaluate(ctx context.Context, ident cluster.Identity, target balancer.Target) (d Decision, err error) {
	var (
		records []balancer.HealthRecord
	)

	if d.FleetSize, err = t.probe.FleetSize(ctx, ident.Domain, ident.Role); err != nil {
		return d, err
	}

	if records, err = t.probe.Health(ctx, target.Name, target.Instances...); err != nil {
		return d, err
	}

	for _, r := range records {
		if r.Healthy() {
			d.Healthy++
		}
	}

	d.Fraction = float64(d.Healthy) / float64(d.FleetSize)
	d.Met = d.Healthy >= t.minimum && d.Fraction >= t.fraction

	t.debug.Printf("quorum %s: healthy %d of fleet %d (%.2f, required %.2f with floor %d) met %t\n", target.Name, d.Healthy, d.FleetSize, d.Fraction, t.fraction, t.minimum, d.Met)

	return d, nil
}
