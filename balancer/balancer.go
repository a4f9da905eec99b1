// Package balancer defines the load balancer capabilities consumed by the
// probes and membership controllers, independent of the provider SDK.
package balancer

import (
	"context"
	"strings"

	"github.com/james-lawrence/safedrain/internal/errorsx"
)

// State reported by the load balancer for a member instance.
type State string

const (
	// InService the member is eligible to receive traffic.
	InService State = "InService"
	// OutOfService the member is not receiving traffic.
	OutOfService State = "OutOfService"
	// Unknown the load balancer could not determine the member state.
	Unknown State = "Unknown"
)

const (
	// ErrTargetNotFound the named load balancer does not exist.
	ErrTargetNotFound = errorsx.String("load balancer not found")
	// ErrEmptyFleet no running instances matched the fleet tags. a zero size
	// fleet indicates a tagging or query bug upstream, not a quorum state.
	ErrEmptyFleet = errorsx.String("no running instances matched the fleet tags")
)

// drainingMarker text the provider embeds in the health description while an
// instance finishes in flight requests. there is no structured field for it,
// the free text match is deliberate and isolated here.
const drainingMarker = "deregistration currently in progress"

// Target a load balancer and the instances registered with it.
type Target struct {
	Name      string
	Instances []string
}

// Registered reports whether the instance is registered with the target.
func (t Target) Registered(instance string) bool {
	for _, id := range t.Instances {
		if id == instance {
			return true
		}
	}

	return false
}

// HealthRecord per instance health as reported by the load balancer.
type HealthRecord struct {
	InstanceID  string
	State       State
	Description string
}

// Draining reports whether the instance is being removed from traffic while
// connections complete. detected from the description text, see drainingMarker.
func (t HealthRecord) Draining() bool {
	return strings.Contains(strings.ToLower(t.Description), drainingMarker)
}

// Healthy reports whether the instance counts towards quorum.
func (t HealthRecord) Healthy() bool {
	return t.State == InService && !t.Draining()
}

// API the provider operations required by this tool. implementations must
// make mutations safe to reissue, registering an already registered instance
// or deregistering an absent one cannot fail hard.
type API interface {
	// LoadBalancers describes the named load balancers, or every load
	// balancer when no names are given.
	LoadBalancers(ctx context.Context, names ...string) ([]Target, error)
	// InstanceHealth reports the health of the given instances as seen by
	// the named load balancer.
	InstanceHealth(ctx context.Context, name string, instances ...string) ([]HealthRecord, error)
	// Register adds the instance to the named load balancer.
	Register(ctx context.Context, name string, instance string) error
	// Deregister removes the instance from the named load balancer.
	Deregister(ctx context.Context, name string, instance string) error
	// RunningInstances counts running instances tagged with the domain and
	// role pair.
	RunningInstances(ctx context.Context, domain string, role string) (int, error)
	// Transient classifies provider errors worth retrying, rate limits and
	// momentary failures, as opposed to fatal responses.
	Transient(err error) bool
}
