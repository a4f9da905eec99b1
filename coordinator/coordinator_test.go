package coordinator_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	. "github.com/james-lawrence/safedrain/coordinator"
	"github.com/james-lawrence/safedrain/balancer"
	"github.com/james-lawrence/safedrain/cluster"
	"github.com/james-lawrence/safedrain/quorum"
)

type fakeProbe struct {
	membership *balancer.Target
	err        error
	health     []balancer.HealthRecord
	healthErr  error
}

func (t fakeProbe) CurrentMembership(ctx context.Context, instance string) (*balancer.Target, error) {
	return t.membership, t.err
}

func (t fakeProbe) Health(ctx context.Context, name string, instances ...string) ([]balancer.HealthRecord, error) {
	return t.health, t.healthErr
}

type fakeGate struct {
	decisions []quorum.Decision
	err       error
	evaluated int
}

func (t *fakeGate) Evaluate(ctx context.Context, ident cluster.Identity, target balancer.Target) (d quorum.Decision, err error) {
	if t.err != nil {
		return d, t.err
	}

	d = t.decisions[len(t.decisions)-1]
	if t.evaluated < len(t.decisions) {
		d = t.decisions[t.evaluated]
	}
	t.evaluated++

	return d, nil
}

type fakeMembership struct {
	deregistered  int
	registered    int
	drainOutcome  bool
	drainErr      error
	healthOutcome bool
	registerErr   error
	registerName  string
}

func (t *fakeMembership) Deregister(ctx context.Context, name string, instance string) (bool, error) {
	t.deregistered++
	return t.drainOutcome, t.drainErr
}

func (t *fakeMembership) Register(ctx context.Context, instance string, name string, guess string) (bool, error) {
	t.registered++
	if t.registerName = name; name == "" {
		t.registerName = guess
	}
	return t.healthOutcome, t.registerErr
}

type fakeRestarter struct {
	restarted int
	err       error
}

func (t *fakeRestarter) Restart(ctx context.Context, unit string) error {
	t.restarted++
	return t.err
}

func inservice(id string) []balancer.HealthRecord {
	return []balancer.HealthRecord{{InstanceID: id, State: balancer.InService, Description: "N/A"}}
}

var (
	ident = cluster.Identity{Domain: "prod.example.com", Role: "webapp", LoadBalancer: "prod-example-com"}
	web   = balancer.Target{Name: "web", Instances: []string{"i-aaa", "i-bbb"}}
	pass  = quorum.Decision{FleetSize: 10, Healthy: 7, Fraction: 0.7, Met: true}
	fail  = quorum.Decision{FleetSize: 10, Healthy: 6, Fraction: 0.6, Met: false}
)

func quickCoordinator(probe Prober, gate Gate, m Membership, r Restarter) Coordinator {
	return New("i-aaa", ident, probe, gate, m, r, OptionQuorumAttempts(5, 0))
}

var _ = Describe("Coordinator", func() {
	It("should deregister, restart and re-register when quorum holds", func() {
		m := &fakeMembership{drainOutcome: true, healthOutcome: true}
		r := &fakeRestarter{}
		o, err := quickCoordinator(
			fakeProbe{membership: &web, health: inservice("i-aaa")},
			&fakeGate{decisions: []quorum.Decision{pass}},
			m,
			r,
		).Run(context.Background(), "nginx.service", "")

		Expect(err).To(Succeed())
		Expect(o).To(Equal(Outcome{Deregistered: true, Restarted: true, Reregistered: true, Success: true}))
		Expect(m.deregistered).To(Equal(1))
		Expect(r.restarted).To(Equal(1))
		Expect(m.registerName).To(Equal("web"))
	})

	It("should report failure without deregistering when quorum never holds", func() {
		gate := &fakeGate{decisions: []quorum.Decision{fail}}
		m := &fakeMembership{drainOutcome: true, healthOutcome: true}
		r := &fakeRestarter{}
		o, err := quickCoordinator(fakeProbe{membership: &web, health: inservice("i-aaa")}, gate, m, r).Run(context.Background(), "nginx.service", "")

		Expect(err).To(Succeed())
		Expect(o.Success).To(BeFalse())
		Expect(gate.evaluated).To(Equal(5))
		Expect(m.deregistered).To(Equal(0))
		Expect(r.restarted).To(Equal(0))
	})

	It("should proceed once a later quorum evaluation holds", func() {
		gate := &fakeGate{decisions: []quorum.Decision{fail, fail, pass}}
		m := &fakeMembership{drainOutcome: true, healthOutcome: true}
		o, err := quickCoordinator(fakeProbe{membership: &web, health: inservice("i-aaa")}, gate, m, &fakeRestarter{}).Run(context.Background(), "nginx.service", "")

		Expect(err).To(Succeed())
		Expect(o.Success).To(BeTrue())
		Expect(gate.evaluated).To(Equal(3))
	})

	It("should skip quorum and deregistration for an unregistered instance", func() {
		gate := &fakeGate{decisions: []quorum.Decision{fail}}
		m := &fakeMembership{healthOutcome: true}
		r := &fakeRestarter{}
		o, err := quickCoordinator(fakeProbe{membership: nil}, gate, m, r).Run(context.Background(), "nginx.service", "")

		Expect(err).To(Succeed())
		Expect(o.Success).To(BeTrue())
		Expect(o.Deregistered).To(BeFalse())
		Expect(gate.evaluated).To(Equal(0))
		Expect(m.deregistered).To(Equal(0))
		Expect(r.restarted).To(Equal(1))
		Expect(m.registerName).To(Equal("prod-example-com"))
	})

	It("should re-register without restarting when already out of service", func() {
		gate := &fakeGate{decisions: []quorum.Decision{pass}}
		m := &fakeMembership{healthOutcome: true}
		r := &fakeRestarter{}
		health := []balancer.HealthRecord{{InstanceID: "i-aaa", State: balancer.OutOfService}}
		o, err := quickCoordinator(fakeProbe{membership: &web, health: health}, gate, m, r).Run(context.Background(), "nginx.service", "")

		Expect(err).To(Succeed())
		Expect(o.Success).To(BeTrue())
		Expect(o.Deregistered).To(BeFalse())
		Expect(o.Restarted).To(BeFalse())
		Expect(gate.evaluated).To(Equal(0))
		Expect(m.deregistered).To(Equal(0))
		// a restart is only spent after a quorum pass or for an unregistered
		// instance, out of service membership goes straight to recovery.
		Expect(r.restarted).To(Equal(0))
		Expect(m.registerName).To(Equal("web"))
	})

	It("should abort without restarting when the drain times out", func() {
		m := &fakeMembership{drainOutcome: false}
		r := &fakeRestarter{}
		o, err := quickCoordinator(fakeProbe{membership: &web, health: inservice("i-aaa")}, &fakeGate{decisions: []quorum.Decision{pass}}, m, r).Run(context.Background(), "nginx.service", "")

		Expect(err).To(Succeed())
		Expect(o.Success).To(BeFalse())
		Expect(o.Deregistered).To(BeFalse())
		Expect(r.restarted).To(Equal(0))
	})

	It("should fail without registering when the restart errors", func() {
		m := &fakeMembership{drainOutcome: true, healthOutcome: true}
		r := &fakeRestarter{err: errors.New("exit status 1")}
		o, err := quickCoordinator(fakeProbe{membership: &web, health: inservice("i-aaa")}, &fakeGate{decisions: []quorum.Decision{pass}}, m, r).Run(context.Background(), "nginx.service", "")

		Expect(err).To(MatchError("exit status 1"))
		Expect(o.Deregistered).To(BeTrue())
		Expect(o.Restarted).To(BeFalse())
		Expect(o.Success).To(BeFalse())
		Expect(m.registered).To(Equal(0))
	})

	It("should fail overall when re-registration times out after a successful restart", func() {
		m := &fakeMembership{drainOutcome: true, healthOutcome: false}
		o, err := quickCoordinator(fakeProbe{membership: &web, health: inservice("i-aaa")}, &fakeGate{decisions: []quorum.Decision{pass}}, m, &fakeRestarter{}).Run(context.Background(), "nginx.service", "")

		Expect(err).To(Succeed())
		Expect(o.Restarted).To(BeTrue())
		Expect(o.Reregistered).To(BeFalse())
		Expect(o.Success).To(BeFalse())
	})

	It("should skip the restart for an empty service name", func() {
		m := &fakeMembership{drainOutcome: true, healthOutcome: true}
		r := &fakeRestarter{}
		o, err := quickCoordinator(fakeProbe{membership: &web, health: inservice("i-aaa")}, &fakeGate{decisions: []quorum.Decision{pass}}, m, r).Run(context.Background(), "", "")

		Expect(err).To(Succeed())
		Expect(o.Success).To(BeTrue())
		Expect(o.Restarted).To(BeFalse())
		Expect(r.restarted).To(Equal(0))
	})

	It("should prefer the explicit registration target", func() {
		m := &fakeMembership{drainOutcome: true, healthOutcome: true}
		o, err := quickCoordinator(fakeProbe{membership: &web, health: inservice("i-aaa")}, &fakeGate{decisions: []quorum.Decision{pass}}, m, &fakeRestarter{}).Run(context.Background(), "nginx.service", "web-blue")

		Expect(err).To(Succeed())
		Expect(o.Success).To(BeTrue())
		Expect(m.registerName).To(Equal("web-blue"))
	})

	It("should propagate membership discovery failures before any mutation", func() {
		m := &fakeMembership{}
		_, err := quickCoordinator(fakeProbe{err: errors.New("boom")}, &fakeGate{}, m, &fakeRestarter{}).Run(context.Background(), "nginx.service", "")

		Expect(err).To(MatchError("boom"))
		Expect(m.deregistered).To(Equal(0))
		Expect(m.registered).To(Equal(0))
	})
})
