package quorum_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/james-lawrence/safedrain/quorum"
	"github.com/james-lawrence/safedrain/backoff"
	"github.com/james-lawrence/safedrain/balancer"
	"github.com/james-lawrence/safedrain/balancertestutil"
	"github.com/james-lawrence/safedrain/cluster"
)

func pool(name string, fleet int, healthy int, draining int, sick int) (*balancertestutil.API, balancer.Target) {
	var (
		ids     []string
		records []balancer.HealthRecord
	)

	mkid := func(i int) string { return string(rune('a'+i)) }

	n := 0
	for i := 0; i < healthy; i++ {
		records = append(records, balancer.HealthRecord{InstanceID: mkid(n), State: balancer.InService, Description: "N/A"})
		n++
	}
	for i := 0; i < draining; i++ {
		records = append(records, balancer.HealthRecord{InstanceID: mkid(n), State: balancer.InService, Description: "Instance deregistration currently in progress."})
		n++
	}
	for i := 0; i < sick; i++ {
		records = append(records, balancer.HealthRecord{InstanceID: mkid(n), State: balancer.OutOfService, Description: "Instance has failed health checks."})
		n++
	}

	for _, r := range records {
		ids = append(ids, r.InstanceID)
	}

	api := balancertestutil.NewAPI()
	api.InstanceHealthFunc = balancertestutil.StaticHealth(map[string][]balancer.HealthRecord{name: records})
	api.RunningInstancesFunc = func(ctx context.Context, domain string, role string) (int, error) {
		return fleet, nil
	}

	return api, balancer.Target{Name: name, Instances: ids}
}

func quickProbe(api *balancertestutil.API) balancer.Probe {
	return balancer.NewProbe(api, balancer.ProbeOptionRetry(1, backoff.Constant(time.Millisecond)))
}

var _ = Describe("Evaluator", func() {
	ident := cluster.Identity{Domain: "prod.example.com", Role: "webapp"}

	It("should hold at 7 healthy of a fleet of 10 with fraction 0.67", func() {
		api, target := pool("web", 10, 7, 0, 3)
		d, err := NewEvaluator(0.67, 1, quickProbe(api)).Evaluate(context.Background(), ident, target)
		Expect(err).To(Succeed())
		Expect(d.Met).To(BeTrue())
		Expect(d.Healthy).To(Equal(7))
		Expect(d.FleetSize).To(Equal(10))
		Expect(d.Fraction).To(BeNumerically("~", 0.7, 0.001))
	})

	It("should fail at 6 healthy of a fleet of 10 with fraction 0.67", func() {
		api, target := pool("web", 10, 6, 0, 4)
		d, err := NewEvaluator(0.67, 1, quickProbe(api)).Evaluate(context.Background(), ident, target)
		Expect(err).To(Succeed())
		Expect(d.Met).To(BeFalse())
		Expect(d.Fraction).To(BeNumerically("~", 0.6, 0.001))
	})

	It("should exclude draining members from the healthy count", func() {
		api, target := pool("web", 10, 6, 2, 2)
		d, err := NewEvaluator(0.67, 1, quickProbe(api)).Evaluate(context.Background(), ident, target)
		Expect(err).To(Succeed())
		Expect(d.Healthy).To(Equal(6))
		Expect(d.Met).To(BeFalse())
	})

	It("should enforce the absolute floor even when the fraction holds", func() {
		api, target := pool("web", 2, 2, 0, 0)
		d, err := NewEvaluator(0.5, 3, quickProbe(api)).Evaluate(context.Background(), ident, target)
		Expect(err).To(Succeed())
		Expect(d.Met).To(BeFalse())
	})

	It("should use true division for the fraction", func() {
		api, target := pool("web", 3, 2, 0, 1)
		d, err := NewEvaluator(0.66, 1, quickProbe(api)).Evaluate(context.Background(), ident, target)
		Expect(err).To(Succeed())
		// 2/3 would truncate to 0 with integer division.
		Expect(d.Fraction).To(BeNumerically("~", 0.6666, 0.001))
		Expect(d.Met).To(BeTrue())
	})

	It("should abort on an empty fleet regardless of health", func() {
		api, target := pool("web", 0, 5, 0, 0)
		_, err := NewEvaluator(0.67, 1, quickProbe(api)).Evaluate(context.Background(), ident, target)
		Expect(err).To(MatchError(balancer.ErrEmptyFleet))
	})
})
