// Package awsx adapts the classic elastic load balancing and ec2 APIs to the
// balancer capabilities consumed by the probes and controllers.
//
// requires the following permissions in aws:
// elasticloadbalancing:DescribeLoadBalancers
// elasticloadbalancing:DescribeInstanceHealth
// elasticloadbalancing:RegisterInstancesWithLoadBalancer
// elasticloadbalancing:DeregisterInstancesFromLoadBalancer
// ec2:DescribeInstances
package awsx

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/ec2metadata"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/elb"
	"github.com/james-lawrence/safedrain/balancer"
	"github.com/pkg/errors"
)

const (
	// DefaultDomainTag ec2 tag holding the fleet domain.
	DefaultDomainTag = "domain"
	// DefaultRoleTag ec2 tag holding the fleet role.
	DefaultRoleTag = "role"
)

// NewSession builds a session in the region of the local instance and returns
// its identity document. failing to resolve the identity aborts before any
// state machine work begins.
func NewSession(ctx context.Context) (sess *session.Session, ident ec2metadata.EC2InstanceIdentityDocument, err error) {
	cfg := request.WithRetryer(aws.NewConfig(), client.DefaultRetryer{
		NumMaxRetries:    5,
		MinRetryDelay:    200 * time.Millisecond,
		MaxRetryDelay:    30 * time.Second,
		MaxThrottleDelay: 30 * time.Second,
	})

	if sess, err = session.NewSession(cfg); err != nil {
		return sess, ident, errors.Wrap(err, "session creation failed")
	}

	md := ec2metadata.New(sess)

	actx, done := context.WithTimeout(ctx, time.Second)
	defer done()
	if !md.AvailableWithContext(actx) {
		return sess, ident, errors.New("instance metadata unavailable, unable to determine local identity")
	}

	if ident, err = md.GetInstanceIdentityDocumentWithContext(ctx); err != nil {
		return sess, ident, errors.Wrap(err, "metadata retrieval failed")
	}

	sess = sess.Copy(&aws.Config{
		Region: aws.String(ident.Region),
	})

	return sess, ident, nil
}

// Retryable classifies provider errors worth retrying, rate limits and
// momentary failures, versus fatal responses.
func Retryable(err error) bool {
	if request.IsErrorRetryable(err) || request.IsErrorThrottle(err) {
		return true
	}

	var cause awserr.Error
	if !errors.As(err, &cause) {
		return false
	}

	switch cause.Code() {
	case "Throttling", "RequestLimitExceeded", "ServiceUnavailable", "RequestTimeout":
		return true
	}

	return false
}

// Option ...
type Option func(*ELB)

// OptionFleetTags override the ec2 tag keys used to count the fleet.
func OptionFleetTags(domain string, role string) Option {
	return func(t *ELB) {
		t.domainTag = domain
		t.roleTag = role
	}
}

// NewELB an adapter over the classic load balancing and ec2 clients.
func NewELB(sess *session.Session, options ...Option) ELB {
	t := ELB{
		elb:       elb.New(sess),
		ec2:       ec2.New(sess),
		domainTag: DefaultDomainTag,
		roleTag:   DefaultRoleTag,
	}

	for _, opt := range options {
		opt(&t)
	}

	return t
}

// ELB implements balancer.API over the classic elastic load balancing API.
type ELB struct {
	elb       *elb.ELB
	ec2       *ec2.EC2
	domainTag string
	roleTag   string
}

// LoadBalancers describes the named load balancers, or every load balancer
// when no names are given. an unknown name yields an empty result rather
// than an error, absence is decided by the caller.
func (t ELB) LoadBalancers(ctx context.Context, names ...string) (targets []balancer.Target, err error) {
	in := &elb.DescribeLoadBalancersInput{}
	if len(names) > 0 {
		in.LoadBalancerNames = aws.StringSlice(names)
	}

	err = t.elb.DescribeLoadBalancersPagesWithContext(ctx, in, func(page *elb.DescribeLoadBalancersOutput, last bool) bool {
		for _, lbd := range page.LoadBalancerDescriptions {
			target := balancer.Target{
				Name: aws.StringValue(lbd.LoadBalancerName),
			}

			for _, i := range lbd.Instances {
				target.Instances = append(target.Instances, aws.StringValue(i.InstanceId))
			}

			targets = append(targets, target)
		}

		return true
	})

	if isCode(err, elb.ErrCodeAccessPointNotFoundException) {
		return nil, nil
	}

	if err != nil {
		return nil, errors.WithStack(err)
	}

	return targets, nil
}

// InstanceHealth reports the health of the given instances as seen by the
// named load balancer. instances the load balancer does not know about are
// omitted from the result.
func (t ELB) InstanceHealth(ctx context.Context, name string, instances ...string) (records []balancer.HealthRecord, err error) {
	in := &elb.DescribeInstanceHealthInput{
		LoadBalancerName: aws.String(name),
		Instances:        elbInstances(instances...),
	}

	out, err := t.elb.DescribeInstanceHealthWithContext(ctx, in)
	if isCode(err, elb.ErrCodeInvalidEndPointException) {
		return nil, nil
	}

	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, h := range out.InstanceStates {
		records = append(records, balancer.HealthRecord{
			InstanceID:  aws.StringValue(h.InstanceId),
			State:       ParseState(aws.StringValue(h.State)),
			Description: aws.StringValue(h.Description),
		})
	}

	return records, nil
}

// Register adds the instance to the named load balancer. registering an
// already registered instance is a no op upstream.
func (t ELB) Register(ctx context.Context, name string, instance string) (err error) {
	in := &elb.RegisterInstancesWithLoadBalancerInput{
		LoadBalancerName: aws.String(name),
		Instances:        elbInstances(instance),
	}

	if _, err = t.elb.RegisterInstancesWithLoadBalancerWithContext(ctx, in); err != nil {
		return errors.Wrapf(err, "register with load balancer failed: %s", name)
	}

	return nil
}

// Deregister removes the instance from the named load balancer. deregistering
// an already absent instance succeeds, the mutation must be safe to reissue.
func (t ELB) Deregister(ctx context.Context, name string, instance string) (err error) {
	in := &elb.DeregisterInstancesFromLoadBalancerInput{
		LoadBalancerName: aws.String(name),
		Instances:        elbInstances(instance),
	}

	if _, err = t.elb.DeregisterInstancesFromLoadBalancerWithContext(ctx, in); err != nil {
		if isCode(err, elb.ErrCodeInvalidEndPointException) {
			return nil
		}

		return errors.Wrapf(err, "deregister from load balancer failed: %s", name)
	}

	return nil
}

// RunningInstances counts running instances tagged with the domain and role
// pair.
func (t ELB) RunningInstances(ctx context.Context, domain string, role string) (n int, err error) {
	in := &ec2.DescribeInstancesInput{
		Filters: []*ec2.Filter{
			{Name: aws.String("tag:" + t.domainTag), Values: aws.StringSlice([]string{domain})},
			{Name: aws.String("tag:" + t.roleTag), Values: aws.StringSlice([]string{role})},
			{Name: aws.String("instance-state-name"), Values: aws.StringSlice([]string{ec2.InstanceStateNameRunning})},
		},
	}

	err = t.ec2.DescribeInstancesPagesWithContext(ctx, in, func(page *ec2.DescribeInstancesOutput, last bool) bool {
		for _, r := range page.Reservations {
			n += len(r.Instances)
		}

		return true
	})

	if err != nil {
		return 0, errors.WithStack(err)
	}

	return n, nil
}

// Transient implements the balancer.API error classification.
func (t ELB) Transient(err error) bool {
	return Retryable(err)
}

// ParseState maps the provider state string to a membership state.
func ParseState(s string) balancer.State {
	switch s {
	case "InService":
		return balancer.InService
	case "OutOfService":
		return balancer.OutOfService
	default:
		return balancer.Unknown
	}
}

func elbInstances(ids ...string) (instances []*elb.Instance) {
	for _, id := range ids {
		instances = append(instances, &elb.Instance{InstanceId: aws.String(id)})
	}

	return instances
}

func isCode(err error, code string) bool {
	var cause awserr.Error
	if !errors.As(err, &cause) {
		return false
	}

	return cause.Code() == code
}
