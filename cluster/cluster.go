// Package cluster resolves which load balancer and fleet an instance belongs
// to from its fully qualified hostname and the set of supported domains.
package cluster

import (
	"strings"

	"github.com/james-lawrence/safedrain/internal/errorsx"
	"github.com/pkg/errors"
)

// ErrUnsupportedDomain the hostname did not match any supported domain.
// indicates misconfiguration, never retried.
const ErrUnsupportedDomain = errorsx.String("unsupported domain")

// Identity the load balancer membership details derived for a host.
type Identity struct {
	FQDN         string
	Domain       string
	Role         string
	LoadBalancer string // naming convention guess, not authoritative.
}

// Resolve derives the identity for the given fully qualified hostname by
// suffix matching against the supported domains. the role is the label
// immediately preceding the matched domain.
func Resolve(fqdn string, domains []string) (ident Identity, err error) {
	fqdn = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(fqdn)), ".")

	for _, domain := range domains {
		domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
		if domain == "" || !strings.HasSuffix(fqdn, "."+domain) {
			continue
		}

		prefix := strings.TrimSuffix(fqdn, "."+domain)
		labels := strings.Split(prefix, ".")

		return Identity{
			FQDN:         fqdn,
			Domain:       domain,
			Role:         labels[len(labels)-1],
			LoadBalancer: Guess(fqdn),
		}, nil
	}

	return ident, errors.Wrapf(ErrUnsupportedDomain, "%s does not belong to any of %s", fqdn, strings.Join(domains, ", "))
}

// Guess derives a load balancer name from the last three labels of the
// hostname by replacing the dot separators with hyphens.
func Guess(fqdn string) string {
	labels := strings.Split(strings.TrimSuffix(fqdn, "."), ".")
	if len(labels) > 3 {
		labels = labels[len(labels)-3:]
	}

	return strings.Join(labels, "-")
}
