// Package safedrain coordinates restarting services on instances behind a
// classic load balancer without dropping the pool below quorum.
package safedrain

import "time"

// environment keys used to override defaults.
const (
	// EnvLogsVerbose enables verbose diagnostics.
	EnvLogsVerbose = "SAFEDRAIN_LOGS_VERBOSE"
	// EnvDomains comma separated list of domains the tool operates within.
	EnvDomains = "SAFEDRAIN_DOMAINS"
	// EnvSentinel path which suppresses registration while present.
	EnvSentinel = "SAFEDRAIN_SENTINEL"
	// EnvQuorumFraction minimum healthy proportion of the fleet.
	EnvQuorumFraction = "SAFEDRAIN_QUORUM_FRACTION"
	// EnvQuorumMinimum absolute healthy floor.
	EnvQuorumMinimum = "SAFEDRAIN_QUORUM_MINIMUM"
	// EnvPollInterval delay between health polls while awaiting a transition.
	EnvPollInterval = "SAFEDRAIN_POLL_INTERVAL"
	// EnvDrainTimeout window for a deregistered instance to finish draining.
	EnvDrainTimeout = "SAFEDRAIN_DRAIN_TIMEOUT"
	// EnvRegisterTimeout window for a registered instance to reach InService.
	EnvRegisterTimeout = "SAFEDRAIN_REGISTER_TIMEOUT"
)

// DefaultSentinelPath presence of this path disables registration entirely;
// operators create and remove it out of band, the tool only ever reads it.
const DefaultSentinelPath = "/etc/safedrain/disabled"

const (
	// DefaultQuorumFraction proportion of the fleet that must remain healthy
	// before another member may be removed from service.
	DefaultQuorumFraction = 0.67
	// DefaultQuorumMinimum absolute floor on healthy members.
	DefaultQuorumMinimum = 1
	// DefaultQuorumAttempts number of quorum evaluations before giving up.
	DefaultQuorumAttempts = 5
	// DefaultQuorumDelay pause between quorum evaluations.
	DefaultQuorumDelay = 30 * time.Second
)

const (
	// DefaultRequestAttempts retry ceiling for provider mutations and reads.
	DefaultRequestAttempts = 3
	// DefaultRequestBackoff constant delay between retried provider requests.
	DefaultRequestBackoff = time.Second
	// DefaultPollInterval delay between health polls while awaiting a
	// membership transition.
	DefaultPollInterval = 10 * time.Second
	// DefaultDrainTimeout window for a deregistered instance to finish
	// draining.
	DefaultDrainTimeout = 5 * time.Minute
	// DefaultRegisterTimeout window for a registered instance to reach
	// InService.
	DefaultRegisterTimeout = 3 * time.Minute
)
