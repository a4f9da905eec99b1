package cmdopts

import (
	"context"
	"sync"
)

// Global options shared by every command.
type Global struct {
	Verbose  bool               `help:"enable verbose diagnostics" short:"v" env:"${env_safedrain_logs_verbose}" default:"false"`
	Context  context.Context    `kong:"-"`
	Shutdown context.CancelFunc `kong:"-"`
	Cleanup  *sync.WaitGroup    `kong:"-"`
}

// Cluster options locating this instance within its fleet.
type Cluster struct {
	Domains  []string `help:"domains this host may belong to, matched against the hostname suffix" env:"${env_safedrain_domains}" required:""`
	Sentinel string   `help:"path which disables registration while present" env:"${env_safedrain_sentinel}" default:"${vars_safedrain_sentinel}"`
}

// Quorum options gating removal from service.
type Quorum struct {
	Fraction float64 `help:"minimum healthy proportion of the fleet" env:"${env_safedrain_quorum_fraction}" default:"${vars_safedrain_quorum_fraction}"`
	Minimum  int     `help:"absolute floor on healthy members" env:"${env_safedrain_quorum_minimum}" default:"${vars_safedrain_quorum_minimum}"`
}
