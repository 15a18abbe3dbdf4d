package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/mpi"
	"github.com/outofforest/mpi/types"
)

// TestingCluster is a set of helpers around cluster for testing.
type TestingCluster struct {
	cluster  *Cluster
	requireT *require.Assertions
}

// NewTesting returns new testing cluster wrapper.
func NewTesting(t *testing.T, config Config) TestingCluster {
	return TestingCluster{
		cluster:  New(config),
		requireT: require.New(t),
	}
}

// Rank returns the rank.
func (c TestingCluster) Rank(rank types.Rank) *Rank {
	return c.cluster.Rank(rank)
}

// Run executes fn on every rank and returns errors reported by ranks.
func (c TestingCluster) Run(ctx context.Context, fn mpi.Func) []error {
	errs, err := c.cluster.Run(ctx, fn)
	c.requireT.NoError(err)
	return errs
}

// RunOK executes fn on every rank and requires all of them to succeed.
func (c TestingCluster) RunOK(ctx context.Context, fn mpi.Func) {
	for i, err := range c.Run(ctx, fn) {
		c.requireT.NoError(err, "rank %d failed", i)
	}
}

// DisableLink cuts link between ranks.
func (c TestingCluster) DisableLink(ctx context.Context, rank1, rank2 *Rank) {
	c.requireT.NoError(c.cluster.DisableLink(ctx, rank1, rank2))
}
