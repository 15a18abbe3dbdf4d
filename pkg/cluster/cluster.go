package cluster

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/mpi"
	"github.com/outofforest/mpi/types"
	"github.com/outofforest/parallel"
	"github.com/outofforest/proton"
)

// Config is the config of the cluster.
type Config struct {
	// Size is the number of ranks.
	Size int

	// Marshaller encodes user-defined objects.
	Marshaller proton.Marshaller

	// StartupTimeout overrides the default startup timeout.
	StartupTimeout time.Duration

	// CollectiveTimeout overrides the default collective timeout.
	CollectiveTimeout time.Duration

	// ShutdownTimeout overrides the default shutdown timeout.
	ShutdownTimeout time.Duration
}

// Rank is the rank run by the cluster.
type Rank struct {
	rank types.Rank
}

// Rank returns the rank number.
func (r *Rank) Rank() types.Rank {
	return r.rank
}

func (r *Rank) run(ctx context.Context, config types.Config, listener net.Listener, fn mpi.Func) error {
	err := mpi.Run(ctx, config, listener, fn)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Get(ctx).Error("Rank failed", zap.Int("rank", int(r.rank)), zap.Error(err))
	}
	return err
}

// New creates new cluster.
func New(config Config) *Cluster {
	ranks := make([]*Rank, 0, config.Size)
	for i := range config.Size {
		ranks = append(ranks, &Rank{rank: types.Rank(i)})
	}

	return &Cluster{
		config:  config,
		groupID: uuid.NewString(),
		mesh:    newMesh(types.DefaultMaxMessageSize + 1024),
		ranks:   ranks,
	}
}

// Cluster runs all the ranks of the group inside one process.
// Each rank reaches its peers through the mesh, so links between them might be cut.
type Cluster struct {
	config  Config
	groupID string
	mesh    *mesh
	ranks   []*Rank
}

// Rank returns the rank.
func (c *Cluster) Rank(rank types.Rank) *Rank {
	return c.ranks[rank]
}

// Run executes fn on every rank and waits until all of them return. Errors are reported per rank.
func (c *Cluster) Run(ctx context.Context, fn mpi.Func) ([]error, error) {
	defer c.mesh.close()

	errs := make([]error, len(c.ranks))
	err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("mesh", parallel.Fail, c.mesh.run)
		spawn("ranks", parallel.Exit, func(ctx context.Context) error {
			return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
				for i, r := range c.ranks {
					spawn("rank", parallel.Continue, func(ctx context.Context) error {
						listener, err := c.mesh.Listener(r)
						if err != nil {
							return err
						}
						config, err := c.newRankConfig(ctx, r)
						if err != nil {
							return err
						}

						errs[i] = r.run(ctx, config, listener, fn)
						return nil
					})
				}
				return nil
			})
		})

		return nil
	})
	return errs, err
}

// DisableLink cuts link between ranks.
func (c *Cluster) DisableLink(ctx context.Context, rank1, rank2 *Rank) error {
	if err := c.mesh.DisableLink(ctx, rank1, rank2); err != nil {
		return err
	}
	return c.mesh.DisableLink(ctx, rank2, rank1)
}

func (c *Cluster) newRankConfig(ctx context.Context, rank *Rank) (types.Config, error) {
	config := types.Config{
		Rank:              rank.rank,
		GroupID:           c.groupID,
		Marshaller:        c.config.Marshaller,
		StartupTimeout:    c.config.StartupTimeout,
		CollectiveTimeout: c.config.CollectiveTimeout,
		ShutdownTimeout:   c.config.ShutdownTimeout,
	}

	for _, r := range c.ranks {
		var address string
		if r != rank {
			pair, err := c.mesh.Pair(ctx, rank, r)
			if err != nil {
				return types.Config{}, err
			}
			address = pair.SrcListener.Addr().String()
		}

		config.Peers = append(config.Peers, types.PeerConfig{
			Address: address,
		})
	}

	return config, nil
}
