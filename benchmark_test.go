package mpi_test

import (
	"context"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/logger"
	"github.com/outofforest/mpi"
	"github.com/outofforest/mpi/collective"
	"github.com/outofforest/mpi/group"
	"github.com/outofforest/mpi/p2p"
	"github.com/outofforest/mpi/types"
	"github.com/outofforest/parallel"
)

func BenchmarkSendBuffer(b *testing.B) {
	data := make([]float64, 16*1024)
	for i := range data {
		data[i] = float64(i)
	}

	runPair(b, func(ctx context.Context, g *group.Group) error {
		buf := make([]float64, len(data))
		if g.Rank() == 0 {
			b.SetBytes(int64(8 * len(data)))
			b.ResetTimer()
		}
		for range b.N {
			if g.Rank() == 0 {
				if err := p2p.SendBuffer(ctx, g, 1, 0, data); err != nil {
					return err
				}
				continue
			}
			if err := p2p.ReceiveBuffer(ctx, g, 0, 0, buf); err != nil {
				return err
			}
		}
		return collective.Barrier(ctx, g)
	})
}

func BenchmarkBarrier(b *testing.B) {
	runPair(b, func(ctx context.Context, g *group.Group) error {
		if g.Rank() == 0 {
			b.ResetTimer()
		}
		for range b.N {
			if err := collective.Barrier(ctx, g); err != nil {
				return err
			}
		}
		return nil
	})
}

func runPair(b *testing.B, fn mpi.Func) {
	requireT := require.New(b)
	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig)))
	b.Cleanup(cancel)

	l1, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)
	defer l1.Close()

	l2, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)
	defer l2.Close()

	peers := []types.PeerConfig{
		{Address: l1.Addr().String()},
		{Address: l2.Addr().String()},
	}
	groupID := uuid.NewString()

	requireT.NoError(parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("rank0", parallel.Continue, func(ctx context.Context) error {
			return mpi.Run(ctx, types.Config{Rank: 0, Peers: peers, GroupID: groupID}, l1, fn)
		})
		spawn("rank1", parallel.Continue, func(ctx context.Context) error {
			return mpi.Run(ctx, types.Config{Rank: 1, Peers: peers, GroupID: groupID}, l2, fn)
		})
		return nil
	}))
}
