package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/mpi"
	"github.com/outofforest/mpi/collective"
	"github.com/outofforest/mpi/group"
	"github.com/outofforest/mpi/p2p"
	"github.com/outofforest/mpi/types"
)

// Sample worker started by mpirun. It passes a token around the ring and then scatters squares from rank 0,
// so each rank adds its rank and the results are gathered back.
func main() {
	ctx, cancel := signal.NotifyContext(logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig)),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := mpi.RunWorker(ctx, nil, run); err != nil {
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, g *group.Group) error {
	log := logger.Get(ctx)

	next := (g.Rank() + 1) % types.Rank(g.Size())
	prev := (g.Rank() + types.Rank(g.Size()) - 1) % types.Rank(g.Size())

	if g.Rank() == 0 {
		if err := p2p.Send(ctx, g, next, 0, "0"); err != nil {
			return err
		}
	}
	token, err := p2p.ReceiveAs[string](ctx, g, prev, 0)
	if err != nil {
		return err
	}
	if g.Rank() == 0 {
		log.Info("Token passed the ring", zap.String("token", token))
	} else if err := p2p.Send(ctx, g, next, 0, token+strconv.Itoa(int(g.Rank()))); err != nil {
		return err
	}

	var squares []int
	if g.Rank() == 0 {
		for i := 1; i <= g.Size(); i++ {
			squares = append(squares, i*i)
		}
	}
	v, err := collective.Scatter(ctx, g, 0, squares)
	if err != nil {
		return err
	}
	results, err := collective.Gather(ctx, g, 0, v+int(g.Rank()))
	if err != nil {
		return err
	}
	if g.Rank() == 0 {
		log.Info("Results gathered", zap.Ints("results", results))
	}

	return collective.Barrier(ctx, g)
}
