package mpi

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/mpi/group"
	"github.com/outofforest/mpi/launcher"
	"github.com/outofforest/mpi/types"
	"github.com/outofforest/parallel"
	"github.com/outofforest/proton"
)

// Func is the function executed by the rank.
type Func func(ctx context.Context, g *group.Group) error

// Run creates the group, waits until all the ranks are connected, executes fn and shuts the group down.
func Run(ctx context.Context, config types.Config, listener net.Listener, fn Func) error {
	g, err := group.New(config, listener)
	if err != nil {
		return err
	}

	ctx = logger.WithLogger(ctx, logger.Get(ctx).With(zap.Int("rank", int(g.Rank())),
		zap.String("group", g.Config().GroupID)))

	err = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("group", parallel.Fail, g.Run)
		spawn("main", parallel.Exit, func(ctx context.Context) error {
			if err := g.WaitReady(ctx); err != nil {
				return err
			}
			logger.Get(ctx).Info("Group is ready", zap.Int("size", g.Size()))

			if err := fn(ctx, g); err != nil {
				// Peers still get frames sent before the failure.
				if errShutdown := g.Shutdown(ctx); errShutdown != nil {
					logger.Get(ctx).Error("Shutdown after failure failed", zap.Error(errShutdown))
				}
				return err
			}
			return g.Shutdown(ctx)
		})
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Get(ctx).Error("Rank failed", zap.Error(err))
	}
	return err
}

// RunWorker runs fn inside the process started by the launcher.
func RunWorker(ctx context.Context, marshaller proton.Marshaller, fn Func) error {
	config, listener, err := launcher.Attach()
	if err != nil {
		return err
	}
	defer listener.Close()

	config.Marshaller = marshaller
	return Run(ctx, config, listener, fn)
}
