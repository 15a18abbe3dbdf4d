package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/mpi/launcher"
	"github.com/outofforest/mpi/types"
)

func main() {
	flags := pflag.NewFlagSet("mpirun", pflag.ExitOnError)
	flags.SetInterspersed(false)
	size := flags.IntP("np", "n", 2, "Number of ranks to start")
	startupTimeout := flags.Duration("startup-timeout", types.DefaultStartupTimeout,
		"Time given to all the ranks to connect")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mpirun [flags] program [args...]\n")
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig)),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := launcher.Spawn(ctx, launcher.Config{
		Size:           *size,
		StartupTimeout: *startupTimeout,
		Command:        flags.Args(),
	}); err != nil {
		logger.Get(ctx).Error("Group failed", zap.Error(err))
		cancel()
		os.Exit(1)
	}
}
