package launcher

import (
	"context"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/mpi/types"
	"github.com/outofforest/parallel"
)

// Environment variables passed to the workers.
const (
	EnvRank           = "MPI_RANK"
	EnvPeers          = "MPI_PEERS"
	EnvGroup          = "MPI_GROUP"
	EnvStartupTimeout = "MPI_STARTUP_TIMEOUT"
)

// listenerFD is the descriptor of the listener inherited by the worker. 0-2 are stdio.
const listenerFD = 3

// Config is the config of the launched group.
type Config struct {
	// Size is the number of ranks to start.
	Size int

	// StartupTimeout is passed to workers. Zero means the default one.
	StartupTimeout time.Duration

	// Command is the program started for each rank, followed by its arguments.
	Command []string
}

// Spawn starts one process per rank and waits until all of them exit.
// If any of them fails, the remaining ones are killed.
func Spawn(ctx context.Context, config Config) error {
	if config.Size <= 0 {
		return errors.Errorf("invalid group size %d", config.Size)
	}
	if len(config.Command) == 0 {
		return errors.New("command is not set")
	}

	files := make([]*os.File, 0, config.Size)
	addrs := make([]string, 0, config.Size)
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	for range config.Size {
		l, err := net.Listen("tcp", "localhost:0")
		if err != nil {
			return errors.WithStack(err)
		}
		f, err := l.(*net.TCPListener).File()
		_ = l.Close()
		if err != nil {
			return errors.WithStack(err)
		}
		files = append(files, f)
		addrs = append(addrs, l.Addr().String())
	}

	groupID := uuid.NewString()
	env := []string{
		EnvPeers + "=" + strings.Join(addrs, ","),
		EnvGroup + "=" + groupID,
	}
	if config.StartupTimeout > 0 {
		env = append(env, EnvStartupTimeout+"="+config.StartupTimeout.String())
	}

	log := logger.Get(ctx).With(zap.String("group", groupID))
	log.Info("Starting group", zap.Int("size", config.Size), zap.Strings("command", config.Command))

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for i, f := range files {
			spawn("rank", parallel.Continue, func(ctx context.Context) error {
				cmd := exec.CommandContext(ctx, config.Command[0], config.Command[1:]...)
				cmd.Stdin = nil
				cmd.Stdout = os.Stdout
				cmd.Stderr = os.Stderr
				cmd.Env = append(append(os.Environ(), env...), EnvRank+"="+strconv.Itoa(i))
				cmd.ExtraFiles = []*os.File{f}
				configureProcess(cmd)

				if err := cmd.Run(); err != nil {
					if ctx.Err() != nil {
						return errors.WithStack(ctx.Err())
					}
					return errors.Wrapf(err, "rank %d failed", i)
				}
				log.Info("Rank finished", zap.Int("rank", i))
				return nil
			})
		}
		return nil
	})
}

// IsWorker tells if current process has been started by the launcher.
func IsWorker() bool {
	return os.Getenv(EnvRank) != ""
}

// Attach returns the config and the listener of the rank started by the launcher.
func Attach() (types.Config, net.Listener, error) {
	if !IsWorker() {
		return types.Config{}, nil, errors.Errorf("%s is not set, process has not been started by the launcher",
			EnvRank)
	}

	rank, err := strconv.Atoi(os.Getenv(EnvRank))
	if err != nil {
		return types.Config{}, nil, errors.Wrapf(err, "invalid %s", EnvRank)
	}

	config := types.Config{
		Rank:    types.Rank(rank),
		GroupID: os.Getenv(EnvGroup),
		Peers: lo.Map(strings.Split(os.Getenv(EnvPeers), ","), func(addr string, _ int) types.PeerConfig {
			return types.PeerConfig{Address: addr}
		}),
	}
	if timeout := os.Getenv(EnvStartupTimeout); timeout != "" {
		config.StartupTimeout, err = time.ParseDuration(timeout)
		if err != nil {
			return types.Config{}, nil, errors.Wrapf(err, "invalid %s", EnvStartupTimeout)
		}
	}
	if err := config.Validate(); err != nil {
		return types.Config{}, nil, err
	}

	f := os.NewFile(listenerFD, "listener")
	defer f.Close()

	l, err := net.FileListener(f)
	if err != nil {
		return types.Config{}, nil, errors.WithStack(err)
	}
	return config, l, nil
}
