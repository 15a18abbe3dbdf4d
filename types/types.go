package types

import (
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/proton"
)

const (
	// DefaultMaxMessageSize is the default limit of a single frame payload.
	DefaultMaxMessageSize = 1024 * 1024

	// DefaultStartupTimeout is the default time given to all the ranks to connect.
	DefaultStartupTimeout = 10 * time.Second

	// DefaultShutdownTimeout is the default time given to all the ranks to acknowledge shutdown.
	DefaultShutdownTimeout = 5 * time.Second

	// DefaultCollectiveTimeout is the default time after which stuck collective is reported.
	DefaultCollectiveTimeout = 30 * time.Second
)

type (
	// Rank is the identity of a process within the group.
	Rank int

	// Tag distinguishes messages exchanged between the same pair of ranks.
	Tag uint64
)

// Config is the config of a single rank.
type Config struct {
	// Rank is the rank of the local process.
	Rank Rank

	// Peers contains all the members of the group, including the local one. Index in the slice is the rank.
	Peers []PeerConfig

	// GroupID identifies the group. Ranks refuse to connect to members of other groups.
	GroupID string

	// MaxMessageSize is the maximum size of single payload.
	MaxMessageSize uint64

	// StartupTimeout is the time given to all the ranks to connect.
	StartupTimeout time.Duration

	// ShutdownTimeout is the time given to all the ranks to acknowledge shutdown.
	ShutdownTimeout time.Duration

	// CollectiveTimeout is the time after which collective operation is considered to be mismatched.
	// Negative value disables the detection.
	CollectiveTimeout time.Duration

	// Marshaller encodes user-defined objects sent in dynamic mode.
	Marshaller proton.Marshaller
}

// PeerConfig stores configuration of peer connection.
type PeerConfig struct {
	Address string
}

// Size returns the size of the group.
func (c Config) Size() int {
	return len(c.Peers)
}

// WithDefaults returns copy of the config with unset values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.CollectiveTimeout == 0 {
		c.CollectiveTimeout = DefaultCollectiveTimeout
	}
	return c
}

// Validate verifies that config describes a valid member of the group.
func (c Config) Validate() error {
	if len(c.Peers) == 0 {
		return errors.New("group must contain at least one rank")
	}
	if c.Rank < 0 || int(c.Rank) >= len(c.Peers) {
		return errors.Errorf("rank %d is outside the group of size %d", c.Rank, len(c.Peers))
	}
	for i, p := range c.Peers {
		if p.Address == "" && Rank(i) != c.Rank {
			return errors.Errorf("address of rank %d is not set", i)
		}
	}
	return nil
}
