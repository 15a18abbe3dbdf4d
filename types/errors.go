package types

import "github.com/pkg/errors"

// All the errors below are fatal to the whole group. The group should be torn down and started again.
var (
	// ErrStartup means that the group failed to reach the declared size.
	ErrStartup = errors.New("group startup failed")

	// ErrShutdownTimeout means that some ranks have not acknowledged termination.
	ErrShutdownTimeout = errors.New("shutdown timeout")

	// ErrSourceMismatch means that message was expected from a rank which is outside the group or gone.
	ErrSourceMismatch = errors.New("source mismatch")

	// ErrDestinationMismatch means that message was sent to a rank outside the group.
	ErrDestinationMismatch = errors.New("destination mismatch")

	// ErrShapeMismatch means that the type or the length of the payload differs from the expected one.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrCollectiveMismatch means that not all the ranks participated in the collective operation.
	ErrCollectiveMismatch = errors.New("collective mismatch")

	// ErrPeerLost means that connection to the peer broke before the shutdown.
	ErrPeerLost = errors.New("peer lost")

	// ErrStaleGhost means that ghost value was read before being refreshed by its owner.
	ErrStaleGhost = errors.New("stale ghost")

	// ErrLayout means that the layout of the distributed vector is inconsistent across ranks.
	ErrLayout = errors.New("inconsistent layout")
)
