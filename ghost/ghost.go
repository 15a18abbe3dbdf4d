package ghost

import (
	"context"
	"slices"

	"github.com/pkg/errors"

	"github.com/outofforest/mpi/codec"
	"github.com/outofforest/mpi/group"
	"github.com/outofforest/mpi/helpers"
	"github.com/outofforest/mpi/types"
	"github.com/outofforest/mpi/wire"
)

// Phase is the state of the ghost exchange cycle.
type Phase int

// Phases of the cycle.
const (
	// PhaseLocal means that values have been modified locally and ghost shadows might be stale.
	PhaseLocal Phase = iota

	// PhaseAccumulated means that owners combined contributions but ghost shadows have not been refreshed yet.
	PhaseAccumulated

	// PhaseConsistent means that ghost shadows hold the values of their owners.
	PhaseConsistent
)

// Entry is the element stored locally but owned by another rank.
type Entry struct {
	Global uint64
	Owner  types.Rank
}

// Layout describes which global entries are stored by the rank.
type Layout struct {
	// Owned are the global indices of entries owned by the rank.
	Owned []uint64

	// Ghosts are the entries owned by other ranks.
	Ghosts []Entry
}

type slot struct {
	Ghost bool
	Index int
}

// New creates distributed vector. It must be called by all the ranks of the group in the same order.
func New[T codec.Numeric](ctx context.Context, g *group.Group, layout Layout, op Op[T]) (*Vector[T], error) {
	v := &Vector[T]{
		g:        g,
		op:       op,
		exchange: g.Sequence(wire.ChannelGhost),
		layout:   layout,
		index:    map[uint64]slot{},
		owned:    make([]T, len(layout.Owned)),
		shadows:  make([]T, len(layout.Ghosts)),
		pending:  make([]T, len(layout.Ghosts)),
		sendTo:   map[types.Rank][]int{},
		recvFrom: map[types.Rank][]int{},
	}
	for i := range v.pending {
		v.pending[i] = op.Identity
	}

	if err := v.indexLayout(); err != nil {
		return nil, err
	}
	if err := v.connect(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

// Vector is the vector distributed among ranks. Each entry is owned by exactly one rank,
// other ranks might store its ghost copies.
type Vector[T codec.Numeric] struct {
	g        *group.Group
	op       Op[T]
	exchange uint64
	round    uint64
	phase    Phase

	layout  Layout
	index   map[uint64]slot
	owned   []T
	shadows []T
	pending []T

	// sendTo maps owner to ghost slots in the order the owner expects them.
	sendTo map[types.Rank][]int

	// recvFrom maps peer to owned slots it stores ghosts of, in the order the peer sends them.
	recvFrom map[types.Rank][]int
}

// Phase returns current phase of the cycle.
func (v *Vector[T]) Phase() Phase {
	return v.phase
}

// Layout returns the layout of the vector.
func (v *Vector[T]) Layout() Layout {
	return v.layout
}

// Set sets the value of the owned entry.
func (v *Vector[T]) Set(global uint64, value T) error {
	s, exists := v.index[global]
	if !exists || s.Ghost {
		return errors.Wrapf(types.ErrLayout, "entry %d is not owned by rank %d", global, v.g.Rank())
	}
	v.owned[s.Index] = value
	v.phase = PhaseLocal
	return nil
}

// Contribute combines the value with the entry. Contributions to ghost entries are delivered to
// their owners by Accumulate.
func (v *Vector[T]) Contribute(global uint64, value T) error {
	s, exists := v.index[global]
	if !exists {
		return errors.Wrapf(types.ErrLayout, "entry %d is not stored by rank %d", global, v.g.Rank())
	}
	if s.Ghost {
		v.pending[s.Index] = v.op.Combine(v.pending[s.Index], value)
	} else {
		v.owned[s.Index] = v.op.Combine(v.owned[s.Index], value)
	}
	v.phase = PhaseLocal
	return nil
}

// Get returns the value of the entry. Ghost entries are available only after Broadcast.
func (v *Vector[T]) Get(global uint64) (T, error) {
	s, exists := v.index[global]
	if !exists {
		var t T
		return t, errors.Wrapf(types.ErrLayout, "entry %d is not stored by rank %d", global, v.g.Rank())
	}
	if !s.Ghost {
		return v.owned[s.Index], nil
	}
	if v.phase != PhaseConsistent {
		var t T
		return t, errors.Wrapf(types.ErrStaleGhost, "entry %d owned by rank %d has not been refreshed", global,
			v.layout.Ghosts[s.Index].Owner)
	}
	return v.shadows[s.Index], nil
}

// Owned returns values of owned entries in the order of layout.
func (v *Vector[T]) Owned() []T {
	return slices.Clone(v.owned)
}

// Ghosts returns values of ghost entries in the order of layout.
func (v *Vector[T]) Ghosts() ([]T, error) {
	if v.phase != PhaseConsistent {
		return nil, errors.Wrap(types.ErrStaleGhost, "ghost entries have not been refreshed")
	}
	return slices.Clone(v.shadows), nil
}

// Accumulate sends contributions made to ghost entries to their owners, where they are combined
// with owned values. Pending contributions are reset, so repeated accumulation does not change owned values.
func (v *Vector[T]) Accumulate(ctx context.Context) error {
	tag := v.nextTag()

	for _, r := range helpers.Peers(v.g.Config()) {
		slots := v.sendTo[r]
		if len(slots) == 0 {
			continue
		}
		buf := make([]T, 0, len(slots))
		for _, i := range slots {
			buf = append(buf, v.pending[i])
			v.pending[i] = v.op.Identity
		}
		if err := post(ctx, v.g, r, tag, buf); err != nil {
			return err
		}
	}

	for _, r := range helpers.Peers(v.g.Config()) {
		slots := v.recvFrom[r]
		if len(slots) == 0 {
			continue
		}
		buf := make([]T, len(slots))
		if err := fetch(ctx, v.g, r, tag, buf); err != nil {
			return err
		}
		for j, i := range slots {
			v.owned[i] = v.op.Combine(v.owned[i], buf[j])
		}
	}

	v.phase = PhaseAccumulated
	return nil
}

// Broadcast sends owned values to all the ranks storing their ghosts.
func (v *Vector[T]) Broadcast(ctx context.Context) error {
	tag := v.nextTag()

	for _, r := range helpers.Peers(v.g.Config()) {
		slots := v.recvFrom[r]
		if len(slots) == 0 {
			continue
		}
		buf := make([]T, 0, len(slots))
		for _, i := range slots {
			buf = append(buf, v.owned[i])
		}
		if err := post(ctx, v.g, r, tag, buf); err != nil {
			return err
		}
	}

	for _, r := range helpers.Peers(v.g.Config()) {
		slots := v.sendTo[r]
		if len(slots) == 0 {
			continue
		}
		buf := make([]T, len(slots))
		if err := fetch(ctx, v.g, r, tag, buf); err != nil {
			return err
		}
		for j, i := range slots {
			v.shadows[i] = buf[j]
		}
	}

	v.phase = PhaseConsistent
	return nil
}

func (v *Vector[T]) indexLayout() error {
	for i, global := range v.layout.Owned {
		if _, exists := v.index[global]; exists {
			return errors.Wrapf(types.ErrLayout, "entry %d is listed twice", global)
		}
		v.index[global] = slot{Index: i}
	}
	for i, e := range v.layout.Ghosts {
		if _, exists := v.index[e.Global]; exists {
			return errors.Wrapf(types.ErrLayout, "entry %d is listed twice", e.Global)
		}
		if e.Owner == v.g.Rank() || e.Owner < 0 || int(e.Owner) >= v.g.Size() {
			return errors.Wrapf(types.ErrLayout, "invalid owner %d of ghost entry %d", e.Owner, e.Global)
		}
		v.index[e.Global] = slot{Ghost: true, Index: i}
		v.sendTo[e.Owner] = append(v.sendTo[e.Owner], i)
	}
	return nil
}

// connect tells every owner which of its entries are stored locally as ghosts and learns the same from peers.
func (v *Vector[T]) connect(ctx context.Context) error {
	tag := v.nextTag()

	for _, r := range helpers.Peers(v.g.Config()) {
		globals := make([]uint64, 0, len(v.sendTo[r]))
		for _, i := range v.sendTo[r] {
			globals = append(globals, v.layout.Ghosts[i].Global)
		}
		if err := post(ctx, v.g, r, tag, globals); err != nil {
			return err
		}
	}

	for _, r := range helpers.Peers(v.g.Config()) {
		msg, err := v.g.Fetch(ctx, r, wire.ChannelGhost, tag)
		if err != nil {
			return err
		}
		globals, err := codec.UnpackNew[uint64](msg.Frame, msg.Payload)
		if err != nil {
			return err
		}

		slots := make([]int, 0, len(globals))
		for _, global := range globals {
			s, exists := v.index[global]
			if !exists || s.Ghost {
				return errors.Wrapf(types.ErrLayout, "rank %d stores ghost of entry %d not owned by rank %d",
					r, global, v.g.Rank())
			}
			slots = append(slots, s.Index)
		}
		if len(slots) > 0 {
			v.recvFrom[r] = slots
		}
	}
	return nil
}

func (v *Vector[T]) nextTag() types.Tag {
	tag := types.Tag(v.exchange<<32 | v.round)
	v.round++
	return tag
}

func post[E codec.Numeric](ctx context.Context, g *group.Group, dst types.Rank, tag types.Tag, buf []E) error {
	frame := codec.BufferFrame(buf)
	frame.Channel = wire.ChannelGhost
	frame.Tag = tag
	return g.Post(ctx, dst, frame, codec.Bytes(buf))
}

func fetch[E codec.Numeric](ctx context.Context, g *group.Group, src types.Rank, tag types.Tag, buf []E) error {
	msg, err := g.Fetch(ctx, src, wire.ChannelGhost, tag)
	if err != nil {
		return err
	}
	return codec.Unpack(msg.Frame, msg.Payload, buf)
}
