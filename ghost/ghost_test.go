package ghost

import (
	"context"
	"slices"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/mpi/codec"
	"github.com/outofforest/mpi/group"
	"github.com/outofforest/mpi/pkg/cluster"
	"github.com/outofforest/mpi/types"
	"github.com/outofforest/qa"
)

// chainLayout returns layout where rank r owns entries 2r and 2r+1 and stores ghosts of the neighbouring entries.
func chainLayout(rank types.Rank, size int) Layout {
	global := uint64(2 * rank)
	layout := Layout{
		Owned: []uint64{global, global + 1},
	}
	if rank > 0 {
		layout.Ghosts = append(layout.Ghosts, Entry{Global: global - 1, Owner: rank - 1})
	}
	if int(rank) < size-1 {
		layout.Ghosts = append(layout.Ghosts, Entry{Global: global + 2, Owner: rank + 1})
	}
	return layout
}

func expect[T codec.Numeric](v *Vector[T], global uint64, expected T) error {
	value, err := v.Get(global)
	if err != nil {
		return err
	}
	if value != expected {
		return errors.Errorf("entry %d: %v expected, got %v", global, expected, value)
	}
	return nil
}

func TestAccumulateBroadcast(t *testing.T) {
	ctx := qa.NewContext(t)

	c := cluster.NewTesting(t, cluster.Config{Size: 3})
	c.RunOK(ctx, func(ctx context.Context, g *group.Group) error {
		layout := chainLayout(g.Rank(), g.Size())
		v, err := New(ctx, g, layout, Sum[float64]())
		if err != nil {
			return err
		}
		if v.Phase() != PhaseLocal {
			return errors.New("vector should start in local phase")
		}

		for _, global := range layout.Owned {
			if err := v.Contribute(global, 1); err != nil {
				return err
			}
		}
		for _, e := range layout.Ghosts {
			if err := v.Contribute(e.Global, 1); err != nil {
				return err
			}
		}

		if _, err := v.Ghosts(); !errors.Is(err, types.ErrStaleGhost) {
			return errors.Errorf("stale ghost expected, got %v", err)
		}

		expected := map[uint64]float64{0: 1, 1: 2, 2: 2, 3: 2, 4: 2, 5: 1}
		for cycle := range 2 {
			if err := v.Accumulate(ctx); err != nil {
				return err
			}
			if v.Phase() != PhaseAccumulated {
				return errors.New("vector should be accumulated")
			}
			for _, e := range layout.Ghosts {
				if _, err := v.Get(e.Global); !errors.Is(err, types.ErrStaleGhost) {
					return errors.Errorf("stale ghost expected, got %v", err)
				}
			}
			if err := v.Broadcast(ctx); err != nil {
				return err
			}
			if v.Phase() != PhaseConsistent {
				return errors.New("vector should be consistent")
			}

			for _, global := range layout.Owned {
				if err := expect(v, global, expected[global]); err != nil {
					return errors.WithMessagef(err, "cycle %d", cycle)
				}
			}
			for _, e := range layout.Ghosts {
				if err := expect(v, e.Global, expected[e.Global]); err != nil {
					return errors.WithMessagef(err, "cycle %d", cycle)
				}
			}
		}

		ghosts, err := v.Ghosts()
		if err != nil {
			return err
		}
		if len(ghosts) != len(layout.Ghosts) {
			return errors.Errorf("unexpected ghosts %v", ghosts)
		}
		if !slices.Equal(v.Owned(), []float64{expected[layout.Owned[0]], expected[layout.Owned[1]]}) {
			return errors.Errorf("unexpected owned values %v", v.Owned())
		}
		return nil
	})
}

func TestMax(t *testing.T) {
	ctx := qa.NewContext(t)

	c := cluster.NewTesting(t, cluster.Config{Size: 2})
	c.RunOK(ctx, func(ctx context.Context, g *group.Group) error {
		layout := Layout{Owned: []uint64{uint64(g.Rank())}}
		peer := 1 - g.Rank()
		layout.Ghosts = []Entry{{Global: uint64(peer), Owner: peer}}

		v, err := New(ctx, g, layout, Max[int32]())
		if err != nil {
			return err
		}
		if err := v.Set(uint64(g.Rank()), -10); err != nil {
			return err
		}
		if err := v.Contribute(uint64(peer), -5*int32(g.Rank()+1)); err != nil {
			return err
		}
		if err := v.Accumulate(ctx); err != nil {
			return err
		}
		if err := v.Broadcast(ctx); err != nil {
			return err
		}

		// Rank 0 contributed -5 to entry 1, rank 1 contributed -10 to entry 0.
		if err := expect(v, 0, int32(-10)); err != nil {
			return err
		}
		return expect(v, 1, int32(-5))
	})
}

func TestLayoutNotOwned(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	c := cluster.NewTesting(t, cluster.Config{Size: 2})
	errs := c.Run(ctx, func(ctx context.Context, g *group.Group) error {
		layout := Layout{Owned: []uint64{uint64(g.Rank())}}
		if g.Rank() == 0 {
			layout.Ghosts = []Entry{{Global: 5, Owner: 1}}
		}
		_, err := New(ctx, g, layout, Sum[int64]())
		return err
	})

	requireT.NoError(errs[0])
	requireT.ErrorIs(errs[1], types.ErrLayout)
}

func TestInvalidLocalLayout(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	c := cluster.NewTesting(t, cluster.Config{Size: 2})
	errs := c.Run(ctx, func(ctx context.Context, g *group.Group) error {
		layouts := []Layout{
			{Owned: []uint64{1, 1}},
			{Owned: []uint64{1}, Ghosts: []Entry{{Global: 1, Owner: 1 - g.Rank()}}},
			{Ghosts: []Entry{{Global: 2, Owner: g.Rank()}}},
			{Ghosts: []Entry{{Global: 2, Owner: 2}}},
		}
		for _, layout := range layouts {
			if _, err := New(ctx, g, layout, Sum[int64]()); !errors.Is(err, types.ErrLayout) {
				return errors.Errorf("layout error expected, got %v", err)
			}
		}
		return nil
	})

	requireT.NoError(errs[0])
	requireT.NoError(errs[1])
}

func TestAccess(t *testing.T) {
	ctx := qa.NewContext(t)

	c := cluster.NewTesting(t, cluster.Config{Size: 2})
	c.RunOK(ctx, func(ctx context.Context, g *group.Group) error {
		peer := 1 - g.Rank()
		v, err := New(ctx, g, Layout{
			Owned:  []uint64{uint64(g.Rank())},
			Ghosts: []Entry{{Global: uint64(peer), Owner: peer}},
		}, Prod[uint8]())
		if err != nil {
			return err
		}

		if err := v.Set(uint64(peer), 1); !errors.Is(err, types.ErrLayout) {
			return errors.Errorf("layout error expected, got %v", err)
		}
		if err := v.Contribute(7, 1); !errors.Is(err, types.ErrLayout) {
			return errors.Errorf("layout error expected, got %v", err)
		}
		if _, err := v.Get(7); !errors.Is(err, types.ErrLayout) {
			return errors.Errorf("layout error expected, got %v", err)
		}
		if err := v.Set(uint64(g.Rank()), 3); err != nil {
			return err
		}
		if err := v.Broadcast(ctx); err != nil {
			return err
		}
		if err := expect(v, uint64(peer), uint8(3)); err != nil {
			return err
		}

		// Local modification makes ghosts stale again.
		if err := v.Contribute(uint64(g.Rank()), 2); err != nil {
			return err
		}
		if _, err := v.Get(uint64(peer)); !errors.Is(err, types.ErrStaleGhost) {
			return errors.Errorf("stale ghost expected, got %v", err)
		}
		return expect(v, uint64(g.Rank()), uint8(6))
	})
}

func TestIdentities(t *testing.T) {
	requireT := require.New(t)

	requireT.Equal(int8(-128), Max[int8]().Identity)
	requireT.Equal(int8(127), Min[int8]().Identity)
	requireT.Equal(uint32(0), Max[uint32]().Identity)
	requireT.Equal(uint32(1<<32-1), Min[uint32]().Identity)
	requireT.Equal(uint64(1<<64-1), Min[uint64]().Identity)
	requireT.True(Max[float64]().Identity < -1e308)
	requireT.Equal(float32(1), Prod[float32]().Identity)
	requireT.Equal(int16(0), Sum[int16]().Identity)

	requireT.Equal(int64(7), Min[int64]().Combine(7, 9))
	requireT.Equal(int64(9), Max[int64]().Combine(7, 9))
}
