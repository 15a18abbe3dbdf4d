package p2p

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/mpi/codec"
	"github.com/outofforest/mpi/group"
	"github.com/outofforest/mpi/pkg/cluster"
	"github.com/outofforest/mpi/types"
	"github.com/outofforest/mpi/wire"
	wirep2p "github.com/outofforest/mpi/wire/p2p"
	"github.com/outofforest/qa"
)

func TestSendReceive(t *testing.T) {
	ctx := qa.NewContext(t)

	c := cluster.NewTesting(t, cluster.Config{Size: 2})
	c.RunOK(ctx, func(ctx context.Context, g *group.Group) error {
		if g.Rank() == 0 {
			return Send(ctx, g, 1, 0, -1)
		}

		v, err := Receive(ctx, g, 0, 0)
		if err != nil {
			return err
		}
		if v != -1 {
			return errors.Errorf("-1 expected, got %v", v)
		}
		return nil
	})
}

func TestRing(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	result := make(chan string, 1)
	c := cluster.NewTesting(t, cluster.Config{Size: 4})
	c.RunOK(ctx, func(ctx context.Context, g *group.Group) error {
		next := (g.Rank() + 1) % types.Rank(g.Size())
		prev := (g.Rank() + types.Rank(g.Size()) - 1) % types.Rank(g.Size())

		if g.Rank() == 0 {
			if err := Send(ctx, g, next, 0, "0"); err != nil {
				return err
			}
			token, err := ReceiveAs[string](ctx, g, prev, 0)
			if err != nil {
				return err
			}
			result <- token
			return nil
		}

		token, err := ReceiveAs[string](ctx, g, prev, 0)
		if err != nil {
			return err
		}
		return Send(ctx, g, next, 0, token+string(rune('0'+g.Rank())))
	})

	requireT.Equal("0123", <-result)
}

func TestTagsAndOrdering(t *testing.T) {
	ctx := qa.NewContext(t)

	c := cluster.NewTesting(t, cluster.Config{Size: 2})
	c.RunOK(ctx, func(ctx context.Context, g *group.Group) error {
		if g.Rank() == 0 {
			for i := range 100 {
				if err := Send(ctx, g, 1, types.Tag(i%2), i); err != nil {
					return err
				}
			}
			return nil
		}

		// Receive tag 1 first to verify that messages with tag 0 wait in the mailbox.
		for _, tag := range []types.Tag{1, 0} {
			for i := int(tag); i < 100; i += 2 {
				v, err := ReceiveAs[int](ctx, g, 0, tag)
				if err != nil {
					return err
				}
				if v != i {
					return errors.Errorf("%d expected, got %d", i, v)
				}
			}
		}
		return nil
	})
}

func TestObjects(t *testing.T) {
	ctx := qa.NewContext(t)

	c := cluster.NewTesting(t, cluster.Config{Size: 2, Marshaller: wirep2p.NewMarshaller()})
	c.RunOK(ctx, func(ctx context.Context, g *group.Group) error {
		if g.Rank() == 0 {
			if err := Send(ctx, g, 1, 0, wire.Goodbye{Frames: 5}); err != nil {
				return err
			}
			return Send(ctx, g, 1, 0, &wire.Goodbye{Frames: 6})
		}

		v1, err := ReceiveAs[wire.Goodbye](ctx, g, 0, 0)
		if err != nil {
			return err
		}
		v2, err := ReceiveAs[*wire.Goodbye](ctx, g, 0, 0)
		if err != nil {
			return err
		}
		if v1.Frames != 5 || v2.Frames != 6 {
			return errors.Errorf("unexpected objects %v %v", v1, v2)
		}
		return nil
	})
}

func TestSelfSend(t *testing.T) {
	ctx := qa.NewContext(t)

	c := cluster.NewTesting(t, cluster.Config{Size: 2})
	c.RunOK(ctx, func(ctx context.Context, g *group.Group) error {
		if err := Send(ctx, g, g.Rank(), 3, "me"); err != nil {
			return err
		}
		v, err := ReceiveAs[string](ctx, g, g.Rank(), 3)
		if err != nil {
			return err
		}
		if v != "me" {
			return errors.Errorf("unexpected value %q", v)
		}
		return nil
	})
}

func TestBuffers(t *testing.T) {
	ctx := qa.NewContext(t)

	c := cluster.NewTesting(t, cluster.Config{Size: 2})
	c.RunOK(ctx, func(ctx context.Context, g *group.Group) error {
		data := []float64{1.5, -3.25, 1e100}
		if g.Rank() == 0 {
			if err := SendBuffer(ctx, g, 1, 0, data); err != nil {
				return err
			}
			if err := Send(ctx, g, 1, 1, data); err != nil {
				return err
			}
			if err := SendBuffer(ctx, g, 1, 2, data); err != nil {
				return err
			}
			return Send(ctx, g, 1, 3, float32(0.25))
		}

		fixed := make([]float64, len(data))
		if err := ReceiveBuffer(ctx, g, 0, 0, fixed); err != nil {
			return err
		}
		sentDynamic := make([]float64, len(data))
		if err := ReceiveBuffer(ctx, g, 0, 1, sentDynamic); err != nil {
			return err
		}
		receivedDynamic, err := ReceiveAs[[]float64](ctx, g, 0, 2)
		if err != nil {
			return err
		}
		for _, buf := range [][]float64{fixed, sentDynamic, receivedDynamic} {
			if !bytes.Equal(codec.Bytes(data), codec.Bytes(buf)) {
				return errors.Errorf("unexpected buffer %v", buf)
			}
		}

		f, err := ReceiveAs[float32](ctx, g, 0, 3)
		if err != nil {
			return err
		}
		if f != 0.25 {
			return errors.Errorf("0.25 expected, got %f", f)
		}
		return nil
	})
}

func TestShapeMismatch(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	c := cluster.NewTesting(t, cluster.Config{Size: 2})
	errs := c.Run(ctx, func(ctx context.Context, g *group.Group) error {
		if g.Rank() == 0 {
			if err := SendBuffer(ctx, g, 1, 0, []int32{1, 2, 3}); err != nil {
				return err
			}
			if err := SendBuffer(ctx, g, 1, 1, []int32{1, 2, 3}); err != nil {
				return err
			}
			if err := Send(ctx, g, 1, 2, "text"); err != nil {
				return err
			}
			return Send(ctx, g, 1, 3, "text")
		}

		if err := ReceiveBuffer(ctx, g, 0, 0, make([]int32, 2)); !errors.Is(err, types.ErrShapeMismatch) {
			return errors.Errorf("shape mismatch expected, got %v", err)
		}
		if err := ReceiveBuffer(ctx, g, 0, 1, make([]int64, 3)); !errors.Is(err, types.ErrShapeMismatch) {
			return errors.Errorf("shape mismatch expected, got %v", err)
		}
		if err := ReceiveBuffer(ctx, g, 0, 2, make([]int64, 3)); !errors.Is(err, types.ErrShapeMismatch) {
			return errors.Errorf("shape mismatch expected, got %v", err)
		}
		if _, err := ReceiveAs[int](ctx, g, 0, 3); !errors.Is(err, types.ErrShapeMismatch) {
			return errors.Errorf("shape mismatch expected, got %v", err)
		}
		return nil
	})
	requireT.NoError(errs[0])
	requireT.NoError(errs[1])
}

func TestRankOutsideGroup(t *testing.T) {
	ctx := qa.NewContext(t)

	c := cluster.NewTesting(t, cluster.Config{Size: 2})
	c.RunOK(ctx, func(ctx context.Context, g *group.Group) error {
		if err := Send(ctx, g, 2, 0, 1); !errors.Is(err, types.ErrDestinationMismatch) {
			return errors.Errorf("destination mismatch expected, got %v", err)
		}
		if _, err := Receive(ctx, g, -1, 0); !errors.Is(err, types.ErrSourceMismatch) {
			return errors.Errorf("source mismatch expected, got %v", err)
		}
		return nil
	})
}

func TestAs(t *testing.T) {
	requireT := require.New(t)

	v, err := As[int](5)
	requireT.NoError(err)
	requireT.Equal(5, v)

	g, err := As[wire.Goodbye](&wire.Goodbye{Frames: 1})
	requireT.NoError(err)
	requireT.Equal(wire.Goodbye{Frames: 1}, g)

	_, err = As[string](5)
	requireT.ErrorIs(err, types.ErrShapeMismatch)
}
