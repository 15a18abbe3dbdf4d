package codec

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/outofforest/mpi/wire"
)

const headerSize = 29

// Chain computes checksums of the consecutive frames sent over the link.
// Each checksum is seeded with the previous one, so reordered, lost or corrupted frames are detected.
type Chain struct {
	checksum uint64
	header   [headerSize]byte
}

// Next computes the checksum of the frame and its payload.
func (c *Chain) Next(frame *wire.Frame, payload []byte) uint64 {
	c.header[0] = byte(frame.Channel)
	c.header[1] = byte(frame.Kind)
	c.header[2] = byte(frame.Op)
	c.header[3] = byte(frame.Element)
	c.header[4] = byte(frame.Status)
	binary.LittleEndian.PutUint64(c.header[5:], uint64(frame.Tag))
	binary.LittleEndian.PutUint64(c.header[13:], frame.Count)
	binary.LittleEndian.PutUint64(c.header[21:], frame.Size)

	c.checksum = xxh3.HashSeed(payload, xxh3.HashSeed(c.header[:], c.checksum))
	return c.checksum
}

// Verify verifies the checksum carried by the frame.
func (c *Chain) Verify(frame *wire.Frame, payload []byte) error {
	if checksum := c.Next(frame, payload); checksum != frame.Checksum {
		return errors.Errorf("checksum mismatch: expected %x, got %x", checksum, frame.Checksum)
	}
	return nil
}
