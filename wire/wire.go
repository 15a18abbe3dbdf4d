package wire

import "github.com/outofforest/mpi/types"

// Channel separates message streams of different layers sharing the same link.
type Channel uint8

// Available channels.
const (
	ChannelPointToPoint Channel = iota
	ChannelCollective
	ChannelGhost
)

// Kind defines the variant of the payload following the frame.
type Kind uint8

// Available kinds.
const (
	KindEmpty Kind = iota
	KindScalar
	KindObject
	KindBuffer
	KindNumber
)

// Op identifies the collective operation the frame belongs to.
type Op uint8

// Available ops.
const (
	OpNone Op = iota
	OpBarrier
	OpRelease
	OpBcast
	OpScatter
	OpGather
)

// Element is the type of the element stored in the fixed-capacity buffer.
type Element uint8

// Available elements.
const (
	ElementNone Element = iota
	ElementInt8
	ElementInt16
	ElementInt32
	ElementInt64
	ElementUint8
	ElementUint16
	ElementUint32
	ElementUint64
	ElementFloat32
	ElementFloat64
)

// Status reports the outcome of the operation on the sending side.
type Status uint8

// Available statuses.
const (
	StatusOK Status = iota
	StatusShapeMismatch
)

// Hello is the message exchanged between peers when connected.
type Hello struct {
	GroupID     string
	Fingerprint uint64
	Rank        uint64
	Size        uint64
}

// Frame is the header of the message. If Size is greater than zero, raw payload of that size follows.
type Frame struct {
	Channel  Channel
	Kind     Kind
	Op       Op
	Element  Element
	Status   Status
	Tag      types.Tag
	Count    uint64
	Size     uint64
	Checksum uint64
}

// Goodbye is sent by the peer which is shutting down. Frames is the number of frames sent over the link.
type Goodbye struct {
	Frames uint64
}
