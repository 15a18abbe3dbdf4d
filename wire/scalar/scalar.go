package scalar

// Wrappers used to send plain Go values in dynamic mode.
type (
	// Int wraps int.
	Int struct {
		Value int64
	}

	// Int64 wraps int64.
	Int64 struct {
		Value int64
	}

	// Uint64 wraps uint64.
	Uint64 struct {
		Value uint64
	}

	// Float64 wraps float64 stored as IEEE 754 bits.
	Float64 struct {
		Bits uint64
	}

	// String wraps string.
	String struct {
		Value string
	}

	// Bytes wraps []byte.
	Bytes struct {
		Value []byte
	}

	// Bool wraps bool.
	Bool struct {
		Value bool
	}
)
