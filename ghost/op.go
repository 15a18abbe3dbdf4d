package ghost

import (
	"math"
	"reflect"

	"github.com/outofforest/mpi/codec"
)

// Op combines contributions accumulated on the owner.
type Op[T codec.Numeric] struct {
	// Identity is the value which does not change the result when combined.
	Identity T

	// Combine combines two values.
	Combine func(a, b T) T
}

// Sum adds contributions.
func Sum[T codec.Numeric]() Op[T] {
	return Op[T]{
		Identity: 0,
		Combine: func(a, b T) T {
			return a + b
		},
	}
}

// Prod multiplies contributions.
func Prod[T codec.Numeric]() Op[T] {
	return Op[T]{
		Identity: 1,
		Combine: func(a, b T) T {
			return a * b
		},
	}
}

// Max takes the greatest contribution.
func Max[T codec.Numeric]() Op[T] {
	return Op[T]{
		Identity: lowest[T](),
		Combine: func(a, b T) T {
			return max(a, b)
		},
	}
}

// Min takes the smallest contribution.
func Min[T codec.Numeric]() Op[T] {
	return Op[T]{
		Identity: highest[T](),
		Combine: func(a, b T) T {
			return min(a, b)
		},
	}
}

func lowest[T codec.Numeric]() T {
	var v int64
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Int8:
		v = math.MinInt8
	case reflect.Int16:
		v = math.MinInt16
	case reflect.Int32:
		v = math.MinInt32
	case reflect.Int64:
		v = math.MinInt64
	case reflect.Float32, reflect.Float64:
		inf := math.Inf(-1)
		return T(inf)
	}
	return T(v)
}

func highest[T codec.Numeric]() T {
	var v uint64
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Int8:
		v = math.MaxInt8
	case reflect.Int16:
		v = math.MaxInt16
	case reflect.Int32:
		v = math.MaxInt32
	case reflect.Int64:
		v = math.MaxInt64
	case reflect.Uint8:
		v = math.MaxUint8
	case reflect.Uint16:
		v = math.MaxUint16
	case reflect.Uint32:
		v = math.MaxUint32
	case reflect.Uint64:
		v = math.MaxUint64
	case reflect.Float32, reflect.Float64:
		inf := math.Inf(1)
		return T(inf)
	}
	return T(v)
}
