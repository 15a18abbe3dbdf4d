package main

import (
	"github.com/outofforest/mpi/wire/scalar"
	"github.com/outofforest/proton"
)

//go:generate go run .

func main() {
	proton.Generate("../scalar.proton.go",
		proton.Message(scalar.Int{}),
		proton.Message(scalar.Int64{}),
		proton.Message(scalar.Uint64{}),
		proton.Message(scalar.Float64{}),
		proton.Message(scalar.String{}),
		proton.Message(scalar.Bytes{}),
		proton.Message(scalar.Bool{}),
	)
}
