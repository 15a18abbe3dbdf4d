package main

import (
	"github.com/outofforest/mpi/wire"
	"github.com/outofforest/proton"
)

//go:generate go run .

func main() {
	proton.Generate("../p2p.proton.go",
		proton.Message(wire.Frame{}),
		proton.Message(wire.Goodbye{}),
	)
}
