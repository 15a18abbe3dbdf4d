package main

import (
	"github.com/outofforest/mpi/integration/entities"
	"github.com/outofforest/proton"
)

//go:generate go run .

func main() {
	proton.Generate("../entities.proton.go",
		proton.Message(entities.Token{}),
		proton.Message(entities.Cell{}),
	)
}
