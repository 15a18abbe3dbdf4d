package entities

// Token is passed around the ring of ranks.
type Token struct {
	Path string
	Hops uint64
}

// Cell is the element of the mesh distributed among ranks.
type Cell struct {
	ID    uint64
	Owner uint64
	Label string
}
