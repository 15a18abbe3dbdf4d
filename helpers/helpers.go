package helpers

import (
	"strconv"

	"github.com/cespare/xxhash"
	"github.com/samber/lo"

	"github.com/outofforest/mpi/types"
)

// Peers returns ranks of the peers by removing local rank from the group.
func Peers(config types.Config) []types.Rank {
	return lo.FilterMap(lo.Range(config.Size()), func(r int, _ int) (types.Rank, bool) {
		return types.Rank(r), types.Rank(r) != config.Rank
	})
}

// Fingerprint computes the hash identifying the group.
// Addresses are not included because each rank may reach its peers through different routes.
func Fingerprint(config types.Config) uint64 {
	d := xxhash.New()
	_, _ = d.Write([]byte(config.GroupID))
	_, _ = d.Write([]byte{0})
	_, _ = d.Write([]byte(strconv.Itoa(config.Size())))
	return d.Sum64()
}
