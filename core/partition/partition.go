// Package partition maps keys to partitions and partitions to the cluster
// members that own them.
//
// Ownership uses Highest Random Weight (rendezvous) hashing, so the same
// member list always yields the same owners and membership changes move
// only the partitions of affected members.
package partition

import (
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// FromKey derives a stable partition (0..count-1) from an arbitrary key.
func FromKey(key string, count uint32, seed string) uint32 {
	if count == 0 {
		return 0
	}
	return uint32(hash64([]byte(key), "", seed) % uint64(count))
}

// Owner returns the member owning the given partition, or "" when the
// member list is empty.
func Owner(id uint32, members []string, seed string) string {
	key := partitionKey(id)

	best := ""
	var bestScore uint64
	for _, m := range members {
		score := hash64(key, m, seed)
		if best == "" || score > bestScore || (score == bestScore && m < best) {
			best = m
			bestScore = score
		}
	}
	return best
}

// OwnedBy returns the partitions owned by member, given the full member
// list. The result is deterministic for a given list, independent of order.
func OwnedBy(member string, members []string, count uint32, seed string) []uint32 {
	if count == 0 || len(members) == 0 {
		return nil
	}

	sorted := append([]string(nil), members...)
	sort.Strings(sorted)

	owned := make([]uint32, 0, count/uint32(len(sorted))+1)
	for id := uint32(0); id < count; id++ {
		if Owner(id, sorted, seed) == member {
			owned = append(owned, id)
		}
	}
	return owned
}

func partitionKey(id uint32) []byte {
	// textual key avoids binary zeros colliding with the seed separator
	return []byte(fmt.Sprintf("partition:%d", id))
}

func hash64(key []byte, member string, seed string) uint64 {
	h, _ := blake2b.New(8, nil)
	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}
	h.Write(key)
	if member != "" {
		h.Write([]byte{0})
		h.Write([]byte(member))
	}
	return binary.BigEndian.Uint64(h.Sum(nil))
}
