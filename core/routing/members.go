package routing

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/yilinwei/hazelcast/core/invocation"
	"github.com/yilinwei/hazelcast/core/partition"
)

// DefaultPartitions matches the partition count used by small clusters.
const DefaultPartitions = 271

// MemberTable tracks the known member addresses and resolves partition
// ownership. Ownership is derived, not stored, so a membership update
// immediately remaps only the partitions of affected members.
type MemberTable struct {
	partitions uint32
	seed       string

	mu      sync.RWMutex
	members []string
}

func NewMemberTable(members []string, partitions uint32, seed string) *MemberTable {
	if partitions == 0 {
		partitions = DefaultPartitions
	}
	return &MemberTable{
		partitions: partitions,
		seed:       seed,
		members:    slices.Clone(members),
	}
}

// Update replaces the member list on a topology change.
func (mt *MemberTable) Update(members []string) {
	mt.mu.Lock()
	mt.members = slices.Clone(members)
	mt.mu.Unlock()
}

func (mt *MemberTable) Members() []string {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return slices.Clone(mt.members)
}

func (mt *MemberTable) Contains(addr string) bool {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return slices.Contains(mt.members, addr)
}

// Partitions returns the fixed partition count.
func (mt *MemberTable) Partitions() uint32 { return mt.partitions }

// PartitionForKey maps an arbitrary key onto a partition.
func (mt *MemberTable) PartitionForKey(key string) int32 {
	return int32(partition.FromKey(key, mt.partitions, mt.seed))
}

// OwnerOf resolves the member owning a partition.
func (mt *MemberTable) OwnerOf(partitionID int32) (string, error) {
	if partitionID < 0 || uint32(partitionID) >= mt.partitions {
		return "", fmt.Errorf("routing: partition %d out of range (partitions=%d)", partitionID, mt.partitions)
	}

	mt.mu.RLock()
	defer mt.mu.RUnlock()
	if len(mt.members) == 0 {
		return "", fmt.Errorf("%w: %w", invocation.ErrTargetNotActive, ErrNoMembers)
	}
	return partition.Owner(uint32(partitionID), mt.members, mt.seed), nil
}

// Random picks any known member.
func (mt *MemberTable) Random() (string, error) {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	if len(mt.members) == 0 {
		return "", fmt.Errorf("%w: %w", invocation.ErrTargetNotActive, ErrNoMembers)
	}
	return mt.members[rand.IntN(len(mt.members))], nil
}
