// Copyright 2024 The go-votechain Authors
// This file is part of the go-votechain library.
//
// The go-votechain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-votechain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-votechain library. If not, see <http://www.gnu.org/licenses/>.

// Package tally resolves liquid-democracy delegations into per-voter
// weights and folds the chain's encrypted ballots into a decrypted outcome.
package tally

import (
	"math/rand"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/votechain/go-votechain/core/types"
)

// DelegationGraph maps each delegating voter to their representative and
// keeps the inverse adjacency for power resolution. Cycles are permitted;
// traversal handles them.
type DelegationGraph struct {
	delegations map[types.VoterID]types.VoterID
	inverse     map[types.VoterID][]types.VoterID
}

// NewDelegationGraph builds a graph from delegator -> representative pairs.
func NewDelegationGraph(delegations map[types.VoterID]types.VoterID) *DelegationGraph {
	inverse := make(map[types.VoterID][]types.VoterID)
	for delegator, representative := range delegations {
		inverse[representative] = append(inverse[representative], delegator)
	}
	return &DelegationGraph{delegations: delegations, inverse: inverse}
}

// RandomDelegations draws a random delegation map over a census: each
// member delegates to a uniformly chosen target with 90% probability.
// Demo and test helper.
func RandomDelegations(census []types.VoterID) map[types.VoterID]types.VoterID {
	delegations := make(map[types.VoterID]types.VoterID)
	for _, voter := range census {
		if rand.Float64() > 0.1 {
			delegations[voter] = census[rand.Intn(len(census))]
		}
	}
	return delegations
}

// Representative returns the direct delegation target of a voter, if any.
func (g *DelegationGraph) Representative(v types.VoterID) (types.VoterID, bool) {
	rep, ok := g.delegations[v]
	return rep, ok
}

// ResolvePower counts the voters whose power accumulates on v: v itself
// plus every transitive delegator who did not cast a ballot. The traversal
// is an iterative walk over the inverse adjacency with an explicit stack; a
// visited set makes cycles safe, and it stops at any delegator who is a
// voter, since they retain their own power.
func (g *DelegationGraph) ResolvePower(v types.VoterID, voters mapset.Set[types.VoterID]) uint64 {
	stack := []types.VoterID{v}
	visited := mapset.NewThreadUnsafeSet[types.VoterID]()
	power := uint64(0)

	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visited.Add(next) {
			continue
		}
		power++
		for _, child := range g.inverse[next] {
			if !visited.Contains(child) && !voters.Contains(child) {
				stack = append(stack, child)
			}
		}
	}
	return power
}

// GenerateWeights resolves the power of every voter who cast a ballot.
// When every census member voted, all weights are 1.
func (g *DelegationGraph) GenerateWeights(voters mapset.Set[types.VoterID]) map[types.VoterID]uint64 {
	weights := make(map[types.VoterID]uint64, voters.Cardinality())
	voters.Each(func(v types.VoterID) bool {
		weights[v] = g.ResolvePower(v, voters)
		return false
	})
	return weights
}
