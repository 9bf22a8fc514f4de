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

// Package census models the eligible-voter set: the verifying keys
// authorized to vote on an issue. Census management itself is external;
// the node only consumes the set.
package census

import (
	"os"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/votechain/go-votechain/core/types"
	"github.com/votechain/go-votechain/crypto"
)

// Census is the set of voters eligible for an issue.
type Census struct {
	members mapset.Set[types.VoterID]
}

// New builds a census from a list of voter identifiers.
func New(members ...types.VoterID) *Census {
	return &Census{members: mapset.NewSet(members...)}
}

// FromDirectory loads a census from a directory whose every file holds one
// PKCS#8 identity keypair. Testing convenience; real deployments inject
// the set from their registry.
func FromDirectory(dir string) (*Census, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	c := &Census{members: mapset.NewSet[types.VoterID]()}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		sk, err := crypto.LoadVoterKey(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		c.members.Add(crypto.VoterIDOf(sk))
	}
	return c, nil
}

// Contains reports whether a voter is eligible.
func (c *Census) Contains(id types.VoterID) bool {
	return c.members.Contains(id)
}

// Members returns the eligible voters in no particular order.
func (c *Census) Members() []types.VoterID {
	return c.members.ToSlice()
}

// Size returns the number of eligible voters.
func (c *Census) Size() int {
	return c.members.Cardinality()
}
