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

package core

import (
	"crypto/ed25519"

	"github.com/votechain/go-votechain/core/types"
)

// DefaultBlockSize is the number of pooled ballots that triggers minting a
// new block.
const DefaultBlockSize = 2

// Config holds the chain store parameters for one node.
type Config struct {
	// Path is the base directory; each issue chain lives in its own
	// subdirectory beneath it.
	Path string

	// BlockSize overrides DefaultBlockSize when positive.
	BlockSize int

	// Genesis is the blueprint all nodes of an issue share. When nil the
	// development blueprint is used.
	Genesis *types.GenesisSpec
}

func (c *Config) blockSize() int {
	if c.BlockSize > 0 {
		return c.BlockSize
	}
	return DefaultBlockSize
}

func (c *Config) genesis() *types.GenesisSpec {
	if c.Genesis != nil {
		return c.Genesis
	}
	return DevGenesisSpec()
}

// DevGenesisSpec returns the fixed-seed genesis blueprint used by
// development and test networks. Production issues must configure their own
// issuer.
func DevGenesisSpec() *types.GenesisSpec {
	seed := make([]byte, ed25519.SeedSize)
	copy(seed, "votechain-dev-genesis")
	return &types.GenesisSpec{Issuer: ed25519.NewKeyFromSeed(seed), Note: "dev"}
}
