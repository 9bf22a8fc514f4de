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

// Package rawdb contains the key schema and low level accessors of the
// per-issue chain store.
package rawdb

import "encoding/binary"

var (
	// heightKey tracks the index of the chain head.
	heightKey = []byte("ChainHeight")

	// blockPrefix + big-endian uint32 index -> RLP encoded block.
	blockPrefix = []byte("b")
)

// blockKey computes the storage key of the block at the given index.
func blockKey(index uint32) []byte {
	key := make([]byte, len(blockPrefix)+4)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint32(key[len(blockPrefix):], index)
	return key
}
