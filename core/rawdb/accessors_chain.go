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

package rawdb

import (
	"encoding/binary"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/votechain/go-votechain/core/types"
)

// HasBlock reports whether a block is stored at the given index.
func HasBlock(db *leveldb.DB, index uint32) bool {
	has, err := db.Has(blockKey(index), nil)
	return err == nil && has
}

// ReadBlock retrieves the block at the given index. It returns
// leveldb.ErrNotFound when the index is absent.
func ReadBlock(db *leveldb.DB, index uint32) (*types.Block, error) {
	data, err := db.Get(blockKey(index), nil)
	if err != nil {
		return nil, err
	}
	return types.DecodeBlock(data)
}

// WriteBlock queues a block write at the given index into a batch.
func WriteBlock(batch *leveldb.Batch, index uint32, block *types.Block) error {
	data, err := block.EncodeToBytes()
	if err != nil {
		return err
	}
	batch.Put(blockKey(index), data)
	return nil
}

// DeleteBlock queues the removal of the block at the given index.
func DeleteBlock(batch *leveldb.Batch, index uint32) {
	batch.Delete(blockKey(index))
}

// ReadHeight retrieves the chain head index, or 0 for a fresh store.
func ReadHeight(db *leveldb.DB) uint32 {
	data, err := db.Get(heightKey, nil)
	if err != nil || len(data) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32(data)
}

// WriteHeight queues a head index update into a batch.
func WriteHeight(batch *leveldb.Batch, height uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], height)
	batch.Put(heightKey, buf[:])
}
