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

// Package core implements the per-issue chain store: an indexed persistent
// map of proof-of-worked blocks with a ballot pool, append, and
// longest-chain reorganization.
package core

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/votechain/go-votechain/core/rawdb"
	"github.com/votechain/go-votechain/core/types"
)

// ChainEvent is posted on every head change: a local append or a completed
// reorg.
type ChainEvent struct {
	Block  *types.Block
	Height uint32
}

// Blockchain is the persistent per-issue store. Indices are contiguous from
// 1 (genesis) to the head; a rebuilt in-memory hash index maps block hashes
// back to indices. All access is serialized behind a single lock.
type Blockchain struct {
	config  Config
	issueID string

	mu        sync.Mutex
	db        *leveldb.DB
	hashIndex map[common.Hash]uint32
	height    uint32
	sealed    bool

	// pool of signed ballots awaiting inclusion; an ordered bag, the tail
	// of which is split off to mint new blocks
	pool []*types.SignedBallot

	// signer mints new blocks for locally pooled ballots
	signer ed25519.PrivateKey

	chainFeed event.Feed
}

// Open creates or reopens the chain store for an issue. A fresh store is
// seeded with the deterministic genesis block; an existing one has its hash
// index rebuilt by scanning all blocks.
func Open(config Config, issueID string, signer ed25519.PrivateKey) (*Blockchain, error) {
	db, err := leveldb.OpenFile(filepath.Join(config.Path, issueID), nil)
	if err != nil {
		return nil, err
	}
	bc := &Blockchain{
		config:    config,
		issueID:   issueID,
		db:        db,
		hashIndex: make(map[common.Hash]uint32),
		signer:    signer,
	}
	if bc.height = rawdb.ReadHeight(db); bc.height == 0 {
		log.Info("No blocks found, adding genesis", "issue", issueID)
		genesis := types.NewGenesisBlock(config.genesis())
		batch := new(leveldb.Batch)
		if err := rawdb.WriteBlock(batch, 1, genesis); err != nil {
			db.Close()
			return nil, err
		}
		rawdb.WriteHeight(batch, 1)
		if err := db.Write(batch, nil); err != nil {
			db.Close()
			return nil, err
		}
		bc.height = 1
		bc.hashIndex[genesis.Hash()] = 1
		return bc, nil
	}
	for i := uint32(1); i <= bc.height; i++ {
		block, err := rawdb.ReadBlock(db, i)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("rebuilding hash index: %w", err)
		}
		bc.hashIndex[block.Hash()] = i
		if i == bc.height {
			bc.sealed = block.Sealed()
		}
	}
	log.Info("Reopened chain", "issue", issueID, "height", bc.height, "sealed", bc.sealed)
	return bc, nil
}

// Close releases the underlying store.
func (bc *Blockchain) Close() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.db.Close()
}

// IssueID returns the issue this chain tracks.
func (bc *Blockchain) IssueID() string { return bc.issueID }

// Height returns the current head index.
func (bc *Blockchain) Height() uint32 {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.height
}

// GetBlock retrieves the block at the given index.
func (bc *Blockchain) GetBlock(index uint32) (*types.Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.getBlock(index)
}

func (bc *Blockchain) getBlock(index uint32) (*types.Block, error) {
	block, err := rawdb.ReadBlock(bc.db, index)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%w: index %d", ErrBlockNotFound, index)
	}
	return block, err
}

// GetBlockByHash retrieves a block through the hash index.
func (bc *Blockchain) GetBlockByHash(hash common.Hash) (*types.Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	index, ok := bc.hashIndex[hash]
	if !ok {
		return nil, fmt.Errorf("%w: hash %x", ErrBlockNotFound, hash[:4])
	}
	return bc.getBlock(index)
}

// HashAt returns the hash of the block at the given index.
func (bc *Blockchain) HashAt(index uint32) (common.Hash, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.hashAt(index)
}

func (bc *Blockchain) hashAt(index uint32) (common.Hash, error) {
	block, err := bc.getBlock(index)
	if err != nil {
		return common.Hash{}, err
	}
	return block.Hash(), nil
}

// BlocksFrom returns the blocks from start to the head, inclusive.
func (bc *Blockchain) BlocksFrom(start uint32) ([]*types.Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.blocksFrom(start)
}

func (bc *Blockchain) blocksFrom(start uint32) ([]*types.Block, error) {
	if start == 0 || start > bc.height {
		return nil, fmt.Errorf("%w: index %d", ErrBlockNotFound, start)
	}
	blocks := make([]*types.Block, 0, bc.height-start+1)
	for i := start; i <= bc.height; i++ {
		block, err := bc.getBlock(i)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// Blocks returns a snapshot of the whole chain for the resolver.
func (bc *Blockchain) Blocks() ([]*types.Block, error) {
	return bc.BlocksFrom(1)
}

// PoolSize returns the number of ballots awaiting inclusion.
func (bc *Blockchain) PoolSize() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.pool)
}

// Append validates a block against the head and persists it at height+1.
func (bc *Blockchain) Append(block *types.Block) error {
	bc.mu.Lock()
	ev, err := bc.append(block)
	bc.mu.Unlock()
	if err == nil {
		bc.chainFeed.Send(ev)
	}
	return err
}

func (bc *Blockchain) append(block *types.Block) (ChainEvent, error) {
	if bc.sealed {
		return ChainEvent{}, ErrChainSealed
	}
	head, err := bc.getBlock(bc.height)
	if err != nil {
		return ChainEvent{}, err
	}
	if !block.IsValid(head) {
		return ChainEvent{}, fmt.Errorf("%w: does not extend head", ErrInvalidNewBlock)
	}
	if err := block.VerifySeal(); err != nil {
		return ChainEvent{}, fmt.Errorf("%w: %v", ErrInvalidNewBlock, err)
	}
	batch := new(leveldb.Batch)
	if err := rawdb.WriteBlock(batch, bc.height+1, block); err != nil {
		return ChainEvent{}, err
	}
	rawdb.WriteHeight(batch, bc.height+1)
	if err := bc.db.Write(batch, nil); err != nil {
		return ChainEvent{}, err
	}
	bc.height++
	bc.hashIndex[block.Hash()] = bc.height
	bc.sealed = block.Sealed()
	log.Debug("Appended block", "issue", bc.issueID, "height", bc.height, "hash", block.Hash())
	return ChainEvent{Block: block, Height: bc.height}, nil
}

// PoolBallot adds a signed ballot to the pool. Once the pool holds a full
// block the last BlockSize ballots are split off, mined over the current
// head and appended; the pool head acts as overflow, keeping ordering
// stable under concurrent pooling.
func (bc *Blockchain) PoolBallot(sb *types.SignedBallot) error {
	bc.mu.Lock()
	if bc.sealed {
		bc.mu.Unlock()
		return ErrChainSealed
	}
	bc.pool = append(bc.pool, sb)
	size := bc.config.blockSize()
	if len(bc.pool) < size {
		bc.mu.Unlock()
		return nil
	}
	ballots := make([]*types.SignedBallot, size)
	copy(ballots, bc.pool[len(bc.pool)-size:])
	bc.pool = bc.pool[:len(bc.pool)-size]

	head, err := bc.getBlock(bc.height)
	if err != nil {
		bc.mu.Unlock()
		return err
	}
	block, err := types.Mine(bc.signer, head, ballots)
	if err != nil {
		bc.mu.Unlock()
		return err
	}
	ev, err := bc.append(block)
	bc.mu.Unlock()
	if err == nil {
		bc.chainFeed.Send(ev)
	}
	return err
}

// Seal mints a terminal block, closing the chain to further appends.
func (bc *Blockchain) Seal(note string) error {
	bc.mu.Lock()
	head, err := bc.getBlock(bc.height)
	if err != nil {
		bc.mu.Unlock()
		return err
	}
	block, err := types.NewSealBlock(bc.signer, head, note)
	if err != nil {
		bc.mu.Unlock()
		return err
	}
	ev, err := bc.append(block)
	bc.mu.Unlock()
	if err == nil {
		bc.chainFeed.Send(ev)
	}
	return err
}

// Reorg replaces the chain suffix from forkIndex with newBlocks, whose
// first element must equal the local block at forkIndex. Ballots of
// stripped blocks that do not reappear in the new suffix are pushed back
// into the pool. The whole replacement is a single batched write: on any
// failure neither the store nor the in-memory state changes.
func (bc *Blockchain) Reorg(forkIndex uint32, newBlocks []*types.Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if len(newBlocks) == 0 || forkIndex == 0 || forkIndex > bc.height {
		return fmt.Errorf("%w: bad fork index %d", ErrInvalidNewBlock, forkIndex)
	}
	forkHash, err := bc.hashAt(forkIndex)
	if err != nil {
		return err
	}
	if newBlocks[0].Hash() != forkHash {
		return fmt.Errorf("%w: fork block mismatch at %d", ErrInvalidNewBlock, forkIndex)
	}
	if !IsValidChain(newBlocks) {
		return fmt.Errorf("%w: suffix does not link", ErrInvalidNewBlock)
	}
	for _, block := range newBlocks[1:] {
		if err := block.VerifySeal(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidNewBlock, err)
		}
	}

	// Signatures present in the new suffix; stripped ballots found here are
	// already accounted for and stay out of the pool.
	incoming := make(map[[types.SignatureLength]byte]struct{})
	for _, block := range newBlocks {
		for _, sb := range block.Ballots() {
			incoming[sb.Signature] = struct{}{}
		}
	}

	// Strip back to the divergence point, rescuing lost ballots.
	batch := new(leveldb.Batch)
	var (
		rescued  []*types.SignedBallot
		stripped []common.Hash
	)
	for i := forkIndex; i <= bc.height; i++ {
		block, err := bc.getBlock(i)
		if err != nil {
			return err
		}
		stripped = append(stripped, block.Hash())
		for _, sb := range block.Ballots() {
			if _, ok := incoming[sb.Signature]; !ok {
				rescued = append(rescued, sb)
			}
		}
		rawdb.DeleteBlock(batch, i)
	}

	// Reappend the new suffix.
	for k, block := range newBlocks {
		if err := rawdb.WriteBlock(batch, forkIndex+uint32(k), block); err != nil {
			return err
		}
	}
	newHeight := forkIndex + uint32(len(newBlocks)) - 1
	rawdb.WriteHeight(batch, newHeight)

	if err := bc.db.Write(batch, nil); err != nil {
		return err
	}

	// The write is durable; commit the in-memory view.
	for _, h := range stripped {
		delete(bc.hashIndex, h)
	}
	for k, block := range newBlocks {
		bc.hashIndex[block.Hash()] = forkIndex + uint32(k)
	}
	bc.height = newHeight
	bc.sealed = newBlocks[len(newBlocks)-1].Sealed()
	bc.pool = append(bc.pool, rescued...)
	log.Info("Reorganized chain", "issue", bc.issueID, "fork", forkIndex, "height", bc.height, "rescued", len(rescued))
	return nil
}

// SubscribeChainEvents registers for head-change notifications.
func (bc *Blockchain) SubscribeChainEvents(ch chan<- ChainEvent) event.Subscription {
	return bc.chainFeed.Subscribe(ch)
}

// IsValidChain reports whether every adjacent pair of blocks links by
// parent hash. Chains of length zero or one are trivially valid.
func IsValidChain(blocks []*types.Block) bool {
	for i := 1; i < len(blocks); i++ {
		if !blocks[i].IsValid(blocks[i-1]) {
			return false
		}
	}
	return true
}
