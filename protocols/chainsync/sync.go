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

package chainsync

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/votechain/go-votechain/core"
	"github.com/votechain/go-votechain/core/types"
)

// Initiate drives the initiator side over a substream: walk backward from
// the local head until the peer confirms a shared block, collect the
// streamed suffix, and apply it as a reorg. Any protocol, decoding or
// precondition failure is returned without the chain having been mutated;
// partial buffers are simply dropped with the substream.
func Initiate(ctx context.Context, stream io.ReadWriter, chain *core.Blockchain) error {
	height := chain.Height()
	log.Debug("Starting chain sync", "issue", chain.IssueID(), "height", height)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		hash, err := chain.HashAt(height)
		if err != nil {
			return err
		}
		if err := writeMsg(stream, SyncRequestMsg, &SyncRequest{Index: height, Hash: hash}); err != nil {
			return fmt.Errorf("sending sync request: %w", err)
		}

		code, payload, err := readMsg(stream)
		if err != nil {
			return fmt.Errorf("reading sync response: %w", err)
		}
		switch code {
		case SyncFoundMsg:
			forkIndex, blocks, err := collectSuffix(stream, payload)
			if err != nil {
				return err
			}
			if err := chain.Reorg(forkIndex, blocks); err != nil {
				return fmt.Errorf("applying sync result: %w", err)
			}
			log.Info("Chain sync complete", "issue", chain.IssueID(), "fork", forkIndex, "height", chain.Height())
			return nil

		case SyncNotFoundMsg:
			if height == 1 {
				// The peer disagrees even at genesis. Every genesis block
				// hashes alike, so its block at index 1 is not a genesis
				// block and its chain is invalid.
				return ErrNoCommonAncestor
			}
			height--

		default:
			return fmt.Errorf("%w: code %#x", ErrUnexpectedMessage, code)
		}
	}
}

// collectSuffix buffers the streamed Found frames, starting from the one
// already read, until a frame announces no remainder.
func collectSuffix(stream io.Reader, first []byte) (uint32, []*types.Block, error) {
	var found SyncFound
	if err := decodeFound(first, &found); err != nil {
		return 0, nil, err
	}
	forkIndex := found.ForkIndex
	blocks := []*types.Block{found.Block}
	for found.Remaining > 0 {
		// Decode into a fresh value: rlp reuses a non-nil Block pointer,
		// which would overwrite the block already buffered.
		found = SyncFound{}
		if err := expectMsg(stream, SyncFoundMsg, &found); err != nil {
			return 0, nil, fmt.Errorf("reading sync stream: %w", err)
		}
		if found.ForkIndex != forkIndex {
			return 0, nil, fmt.Errorf("%w: fork index changed mid-stream", ErrUnexpectedMessage)
		}
		blocks = append(blocks, found.Block)
	}
	return forkIndex, blocks, nil
}

func decodeFound(payload []byte, found *SyncFound) error {
	if err := rlp.DecodeBytes(payload, found); err != nil {
		return fmt.Errorf("decoding sync response: %w", err)
	}
	return nil
}

// Serve drives the responder side: answer fork-point probes until one
// matches, then stream every block from the fork to the local head.
func Serve(ctx context.Context, stream io.ReadWriter, chain *core.Blockchain) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		var req SyncRequest
		if err := expectMsg(stream, SyncRequestMsg, &req); err != nil {
			return fmt.Errorf("reading sync request: %w", err)
		}
		hash, err := chain.HashAt(req.Index)
		if errors.Is(err, core.ErrBlockNotFound) {
			// The peer asks above our head: it is the longer chain and
			// should be serving us instead.
			return fmt.Errorf("peer is ahead of local chain: %w", err)
		}
		if err != nil {
			return err
		}

		if hash == req.Hash {
			log.Debug("Found divergence point", "issue", chain.IssueID(), "fork", req.Index)
			blocks, err := chain.BlocksFrom(req.Index)
			if err != nil {
				return err
			}
			remaining := uint32(len(blocks))
			for _, block := range blocks {
				remaining--
				msg := &SyncFound{ForkIndex: req.Index, Block: block, Remaining: remaining}
				if err := writeMsg(stream, SyncFoundMsg, msg); err != nil {
					return fmt.Errorf("streaming sync block: %w", err)
				}
			}
			return nil
		}

		if err := writeMsg(stream, SyncNotFoundMsg, &struct{}{}); err != nil {
			return err
		}
		if req.Index == 0 {
			return ErrNoCommonAncestor
		}
	}
}

// SendHeartbeat performs the initiator side of a height exchange and
// returns the peer's height.
func SendHeartbeat(stream io.ReadWriter, chain *core.Blockchain) (uint32, error) {
	if err := writeMsg(stream, HeartbeatMsg, &HeartbeatMessage{Height: chain.Height()}); err != nil {
		return 0, err
	}
	var resp HeartbeatMessage
	if err := expectMsg(stream, HeartbeatMsg, &resp); err != nil {
		return 0, err
	}
	return resp.Height, nil
}

// ServeHeartbeat answers one height exchange.
func ServeHeartbeat(stream io.ReadWriter, chain *core.Blockchain) (uint32, error) {
	var req HeartbeatMessage
	if err := expectMsg(stream, HeartbeatMsg, &req); err != nil {
		return 0, err
	}
	if err := writeMsg(stream, HeartbeatMsg, &HeartbeatMessage{Height: chain.Height()}); err != nil {
		return 0, err
	}
	return req.Height, nil
}
