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

// Package chainsync implements the peer-to-peer chain synchronization
// protocol: the initiator walks backward from its head to find the fork
// point with a peer, the responder streams the replacement suffix forward.
// A companion heartbeat protocol exchanges chain heights.
package chainsync

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/votechain/go-votechain/core/types"
)

const (
	// ProtocolName identifies the sync protocol on a multiplexed transport.
	ProtocolName = "/votechain/sync/0.0"

	// HeartbeatProtocolName identifies the height-exchange protocol.
	HeartbeatProtocolName = "/votechain/heartbeat/0.0"
)

// Message codes of the framed conversation.
const (
	SyncRequestMsg  = 0x00
	SyncFoundMsg    = 0x01
	SyncNotFoundMsg = 0x02
	HeartbeatMsg    = 0x03
)

// maxFrameSize bounds a single frame; a block of pooled ballots with proofs
// stays far below this.
const maxFrameSize = 8 << 20

var (
	// ErrNoCommonAncestor is returned when the walk-back exhausts the chain
	// without the peer matching even the genesis block.
	ErrNoCommonAncestor = errors.New("no common ancestor with peer")

	// ErrUnexpectedMessage is returned on a frame the state machine cannot
	// accept.
	ErrUnexpectedMessage = errors.New("unexpected protocol message")

	// errFrameTooLarge is returned when a frame header announces more than
	// maxFrameSize bytes.
	errFrameTooLarge = errors.New("frame exceeds size limit")
)

// SyncRequest asks a peer whether it stores a block with the given hash at
// the given index.
type SyncRequest struct {
	Index uint32
	Hash  common.Hash
}

// SyncFound streams one block of the replacement suffix. Remaining counts
// the frames still to follow; the final frame carries zero.
type SyncFound struct {
	ForkIndex uint32
	Block     *types.Block
	Remaining uint32
}

// HeartbeatMessage carries a node's current chain height.
type HeartbeatMessage struct {
	Height uint32
}

// writeMsg frames and writes one message: a code byte, a big-endian length
// and the RLP payload.
func writeMsg(w io.Writer, code uint8, msg interface{}) error {
	payload, err := rlp.EncodeToBytes(msg)
	if err != nil {
		return err
	}
	header := make([]byte, 5)
	header[0] = code
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// readMsg reads one frame and returns its code and raw payload.
func readMsg(r io.Reader) (uint8, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	size := binary.BigEndian.Uint32(header[1:])
	if size > maxFrameSize {
		return 0, nil, errFrameTooLarge
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return header[0], payload, nil
}

// expectMsg reads a frame and decodes it as the given code.
func expectMsg(r io.Reader, code uint8, msg interface{}) error {
	got, payload, err := readMsg(r)
	if err != nil {
		return err
	}
	if got != code {
		return fmt.Errorf("%w: code %#x, want %#x", ErrUnexpectedMessage, got, code)
	}
	return rlp.DecodeBytes(payload, msg)
}
