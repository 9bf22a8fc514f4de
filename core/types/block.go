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

package types

import (
	"crypto/ed25519"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// NonceLength is the size of the proof-of-work nonce.
const NonceLength = 8

// powZeroBits is the number of leading signature bits that must be zero for
// a nonce to be accepted. Roughly 1/4096 attempts succeed.
const powZeroBits = 12

var (
	// errBadSignatory is returned when a block's signature does not verify
	// under its embedded signatory key.
	errBadSignatory = errors.New("block signature does not verify")

	// errBadProofOfWork is returned when a block's signature fails the
	// zero-bit condition.
	errBadProofOfWork = errors.New("block signature fails proof-of-work")
)

// BlockKind discriminates the payload of a block.
type BlockKind uint8

const (
	// KindGenesis marks the deterministic first block of an issue chain.
	KindGenesis BlockKind = iota
	// KindBallots marks a block carrying a batch of signed ballots.
	KindBallots
	// KindSeal marks the terminal block closing a chain.
	KindSeal
)

// BlockData is the payload of a block: a genesis marker, a batch of signed
// ballots, or a seal note.
type BlockData struct {
	Kind    BlockKind
	Note    string
	Ballots []*SignedBallot
}

// Block is a timestamped, signed, proof-of-worked chain record.
//
// The block hash covers content only: timestamp, parent hash and ballot
// payload. Signature and nonce are deliberately excluded so that the hash
// identifies the ballots a block commits, not who mined it.
type Block struct {
	Time       uint64 // ms since epoch; 0 for genesis
	ParentHash common.Hash
	Signatory  VoterID
	Signature  [SignatureLength]byte
	Data       BlockData
	Nonce      [NonceLength]byte

	// cache of the content hash, set on first computation
	hash atomic.Value
}

// GenesisSpec is the blueprint from which every node on an issue derives an
// identical genesis block: a shared issuer key and an optional note. The
// nonce search is deterministic, so equal blueprints yield byte-identical
// genesis blocks on all nodes. The content-only hash does not cover the
// blueprint: every genesis block hashes the same.
type GenesisSpec struct {
	Issuer ed25519.PrivateKey
	Note   string
}

// NewGenesisBlock builds the deterministic genesis block for a blueprint.
func NewGenesisBlock(spec *GenesisSpec) *Block {
	b := &Block{
		Time:       0,
		ParentHash: common.Hash{},
		Signatory:  BytesToVoterID(spec.Issuer.Public().(ed25519.PublicKey)),
		Data:       BlockData{Kind: KindGenesis, Note: spec.Note},
	}
	// Counter nonces instead of random draws keep the search reproducible.
	for ctr := uint64(0); ; ctr++ {
		var nonce [NonceLength]byte
		binary.BigEndian.PutUint64(nonce[:], ctr)
		sig := ed25519.Sign(spec.Issuer, powDigest(b.ParentHash, nonce))
		if powSealed(sig) {
			b.Nonce = nonce
			copy(b.Signature[:], sig)
			return b
		}
	}
}

// Mine assembles and proof-of-works a ballot block on top of prev. It
// repeatedly draws random nonces until the signature over the adjusted
// parent digest satisfies the zero-bit condition; termination is
// probabilistic.
func Mine(sk ed25519.PrivateKey, prev *Block, ballots []*SignedBallot) (*Block, error) {
	return mine(sk, prev, BlockData{Kind: KindBallots, Ballots: ballots})
}

// NewSealBlock mines a terminal block closing the chain.
func NewSealBlock(sk ed25519.PrivateKey, prev *Block, note string) (*Block, error) {
	return mine(sk, prev, BlockData{Kind: KindSeal, Note: note})
}

func mine(sk ed25519.PrivateKey, prev *Block, data BlockData) (*Block, error) {
	b := &Block{
		Time:       uint64(time.Now().UnixMilli()),
		ParentHash: prev.Hash(),
		Signatory:  BytesToVoterID(sk.Public().(ed25519.PublicKey)),
		Data:       data,
	}
	for {
		if _, err := crand.Read(b.Nonce[:]); err != nil {
			return nil, err
		}
		sig := ed25519.Sign(sk, powDigest(b.ParentHash, b.Nonce))
		if powSealed(sig) {
			copy(b.Signature[:], sig)
			return b, nil
		}
	}
}

// powDigest is the message actually signed during mining: the parent hash
// with the nonce XORed into its first eight bytes.
func powDigest(parent common.Hash, nonce [NonceLength]byte) []byte {
	adjusted := make([]byte, common.HashLength)
	copy(adjusted, parent[:])
	for i := 0; i < NonceLength; i++ {
		adjusted[i] ^= nonce[i]
	}
	return adjusted
}

// powSealed reports whether a signature satisfies the zero-bit condition.
func powSealed(sig []byte) bool {
	for i := 0; i < powZeroBits/8; i++ {
		if sig[i] != 0 {
			return false
		}
	}
	if rem := powZeroBits % 8; rem != 0 {
		mask := byte(0xFF << (8 - rem))
		return sig[powZeroBits/8]&mask == 0
	}
	return true
}

// Hash returns the content hash of the block: keccak256 over the timestamp,
// the parent hash and, for ballot blocks, the encoded ballots.
func (b *Block) Hash() common.Hash {
	if h := b.hash.Load(); h != nil {
		return h.(common.Hash)
	}
	hasher := sha3.NewLegacyKeccak256()
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], b.Time)
	hasher.Write(ts[:])
	hasher.Write(b.ParentHash[:])
	if b.Data.Kind == KindBallots {
		for _, sb := range b.Data.Ballots {
			enc, err := rlp.EncodeToBytes(sb)
			if err != nil {
				panic("can't encode ballot: " + err.Error())
			}
			hasher.Write(enc)
		}
	}
	var h common.Hash
	hasher.Sum(h[:0])
	b.hash.Store(h)
	return h
}

// IsValid reports whether the block extends prev.
func (b *Block) IsValid(prev *Block) bool {
	return b.ParentHash == prev.Hash()
}

// VerifySeal checks the embedded signature over the adjusted parent digest
// and the proof-of-work condition. The chain applies it to every block
// ingested from a peer.
func (b *Block) VerifySeal() error {
	if !b.Signatory.Verify(powDigest(b.ParentHash, b.Nonce), b.Signature[:]) {
		return errBadSignatory
	}
	if !powSealed(b.Signature[:]) {
		return errBadProofOfWork
	}
	return nil
}

// Ballots returns the block's ballot batch, or nil for genesis and seal
// blocks.
func (b *Block) Ballots() []*SignedBallot {
	if b.Data.Kind != KindBallots {
		return nil
	}
	return b.Data.Ballots
}

// Sealed reports whether the block closes its chain.
func (b *Block) Sealed() bool { return b.Data.Kind == KindSeal }

// EncodeToBytes flattens the block for storage and wire transfer.
func (b *Block) EncodeToBytes() ([]byte, error) {
	return rlp.EncodeToBytes(b)
}

// DecodeBlock reverses EncodeToBytes.
func DecodeBlock(data []byte) (*Block, error) {
	b := new(Block)
	if err := rlp.DecodeBytes(data, b); err != nil {
		return nil, err
	}
	return b, nil
}
