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

// Package types contains the data model of the voting chain: encrypted
// ballots, their signed envelopes and proof-of-worked blocks.
package types

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/votechain/go-votechain/crypto/paillier"
)

// SignatureLength is the size of an Ed25519 ballot or block signature.
const SignatureLength = ed25519.SignatureSize

// VoterID is the encoded Ed25519 verifying key of a voter. It is the
// voter's canonical identifier: census membership, delegation edges and
// tally retention all key on it.
type VoterID [32]byte

// BytesToVoterID converts raw key bytes into a VoterID.
func BytesToVoterID(b []byte) VoterID {
	var id VoterID
	copy(id[:], b)
	return id
}

// Bytes returns the identifier as a byte slice.
func (id VoterID) Bytes() []byte { return id[:] }

// Hex returns the full hex encoding of the identifier.
func (id VoterID) Hex() string { return hex.EncodeToString(id[:]) }

// String renders a short prefix for logging.
func (id VoterID) String() string { return hex.EncodeToString(id[:4]) }

// Verify checks sig over msg under this identifier's verifying key.
func (id VoterID) Verify(msg, sig []byte) bool {
	if len(sig) != SignatureLength {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(id[:]), msg, sig)
}

var (
	// ErrEmptyIssue is returned when a ballot names no issue chain.
	ErrEmptyIssue = errors.New("ballot has empty issue id")
)

// Ballot is an encrypted yes/no vote for one issue: a pair of Paillier
// ciphertexts of which exactly one encrypts 1, each carried with a range
// proof. The RLP encoding is the deterministic form that gets signed.
type Ballot struct {
	Time         uint64 // creation instant, ms since epoch, UTC
	IssueID      string
	VoteFor      *big.Int
	VoteAgainst  *big.Int
	ProofFor     *paillier.RangeProof
	ProofAgainst *paillier.RangeProof
}

// NewBallot encrypts a verdict for the given issue under the trustee
// encryption key. A yes verdict encrypts 1 into the for-counter and 0 into
// the against-counter; a no verdict the reverse.
func NewBallot(random io.Reader, ek *paillier.PublicKey, verdict bool, issueID string) (*Ballot, error) {
	if issueID == "" {
		return nil, ErrEmptyIssue
	}
	yes, no := uint64(0), uint64(1)
	if verdict {
		yes, no = 1, 0
	}
	voteFor, proofFor, err := encodeVerdict(random, ek, yes)
	if err != nil {
		return nil, err
	}
	voteAgainst, proofAgainst, err := encodeVerdict(random, ek, no)
	if err != nil {
		return nil, err
	}
	return &Ballot{
		Time:         uint64(time.Now().UTC().UnixMilli()),
		IssueID:      issueID,
		VoteFor:      voteFor,
		VoteAgainst:  voteAgainst,
		ProofFor:     proofFor,
		ProofAgainst: proofAgainst,
	}, nil
}

// encodeVerdict encrypts a single counter value and proves it in range.
func encodeVerdict(random io.Reader, ek *paillier.PublicKey, v uint64) (*big.Int, *paillier.RangeProof, error) {
	m := new(big.Int).SetUint64(v)
	c, r, err := ek.Encrypt(random, m)
	if err != nil {
		return nil, nil, err
	}
	proof, err := ek.ProveRange(random, c, m, r)
	if err != nil {
		return nil, nil, err
	}
	return c, proof, nil
}

// Valid checks both range proofs and ciphertext well-formedness under the
// issue's encryption key.
func (b *Ballot) Valid(ek *paillier.PublicKey) bool {
	if b.IssueID == "" {
		return false
	}
	if !ek.ValidCiphertext(b.VoteFor) || !ek.ValidCiphertext(b.VoteAgainst) {
		return false
	}
	return ek.VerifyRange(b.VoteFor, b.ProofFor) && ek.VerifyRange(b.VoteAgainst, b.ProofAgainst)
}

// Weight replaces both ciphertexts with their homomorphic scalar product by
// w. The range proofs are not re-proven; they no longer hold for the
// weighted form.
func (b *Ballot) Weight(ek *paillier.PublicKey, w uint64) {
	b.VoteFor = ek.Mul(b.VoteFor, w)
	b.VoteAgainst = ek.Mul(b.VoteAgainst, w)
}

// Sum folds this ballot into the running homomorphic totals.
func (b *Ballot) Sum(ek *paillier.PublicKey, accFor, accAgainst *big.Int) (*big.Int, *big.Int) {
	return ek.Add(accFor, b.VoteFor), ek.Add(accAgainst, b.VoteAgainst)
}

// Copy returns a deep enough copy for local mutation: the ciphertexts are
// fresh, the proofs are shared (weighting never touches them).
func (b *Ballot) Copy() *Ballot {
	cpy := *b
	cpy.VoteFor = new(big.Int).Set(b.VoteFor)
	cpy.VoteAgainst = new(big.Int).Set(b.VoteAgainst)
	return &cpy
}

// encode returns the deterministic signed encoding of the ballot.
func (b *Ballot) encode() []byte {
	enc, err := rlp.EncodeToBytes(b)
	if err != nil {
		panic("can't encode ballot: " + err.Error())
	}
	return enc
}

// SignedBallot is a ballot envelope carrying the signer's verifying key and
// a detached signature over the ballot's deterministic encoding. Equality is
// by signature bytes.
type SignedBallot struct {
	Signature [SignatureLength]byte
	Signer    VoterID
	Ballot    *Ballot
}

// SignBallot wraps a ballot in a signed envelope under the voter's signing
// key.
func SignBallot(sk ed25519.PrivateKey, b *Ballot) *SignedBallot {
	sb := &SignedBallot{
		Signer: BytesToVoterID(sk.Public().(ed25519.PublicKey)),
		Ballot: b,
	}
	copy(sb.Signature[:], ed25519.Sign(sk, b.encode()))
	return sb
}

// Verify checks the envelope signature using the embedded verifying key.
// Census membership is checked separately by the node.
func (sb *SignedBallot) Verify() bool {
	if sb.Ballot == nil {
		return false
	}
	return sb.Signer.Verify(sb.Ballot.encode(), sb.Signature[:])
}

// EncodeToBytes returns the wire encoding used by the gossip collaborator.
func (sb *SignedBallot) EncodeToBytes() ([]byte, error) {
	return rlp.EncodeToBytes(sb)
}

// DecodeSignedBallot reverses EncodeToBytes.
func DecodeSignedBallot(data []byte) (*SignedBallot, error) {
	sb := new(SignedBallot)
	if err := rlp.DecodeBytes(data, sb); err != nil {
		return nil, err
	}
	return sb, nil
}
