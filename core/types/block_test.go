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
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// testGenesisSpec derives a fixed blueprint so every test computes the same
// genesis.
func testGenesisSpec() *GenesisSpec {
	seed := make([]byte, ed25519.SeedSize)
	copy(seed, "votechain-genesis-test-seed")
	return &GenesisSpec{Issuer: ed25519.NewKeyFromSeed(seed), Note: "test"}
}

func TestGenesisDeterministic(t *testing.T) {
	a := NewGenesisBlock(testGenesisSpec())
	b := NewGenesisBlock(testGenesisSpec())

	require.Equal(t, a.Hash(), b.Hash())
	require.Equal(t, a.Nonce, b.Nonce)
	require.Equal(t, a.Signature, b.Signature)
	require.EqualValues(t, 0, a.Time)
	require.Equal(t, KindGenesis, a.Data.Kind)
	require.NoError(t, a.VerifySeal())
}

func TestMineProducesValidBlock(t *testing.T) {
	sk := testVoter(t)
	genesis := NewGenesisBlock(testGenesisSpec())

	block, err := Mine(sk, genesis, nil)
	require.NoError(t, err)
	require.True(t, block.IsValid(genesis))
	require.NoError(t, block.VerifySeal())
	require.Equal(t, KindBallots, block.Data.Kind)
}

func TestIsValidRejectsWrongParent(t *testing.T) {
	sk := testVoter(t)
	genesis := NewGenesisBlock(testGenesisSpec())

	b1, err := Mine(sk, genesis, nil)
	require.NoError(t, err)
	b2, err := Mine(sk, genesis, nil)
	require.NoError(t, err)

	// Both extend genesis; neither extends the other.
	require.False(t, b2.IsValid(b1))
}

func TestVerifySealRejectsTampering(t *testing.T) {
	sk := testVoter(t)
	genesis := NewGenesisBlock(testGenesisSpec())

	block, err := Mine(sk, genesis, nil)
	require.NoError(t, err)

	tampered := *block
	tampered.Nonce[0] ^= 0xFF
	require.Error(t, tampered.VerifySeal())
}

// The block hash must cover content only: two blocks with equal timestamp,
// parent and ballots hash identically regardless of miner identity.
func TestHashIsContentOnly(t *testing.T) {
	skA := testVoter(t)
	skB := testVoter(t)
	genesis := NewGenesisBlock(testGenesisSpec())

	a, err := Mine(skA, genesis, nil)
	require.NoError(t, err)
	b, err := Mine(skB, genesis, nil)
	require.NoError(t, err)
	b.Time = a.Time

	require.Equal(t, a.Hash(), b.Hash())
	require.NotEqual(t, a.Signatory, b.Signatory)
}

func TestSealBlock(t *testing.T) {
	sk := testVoter(t)
	genesis := NewGenesisBlock(testGenesisSpec())

	seal, err := NewSealBlock(sk, genesis, "closed")
	require.NoError(t, err)
	require.True(t, seal.Sealed())
	require.True(t, seal.IsValid(genesis))
	require.Nil(t, seal.Ballots())
}

func TestBlockStorageEncoding(t *testing.T) {
	dk := testTrustee(t)
	sk := testVoter(t)
	genesis := NewGenesisBlock(testGenesisSpec())

	ballot, err := NewBallot(rand.Reader, &dk.PublicKey, true, "roads-bill")
	require.NoError(t, err)
	block, err := Mine(sk, genesis, []*SignedBallot{SignBallot(sk, ballot)})
	require.NoError(t, err)

	enc, err := block.EncodeToBytes()
	require.NoError(t, err)
	decoded, err := DecodeBlock(enc)
	require.NoError(t, err)

	require.Equal(t, block.Hash(), decoded.Hash())
	require.NoError(t, decoded.VerifySeal())
	require.Len(t, decoded.Ballots(), 1)
	require.True(t, decoded.Ballots()[0].Verify())
}
