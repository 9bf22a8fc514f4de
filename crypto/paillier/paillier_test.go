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

package paillier

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

const testKeyBits = 512

func generateTestKey(t *testing.T) *PrivateKey {
	t.Helper()
	priv, err := GenerateKey(rand.Reader, testKeyBits)
	require.NoError(t, err)
	return priv
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	priv := generateTestKey(t)

	for _, m := range []int64{0, 1, 2, 7, 255, 1 << 20} {
		c, _, err := priv.Encrypt(rand.Reader, big.NewInt(m))
		require.NoError(t, err)

		got, err := priv.Decrypt(c)
		require.NoError(t, err)
		require.Equal(t, m, got.Int64())
	}
}

// Decrypting the homomorphic sum of weighted encryptions must equal the
// weighted plaintext sum, for weights up to 2^32.
func TestHomomorphicWeightedSum(t *testing.T) {
	priv := generateTestKey(t)
	pub := &priv.PublicKey

	votes := []uint64{1, 0, 1, 1, 0}
	weights := []uint64{1, 3, 1 << 16, 1 << 32, 7}

	acc, err := pub.EncryptZero(rand.Reader)
	require.NoError(t, err)

	want := new(big.Int)
	for i, v := range votes {
		c, _, err := pub.Encrypt(rand.Reader, new(big.Int).SetUint64(v))
		require.NoError(t, err)
		acc = pub.Add(acc, pub.Mul(c, weights[i]))
		want.Add(want, new(big.Int).SetUint64(v*weights[i]))
	}
	got, err := priv.Decrypt(acc)
	require.NoError(t, err)
	require.Zero(t, want.Cmp(got))
}

func TestValidCiphertext(t *testing.T) {
	priv := generateTestKey(t)
	pub := &priv.PublicKey

	c, _, err := pub.Encrypt(rand.Reader, big.NewInt(1))
	require.NoError(t, err)
	require.True(t, pub.ValidCiphertext(c))

	require.False(t, pub.ValidCiphertext(nil))
	require.False(t, pub.ValidCiphertext(new(big.Int)))
	require.False(t, pub.ValidCiphertext(pub.NSquared()))
	require.False(t, pub.ValidCiphertext(new(big.Int).Set(pub.N)))
}

func TestDecryptRejectsForeignCiphertext(t *testing.T) {
	priv := generateTestKey(t)

	_, err := priv.Decrypt(new(big.Int))
	require.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestTrusteeKeySerialization(t *testing.T) {
	priv := generateTestKey(t)

	blob, err := priv.EncodeToBytes()
	require.NoError(t, err)

	restored, err := DecodePrivateKey(blob)
	require.NoError(t, err)
	require.Zero(t, priv.N.Cmp(restored.N))

	c, _, err := priv.Encrypt(rand.Reader, big.NewInt(42))
	require.NoError(t, err)
	m, err := restored.Decrypt(c)
	require.NoError(t, err)
	require.EqualValues(t, 42, m.Int64())

	pubBlob, err := priv.PublicKey.EncodeToBytes()
	require.NoError(t, err)
	pub, err := DecodePublicKey(pubBlob)
	require.NoError(t, err)
	require.Zero(t, priv.N.Cmp(pub.N))
}

func TestRangeProofRoundTrip(t *testing.T) {
	priv := generateTestKey(t)
	pub := &priv.PublicKey

	for m := int64(0); m < 1<<RangeBits; m++ {
		c, r, err := pub.Encrypt(rand.Reader, big.NewInt(m))
		require.NoError(t, err)

		proof, err := pub.ProveRange(rand.Reader, c, big.NewInt(m), r)
		require.NoError(t, err)
		require.True(t, pub.VerifyRange(c, proof), "value %d", m)
	}
}

func TestRangeProofRejectsOutOfRangeWitness(t *testing.T) {
	priv := generateTestKey(t)
	pub := &priv.PublicKey

	m := big.NewInt(1 << RangeBits)
	c, r, err := pub.Encrypt(rand.Reader, m)
	require.NoError(t, err)

	_, err = pub.ProveRange(rand.Reader, c, m, r)
	require.ErrorIs(t, err, errBadWitness)
}

func TestRangeProofRejectsMismatchedCiphertext(t *testing.T) {
	priv := generateTestKey(t)
	pub := &priv.PublicKey

	c, r, err := pub.Encrypt(rand.Reader, big.NewInt(1))
	require.NoError(t, err)
	proof, err := pub.ProveRange(rand.Reader, c, big.NewInt(1), r)
	require.NoError(t, err)

	other, _, err := pub.Encrypt(rand.Reader, big.NewInt(1))
	require.NoError(t, err)
	require.False(t, pub.VerifyRange(other, proof))
}

func TestRangeProofRejectsTamperedProof(t *testing.T) {
	priv := generateTestKey(t)
	pub := &priv.PublicKey

	c, r, err := pub.Encrypt(rand.Reader, big.NewInt(1))
	require.NoError(t, err)
	proof, err := pub.ProveRange(rand.Reader, c, big.NewInt(1), r)
	require.NoError(t, err)

	proof.Bits[0].E0 = new(big.Int).Add(proof.Bits[0].E0, big.NewInt(1))
	require.False(t, pub.VerifyRange(c, proof))
}
