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

// Package paillier implements the additively homomorphic Paillier
// cryptosystem used to encrypt ballot counters, together with the
// non-interactive range proofs that certify ballot well-formedness.
//
// Ciphertexts are raw group elements of Z*_{n^2} represented as big
// integers. The generator is fixed to g = n+1, so encryption reduces to
// Enc(m, r) = (1 + m*n) * r^n mod n^2.
package paillier

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

var (
	// ErrMessageTooLarge is returned when a plaintext does not fit the modulus.
	ErrMessageTooLarge = errors.New("paillier: message out of range")

	// ErrInvalidCiphertext is returned when a ciphertext is not an element
	// of Z*_{n^2} for the given key.
	ErrInvalidCiphertext = errors.New("paillier: invalid ciphertext")

	one = big.NewInt(1)
)

// PublicKey is the encryption half of a trustee keypair. All ballots for an
// issue are encrypted under the same public key.
type PublicKey struct {
	N *big.Int

	nn *big.Int // cached n^2
}

// NewPublicKey wraps a modulus into a usable public key.
func NewPublicKey(n *big.Int) *PublicKey {
	return &PublicKey{N: n, nn: new(big.Int).Mul(n, n)}
}

// NSquared returns the ciphertext modulus n^2.
func (pub *PublicKey) NSquared() *big.Int {
	if pub.nn == nil {
		pub.nn = new(big.Int).Mul(pub.N, pub.N)
	}
	return pub.nn
}

// PrivateKey is the decryption half of a trustee keypair, held only by the
// tallying trustee.
type PrivateKey struct {
	PublicKey

	p, q   *big.Int
	lambda *big.Int // lcm(p-1, q-1)
	mu     *big.Int // (L(g^lambda mod n^2))^-1 mod n
}

// GenerateKey creates a trustee keypair with a modulus of the requested bit
// size.
func GenerateKey(random io.Reader, bits int) (*PrivateKey, error) {
	for {
		p, err := rand.Prime(random, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := rand.Prime(random, bits/2)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		priv, err := newPrivateKey(p, q)
		if err != nil {
			continue
		}
		return priv, nil
	}
}

func newPrivateKey(p, q *big.Int) (*PrivateKey, error) {
	n := new(big.Int).Mul(p, q)
	nn := new(big.Int).Mul(n, n)

	pm1 := new(big.Int).Sub(p, one)
	qm1 := new(big.Int).Sub(q, one)
	gcd := new(big.Int).GCD(nil, nil, pm1, qm1)
	lambda := new(big.Int).Div(new(big.Int).Mul(pm1, qm1), gcd)

	// mu = (L(g^lambda mod n^2))^-1 mod n with g = n+1.
	g := new(big.Int).Add(n, one)
	u := lFunc(new(big.Int).Exp(g, lambda, nn), n)
	mu := new(big.Int).ModInverse(u, n)
	if mu == nil {
		return nil, errors.New("paillier: degenerate modulus")
	}
	return &PrivateKey{
		PublicKey: PublicKey{N: n, nn: nn},
		p:         p,
		q:         q,
		lambda:    lambda,
		mu:        mu,
	}, nil
}

// lFunc is the Paillier L function, L(x) = (x-1)/n.
func lFunc(x, n *big.Int) *big.Int {
	return new(big.Int).Div(new(big.Int).Sub(x, one), n)
}

// RandomNonce draws an encryption nonce from Z*_n.
func (pub *PublicKey) RandomNonce(random io.Reader) (*big.Int, error) {
	for {
		r, err := rand.Int(random, pub.N)
		if err != nil {
			return nil, err
		}
		if r.Sign() == 0 {
			continue
		}
		if new(big.Int).GCD(nil, nil, r, pub.N).Cmp(one) == 0 {
			return r, nil
		}
	}
}

// EncryptWithNonce encrypts m under the chosen nonce r. The nonce is needed
// again when proving statements about the ciphertext.
func (pub *PublicKey) EncryptWithNonce(m, r *big.Int) (*big.Int, error) {
	if m.Sign() < 0 || m.Cmp(pub.N) >= 0 {
		return nil, ErrMessageTooLarge
	}
	nn := pub.NSquared()
	// (1 + m*n) * r^n mod n^2
	c := new(big.Int).Mod(new(big.Int).Add(one, new(big.Int).Mul(m, pub.N)), nn)
	c.Mul(c, new(big.Int).Exp(r, pub.N, nn))
	return c.Mod(c, nn), nil
}

// Encrypt encrypts m with a fresh nonce and returns both.
func (pub *PublicKey) Encrypt(random io.Reader, m *big.Int) (c, r *big.Int, err error) {
	r, err = pub.RandomNonce(random)
	if err != nil {
		return nil, nil, err
	}
	c, err = pub.EncryptWithNonce(m, r)
	if err != nil {
		return nil, nil, err
	}
	return c, r, nil
}

// EncryptZero returns a fresh encryption of zero, used to seed homomorphic
// accumulators.
func (pub *PublicKey) EncryptZero(random io.Reader) (*big.Int, error) {
	c, _, err := pub.Encrypt(random, new(big.Int))
	return c, err
}

// Add combines two ciphertexts into an encryption of the plaintext sum.
func (pub *PublicKey) Add(a, b *big.Int) *big.Int {
	c := new(big.Int).Mul(a, b)
	return c.Mod(c, pub.NSquared())
}

// Mul scales a ciphertext by the plaintext factor k, yielding an encryption
// of k times the original plaintext.
func (pub *PublicKey) Mul(c *big.Int, k uint64) *big.Int {
	return new(big.Int).Exp(c, new(big.Int).SetUint64(k), pub.NSquared())
}

// ValidCiphertext reports whether c is a well-formed group element for this
// key.
func (pub *PublicKey) ValidCiphertext(c *big.Int) bool {
	if c == nil || c.Sign() <= 0 || c.Cmp(pub.NSquared()) >= 0 {
		return false
	}
	return new(big.Int).GCD(nil, nil, c, pub.N).Cmp(one) == 0
}

// Decrypt recovers the plaintext of c.
func (priv *PrivateKey) Decrypt(c *big.Int) (*big.Int, error) {
	if !priv.ValidCiphertext(c) {
		return nil, ErrInvalidCiphertext
	}
	nn := priv.NSquared()
	m := lFunc(new(big.Int).Exp(c, priv.lambda, nn), priv.N)
	m.Mul(m, priv.mu)
	return m.Mod(m, priv.N), nil
}

// trusteeKeyRLP is the serialized form of a trustee keypair. Only the prime
// factors are stored; everything else is derived on decode.
type trusteeKeyRLP struct {
	P, Q *big.Int
}

// EncodeToBytes serializes the private key as a single binary blob.
func (priv *PrivateKey) EncodeToBytes() ([]byte, error) {
	return rlp.EncodeToBytes(&trusteeKeyRLP{P: priv.p, Q: priv.q})
}

// DecodePrivateKey reverses EncodeToBytes.
func DecodePrivateKey(data []byte) (*PrivateKey, error) {
	var enc trusteeKeyRLP
	if err := rlp.DecodeBytes(data, &enc); err != nil {
		return nil, err
	}
	return newPrivateKey(enc.P, enc.Q)
}

// EncodeToBytes serializes the public key.
func (pub *PublicKey) EncodeToBytes() ([]byte, error) {
	return rlp.EncodeToBytes(pub.N)
}

// DecodePublicKey reverses PublicKey.EncodeToBytes.
func DecodePublicKey(data []byte) (*PublicKey, error) {
	n := new(big.Int)
	if err := rlp.DecodeBytes(data, n); err != nil {
		return nil, err
	}
	return NewPublicKey(n), nil
}
