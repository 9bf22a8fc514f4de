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
	"errors"
	"io"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// RangeBits bounds the provable interval: a RangeProof certifies that a
// ciphertext encrypts a plaintext in [0, 2^RangeBits).
const RangeBits = 3

// challengeBits is the width of the Fiat-Shamir challenge space.
const challengeBits = 128

var errBadWitness = errors.New("paillier: witness outside provable range")

// BitProof is a non-interactive OR-proof that an auxiliary ciphertext C
// encrypts either 0 or 1. It is the CDS composition of two n-th residuosity
// sigma protocols, one for C itself and one for C/g.
type BitProof struct {
	C      *big.Int
	A0, A1 *big.Int
	E0, E1 *big.Int
	Z0, Z1 *big.Int
}

// RangeProof certifies that a ballot ciphertext encrypts a value in
// [0, 2^RangeBits). The plaintext is decomposed into bits, each bit is
// committed in an auxiliary ciphertext with an OR-proof, and a final n-th
// residuosity proof links the weighted bit product back to the original
// ciphertext.
type RangeProof struct {
	Bits  []*BitProof
	LinkA *big.Int
	LinkZ *big.Int
}

// ProveRange produces a range proof for the ciphertext c, given the
// plaintext m and encryption nonce r used to build it.
func (pub *PublicKey) ProveRange(random io.Reader, c, m, r *big.Int) (*RangeProof, error) {
	if m.Sign() < 0 || m.BitLen() > RangeBits {
		return nil, errBadWitness
	}
	nn := pub.NSquared()

	proof := &RangeProof{Bits: make([]*BitProof, RangeBits)}
	nonces := make([]*big.Int, RangeBits)
	for i := 0; i < RangeBits; i++ {
		ri, err := pub.RandomNonce(random)
		if err != nil {
			return nil, err
		}
		nonces[i] = ri
		bp, err := pub.proveBit(random, m.Bit(i), ri)
		if err != nil {
			return nil, err
		}
		proof.Bits[i] = bp
	}

	// The weighted product of the bit ciphertexts and c encrypt the same
	// plaintext, so their quotient is an n-th residue with root rho.
	rho := new(big.Int).ModInverse(r, pub.N)
	for i := 0; i < RangeBits; i++ {
		w := new(big.Int).Exp(nonces[i], new(big.Int).Lsh(one, uint(i)), pub.N)
		rho.Mul(rho, w).Mod(rho, pub.N)
	}
	s, err := pub.RandomNonce(random)
	if err != nil {
		return nil, err
	}
	proof.LinkA = new(big.Int).Exp(s, pub.N, nn)
	e := pub.linkChallenge(c, proof)
	proof.LinkZ = new(big.Int).Exp(rho, e, pub.N)
	proof.LinkZ.Mul(proof.LinkZ, s).Mod(proof.LinkZ, pub.N)
	return proof, nil
}

// VerifyRange checks a range proof against the ciphertext it was produced
// for.
func (pub *PublicKey) VerifyRange(c *big.Int, proof *RangeProof) bool {
	if proof == nil || len(proof.Bits) != RangeBits || proof.LinkA == nil || proof.LinkZ == nil {
		return false
	}
	if !pub.ValidCiphertext(c) {
		return false
	}
	for _, bp := range proof.Bits {
		if !pub.verifyBit(bp) {
			return false
		}
	}
	// Recompute D = (prod C_i^{2^i}) / c and check LinkZ^n == LinkA * D^e.
	nn := pub.NSquared()
	d := new(big.Int).ModInverse(c, nn)
	if d == nil {
		return false
	}
	for i, bp := range proof.Bits {
		w := new(big.Int).Exp(bp.C, new(big.Int).Lsh(one, uint(i)), nn)
		d.Mul(d, w).Mod(d, nn)
	}
	e := pub.linkChallenge(c, proof)
	lhs := new(big.Int).Exp(proof.LinkZ, pub.N, nn)
	rhs := new(big.Int).Exp(d, e, nn)
	rhs.Mul(rhs, proof.LinkA).Mod(rhs, nn)
	return lhs.Cmp(rhs) == 0
}

// proveBit builds the OR-proof for a single bit b committed under nonce r.
func (pub *PublicKey) proveBit(random io.Reader, b uint, r *big.Int) (*BitProof, error) {
	nn := pub.NSquared()
	c, err := pub.EncryptWithNonce(new(big.Int).SetUint64(uint64(b)), r)
	if err != nil {
		return nil, err
	}
	u0 := c
	u1 := new(big.Int).Mul(c, gInverse(pub))
	u1.Mod(u1, nn)

	s, err := pub.RandomNonce(random)
	if err != nil {
		return nil, err
	}
	zFake, err := pub.RandomNonce(random)
	if err != nil {
		return nil, err
	}
	eFake, err := randomChallenge(random)
	if err != nil {
		return nil, err
	}

	bp := &BitProof{C: c}
	// The real branch gets an honest commitment, the other branch is
	// simulated from a pre-chosen challenge and response.
	switch b {
	case 0:
		bp.A0 = new(big.Int).Exp(s, pub.N, nn)
		bp.A1 = simulate(pub, u1, zFake, eFake)
		bp.E1 = eFake
		bp.Z1 = zFake
	default:
		bp.A1 = new(big.Int).Exp(s, pub.N, nn)
		bp.A0 = simulate(pub, u0, zFake, eFake)
		bp.E0 = eFake
		bp.Z0 = zFake
	}

	e := pub.bitChallenge(bp)
	eReal := splitChallenge(e, eFake)
	zReal := new(big.Int).Exp(r, eReal, pub.N)
	zReal.Mul(zReal, s).Mod(zReal, pub.N)
	if b == 0 {
		bp.E0, bp.Z0 = eReal, zReal
	} else {
		bp.E1, bp.Z1 = eReal, zReal
	}
	return bp, nil
}

func (pub *PublicKey) verifyBit(bp *BitProof) bool {
	if bp == nil || bp.A0 == nil || bp.A1 == nil || bp.E0 == nil || bp.E1 == nil || bp.Z0 == nil || bp.Z1 == nil {
		return false
	}
	if !pub.ValidCiphertext(bp.C) {
		return false
	}
	nn := pub.NSquared()
	e := pub.bitChallenge(bp)
	sum := new(big.Int).Add(bp.E0, bp.E1)
	sum.Mod(sum, challengeModulus())
	if sum.Cmp(e) != 0 {
		return false
	}
	u0 := bp.C
	u1 := new(big.Int).Mul(bp.C, gInverse(pub))
	u1.Mod(u1, nn)
	return checkResidue(pub, u0, bp.A0, bp.E0, bp.Z0) && checkResidue(pub, u1, bp.A1, bp.E1, bp.Z1)
}

// checkResidue verifies a single n-th residuosity response: z^n == a * u^e.
func checkResidue(pub *PublicKey, u, a, e, z *big.Int) bool {
	nn := pub.NSquared()
	lhs := new(big.Int).Exp(z, pub.N, nn)
	rhs := new(big.Int).Exp(u, e, nn)
	rhs.Mul(rhs, a).Mod(rhs, nn)
	return lhs.Cmp(rhs) == 0
}

// simulate fabricates a commitment that satisfies the verification equation
// for a pre-chosen challenge and response.
func simulate(pub *PublicKey, u, z, e *big.Int) *big.Int {
	nn := pub.NSquared()
	a := new(big.Int).Exp(z, pub.N, nn)
	ue := new(big.Int).Exp(u, e, nn)
	ueInv := new(big.Int).ModInverse(ue, nn)
	a.Mul(a, ueInv)
	return a.Mod(a, nn)
}

// gInverse returns (1+n)^-1 mod n^2.
func gInverse(pub *PublicKey) *big.Int {
	g := new(big.Int).Add(pub.N, one)
	return new(big.Int).ModInverse(g, pub.NSquared())
}

func (pub *PublicKey) bitChallenge(bp *BitProof) *big.Int {
	return challengeHash("votechain/rangeproof/bit", pub.N, bp.C, bp.A0, bp.A1)
}

func (pub *PublicKey) linkChallenge(c *big.Int, proof *RangeProof) *big.Int {
	vals := []*big.Int{pub.N, c}
	for _, bp := range proof.Bits {
		vals = append(vals, bp.C)
	}
	vals = append(vals, proof.LinkA)
	return challengeHash("votechain/rangeproof/link", vals...)
}

// challengeHash derives a Fiat-Shamir challenge from a domain tag and a
// sequence of group elements, each length-prefixed to keep the encoding
// unambiguous.
func challengeHash(domain string, vals ...*big.Int) *big.Int {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(domain))
	var lenbuf [4]byte
	for _, v := range vals {
		b := v.Bytes()
		lenbuf[0] = byte(len(b) >> 24)
		lenbuf[1] = byte(len(b) >> 16)
		lenbuf[2] = byte(len(b) >> 8)
		lenbuf[3] = byte(len(b))
		h.Write(lenbuf[:])
		h.Write(b)
	}
	e := new(big.Int).SetBytes(h.Sum(nil))
	return e.Mod(e, challengeModulus())
}

func challengeModulus() *big.Int {
	return new(big.Int).Lsh(one, challengeBits)
}

func randomChallenge(random io.Reader) (*big.Int, error) {
	buf := make([]byte, challengeBits/8)
	if _, err := io.ReadFull(random, buf); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(buf), nil
}

// splitChallenge derives the real-branch challenge from the overall
// challenge and the simulated one, such that the two sum to the challenge
// modulo the challenge space.
func splitChallenge(e, eFake *big.Int) *big.Int {
	er := new(big.Int).Sub(e, eFake)
	return er.Mod(er, challengeModulus())
}
