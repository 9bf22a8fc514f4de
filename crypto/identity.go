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

// Package crypto handles voter identity keys: Ed25519 signing keypairs
// stored as PKCS#8 DER files.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/votechain/go-votechain/core/types"
)

// GenerateVoterKey creates a fresh voter signing key.
func GenerateVoterKey() (ed25519.PrivateKey, error) {
	_, sk, err := ed25519.GenerateKey(rand.Reader)
	return sk, err
}

// VoterIDOf derives the canonical voter identifier from a signing key.
func VoterIDOf(sk ed25519.PrivateKey) types.VoterID {
	return types.BytesToVoterID(sk.Public().(ed25519.PublicKey))
}

// SaveVoterKey writes a signing key to file as a PKCS#8 DER envelope.
func SaveVoterKey(file string, sk ed25519.PrivateKey) error {
	der, err := x509.MarshalPKCS8PrivateKey(sk)
	if err != nil {
		return err
	}
	return os.WriteFile(file, der, 0600)
}

// LoadVoterKey reads a PKCS#8 DER signing key from file.
func LoadVoterKey(file string) (ed25519.PrivateKey, error) {
	der, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	sk, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an Ed25519 key", file)
	}
	return sk, nil
}
