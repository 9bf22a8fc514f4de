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

package census

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/votechain/go-votechain/crypto"
)

func TestContains(t *testing.T) {
	a, err := crypto.GenerateVoterKey()
	require.NoError(t, err)
	b, err := crypto.GenerateVoterKey()
	require.NoError(t, err)
	stranger, err := crypto.GenerateVoterKey()
	require.NoError(t, err)

	c := New(crypto.VoterIDOf(a), crypto.VoterIDOf(b))
	require.True(t, c.Contains(crypto.VoterIDOf(a)))
	require.True(t, c.Contains(crypto.VoterIDOf(b)))
	require.False(t, c.Contains(crypto.VoterIDOf(stranger)))
	require.Equal(t, 2, c.Size())
}

func TestFromDirectory(t *testing.T) {
	dir := t.TempDir()
	var want []string
	for i := 0; i < 3; i++ {
		sk, err := crypto.GenerateVoterKey()
		require.NoError(t, err)
		require.NoError(t, crypto.SaveVoterKey(filepath.Join(dir, fmt.Sprintf("voter-%d.der", i)), sk))
		want = append(want, crypto.VoterIDOf(sk).Hex())
	}

	c, err := FromDirectory(dir)
	require.NoError(t, err)
	require.Equal(t, 3, c.Size())
	for _, hex := range want {
		found := false
		for _, member := range c.Members() {
			if member.Hex() == hex {
				found = true
			}
		}
		require.True(t, found, "member %s missing", hex)
	}
}
