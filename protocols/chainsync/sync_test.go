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
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/votechain/go-votechain/core"
	"github.com/votechain/go-votechain/core/types"
)

func testSigner(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, sk, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return sk
}

func openTestChain(t *testing.T, genesis *types.GenesisSpec) *core.Blockchain {
	t.Helper()
	bc, err := core.Open(core.Config{Path: t.TempDir(), Genesis: genesis}, "test-issue", testSigner(t))
	require.NoError(t, err)
	t.Cleanup(func() { bc.Close() })
	return bc
}

// grow mines n empty ballot blocks onto the chain with the given signer.
func grow(t *testing.T, bc *core.Blockchain, signer ed25519.PrivateKey, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		head, err := bc.GetBlock(bc.Height())
		require.NoError(t, err)
		block, err := types.Mine(signer, head, nil)
		require.NoError(t, err)
		require.NoError(t, bc.Append(block))
	}
}

// runSync wires initiator and responder over an in-memory pipe and returns
// the initiator's verdict.
func runSync(t *testing.T, initiator, responder *core.Blockchain) error {
	t.Helper()
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	served := make(chan struct{})
	go func() {
		defer close(served)
		// The responder's error is not the initiator's concern; the
		// substream is simply dropped on exit.
		_ = Serve(context.Background(), b, responder)
		b.Close()
	}()
	err := Initiate(context.Background(), a, initiator)
	a.Close()
	<-served
	return err
}

func requireEqualChains(t *testing.T, x, y *core.Blockchain) {
	t.Helper()
	require.Equal(t, y.Height(), x.Height())
	for i := uint32(1); i <= x.Height(); i++ {
		hx, err := x.HashAt(i)
		require.NoError(t, err)
		hy, err := y.HashAt(i)
		require.NoError(t, err)
		require.Equal(t, hy, hx, "index %d", i)
	}
}

// A strictly longer valid chain fully replaces the shorter one after a
// single sync.
func TestSyncConvergenceFromGenesis(t *testing.T) {
	signerA, signerB := testSigner(t), testSigner(t)
	chainA := openTestChain(t, nil)
	chainB := openTestChain(t, nil)

	grow(t, chainA, signerA, 2)
	grow(t, chainB, signerB, 4)

	require.NoError(t, runSync(t, chainA, chainB))
	requireEqualChains(t, chainA, chainB)
}

// The walk-back settles on a mid-chain fork point and replaces only the
// suffix beyond it.
func TestSyncMidChainFork(t *testing.T) {
	signer := testSigner(t)
	chainA := openTestChain(t, nil)
	chainB := openTestChain(t, nil)

	// Shared prefix up to index 3, built once and appended to both.
	for i := 0; i < 2; i++ {
		head, err := chainA.GetBlock(chainA.Height())
		require.NoError(t, err)
		block, err := types.Mine(signer, head, nil)
		require.NoError(t, err)
		require.NoError(t, chainA.Append(block))
		require.NoError(t, chainB.Append(block))
	}
	// Diverging suffixes, B's longer.
	grow(t, chainA, signer, 1)
	grow(t, chainB, signer, 3)

	require.NoError(t, runSync(t, chainA, chainB))
	requireEqualChains(t, chainA, chainB)
}

// S6: equal heights, nothing shared beyond a different genesis. The
// initiator walks all the way down and gives up.
func TestSyncNoCommonAncestor(t *testing.T) {
	foreignSeed := make([]byte, ed25519.SeedSize)
	copy(foreignSeed, "another-issue-entirely")
	foreign := &types.GenesisSpec{Issuer: ed25519.NewKeyFromSeed(foreignSeed), Note: "foreign"}

	chainA := openTestChain(t, nil)
	chainB := openTestChain(t, foreign)
	grow(t, chainA, testSigner(t), 4)
	grow(t, chainB, testSigner(t), 4)

	heightBefore := chainA.Height()
	require.ErrorIs(t, runSync(t, chainA, chainB), ErrNoCommonAncestor)
	require.Equal(t, heightBefore, chainA.Height())
}

// A responder that is behind the initiator fails the substream without
// touching either chain.
func TestSyncResponderBehind(t *testing.T) {
	chainA := openTestChain(t, nil)
	chainB := openTestChain(t, nil)
	grow(t, chainA, testSigner(t), 3)

	err := runSync(t, chainA, chainB)
	require.Error(t, err)
	require.EqualValues(t, 4, chainA.Height())
	require.EqualValues(t, 1, chainB.Height())
}

// A dropped substream surfaces as an error, not a hang or a mutation.
func TestSyncPrematureClose(t *testing.T) {
	chainA := openTestChain(t, nil)
	grow(t, chainA, testSigner(t), 2)

	a, b := net.Pipe()
	go b.Close()

	err := Initiate(context.Background(), a, chainA)
	require.Error(t, err)
	require.EqualValues(t, 3, chainA.Height())
}

func TestHeartbeatExchange(t *testing.T) {
	chainA := openTestChain(t, nil)
	chainB := openTestChain(t, nil)
	grow(t, chainB, testSigner(t), 3)

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	type answer struct {
		height uint32
		err    error
	}
	served := make(chan answer, 1)
	go func() {
		h, err := ServeHeartbeat(b, chainB)
		served <- answer{h, err}
	}()

	peerHeight, err := SendHeartbeat(a, chainA)
	require.NoError(t, err)
	require.EqualValues(t, 4, peerHeight)

	resp := <-served
	require.NoError(t, resp.err)
	require.EqualValues(t, 1, resp.height)
}
