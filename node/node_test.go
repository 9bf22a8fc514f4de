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

package node

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/votechain/go-votechain/census"
	"github.com/votechain/go-votechain/core/types"
	"github.com/votechain/go-votechain/crypto/paillier"
	"github.com/votechain/go-votechain/tally"
)

// nodeEnv is a trustee keypair plus a census of named voters.
type nodeEnv struct {
	dk    *paillier.PrivateKey
	keys  map[string]ed25519.PrivateKey
	names []string
}

func newNodeEnv(t *testing.T, voters int) *nodeEnv {
	t.Helper()
	dk, err := paillier.GenerateKey(rand.Reader, 512)
	require.NoError(t, err)
	env := &nodeEnv{dk: dk, keys: make(map[string]ed25519.PrivateKey)}
	for i := 0; i < voters; i++ {
		name := fmt.Sprintf("v%d", i)
		_, sk, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		env.keys[name] = sk
		env.names = append(env.names, name)
	}
	return env
}

func (env *nodeEnv) census() *census.Census {
	var ids []types.VoterID
	for _, sk := range env.keys {
		ids = append(ids, types.BytesToVoterID(sk.Public().(ed25519.PublicKey)))
	}
	return census.New(ids...)
}

func (env *nodeEnv) cast(t *testing.T, name string, verdict bool) *types.SignedBallot {
	t.Helper()
	b, err := types.NewBallot(rand.Reader, &env.dk.PublicKey, verdict, "test-issue")
	require.NoError(t, err)
	return types.SignBallot(env.keys[name], b)
}

// nilDialer fails every dial; tests that never sync use it.
type nilDialer struct{}

func (nilDialer) Dial(context.Context, string, string) (io.ReadWriteCloser, error) {
	return nil, fmt.Errorf("no transport in test")
}

func (env *nodeEnv) newNode(t *testing.T, dialer Dialer, trustee bool) *Node {
	t.Helper()
	var dk *paillier.PrivateKey
	if trustee {
		dk = env.dk
	}
	_, signer, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	n, err := New(Config{IssueID: "test-issue", DataDir: t.TempDir()},
		signer, env.census(), tally.NewDelegationGraph(nil), &env.dk.PublicKey, dk, dialer)
	require.NoError(t, err)
	t.Cleanup(func() { n.Stop() })
	return n
}

func TestHandleBallotValidation(t *testing.T) {
	env := newNodeEnv(t, 2)
	n := env.newNode(t, nilDialer{}, false)

	// A valid ballot pools.
	require.NoError(t, n.HandleBallot(env.cast(t, "v0", true)))
	require.Equal(t, 1, n.Chain().PoolSize())

	// Wrong issue.
	b, err := types.NewBallot(rand.Reader, &env.dk.PublicKey, true, "other-issue")
	require.NoError(t, err)
	require.ErrorIs(t, n.HandleBallot(types.SignBallot(env.keys["v1"], b)), ErrWrongIssue)

	// Tampered payload.
	sb := env.cast(t, "v1", true)
	sb.Ballot.Time++
	require.ErrorIs(t, n.HandleBallot(sb), ErrBadSignature)

	// Signer outside the census.
	_, stranger, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	strangerBallot, err := types.NewBallot(rand.Reader, &env.dk.PublicKey, true, "test-issue")
	require.NoError(t, err)
	require.ErrorIs(t, n.HandleBallot(types.SignBallot(stranger, strangerBallot)), ErrNotInCensus)

	// Only the first valid ballot reached the pool.
	require.Equal(t, 1, n.Chain().PoolSize())
}

func TestHandleBallotDeduplicates(t *testing.T) {
	env := newNodeEnv(t, 1)
	n := env.newNode(t, nilDialer{}, false)

	sb := env.cast(t, "v0", true)
	require.NoError(t, n.HandleBallot(sb))
	require.NoError(t, n.HandleBallot(sb))
	require.Equal(t, 1, n.Chain().PoolSize())
}

// Enough ballots drive the chain past the resolve gate and publish a tally.
func TestTallyEventAfterEnoughBlocks(t *testing.T) {
	env := newNodeEnv(t, 10)
	n := env.newNode(t, nilDialer{}, true)

	ch := make(chan TallyEvent, 8)
	sub := n.SubscribeTally(ch)
	defer sub.Unsubscribe()

	for _, name := range env.names {
		require.NoError(t, n.HandleBallot(env.cast(t, name, true)))
	}
	// Ten pooled ballots at block size two: five blocks, height six.
	require.EqualValues(t, 6, n.Chain().Height())

	// Trial tallies fire on every ballot pooled past the gate; the last one
	// has seen the full chain.
	var ev TallyEvent
	require.NotEmpty(t, ch)
	for len(ch) > 0 {
		ev = <-ch
	}
	require.Equal(t, "test-issue", ev.Issue)
	require.True(t, ev.Result.Passed)
	require.EqualValues(t, 10, ev.Result.For)
	require.EqualValues(t, 0, ev.Result.Against)
}

// pipeDialer always connects to the given responder node.
type pipeDialer struct {
	responder *Node
}

func (d pipeDialer) Dial(ctx context.Context, peer, protocol string) (io.ReadWriteCloser, error) {
	a, b := net.Pipe()
	go func() {
		_ = d.responder.ServeSync(ctx, b)
		b.Close()
	}()
	return a, nil
}

func TestSyncOnceConverges(t *testing.T) {
	env := newNodeEnv(t, 10)

	remote := env.newNode(t, nilDialer{}, false)
	for _, name := range env.names {
		require.NoError(t, remote.HandleBallot(env.cast(t, name, true)))
	}
	require.EqualValues(t, 6, remote.Chain().Height())

	local := env.newNode(t, pipeDialer{responder: remote}, true)
	require.ErrorIs(t, local.SyncOnce(context.Background()), ErrNoPeers)

	ch := make(chan TallyEvent, 1)
	sub := local.SubscribeTally(ch)
	defer sub.Unsubscribe()

	local.AddPeer("remote")
	require.NoError(t, local.SyncOnce(context.Background()))
	require.Equal(t, remote.Chain().Height(), local.Chain().Height())

	ev := <-ch
	require.EqualValues(t, 10, ev.Result.For)
}

func TestPeerSet(t *testing.T) {
	env := newNodeEnv(t, 1)
	n := env.newNode(t, nilDialer{}, false)

	n.AddPeer("a")
	n.AddPeer("b")
	n.AddPeer("a")
	require.Len(t, n.Peers(), 2)

	n.RemovePeer("a")
	require.Equal(t, []string{"b"}, n.Peers())
}
