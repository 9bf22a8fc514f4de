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

// Package node wires the chain store, ballot validation, the delegation
// resolver and the sync protocol to the external collaborators: a gossip
// layer delivering signed ballots, a transport dialing peers, and a peer
// discovery feed.
package node

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"

	"github.com/votechain/go-votechain/census"
	"github.com/votechain/go-votechain/core"
	"github.com/votechain/go-votechain/core/types"
	"github.com/votechain/go-votechain/crypto/paillier"
	"github.com/votechain/go-votechain/protocols/chainsync"
	"github.com/votechain/go-votechain/tally"
)

const (
	// defaultHeartbeat is the interval between sync attempts with a random
	// peer.
	defaultHeartbeat = 20 * time.Second

	// seenSignatures is the number of recently verified ballot signatures
	// kept to short-circuit duplicate gossip deliveries.
	seenSignatures = 4096

	// syncTimeout bounds a single sync conversation.
	syncTimeout = 30 * time.Second
)

var (
	// ErrBadSignature is returned for a ballot whose envelope does not
	// verify.
	ErrBadSignature = errors.New("ballot signature invalid")

	// ErrNotInCensus is returned for a ballot signed by a key outside the
	// eligible-voter set.
	ErrNotInCensus = errors.New("signer not in census")

	// ErrWrongIssue is returned for a ballot naming a different issue
	// chain.
	ErrWrongIssue = errors.New("ballot for different issue")

	// ErrNoPeers is returned when a sync is requested with an empty peer
	// set.
	ErrNoPeers = errors.New("no peers known")
)

// Config collects the node parameters.
type Config struct {
	IssueID   string
	DataDir   string
	BlockSize int

	// Heartbeat overrides the sync interval when positive.
	Heartbeat time.Duration

	// Genesis is the shared issue blueprint; nil selects the development
	// blueprint.
	Genesis *types.GenesisSpec
}

func (c *Config) heartbeat() time.Duration {
	if c.Heartbeat > 0 {
		return c.Heartbeat
	}
	return defaultHeartbeat
}

// Dialer opens a substream to a peer for a named protocol. The transport,
// handshake and multiplexing behind it are external collaborators.
type Dialer interface {
	Dial(ctx context.Context, peer, protocol string) (io.ReadWriteCloser, error)
}

// TallyEvent is posted whenever a trial tally completes.
type TallyEvent struct {
	Issue  string
	Result *tally.Result
}

// Node orchestrates one issue chain.
type Node struct {
	cfg    Config
	chain  *core.Blockchain
	census *census.Census
	graph  *tally.DelegationGraph

	ek *paillier.PublicKey
	dk *paillier.PrivateKey // nil unless this node holds the trustee key

	dialer Dialer
	peers  mapset.Set[string]

	seen *lru.ARCCache // recently verified ballot signatures

	tallyFeed event.Feed

	mu      sync.Mutex // protects start/stop
	quit    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New assembles a node: it opens the issue chain under cfg.DataDir and
// wires the injected collaborators.
func New(cfg Config, signer ed25519.PrivateKey, cs *census.Census, graph *tally.DelegationGraph,
	ek *paillier.PublicKey, dk *paillier.PrivateKey, dialer Dialer) (*Node, error) {

	chain, err := core.Open(core.Config{
		Path:      cfg.DataDir,
		BlockSize: cfg.BlockSize,
		Genesis:   cfg.Genesis,
	}, cfg.IssueID, signer)
	if err != nil {
		return nil, err
	}
	seen, _ := lru.NewARC(seenSignatures)
	return &Node{
		cfg:    cfg,
		chain:  chain,
		census: cs,
		graph:  graph,
		ek:     ek,
		dk:     dk,
		dialer: dialer,
		peers:  mapset.NewSet[string](),
		seen:   seen,
	}, nil
}

// Chain exposes the underlying store.
func (n *Node) Chain() *core.Blockchain { return n.chain }

// Start launches the heartbeat loop.
func (n *Node) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return
	}
	n.started = true
	n.quit = make(chan struct{})
	n.wg.Add(1)
	go n.heartbeatLoop()
	log.Info("Node started", "issue", n.cfg.IssueID, "height", n.chain.Height())
}

// Stop terminates the heartbeat loop and closes the chain.
func (n *Node) Stop() error {
	n.mu.Lock()
	if n.started {
		close(n.quit)
		n.started = false
	}
	n.mu.Unlock()
	n.wg.Wait()
	return n.chain.Close()
}

func (n *Node) heartbeatLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.heartbeat())
	defer ticker.Stop()
	for {
		select {
		case <-n.quit:
			return
		case <-ticker.C:
			if err := n.SyncOnce(context.Background()); err != nil && !errors.Is(err, ErrNoPeers) {
				log.Warn("Chain sync failed", "issue", n.cfg.IssueID, "err", err)
			}
		}
	}
}

// HandleBallot ingests one signed ballot from the gossip collaborator:
// verify the envelope, check census membership and pool it. Duplicate
// deliveries are dropped by signature. Invalid ballots are rejected with an
// error; the chain is never touched by them.
func (n *Node) HandleBallot(sb *types.SignedBallot) error {
	if sb.Ballot == nil || sb.Ballot.IssueID != n.cfg.IssueID {
		return ErrWrongIssue
	}
	if _, dup := n.seen.Get(sb.Signature); dup {
		return nil
	}
	if !sb.Verify() {
		return ErrBadSignature
	}
	if !n.census.Contains(sb.Signer) {
		return fmt.Errorf("%w: %s", ErrNotInCensus, sb.Signer)
	}
	n.seen.Add(sb.Signature, struct{}{})

	if err := n.chain.PoolBallot(sb); err != nil {
		return err
	}
	log.Debug("Pooled ballot", "issue", n.cfg.IssueID, "signer", sb.Signer, "pool", n.chain.PoolSize())
	n.tryResolve()
	return nil
}

// AddPeer registers a connected peer for sync selection.
func (n *Node) AddPeer(id string) {
	if n.peers.Add(id) {
		log.Debug("Peer added", "peer", id, "peers", n.peers.Cardinality())
	}
}

// RemovePeer drops a disconnected peer.
func (n *Node) RemovePeer(id string) {
	n.peers.Remove(id)
}

// Peers returns the known peer set.
func (n *Node) Peers() []string { return n.peers.ToSlice() }

// SyncOnce dials a random peer and runs one sync conversation. On success
// a trial tally is attempted.
func (n *Node) SyncOnce(ctx context.Context) error {
	peers := n.peers.ToSlice()
	if len(peers) == 0 {
		return ErrNoPeers
	}
	peer := peers[rand.Intn(len(peers))]

	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()
	stream, err := n.dialer.Dial(ctx, peer, chainsync.ProtocolName)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", peer, err)
	}
	defer stream.Close()

	if err := chainsync.Initiate(ctx, stream, n.chain); err != nil {
		return err
	}
	n.tryResolve()
	return nil
}

// ServeSync answers an inbound sync substream.
func (n *Node) ServeSync(ctx context.Context, stream io.ReadWriter) error {
	return chainsync.Serve(ctx, stream, n.chain)
}

// ServeHeartbeat answers an inbound height probe.
func (n *Node) ServeHeartbeat(stream io.ReadWriter) error {
	peerHeight, err := chainsync.ServeHeartbeat(stream, n.chain)
	if err != nil {
		return err
	}
	log.Trace("Heartbeat answered", "peer_height", peerHeight, "height", n.chain.Height())
	return nil
}

// SubscribeTally registers for trial tally results.
func (n *Node) SubscribeTally(ch chan<- TallyEvent) event.Subscription {
	return n.tallyFeed.Subscribe(ch)
}

// tryResolve runs a trial tally once the chain is past the resolve gate.
// Nodes without the trustee decryption key skip it.
func (n *Node) tryResolve() {
	if n.dk == nil {
		return
	}
	if n.chain.Height() <= tally.ResolveHeight {
		log.Debug("Not ready to resolve", "issue", n.cfg.IssueID, "height", n.chain.Height())
		return
	}
	result, err := tally.Resolve(n.dk, n.ek, n.chain, n.graph)
	if err != nil {
		log.Error("Trial tally failed", "issue", n.cfg.IssueID, "err", err)
		return
	}
	n.tallyFeed.Send(TallyEvent{Issue: n.cfg.IssueID, Result: result})
}
