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

package tally

import (
	"crypto/rand"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"

	"github.com/votechain/go-votechain/core"
	"github.com/votechain/go-votechain/core/types"
	"github.com/votechain/go-votechain/crypto/paillier"
)

// ResolveHeight is the chain height a trial tally waits to exceed. A crude
// enough-blocks gate; an explicit close signal such as a seal block
// replaces it in production deployments.
const ResolveHeight = 4

// Result is a decrypted tally outcome.
type Result struct {
	For     uint64
	Against uint64
	Passed  bool
}

// Resolve tallies the chain: it retains the latest ballot per signer,
// resolves delegation weights for the voters who cast one, applies the
// weights homomorphically and decrypts only the aggregated totals.
func Resolve(dk *paillier.PrivateKey, ek *paillier.PublicKey, chain *core.Blockchain, graph *DelegationGraph) (*Result, error) {
	blocks, err := chain.Blocks()
	if err != nil {
		return nil, err
	}

	// Latest-writer-wins per signer, across reorgs and re-pooling.
	retained := make(map[types.VoterID]*types.Ballot)
	voters := mapset.NewThreadUnsafeSet[types.VoterID]()
	for _, block := range blocks {
		for _, sb := range block.Ballots() {
			if !sb.Ballot.Valid(ek) {
				log.Warn("Dropping malformed ballot from tally", "signer", sb.Signer)
				continue
			}
			current, ok := retained[sb.Signer]
			if !ok || sb.Ballot.Time > current.Time {
				retained[sb.Signer] = sb.Ballot.Copy()
				voters.Add(sb.Signer)
			}
		}
	}

	weights := graph.GenerateWeights(voters)
	for voter, ballot := range retained {
		ballot.Weight(ek, weights[voter])
	}

	totalFor, err := ek.EncryptZero(rand.Reader)
	if err != nil {
		return nil, err
	}
	totalAgainst, err := ek.EncryptZero(rand.Reader)
	if err != nil {
		return nil, err
	}
	for _, ballot := range retained {
		totalFor, totalAgainst = ballot.Sum(ek, totalFor, totalAgainst)
	}

	votesFor, err := dk.Decrypt(totalFor)
	if err != nil {
		return nil, err
	}
	votesAgainst, err := dk.Decrypt(totalAgainst)
	if err != nil {
		return nil, err
	}
	result := &Result{
		For:     votesFor.Uint64(),
		Against: votesAgainst.Uint64(),
		Passed:  votesFor.Cmp(votesAgainst) > 0,
	}
	log.Info("Resolved tally", "issue", chain.IssueID(), "for", result.For, "against", result.Against, "passed", result.Passed)
	return result, nil
}
