// Copyright 2024 The go-votechain Authors
// This file is part of go-votechain.
//
// go-votechain is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-votechain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-votechain. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/naoina/toml"

	"github.com/votechain/go-votechain/core/types"
	"github.com/votechain/go-votechain/tally"
)

// nodeConfig is the on-disk TOML configuration of a node.
type nodeConfig struct {
	Node struct {
		IssueID          string
		DataDir          string
		BlockSize        int
		HeartbeatSeconds int

		// IdentityFile is the node's PKCS#8 signing key.
		IdentityFile string

		// GenesisIssuerFile holds the shared genesis issuer key; empty
		// selects the development blueprint.
		GenesisIssuerFile string
		GenesisNote       string

		// TrusteePublicFile holds the issue encryption key. The full
		// trustee keypair file is only set on the tallying node.
		TrusteePublicFile string
		TrusteeKeyFile    string

		// CensusDir is a directory of identity files naming the eligible
		// voters.
		CensusDir string
	}

	// Delegations maps delegator to representative, both as hex voter ids.
	Delegations map[string]string
}

func loadConfig(file string) (*nodeConfig, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := new(nodeConfig)
	if err := toml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	if cfg.Node.IssueID == "" {
		return nil, fmt.Errorf("%s: missing node issue id", file)
	}
	return cfg, nil
}

// delegationGraph decodes the configured delegation pairs.
func (cfg *nodeConfig) delegationGraph() (*tally.DelegationGraph, error) {
	delegations := make(map[types.VoterID]types.VoterID, len(cfg.Delegations))
	for from, to := range cfg.Delegations {
		fromID, err := decodeVoterID(from)
		if err != nil {
			return nil, err
		}
		toID, err := decodeVoterID(to)
		if err != nil {
			return nil, err
		}
		delegations[fromID] = toID
	}
	return tally.NewDelegationGraph(delegations), nil
}

func decodeVoterID(s string) (types.VoterID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(types.VoterID{}) {
		return types.VoterID{}, fmt.Errorf("bad voter id %q", s)
	}
	return types.BytesToVoterID(raw), nil
}
