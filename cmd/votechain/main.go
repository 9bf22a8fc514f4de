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

// votechain is the command line entry point: key tooling, ballot casting
// and running a chain node. Transport and gossip are provided by the
// embedding deployment; the bare binary drives a local chain.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/votechain/go-votechain/census"
	"github.com/votechain/go-votechain/core/types"
	"github.com/votechain/go-votechain/crypto"
	"github.com/votechain/go-votechain/crypto/paillier"
	"github.com/votechain/go-votechain/node"
)

const trusteeKeyBits = 2048

func main() {
	app := &cli.App{
		Name:  "votechain",
		Usage: "peer-to-peer homomorphic voting chain",
		Commands: []*cli.Command{
			identityCommand,
			trusteeCommand,
			castCommand,
			runCommand,
		},
		Before: func(ctx *cli.Context) error {
			handler := log.LvlFilterHandler(log.LvlInfo, log.StreamHandler(os.Stderr, log.TerminalFormat(false)))
			log.Root().SetHandler(handler)
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var identityCommand = &cli.Command{
	Name:  "identity",
	Usage: "generate a voter identity keypair",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "out", Usage: "output key file", Required: true},
	},
	Action: func(ctx *cli.Context) error {
		sk, err := crypto.GenerateVoterKey()
		if err != nil {
			return err
		}
		if err := crypto.SaveVoterKey(ctx.String("out"), sk); err != nil {
			return err
		}
		fmt.Println("voter id:", crypto.VoterIDOf(sk).Hex())
		return nil
	},
}

var trusteeCommand = &cli.Command{
	Name:  "trustee",
	Usage: "generate a trustee encryption keypair",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "out", Usage: "output keypair file", Required: true},
		&cli.StringFlag{Name: "pub", Usage: "output public key file", Required: true},
	},
	Action: func(ctx *cli.Context) error {
		dk, err := paillier.GenerateKey(rand.Reader, trusteeKeyBits)
		if err != nil {
			return err
		}
		blob, err := dk.EncodeToBytes()
		if err != nil {
			return err
		}
		if err := os.WriteFile(ctx.String("out"), blob, 0600); err != nil {
			return err
		}
		pubBlob, err := dk.PublicKey.EncodeToBytes()
		if err != nil {
			return err
		}
		return os.WriteFile(ctx.String("pub"), pubBlob, 0644)
	},
}

var castCommand = &cli.Command{
	Name:  "cast",
	Usage: "create a signed ballot and print its wire encoding",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "issue", Usage: "issue chain to vote on", Required: true},
		&cli.BoolFlag{Name: "verdict", Usage: "vote yes (true) or no (false)"},
		&cli.StringFlag{Name: "key", Usage: "voter identity file", Required: true},
		&cli.StringFlag{Name: "trustee", Usage: "trustee public key file", Required: true},
	},
	Action: func(ctx *cli.Context) error {
		sk, err := crypto.LoadVoterKey(ctx.String("key"))
		if err != nil {
			return err
		}
		pubBlob, err := os.ReadFile(ctx.String("trustee"))
		if err != nil {
			return err
		}
		ek, err := paillier.DecodePublicKey(pubBlob)
		if err != nil {
			return err
		}
		ballot, err := types.NewBallot(rand.Reader, ek, ctx.Bool("verdict"), ctx.String("issue"))
		if err != nil {
			return err
		}
		wire, err := types.SignBallot(sk, ballot).EncodeToBytes()
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(wire))
		return nil
	},
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "run a chain node",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "TOML configuration file", Required: true},
	},
	Action: runNode,
}

func runNode(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx.String("config"))
	if err != nil {
		return err
	}
	signer, err := crypto.LoadVoterKey(cfg.Node.IdentityFile)
	if err != nil {
		return err
	}
	cs, err := census.FromDirectory(cfg.Node.CensusDir)
	if err != nil {
		return err
	}
	graph, err := cfg.delegationGraph()
	if err != nil {
		return err
	}
	pubBlob, err := os.ReadFile(cfg.Node.TrusteePublicFile)
	if err != nil {
		return err
	}
	ek, err := paillier.DecodePublicKey(pubBlob)
	if err != nil {
		return err
	}
	var dk *paillier.PrivateKey
	if cfg.Node.TrusteeKeyFile != "" {
		blob, err := os.ReadFile(cfg.Node.TrusteeKeyFile)
		if err != nil {
			return err
		}
		if dk, err = paillier.DecodePrivateKey(blob); err != nil {
			return err
		}
	}
	var genesis *types.GenesisSpec
	if cfg.Node.GenesisIssuerFile != "" {
		issuer, err := crypto.LoadVoterKey(cfg.Node.GenesisIssuerFile)
		if err != nil {
			return err
		}
		genesis = &types.GenesisSpec{Issuer: issuer, Note: cfg.Node.GenesisNote}
	}

	n, err := node.New(node.Config{
		IssueID:   cfg.Node.IssueID,
		DataDir:   cfg.Node.DataDir,
		BlockSize: cfg.Node.BlockSize,
		Heartbeat: time.Duration(cfg.Node.HeartbeatSeconds) * time.Second,
		Genesis:   genesis,
	}, signer, cs, graph, ek, dk, unroutableDialer{})
	if err != nil {
		return err
	}
	n.Start()
	defer n.Stop()

	results := make(chan node.TallyEvent, 16)
	sub := n.SubscribeTally(results)
	defer sub.Unsubscribe()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case ev := <-results:
			status := "rejected"
			if ev.Result.Passed {
				status = "passed"
			}
			log.Info("Trial tally", "issue", ev.Issue, "for", ev.Result.For, "against", ev.Result.Against, "status", status)
		case <-sigc:
			log.Info("Shutting down")
			return nil
		}
	}
}

// unroutableDialer stands in until a deployment plugs a real transport into
// the node.
type unroutableDialer struct{}

func (unroutableDialer) Dial(ctx context.Context, peer, protocol string) (io.ReadWriteCloser, error) {
	return nil, fmt.Errorf("no transport configured")
}
