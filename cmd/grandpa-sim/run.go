// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/luxfi/log"

	"github.com/luxfi/grandpa/chainadapter"
	"github.com/luxfi/grandpa/config"
	"github.com/luxfi/grandpa/gossip"
	"github.com/luxfi/grandpa/internal/clock"
	"github.com/luxfi/grandpa/metrics"
	"github.com/luxfi/grandpa/orchestrator"
	"github.com/luxfi/grandpa/vote"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an in-memory GRANDPA simulation over a linear chain",
		Long: `run builds a linear best-chain of the requested height, starts an
Orchestrator per voter with every vote wired through a shared in-process
gossip Bus, and drives rounds with a mock clock until the chain tip
finalizes or the round budget is exhausted.`,
		RunE: runSimulation,
	}
	cmd.Flags().Int("voters", 4, "number of voters")
	cmd.Flags().Int("height", 10, "height of the chain to finalize")
	cmd.Flags().Int("max-rounds", 20, "maximum rounds to simulate before giving up")
	cmd.Flags().Duration("round-duration", 200*time.Millisecond, "nominal round duration D")
	cmd.Flags().Int64("seed", 1, "random seed for chain hashes")
	return cmd
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	numVoters, _ := cmd.Flags().GetInt("voters")
	height, _ := cmd.Flags().GetInt("height")
	maxRounds, _ := cmd.Flags().GetInt("max-rounds")
	duration, _ := cmd.Flags().GetDuration("round-duration")
	seed, _ := cmd.Flags().GetInt64("seed")

	logger := log.NewLogger("grandpa-sim")
	rng := rand.New(rand.NewSource(seed))

	genesis := vote.BlockInfo{}
	chain := chainadapter.NewInMemory(genesis)
	tip := genesis
	for h := 1; h <= height; h++ {
		next := vote.BlockInfo{Number: uint64(h)}
		rng.Read(next.Hash[:])
		if err := chain.Import(next, tip.Hash); err != nil {
			return fmt.Errorf("importing block %d: %w", h, err)
		}
		tip = next
	}
	chain.SetLeafWeight(tip.Hash, 1)

	kps := make([]vote.Keypair, numVoters)
	voterList := make([]vote.Voter, numVoters)
	for i := range kps {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return err
		}
		kps[i] = vote.Keypair{Public: pub, Private: priv}
		voterList[i] = vote.Voter{ID: kps[i].VoterID(), Weight: 1}
	}
	voters := vote.NewVoterSet(voterList)
	bus := gossip.NewBus()
	mock := clock.NewMock(time.Unix(0, 0))

	orchs := make([]*orchestrator.Orchestrator, numVoters)
	for i := range kps {
		reg := prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return fmt.Errorf("registering metrics for voter %d: %w", i, err)
		}

		cfg := config.SmallNetworkParams(voters, &kps[i])
		cfg.Duration = duration
		o := orchestrator.New(orchestrator.Options{
			Config: cfg, Chain: chain, Gossip: bus, Clock: mock, Logger: logger, Metrics: m,
		})
		orchs[i] = o
		bus.Subscribe(fmt.Sprintf("voter-%d", i), voterInbox{o})
	}

	ctx := context.Background()
	for _, o := range orchs {
		if err := o.Start(ctx); err != nil {
			return err
		}
	}

	for round := 0; round < maxRounds; round++ {
		mock.Advance(duration)
		for _, o := range orchs {
			if err := o.Tick(ctx); err != nil {
				return fmt.Errorf("round %d tick: %w", round, err)
			}
		}
		if chain.LastFinalized().Hash == tip.Hash {
			logger.Info("chain finalized", "height", tip.Number, "grandpa_round", uint64(orchs[0].Current().Number()))
			return nil
		}
	}
	return fmt.Errorf("chain tip did not finalize within %d rounds (last finalized height %d)", maxRounds, chain.LastFinalized().Number)
}

// voterInbox adapts an Orchestrator to gossip.Inbox so the Bus can
// deliver every voter's messages, this voter's own included, straight
// into it.
type voterInbox struct {
	o *orchestrator.Orchestrator
}

func (v voterInbox) OnVoteMessage(ctx context.Context, msg vote.VoteMessage) error {
	return v.o.OnVoteMessage(ctx, msg)
}

func (v voterInbox) OnFin(ctx context.Context, fin vote.Fin) error {
	return v.o.OnFin(ctx, fin)
}

var _ gossip.Inbox = voterInbox{}
