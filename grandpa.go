// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package grandpa re-exports the GRANDPA voting core's public surface so
// callers can depend on a single import path instead of reaching into
// each subpackage directly.
package grandpa

import (
	"github.com/luxfi/grandpa/chainadapter"
	"github.com/luxfi/grandpa/config"
	"github.com/luxfi/grandpa/gossip"
	"github.com/luxfi/grandpa/justification"
	"github.com/luxfi/grandpa/orchestrator"
	"github.com/luxfi/grandpa/round"
	"github.com/luxfi/grandpa/vote"
)

type (
	// Config is the injected round duration, voter set, keypair and
	// epoch id.
	Config = config.Config

	// Adapter is the read-only block-tree view the core votes against.
	Adapter = chainadapter.Adapter
	// InMemoryAdapter is the in-memory Adapter used by tests and the
	// simulation harness.
	InMemoryAdapter = chainadapter.InMemory

	// Bus fans gossip vote/commit messages out to subscribed peers.
	Bus = gossip.Bus

	// Orchestrator sequences rounds across a voter-set epoch.
	Orchestrator = orchestrator.Orchestrator
	// OrchestratorOptions bundles an Orchestrator's dependencies.
	OrchestratorOptions = orchestrator.Options

	// Round drives a single GRANDPA round's state machine.
	Round = round.Round
	// RoundState is a round's position in its state machine.
	RoundState = round.State

	// Hash is a 32-byte block hash.
	Hash = vote.Hash
	// BlockInfo pairs a block hash with its height.
	BlockInfo = vote.BlockInfo
	// BlockHeader is the minimal header GRANDPA needs for ancestry
	// verification.
	BlockHeader = vote.BlockHeader
	// VoterID is a voter's stable Ed25519-derived identity.
	VoterID = vote.VoterID
	// Voter is one weighted voter-set entry.
	Voter = vote.Voter
	// VoterSet is a fixed, weighted set of voters for one epoch.
	VoterSet = vote.VoterSet
	// Keypair signs votes for a local voter.
	Keypair = vote.Keypair
	// RoundNumber identifies a round within an epoch.
	RoundNumber = vote.RoundNumber
	// SetID identifies a voter-set epoch.
	SetID = vote.SetID
	// VoteMessage is the gossip envelope for a single signed vote.
	VoteMessage = vote.VoteMessage
	// Fin is the commit message disseminating a round's justification.
	Fin = vote.Fin
	// Justification proves a block finalized under a voter-set
	// supermajority.
	Justification = vote.Justification
)

const (
	// RoundStart is a round that has not yet proposed, prevoted or
	// precommitted.
	RoundStart = round.Start
	// RoundProposed is a round whose primary has broadcast its hint.
	RoundProposed = round.Proposed
	// RoundPrevoted is a round that has cast its prevote.
	RoundPrevoted = round.Prevoted
	// RoundPrecommitted is a round that has cast its precommit.
	RoundPrecommitted = round.Precommitted
)

var (
	// NewOrchestrator constructs an Orchestrator; call Start to begin
	// round 0.
	NewOrchestrator = orchestrator.New
	// NewInMemoryAdapter constructs an in-memory Adapter rooted at the
	// given genesis block.
	NewInMemoryAdapter = chainadapter.NewInMemory
	// NewBus constructs an empty gossip Bus.
	NewBus = gossip.NewBus
	// NewVoterSet builds a VoterSet from an ordered voter list.
	NewVoterSet = vote.NewVoterSet

	// SingleVoterParams is sized for a one-node development network.
	SingleVoterParams = config.SingleVoterParams
	// SmallNetworkParams is sized for an integration-test voter set.
	SmallNetworkParams = config.SmallNetworkParams
	// ProductionParams is sized for a production validator set.
	ProductionParams = config.ProductionParams
	// LoadConfigFile loads a Config from a YAML file.
	LoadConfigFile = config.LoadFile

	// EncodeJustification serializes a Justification to its wire form.
	EncodeJustification = justification.Encode
	// DecodeJustification parses a Justification from its wire form.
	DecodeJustification = justification.Decode
	// VerifyJustification checks a Justification meets the voter set's
	// supermajority threshold with full ancestry cover.
	VerifyJustification = justification.Verify
)
