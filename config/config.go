// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the GRANDPA core's injected configuration:
// round duration, voter set, local keypair, and the current voter-set
// epoch.
package config

import (
	"errors"
	"time"

	"github.com/luxfi/grandpa/vote"
)

// Validation errors, one sentinel per invalid field.
var (
	ErrDurationTooLow = errors.New("grandpa/config: round duration must be >= 1ms")
	ErrNoVoters       = errors.New("grandpa/config: voter set must not be empty")
	ErrNoKeypair      = errors.New("grandpa/config: keypair must be set")
)

// Config is the full set of parameters threaded through an orchestrator
// and its rounds.
type Config struct {
	// Duration is the nominal round duration D; T_prevote = start + 2D,
	// T_precommit = start + 4D.
	Duration time.Duration

	// Voters is the voter set for the current epoch.
	Voters *vote.VoterSet

	// Keypair signs this node's own votes; nil if this node is an
	// observer that only tracks finality without voting.
	Keypair *vote.Keypair

	// SetID is the voter-set epoch this config applies to.
	SetID vote.SetID

	// MessageBacklogCap bounds the total number of buffered vote
	// messages for rounds this node hasn't started yet (default 1,024).
	// The count covers all rounds and all senders together; messages
	// are not counted per peer.
	MessageBacklogCap int
}

// Valid reports whether c can be used to start an orchestrator.
func (c Config) Valid() error {
	switch {
	case c.Duration < time.Millisecond:
		return ErrDurationTooLow
	case c.Voters == nil || c.Voters.Len() == 0:
		return ErrNoVoters
	default:
		return nil
	}
}

// defaultBacklogCap is the default total number of buffered vote
// messages held for rounds not yet locally started.
const defaultBacklogCap = 1024

func withDefaults(c Config) Config {
	if c.MessageBacklogCap == 0 {
		c.MessageBacklogCap = defaultBacklogCap
	}
	return c
}

// SingleVoterParams is sized for a one-node development network: short
// rounds, a single voter who is always primary.
func SingleVoterParams(voters *vote.VoterSet, kp *vote.Keypair) Config {
	return withDefaults(Config{
		Duration: 200 * time.Millisecond,
		Voters:   voters,
		Keypair:  kp,
	})
}

// SmallNetworkParams is sized for an integration-test or testnet-scale
// voter set (single-digit to low-double-digit voters).
func SmallNetworkParams(voters *vote.VoterSet, kp *vote.Keypair) Config {
	return withDefaults(Config{
		Duration: time.Second,
		Voters:   voters,
		Keypair:  kp,
	})
}

// ProductionParams is sized for a production-scale validator set, with
// a round duration long enough to tolerate realistic network latency.
func ProductionParams(voters *vote.VoterSet, kp *vote.Keypair) Config {
	return withDefaults(Config{
		Duration: 4 * time.Second,
		Voters:   voters,
		Keypair:  kp,
	})
}
