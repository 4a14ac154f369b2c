// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package orchestrator sequences GRANDPA voting rounds: it starts round
// r+1 once round r reports completable, tracks the voter-set epoch
// (set_id), and drains in-flight rounds when a voter-set change
// activates. A Fin for round r feeds its precommits into round r and
// starts r+1 only when that makes round r completable; a round that has
// not yet seen threshold prevote weight does not become completable from
// a Fin alone.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/log"

	"github.com/luxfi/grandpa/chainadapter"
	"github.com/luxfi/grandpa/config"
	"github.com/luxfi/grandpa/gossip"
	"github.com/luxfi/grandpa/internal/clock"
	"github.com/luxfi/grandpa/metrics"
	"github.com/luxfi/grandpa/round"
	"github.com/luxfi/grandpa/tracker"
	"github.com/luxfi/grandpa/vote"
)

// ErrNotStarted is returned by operations that require Start to have
// been called first.
var ErrNotStarted = errors.New("grandpa/orchestrator: not started")

// Orchestrator drives the round sequence for one voter-set epoch,
// restarting whenever the epoch changes. It is not safe for concurrent
// use: like Round, it runs on a single cooperative executor.
type Orchestrator struct {
	chain    chainadapter.Adapter
	gossip   gossip.Port
	clk      clock.Clock
	logger   log.Logger
	metrics  *metrics.Metrics
	observer tracker.EquivocationObserver

	cfg     config.Config
	voters  *vote.VoterSet
	setID   vote.SetID
	keypair *vote.Keypair

	current *round.Round
	prior   round.PriorState
	hasPrior bool

	// backlog holds vote messages for rounds not yet locally started,
	// capped in aggregate at cfg.MessageBacklogCap.
	backlog map[vote.RoundNumber][]vote.VoteMessage
}

// Options bundles the Orchestrator's fixed dependencies.
type Options struct {
	Config   config.Config
	Chain    chainadapter.Adapter
	Gossip   gossip.Port
	Clock    clock.Clock
	Logger   log.Logger
	Metrics  *metrics.Metrics
	Observer tracker.EquivocationObserver
}

// New constructs an Orchestrator. Call Start to begin round 0.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = log.NewNoOpLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	if opts.Observer == nil {
		opts.Observer = opts.Metrics
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Orchestrator{
		chain:    opts.Chain,
		gossip:   opts.Gossip,
		clk:      opts.Clock,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		observer: opts.Observer,
		cfg:      opts.Config,
		voters:   opts.Config.Voters,
		setID:    opts.Config.SetID,
		keypair:  opts.Config.Keypair,
		backlog:  make(map[vote.RoundNumber][]vote.VoteMessage),
	}
}

// Start begins round 0 against the configured voter set.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.startRound(0)
	return o.current.Begin(ctx)
}

// Current returns the round currently being driven, or nil if Start
// has not been called.
func (o *Orchestrator) Current() *round.Round { return o.current }

// SetID returns the current voter-set epoch.
func (o *Orchestrator) SetID() vote.SetID { return o.setID }

// BestFinalCandidate returns the best final candidate block for round
// n: its estimate if n is the round in flight, or the retained prior
// round's estimate if n is the round just completed. Round state is
// kept for only one round back to seed the next, so false is returned
// for anything further back.
func (o *Orchestrator) BestFinalCandidate(n vote.RoundNumber) (vote.BlockInfo, bool) {
	if o.current != nil && n == o.current.Number() {
		return o.current.Estimate()
	}
	if o.hasPrior && o.current != nil && n+1 == o.current.Number() {
		return o.prior.Estimate, !o.prior.Estimate.IsZero()
	}
	return vote.BlockInfo{}, false
}

func (o *Orchestrator) startRound(n vote.RoundNumber) {
	base := o.chain.LastFinalized()
	o.current = round.New(round.Options{
		Number: n, Set: o.setID, Voters: o.voters, Keypair: o.keypair, Base: base,
		Chain: o.chain, Gossip: o.gossip, Clock: o.clk, Logger: o.logger,
		Metrics: o.metrics, Duration: o.cfg.Duration, Observer: o.observer,
		Prior: o.prior, HasPrior: o.hasPrior,
	})
	o.drainBacklog(n)
}

// drainBacklog replays any buffered messages for round n now that it
// has started.
func (o *Orchestrator) drainBacklog(n vote.RoundNumber) {
	msgs, ok := o.backlog[n]
	if !ok {
		return
	}
	delete(o.backlog, n)
	for _, msg := range msgs {
		if err := o.current.OnVoteMessage(context.Background(), msg); err != nil {
			o.logger.Warn("failed to replay buffered vote", "round", uint64(n), "error", err)
		}
	}
}

// OnVoteMessage dispatches an inbound vote message to the current
// round by (round_number, set_id), buffering messages for rounds not
// yet started and dropping those for a different set id.
func (o *Orchestrator) OnVoteMessage(ctx context.Context, msg vote.VoteMessage) error {
	if o.current == nil {
		return ErrNotStarted
	}
	if msg.Set != o.setID {
		o.logger.Warn("dropping vote message", "reason", "set id mismatch", "got", uint64(msg.Set), "want", uint64(o.setID))
		return nil
	}
	if msg.Round < o.current.Number() {
		// Messages for past rounds are discarded: they never re-open
		// a round and are not added to any finished round's
		// justification.
		return nil
	}
	if msg.Round > o.current.Number() {
		o.buffer(msg.Round, msg)
		return nil
	}
	if err := o.current.OnVoteMessage(ctx, msg); err != nil {
		return err
	}
	return o.afterRoundUpdate(ctx)
}

func (o *Orchestrator) buffer(round vote.RoundNumber, msg vote.VoteMessage) {
	total := 0
	for _, msgs := range o.backlog {
		total += len(msgs)
	}
	if total >= o.cfg.MessageBacklogCap {
		o.logger.Warn("dropping vote message", "reason", "backlog full", "round", uint64(round))
		return
	}
	o.backlog[round] = append(o.backlog[round], msg)
}

// OnFin dispatches an inbound commit message to the current round,
// advancing the round sequence if it causes round r+1 to start.
func (o *Orchestrator) OnFin(ctx context.Context, fin vote.Fin) error {
	if o.current == nil {
		return ErrNotStarted
	}
	if fin.Set != o.setID || fin.Round != o.current.Number() {
		return nil
	}
	if err := o.current.OnFin(ctx, fin); err != nil {
		return err
	}
	return o.afterRoundUpdate(ctx)
}

// Tick drives the current round's cooperative timer forward to now,
// the orchestrator's equivalent of an event-loop wakeup.
func (o *Orchestrator) Tick(ctx context.Context) error {
	if o.current == nil {
		return ErrNotStarted
	}
	if err := o.current.Advance(ctx, o.clk.Now()); err != nil {
		return err
	}
	return o.afterRoundUpdate(ctx)
}

// afterRoundUpdate starts round n+1 once the current round reports
// completable, seeding it with the finished round's state.
func (o *Orchestrator) afterRoundUpdate(ctx context.Context) error {
	if !o.current.Completable() {
		return nil
	}
	finalized, _ := o.current.Finalized()
	estimate, _ := o.current.Estimate()
	ghost, _ := o.current.PrevoteGhost()
	o.prior = round.PriorState{Estimate: estimate, Finalized: finalized, PrevoteGhost: ghost}
	o.hasPrior = true

	next := o.current.Number() + 1
	o.startRound(next)
	if err := o.current.Begin(ctx); err != nil {
		return fmt.Errorf("grandpa/orchestrator: starting round %d: %w", next, err)
	}
	return nil
}

// ApplyVoterSetChange activates a new voter set: in-flight rounds are
// dropped, set_id is bumped, and a fresh round 0 starts against the new
// voters.
func (o *Orchestrator) ApplyVoterSetChange(ctx context.Context, newVoters *vote.VoterSet) error {
	o.voters = newVoters
	o.setID++
	o.backlog = make(map[vote.RoundNumber][]vote.VoteMessage)
	o.prior = round.PriorState{}
	o.hasPrior = false
	o.startRound(0)
	return o.current.Begin(ctx)
}
