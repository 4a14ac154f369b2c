// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package round implements the per-round GRANDPA voting state machine:
// propose, prevote, precommit, finalize, driven by a cooperative timer
// and incoming vote/commit messages.
package round

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/grandpa/chainadapter"
	"github.com/luxfi/grandpa/gossip"
	"github.com/luxfi/grandpa/internal/clock"
	"github.com/luxfi/grandpa/invariant"
	"github.com/luxfi/grandpa/metrics"
	"github.com/luxfi/grandpa/tracker"
	"github.com/luxfi/grandpa/vote"
	"github.com/luxfi/grandpa/votegraph"
)

// State is the round's position in its state machine. States are
// monotone non-decreasing.
type State uint8

const (
	Start State = iota
	Proposed
	Prevoted
	Precommitted
)

func (s State) String() string {
	switch s {
	case Start:
		return "start"
	case Proposed:
		return "proposed"
	case Prevoted:
		return "prevoted"
	case Precommitted:
		return "precommitted"
	default:
		return "unknown"
	}
}

// ErrNoKeypair is returned when a voting action is attempted on a round
// with no local keypair (an observer-only node).
var ErrNoKeypair = errors.New("grandpa/round: no local keypair")

// PriorState is the subset of a finished round's state the orchestrator
// seeds the next round with.
type PriorState struct {
	Estimate     vote.BlockInfo
	Finalized    vote.BlockInfo
	PrevoteGhost vote.BlockInfo
	Justification vote.Justification
}

// Round owns one round's Tracker, Graph and timer. It is not safe for
// concurrent use: the core is single-threaded cooperative on one
// executor.
type Round struct {
	number vote.RoundNumber
	set    vote.SetID
	voters *vote.VoterSet
	keypair *vote.Keypair

	chain  chainadapter.Adapter
	gossip gossip.Port
	clk    clock.Clock
	logger log.Logger
	metric *metrics.Metrics

	duration  time.Duration
	startTime time.Time

	tracker *tracker.Tracker
	graph   *votegraph.Graph

	state       State
	prior       PriorState
	hasPrior    bool
	primaryHint *vote.BlockInfo

	prevoteGhost *vote.BlockInfo
	estimate     *vote.BlockInfo
	finalized    *vote.BlockInfo
	completable  bool

	finalizedLocally bool
	finReceived      bool
}

// Options bundles a Round's fixed dependencies.
type Options struct {
	Number   vote.RoundNumber
	Set      vote.SetID
	Voters   *vote.VoterSet
	Keypair  *vote.Keypair
	Base     vote.BlockInfo
	Chain    chainadapter.Adapter
	Gossip   gossip.Port
	Clock    clock.Clock
	Logger   log.Logger
	Metrics  *metrics.Metrics
	Duration time.Duration
	Observer tracker.EquivocationObserver
	Prior    PriorState
	HasPrior bool
}

// New constructs a round starting now, seeded from the previous round's
// state (if any).
func New(opts Options) *Round {
	if opts.Logger == nil {
		opts.Logger = log.NewNoOpLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	weights := make([]uint64, opts.Voters.Len())
	for i := 0; i < opts.Voters.Len(); i++ {
		v, _ := opts.Voters.At(i)
		weights[i] = v.Weight
	}

	r := &Round{
		number:   opts.Number,
		set:      opts.Set,
		voters:   opts.Voters,
		keypair:  opts.Keypair,
		chain:    opts.Chain,
		gossip:   opts.Gossip,
		clk:      opts.Clock,
		logger:   opts.Logger,
		metric:   opts.Metrics,
		duration: opts.Duration,
		tracker:  tracker.New(opts.Voters, opts.Observer),
		graph:    votegraph.New(opts.Base, weights, opts.Chain),
		prior:    opts.Prior,
		hasPrior: opts.HasPrior,
		state:    Start,
	}
	r.startTime = r.clk.Now()
	r.metric.IncRoundStarted()
	return r
}

// Number returns the round number.
func (r *Round) Number() vote.RoundNumber { return r.number }

// State returns the round's current state.
func (r *Round) State() State { return r.state }

// PrevoteGhost returns the current prevote-ghost, if any.
func (r *Round) PrevoteGhost() (vote.BlockInfo, bool) {
	if r.prevoteGhost == nil {
		return vote.BlockInfo{}, false
	}
	return *r.prevoteGhost, true
}

// Estimate returns the current estimate, if any.
func (r *Round) Estimate() (vote.BlockInfo, bool) {
	if r.estimate == nil {
		return vote.BlockInfo{}, false
	}
	return *r.estimate, true
}

// Finalized returns the block this round finalized, if any.
func (r *Round) Finalized() (vote.BlockInfo, bool) {
	if r.finalized == nil {
		return vote.BlockInfo{}, false
	}
	return *r.finalized, true
}

// Completable reports whether the round has reached completable: no
// matter how remaining precommit weight lands, finality cannot extend
// past the estimate.
func (r *Round) Completable() bool { return r.completable }

// tPrevote is this round's T_prevote deadline.
func (r *Round) tPrevote() time.Time { return r.startTime.Add(2 * r.duration) }

// tPrecommit is this round's T_precommit deadline.
func (r *Round) tPrecommit() time.Time { return r.startTime.Add(4 * r.duration) }

// isPrimary reports whether this node is round r's primary.
func (r *Round) isPrimary() bool {
	if r.keypair == nil {
		return false
	}
	primary, ok := r.voters.Primary(r.number)
	return ok && primary.ID == r.keypair.VoterID()
}

// Begin runs the round's primary-propose step: if this node is primary
// and the prior round's estimate exists and strictly exceeds the prior
// round's finalized height, it broadcasts an advisory primary-hint
// carrying the prior estimate.
func (r *Round) Begin(ctx context.Context) error {
	if !r.isPrimary() || !r.hasPrior {
		return nil
	}
	if r.prior.Estimate.IsZero() || r.prior.Estimate.Number <= r.prior.Finalized.Number {
		return nil
	}
	r.state = Proposed
	signed := r.keypair.SignPrimaryPropose(r.prior.Estimate, r.number, r.set)
	msg := vote.VoteMessage{Round: r.number, Set: r.set, PrimaryPropose: &signed}
	if err := r.gossip.Vote(ctx, msg); err != nil {
		r.logger.Warn("failed to broadcast primary hint", "round", uint64(r.number), "error", err)
	}
	return nil
}

// OnVoteMessage ingests an inbound vote message. Malformed or
// unverifiable messages are logged and dropped, never propagated as
// errors.
func (r *Round) OnVoteMessage(ctx context.Context, msg vote.VoteMessage) error {
	if msg.Round != r.number || msg.Set != r.set {
		return nil
	}
	switch {
	case msg.Prevote != nil:
		r.handlePrevote(*msg.Prevote)
	case msg.Precommit != nil:
		r.handlePrecommit(*msg.Precommit)
	case msg.PrimaryPropose != nil:
		r.handlePrimaryPropose(*msg.PrimaryPropose)
	}
	return r.Advance(ctx, r.clk.Now())
}

func (r *Round) handlePrevote(sv vote.SignedPrevote) {
	idx, ok := r.voters.IndexOf(sv.Voter)
	if !ok {
		r.logger.Warn("dropping prevote", "reason", "unknown voter", "voter", sv.Voter.String())
		return
	}
	if err := vote.VerifyPrevote(sv.Voter[:], sv); err != nil {
		r.logger.Warn("dropping prevote", "reason", "invalid signature", "voter", sv.Voter.String())
		return
	}
	if _, err := r.tracker.PushPrevote(sv); err != nil {
		r.logger.Warn("dropping prevote", "error", err)
		return
	}
	if err := r.graph.InsertPrevote(sv.Message.Target, idx); err != nil {
		r.logger.Warn("failed to insert prevote into graph", "error", err)
	}
}

func (r *Round) handlePrecommit(sv vote.SignedPrecommit) {
	idx, ok := r.voters.IndexOf(sv.Voter)
	if !ok {
		r.logger.Warn("dropping precommit", "reason", "unknown voter", "voter", sv.Voter.String())
		return
	}
	if err := vote.VerifyPrecommit(sv.Voter[:], sv); err != nil {
		r.logger.Warn("dropping precommit", "reason", "invalid signature", "voter", sv.Voter.String())
		return
	}
	// Insert into the graph before counting the weight, so a precommit
	// the graph cannot place is dropped rather than counted by the
	// tracker alone.
	if err := r.graph.InsertPrecommit(sv.Message.Target, idx); err != nil {
		r.logger.Warn("dropping precommit", "reason", "failed to insert into graph", "error", err)
		return
	}
	if _, err := r.tracker.PushPrecommit(sv); err != nil {
		r.logger.Warn("dropping precommit", "error", err)
	}
}

func (r *Round) handlePrimaryPropose(sv vote.SignedVote[vote.PrimaryPropose]) {
	primary, ok := r.voters.Primary(r.number)
	if !ok || primary.ID != sv.Voter {
		r.logger.Warn("dropping primary hint", "reason", "not from round primary")
		return
	}
	if err := verifyPrimaryPropose(sv); err != nil {
		r.logger.Warn("dropping primary hint", "reason", "invalid signature")
		return
	}
	target := sv.Message.Target
	r.primaryHint = &target
}

func verifyPrimaryPropose(sv vote.SignedVote[vote.PrimaryPropose]) error {
	payload := vote.SignedPayload(vote.KindPrimaryPropose, sv.Message.Target, sv.Round, sv.Set)
	if !ed25519.Verify(ed25519.PublicKey(sv.Voter[:]), payload, sv.Signature[:]) {
		return vote.ErrSignatureInvalid
	}
	return nil
}

// OnFin ingests a commit message. A Fin received in any state is
// accepted by feeding its precommits through the normal tracker/graph
// path and re-evaluating, rather than being buffered until
// Precommitted; this preserves liveness without weakening safety,
// since the tracker still deduplicates and the round update still only
// finalizes at threshold.
func (r *Round) OnFin(ctx context.Context, fin vote.Fin) error {
	if fin.Round != r.number || fin.Set != r.set {
		return nil
	}
	for _, sp := range fin.Precommits {
		r.handlePrecommit(sp)
	}
	r.finReceived = true
	return r.Advance(ctx, r.clk.Now())
}

// Advance runs the round's transitions for the current clock time,
// constructing prevotes/precommits and attempting finalization as
// thresholds are crossed.
func (r *Round) Advance(ctx context.Context, now time.Time) error {
	r.update()

	if r.state == Start || r.state == Proposed {
		if r.completable || !now.Before(r.tPrevote()) {
			// The state moves before broadcasting, so a gossip port that
			// delivers this node's own vote back into the round does not
			// re-run this step.
			r.state = Prevoted
			if err := r.prevote(ctx); err != nil {
				r.logger.Warn("prevote construction failed", "round", uint64(r.number), "error", err)
			}
		}
	}
	if r.state == Prevoted {
		if r.completable || !now.Before(r.tPrecommit()) {
			r.state = Precommitted
			if err := r.precommit(ctx); err != nil {
				r.logger.Warn("precommit construction failed", "round", uint64(r.number), "error", err)
			}
		}
	}
	if r.state == Precommitted {
		if err := r.tryFinalize(ctx); err != nil {
			return err
		}
	}
	return nil
}

// update recomputes prevote_ghost, estimate, finalized and completable
// from the tracker's current weight.
func (r *Round) update() {
	threshold := r.voters.Threshold()
	if r.tracker.PrevoteWeight() < threshold {
		return
	}
	ghost, ok := r.graph.FindGhost(nil, func(w votegraph.Weight) bool { return w.PrevoteSum >= threshold })
	if !ok {
		return
	}
	r.prevoteGhost = &ghost
	r.metric.SetPrevoteWeight(r.weightAt(ghost).PrevoteSum)

	precommitWeight := r.tracker.PrecommitWeight()
	if precommitWeight > threshold {
		if anc, ok := r.graph.FindAncestor(ghost, func(w votegraph.Weight) bool { return w.PrecommitSum > threshold }); ok {
			r.finalized = &anc
		}
	}
	if precommitWeight >= threshold {
		anc, ok := r.graph.FindAncestor(ghost, func(w votegraph.Weight) bool { return w.PrecommitSum >= threshold })
		// every precommit the tracker counts has also been inserted into
		// the graph, so the base's cumulative precommit weight equals
		// precommitWeight >= threshold and FindAncestor walking up from
		// ghost finds at worst the base; a false here means the graph's
		// cached weight has drifted from the tracker's, which would
		// otherwise leave r.estimate stale.
		invariant.Check(ok, "FindAncestor(ghost=%s) found no ancestor meeting threshold though precommitWeight=%d >= %d", ghost, precommitWeight, threshold)
		r.estimate = &anc
	} else {
		r.estimate = &ghost
		return
	}
	r.metric.SetPrecommitWeight(r.weightAt(*r.estimate).PrecommitSum)

	if r.estimate.Hash == ghost.Hash {
		r.setCompletable(true)
		return
	}
	_, stillOpen := r.graph.FindGhost(r.estimate, func(w votegraph.Weight) bool { return w.PrecommitSum >= threshold })
	r.setCompletable(!stillOpen)
}

func (r *Round) setCompletable(v bool) {
	if v && !r.completable {
		r.metric.IncRoundCompletable()
	}
	r.completable = v
}

func (r *Round) weightAt(b vote.BlockInfo) votegraph.Weight {
	w, _ := r.graph.WeightOf(b)
	return w
}

// prevote constructs and broadcasts this node's prevote, anchored at
// anchorBlock's candidate and extended to the best chain containing it.
func (r *Round) prevote(ctx context.Context) error {
	if r.keypair == nil {
		return nil
	}
	anchor := r.anchorBlock()
	target, ok := r.chain.BestChainContaining(anchor)
	if !ok {
		return fmt.Errorf("%w: prevote anchor %s pruned", chainadapter.ErrBlockPruned, anchor)
	}
	signed := r.keypair.SignPrevote(target, r.number, r.set)
	idx, _ := r.voters.IndexOf(signed.Voter)
	if _, err := r.tracker.PushPrevote(signed); err != nil {
		return err
	}
	if err := r.graph.InsertPrevote(target, idx); err != nil {
		return err
	}
	msg := vote.VoteMessage{Round: r.number, Set: r.set, Prevote: &signed}
	return r.gossip.Vote(ctx, msg)
}

// anchorBlock picks the block this round's prevote should extend from:
// the graph base if there's no prior round, the prior round's estimate
// if there's no primary hint (or the hint doesn't check out), or the
// primary's hint itself when it lies on the ancestry between the prior
// estimate and the prior prevote-ghost.
func (r *Round) anchorBlock() vote.BlockInfo {
	if !r.hasPrior {
		return r.graph.Base()
	}
	lastEst := r.prior.Estimate
	lastPvg := r.prior.PrevoteGhost

	if r.primaryHint == nil {
		return lastEst
	}
	p := *r.primaryHint
	switch {
	case p.Hash == lastPvg.Hash:
		return p
	case p.Number >= lastPvg.Number:
		return lastEst
	case r.chain.IsEqualOrDescendantOf(lastEst, p) && r.chain.IsEqualOrDescendantOf(p, lastPvg):
		// p lies on the ancestry between lastEst and lastPvg; this
		// two-sided descendant check avoids an ancestry-at-offset
		// lookup that would be off-by-one prone.
		return p
	default:
		return lastEst
	}
}

// precommit constructs and broadcasts this node's precommit, only when
// the current prevote_ghost is safe to build on top of the prior
// round's estimate.
func (r *Round) precommit(ctx context.Context) error {
	if r.keypair == nil {
		return nil
	}
	if r.hasPrior {
		if r.prevoteGhost == nil {
			return nil
		}
		safe := r.prevoteGhost.Hash == r.prior.Estimate.Hash ||
			r.chain.IsEqualOrDescendantOf(r.prior.Estimate, *r.prevoteGhost)
		if !safe {
			return nil
		}
	}
	target := r.graph.Base()
	if r.prevoteGhost != nil {
		target = *r.prevoteGhost
	}
	signed := r.keypair.SignPrecommit(target, r.number, r.set)
	idx, _ := r.voters.IndexOf(signed.Voter)
	if _, err := r.tracker.PushPrecommit(signed); err != nil {
		return err
	}
	if err := r.graph.InsertPrecommit(target, idx); err != nil {
		return err
	}
	msg := vote.VoteMessage{Round: r.number, Set: r.set, Precommit: &signed}
	return r.gossip.Vote(ctx, msg)
}

// tryFinalize finalizes at most once, broadcasting a Fin unless an
// equivalent one was already received this round.
func (r *Round) tryFinalize(ctx context.Context) error {
	if r.finalizedLocally || r.estimate == nil {
		return nil
	}
	lastFinalized := r.chain.LastFinalized()
	if r.estimate.Number <= lastFinalized.Number {
		return nil
	}
	threshold := r.voters.Threshold()
	precommits := r.tracker.Justification(*r.estimate, threshold, func(candidate vote.BlockInfo) bool {
		return r.chain.IsEqualOrDescendantOf(*r.estimate, candidate)
	})
	ancestries := r.buildAncestries(*r.estimate, precommits)
	justification := vote.Justification{
		Round:          r.number,
		Set:            r.set,
		Target:         *r.estimate,
		Precommits:     precommits,
		VoteAncestries: ancestries,
	}

	if err := r.chain.Finalize(r.estimate.Hash, justification); err != nil {
		// FinalizeRejected is escalated, never silently swallowed.
		return fmt.Errorf("%w: %v", chainadapter.ErrFinalizeRejected, err)
	}
	r.finalizedLocally = true
	r.finalized = r.estimate
	r.metric.SetFinalizedHeight(r.estimate.Number)
	r.metric.ObserveRoundDuration(r.clk.Now().Sub(r.startTime).Seconds())

	if r.finReceived {
		return nil
	}
	fin := vote.Fin{Round: r.number, Set: r.set, Vote: *r.estimate, Precommits: precommits, VoteAncestries: ancestries}
	if err := r.gossip.Fin(ctx, fin); err != nil {
		r.logger.Warn("failed to broadcast fin", "round", uint64(r.number), "error", err)
	}
	return nil
}

// buildAncestries collects the header chain from each precommit target
// down to target, satisfying the justification's ancestry-cover
// requirement.
func (r *Round) buildAncestries(target vote.BlockInfo, precommits []vote.SignedPrecommit) []vote.BlockHeader {
	seen := make(map[vote.Hash]bool)
	var out []vote.BlockHeader
	for _, sp := range precommits {
		cur := sp.Message.Target.Hash
		for cur != target.Hash {
			if seen[cur] {
				break
			}
			h, ok := r.chain.Header(cur)
			if !ok {
				break
			}
			seen[cur] = true
			out = append(out, h)
			cur = h.ParentHash
		}
	}
	return out
}
