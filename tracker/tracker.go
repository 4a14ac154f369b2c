// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tracker implements per-voter deduplication and equivocation
// detection for a single GRANDPA round, and aggregates prevote/precommit
// weight.
package tracker

import (
	"errors"

	"github.com/luxfi/grandpa/vote"
)

// ErrUnknownVoter is returned when a vote is pushed by a voter absent
// from the round's VoterSet.
var ErrUnknownVoter = errors.New("grandpa/tracker: unknown voter")

// PushResult classifies the outcome of pushing a vote.
type PushResult uint8

const (
	// Success means this is the voter's first vote of this kind.
	Success PushResult = iota
	// Duplicate means the exact same vote was already recorded.
	Duplicate
	// Equivocated means the voter already cast a distinct vote of this
	// kind; both are retained for slashing but only the first counted.
	Equivocated
)

func (r PushResult) String() string {
	switch r {
	case Success:
		return "success"
	case Duplicate:
		return "duplicate"
	case Equivocated:
		return "equivocated"
	default:
		return "unknown"
	}
}

// slot holds what one voter has cast of a single vote kind.
type slot[M vote.Message] struct {
	set    bool
	first  vote.SignedVote[M]
	second vote.SignedVote[M]
	equiv  bool
}

// push records target into the slot, classifying the result. It never
// overwrites first once set; a second distinct target only sets
// equiv+second once (repeated equivocating votes after the first are
// still reported Equivocated, but `second` retains the original second
// vote for the slashing record).
func (s *slot[M]) push(sv vote.SignedVote[M], same func(a, b M) bool) PushResult {
	if !s.set {
		s.set = true
		s.first = sv
		return Success
	}
	if same(s.first.Message, sv.Message) {
		return Duplicate
	}
	if !s.equiv {
		s.equiv = true
		s.second = sv
	}
	return Equivocated
}

func samePrevote(a, b vote.Prevote) bool     { return a.Target == b.Target }
func samePrecommit(a, b vote.Precommit) bool { return a.Target == b.Target }

// EquivocationObserver is notified whenever a voter is caught signing two
// distinct votes of the same kind in a round, for slashing reporting.
type EquivocationObserver interface {
	OnEquivocation(kind vote.Kind, voter vote.VoterID, first, second vote.BlockInfo)
}

// NoopObserver implements EquivocationObserver as a no-op.
type NoopObserver struct{}

// OnEquivocation does nothing.
func (NoopObserver) OnEquivocation(vote.Kind, vote.VoterID, vote.BlockInfo, vote.BlockInfo) {}

// Tracker deduplicates votes per voter and aggregates weight. It does not
// verify signatures: PushPrevote and PushPrecommit record whatever they
// are given, and the round verifies each vote before pushing it.
type Tracker struct {
	voters   *vote.VoterSet
	observer EquivocationObserver

	prevotes   map[vote.VoterID]*slot[vote.Prevote]
	precommits map[vote.VoterID]*slot[vote.Precommit]

	prevoteWeight   uint64
	precommitWeight uint64
}

// New creates a Tracker bound to a voter set. A nil observer is replaced
// with NoopObserver.
func New(voters *vote.VoterSet, observer EquivocationObserver) *Tracker {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &Tracker{
		voters:     voters,
		observer:   observer,
		prevotes:   make(map[vote.VoterID]*slot[vote.Prevote]),
		precommits: make(map[vote.VoterID]*slot[vote.Precommit]),
	}
}

// PushPrevote locates the voter's slot and records the vote. Signature
// verification is the caller's responsibility (the round verifies
// before pushing); PushPrevote itself only checks the voter is known
// and accounts weight.
func (t *Tracker) PushPrevote(sv vote.SignedPrevote) (PushResult, error) {
	if _, ok := t.voters.IndexOf(sv.Voter); !ok {
		return 0, ErrUnknownVoter
	}
	s, ok := t.prevotes[sv.Voter]
	if !ok {
		s = &slot[vote.Prevote]{}
		t.prevotes[sv.Voter] = s
	}
	result := s.push(sv, samePrevote)
	if result == Success {
		t.prevoteWeight += t.voters.Weight(sv.Voter)
	}
	if result == Equivocated && s.second == sv {
		t.observer.OnEquivocation(vote.KindPrevote, sv.Voter, s.first.Message.Target, sv.Message.Target)
	}
	return result, nil
}

// PushPrecommit is PushPrevote's precommit counterpart.
func (t *Tracker) PushPrecommit(sv vote.SignedPrecommit) (PushResult, error) {
	if _, ok := t.voters.IndexOf(sv.Voter); !ok {
		return 0, ErrUnknownVoter
	}
	s, ok := t.precommits[sv.Voter]
	if !ok {
		s = &slot[vote.Precommit]{}
		t.precommits[sv.Voter] = s
	}
	result := s.push(sv, samePrecommit)
	if result == Success {
		t.precommitWeight += t.voters.Weight(sv.Voter)
	}
	if result == Equivocated && s.equiv && s.second == sv {
		t.observer.OnEquivocation(vote.KindPrecommit, sv.Voter, s.first.Message.Target, sv.Message.Target)
	}
	return result, nil
}

// PrevoteWeight returns the sum of weights of distinct voters who have
// cast at least one prevote.
func (t *Tracker) PrevoteWeight() uint64 { return t.prevoteWeight }

// PrecommitWeight is PrevoteWeight's precommit counterpart.
func (t *Tracker) PrecommitWeight() uint64 { return t.precommitWeight }

// PrevoteOf returns the first recorded prevote for a voter, if any.
func (t *Tracker) PrevoteOf(id vote.VoterID) (vote.SignedPrevote, bool) {
	s, ok := t.prevotes[id]
	if !ok || !s.set {
		return vote.SignedPrevote{}, false
	}
	return s.first, true
}

// Justification returns the minimal set of precommits on descendants of
// target (inclusive) whose total weight is >= threshold; "minimal" means
// it stops accumulating as soon as the threshold is met, so the returned
// set has size <= |VoterSet|.
//
// isDescendant reports whether a candidate precommit's target is target
// or a descendant of it; the caller supplies this since only the chain
// adapter / vote graph knows ancestry.
func (t *Tracker) Justification(target vote.BlockInfo, threshold uint64, isDescendant func(candidate vote.BlockInfo) bool) []vote.SignedPrecommit {
	var out []vote.SignedPrecommit
	var acc uint64
	for id, s := range t.precommits {
		if !s.set || !isDescendant(s.first.Message.Target) {
			continue
		}
		out = append(out, s.first)
		acc += t.voters.Weight(id)
		if acc >= threshold {
			break
		}
	}
	return out
}
