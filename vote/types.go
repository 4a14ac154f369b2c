// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vote defines the domain types exchanged by the GRANDPA voting
// core: block references, the two vote kinds, their signed envelopes, and
// the voter set they are cast against.
package vote

import (
	"encoding/hex"
	"fmt"
)

// Hash is a 32-byte block hash.
type Hash [32]byte

// String renders the hash as a hex string.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// BlockInfo pairs a block hash with its height. Numbers are monotonic
// along any ancestry: a child's Number is strictly greater than its
// parent's.
type BlockInfo struct {
	Hash   Hash
	Number uint64
}

// String renders the block as "<hash8>@<number>".
func (b BlockInfo) String() string {
	s := b.Hash.String()
	if len(s) > 8 {
		s = s[:8]
	}
	return fmt.Sprintf("%s@%d", s, b.Number)
}

// IsZero reports whether b is the zero value (no block).
func (b BlockInfo) IsZero() bool {
	return b.Hash.IsZero() && b.Number == 0
}

// RoundNumber identifies a GRANDPA voting round.
type RoundNumber uint64

// SetID identifies a voter-set epoch. It MUST change whenever VoterSet
// membership changes.
type SetID uint64

// VoterID is the stable identity of a voter: an Ed25519 public key.
type VoterID [32]byte

// String renders the voter id as a hex string.
func (v VoterID) String() string {
	return hex.EncodeToString(v[:])
}

// Kind distinguishes prevote, precommit and primary-propose messages. The
// numeric values are the stage tags used in the signed payload (§4.1).
type Kind uint8

const (
	// KindPrevote is stage tag 0.
	KindPrevote Kind = 0
	// KindPrecommit is stage tag 1.
	KindPrecommit Kind = 1
	// KindPrimaryPropose is stage tag 2.
	KindPrimaryPropose Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindPrevote:
		return "prevote"
	case KindPrecommit:
		return "precommit"
	case KindPrimaryPropose:
		return "primary-propose"
	default:
		return "unknown"
	}
}

// Prevote is a first-stage vote for a block.
type Prevote struct {
	Target BlockInfo
}

// Precommit is a second-stage vote for a block.
type Precommit struct {
	Target BlockInfo
}

// PrimaryPropose is the advisory hint the round primary broadcasts.
type PrimaryPropose struct {
	Target BlockInfo
}

// Message is implemented by Prevote, Precommit and PrimaryPropose; it
// exposes the stage tag and the target block for canonical encoding.
type Message interface {
	kind() Kind
	block() BlockInfo
}

func (p Prevote) kind() Kind        { return KindPrevote }
func (p Prevote) block() BlockInfo  { return p.Target }
func (p Precommit) kind() Kind      { return KindPrecommit }
func (p Precommit) block() BlockInfo { return p.Target }
func (p PrimaryPropose) kind() Kind { return KindPrimaryPropose }
func (p PrimaryPropose) block() BlockInfo { return p.Target }

// SignedVote is a vote of kind M signed by its caster.
type SignedVote[M Message] struct {
	Message   M
	Voter     VoterID
	Round     RoundNumber
	Set       SetID
	Signature [64]byte
}

// SignedPrevote is a signed first-stage vote.
type SignedPrevote = SignedVote[Prevote]

// SignedPrecommit is a signed second-stage vote.
type SignedPrecommit = SignedVote[Precommit]

// VoteMessage is the gossip envelope for a single signed vote. Exactly
// one of Prevote, Precommit, PrimaryPropose should be set.
type VoteMessage struct {
	Round          RoundNumber
	Set            SetID
	Prevote        *SignedPrevote
	Precommit      *SignedPrecommit
	PrimaryPropose *SignedVote[PrimaryPropose]
}

// Voter is one weighted entry of a VoterSet.
type Voter struct {
	ID     VoterID
	Weight uint64
}

// VoterSet is the ordered, fixed set of voters for a set-id epoch. Voters
// have a stable index in [0, len(VoterSet)).
type VoterSet struct {
	voters []Voter
	index  map[VoterID]int
	total  uint64
}

// NewVoterSet builds a VoterSet from an ordered voter list. Duplicate
// voter IDs are rejected by returning a set missing the duplicate; callers
// are expected to build voter sets from trusted configuration.
func NewVoterSet(voters []Voter) *VoterSet {
	vs := &VoterSet{
		voters: make([]Voter, 0, len(voters)),
		index:  make(map[VoterID]int, len(voters)),
	}
	for _, v := range voters {
		if _, dup := vs.index[v.ID]; dup {
			continue
		}
		vs.index[v.ID] = len(vs.voters)
		vs.voters = append(vs.voters, v)
		vs.total += v.Weight
	}
	return vs
}

// Len returns the number of voters.
func (vs *VoterSet) Len() int { return len(vs.voters) }

// TotalWeight returns W, the sum of all voter weights.
func (vs *VoterSet) TotalWeight() uint64 { return vs.total }

// IndexOf returns the stable index of a voter, or (-1, false) if unknown.
func (vs *VoterSet) IndexOf(id VoterID) (int, bool) {
	i, ok := vs.index[id]
	if !ok {
		return -1, false
	}
	return i, true
}

// At returns the voter at a stable index.
func (vs *VoterSet) At(i int) (Voter, bool) {
	if i < 0 || i >= len(vs.voters) {
		return Voter{}, false
	}
	return vs.voters[i], true
}

// Weight returns the weight of a known voter, or 0 if unknown.
func (vs *VoterSet) Weight(id VoterID) uint64 {
	i, ok := vs.index[id]
	if !ok {
		return 0
	}
	return vs.voters[i].Weight
}

// Primary returns the primary voter for round r: voterSet[r mod |V|].
func (vs *VoterSet) Primary(r RoundNumber) (Voter, bool) {
	if len(vs.voters) == 0 {
		return Voter{}, false
	}
	return vs.voters[uint64(r)%uint64(len(vs.voters))], true
}

// FaultyTolerance returns floor((W-1)/3).
func (vs *VoterSet) FaultyTolerance() uint64 {
	if vs.total == 0 {
		return 0
	}
	return (vs.total - 1) / 3
}

// Threshold returns the supermajority threshold t = floor(2W/3) + 1.
func (vs *VoterSet) Threshold() uint64 {
	return Threshold(vs.total)
}
