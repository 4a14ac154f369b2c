// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package justification implements the wire encoding and verification
// of a GRANDPA justification: the commit plus the header ancestry cover
// that proves every precommit's target descends from the committed
// block.
package justification

import (
	"errors"
	"fmt"

	"github.com/luxfi/grandpa/vote"
)

// ErrMissingAncestryCover is returned when a justification's
// votes_ancestries do not connect a precommit's target back to the
// commit target.
var ErrMissingAncestryCover = errors.New("grandpa/justification: missing ancestry cover")

// ErrInsufficientWeight is returned when the verified precommit weight
// falls short of the voter set's threshold.
var ErrInsufficientWeight = errors.New("grandpa/justification: insufficient precommit weight")

// ErrUnknownVoter is returned when a precommit is signed by a voter
// absent from the supplied voter set.
var ErrUnknownVoter = errors.New("grandpa/justification: unknown voter")

// Encode serializes j using the little-endian compact-integer,
// length-prefixed scheme shared with the rest of the wire format, so the
// bytes match peers.
func Encode(j vote.Justification) []byte {
	buf := make([]byte, 0, 128)
	buf = vote.EncodeCompactUint(buf, uint64(j.Round))
	buf = vote.EncodeCompactUint(buf, uint64(j.Set))
	buf = vote.EncodeBlockInfo(buf, j.Target)

	buf = vote.EncodeCompactUint(buf, uint64(len(j.Precommits)))
	for _, sp := range j.Precommits {
		buf = vote.EncodeBlockInfo(buf, sp.Message.Target)
		buf = append(buf, sp.Voter[:]...)
		buf = append(buf, sp.Signature[:]...)
	}

	buf = vote.EncodeCompactUint(buf, uint64(len(j.VoteAncestries)))
	for _, h := range j.VoteAncestries {
		buf = append(buf, h.Hash[:]...)
		buf = append(buf, h.ParentHash[:]...)
		buf = vote.EncodeCompactUint(buf, h.Number)
	}
	return buf
}

// Decode is Encode's inverse.
func Decode(b []byte) (vote.Justification, error) {
	var j vote.Justification
	round, n, err := vote.DecodeCompactUint(b)
	if err != nil {
		return j, err
	}
	b = b[n:]
	j.Round = vote.RoundNumber(round)

	set, n, err := vote.DecodeCompactUint(b)
	if err != nil {
		return j, err
	}
	b = b[n:]
	j.Set = vote.SetID(set)

	target, n, err := vote.DecodeBlockInfo(b)
	if err != nil {
		return j, err
	}
	b = b[n:]
	j.Target = target

	count, n, err := vote.DecodeCompactUint(b)
	if err != nil {
		return j, err
	}
	b = b[n:]
	j.Precommits = make([]vote.SignedPrecommit, 0, count)
	for i := uint64(0); i < count; i++ {
		tgt, n, err := vote.DecodeBlockInfo(b)
		if err != nil {
			return j, err
		}
		b = b[n:]
		if len(b) < len(vote.VoterID{})+64 {
			return j, vote.ErrDecodeFailed
		}
		var sp vote.SignedPrecommit
		sp.Message.Target = tgt
		copy(sp.Voter[:], b[:32])
		b = b[32:]
		copy(sp.Signature[:], b[:64])
		b = b[64:]
		j.Precommits = append(j.Precommits, sp)
	}

	acount, n, err := vote.DecodeCompactUint(b)
	if err != nil {
		return j, err
	}
	b = b[n:]
	j.VoteAncestries = make([]vote.BlockHeader, 0, acount)
	for i := uint64(0); i < acount; i++ {
		if len(b) < 64 {
			return j, vote.ErrDecodeFailed
		}
		var h vote.BlockHeader
		copy(h.Hash[:], b[:32])
		b = b[32:]
		copy(h.ParentHash[:], b[:32])
		b = b[32:]
		num, n, err := vote.DecodeCompactUint(b)
		if err != nil {
			return j, err
		}
		b = b[n:]
		h.Number = num
		j.VoteAncestries = append(j.VoteAncestries, h)
	}
	return j, nil
}

// Verify checks j against voters: every precommit is by a known voter
// and carries a valid signature, every precommit's target is covered by
// the ancestry headers down to j.Target, and the sum of precommit
// weight (deduplicated by voter) meets the voter set's threshold.
func Verify(j vote.Justification, voters *vote.VoterSet) error {
	byHash := make(map[vote.Hash]vote.BlockHeader, len(j.VoteAncestries))
	for _, h := range j.VoteAncestries {
		byHash[h.Hash] = h
	}

	seen := make(map[vote.VoterID]bool, len(j.Precommits))
	var weight uint64
	for _, sp := range j.Precommits {
		if _, ok := voters.IndexOf(sp.Voter); !ok {
			return fmt.Errorf("%w: %x", ErrUnknownVoter, sp.Voter)
		}
		if err := verifyPrecommitSignature(sp, j.Round, j.Set); err != nil {
			return err
		}
		if !coveredBy(sp.Message.Target, j.Target, byHash) {
			return fmt.Errorf("%w: precommit for %x", ErrMissingAncestryCover, sp.Message.Target.Hash)
		}
		if seen[sp.Voter] {
			continue
		}
		seen[sp.Voter] = true
		weight += voters.Weight(sp.Voter)
	}

	if weight < voters.Threshold() {
		return fmt.Errorf("%w: have %d need %d", ErrInsufficientWeight, weight, voters.Threshold())
	}
	return nil
}

// verifyPrecommitSignature re-derives the signed payload and checks it
// against the embedded voter ID treated as an ed25519 public key,
// mirroring vote.VerifyPrecommit without requiring a separate public
// key lookup (VoterID and the ed25519 public key share the same
// 32-byte encoding).
func verifyPrecommitSignature(sp vote.SignedPrecommit, round vote.RoundNumber, set vote.SetID) error {
	return vote.VerifyPrecommit(sp.Voter[:], vote.SignedVote[vote.Precommit]{
		Message:   sp.Message,
		Round:     round,
		Set:       set,
		Voter:     sp.Voter,
		Signature: sp.Signature,
	})
}

// coveredBy reports whether candidate is target itself or has an
// ancestry chain through headers reaching target.
func coveredBy(candidate, target vote.BlockInfo, headers map[vote.Hash]vote.BlockHeader) bool {
	if candidate.Hash == target.Hash {
		return true
	}
	cur := candidate.Hash
	for {
		h, ok := headers[cur]
		if !ok {
			return false
		}
		if h.ParentHash == target.Hash {
			return true
		}
		if h.ParentHash == cur {
			return false
		}
		cur = h.ParentHash
	}
}
