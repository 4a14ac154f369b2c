package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/grandpa/vote"
)

func fourVoters() (*vote.VoterSet, []vote.VoterID) {
	ids := make([]vote.VoterID, 4)
	voters := make([]vote.Voter, 4)
	for i := range ids {
		ids[i][0] = byte(i + 1)
		voters[i] = vote.Voter{ID: ids[i], Weight: 1}
	}
	return vote.NewVoterSet(voters), ids
}

func blockAt(n uint64, tag byte) vote.BlockInfo {
	b := vote.BlockInfo{Number: n}
	b.Hash[0] = tag
	return b
}

type recordingObserver struct {
	calls int
	kind  vote.Kind
	voter vote.VoterID
}

func (r *recordingObserver) OnEquivocation(kind vote.Kind, voter vote.VoterID, _, _ vote.BlockInfo) {
	r.calls++
	r.kind = kind
	r.voter = voter
}

func TestPushTwiceSameVoteIsDuplicate(t *testing.T) {
	vs, ids := fourVoters()
	tr := New(vs, nil)

	sv := vote.SignedVote[vote.Prevote]{Message: vote.Prevote{Target: blockAt(5, 1)}, Voter: ids[0]}
	r1, err := tr.PushPrevote(sv)
	require.NoError(t, err)
	require.Equal(t, Success, r1)

	r2, err := tr.PushPrevote(sv)
	require.NoError(t, err)
	require.Equal(t, Duplicate, r2)
	require.Equal(t, uint64(1), tr.PrevoteWeight())
}

func TestPushDistinctVotesIsEquivocated(t *testing.T) {
	vs, ids := fourVoters()
	obs := &recordingObserver{}
	tr := New(vs, obs)

	v1 := vote.SignedVote[vote.Prevote]{Message: vote.Prevote{Target: blockAt(5, 1)}, Voter: ids[0]}
	v2 := vote.SignedVote[vote.Prevote]{Message: vote.Prevote{Target: blockAt(5, 2)}, Voter: ids[0]}

	r1, err := tr.PushPrevote(v1)
	require.NoError(t, err)
	require.Equal(t, Success, r1)

	r2, err := tr.PushPrevote(v2)
	require.NoError(t, err)
	require.Equal(t, Equivocated, r2)

	// weight never double-counts equivocators
	require.Equal(t, uint64(1), tr.PrevoteWeight())
	require.Equal(t, 1, obs.calls)
	require.Equal(t, vote.KindPrevote, obs.kind)
	require.Equal(t, ids[0], obs.voter)
}

func TestPushUnknownVoterErrors(t *testing.T) {
	vs, _ := fourVoters()
	tr := New(vs, nil)

	var stranger vote.VoterID
	stranger[0] = 0xFF
	_, err := tr.PushPrevote(vote.SignedVote[vote.Prevote]{Message: vote.Prevote{Target: blockAt(1, 1)}, Voter: stranger})
	require.ErrorIs(t, err, ErrUnknownVoter)
}

func TestWeightAccumulatesAcrossDistinctVoters(t *testing.T) {
	vs, ids := fourVoters()
	tr := New(vs, nil)

	for i, id := range ids[:3] {
		_, err := tr.PushPrecommit(vote.SignedVote[vote.Precommit]{
			Message: vote.Precommit{Target: blockAt(5, byte(i))},
			Voter:   id,
		})
		require.NoError(t, err)
	}
	require.Equal(t, uint64(3), tr.PrecommitWeight())
}

func TestJustificationStopsAtThreshold(t *testing.T) {
	vs, ids := fourVoters()
	tr := New(vs, nil)

	target := blockAt(5, 9)
	for _, id := range ids {
		_, err := tr.PushPrecommit(vote.SignedVote[vote.Precommit]{Message: vote.Precommit{Target: target}, Voter: id})
		require.NoError(t, err)
	}

	j := tr.Justification(target, 3, func(vote.BlockInfo) bool { return true })
	require.LessOrEqual(t, len(j), vs.Len())
	require.GreaterOrEqual(t, uint64(len(j)), uint64(3))
}

func TestJustificationExcludesNonDescendants(t *testing.T) {
	vs, ids := fourVoters()
	tr := New(vs, nil)

	target := blockAt(5, 9)
	other := blockAt(5, 10)
	_, err := tr.PushPrecommit(vote.SignedVote[vote.Precommit]{Message: vote.Precommit{Target: target}, Voter: ids[0]})
	require.NoError(t, err)
	_, err = tr.PushPrecommit(vote.SignedVote[vote.Precommit]{Message: vote.Precommit{Target: other}, Voter: ids[1]})
	require.NoError(t, err)

	j := tr.Justification(target, 1, func(b vote.BlockInfo) bool { return b == target })
	require.Len(t, j, 1)
	require.Equal(t, target, j[0].Message.Target)
}
