package round

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/luxfi/grandpa/chainadapter"
	"github.com/luxfi/grandpa/chainadapter/chainadaptermock"
	"github.com/luxfi/grandpa/gossip"
	"github.com/luxfi/grandpa/internal/clock"
	"github.com/luxfi/grandpa/tracker"
	"github.com/luxfi/grandpa/vote"
)

func blk(n uint64, tag byte) vote.BlockInfo {
	b := vote.BlockInfo{Number: n}
	b.Hash[0] = tag
	return b
}

func genKeypairs(t *testing.T, n int) ([]vote.Keypair, *vote.VoterSet) {
	t.Helper()
	kps := make([]vote.Keypair, n)
	voters := make([]vote.Voter, n)
	for i := range kps {
		pub, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		kps[i] = vote.Keypair{Public: pub, Private: priv}
		voters[i] = vote.Voter{ID: kps[i].VoterID(), Weight: 1}
	}
	return kps, vote.NewVoterSet(voters)
}

type recordingPort struct {
	votes []vote.VoteMessage
	fins  []vote.Fin
}

func (p *recordingPort) Vote(_ context.Context, msg vote.VoteMessage) error {
	p.votes = append(p.votes, msg)
	return nil
}

func (p *recordingPort) Fin(_ context.Context, fin vote.Fin) error {
	p.fins = append(p.fins, fin)
	return nil
}

var _ gossip.Port = (*recordingPort)(nil)

// TestTrivialFinalization is spec scenario S1: |V|=4, weights all 1,
// threshold=3. All four voters prevote and then precommit the same
// block; expect finalization within one round with >=3 precommits.
func TestTrivialFinalization(t *testing.T) {
	kps, voters := genKeypairs(t, 4)
	genesis := blk(0, 0)
	target := blk(5, 9)

	chain := chainadapter.NewInMemory(genesis)
	require.NoError(t, chain.Import(target, genesis.Hash))

	mock := clock.NewMock(time.Unix(0, 0))
	port := &recordingPort{}
	r := New(Options{
		Number: 1, Set: 0, Voters: voters, Base: genesis,
		Chain: chain, Gossip: port, Clock: mock, Duration: time.Second,
	})
	ctx := context.Background()

	for _, kp := range kps {
		sv := kp.SignPrevote(target, 1, 0)
		require.NoError(t, r.OnVoteMessage(ctx, vote.VoteMessage{Round: 1, Set: 0, Prevote: &sv}))
	}
	require.Equal(t, Start, r.State(), "round must not advance to Prevoted before T_prevote without completability")

	mock.Advance(2 * time.Second)
	require.NoError(t, r.Advance(ctx, mock.Now()))
	require.Equal(t, Prevoted, r.State())

	for i, kp := range kps {
		sv := kp.SignPrecommit(target, 1, 0)
		require.NoError(t, r.OnVoteMessage(ctx, vote.VoteMessage{Round: 1, Set: 0, Precommit: &sv}))
		if i < 3 {
			continue
		}
	}

	require.Equal(t, Precommitted, r.State())
	fin, ok := r.Finalized()
	require.True(t, ok)
	require.Equal(t, target, fin)
	require.Len(t, port.fins, 1)
	require.GreaterOrEqual(t, len(port.fins[0].Precommits), 3)
	require.LessOrEqual(t, len(port.fins[0].Precommits), 4)
}

// TestEquivocatorDoesNotBreakRound is spec scenario S3.
func TestEquivocatorDoesNotBreakRound(t *testing.T) {
	kps, voters := genKeypairs(t, 4)
	genesis := blk(0, 0)
	target := blk(5, 9)
	other := blk(5, 10)

	chain := chainadapter.NewInMemory(genesis)
	require.NoError(t, chain.Import(target, genesis.Hash))
	require.NoError(t, chain.Import(other, genesis.Hash))

	var observed int
	obs := observerFunc(func(vote.Kind, vote.VoterID, vote.BlockInfo, vote.BlockInfo) { observed++ })

	mock := clock.NewMock(time.Unix(0, 0))
	port := &recordingPort{}
	r := New(Options{
		Number: 1, Set: 0, Voters: voters, Base: genesis,
		Chain: chain, Gossip: port, Clock: mock, Duration: time.Second, Observer: obs,
	})
	ctx := context.Background()

	v1 := kps[0].SignPrevote(target, 1, 0)
	v2 := kps[0].SignPrevote(other, 1, 0)
	require.NoError(t, r.OnVoteMessage(ctx, vote.VoteMessage{Round: 1, Set: 0, Prevote: &v1}))
	require.NoError(t, r.OnVoteMessage(ctx, vote.VoteMessage{Round: 1, Set: 0, Prevote: &v2}))
	require.Equal(t, 1, observed, "equivocation must surface to the observer")

	require.Equal(t, uint64(1), r.tracker.PrevoteWeight(), "equivocator's weight must only count once")

	for _, kp := range kps[1:] {
		sv := kp.SignPrevote(target, 1, 0)
		require.NoError(t, r.OnVoteMessage(ctx, vote.VoteMessage{Round: 1, Set: 0, Prevote: &sv}))
	}
	require.Equal(t, uint64(4), r.tracker.PrevoteWeight(), "the three honest votes plus the equivocator's single counted vote")

	ghost, ok := r.PrevoteGhost()
	require.True(t, ok)
	require.Equal(t, target, ghost, "target has 3 honest votes plus the equivocator, clearing threshold 3")
}

type observerFunc func(kind vote.Kind, voter vote.VoterID, first, second vote.BlockInfo)

func (f observerFunc) OnEquivocation(kind vote.Kind, voter vote.VoterID, first, second vote.BlockInfo) {
	f(kind, voter, first, second)
}

var _ tracker.EquivocationObserver = observerFunc(nil)

// TestPrimaryHintAcceptedOnAncestry is spec scenario S4: the primary
// hint equals the prior estimate, which trivially lies on the ancestry
// between itself and the prior prevote-ghost, so the anchor is the
// prior estimate.
func TestPrimaryHintAcceptedOnAncestry(t *testing.T) {
	_, voters := genKeypairs(t, 4)
	genesis := blk(0, 0)
	est := blk(7, 1)
	pvg := blk(9, 2)

	chain := chainadapter.NewInMemory(genesis)
	require.NoError(t, chain.Import(est, genesis.Hash))
	require.NoError(t, chain.Import(pvg, est.Hash))

	r := New(Options{
		Number: 2, Set: 0, Voters: voters, Base: genesis, Chain: chain,
		Gossip: &recordingPort{}, Duration: time.Second,
		Prior: PriorState{Estimate: est, Finalized: blk(6, 0), PrevoteGhost: pvg}, HasPrior: true,
	})
	r.primaryHint = &est

	require.Equal(t, est, r.anchorBlock())
}

// TestPrimaryHintIgnoredOffAncestry is spec scenario S5: the hint names
// a block on a different fork than the ancestry between the prior
// estimate and prior prevote-ghost, so it is ignored and the anchor
// falls back to the prior estimate.
func TestPrimaryHintIgnoredOffAncestry(t *testing.T) {
	_, voters := genKeypairs(t, 4)
	genesis := blk(0, 0)
	est := blk(7, 1)
	pvg := blk(9, 2)
	offFork := blk(8, 3)

	chain := chainadapter.NewInMemory(genesis)
	require.NoError(t, chain.Import(est, genesis.Hash))
	require.NoError(t, chain.Import(pvg, est.Hash))
	require.NoError(t, chain.Import(offFork, genesis.Hash))

	r := New(Options{
		Number: 2, Set: 0, Voters: voters, Base: genesis, Chain: chain,
		Gossip: &recordingPort{}, Duration: time.Second,
		Prior: PriorState{Estimate: est, Finalized: blk(6, 0), PrevoteGhost: pvg}, HasPrior: true,
	})
	r.primaryHint = &offFork

	require.Equal(t, est, r.anchorBlock(), "off-ancestry hint must be ignored in favor of the prior estimate")
}

// TestTimerDrivenPrevote is spec scenario S6: with no votes received,
// the round prevotes on best_chain_containing(last_estimate) once
// T_prevote elapses and transitions to Prevoted.
func TestTimerDrivenPrevote(t *testing.T) {
	kps, voters := genKeypairs(t, 4)
	genesis := blk(0, 0)
	est := blk(7, 1)
	leaf := blk(9, 2)

	chain := chainadapter.NewInMemory(genesis)
	require.NoError(t, chain.Import(est, genesis.Hash))
	require.NoError(t, chain.Import(leaf, est.Hash))

	mock := clock.NewMock(time.Unix(0, 0))
	port := &recordingPort{}
	r := New(Options{
		Number: 2, Set: 0, Voters: voters, Keypair: &kps[0], Base: genesis,
		Chain: chain, Gossip: port, Clock: mock, Duration: time.Second,
		Prior: PriorState{Estimate: est, Finalized: blk(6, 0), PrevoteGhost: est}, HasPrior: true,
	})
	ctx := context.Background()

	mock.Advance(2 * time.Second)
	require.NoError(t, r.Advance(ctx, mock.Now()))

	require.Equal(t, Prevoted, r.State())
	require.Len(t, port.votes, 1)
	require.NotNil(t, port.votes[0].Prevote)
	require.Equal(t, leaf, port.votes[0].Prevote.Message.Target)
}

// TestPrimaryBroadcastsHintWhenAheadOfFinalized checks that the
// round's primary, with a prior round estimate strictly above the
// prior finalized height, broadcasts an advisory primary-propose hint
// at the start of its round.
func TestPrimaryBroadcastsHintWhenAheadOfFinalized(t *testing.T) {
	kps, voters := genKeypairs(t, 4)
	genesis := blk(0, 0)
	est := blk(7, 1)

	chain := chainadapter.NewInMemory(genesis)
	require.NoError(t, chain.Import(est, genesis.Hash))

	port := &recordingPort{}
	// round number 0 => primary is voters[0] (0 mod 4).
	r := New(Options{
		Number: 0, Set: 0, Voters: voters, Keypair: &kps[0], Base: genesis,
		Chain: chain, Gossip: port, Duration: time.Second,
		Prior: PriorState{Estimate: est, Finalized: blk(6, 0)}, HasPrior: true,
	})

	require.NoError(t, r.Begin(context.Background()))
	require.Equal(t, Proposed, r.State())
	require.Len(t, port.votes, 1)
	require.NotNil(t, port.votes[0].PrimaryPropose)
	require.Equal(t, est, port.votes[0].PrimaryPropose.Message.Target)
}

// TestNonPrimaryDoesNotBroadcastHint covers the advisory nature of the
// primary hint: non-primaries ignore its absence and never broadcast
// one themselves.
func TestNonPrimaryDoesNotBroadcastHint(t *testing.T) {
	kps, voters := genKeypairs(t, 4)
	genesis := blk(0, 0)
	est := blk(7, 1)

	chain := chainadapter.NewInMemory(genesis)
	require.NoError(t, chain.Import(est, genesis.Hash))

	port := &recordingPort{}
	r := New(Options{
		Number: 0, Set: 0, Voters: voters, Keypair: &kps[1], Base: genesis,
		Chain: chain, Gossip: port, Duration: time.Second,
		Prior: PriorState{Estimate: est, Finalized: blk(6, 0)}, HasPrior: true,
	})

	require.NoError(t, r.Begin(context.Background()))
	require.Equal(t, Start, r.State())
	require.Empty(t, port.votes)
}

// TestPrevoteAnchorPrunedIsLoggedNotFatal checks that a prevote anchor
// pruned from the block tree fails the round-step without crashing the
// round. It uses a gomock-backed chainadapter.Adapter so the pruned
// case can be forced deterministically, rather than relying on the
// in-memory fake's own pruning to happen to land on this path.
func TestPrevoteAnchorPrunedIsLoggedNotFatal(t *testing.T) {
	kps, voters := genKeypairs(t, 4)
	genesis := blk(0, 0)

	ctrl := gomock.NewController(t)
	chain := chainadaptermock.NewAdapter(ctrl)
	chain.EXPECT().LastFinalized().Return(genesis).AnyTimes()
	chain.EXPECT().BestChainContaining(genesis).Return(vote.BlockInfo{}, false)

	mock := clock.NewMock(time.Unix(0, 0))
	port := &recordingPort{}
	r := New(Options{
		Number: 0, Set: 0, Voters: voters, Keypair: &kps[0], Base: genesis,
		Chain: chain, Gossip: port, Clock: mock, Duration: time.Second,
	})
	ctx := context.Background()

	mock.Advance(2 * time.Second)
	require.NoError(t, r.Advance(ctx, mock.Now()), "a pruned anchor must be logged, not returned as a fatal round error")
	require.Equal(t, Prevoted, r.State(), "the round still advances its state machine; it just cast no prevote")
	require.Empty(t, port.votes, "no prevote should have been broadcast for a pruned anchor")
}
