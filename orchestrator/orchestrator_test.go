package orchestrator

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/grandpa/chainadapter"
	"github.com/luxfi/grandpa/config"
	"github.com/luxfi/grandpa/gossip"
	"github.com/luxfi/grandpa/internal/clock"
	"github.com/luxfi/grandpa/round"
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

// TestRoundSequencing drives a single round to completable and checks
// that the orchestrator auto-starts round 1 seeded from round 0's
// estimate/finalized/prevote-ghost.
func TestRoundSequencing(t *testing.T) {
	kps, voters := genKeypairs(t, 4)
	genesis := blk(0, 0)
	target := blk(5, 9)

	chain := chainadapter.NewInMemory(genesis)
	require.NoError(t, chain.Import(target, genesis.Hash))

	bus := gossip.NewBus()
	mock := clock.NewMock(time.Unix(0, 0))
	cfg := config.SingleVoterParams(voters, &kps[0])
	cfg.Duration = time.Second

	o := New(Options{Config: cfg, Chain: chain, Gossip: bus, Clock: mock})
	ctx := context.Background()
	require.NoError(t, o.Start(ctx))
	require.Equal(t, vote.RoundNumber(0), o.Current().Number())

	for _, kp := range kps {
		sv := kp.SignPrevote(target, 0, 0)
		require.NoError(t, o.OnVoteMessage(ctx, vote.VoteMessage{Round: 0, Set: 0, Prevote: &sv}))
	}

	mock.Advance(2 * time.Second)
	require.NoError(t, o.Tick(ctx))

	for _, kp := range kps {
		sv := kp.SignPrecommit(target, 0, 0)
		require.NoError(t, o.OnVoteMessage(ctx, vote.VoteMessage{Round: 0, Set: 0, Precommit: &sv}))
	}

	require.Equal(t, vote.RoundNumber(1), o.Current().Number(), "completable round 0 must auto-start round 1")
	require.Equal(t, target, chain.LastFinalized())
	require.Equal(t, round.PriorState{Estimate: target, Finalized: target, PrevoteGhost: target}, o.prior,
		"round 1 must be seeded from round 0's estimate/finalized/prevote-ghost")
}

// TestVoterSetChangeDrainsAndRestarts checks that activating a new
// voter set bumps set_id, drops in-flight round state, and starts a
// fresh round 0.
func TestVoterSetChangeDrainsAndRestarts(t *testing.T) {
	kps, voters := genKeypairs(t, 4)
	genesis := blk(0, 0)

	chain := chainadapter.NewInMemory(genesis)
	bus := gossip.NewBus()
	cfg := config.SingleVoterParams(voters, &kps[0])

	o := New(Options{Config: cfg, Chain: chain, Gossip: bus})
	ctx := context.Background()
	require.NoError(t, o.Start(ctx))
	require.Equal(t, vote.SetID(0), o.SetID())

	newKps, newVoters := genKeypairs(t, 3)
	_ = newKps
	require.NoError(t, o.ApplyVoterSetChange(ctx, newVoters))

	require.Equal(t, vote.SetID(1), o.SetID())
	require.Equal(t, vote.RoundNumber(0), o.Current().Number())
}

// TestOnVoteMessageBuffersFutureRound checks that votes for a round
// beyond the currently-running one are buffered, not dropped, and
// replayed once that round starts.
func TestOnVoteMessageBuffersFutureRound(t *testing.T) {
	kps, voters := genKeypairs(t, 4)
	genesis := blk(0, 0)
	target := blk(5, 9)

	chain := chainadapter.NewInMemory(genesis)
	require.NoError(t, chain.Import(target, genesis.Hash))

	bus := gossip.NewBus()
	mock := clock.NewMock(time.Unix(0, 0))
	cfg := config.SingleVoterParams(voters, &kps[0])
	cfg.Duration = time.Second

	o := New(Options{Config: cfg, Chain: chain, Gossip: bus, Clock: mock})
	ctx := context.Background()
	require.NoError(t, o.Start(ctx))

	sv := kps[0].SignPrevote(target, 1, 0)
	require.NoError(t, o.OnVoteMessage(ctx, vote.VoteMessage{Round: 1, Set: 0, Prevote: &sv}))
	require.Len(t, o.backlog[1], 1)

	for _, kp := range kps {
		sv := kp.SignPrevote(target, 0, 0)
		require.NoError(t, o.OnVoteMessage(ctx, vote.VoteMessage{Round: 0, Set: 0, Prevote: &sv}))
	}
	mock.Advance(2 * time.Second)
	require.NoError(t, o.Tick(ctx))
	for _, kp := range kps {
		sv := kp.SignPrecommit(target, 0, 0)
		require.NoError(t, o.OnVoteMessage(ctx, vote.VoteMessage{Round: 0, Set: 0, Precommit: &sv}))
	}

	require.Equal(t, vote.RoundNumber(1), o.Current().Number())
	require.Empty(t, o.backlog[1], "buffered vote must have been replayed into round 1")
}

// TestOnVoteMessageDropsWrongSetID checks that messages tagged with
// a stale set_id are dropped rather than buffered or applied.
func TestOnVoteMessageDropsWrongSetID(t *testing.T) {
	kps, voters := genKeypairs(t, 4)
	genesis := blk(0, 0)

	chain := chainadapter.NewInMemory(genesis)
	bus := gossip.NewBus()
	cfg := config.SingleVoterParams(voters, &kps[0])

	o := New(Options{Config: cfg, Chain: chain, Gossip: bus})
	ctx := context.Background()
	require.NoError(t, o.Start(ctx))

	sv := kps[0].SignPrevote(genesis, 0, 7)
	require.NoError(t, o.OnVoteMessage(ctx, vote.VoteMessage{Round: 0, Set: 7, Prevote: &sv}))
	require.Empty(t, o.backlog)
}
