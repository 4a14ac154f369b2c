package gossip

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/grandpa/vote"
)

type recordingInbox struct {
	votes []vote.VoteMessage
	fins  []vote.Fin
}

func (r *recordingInbox) OnVoteMessage(_ context.Context, msg vote.VoteMessage) error {
	r.votes = append(r.votes, msg)
	return nil
}

func (r *recordingInbox) OnFin(_ context.Context, fin vote.Fin) error {
	r.fins = append(r.fins, fin)
	return nil
}

// newPeerName generates a unique session identifier for a simulated
// peer, the way cmd/grandpa-sim would label each voter's bus
// subscription in a real multi-process run rather than a fixed string.
func newPeerName(t *testing.T) string {
	t.Helper()
	return uuid.NewString()
}

func TestBusFansVoteOutToAllPeers(t *testing.T) {
	bus := NewBus()
	a, b := &recordingInbox{}, &recordingInbox{}
	bus.Subscribe(newPeerName(t), a)
	bus.Subscribe(newPeerName(t), b)

	msg := vote.VoteMessage{Round: 1, Set: 0}
	require.NoError(t, bus.Vote(context.Background(), msg))

	require.Len(t, a.votes, 1)
	require.Len(t, b.votes, 1)
}

func TestBusFansFinOutToAllPeers(t *testing.T) {
	bus := NewBus()
	a := &recordingInbox{}
	bus.Subscribe(newPeerName(t), a)

	require.NoError(t, bus.Fin(context.Background(), vote.Fin{Round: 2}))
	require.Len(t, a.fins, 1)
}
