// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gossip defines the outbound network port the round publishes
// vote messages and commits through, plus an in-memory Bus used by
// tests and cmd/grandpa-sim to fan messages out to peers without a real
// network.
package gossip

import (
	"context"

	"github.com/luxfi/grandpa/vote"
)

// Port is the outbound gossip interface a round publishes through. It
// must not block the round's executor; implementations back-pressure
// via their own send queue.
type Port interface {
	Vote(ctx context.Context, msg vote.VoteMessage) error
	Fin(ctx context.Context, fin vote.Fin) error
}

// Inbox is the receiving side the orchestrator dispatches inbound
// messages to, indexed by round number and set id.
type Inbox interface {
	OnVoteMessage(ctx context.Context, msg vote.VoteMessage) error
	OnFin(ctx context.Context, fin vote.Fin) error
}

// Bus is an in-memory, in-process Port/dispatcher: Vote and Fin fan a
// message out to every subscribed peer's Inbox, the sender's included. It exists for
// simulation and tests, not production gossip. Buffering messages for
// rounds a peer hasn't locally started yet is the orchestrator's job;
// the Bus only delivers.
type Bus struct {
	peers map[string]Inbox
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{peers: make(map[string]Inbox)}
}

// Subscribe registers a peer's inbox under name.
func (b *Bus) Subscribe(name string, inbox Inbox) {
	b.peers[name] = inbox
}

// Vote fans a vote message out to every subscribed peer. Errors from
// individual peers are collected but do not stop delivery to the rest;
// the first error, if any, is returned to the caller for logging.
func (b *Bus) Vote(ctx context.Context, msg vote.VoteMessage) error {
	var first error
	for _, peer := range b.peers {
		if err := peer.OnVoteMessage(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Fin fans a commit message out to every subscribed peer.
func (b *Bus) Fin(ctx context.Context, fin vote.Fin) error {
	var first error
	for _, peer := range b.peers {
		if err := peer.OnFin(ctx, fin); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Port = (*Bus)(nil)
