// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainadapter defines the read-only block-tree view the round
// and vote graph query for ancestry and finalization, plus an
// in-memory implementation for tests and the simulation harness.
package chainadapter

import (
	"bytes"
	"errors"
	"sync"

	"github.com/luxfi/grandpa/vote"
)

// ErrUnknownBlock is returned when a hash is not present in the tree.
var ErrUnknownBlock = errors.New("grandpa/chainadapter: unknown block")

// ErrBlockPruned is returned when a query references a block that has
// been pruned below the current finalized root.
var ErrBlockPruned = errors.New("grandpa/chainadapter: block pruned")

// ErrFinalizeRejected is returned when the underlying store refuses a
// finalize call, e.g. the target is not a descendant of the current
// finalized block.
var ErrFinalizeRejected = errors.New("grandpa/chainadapter: finalize rejected")

// ErrNotAncestor is returned by Ancestry when the supplied ancestor is
// not actually on the path to the descendant.
var ErrNotAncestor = errors.New("grandpa/chainadapter: not an ancestor")

// Adapter is the read-only block-tree view plus the finalize sink the
// round depends on. Implementations must be safe to call from the
// single-threaded core's executor; they
// need not be safe for concurrent use by multiple goroutines unless the
// implementation says otherwise.
type Adapter interface {
	// Ancestry returns the hashes on the path from descendant down to
	// ancestor, inclusive of both endpoints, ordered child-to-parent.
	// It returns ErrNotAncestor if ancestor does not lie on descendant's
	// chain, and ErrBlockPruned if descendant itself is unknown because
	// it was pruned.
	Ancestry(descendant, ancestor vote.BlockInfo) ([]vote.BlockInfo, error)

	// BestChainContaining returns the head of the heaviest known leaf
	// whose chain contains h, or false if h is unknown.
	BestChainContaining(h vote.BlockInfo) (vote.BlockInfo, bool)

	// IsEqualOrDescendantOf reports whether descendant is anc or a
	// descendant of anc.
	IsEqualOrDescendantOf(anc, descendant vote.BlockInfo) bool

	// LastFinalized returns the most recently finalized block.
	LastFinalized() vote.BlockInfo

	// Header returns the stored header for hash.
	Header(hash vote.Hash) (vote.BlockHeader, bool)

	// Finalize commits hash as finalized, persisting justification
	// alongside it. Implementations may reject a hash that is not a
	// descendant of the current last-finalized block.
	Finalize(hash vote.Hash, justification vote.Justification) error
}

type blockNode struct {
	info     vote.BlockInfo
	parent   vote.Hash
	hasParent bool
	children []vote.Hash
}

// InMemory is a map-backed Adapter used by tests and cmd/grandpa-sim. It
// tracks one "weight" per leaf (set via SetLeafWeight, defaulting to the
// leaf's height) to decide the heaviest chain, mirroring how a real
// client would rank leaves by the underlying block-production fork
// choice rather than by GRANDPA's own vote weight.
type InMemory struct {
	mu sync.Mutex

	nodes       map[vote.Hash]*blockNode
	leafWeight  map[vote.Hash]uint64
	finalized   vote.BlockInfo
	justifications map[vote.Hash]vote.Justification
}

// NewInMemory creates an InMemory adapter rooted at genesis, which is
// treated as already finalized.
func NewInMemory(genesis vote.BlockInfo) *InMemory {
	root := &blockNode{info: genesis}
	return &InMemory{
		nodes:          map[vote.Hash]*blockNode{genesis.Hash: root},
		leafWeight:     map[vote.Hash]uint64{genesis.Hash: genesis.Number},
		finalized:      genesis,
		justifications: make(map[vote.Hash]vote.Justification),
	}
}

// Import adds a new block to the tree. The parent must already be
// present. Importing updates the leaf-weight table: the new block
// becomes a candidate leaf at its own height, and is never pruned out
// from under a caller simply by being superseded — only Finalize prunes,
// removing the branches that do not contain the finalized block.
func (m *InMemory) Import(info vote.BlockInfo, parent vote.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.nodes[parent]
	if !ok {
		return ErrUnknownBlock
	}
	if _, exists := m.nodes[info.Hash]; exists {
		return nil
	}
	n := &blockNode{info: info, parent: parent, hasParent: true}
	m.nodes[info.Hash] = n
	p.children = append(p.children, info.Hash)
	m.leafWeight[info.Hash] = info.Number
	return nil
}

// SetLeafWeight overrides the fork-choice weight used to rank a leaf in
// BestChainContaining. Only meaningful for hashes with no children.
func (m *InMemory) SetLeafWeight(hash vote.Hash, weight uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leafWeight[hash] = weight
}

func (m *InMemory) Ancestry(descendant, ancestor vote.BlockInfo) ([]vote.BlockInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[descendant.Hash]
	if !ok {
		return nil, ErrBlockPruned
	}
	var path []vote.BlockInfo
	cur := n
	for {
		path = append(path, cur.info)
		if cur.info.Hash == ancestor.Hash {
			return path, nil
		}
		if !cur.hasParent {
			return nil, ErrNotAncestor
		}
		cur = m.nodes[cur.parent]
	}
}

func (m *InMemory) IsEqualOrDescendantOf(anc, descendant vote.BlockInfo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.nodes[descendant.Hash]
	if !ok {
		return false
	}
	for {
		if cur.info.Hash == anc.Hash {
			return true
		}
		if !cur.hasParent {
			return false
		}
		cur = m.nodes[cur.parent]
	}
}

// BestChainContaining returns the head of the heaviest leaf descending
// from h, ties broken by the lowest leaf hash.
func (m *InMemory) BestChainContaining(h vote.BlockInfo) (vote.BlockInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	root, ok := m.nodes[h.Hash]
	if !ok {
		return vote.BlockInfo{}, false
	}

	var best *blockNode
	var bestWeight uint64
	var walk func(n *blockNode)
	walk = func(n *blockNode) {
		if len(n.children) == 0 {
			w := m.leafWeight[n.info.Hash]
			if best == nil || w > bestWeight ||
				(w == bestWeight && bytes.Compare(n.info.Hash[:], best.info.Hash[:]) < 0) {
				best = n
				bestWeight = w
			}
			return
		}
		for _, c := range n.children {
			walk(m.nodes[c])
		}
	}
	walk(root)
	if best == nil {
		return vote.BlockInfo{}, false
	}
	return best.info, true
}

func (m *InMemory) LastFinalized() vote.BlockInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalized
}

func (m *InMemory) Header(hash vote.Hash) (vote.BlockHeader, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[hash]
	if !ok {
		return vote.BlockHeader{}, false
	}
	h := vote.BlockHeader{Hash: n.info.Hash, Number: n.info.Number}
	if n.hasParent {
		h.ParentHash = n.parent
	}
	return h, true
}

// Finalize records hash as finalized and prunes every sibling branch
// that does not descend from it: once a fork loses, its nodes are no
// longer reachable for future ancestry queries.
func (m *InMemory) Finalize(hash vote.Hash, justification vote.Justification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[hash]
	if !ok {
		return ErrFinalizeRejected
	}
	if n.info.Number < m.finalized.Number {
		return ErrFinalizeRejected
	}
	// must be a descendant (or equal) of the current finalized block
	cur := n
	onPath := false
	for {
		if cur.info.Hash == m.finalized.Hash {
			onPath = true
			break
		}
		if !cur.hasParent {
			break
		}
		cur = m.nodes[cur.parent]
	}
	if !onPath {
		return ErrFinalizeRejected
	}
	m.finalized = n.info
	m.justifications[hash] = justification
	m.pruneSiblings(n)
	return nil
}

// pruneSiblings removes every node that is not an ancestor or
// descendant of n, starting the walk from the old finalized root.
func (m *InMemory) pruneSiblings(keep *blockNode) {
	keepSet := map[vote.Hash]bool{keep.info.Hash: true}
	for cur := keep; cur.hasParent; cur = m.nodes[cur.parent] {
		keepSet[cur.parent] = true
	}
	var markDescendants func(n *blockNode)
	markDescendants = func(n *blockNode) {
		keepSet[n.info.Hash] = true
		for _, c := range n.children {
			markDescendants(m.nodes[c])
		}
	}
	markDescendants(keep)

	for hash, n := range m.nodes {
		if !keepSet[hash] {
			delete(m.nodes, hash)
			delete(m.leafWeight, hash)
			if n.hasParent {
				if p, ok := m.nodes[n.parent]; ok {
					p.children = removeHash(p.children, hash)
				}
			}
		}
	}
}

func removeHash(hashes []vote.Hash, target vote.Hash) []vote.Hash {
	out := hashes[:0]
	for _, h := range hashes {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}

// Justification returns the justification recorded for a finalized
// hash, if any.
func (m *InMemory) Justification(hash vote.Hash) (vote.Justification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.justifications[hash]
	return j, ok
}

var _ Adapter = (*InMemory)(nil)
