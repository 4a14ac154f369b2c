// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package votegraph implements the rooted DAG of observed block
// ancestries used for GHOST-style ancestor selection.
package votegraph

import (
	"bytes"
	"errors"
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/luxfi/grandpa/vote"
)

// ErrChainQueryFailed wraps a failure to fetch ancestry from the chain
// adapter while inserting a new block.
var ErrChainQueryFailed = errors.New("grandpa/votegraph: chain query failed")

// ChainAdapter is the subset of the chain's block tree the graph needs
// to pull in blocks it has not yet seen.
type ChainAdapter interface {
	// Ancestry returns hashes on the path from descendant down to
	// ancestor inclusive of both endpoints, ordered child-to-parent.
	// It fails if ancestor is not actually an ancestor-or-equal of
	// descendant.
	Ancestry(descendant, ancestor vote.BlockInfo) ([]vote.BlockInfo, error)
}

// Weight is the cached cumulative weight at a graph node: the sum of
// weights of voters whose bit is set anywhere in the node's subtree.
type Weight struct {
	PrevoteSum   uint64
	PrecommitSum uint64
}

// Predicate is a weight condition used by FindGhost / FindAncestor. It
// must be monotone under subtree union: if w satisfies cond and w' >= w
// (bitwise superset), w' must also satisfy cond.
type Predicate func(w Weight) bool

type node struct {
	info     vote.BlockInfo
	parent   *node
	children []*node

	// own votes cast directly for this exact block.
	ownPrevote   *bitset.BitSet
	ownPrecommit *bitset.BitSet

	// cumulative = own bits OR union of all descendants' cumulative bits.
	cumPrevote   *bitset.BitSet
	cumPrecommit *bitset.BitSet
	weight       Weight
}

// Graph is a rooted DAG of block ancestries rooted at the base (the
// last-finalized block). Nodes are added lazily as votes reference
// blocks. Graph is not safe for concurrent use.
type Graph struct {
	chain    ChainAdapter
	weights  []uint64 // voter index -> weight, for incremental sum updates
	numNodes map[vote.Hash]*node
	base     *node
}

// New creates a Graph rooted at base, tracking len(weights) voters
// (weights[i] is the weight of voter index i in the round's VoterSet).
func New(base vote.BlockInfo, weights []uint64, chain ChainAdapter) *Graph {
	root := &node{
		info:         base,
		ownPrevote:   bitset.New(uint(len(weights))),
		ownPrecommit: bitset.New(uint(len(weights))),
		cumPrevote:   bitset.New(uint(len(weights))),
		cumPrecommit: bitset.New(uint(len(weights))),
	}
	return &Graph{
		chain:    chain,
		weights:  weights,
		numNodes: map[vote.Hash]*node{base.Hash: root},
		base:     root,
	}
}

// Base returns the graph's immutable root.
func (g *Graph) Base() vote.BlockInfo { return g.base.info }

// ensurePath makes sure block and every ancestor up to the base are
// present as nodes, fetching intermediate ancestry from the chain
// adapter as needed, and returns block's node.
func (g *Graph) ensurePath(block vote.BlockInfo) (*node, error) {
	if n, ok := g.numNodes[block.Hash]; ok {
		return n, nil
	}
	if block.Number < g.base.info.Number {
		return nil, ErrChainQueryFailed
	}
	path, err := g.chain.Ancestry(block, g.base.info)
	if err != nil {
		return nil, ErrChainQueryFailed
	}
	// path is ordered [block, ..., base] inclusive; walk from the base
	// end forward, creating any missing nodes and wiring parent/child
	// links as we go.
	parent := g.base
	for i := len(path) - 2; i >= 0; i-- {
		b := path[i]
		if n, ok := g.numNodes[b.Hash]; ok {
			parent = n
			continue
		}
		n := &node{
			info:         b,
			parent:       parent,
			ownPrevote:   bitset.New(uint(len(g.weights))),
			ownPrecommit: bitset.New(uint(len(g.weights))),
			cumPrevote:   bitset.New(uint(len(g.weights))),
			cumPrecommit: bitset.New(uint(len(g.weights))),
		}
		parent.children = append(parent.children, n)
		g.numNodes[b.Hash] = n
		parent = n
	}
	n, ok := g.numNodes[block.Hash]
	if !ok {
		return nil, ErrChainQueryFailed
	}
	return n, nil
}

// InsertPrevote records voter index idx's prevote for block, inserting
// any missing ancestors, and propagates the cumulative weight delta
// toward the base. It is idempotent per (voter, block): a bit already
// set at a node is not re-added to that node's sum.
func (g *Graph) InsertPrevote(block vote.BlockInfo, idx int) error {
	return g.insert(block, idx, true)
}

// InsertPrecommit is InsertPrevote's precommit counterpart.
func (g *Graph) InsertPrecommit(block vote.BlockInfo, idx int) error {
	return g.insert(block, idx, false)
}

func (g *Graph) insert(block vote.BlockInfo, idx int, isPrevote bool) error {
	n, err := g.ensurePath(block)
	if err != nil {
		return err
	}
	if isPrevote {
		n.ownPrevote.Set(uint(idx))
	} else {
		n.ownPrecommit.Set(uint(idx))
	}
	w := g.weights[idx]
	for cur := n; cur != nil; cur = cur.parent {
		if isPrevote {
			if !cur.cumPrevote.Test(uint(idx)) {
				cur.cumPrevote.Set(uint(idx))
				cur.weight.PrevoteSum += w
			}
		} else {
			if !cur.cumPrecommit.Test(uint(idx)) {
				cur.cumPrecommit.Set(uint(idx))
				cur.weight.PrecommitSum += w
			}
		}
	}
	return nil
}

// FindGhost returns the deepest descendant of head (or of the base if
// head is nil) whose cumulative weight still satisfies cond, breaking
// ties by highest cumulative weight then lowest hash.
func (g *Graph) FindGhost(head *vote.BlockInfo, cond Predicate) (vote.BlockInfo, bool) {
	start := g.base
	if head != nil {
		n, ok := g.numNodes[head.Hash]
		if !ok {
			return vote.BlockInfo{}, false
		}
		start = n
	}
	if !cond(start.weight) {
		return vote.BlockInfo{}, false
	}
	cur := start
	for {
		next := bestChild(cur, cond)
		if next == nil {
			return cur.info, true
		}
		cur = next
	}
}

// bestChild returns the child of n with the highest cumulative weight
// satisfying cond, breaking ties by lowest hash; nil if none qualify.
func bestChild(n *node, cond Predicate) *node {
	var best *node
	for _, c := range n.children {
		if !cond(c.weight) {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		if c.weight.PrevoteSum != best.weight.PrevoteSum || c.weight.PrecommitSum != best.weight.PrecommitSum {
			if greaterWeight(c.weight, best.weight) {
				best = c
			}
			continue
		}
		if bytes.Compare(c.info.Hash[:], best.info.Hash[:]) < 0 {
			best = c
		}
	}
	return best
}

func greaterWeight(a, b Weight) bool {
	if a.PrevoteSum != b.PrevoteSum {
		return a.PrevoteSum > b.PrevoteSum
	}
	return a.PrecommitSum > b.PrecommitSum
}

// FindAncestor walks from start toward the base, returning the deepest
// ancestor (including start itself) whose subtree cumulative weight
// satisfies cond.
func (g *Graph) FindAncestor(start vote.BlockInfo, cond Predicate) (vote.BlockInfo, bool) {
	n, ok := g.numNodes[start.Hash]
	if !ok {
		return vote.BlockInfo{}, false
	}
	for cur := n; cur != nil; cur = cur.parent {
		if cond(cur.weight) {
			return cur.info, true
		}
	}
	return vote.BlockInfo{}, false
}

// WeightOf returns the cached cumulative weight at block, if known.
func (g *Graph) WeightOf(block vote.BlockInfo) (Weight, bool) {
	n, ok := g.numNodes[block.Hash]
	if !ok {
		return Weight{}, false
	}
	return n.weight, true
}

// Contains reports whether block has been observed by the graph.
func (g *Graph) Contains(block vote.BlockInfo) bool {
	_, ok := g.numNodes[block.Hash]
	return ok
}

// Prune removes nodes unreachable from any node carrying votes, without
// ever removing the base or any ancestor of a voted node. It is lazy:
// callers invoke it opportunistically, e.g. between rounds.
func (g *Graph) Prune() {
	keep := make(map[vote.Hash]bool, len(g.numNodes))
	keep[g.base.info.Hash] = true
	for _, n := range g.numNodes {
		if n.ownPrevote.Any() || n.ownPrecommit.Any() {
			for cur := n; cur != nil; cur = cur.parent {
				if keep[cur.info.Hash] {
					break
				}
				keep[cur.info.Hash] = true
			}
		}
	}
	for hash, n := range g.numNodes {
		if !keep[hash] {
			delete(g.numNodes, hash)
			if n.parent != nil {
				n.parent.children = removeChild(n.parent.children, n)
			}
		}
	}
}

func removeChild(children []*node, target *node) []*node {
	out := children[:0]
	for _, c := range children {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

// sortedHashes returns the observed nodes' hashes in ascending byte
// order, giving a deterministic iteration order over the graph.
func (g *Graph) sortedHashes() []vote.Hash {
	out := make([]vote.Hash, 0, len(g.numNodes))
	for h := range g.numNodes {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}
