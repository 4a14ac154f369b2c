package chainadapter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/grandpa/vote"
)

func blk(n uint64, tag byte) vote.BlockInfo {
	b := vote.BlockInfo{Number: n}
	b.Hash[0] = tag
	return b
}

func TestAncestryReturnsInclusivePath(t *testing.T) {
	genesis := blk(0, 0)
	a := blk(1, 1)
	b := blk(2, 2)
	chain := NewInMemory(genesis)
	require.NoError(t, chain.Import(a, genesis.Hash))
	require.NoError(t, chain.Import(b, a.Hash))

	path, err := chain.Ancestry(b, genesis)
	require.NoError(t, err)
	require.Equal(t, []vote.BlockInfo{b, a, genesis}, path)
}

func TestAncestryRejectsNonAncestor(t *testing.T) {
	genesis := blk(0, 0)
	a := blk(1, 1)
	other := blk(1, 9)
	chain := NewInMemory(genesis)
	require.NoError(t, chain.Import(a, genesis.Hash))

	_, err := chain.Ancestry(a, other)
	require.ErrorIs(t, err, ErrNotAncestor)
}

func TestBestChainContainingPicksHeaviestLeaf(t *testing.T) {
	genesis := blk(0, 0)
	fork := blk(1, 1)
	light := blk(2, 2)
	heavy := blk(2, 3)
	chain := NewInMemory(genesis)
	require.NoError(t, chain.Import(fork, genesis.Hash))
	require.NoError(t, chain.Import(light, fork.Hash))
	require.NoError(t, chain.Import(heavy, fork.Hash))
	chain.SetLeafWeight(light.Hash, 1)
	chain.SetLeafWeight(heavy.Hash, 100)

	got, ok := chain.BestChainContaining(fork)
	require.True(t, ok)
	require.Equal(t, heavy, got)
}

func TestIsEqualOrDescendantOf(t *testing.T) {
	genesis := blk(0, 0)
	a := blk(1, 1)
	chain := NewInMemory(genesis)
	require.NoError(t, chain.Import(a, genesis.Hash))

	require.True(t, chain.IsEqualOrDescendantOf(genesis, a))
	require.True(t, chain.IsEqualOrDescendantOf(a, a))
	require.False(t, chain.IsEqualOrDescendantOf(a, genesis))
}

func TestFinalizePrunesLosingForks(t *testing.T) {
	genesis := blk(0, 0)
	a := blk(1, 1)
	b := blk(1, 2)
	chain := NewInMemory(genesis)
	require.NoError(t, chain.Import(a, genesis.Hash))
	require.NoError(t, chain.Import(b, genesis.Hash))

	require.NoError(t, chain.Finalize(a.Hash, vote.Justification{}))
	require.Equal(t, a, chain.LastFinalized())

	_, err := chain.Ancestry(b, genesis)
	require.ErrorIs(t, err, ErrBlockPruned, "losing fork must be pruned after finalize")
}

func TestFinalizeRejectsNonDescendant(t *testing.T) {
	genesis := blk(0, 0)
	a := blk(1, 1)
	b := blk(1, 2)
	chain := NewInMemory(genesis)
	require.NoError(t, chain.Import(a, genesis.Hash))
	require.NoError(t, chain.Import(b, genesis.Hash))
	require.NoError(t, chain.Finalize(a.Hash, vote.Justification{}))

	err := chain.Finalize(b.Hash, vote.Justification{})
	require.ErrorIs(t, err, ErrFinalizeRejected)
}
