package block_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omgpointless/mdstream/block"
)

func TestBufferCompactionKeepsResultsStable(t *testing.T) {
	opts := block.DefaultOptions()
	opts.MaxBufferBytes = 16
	s := block.New(opts)

	var committed []block.Block
	for i := 0; i < 10; i++ {
		u := s.Append("paragraph number line\n\n")
		committed = append(committed, u.Committed...)
	}
	u := s.Finalize()
	committed = append(committed, u.Committed...)

	require.Len(t, committed, 10)
	for i, b := range committed {
		assert.Equal(t, "paragraph number line\n\n", b.Raw, "block %d content should survive compaction", i)
	}
	// buffer compaction must not perturb id monotonicity
	for i := 1; i < len(committed); i++ {
		assert.Greater(t, uint64(committed[i].ID), uint64(committed[i-1].ID))
	}
}

func TestBufferCompactionNoopUnderCap(t *testing.T) {
	opts := block.DefaultOptions()
	opts.MaxBufferBytes = 1 << 20
	s := block.New(opts)
	u := s.Append("A\n\nB\n\nC")
	assert.Len(t, u.Committed, 2)
}
