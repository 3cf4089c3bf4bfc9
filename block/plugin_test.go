package block_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omgpointless/mdstream/block"
)

func TestTripleColonBoundaryPluginCommitsOnClose(t *testing.T) {
	s := block.New(block.DefaultOptions())
	s.PushBoundaryPlugin(block.TripleColonBoundaryPlugin())

	u := s.Append(":::\n")
	assert.Empty(t, u.Committed)
	u = s.Append("body\n")
	assert.Empty(t, u.Committed)
	u = s.Append(":::\n\n")
	require.Len(t, u.Committed, 1)
	assert.Equal(t, ":::\nbody\n:::\n", u.Committed[0].Raw)
}

func TestThinkingBoundaryPluginCommitsOnClose(t *testing.T) {
	s := block.New(block.DefaultOptions())
	s.PushBoundaryPlugin(block.ThinkingBoundaryPlugin())

	u := s.Append("<thinking>\n")
	assert.Empty(t, u.Committed)
	u = s.Append("reasoning\n")
	assert.Empty(t, u.Committed)
	u = s.Append("</thinking>\n\n")
	require.Len(t, u.Committed, 1)
}

func TestContainerBoundaryPluginRespectsAllowedNamesGlob(t *testing.T) {
	p := block.NewContainerBoundaryPlugin(':', 3)
	p.AllowedNames = []string{"admon-*"}

	s := block.New(block.DefaultOptions())
	s.PushBoundaryPlugin(p)

	u := s.Append(":::admon-warning\n")
	require.NotNil(t, u.Pending)
	assert.Equal(t, ":::admon-warning\n", u.Pending.Raw)

	u = s.Append("content\n")
	u = s.Append(":::\n\n")
	require.Len(t, u.Committed, 1)
}

func TestContainerBoundaryPluginRejectsDisallowedName(t *testing.T) {
	p := block.NewContainerBoundaryPlugin(':', 3)
	p.AllowedNames = []string{"admon-*"}

	s := block.New(block.DefaultOptions())
	s.PushBoundaryPlugin(p)

	u := s.Append(":::other\n")
	require.NotNil(t, u.Pending)
	assert.Equal(t, block.Paragraph, u.Pending.Kind)
}
