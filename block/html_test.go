package block_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omgpointless/mdstream/block"
)

func TestHTMLBlockCommitsOnTagClose(t *testing.T) {
	s := block.New(block.DefaultOptions())
	u := s.Append("<div>\n")
	assert.Empty(t, u.Committed)
	u = s.Append("content\n")
	assert.Empty(t, u.Committed)
	u = s.Append("</div>\n\n")
	require.Len(t, u.Committed, 1)
	assert.Equal(t, block.HTMLBlock, u.Committed[0].Kind)
}

func TestHTMLBlockIgnoresAutolink(t *testing.T) {
	s := block.New(block.DefaultOptions())
	u := s.Append("<https://example.com>\n\nNext")
	require.Len(t, u.Committed, 1)
	assert.NotEqual(t, block.HTMLBlock, u.Committed[0].Kind)
}

func TestHTMLBlockHandlesVoidTags(t *testing.T) {
	s := block.New(block.DefaultOptions())
	u := s.Append("<br>\n\n")
	require.Len(t, u.Committed, 1)
	assert.Equal(t, block.HTMLBlock, u.Committed[0].Kind)
}
