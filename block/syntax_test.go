package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHeading(t *testing.T) {
	assert.True(t, isHeading("# Title\n"))
	assert.True(t, isHeading("### Sub\n"))
	assert.False(t, isHeading("text\n"))
}

func TestIsThematicBreak(t *testing.T) {
	assert.True(t, isThematicBreak("---\n"))
	assert.True(t, isThematicBreak("***\n"))
	assert.True(t, isThematicBreak("___\n"))
	assert.False(t, isThematicBreak("--\n"))
}

func TestSetextUnderlineChar(t *testing.T) {
	assert.Equal(t, byte('-'), setextUnderlineChar("---\n"))
	assert.Equal(t, byte('='), setextUnderlineChar("===\n"))
	assert.Equal(t, byte(0), setextUnderlineChar("text\n"))
}

func TestFenceStartAndEnd(t *testing.T) {
	ch, n, ok := fenceStart("```go\n")
	require.True(t, ok)
	assert.Equal(t, byte('`'), ch)
	assert.Equal(t, 3, n)
	assert.True(t, fenceEnd("```\n", '`', 3))
	assert.False(t, fenceEnd("``\n", '`', 3))
}

func TestIsTableDelimiter(t *testing.T) {
	assert.True(t, isTableDelimiter("| --- | --- |\n"))
	assert.True(t, isTableDelimiter("--- | ---\n"))
	assert.False(t, isTableDelimiter("plain text\n"))
}

func TestCountDoubleDollars(t *testing.T) {
	assert.Equal(t, 2, countDoubleDollars("$$x$$\n"))
	assert.Equal(t, 1, countDoubleDollars("$$x\n"))
}

func TestParseCodeFenceHeader(t *testing.T) {
	h, ok := parseCodeFenceHeader("```go extra\n")
	require.True(t, ok)
	assert.Equal(t, "go", h.Language)
	assert.Equal(t, "go extra", h.Info)
}

func TestIsListItemStart(t *testing.T) {
	assert.True(t, isListItemStart("- item\n"))
	assert.True(t, isListItemStart("* item\n"))
	assert.True(t, isListItemStart("1. item\n"))
	assert.False(t, isListItemStart("plain\n"))
}
