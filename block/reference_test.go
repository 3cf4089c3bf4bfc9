package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeReferenceLabelFoldsCaseAndWhitespace(t *testing.T) {
	a, ok := normalizeReferenceLabel("Foo   Bar")
	require.True(t, ok)
	b, ok := normalizeReferenceLabel("foo bar")
	require.True(t, ok)
	assert.Equal(t, a, b)
}

func TestNormalizeReferenceLabelRejectsEmpty(t *testing.T) {
	_, ok := normalizeReferenceLabel("   ")
	assert.False(t, ok)
}

func TestExtractReferenceDefinitionLabel(t *testing.T) {
	label, ok := extractReferenceDefinitionLabel("[ref]: https://example.com")
	require.True(t, ok)
	assert.Equal(t, "ref", label)

	_, ok = extractReferenceDefinitionLabel("   [ref]: https://example.com")
	assert.True(t, ok)

	_, ok = extractReferenceDefinitionLabel("[^note]: a footnote, not a reference")
	assert.False(t, ok)

	_, ok = extractReferenceDefinitionLabel("not a reference line")
	assert.False(t, ok)
}

func TestExtractReferenceUsagesShortcutAndFullForms(t *testing.T) {
	usages := extractReferenceUsages("See [ref] and also [text][other] and [label][].")
	assert.Contains(t, usages, "ref")
	assert.Contains(t, usages, "other")
	assert.Contains(t, usages, "label")
}

func TestExtractReferenceUsagesIgnoresInlineLinksAndFootnotes(t *testing.T) {
	usages := extractReferenceUsages("An [inline](http://example.com) link and a [^footnote] ref.")
	assert.NotContains(t, usages, "inline")
	assert.NotContains(t, usages, "^footnote")
}
