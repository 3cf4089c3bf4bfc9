package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeFenceAnalyzerClassifiesLanguage(t *testing.T) {
	s := NewAnalyzedStream[CodeFenceMeta](DefaultOptions(), CodeFenceAnalyzer{})

	s.Append("```mermaid\n")
	s.Append("graph TD\n")
	update := s.Append("```\n")

	require.Len(t, update.CommittedMeta, 1)
	assert.Equal(t, CodeFenceMermaid, update.CommittedMeta[0].Meta.Class)
}

func TestCodeFenceAnalyzerIgnoresNonFenceBlocks(t *testing.T) {
	s := NewAnalyzedStream[CodeFenceMeta](DefaultOptions(), CodeFenceAnalyzer{})
	update := s.Append("Just a paragraph\n\n")
	assert.Empty(t, update.CommittedMeta)
	for _, c := range update.Update.Committed {
		_, ok := s.MetaFor(c.ID)
		assert.False(t, ok)
	}
}

func TestMathAnalyzerBalance(t *testing.T) {
	s := NewAnalyzedStream[MathMeta](DefaultOptions(), MathAnalyzer{})
	s.Append("$$\n")
	s.Append("x + y\n")
	update := s.Append("$$\n\n")

	require.NotEmpty(t, update.CommittedMeta)
	meta, ok := s.MetaFor(update.CommittedMeta[0].ID)
	require.True(t, ok)
	assert.True(t, meta.Balanced)
}

func TestBlockHintAnalyzerFlagsUnclosedFence(t *testing.T) {
	s := NewAnalyzedStream[BlockHintMeta](DefaultOptions(), BlockHintAnalyzer{})
	s.Append("```go\n")
	update := s.Append("func main() {\n")

	require.NotNil(t, update.PendingMeta)
	assert.True(t, update.PendingMeta.Meta.Has(HintUnclosedCodeFence))
	assert.True(t, update.PendingMeta.Meta.LikelyIncomplete())
}

func TestTaggedBlockAnalyzerParsesOpenAndCloseTags(t *testing.T) {
	a := NewTaggedBlockAnalyzer()
	a.AllowedTags = []string{"thinking"}
	s := NewAnalyzedStream[TaggedBlockMeta](DefaultOptions(), a)

	s.Append("<thinking>\n")
	s.Append("reasoning about the problem\n")
	update := s.Append("</thinking>\n\n")

	require.NotEmpty(t, update.CommittedMeta)
	meta, ok := s.MetaFor(update.CommittedMeta[0].ID)
	require.True(t, ok)
	assert.Equal(t, "thinking", meta.Tag)
	assert.True(t, meta.Closed)
}
