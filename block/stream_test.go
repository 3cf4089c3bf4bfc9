package block_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omgpointless/mdstream/block"
)

// rawKinds flattens committed blocks into (kind, raw) pairs for comparison,
// per the chunking-invariance property: the sequence must be identical no
// matter how the input was split across Append calls.
type rawKind struct {
	Kind block.Kind
	Raw  string
}

func collect(chunks []string) []rawKind {
	s := block.New(block.DefaultOptions())
	var out []rawKind
	for _, c := range chunks {
		u := s.Append(c)
		for _, b := range u.Committed {
			out = append(out, rawKind{b.Kind, b.Raw})
		}
	}
	u := s.Finalize()
	for _, b := range u.Committed {
		out = append(out, rawKind{b.Kind, b.Raw})
	}
	return out
}

func chunkByN(s string, n int) []string {
	var out []string
	for len(s) > 0 {
		if n >= len(s) {
			out = append(out, s)
			break
		}
		out = append(out, s[:n])
		s = s[n:]
	}
	return out
}

func TestChunkingInvariance(t *testing.T) {
	input := "# Title\n\nSome paragraph text\nspanning two lines.\n\n```go\nfunc main() {}\n```\n\n- a\n- b\n\n> quoted\n"

	whole := collect([]string{input})
	require.NotEmpty(t, whole)

	chunkings := [][]string{
		{input},
		strings.SplitAfter(input, "\n"),
	}
	for n := 1; n <= 40; n++ {
		chunkings = append(chunkings, chunkByN(input, n))
	}

	for i, chunks := range chunkings {
		got := collect(chunks)
		assert.Equal(t, whole, got, "chunking %d (%d pieces) diverged", i, len(chunks))
	}
}

func TestCRLFNormalizationAcrossSplit(t *testing.T) {
	withLF := collect([]string{"A\n\nB\n"})

	s := block.New(block.DefaultOptions())
	var got []rawKind
	u := s.Append("A\r")
	for _, b := range u.Committed {
		got = append(got, rawKind{b.Kind, b.Raw})
	}
	u = s.Append("\n\nB\r\n")
	for _, b := range u.Committed {
		got = append(got, rawKind{b.Kind, b.Raw})
	}
	u = s.Finalize()
	for _, b := range u.Committed {
		got = append(got, rawKind{b.Kind, b.Raw})
	}

	assert.Equal(t, withLF, got, "splitting a CRLF across chunks must match single-shot LF input")
}

func TestTrailingLoneCRAtEOFPromotedToNewline(t *testing.T) {
	s := block.New(block.DefaultOptions())
	s.Append("Hello\r")
	u := s.Finalize()
	require.Len(t, u.Committed, 1)
	assert.Equal(t, "Hello\n", u.Committed[0].Raw)
}

func TestScenario1_BlankLineSplitsParagraphs(t *testing.T) {
	s := block.New(block.DefaultOptions())
	u := s.Append("A\n\nB")
	require.Len(t, u.Committed, 1)
	assert.Equal(t, block.Paragraph, u.Committed[0].Kind)
	assert.Equal(t, "A\n\n", u.Committed[0].Raw)
	require.NotNil(t, u.Pending)
	assert.Equal(t, "B", u.Pending.Raw)

	u = s.Finalize()
	require.Len(t, u.Committed, 1)
	assert.Equal(t, "B", u.Committed[0].Raw)
}

func TestScenario2_CodeFenceStaysPendingUntilClosed(t *testing.T) {
	s := block.New(block.DefaultOptions())

	u := s.Append("```rs\n")
	assert.Empty(t, u.Committed)
	require.NotNil(t, u.Pending)
	assert.Equal(t, block.CodeFence, u.Pending.Kind)

	u = s.Append("fn main() {\n")
	assert.Empty(t, u.Committed)
	require.NotNil(t, u.Pending)

	u = s.Append("}\n")
	assert.Empty(t, u.Committed)

	u = s.Finalize()
	require.Len(t, u.Committed, 1)
	assert.Equal(t, block.CodeFence, u.Committed[0].Kind)
	assert.Equal(t, "```rs\nfn main() {\n}\n", u.Committed[0].Raw)
}

func TestScenario3_ReferenceDefinitionInvalidatesEarlierUsage(t *testing.T) {
	opts := block.DefaultOptions()
	opts.ReferenceDefinitions = block.RefsInvalidate
	s := block.New(opts)

	u := s.Append("See [ref].\n\n")
	assert.Empty(t, u.Committed)

	u = s.Append("[ref]: https://example.com\n")
	require.Len(t, u.Committed, 1)
	firstID := u.Committed[0].ID
	assert.Empty(t, u.Invalidated)

	u = s.Append("\n")
	assert.Empty(t, u.Invalidated)

	u = s.Append("Next\n")
	require.Len(t, u.Invalidated, 1)
	assert.Equal(t, firstID, u.Invalidated[0])
}

func TestScenario4_IncompleteBoldTerminated(t *testing.T) {
	s := block.New(block.DefaultOptions())
	u := s.Append("Hello **wor")
	require.NotNil(t, u.Pending)
	assert.Equal(t, "Hello **wor", u.Pending.Raw)
	assert.Equal(t, "Hello **wor**", u.Pending.Display)
}

func TestScenario5_SetextHeadingThenParagraph(t *testing.T) {
	s := block.New(block.DefaultOptions())
	u := s.Append("Title\n---\nAfter")
	require.Len(t, u.Committed, 1)
	assert.Equal(t, block.Heading, u.Committed[0].Kind)
	assert.Equal(t, "Title\n---\n", u.Committed[0].Raw)
	require.NotNil(t, u.Pending)
	assert.Equal(t, block.Paragraph, u.Pending.Kind)
	assert.Equal(t, "After", u.Pending.Raw)
}

func TestScenario6_FootnoteSplitAcrossChunksResetsToSingleBlock(t *testing.T) {
	s := block.New(block.DefaultOptions())

	u := s.Append("This is a footnote ref [^")
	assert.False(t, u.Reset)

	u = s.Append("1] and more.\n")
	assert.True(t, u.Reset)
	assert.Empty(t, u.Committed)
	require.NotNil(t, u.Pending)
	assert.Equal(t, block.ID(1), u.Pending.ID)
	assert.Equal(t, "This is a footnote ref [^1] and more.\n", u.Pending.Raw)

	u = s.Finalize()
	require.Len(t, u.Committed, 1)
	assert.Equal(t, block.ID(1), u.Committed[0].ID)
	assert.Equal(t, block.Unknown, u.Committed[0].Kind)
}

func TestFootnoteDetectionUnderInvalidateModeNeverResets(t *testing.T) {
	opts := block.DefaultOptions()
	opts.Footnotes = block.FootnotesInvalidate
	s := block.New(opts)

	u := s.Append("First paragraph.\n\n")
	require.Empty(t, u.Committed)
	assert.False(t, u.Reset)

	u = s.Append("A citation-style aside [^1] and more.\n\n")
	assert.False(t, u.Reset, "FootnotesInvalidate must keep per-block segmentation, never reset")
	require.Len(t, u.Committed, 1)

	u = s.Append("A third paragraph.\n\n")
	assert.False(t, u.Reset)
	require.Len(t, u.Committed, 1)

	u = s.Finalize()
	assert.False(t, u.Reset)
}

func TestIDMonotonicityAndNoReuse(t *testing.T) {
	s := block.New(block.DefaultOptions())
	seen := map[block.ID]bool{}
	var last block.ID

	feed := func(u block.Update) {
		for _, b := range u.Committed {
			require.False(t, seen[b.ID], "id %d reused", b.ID)
			seen[b.ID] = true
			require.Greater(t, uint64(b.ID), uint64(last), "ids must strictly increase")
			last = b.ID
		}
	}

	feed(s.Append("A\n\nB\n\nC\n\n"))
	feed(s.Append("D\n\nE\n"))
	feed(s.Finalize())

	assert.NotEmpty(t, seen)
}

func TestWhitespaceOnlyBlocksNeverCommitted(t *testing.T) {
	s := block.New(block.DefaultOptions())
	u := s.Append("   \n\n\t\n\nReal text\n")
	for _, b := range u.Committed {
		assert.NotEmpty(t, strings.TrimSpace(b.Raw))
	}
	u = s.Finalize()
	for _, b := range u.Committed {
		assert.NotEmpty(t, strings.TrimSpace(b.Raw))
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	s := block.New(block.DefaultOptions())
	s.Append("Hello\n\nWorld")

	first := s.Finalize()
	require.NotEmpty(t, first.Committed)

	second := s.Finalize()
	assert.True(t, second.IsEmpty(), "second finalize with no intervening append must be empty")
}

func TestFinalizeIsIdempotentInSingleBlockFootnoteMode(t *testing.T) {
	s := block.New(block.DefaultOptions())
	s.Append("ref [^1] here\n")

	first := s.Finalize()
	require.NotEmpty(t, first.Committed)

	second := s.Finalize()
	assert.True(t, second.IsEmpty(), "second finalize in footnote single-block mode must be empty")
}

func TestResetClearsState(t *testing.T) {
	s := block.New(block.DefaultOptions())
	s.Append("Some\n\ntext\n")
	s.Reset()

	u := s.Append("A\n\nB")
	require.Len(t, u.Committed, 1)
	assert.Equal(t, block.ID(1), u.Committed[0].ID)
}

func TestAppendOnlyCommittedNeverMutates(t *testing.T) {
	s := block.New(block.DefaultOptions())
	u1 := s.Append("A\n\n")
	require.Len(t, u1.Committed, 1)
	snap := u1.Committed[0]

	s.Append("More\n\n")
	s.Finalize()

	// committed blocks are copies by value; mutating the stream further must
	// not retroactively change a previously returned Block.
	assert.Equal(t, "A\n\n", snap.Raw)
	assert.Equal(t, block.Committed, snap.Status)
}

func TestDocumentStateApply(t *testing.T) {
	s := block.New(block.DefaultOptions())
	var doc block.DocumentState

	doc.Apply(s.Append("A\n\nB\n\n"))
	doc.Apply(s.Finalize())

	require.Len(t, doc.Committed, 2)
	b, ok := doc.FindCommitted(doc.Committed[0].ID)
	require.True(t, ok)
	assert.Equal(t, "A\n\n", b.Raw)
}
