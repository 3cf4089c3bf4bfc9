package block

import "fmt"

// modeTag discriminates the blockMode tagged union. Go has no sum types, so
// this follows the teacher's field-tagged-struct convention (see fmt.go's
// Format methods) instead of reaching for an interface per variant.
type modeTag int

const (
	modeUnknown modeTag = iota
	modeParagraph
	modeHeading
	modeThematicBreak
	modeCodeFence
	modeCustomBoundary
	modeList
	modeBlockQuote
	modeHTMLBlock
	modeTable
	modeMathBlock
	modeFootnoteDefinition
)

// blockMode is the current open block's parse state. Only the fields
// relevant to tag are meaningful at any given time.
type blockMode struct {
	tag modeTag

	// modeCodeFence
	fenceChar byte
	fenceLen  int
	fenceInfo string

	// modeCustomBoundary
	pluginIndex int
	started     bool

	// modeHTMLBlock
	htmlStack   []string
	htmlComment bool

	// modeMathBlock
	mathOpenCount int
}

func (m blockMode) String() string {
	switch m.tag {
	case modeCodeFence:
		return fmt.Sprintf("code_fence(%c x%d)", m.fenceChar, m.fenceLen)
	case modeCustomBoundary:
		return fmt.Sprintf("custom_boundary(plugin=%d)", m.pluginIndex)
	case modeHTMLBlock:
		return fmt.Sprintf("html_block(stack=%v comment=%t)", m.htmlStack, m.htmlComment)
	case modeMathBlock:
		return fmt.Sprintf("math_block(open=%d)", m.mathOpenCount)
	case modeParagraph:
		return "paragraph"
	case modeHeading:
		return "heading"
	case modeThematicBreak:
		return "thematic_break"
	case modeList:
		return "list"
	case modeBlockQuote:
		return "blockquote"
	case modeTable:
		return "table"
	case modeFootnoteDefinition:
		return "footnote_definition"
	default:
		return "unknown"
	}
}

// kind maps the current parse state to the public Kind a committed/pending
// Block reports.
func (m blockMode) kind() Kind {
	switch m.tag {
	case modeParagraph:
		return Paragraph
	case modeHeading:
		return Heading
	case modeThematicBreak:
		return ThematicBreak
	case modeCodeFence:
		return CodeFence
	case modeList:
		return List
	case modeBlockQuote:
		return BlockQuote
	case modeHTMLBlock:
		return HTMLBlock
	case modeTable:
		return Table
	case modeMathBlock:
		return MathBlock
	case modeFootnoteDefinition:
		return FootnoteDefinition
	default:
		return Unknown
	}
}
