// Package block implements an incremental, chunking-invariant Markdown block
// segmenter: feed it arbitrary byte chunks of a Markdown stream and it hands
// back committed blocks plus a best-effort pending tail, stable regardless of
// how the input happened to be split across Append calls.
package block

import "fmt"

// ID identifies a block for the lifetime of a Stream (until Reset). IDs are
// monotonically increasing and never reused, including for whitespace-only
// spans that were dropped instead of committed.
type ID uint64

// Status distinguishes a block that will never change again from the
// currently-open tail of the document.
type Status int

const (
	// Committed blocks are final: their raw text will not change on a later Append.
	Committed Status = iota
	// Pending is the single open block at the end of the document, recomputed
	// on every Append until something closes it.
	Pending
)

func (s Status) String() string {
	switch s {
	case Committed:
		return "committed"
	case Pending:
		return "pending"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Kind is a coarse block-level classification, enough for a consumer to
// decide how to render or re-parse a block without re-deriving it from raw text.
type Kind int

const (
	Unknown Kind = iota
	Paragraph
	Heading
	ThematicBreak
	CodeFence
	List
	BlockQuote
	Table
	HTMLBlock
	MathBlock
	FootnoteDefinition
)

func (k Kind) String() string {
	switch k {
	case Paragraph:
		return "paragraph"
	case Heading:
		return "heading"
	case ThematicBreak:
		return "thematic_break"
	case CodeFence:
		return "code_fence"
	case List:
		return "list"
	case BlockQuote:
		return "blockquote"
	case Table:
		return "table"
	case HTMLBlock:
		return "html_block"
	case MathBlock:
		return "math_block"
	case FootnoteDefinition:
		return "footnote_definition"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Block is one unit of the segmented stream: a committed span of finished
// text, or the single pending block trailing the buffer.
type Block struct {
	ID      ID
	Status  Status
	Kind    Kind
	Raw     string
	Display string // only meaningful when HasDisplay is true
	HasDisplay bool
}

// DisplayOrRaw returns Display when the terminator (or a pending transformer)
// produced one, and Raw otherwise. Consumers that feed a downstream parser
// should always prefer this over Raw for a pending block.
func (b Block) DisplayOrRaw() string {
	if b.HasDisplay {
		return b.Display
	}
	return b.Raw
}

// CodeFenceHeader returns the parsed opening-fence line of a CodeFence block.
func (b Block) CodeFenceHeader() (CodeFenceHeader, bool) {
	if b.Kind != CodeFence {
		return CodeFenceHeader{}, false
	}
	return parseCodeFenceHeaderFromBlock(b.Raw)
}

// CodeFenceLanguage is a convenience accessor over CodeFenceHeader.
func (b Block) CodeFenceLanguage() (string, bool) {
	h, ok := b.CodeFenceHeader()
	if !ok || h.Language == "" {
		return "", false
	}
	return h.Language, true
}

// Update is what Append/Finalize return: zero or more newly committed
// blocks, the current pending block (if any), whether consumers must drop
// all prior state, and which already-committed block IDs a downstream
// adapter should consider re-parsing.
type Update struct {
	Committed   []Block
	Pending     *Block
	Reset       bool
	Invalidated []ID
}

// IsEmpty reports whether this update carries no new information at all.
func (u Update) IsEmpty() bool {
	return len(u.Committed) == 0 && u.Pending == nil && !u.Reset && len(u.Invalidated) == 0
}

// Blocks returns committed blocks followed by the pending block, if any.
func (u Update) Blocks() []Block {
	out := make([]Block, 0, len(u.Committed)+1)
	out = append(out, u.Committed...)
	if u.Pending != nil {
		out = append(out, *u.Pending)
	}
	return out
}

// AppliedUpdate summarizes the side effects of folding an Update into a
// DocumentState: whether a full rebuild was required and which blocks were
// invalidated.
type AppliedUpdate struct {
	Reset       bool
	Invalidated []ID
}

// DocumentState is the caller-owned accumulation of committed blocks plus
// the current pending block, built by repeatedly applying Updates.
type DocumentState struct {
	Committed []Block
	Pending   *Block
}

// Apply folds u into d, honoring Reset, and returns the side effects.
func (d *DocumentState) Apply(u Update) AppliedUpdate {
	if u.Reset {
		d.Committed = nil
		d.Pending = nil
	}
	d.Committed = append(d.Committed, u.Committed...)
	d.Pending = u.Pending
	return AppliedUpdate{Reset: u.Reset, Invalidated: u.Invalidated}
}

// FindCommitted returns the committed block with the given ID, if any.
func (d *DocumentState) FindCommitted(id ID) (Block, bool) {
	for _, b := range d.Committed {
		if b.ID == id {
			return b, true
		}
	}
	return Block{}, false
}
