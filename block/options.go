package block

// FootnotesMode selects how the segmenter reacts once it sees a `[^id]`
// footnote reference or definition.
type FootnotesMode int

const (
	// SingleBlock collapses the entire document into one pending/committed
	// block once a footnote pattern is detected, since footnote definitions
	// can legally appear anywhere and retroactively affect earlier text.
	SingleBlock FootnotesMode = iota
	// FootnotesInvalidate keeps normal block splitting and never emits Reset.
	// Footnote labels (`[^id]`) are not tracked by the reference-definition
	// index, so footnotes produce no invalidations either.
	FootnotesInvalidate
)

// ReferenceDefinitionsMode selects how the segmenter reacts when a
// `[label]:` reference definition commits after blocks that used `[label]`
// have already committed.
type ReferenceDefinitionsMode int

const (
	// StabilityFirst never emits invalidations for reference definitions;
	// downstream adapters are expected to re-resolve references lazily.
	StabilityFirst ReferenceDefinitionsMode = iota
	// RefsInvalidate emits the IDs of already-committed blocks that used a
	// label, whenever a matching definition later commits.
	RefsInvalidate
)

// TerminatorOptions configures the pending-tail terminator (see terminator.go).
type TerminatorOptions struct {
	SetextHeadings    bool
	Links             bool
	Images            bool
	Emphasis          bool
	InlineCode        bool
	Strikethrough     bool
	KatexBlock        bool
	IncompleteLinkURL string
	WindowBytes       int
}

// DefaultTerminatorOptions mirrors the upstream terminator's defaults: every
// repair enabled, operating on the trailing 16KiB of the pending block.
func DefaultTerminatorOptions() TerminatorOptions {
	return TerminatorOptions{
		SetextHeadings:    true,
		Links:             true,
		Images:            true,
		Emphasis:          true,
		InlineCode:        true,
		Strikethrough:     true,
		KatexBlock:        true,
		IncompleteLinkURL: "streamdown:incomplete-link",
		WindowBytes:       16 * 1024,
	}
}

// Options configures a Stream.
type Options struct {
	Footnotes            FootnotesMode
	ReferenceDefinitions ReferenceDefinitionsMode
	Terminator           TerminatorOptions
	// MaxBufferBytes, when non-zero, caps how large the internal buffer is
	// allowed to grow before compaction trims its already-committed prefix.
	MaxBufferBytes int
}

// DefaultOptions matches the upstream crate's defaults.
func DefaultOptions() Options {
	return Options{
		Footnotes:            SingleBlock,
		ReferenceDefinitions: StabilityFirst,
		Terminator:           DefaultTerminatorOptions(),
		MaxBufferBytes:       0,
	}
}
