package block

import (
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// Stream incrementally segments a Markdown byte stream into committed
// blocks plus a single pending tail, stable regardless of how the input is
// split across Append calls.
type Stream struct {
	opts   Options
	buffer string
	lines  []line

	committed             []Block
	processedLine         int
	currentBlockStartLine int
	currentBlockID        ID
	nextBlockID           uint64
	currentMode           blockMode

	pendingDisplayCache    string
	hasPendingDisplayCache bool

	pendingTransformers []PendingTransformer
	boundaryPlugins     []BoundaryPlugin
	activeBoundaryPlugin int
	hasActiveBoundaryPlugin bool

	footnotesDetected bool
	footnoteScanTail  string
	pendingCR         bool

	referenceUsageIndex map[string]map[ID]struct{}

	logger *log.Logger
}

// New constructs a Stream with the given options. Pass DefaultOptions() for
// the built-in terminator behavior.
func New(opts Options) *Stream {
	return &Stream{
		opts:                opts,
		lines:               []line{{}},
		currentBlockID:      1,
		nextBlockID:         2,
		referenceUsageIndex: make(map[string]map[ID]struct{}),
		logger:              log.New(io.Discard),
	}
}

// NewStreamdownDefaults builds a Stream matching Streamdown's incomplete
// link/image conventions: the terminator leaves links and images alone, and
// the built-in pending transformers take over (placeholder URL for
// links, dropped entirely for images).
func NewStreamdownDefaults() *Stream {
	opts := DefaultOptions()
	opts.Terminator.Links = false
	opts.Terminator.Images = false

	s := New(opts)
	s.PushPendingTransformer(&IncompleteLinkPlaceholderTransformer{
		IncompleteLinkURL: opts.Terminator.IncompleteLinkURL,
		WindowBytes:       opts.Terminator.WindowBytes,
	})
	s.PushPendingTransformer(&IncompleteImageDropTransformer{
		WindowBytes: opts.Terminator.WindowBytes,
	})
	return s
}

// SetLogger replaces the stream's structured logger, used only for
// low-frequency diagnostic events (buffer compaction, which Append may
// trigger once per call); the per-line processing inside Append never logs.
func (s *Stream) SetLogger(logger *log.Logger) { s.logger = logger }

func (s *Stream) PushPendingTransformer(t PendingTransformer) {
	s.pendingTransformers = append(s.pendingTransformers, t)
	s.hasPendingDisplayCache = false
}

func (s *Stream) PushBoundaryPlugin(p BoundaryPlugin) {
	s.boundaryPlugins = append(s.boundaryPlugins, p)
	s.hasPendingDisplayCache = false
}

func (s *Stream) Buffer() string { return s.buffer }

// SnapshotBlocks returns every committed block followed by the current
// pending block, if any, without mutating stream state.
func (s *Stream) SnapshotBlocks() []Block {
	blocks := make([]Block, len(s.committed))
	copy(blocks, s.committed)
	if p, ok := s.pendingBlockSnapshot(); ok {
		blocks = append(blocks, p)
	}
	return blocks
}

func (s *Stream) startModeForLine(l string) blockMode {
	for idx, p := range s.boundaryPlugins {
		if p.MatchesStart(l) {
			return blockMode{tag: modeCustomBoundary, pluginIndex: idx}
		}
	}
	if isHeading(l) {
		return blockMode{tag: modeHeading}
	}
	if isThematicBreak(l) {
		return blockMode{tag: modeThematicBreak}
	}
	if ch, n, ok := fenceStart(l); ok {
		trimmed := strings.TrimLeft(l, " \t")
		idx := 0
		for idx < len(trimmed) && trimmed[idx] == ch {
			idx++
		}
		info := strings.TrimSpace(trimmed[idx:])
		return blockMode{tag: modeCodeFence, fenceChar: ch, fenceLen: n, fenceInfo: info}
	}
	if isFootnoteDefinitionStart(l) {
		return blockMode{tag: modeFootnoteDefinition}
	}
	if isBlockquoteStart(l) {
		return blockMode{tag: modeBlockQuote}
	}
	if isListItemStart(l) {
		return blockMode{tag: modeList}
	}
	if _, _, ok := htmlBlockStartState(l); ok {
		return blockMode{tag: modeHTMLBlock}
	}
	dollars := countDoubleDollars(l)
	if dollars%2 == 1 && strings.HasPrefix(strings.TrimLeft(l, " \t"), "$$") {
		return blockMode{tag: modeMathBlock}
	}
	return blockMode{tag: modeParagraph}
}

func (s *Stream) commitBlock(endLineInclusive int, update *Update) {
	if s.currentBlockStartLine >= len(s.lines) {
		return
	}
	if endLineInclusive < s.currentBlockStartLine {
		return
	}
	startOff := s.lines[s.currentBlockStartLine].start
	endOff := s.lines[endLineInclusive].endWithNewline()
	if endOff <= startOff {
		return
	}

	raw := s.buffer[startOff:endOff]
	if strings.TrimSpace(raw) == "" {
		s.advanceBlockCursor(endLineInclusive)
		return
	}

	block := Block{
		ID:     s.currentBlockID,
		Status: Committed,
		Kind:   s.currentMode.kind(),
		Raw:    raw,
	}
	s.pushCommittedBlock(block, update)
	s.advanceBlockCursor(endLineInclusive)
}

func (s *Stream) advanceBlockCursor(endLineInclusive int) {
	s.currentBlockStartLine = endLineInclusive + 1
	s.currentBlockID = ID(s.nextBlockID)
	s.nextBlockID++
	s.currentMode = blockMode{}
	s.hasActiveBoundaryPlugin = false
	s.hasPendingDisplayCache = false
}

func (s *Stream) pushCommittedBlock(block Block, update *Update) {
	if block.Kind != CodeFence && strings.Contains(block.Raw, "[") {
		used := extractReferenceUsages(block.Raw)
		for label := range used {
			ids, ok := s.referenceUsageIndex[label]
			if !ok {
				ids = make(map[ID]struct{})
				s.referenceUsageIndex[label] = ids
			}
			ids[block.ID] = struct{}{}
		}
	}

	if s.opts.ReferenceDefinitions == RefsInvalidate && block.Kind != CodeFence && strings.Contains(block.Raw, "]:") {
		invalidated := make(map[ID]struct{})
		for _, l := range strings.Split(block.Raw, "\n") {
			label, ok := extractReferenceDefinitionLabel(l)
			if !ok {
				continue
			}
			for id := range s.referenceUsageIndex[label] {
				if id != block.ID {
					invalidated[id] = struct{}{}
				}
			}
		}
		if len(invalidated) > 0 {
			ids := make([]ID, 0, len(invalidated))
			for id := range invalidated {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			update.Invalidated = append(update.Invalidated, ids...)
		}
	}

	s.committed = append(s.committed, block)
	update.Committed = append(update.Committed, block)
}

func (s *Stream) maybeCommitSingleLine(lineIndex int, update *Update) {
	switch s.currentMode.tag {
	case modeHeading, modeThematicBreak:
		s.commitBlock(lineIndex, update)
	}
}

func (s *Stream) processLine(lineIndex int, update *Update) {
	if !s.lines[lineIndex].hasNewline {
		return
	}
	if s.opts.Footnotes == SingleBlock && s.footnotesDetected {
		return
	}

	if lineIndex == s.currentBlockStartLine {
		s.currentMode = s.startModeForLine(s.lineStr(lineIndex))
		s.maybeCommitSingleLine(lineIndex, update)
		s.updateModeWithLine(lineIndex, update)
		return
	}

	prev := s.lineStr(lineIndex - 1)
	curr := s.lineStr(lineIndex)
	boundary := s.isNewBlockBoundary(prev, curr, lineIndex)

	if boundary {
		s.commitBlock(lineIndex-1, update)
		s.currentMode = s.startModeForLine(curr)
		s.maybeCommitSingleLine(lineIndex, update)
		s.updateModeWithLine(lineIndex, update)
		return
	}

	s.updateModeWithLine(lineIndex, update)
}

func (s *Stream) processIncompleteTailBoundary(update *Update) {
	if len(s.lines) < 2 {
		return
	}
	last := len(s.lines) - 1
	if s.lines[last].hasNewline {
		return
	}
	if !s.lines[last-1].hasNewline {
		return
	}
	if s.opts.Footnotes == SingleBlock && s.footnotesDetected {
		return
	}

	prev := s.lineStr(last - 1)
	curr := s.lineStr(last)
	if s.isNewBlockBoundary(prev, curr, last) {
		s.commitBlock(last-1, update)
		s.currentMode = s.startModeForLine(curr)
	} else if s.currentBlockStartLine == last {
		// The pending block starts on this unterminated line; classify it
		// provisionally so the pending Kind is meaningful. processLine
		// reclassifies it once the line is complete.
		s.currentMode = s.startModeForLine(curr)
	}
}

func (s *Stream) isNewBlockBoundary(prev, curr string, currLineIndex int) bool {
	switch s.currentMode.tag {
	case modeCodeFence, modeCustomBoundary:
		return false
	case modeMathBlock:
		if s.currentMode.mathOpenCount%2 == 1 {
			return false
		}
	case modeHTMLBlock:
		if s.currentMode.htmlComment || len(s.currentMode.htmlStack) > 0 {
			return false
		}
	case modeFootnoteDefinition:
		if isEmptyLine(curr) || isFootnoteContinuation(curr) {
			return false
		}
	}

	if isEmptyLine(prev) && !isEmptyLine(curr) {
		if s.currentMode.tag == modeList && isListContinuation(curr) {
			return false
		}
		if s.currentMode.tag == modeBlockQuote && isBlockquoteStart(curr) {
			return false
		}
		return true
	}

	if s.currentMode.tag == modeParagraph || s.currentMode.tag == modeUnknown {
		if setextUnderlineChar(curr) != 0 && !isEmptyLine(prev) && s.currentBlockStartLine+1 == currLineIndex {
			return false
		}
	}

	if isHeading(curr) || isThematicBreak(curr) {
		return true
	}
	if _, _, ok := fenceStart(curr); ok {
		return true
	}
	for _, p := range s.boundaryPlugins {
		if p.MatchesStart(curr) {
			return true
		}
	}
	if isFootnoteDefinitionStart(curr) {
		return true
	}
	if isBlockquoteStart(curr) && !isBlockquoteStart(prev) && s.currentMode.tag != modeBlockQuote {
		return true
	}
	if isListItemStart(curr) && !isListItemStart(prev) && s.currentMode.tag != modeList {
		return true
	}

	if s.currentMode.tag == modeParagraph || s.currentMode.tag == modeUnknown {
		if isTableDelimiter(curr) && strings.Contains(prev, "|") {
			if currLineIndex >= 1 && s.currentBlockStartLine < currLineIndex-1 {
				return true
			}
		}
	}

	return false
}

func (s *Stream) updateModeWithLine(lineIndex int, update *Update) {
	l := s.lineStr(lineIndex)

	switch s.currentMode.tag {
	case modeUnknown:
		s.currentMode = s.startModeForLine(l)
		s.maybeCommitSingleLine(lineIndex, update)

	case modeCodeFence:
		if fenceEnd(l, s.currentMode.fenceChar, s.currentMode.fenceLen) {
			s.commitBlock(lineIndex, update)
		}

	case modeCustomBoundary:
		idx := s.currentMode.pluginIndex
		if idx >= len(s.boundaryPlugins) {
			return
		}
		s.activeBoundaryPlugin, s.hasActiveBoundaryPlugin = idx, true
		if !s.currentMode.started {
			s.boundaryPlugins[idx].Start(l)
			s.currentMode.started = true
		}
		if s.boundaryPlugins[idx].Update(l) == BoundaryClose {
			s.hasActiveBoundaryPlugin = false
			s.commitBlock(lineIndex, update)
		}

	case modeMathBlock:
		s.currentMode.mathOpenCount += countDoubleDollars(l)
		if s.currentMode.mathOpenCount%2 == 0 {
			s.commitBlock(lineIndex, update)
		}

	case modeParagraph:
		if setextUnderlineChar(l) != 0 && s.currentBlockStartLine+1 == lineIndex && lineIndex > 0 {
			prev := s.lineStr(lineIndex - 1)
			if !isEmptyLine(prev) {
				s.currentMode = blockMode{tag: modeHeading}
				s.commitBlock(lineIndex, update)
				return
			}
		}
		if isTableDelimiter(l) && lineIndex > 0 {
			prev := s.lineStr(lineIndex - 1)
			if strings.Contains(prev, "|") {
				s.currentMode = blockMode{tag: modeTable}
			}
		}

	case modeHTMLBlock:
		updateHTMLBlockState(l, &s.currentMode.htmlStack, &s.currentMode.htmlComment)
		if !s.currentMode.htmlComment && len(s.currentMode.htmlStack) == 0 {
			s.commitBlock(lineIndex, update)
		}

	case modeTable, modeFootnoteDefinition, modeList, modeBlockQuote, modeHeading, modeThematicBreak:
		// Resolved by boundary detection on the next line's arrival.
	}
}

func (s *Stream) pendingBlockSnapshot() (Block, bool) {
	if s.opts.Footnotes == SingleBlock && s.footnotesDetected {
		raw := s.buffer
		if raw == "" {
			return Block{}, false
		}
		display := s.transformPendingDisplay(Unknown, raw, terminateMarkdown(raw, s.opts.Terminator))
		return Block{ID: 1, Status: Pending, Kind: Unknown, Raw: raw, Display: display, HasDisplay: true}, true
	}

	if s.currentBlockStartLine >= len(s.lines) {
		return Block{}, false
	}
	startOff := s.lines[s.currentBlockStartLine].start
	if startOff >= len(s.buffer) {
		return Block{}, false
	}
	raw := s.buffer[startOff:]
	if raw == "" {
		return Block{}, false
	}
	kind := s.currentMode.kind()
	display := terminateMarkdown(raw, s.opts.Terminator)
	display = s.maybeRepairFencedJSONDisplay(raw, display)
	display = s.transformPendingDisplay(kind, raw, display)
	return Block{ID: s.currentBlockID, Status: Pending, Kind: kind, Raw: raw, Display: display, HasDisplay: true}, true
}

func (s *Stream) currentPendingBlock() (Block, bool) {
	if s.hasPendingDisplayCache {
		if s.opts.Footnotes == SingleBlock && s.footnotesDetected {
			raw := s.buffer
			if raw == "" {
				return Block{}, false
			}
			return Block{ID: 1, Status: Pending, Kind: Unknown, Raw: raw, Display: s.pendingDisplayCache, HasDisplay: true}, true
		}

		if s.currentBlockStartLine >= len(s.lines) {
			return Block{}, false
		}
		startOff := s.lines[s.currentBlockStartLine].start
		if startOff >= len(s.buffer) {
			return Block{}, false
		}
		raw := s.buffer[startOff:]
		if raw == "" {
			return Block{}, false
		}
		return Block{ID: s.currentBlockID, Status: Pending, Kind: s.currentMode.kind(), Raw: raw, Display: s.pendingDisplayCache, HasDisplay: true}, true
	}

	p, ok := s.pendingBlockSnapshot()
	if ok {
		s.pendingDisplayCache = p.Display
		s.hasPendingDisplayCache = true
	}
	return p, ok
}

// maybeRepairFencedJSONDisplay is a deliberate no-op: no JSON-repair library
// is wired into this module (see the module's design notes), matching the
// upstream build's "jsonrepair" feature left disabled.
func (s *Stream) maybeRepairFencedJSONDisplay(_raw, display string) string {
	return display
}

func (s *Stream) transformPendingDisplay(kind Kind, raw, display string) string {
	if len(s.pendingTransformers) == 0 {
		return display
	}
	for _, t := range s.pendingTransformers {
		if next, ok := t.Transform(PendingTransformInput{Kind: kind, Raw: raw, Display: display}); ok {
			display = next
		}
	}
	return display
}

// Append feeds chunk into the stream and returns what changed: newly
// committed blocks, the refreshed pending block, and any invalidated
// already-committed blocks. chunk boundaries never affect the result:
// feeding "ab\ncd" in one call or as "a","b\nc","d" produces the same blocks.
func (s *Stream) Append(chunk string) Update {
	var update Update
	if chunk == "" && !s.pendingCR {
		if p, ok := s.currentPendingBlock(); ok {
			update.Pending = &p
		}
		return update
	}

	chunk = s.normalizeNewlines(chunk)

	if !s.footnotesDetected {
		combined := s.footnoteScanTail + chunk
		if detectFootnotes(combined) {
			s.footnotesDetected = true
			if s.opts.Footnotes == SingleBlock {
				update.Reset = true
			}
		} else {
			const maxTail = footnoteScanTailBytes
			if len(combined) <= maxTail {
				s.footnoteScanTail = combined
			} else {
				s.footnoteScanTail = combined[len(combined)-maxTail:]
			}
		}
	}

	s.appendToLines(chunk)
	s.hasPendingDisplayCache = false

	for s.processedLine < len(s.lines) {
		if !s.lines[s.processedLine].hasNewline {
			break
		}
		s.processLine(s.processedLine, &update)
		s.processedLine++
	}

	s.processIncompleteTailBoundary(&update)
	s.maybeCompactBuffer()

	if p, ok := s.currentPendingBlock(); ok {
		update.Pending = &p
	}
	return update
}

// Finalize flushes any remaining pending content as a final committed
// block. Call it after the last Append, when the caller knows no more chunks
// are coming; calling it again with no Append in between returns an empty
// Update.
func (s *Stream) Finalize() Update {
	var update Update

	if s.pendingCR {
		s.appendToLines("\n")
		s.pendingCR = false
	}

	if s.opts.Footnotes == SingleBlock && s.footnotesDetected {
		if s.buffer != "" && strings.TrimSpace(s.buffer) != "" {
			block := Block{ID: 1, Status: Committed, Kind: Unknown, Raw: s.buffer}
			s.pushCommittedBlock(block, &update)
		}
		s.buffer = ""
		return update
	}

	if s.currentBlockStartLine < len(s.lines) {
		endLine := len(s.lines) - 1
		startOff := s.lines[s.currentBlockStartLine].start
		endOff := len(s.buffer)
		if endOff > startOff {
			raw := s.buffer[startOff:endOff]
			if strings.TrimSpace(raw) == "" {
				return update
			}
			block := Block{ID: s.currentBlockID, Status: Committed, Kind: s.currentMode.kind(), Raw: raw}
			s.pushCommittedBlock(block, &update)
			s.currentBlockStartLine = endLine + 1
		}
	}
	return update
}

// Reset discards all buffered and committed state, as if the Stream were
// newly constructed; registered transformers and plugins are reset in place
// rather than dropped.
func (s *Stream) Reset() {
	s.buffer = ""
	s.lines = []line{{}}
	s.committed = nil
	s.processedLine = 0
	s.currentBlockStartLine = 0
	s.currentBlockID = 1
	s.nextBlockID = 2
	s.currentMode = blockMode{}
	s.pendingDisplayCache = ""
	s.hasPendingDisplayCache = false
	for _, t := range s.pendingTransformers {
		t.Reset()
	}
	for _, p := range s.boundaryPlugins {
		p.Reset()
	}
	s.hasActiveBoundaryPlugin = false
	s.footnotesDetected = false
	s.footnoteScanTail = ""
	s.pendingCR = false
	s.referenceUsageIndex = make(map[string]map[ID]struct{})
}
