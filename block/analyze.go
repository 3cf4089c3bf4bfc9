package block

import "strings"

// BlockAnalyzer derives caller-defined metadata from a block. Analyzers are
// invoked for every committed block exactly once and for the pending block
// on every update; returning ok=false means "no opinion about this block",
// not "empty metadata".
type BlockAnalyzer[M any] interface {
	AnalyzeBlock(b Block) (M, bool)
	Reset()
}

// BlockMeta pairs an analyzer's output with the block ID it was computed from.
type BlockMeta[M any] struct {
	ID   ID
	Meta M
}

// AnalyzedUpdate augments an Update with analyzer metadata for every block
// the analyzer had an opinion about.
type AnalyzedUpdate[M any] struct {
	Update       Update
	CommittedMeta []BlockMeta[M]
	PendingMeta   *BlockMeta[M]
}

// AnalyzedStream wraps a Stream and caches an analyzer's metadata by block
// ID, so callers can look up a committed block's meta without re-deriving it.
type AnalyzedStream[M any, A BlockAnalyzer[M]] struct {
	inner         *Stream
	analyzer      A
	committedMeta map[ID]M
}

// NewAnalyzedStream constructs an AnalyzedStream wrapping a fresh Stream
// built from opts, driven by analyzer.
func NewAnalyzedStream[M any, A BlockAnalyzer[M]](opts Options, analyzer A) *AnalyzedStream[M, A] {
	return &AnalyzedStream[M, A]{
		inner:         New(opts),
		analyzer:      analyzer,
		committedMeta: make(map[ID]M),
	}
}

func (s *AnalyzedStream[M, A]) Inner() *Stream   { return s.inner }
func (s *AnalyzedStream[M, A]) Analyzer() A      { return s.analyzer }

func (s *AnalyzedStream[M, A]) MetaFor(id ID) (M, bool) {
	m, ok := s.committedMeta[id]
	return m, ok
}

func (s *AnalyzedStream[M, A]) Append(chunk string) AnalyzedUpdate[M] {
	return s.analyzeUpdate(s.inner.Append(chunk))
}

func (s *AnalyzedStream[M, A]) Finalize() AnalyzedUpdate[M] {
	return s.analyzeUpdate(s.inner.Finalize())
}

func (s *AnalyzedStream[M, A]) Reset() {
	s.inner.Reset()
	s.analyzer.Reset()
	s.committedMeta = make(map[ID]M)
}

func (s *AnalyzedStream[M, A]) analyzeUpdate(update Update) AnalyzedUpdate[M] {
	out := AnalyzedUpdate[M]{Update: update}

	for _, b := range update.Committed {
		meta, ok := s.analyzer.AnalyzeBlock(b)
		if !ok {
			continue
		}
		s.committedMeta[b.ID] = meta
		out.CommittedMeta = append(out.CommittedMeta, BlockMeta[M]{ID: b.ID, Meta: meta})
	}

	if update.Pending != nil {
		if meta, ok := s.analyzer.AnalyzeBlock(*update.Pending); ok {
			out.PendingMeta = &BlockMeta[M]{ID: update.Pending.ID, Meta: meta}
		}
	}

	return out
}

// CodeFenceClass coarsely buckets a fence's info-string language, enough to
// pick a renderer (syntax highlighter vs. diagram vs. structured-data viewer)
// without hardcoding every language string at the call site.
type CodeFenceClass int

const (
	CodeFenceOther CodeFenceClass = iota
	CodeFenceMermaid
	CodeFenceJSON
)

type CodeFenceMeta struct {
	Info     string
	Language string
	HasLanguage bool
	Class    CodeFenceClass
}

// CodeFenceAnalyzer classifies CodeFence blocks by their info string.
type CodeFenceAnalyzer struct{}

func (CodeFenceAnalyzer) classifyLanguage(language string, has bool) CodeFenceClass {
	if !has {
		return CodeFenceOther
	}
	switch strings.ToLower(language) {
	case "mermaid":
		return CodeFenceMermaid
	case "json", "jsonc", "json5", "jsonl", "jsonp":
		return CodeFenceJSON
	default:
		return CodeFenceOther
	}
}

func (a CodeFenceAnalyzer) AnalyzeBlock(b Block) (CodeFenceMeta, bool) {
	if b.Kind != CodeFence {
		return CodeFenceMeta{}, false
	}
	header, ok := parseCodeFenceHeaderFromBlock(b.Raw)
	if !ok {
		return CodeFenceMeta{}, false
	}
	lang, hasLang := header.Language, header.Language != ""
	return CodeFenceMeta{
		Info:        header.Info,
		Language:    lang,
		HasLanguage: hasLang,
		Class:       a.classifyLanguage(lang, hasLang),
	}, true
}

func (CodeFenceAnalyzer) Reset() {}

type MathMeta struct {
	Balanced bool
}

// MathAnalyzer reports whether a MathBlock's `$$` delimiters are balanced.
type MathAnalyzer struct{}

func (MathAnalyzer) AnalyzeBlock(b Block) (MathMeta, bool) {
	if b.Kind != MathBlock {
		return MathMeta{}, false
	}
	return MathMeta{Balanced: countDoubleDollars(b.Raw)%2 == 0}, true
}

func (MathAnalyzer) Reset() {}

// BlockHint bit flags, combined in BlockHintMeta.Flags.
const (
	HintDisplayTransformed uint32 = 1 << iota
	HintUnclosedCodeFence
	HintUnbalancedMath
)

type BlockHintMeta struct {
	Flags uint32
}

func (m BlockHintMeta) LikelyIncomplete() bool { return m.Flags != 0 }
func (m BlockHintMeta) Has(flag uint32) bool   { return m.Flags&flag != 0 }

// BlockHintAnalyzer flags pending blocks whose display text required repair
// or that are still structurally unterminated, so a UI can show a subtle
// "still streaming" affordance without re-deriving the check itself.
type BlockHintAnalyzer struct{}

func lastNonEmptyLine(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i], true
		}
	}
	return "", false
}

func codeFenceIsClosed(text string) bool {
	header, ok := parseCodeFenceHeaderFromBlock(text)
	if !ok {
		return false
	}
	last, ok := lastNonEmptyLine(text)
	if !ok {
		return false
	}
	return isCodeFenceClosingLine(last, header.FenceChar, header.FenceLen)
}

func (BlockHintAnalyzer) AnalyzeBlock(b Block) (BlockHintMeta, bool) {
	if b.Status != Pending {
		return BlockHintMeta{}, false
	}

	var flags uint32
	if b.HasDisplay && b.Display != b.Raw {
		flags |= HintDisplayTransformed
	}

	switch b.Kind {
	case CodeFence:
		if !codeFenceIsClosed(b.Raw) {
			flags |= HintUnclosedCodeFence
		}
	case MathBlock:
		if countDoubleDollars(b.Raw)%2 == 1 {
			flags |= HintUnbalancedMath
		}
	}

	return BlockHintMeta{Flags: flags}, true
}

func (BlockHintAnalyzer) Reset() {}

// TaggedBlockMeta describes a custom opening/closing tag pair surrounding a
// block's content, as produced by TaggedBlockAnalyzer.
type TaggedBlockMeta struct {
	Tag        string
	Attributes string
	HasAttributes bool
	Closed     bool
	Content    string
}

// TaggedBlockAnalyzer recognizes blocks that open with a custom HTML-like
// tag (e.g. `<thinking>`), the companion read-side to TagBoundaryPlugin.
type TaggedBlockAnalyzer struct {
	AllowedTags     []string
	CaseInsensitive bool
}

func NewTaggedBlockAnalyzer() *TaggedBlockAnalyzer {
	return &TaggedBlockAnalyzer{CaseInsensitive: true}
}

func customTagNameChar(b byte) bool {
	return isTagNameChar(b)
}

func parseCustomOpeningTag(line string, caseInsensitive bool) (tag string, attrs string, hasAttrs bool, ok bool) {
	s := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(s, "<") || strings.HasPrefix(s, "</") {
		return "", "", false, false
	}
	gt := strings.IndexByte(s, '>')
	if gt < 0 {
		return "", "", false, false
	}
	inside := s[1:gt]
	if inside == "" || !isAlpha(inside[0]) {
		return "", "", false, false
	}
	nameEnd := 1
	for nameEnd < len(inside) && customTagNameChar(inside[nameEnd]) {
		nameEnd++
	}
	name := inside[:nameEnd]
	if caseInsensitive {
		name = strings.ToLower(name)
	}
	rest := strings.TrimSpace(inside[nameEnd:])
	return name, rest, rest != "", true
}

func isCustomClosingTag(line, tag string, caseInsensitive bool) bool {
	s := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(s, "</") {
		return false
	}
	gt := strings.IndexByte(s, '>')
	if gt < 0 {
		return false
	}
	inside := s[2:gt]
	if inside == "" || !isAlpha(inside[0]) {
		return false
	}
	nameEnd := 1
	for nameEnd < len(inside) && customTagNameChar(inside[nameEnd]) {
		nameEnd++
	}
	name := inside[:nameEnd]
	if caseInsensitive {
		name = strings.ToLower(name)
	}
	if name != tag {
		return false
	}
	return strings.TrimSpace(inside[nameEnd:]) == ""
}

func splitTagBlockContent(raw, tag string, caseInsensitive bool) (closed bool, content string) {
	lines := splitInclusive(raw, '\n')
	if len(lines) == 0 {
		return false, ""
	}
	lines = lines[1:]

	lastNonEmpty := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			lastNonEmpty = i
			break
		}
	}

	if lastNonEmpty >= 0 {
		l := strings.TrimSuffix(lines[lastNonEmpty], "\n")
		if isCustomClosingTag(l, tag, caseInsensitive) {
			closed = true
			lines = append(lines[:lastNonEmpty], lines[lastNonEmpty+1:]...)
		}
	}

	return closed, strings.Join(lines, "")
}

func splitInclusive(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func (a *TaggedBlockAnalyzer) AnalyzeBlock(b Block) (TaggedBlockMeta, bool) {
	firstLine := b.Raw
	if idx := strings.IndexByte(b.Raw, '\n'); idx >= 0 {
		firstLine = b.Raw[:idx]
	}
	tag, attrs, hasAttrs, ok := parseCustomOpeningTag(firstLine, a.CaseInsensitive)
	if !ok {
		return TaggedBlockMeta{}, false
	}

	if len(a.AllowedTags) > 0 {
		allowed := false
		for _, t := range a.AllowedTags {
			if a.CaseInsensitive {
				t = strings.ToLower(t)
			}
			if t == tag {
				allowed = true
				break
			}
		}
		if !allowed {
			return TaggedBlockMeta{}, false
		}
	}

	closed, content := splitTagBlockContent(b.Raw, tag, a.CaseInsensitive)
	return TaggedBlockMeta{Tag: tag, Attributes: attrs, HasAttributes: hasAttrs, Closed: closed, Content: content}, true
}

func (a *TaggedBlockAnalyzer) Reset() {}
