package block

import (
	"strings"

	"github.com/gobwas/glob"
)

// BoundaryUpdate is returned by BoundaryPlugin.Update to say whether the
// custom block stays open or closes at the end of the current line.
type BoundaryUpdate int

const (
	BoundaryContinue BoundaryUpdate = iota
	BoundaryClose
)

// BoundaryPlugin lets a caller claim application-specific "container-like"
// blocks (fenced directives, paired tags, ...) that the core state machine
// has no built-in notion of, and keep the stream inside that block for as
// long as the plugin says to. Intended for streaming LLM output where
// domain-specific markup shouldn't cause block-boundary flicker.
type BoundaryPlugin interface {
	// MatchesStart is a pure predicate: can line start this block? Must not
	// mutate plugin state.
	MatchesStart(line string) bool
	// Start is called exactly once when the current block is determined to
	// start at line.
	Start(line string)
	// Update is called for every line of the block, including the starting
	// line. Returning BoundaryClose ends the block after this line.
	Update(line string) BoundaryUpdate
	// Reset clears any in-progress state, called when the owning Stream resets.
	Reset()
}

func stripUpToThreeLeadingSpacesTrimEnd(s string) string {
	return strings.TrimRight(stripUpToThreeLeadingSpaces(s), " \t")
}

// FenceBoundaryPlugin recognizes a repeated marker char (e.g. `:::`) opening
// and closing a custom fenced block, the way Markdown code fences work but
// for an arbitrary single character.
type FenceBoundaryPlugin struct {
	FenceChar             byte
	MinLen                int
	RequireStandaloneEnd  bool
	openedLen             int
	hasOpenedLen          bool
	justStarted           bool
}

// NewFenceBoundaryPlugin builds a plugin that opens on fenceChar repeated at
// least minLen times and requires a standalone closing run by default.
func NewFenceBoundaryPlugin(fenceChar byte, minLen int) *FenceBoundaryPlugin {
	return &FenceBoundaryPlugin{FenceChar: fenceChar, MinLen: minLen, RequireStandaloneEnd: true}
}

// TripleColonBoundaryPlugin is the canonical `:::` fenced-directive plugin.
func TripleColonBoundaryPlugin() *FenceBoundaryPlugin {
	return NewFenceBoundaryPlugin(':', 3)
}

func (p *FenceBoundaryPlugin) fenceLenAtStart(line string) int {
	s := stripUpToThreeLeadingSpaces(line)
	n := 0
	for n < len(s) && s[n] == p.FenceChar {
		n++
	}
	return n
}

func (p *FenceBoundaryPlugin) isEndLine(line string, openedLen int) bool {
	s := stripUpToThreeLeadingSpacesTrimEnd(line)
	n := 0
	for n < len(s) && s[n] == p.FenceChar {
		n++
	}
	if n < openedLen {
		return false
	}
	if !p.RequireStandaloneEnd {
		return true
	}
	return strings.TrimSpace(s[n:]) == ""
}

func (p *FenceBoundaryPlugin) MatchesStart(line string) bool {
	return p.fenceLenAtStart(line) >= p.MinLen
}

func (p *FenceBoundaryPlugin) Start(line string) {
	n := p.fenceLenAtStart(line)
	if n >= p.MinLen {
		p.openedLen, p.hasOpenedLen, p.justStarted = n, true, true
	} else {
		p.hasOpenedLen, p.justStarted = false, false
	}
}

func (p *FenceBoundaryPlugin) Update(line string) BoundaryUpdate {
	if !p.hasOpenedLen {
		return BoundaryContinue
	}
	if p.justStarted {
		p.justStarted = false
		return BoundaryContinue
	}
	if p.isEndLine(line, p.openedLen) {
		p.hasOpenedLen = false
		return BoundaryClose
	}
	return BoundaryContinue
}

func (p *FenceBoundaryPlugin) Reset() {
	p.hasOpenedLen = false
	p.justStarted = false
}

// TagBoundaryPlugin recognizes a paired HTML-like tag, e.g. `<thinking>` ...
// `</thinking>`, as a custom block. The opening tag must be complete on a
// single line; the closing tag must be standalone unless
// RequireStandaloneEnd is false.
type TagBoundaryPlugin struct {
	Tag                  string
	CaseInsensitive      bool
	AllowAttributes      bool
	RequireStandaloneEnd bool
	active               bool
}

// NewTagBoundaryPlugin builds a case-insensitive, attribute-tolerant plugin
// for the given tag name.
func NewTagBoundaryPlugin(tag string) *TagBoundaryPlugin {
	return &TagBoundaryPlugin{Tag: tag, CaseInsensitive: true, AllowAttributes: true, RequireStandaloneEnd: true}
}

// ThinkingBoundaryPlugin matches the common `<thinking>...</thinking>` convention.
func ThinkingBoundaryPlugin() *TagBoundaryPlugin { return NewTagBoundaryPlugin("thinking") }

func isTagNameChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '-' || b == '_' || b == ':'
}

func (p *TagBoundaryPlugin) normTag(tag string) string {
	if p.CaseInsensitive {
		return strings.ToLower(tag)
	}
	return tag
}

func (p *TagBoundaryPlugin) matchesOpening(line string) bool {
	s := stripUpToThreeLeadingSpacesTrimEnd(line)
	if !strings.HasPrefix(s, "<") {
		return false
	}
	gt := strings.IndexByte(s, '>')
	if gt < 0 {
		return false
	}
	inside := s[1:gt]
	if strings.HasPrefix(inside, "/") || strings.HasPrefix(inside, "!") || strings.HasPrefix(inside, "?") {
		return false
	}
	if inside == "" || !isAlpha(inside[0]) {
		return false
	}
	nameEnd := 1
	for nameEnd < len(inside) && isTagNameChar(inside[nameEnd]) {
		nameEnd++
	}
	name := p.normTag(inside[:nameEnd])
	if name != p.normTag(p.Tag) {
		return false
	}
	rest := strings.TrimSpace(inside[nameEnd:])
	if rest == "" {
		return true
	}
	return p.AllowAttributes
}

func (p *TagBoundaryPlugin) matchesClosing(line string) bool {
	s := stripUpToThreeLeadingSpacesTrimEnd(line)
	if !strings.HasPrefix(s, "</") {
		return false
	}
	want := p.normTag(p.Tag)
	after := s[2:]
	if after == "" || !isAlpha(after[0]) {
		return false
	}
	nameEnd := 1
	for nameEnd < len(after) && isTagNameChar(after[nameEnd]) {
		nameEnd++
	}
	if p.normTag(after[:nameEnd]) != want {
		return false
	}
	rest := strings.TrimSpace(after[nameEnd:])
	if p.RequireStandaloneEnd {
		return rest == ">"
	}
	return strings.Contains(rest, ">")
}

func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func (p *TagBoundaryPlugin) MatchesStart(line string) bool { return p.matchesOpening(line) }
func (p *TagBoundaryPlugin) Start(string)                  { p.active = true }

func (p *TagBoundaryPlugin) Update(line string) BoundaryUpdate {
	if !p.active {
		return BoundaryContinue
	}
	if p.matchesClosing(line) {
		p.active = false
		return BoundaryClose
	}
	return BoundaryContinue
}

func (p *TagBoundaryPlugin) Reset() { p.active = false }

// ContainerBoundaryPlugin implements an Incremark-compatible `:::` nestable
// container: `::: name` (or `:::name`) opens, a bare `:::` (of matching or greater marker
// length) closes one nesting level, and unmatched names are ignored unless
// AllowedNames is empty.
//
// AllowedNames entries are glob patterns (e.g. "admon-*"), not just exact
// container names, letting a caller allow a whole family of directives
// without enumerating every one.
type ContainerBoundaryPlugin struct {
	Marker           byte
	MinMarkerLength  int
	AllowedNames     []string
	AllowAttributes  bool

	allowedGlobs      []glob.Glob
	compiledAllowed   bool
	baseMarkerLength  int
	hasBaseMarkerLen  bool
	depth             int
	justStarted       bool
}

// NewContainerBoundaryPlugin builds a plugin opening on marker repeated at
// least minMarkerLength times, e.g. NewContainerBoundaryPlugin(':', 3).
func NewContainerBoundaryPlugin(marker byte, minMarkerLength int) *ContainerBoundaryPlugin {
	return &ContainerBoundaryPlugin{Marker: marker, MinMarkerLength: minMarkerLength, AllowAttributes: true}
}

func isContainerNameStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}

func isContainerNameChar(b byte) bool {
	return isContainerNameStart(b) || b == '-'
}

type containerMatch struct {
	markerLength int
	isEnd        bool
}

func (p *ContainerBoundaryPlugin) ensureGlobs() {
	if p.compiledAllowed {
		return
	}
	p.compiledAllowed = true
	for _, pat := range p.AllowedNames {
		if g, err := glob.Compile(pat); err == nil {
			p.allowedGlobs = append(p.allowedGlobs, g)
		}
	}
}

func (p *ContainerBoundaryPlugin) nameAllowed(name string) bool {
	if len(p.AllowedNames) == 0 {
		return true
	}
	p.ensureGlobs()
	for _, g := range p.allowedGlobs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (p *ContainerBoundaryPlugin) detectContainer(line string) (containerMatch, bool) {
	s := strings.TrimSpace(line)
	i := 0
	for i < len(s) && s[i] == p.Marker {
		i++
	}
	if i < p.MinMarkerLength {
		return containerMatch{}, false
	}
	markerLength := i
	rest := strings.TrimRight(s[i:], " \t")
	if rest == "" {
		return containerMatch{markerLength: markerLength, isEnd: true}, true
	}
	if !isSpaceOrTab(rest[0]) && !isContainerNameStart(rest[0]) {
		return containerMatch{}, false
	}
	rest = strings.TrimLeft(rest, " \t")

	nameEnd := 0
	if len(rest) > 0 && isContainerNameStart(rest[0]) {
		nameEnd = 1
		for nameEnd < len(rest) && isContainerNameChar(rest[nameEnd]) {
			nameEnd++
		}
	}
	name := rest[:nameEnd]
	attrs := strings.TrimSpace(rest[nameEnd:])
	if attrs != "" && !p.AllowAttributes {
		return containerMatch{}, false
	}
	isEnd := name == "" && attrs == ""
	if !isEnd && !p.nameAllowed(name) {
		return containerMatch{}, false
	}
	return containerMatch{markerLength: markerLength, isEnd: isEnd}, true
}

func (p *ContainerBoundaryPlugin) MatchesStart(line string) bool {
	m, ok := p.detectContainer(line)
	return ok && !m.isEnd
}

func (p *ContainerBoundaryPlugin) Start(line string) {
	m, ok := p.detectContainer(line)
	if !ok || m.isEnd {
		p.hasBaseMarkerLen, p.depth, p.justStarted = false, 0, false
		return
	}
	p.baseMarkerLength, p.hasBaseMarkerLen = m.markerLength, true
	p.depth = 1
	p.justStarted = true
}

func (p *ContainerBoundaryPlugin) Update(line string) BoundaryUpdate {
	if p.depth == 0 || !p.hasBaseMarkerLen {
		return BoundaryContinue
	}
	if p.justStarted {
		p.justStarted = false
		return BoundaryContinue
	}
	m, ok := p.detectContainer(line)
	if !ok {
		return BoundaryContinue
	}
	if m.isEnd && m.markerLength >= p.baseMarkerLength {
		if p.depth > 0 {
			p.depth--
		}
		if p.depth == 0 {
			p.hasBaseMarkerLen = false
			return BoundaryClose
		}
		return BoundaryContinue
	}
	if !m.isEnd {
		p.depth++
	}
	return BoundaryContinue
}

func (p *ContainerBoundaryPlugin) Reset() {
	p.hasBaseMarkerLen = false
	p.depth = 0
	p.justStarted = false
}
