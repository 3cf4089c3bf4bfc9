// Package blackfriday adapts a block.Stream's committed/pending blocks into
// parsed blackfriday AST nodes, re-parsing a block only when its raw text
// changes or a reference-definition invalidation says it must.
package blackfriday

import (
	"sort"
	"strings"

	"github.com/russross/blackfriday"

	"github.com/omgpointless/mdstream/block"
)

// DefaultExtensions mirrors the flag set the teacher's proof-of-concept
// journaling tool used, minus DefinitionLists/Tables which it had disabled.
const DefaultExtensions = 0 |
	blackfriday.NoIntraEmphasis |
	blackfriday.FencedCode |
	blackfriday.Autolink |
	blackfriday.Strikethrough |
	blackfriday.SpaceHeadings |
	blackfriday.HeadingIDs |
	blackfriday.BackslashLineBreak

// Options configures an Adapter.
type Options struct {
	Extensions blackfriday.Extensions
	// PreferDisplayForPending parses a pending block's Display (terminator
	// output) instead of Raw, so downstream rendering never sees a dangling
	// emphasis marker or unclosed fence.
	PreferDisplayForPending bool
}

// DefaultOptions matches DefaultExtensions with display-preference on.
func DefaultOptions() Options {
	return Options{Extensions: DefaultExtensions, PreferDisplayForPending: true}
}

// Adapter parses committed blocks into blackfriday.Node trees, caching the
// result per block ID, and folds in any reference definitions seen so far
// so a block that uses `[label]` renders correctly even when `[label]:`
// arrives in a later block.
type Adapter struct {
	opts Options
	md   *blackfriday.Markdown

	committedRaw   map[block.ID]string
	committedCache map[block.ID]*blackfriday.Node

	referenceDefinitions map[string]string
}

// New builds an Adapter. Pass DefaultOptions() for the teacher-equivalent
// extension set.
func New(opts Options) *Adapter {
	return &Adapter{
		opts:                 opts,
		md:                   blackfriday.New(blackfriday.WithExtensions(opts.Extensions)),
		committedRaw:         make(map[block.ID]string),
		committedCache:       make(map[block.ID]*blackfriday.Node),
		referenceDefinitions: make(map[string]string),
	}
}

// Clear drops all cached parses and collected reference definitions.
func (a *Adapter) Clear() {
	a.committedRaw = make(map[block.ID]string)
	a.committedCache = make(map[block.ID]*blackfriday.Node)
	a.referenceDefinitions = make(map[string]string)
}

// ApplyUpdate folds a block.Update into the adapter: newly committed blocks
// are parsed and cached, invalidated blocks are re-parsed from their cached
// raw text, and a Reset update clears everything first.
func (a *Adapter) ApplyUpdate(update block.Update) {
	if update.Reset {
		a.Clear()
	}
	for _, b := range update.Committed {
		a.committedRaw[b.ID] = b.Raw
		a.collectReferenceDefinitions(b.Raw)
		a.committedCache[b.ID] = a.parseWithDefinitions(b.Raw)
	}

	for _, id := range update.Invalidated {
		raw, ok := a.committedRaw[id]
		if !ok {
			continue
		}
		a.committedCache[id] = a.parseWithDefinitions(raw)
	}
}

// CommittedNode returns the cached parse for a committed block, if any.
func (a *Adapter) CommittedNode(id block.ID) (*blackfriday.Node, bool) {
	n, ok := a.committedCache[id]
	return n, ok
}

// ParsePending parses the current pending block on demand; it is never
// cached since the pending block changes on every Append.
func (a *Adapter) ParsePending(pending block.Block) *blackfriday.Node {
	input := pending.Raw
	if a.opts.PreferDisplayForPending && pending.HasDisplay {
		input = pending.Display
	}
	return a.parseWithDefinitions(input)
}

func (a *Adapter) parseWithDefinitions(raw string) *blackfriday.Node {
	if len(a.referenceDefinitions) == 0 {
		return a.md.Parse([]byte(raw))
	}
	var b strings.Builder
	b.WriteString(a.joinedDefinitions())
	b.WriteString("\n\n")
	b.WriteString(raw)
	return a.md.Parse([]byte(b.String()))
}

func (a *Adapter) joinedDefinitions() string {
	labels := make([]string, 0, len(a.referenceDefinitions))
	for label := range a.referenceDefinitions {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	lines := make([]string, len(labels))
	for i, label := range labels {
		lines[i] = a.referenceDefinitions[label]
	}
	return strings.Join(lines, "\n")
}

func (a *Adapter) collectReferenceDefinitions(raw string) {
	for _, l := range strings.Split(raw, "\n") {
		label, defLine, ok := extractReferenceDefinition(l)
		if !ok {
			continue
		}
		a.referenceDefinitions[label] = defLine
	}
}

// extractReferenceDefinition matches up to 3 leading spaces then "[label]:",
// mirroring block's own reference-definition recognizer so both stay in
// sync without importing the unexported half of that package.
func extractReferenceDefinition(line string) (label, defLine string, ok bool) {
	s := line
	spaces := 0
	for spaces < 3 && strings.HasPrefix(s, " ") {
		s = s[1:]
		spaces++
	}
	if len(s) < 4 || s[0] != '[' {
		return "", "", false
	}
	close := strings.IndexByte(s, ']')
	if close < 0 || close == 1 {
		return "", "", false
	}
	if close+1 >= len(s) || s[close+1] != ':' {
		return "", "", false
	}
	rawLabel := s[1:close]
	if strings.HasPrefix(rawLabel, "^") {
		return "", "", false
	}
	norm, ok := normalizeLabel(rawLabel)
	if !ok {
		return "", "", false
	}
	return norm, strings.TrimRight(line, " \t"), true
}

func normalizeLabel(label string) (string, bool) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" || len(trimmed) > 200 {
		return "", false
	}
	var out strings.Builder
	lastWS := false
	for _, r := range trimmed {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			lastWS = true
			continue
		}
		if lastWS && out.Len() > 0 {
			out.WriteByte(' ')
		}
		lastWS = false
		out.WriteRune(r)
	}
	if out.Len() == 0 {
		return "", false
	}
	return strings.ToLower(out.String()), true
}
