package block

import (
	"golang.org/x/net/html"
	"strings"
)

// voidHTMLTags never have closing tags and never push onto the open-tag stack.
var voidHTMLTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// htmlBlockStartState reports whether line opens an HTML block: up to 3
// leading spaces followed by a tag-like `<...>` opener. It returns the
// initial (empty) tag stack and comment state; the first line's tags are
// folded in by the caller via updateHTMLBlockState, the same as every other
// line in the block.
func htmlBlockStartState(line string) ([]string, bool, bool) {
	s := stripUpToThreeLeadingSpaces(line)
	s = strings.TrimRight(s, " \t")
	if !strings.HasPrefix(s, "<") || len(s) < 3 {
		return nil, false, false
	}
	if !looksLikeHTMLTagStart(s) {
		return nil, false, false
	}
	return nil, false, true
}

// looksLikeHTMLTagStart rejects things that merely start with '<' but are
// not tag-like, e.g. autolinks such as "<https://example.com>": a tag name
// must consist only of ASCII letters, digits and '_'.
func looksLikeHTMLTagStart(s string) bool {
	z := html.NewTokenizer(strings.NewReader(s))
	switch z.Next() {
	case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
		name, _ := z.TagName()
		for _, c := range name {
			if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
				return false
			}
		}
		return len(name) > 0
	case html.CommentToken, html.DoctypeToken:
		return true
	default:
		return false
	}
}

// updateHTMLBlockState scans line for HTML tag opens/closes and comment
// spans, folding them into stack/inComment. A block is still open while
// inComment is true or stack is non-empty. Comment handling is done by hand
// (the tokenizer has no notion of "already inside a comment from a previous
// line"); individual tags are classified with the standard tokenizer so tag
// name and self-closing rules match a real HTML parser instead of regex.
func updateHTMLBlockState(line string, stack *[]string, inComment *bool) {
	s := line
	for {
		if *inComment {
			idx := strings.Index(s, "-->")
			if idx < 0 {
				return
			}
			*inComment = false
			s = s[idx+3:]
			continue
		}

		lt := strings.IndexByte(s, '<')
		if lt < 0 {
			return
		}
		after := s[lt:]

		if strings.HasPrefix(after, "<!--") {
			rest := after[4:]
			if idx := strings.Index(rest, "-->"); idx >= 0 {
				s = rest[idx+3:]
			} else {
				*inComment = true
				return
			}
			continue
		}

		z := html.NewTokenizer(strings.NewReader(after))
		tt := z.Next()
		raw := z.Raw()
		if tt == html.ErrorToken || len(raw) == 0 {
			s = after[1:]
			continue
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := strings.ToLower(string(name))
			if tt == html.StartTagToken && !voidHTMLTags[tag] {
				*stack = append(*stack, tag)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := strings.ToLower(string(name))
			if n := len(*stack); n > 0 && (*stack)[n-1] == tag {
				*stack = (*stack)[:n-1]
			}
		default:
			s = after[1:]
			continue
		}
		s = after[len(raw):]
	}
}
