package block

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold performs Unicode case folding rather than a locale-specific lowering,
// matching CommonMark's locale-independent label comparison.
var referenceCaser = cases.Fold()

// normalizeReferenceLabel collapses internal whitespace runs to a single
// space and case-folds for Unicode-correct comparison, the way CommonMark
// reference labels are matched. Returns ok=false for empty or pathologically
// long labels.
func normalizeReferenceLabel(label string) (string, bool) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" || len(trimmed) > 200 {
		return "", false
	}

	var out strings.Builder
	out.Grow(len(trimmed))
	lastWasWS := false
	for _, r := range trimmed {
		if isUnicodeSpace(r) {
			lastWasWS = true
			continue
		}
		if lastWasWS && out.Len() > 0 {
			out.WriteByte(' ')
		}
		lastWasWS = false
		out.WriteRune(r)
	}
	if out.Len() == 0 {
		return "", false
	}
	return referenceCaser.String(out.String()), true
}

func isUnicodeSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return r == 0x00A0 || r == 0x2028 || r == 0x2029
}

// extractReferenceDefinitionLabel recognizes a single-line CommonMark-ish
// reference definition ("[label]: url"), up to 3 leading spaces. Multi-line
// definitions aren't supported; this stays conservative and streaming-friendly.
func extractReferenceDefinitionLabel(line string) (string, bool) {
	s := stripUpToThreeLeadingSpaces(line)
	if len(s) < 4 || s[0] != '[' {
		return "", false
	}
	close := strings.IndexByte(s, ']')
	if close < 0 || close == 1 {
		return "", false
	}
	if close+1 >= len(s) || s[close+1] != ':' {
		return "", false
	}
	label := s[1:close]
	if strings.HasPrefix(label, "^") {
		return "", false
	}
	return normalizeReferenceLabel(label)
}

// extractReferenceUsages is a best-effort, over-approximating extractor for
// reference-style link labels: [text][label], [label][], and the [label]
// shortcut form. False positives only cause extra invalidations, never missed
// ones, so it deliberately favors recall.
func extractReferenceUsages(text string) map[string]struct{} {
	out := make(map[string]struct{})
	i := 0
	for i < len(text) {
		if text[i] != '[' {
			i++
			continue
		}
		close1 := i + 1
		for close1 < len(text) && text[close1] != ']' {
			close1++
		}
		if close1 >= len(text) {
			break
		}
		label1 := text[i+1 : close1]
		if strings.HasPrefix(label1, "^") {
			i = close1 + 1
			continue
		}

		if byteAt(text, close1+1) == '(' {
			i = close1 + 1
			continue
		}
		if byteAt(text, close1+1) == ':' {
			i = close1 + 1
			continue
		}

		if byteAt(text, close1+1) == '[' {
			start2 := close1 + 2
			if start2 >= len(text) {
				break
			}
			close2 := start2
			for close2 < len(text) && text[close2] != ']' {
				close2++
			}
			if close2 >= len(text) {
				break
			}
			label2 := text[start2:close2]
			chosen := label1
			if strings.TrimSpace(label2) != "" {
				chosen = label2
			}
			if norm, ok := normalizeReferenceLabel(chosen); ok {
				out[norm] = struct{}{}
			}
			i = close2 + 1
			continue
		}

		if norm, ok := normalizeReferenceLabel(label1); ok {
			out[norm] = struct{}{}
		}
		i = close1 + 1
	}
	return out
}
