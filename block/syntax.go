package block

import "strings"

// CodeFenceHeader is the parsed opening line of a fenced code block.
type CodeFenceHeader struct {
	FenceChar byte
	FenceLen  int
	Info      string // trimmed info string, excluding the fence run
	Language  string // first whitespace-delimited token of Info, lowercase
}

func isSpaceOrTab(b byte) bool { return b == ' ' || b == '\t' }

func stripUpToThreeLeadingSpaces(s string) string {
	n := 0
	for n < 3 && strings.HasPrefix(s, " ") {
		s = s[1:]
		n++
	}
	return s
}

func isEmptyLine(line string) bool {
	return strings.TrimSpace(line) == ""
}

func isHeading(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	rest := trimmed[1:]
	return rest != "" && (rest[0] == ' ' || rest[0] == '\t' || rest[0] == '#')
}

// thematicBreakChar returns the repeated marker char of a thematic-break
// line, or 0 if the line is not a thematic break.
func thematicBreakChar(line string) byte {
	s := stripUpToThreeLeadingSpaces(line)
	s = strings.TrimRight(s, " \t\r\n")
	if s == "" {
		return 0
	}
	first := s[0]
	if first != '-' && first != '*' && first != '_' {
		return 0
	}
	count := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == first:
			count++
		case c == ' ' || c == '\t':
		default:
			return 0
		}
	}
	if count >= 3 {
		return first
	}
	return 0
}

func isThematicBreak(line string) bool { return thematicBreakChar(line) != 0 }

// setextUnderlineChar returns '=' or '-' if line looks like a setext
// underline, or 0 otherwise.
func setextUnderlineChar(line string) byte {
	s := stripUpToThreeLeadingSpaces(line)
	s = strings.TrimRight(s, " \t\r\n")
	if s == "" {
		return 0
	}
	first := s[0]
	if first != '=' && first != '-' {
		return 0
	}
	count := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == first:
			count++
		case c == ' ' || c == '\t':
		default:
			return 0
		}
	}
	if count >= 2 {
		return first
	}
	return 0
}

// fenceStart returns the fence char and run length if line opens a code fence.
func fenceStart(line string) (byte, int, bool) {
	s := stripUpToThreeLeadingSpaces(line)
	if len(s) < 3 {
		return 0, 0, false
	}
	ch := s[0]
	if ch != '`' && ch != '~' {
		return 0, 0, false
	}
	n := 0
	for n < len(s) && s[n] == ch {
		n++
	}
	if n < 3 {
		return 0, 0, false
	}
	return ch, n, true
}

func fenceEnd(line string, fenceChar byte, fenceLen int) bool {
	s := stripUpToThreeLeadingSpaces(line)
	trimmed := strings.TrimRight(s, " \t\r\n")
	if trimmed == "" {
		return false
	}
	n := 0
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != fenceChar {
			return false
		}
		n++
	}
	return n >= fenceLen
}

func isBlockquoteStart(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), ">")
}

func isListItemStart(line string) bool {
	s := strings.TrimLeft(line, " \t")
	if len(s) < 2 {
		return false
	}
	switch s[0] {
	case '-', '+', '*':
		return s[1] == ' ' || s[1] == '\t'
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 || i+1 >= len(s) {
			return false
		}
		return (s[i] == '.' || s[i] == ')') && (s[i+1] == ' ' || s[i+1] == '\t')
	default:
		return false
	}
}

func isListContinuation(line string) bool {
	if isListItemStart(line) {
		return true
	}
	if strings.HasPrefix(line, "\t") {
		return true
	}
	spaces := 0
	for i := 0; i < len(line); i++ {
		if line[i] != ' ' {
			break
		}
		spaces++
		if spaces >= 2 {
			return true
		}
	}
	return false
}

func isFootnoteDefinitionStart(line string) bool {
	s := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(s, "[^") && strings.Contains(s, "]:")
}

func isFootnoteContinuation(line string) bool {
	return strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t")
}

// isTableDelimiter reports whether line looks like a table delimiter row:
// only pipes, colons, dashes and whitespace, with at least one dash.
func isTableDelimiter(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return false
	}
	hasDash := false
	for _, c := range s {
		switch c {
		case '|', ':', ' ', '\t':
		case '-':
			hasDash = true
		default:
			return false
		}
	}
	return hasDash
}

func countDoubleDollars(line string) int {
	count := 0
	i := 0
	for i+1 < len(line) {
		if line[i] == '$' && line[i+1] == '$' {
			if i > 0 && line[i-1] == '\\' {
				i += 2
				continue
			}
			count++
			i += 2
			continue
		}
		i++
	}
	return count
}

func parseCodeFenceHeader(line string) (CodeFenceHeader, bool) {
	s := stripUpToThreeLeadingSpaces(line)
	if len(s) < 3 {
		return CodeFenceHeader{}, false
	}
	fenceChar := s[0]
	if fenceChar != '`' && fenceChar != '~' {
		return CodeFenceHeader{}, false
	}
	n := 0
	for n < len(s) && s[n] == fenceChar {
		n++
	}
	if n < 3 {
		return CodeFenceHeader{}, false
	}
	info := strings.TrimSpace(s[n:])
	language := ""
	if fields := strings.Fields(info); len(fields) > 0 {
		language = strings.ToLower(fields[0])
	}
	return CodeFenceHeader{FenceChar: fenceChar, FenceLen: n, Info: info, Language: language}, true
}

func parseCodeFenceHeaderFromBlock(text string) (CodeFenceHeader, bool) {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}
	return parseCodeFenceHeader(firstLine)
}

func isCodeFenceClosingLine(line string, fenceChar byte, fenceLen int) bool {
	s := stripUpToThreeLeadingSpaces(line)
	trimmed := strings.TrimRight(s, " \t")
	if trimmed == "" {
		return false
	}
	count := 0
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != fenceChar {
			return false
		}
		count++
	}
	return count >= fenceLen
}

// isListMarkerLinePrefix matches a line that is only a list marker followed
// by whitespace. It is unexported and nothing in this package calls it.
func isListMarkerLinePrefix(line string) bool {
	i := 0
	for i < len(line) && isSpaceOrTab(line[i]) {
		i++
	}
	if i >= len(line) {
		return false
	}
	marker := line[i]
	if marker != '-' && marker != '*' && marker != '+' {
		return false
	}
	i++
	if i >= len(line) {
		return false
	}
	hasWS := false
	for i < len(line) {
		if isSpaceOrTab(line[i]) {
			hasWS = true
			i++
			continue
		}
		return false
	}
	return hasWS
}
