package block

import (
	"strings"
	"unicode"
)

// terminateMarkdown rewrites the trailing window of a pending block's text
// to close unbalanced inline Markdown (emphasis, inline code, strikethrough,
// math, links/images) so a downstream renderer never sees a half-open span.
// It is a pure function of its input: same text and options always produce
// the same output, and it only ever touches the tail window, never the
// stable prefix.
func terminateMarkdown(text string, opts TerminatorOptions) string {
	if text == "" {
		return ""
	}

	text = trimTrailingSingleSpace(text)
	window, offset := tailWindowStr(text, opts.WindowBytes)
	prefix := text[:offset]
	tail := window

	if opts.SetextHeadings {
		tail = applySetextHeadingProtection(tail)
	}

	if isInsideIncompleteMultilineCodeBlock(tail) {
		return prefix + tail
	}

	if opts.Links || opts.Images {
		if fixed, ok := fixIncompleteLinkOrImage(tail, opts.IncompleteLinkURL, opts.Links, opts.Images); ok {
			if strings.HasSuffix(fixed, "]("+opts.IncompleteLinkURL+")") {
				return prefix + fixed
			}
			tail = fixed
		}
	}

	if opts.Emphasis {
		tail = handleIncompleteBoldItalic(tail)
		tail = handleIncompleteBold(tail)
		tail = handleIncompleteDoubleUnderscoreItalic(tail)
		tail = handleIncompleteSingleAsteriskItalic(tail)
		tail = handleIncompleteSingleUnderscoreItalic(tail)
	}
	if opts.InlineCode {
		tail = balanceInlineCode(tail)
	}
	if opts.Strikethrough {
		tail = balanceStrikethrough(tail)
	}
	if opts.KatexBlock {
		tail = balanceKatexBlock(tail)
	}

	return prefix + tail
}

func isInsideIncompleteMultilineCodeBlock(text string) bool {
	return strings.Contains(text, "\n") && countSubstring(text, "```")%2 == 1
}

func countSubstring(s, sub string) int {
	count, from := 0, 0
	for {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			return count
		}
		count++
		from += i + len(sub)
	}
}

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func whitespaceOrMarkersOnly(s string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		switch r {
		case '_', '~', '*', '`':
			continue
		}
		return false
	}
	return true
}

func isPartOfTripleBacktick(text string, i int) bool {
	if i+2 < len(text) && text[i:i+3] == "```" {
		return true
	}
	if i >= 1 && i+1 < len(text) && text[i-1:i+2] == "```" {
		return true
	}
	if i >= 2 && text[i-2:i+1] == "```" {
		return true
	}
	return false
}

func isInsideCodeBlock(text string, position int) bool {
	inInline, inMultiline := false, false
	i := 0
	for i < position && i < len(text) {
		if i+2 < len(text) && text[i:i+3] == "```" {
			inMultiline = !inMultiline
			i += 3
			continue
		}
		if !inMultiline && text[i] == '`' {
			inInline = !inInline
		}
		i++
	}
	return inInline || inMultiline
}

func isWithinMathBlock(text string, position int) bool {
	inInline, inBlock := false, false
	i := 0
	for i < position && i < len(text) {
		if text[i] == '\\' && i+1 < len(text) && text[i+1] == '$' {
			i += 2
			continue
		}
		if text[i] == '$' {
			if i+1 < len(text) && text[i+1] == '$' {
				inBlock = !inBlock
				inInline = false
				i += 2
				continue
			}
			if !inBlock {
				inInline = !inInline
			}
		}
		i++
	}
	return inInline || inBlock
}

func isWithinLinkOrImageURL(text string, position int) bool {
	i := position
	for i > 0 {
		i--
		switch text[i] {
		case '\n':
			return false
		case ')':
			return false
		case '(':
			if i > 0 && text[i-1] == ']' {
				for j := position; j < len(text); j++ {
					if text[j] == ')' {
						return true
					}
					if text[j] == '\n' {
						return false
					}
				}
			}
			return false
		}
	}
	return false
}

func trimTrailingSingleSpace(text string) string {
	if strings.HasSuffix(text, " ") && !strings.HasSuffix(text, "  ") {
		return text[:len(text)-1]
	}
	return text
}

func applySetextHeadingProtection(text string) string {
	trimmed := trimTrailingSingleSpace(text)
	lastNL := strings.LastIndexByte(trimmed, '\n')
	if lastNL < 0 {
		return trimmed
	}

	prev := trimmed[:lastNL]
	if prev == "" || strings.HasSuffix(prev, "\n") {
		return trimmed
	}

	lastLine := trimmed[lastNL+1:]
	trimmedLastLine := strings.TrimSpace(lastLine)

	isAmbiguousDashes := trimmedLastLine == "-" || trimmedLastLine == "--"
	isAmbiguousEquals := trimmedLastLine == "=" || trimmedLastLine == "=="
	hasTrailingWS := strings.HasSuffix(lastLine, " ") || strings.HasSuffix(lastLine, "\t")

	if (isAmbiguousDashes || isAmbiguousEquals) && !hasTrailingWS {
		idx := strings.LastIndexByte(prev, '\n')
		prevLine := prev[idx+1:]
		if strings.TrimSpace(prevLine) != "" {
			return trimmed + "​"
		}
	}

	return trimmed
}

func findMatchingOpenBracket(text string, closeIndex int) (int, bool) {
	depth := 1
	i := closeIndex
	for i > 0 {
		i--
		switch text[i] {
		case ']':
			depth++
		case '[':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func findMatchingCloseBracket(text string, openIndex int) (int, bool) {
	depth := 1
	for i := openIndex + 1; i < len(text); i++ {
		switch text[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// fixIncompleteLinkOrImage repairs a dangling `[text](url` or `[text`/`![alt`
// span at the end of text. ok is false when nothing needed fixing.
func fixIncompleteLinkOrImage(text, incompleteURL string, linksEnabled, imagesEnabled bool) (string, bool) {
	search := len(text)
	for {
		idx := strings.LastIndex(text[:search], "](")
		if idx < 0 {
			break
		}
		search = idx
		if isInsideCodeBlock(text, idx) {
			continue
		}
		after := text[idx+2:]
		if strings.Contains(after, ")") {
			continue
		}
		openBracket, ok := findMatchingOpenBracket(text, idx)
		if !ok {
			continue
		}
		if isInsideCodeBlock(text, openBracket) {
			continue
		}
		isImage := openBracket > 0 && text[openBracket-1] == '!'
		if isImage && !imagesEnabled {
			continue
		}
		if !isImage && !linksEnabled {
			continue
		}
		start := openBracket
		if isImage {
			start = openBracket - 1
		}
		before := text[:start]
		if isImage {
			return before, true
		}
		linkText := text[openBracket+1 : idx]
		return before + "[" + linkText + "](" + incompleteURL + ")", true
	}

	i := len(text)
	for i > 0 {
		i--
		if text[i] != '[' || isInsideCodeBlock(text, i) {
			continue
		}
		isImage := i > 0 && text[i-1] == '!'
		openIndex := i
		if isImage {
			openIndex = i - 1
		}
		if isImage && !imagesEnabled {
			continue
		}
		if !isImage && !linksEnabled {
			continue
		}

		afterOpen := text[i+1:]
		if !strings.Contains(afterOpen, "]") {
			if isImage {
				return text[:openIndex], true
			}
			return text + "](" + incompleteURL + ")", true
		}
		if _, ok := findMatchingCloseBracket(text, i); !ok {
			if isImage {
				return text[:openIndex], true
			}
			return text + "](" + incompleteURL + ")", true
		}
	}

	return "", false
}

func isListMarkerAt(text string, byteIndex int) bool {
	i := byteIndex
	for i > 0 && text[i-1] != '\n' {
		i--
	}
	lineStart := i
	j := lineStart
	spaces := 0
	for j < len(text) && spaces < 3 && text[j] == ' ' {
		spaces++
		j++
	}
	if j >= len(text) {
		return false
	}
	if j == byteIndex && (text[j] == '*' || text[j] == '+' || text[j] == '-') {
		return j+1 < len(text) && isSpaceOrTab(text[j+1])
	}
	if j <= byteIndex && byteIndex < len(text) && isDigit(text[byteIndex]) {
		k := j
		for k < len(text) && isDigit(text[k]) {
			k++
		}
		if k > j && k == byteIndex && k < len(text) && (text[k] == '.' || text[k] == ')') {
			return k+1 < len(text) && isSpaceOrTab(text[k+1])
		}
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isHorizontalRuleLine(text string, markerIndex int, marker byte) bool {
	lineStart := markerIndex
	for lineStart > 0 && text[lineStart-1] != '\n' {
		lineStart--
	}
	lineEnd := markerIndex
	for lineEnd < len(text) && text[lineEnd] != '\n' {
		lineEnd++
	}
	line := text[lineStart:lineEnd]
	count := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case marker:
			count++
		case ' ', '\t':
		default:
			return false
		}
	}
	return count >= 3
}

func countTripleAsterisks(text string) int {
	count, consecutive := 0, 0
	for i := 0; i < len(text); i++ {
		if text[i] == '*' {
			consecutive++
			continue
		}
		if consecutive >= 3 {
			count += consecutive / 3
		}
		consecutive = 0
	}
	if consecutive >= 3 {
		count += consecutive / 3
	}
	return count
}

func byteAt(text string, i int) byte {
	if i < 0 || i >= len(text) {
		return 0
	}
	return text[i]
}

func shouldSkipAsterisk(text string, index int) bool {
	prev := byteAt(text, index-1)
	next := byteAt(text, index+1)

	if prev == '\\' {
		return true
	}
	if isInsideCodeBlock(text, index) {
		return true
	}
	if strings.Contains(text, "$") && isWithinMathBlock(text, index) {
		return true
	}
	if prev != '*' && next == '*' {
		nextNext := byteAt(text, index+2)
		return nextNext != '*'
	}
	if prev == '*' {
		return true
	}
	if prev != 0 && next != 0 && isWordChar(rune(prev)) && isWordChar(rune(next)) {
		return true
	}
	if isListMarkerAt(text, index) {
		return true
	}
	return false
}

func countSingleAsterisks(text string) int {
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '*' {
			continue
		}
		if !shouldSkipAsterisk(text, i) {
			count++
		}
	}
	return count
}

func shouldSkipUnderscore(text string, index int) bool {
	prev := byteAt(text, index-1)
	next := byteAt(text, index+1)

	if prev == '\\' {
		return true
	}
	if isInsideCodeBlock(text, index) {
		return true
	}
	if strings.Contains(text, "$") && isWithinMathBlock(text, index) {
		return true
	}
	if isWithinLinkOrImageURL(text, index) {
		return true
	}
	if prev == '_' || next == '_' {
		return true
	}
	if prev != 0 && next != 0 && isWordChar(rune(prev)) && isWordChar(rune(next)) {
		return true
	}
	return false
}

func countSingleUnderscores(text string) int {
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '_' {
			continue
		}
		if !shouldSkipUnderscore(text, i) {
			count++
		}
	}
	return count
}

func handleIncompleteBold(text string) string {
	markerIdx := strings.LastIndex(text, "**")
	if markerIdx < 0 {
		return text
	}
	if strings.Contains(text[markerIdx+2:], "*") {
		return text
	}
	if isInsideCodeBlock(text, markerIdx) {
		return text
	}
	contentAfter := text[markerIdx+2:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if isHorizontalRuleLine(text, markerIdx, '*') {
		return text
	}
	if strings.Contains(contentAfter, "\n") && isLinePrefixListMarker(text, markerIdx) {
		return text
	}
	if countSubstring(text, "**")%2 == 1 {
		return text + "**"
	}
	return text
}

func handleIncompleteDoubleUnderscoreItalic(text string) string {
	markerIdx := strings.LastIndex(text, "__")
	if markerIdx < 0 {
		return text
	}
	if strings.Contains(text[markerIdx+2:], "_") {
		return text
	}
	if isInsideCodeBlock(text, markerIdx) {
		return text
	}
	contentAfter := text[markerIdx+2:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if isHorizontalRuleLine(text, markerIdx, '_') {
		return text
	}
	if strings.Contains(contentAfter, "\n") && isLinePrefixListMarker(text, markerIdx) {
		return text
	}
	if countSubstring(text, "__")%2 == 1 {
		return text + "__"
	}
	return text
}

func handleIncompleteSingleAsteriskItalic(text string) string {
	first := -1
	for i := 0; i < len(text); i++ {
		if text[i] != '*' {
			continue
		}
		if isInsideCodeBlock(text, i) {
			continue
		}
		prev, next := byteAt(text, i-1), byteAt(text, i+1)
		if prev == '*' || next == '*' || prev == '\\' {
			continue
		}
		if strings.Contains(text, "$") && isWithinMathBlock(text, i) {
			continue
		}
		if prev != 0 && next != 0 && isWordChar(rune(prev)) && isWordChar(rune(next)) {
			continue
		}
		if isListMarkerAt(text, i) {
			continue
		}
		first = i
		break
	}
	if first < 0 {
		return text
	}
	contentAfter := text[first+1:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if countSingleAsterisks(text)%2 == 1 {
		return text + "*"
	}
	return text
}

func isLinePrefixListMarker(text string, markerIndex int) bool {
	lineStart := markerIndex
	for lineStart > 0 && text[lineStart-1] != '\n' {
		lineStart--
	}
	prefix := text[lineStart:markerIndex]
	i := 0
	for i < len(prefix) && isSpaceOrTab(prefix[i]) {
		i++
	}
	if i >= len(prefix) {
		return false
	}
	marker := prefix[i]
	if marker != '-' && marker != '*' && marker != '+' {
		return false
	}
	i++
	if i >= len(prefix) {
		return false
	}
	hasWS := false
	for i < len(prefix) {
		if isSpaceOrTab(prefix[i]) {
			hasWS = true
			i++
			continue
		}
		return false
	}
	return hasWS
}

func insertClosingUnderscore(text string) string {
	end := len(text)
	for end > 0 && text[end-1] == '\n' {
		end--
	}
	return text[:end] + "_" + text[end:]
}

func findFirstSingleUnderscoreIndex(text string) (int, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '_' {
			continue
		}
		if isInsideCodeBlock(text, i) {
			continue
		}
		prev, next := byteAt(text, i-1), byteAt(text, i+1)
		if prev == '_' || next == '_' || prev == '\\' {
			continue
		}
		if strings.Contains(text, "$") && isWithinMathBlock(text, i) {
			continue
		}
		if isWithinLinkOrImageURL(text, i) {
			continue
		}
		if prev != 0 && next != 0 && isWordChar(rune(prev)) && isWordChar(rune(next)) {
			continue
		}
		return i, true
	}
	return 0, false
}

func handleTrailingAsterisksForUnderscore(text string) (string, bool) {
	if !strings.HasSuffix(text, "**") {
		return "", false
	}
	without := text[:len(text)-2]
	if countSubstring(without, "**")%2 != 1 {
		return "", false
	}
	firstDouble := strings.Index(without, "**")
	if firstDouble < 0 {
		return "", false
	}
	underscoreIdx, ok := findFirstSingleUnderscoreIndex(without)
	if !ok {
		return "", false
	}
	if firstDouble < underscoreIdx {
		return without + "_**", true
	}
	return "", false
}

func handleIncompleteSingleUnderscoreItalic(text string) string {
	firstIdx, ok := findFirstSingleUnderscoreIndex(text)
	if !ok {
		return text
	}
	contentAfter := text[firstIdx+1:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if countSingleUnderscores(text)%2 == 1 {
		if nested, ok := handleTrailingAsterisksForUnderscore(text); ok {
			return nested
		}
		return insertClosingUnderscore(text)
	}
	return text
}

func boldItalicMarkersBalanced(text string) bool {
	return countSubstring(text, "**")%2 == 0 && countSingleAsterisks(text)%2 == 0
}

func handleIncompleteBoldItalic(text string) string {
	t := strings.TrimSpace(text)
	if t != "" && strings.Count(t, "*") == len(t) && len(t) >= 4 {
		return text
	}

	markerIdx := strings.LastIndex(text, "***")
	if markerIdx < 0 {
		return text
	}
	if strings.Contains(text[markerIdx+3:], "*") {
		return text
	}
	contentAfter := text[markerIdx+3:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if isInsideCodeBlock(text, markerIdx) {
		return text
	}
	if isHorizontalRuleLine(text, markerIdx, '*') {
		return text
	}

	if countTripleAsterisks(text)%2 == 1 {
		if boldItalicMarkersBalanced(text) {
			return text
		}
		return text + "***"
	}
	return text
}

func balanceInlineCode(text string) string {
	if !strings.Contains(text, "\n") && strings.HasPrefix(text, "```") {
		run := 0
		for i := len(text) - 1; i >= 0 && text[i] == '`'; i-- {
			run++
		}
		if run == 2 || run == 3 {
			bodyEnd := len(text) - run
			if bodyEnd >= 3 && !strings.Contains(text[3:bodyEnd], "`") {
				if run == 2 {
					return text + "`"
				}
				return text
			}
		}
	}

	if countSubstring(text, "```")%2 == 1 {
		return text
	}

	markerIdx := -1
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '`' && !isPartOfTripleBacktick(text, i) {
			markerIdx = i
			break
		}
	}
	if markerIdx < 0 {
		return text
	}
	if isInsideCodeBlock(text, markerIdx) {
		return text
	}
	if strings.Contains(text[markerIdx+1:], "`") {
		return text
	}
	contentAfter := text[markerIdx+1:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}

	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '`' && !isPartOfTripleBacktick(text, i) {
			count++
		}
	}
	if count%2 == 1 {
		return text + "`"
	}
	return text
}

func balanceStrikethrough(text string) string {
	markerIdx := strings.LastIndex(text, "~~")
	if markerIdx < 0 {
		return text
	}
	if strings.Contains(text[markerIdx+2:], "~") {
		return text
	}
	contentAfter := text[markerIdx+2:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if countSubstring(text, "~~")%2 == 1 {
		return text + "~~"
	}
	return text
}

func balanceKatexBlock(text string) string {
	dollarPairs := 0
	inInlineCode := false
	i := 0
	for i+1 < len(text) {
		if text[i] == '`' && !isPartOfTripleBacktick(text, i) {
			inInlineCode = !inInlineCode
			i++
			continue
		}
		if !inInlineCode && text[i] == '$' && text[i+1] == '$' {
			dollarPairs++
			i += 2
			continue
		}
		i++
	}

	if dollarPairs%2 == 0 {
		return text
	}

	first := strings.Index(text, "$$")
	hasNewlineAfterStart := first >= 0 && strings.Contains(text[first:], "\n")
	if hasNewlineAfterStart && !strings.HasSuffix(text, "\n") {
		return text + "\n$$"
	}
	return text + "$$"
}
