package block

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFootnotesMatchesReferenceAndDefinition(t *testing.T) {
	assert.True(t, detectFootnotes("see [^1] here"))
	assert.True(t, detectFootnotes("[^note]: the definition"))
}

func TestDetectFootnotesRejectsMalformed(t *testing.T) {
	assert.False(t, detectFootnotes("no footnote markers here"))
	assert.False(t, detectFootnotes("[^ contains a space]"))
	assert.False(t, detectFootnotes("[^unterminated"))
	assert.False(t, detectFootnotes("[^]"))
}

func TestDetectFootnotesRejectsOverlongID(t *testing.T) {
	assert.False(t, detectFootnotes("[^"+strings.Repeat("a", maxFootnoteIDLen+1)+"]"))
}
