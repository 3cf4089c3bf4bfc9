package block_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omgpointless/mdstream/block"
)

func TestBlockFormatTerseAndVerbose(t *testing.T) {
	b := block.Block{ID: 3, Kind: block.Paragraph, Status: block.Committed, Raw: "hi"}
	assert.Equal(t, "paragraph#3", fmt.Sprintf("%v", b))
	assert.Contains(t, fmt.Sprintf("%+v", b), `raw="hi"`)
}

func TestUpdateFormatSummarizesCounts(t *testing.T) {
	s := block.New(block.DefaultOptions())
	u := s.Append("A\n\nB")
	s2 := fmt.Sprintf("%v", u)
	assert.Contains(t, s2, "committed=1")
	assert.Contains(t, s2, "pending=")

	verbose := fmt.Sprintf("%+v", u)
	assert.Contains(t, verbose, "committed=1")
	assert.Contains(t, verbose, "pending:")
}
