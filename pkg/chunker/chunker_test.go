package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit_Empty(t *testing.T) {
	c := NewChunker(Options{})
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestSplit_SingleChunk(t *testing.T) {
	// ~1200 characters is well below a 500 token window
	c := NewChunker(Options{TokenSize: 500, Overlap: 50})
	text := strings.Repeat("The taxpayer must file the annual return before the deadline. ", 20)
	assert.Less(t, len(text), 2000)

	chunks := c.Split(text)
	assert.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, c.CountTokens(text), chunks[0].TokenCount)
}

func TestSplit_Deterministic(t *testing.T) {
	c := NewChunker(Options{TokenSize: 40, Overlap: 8})
	text := strings.Repeat("Value added tax applies to the supply of goods and services. ", 60)

	first := c.Split(text)
	second := c.Split(text)
	assert.Equal(t, first, second)
	assert.Greater(t, len(first), 1)
}

func TestSplit_ContiguousIndexesAndCoverage(t *testing.T) {
	opts := Options{TokenSize: 32, Overlap: 6}
	c := NewChunker(opts)
	text := strings.Repeat("Withholding obligations differ per jurisdiction and entity type. ", 40)

	chunks := c.Split(text)
	assert.Greater(t, len(chunks), 2)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.LessOrEqual(t, chunk.TokenCount, opts.TokenSize)
		assert.NotEmpty(t, chunk.Text)
	}

	// dropping the leading overlap of every chunk after the first
	// reconstructs the original text losslessly
	var rebuilt strings.Builder
	for i, chunk := range chunks {
		if i == 0 {
			rebuilt.WriteString(chunk.Text)
			continue
		}
		overlapText := c.tkm.Decode(c.tkm.Encode(chunk.Text, nil, nil)[:opts.Overlap])
		rebuilt.WriteString(strings.TrimPrefix(chunk.Text, overlapText))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplit_LastChunkShort(t *testing.T) {
	c := NewChunker(Options{TokenSize: 16, Overlap: 4})
	text := strings.Repeat("audit trail ", 30)

	chunks := c.Split(text)
	last := chunks[len(chunks)-1]
	assert.LessOrEqual(t, last.TokenCount, 16)
}
