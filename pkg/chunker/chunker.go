package chunker

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	DEFAULT_CHUNK_TOKEN_SIZE = 500
	DEFAULT_CHUNK_OVERLAP    = 50
	DEFAULT_ENCODING         = "cl100k_base"
)

type Options struct {
	TokenSize int
	Overlap   int
	Encoding  string
}

func (o Options) normalize() Options {
	if o.TokenSize <= 0 {
		o.TokenSize = DEFAULT_CHUNK_TOKEN_SIZE
	}
	if o.Overlap < 0 || o.Overlap >= o.TokenSize {
		o.Overlap = DEFAULT_CHUNK_OVERLAP
	}
	if o.Overlap >= o.TokenSize {
		o.Overlap = o.TokenSize / 10
	}
	if o.Encoding == "" {
		o.Encoding = DEFAULT_ENCODING
	}
	return o
}

type Chunk struct {
	Index      int
	Text       string
	TokenCount int
}

type Chunker struct {
	opts Options
	tkm  *tiktoken.Tiktoken
}

// NewChunker panics on an unknown encoding name, which is a deploy-time
// mistake rather than a runtime condition.
func NewChunker(opts Options) *Chunker {
	opts = opts.normalize()
	tkm, err := tiktoken.GetEncoding(opts.Encoding)
	if err != nil {
		panic(err)
	}
	return &Chunker{opts: opts, tkm: tkm}
}

// Split 按 token 数切片，窗口间保留 overlap 个 token 的重叠。
// 相同输入与参数产出完全一致的切片边界，重复处理可安全对齐。
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := c.tkm.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}

	size := c.opts.TokenSize
	step := size - c.opts.Overlap

	var chunks []Chunk
	for start := 0; start < len(tokens); start += step {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}

		span := tokens[start:end]
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       c.tkm.Decode(span),
			TokenCount: len(span),
		})

		if end == len(tokens) {
			break
		}
	}

	return chunks
}

// CountTokens reports the token count of text under the chunker's encoding.
func (c *Chunker) CountTokens(text string) int {
	return len(c.tkm.Encode(text, nil, nil))
}
