package ollama

import (
	aopenai "github.com/complypilot/complypilot/pkg/ai/openai"
)

const (
	NAME = "ollama"

	DEFAULT_ENDPOINT = "http://127.0.0.1:11434/v1"
)

// Driver 走 Ollama 的 OpenAI 兼容接口，复用 openai driver 的全部实现
type Driver struct {
	*aopenai.Driver
}

func New(token, endpoint, chatModel, embeddingModel string, embeddingDim int) *Driver {
	if endpoint == "" {
		endpoint = DEFAULT_ENDPOINT
	}
	if chatModel == "" {
		chatModel = "llama3.1"
	}
	if embeddingModel == "" {
		embeddingModel = "nomic-embed-text"
	}

	return &Driver{
		Driver: aopenai.New(token, endpoint, chatModel, embeddingModel, embeddingDim),
	}
}

func (s *Driver) Name() string {
	return NAME
}
