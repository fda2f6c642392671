package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/complypilot/complypilot/pkg/types"
)

const (
	MODEL_BASE_LANGUAGE_EN = "en"
	MODEL_BASE_LANGUAGE_CN = "zh"
)

// 外部模型调用超时上限
const (
	EMBEDDING_TIMEOUT = 30 // seconds
	CHAT_TIMEOUT      = 60 // seconds
)

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type EmbeddingResult struct {
	Data  [][]float32
	Model string
	Usage Usage
}

type GenerateResponse struct {
	Received string
	Model    string
	Usage    Usage
}

type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
}

// EmbeddingCapable 文本向量化能力。实现方需保证同一模型下维度恒定。
type EmbeddingCapable interface {
	EmbeddingForQuery(ctx context.Context, content []string) (EmbeddingResult, error)
	EmbeddingForDocument(ctx context.Context, title string, content []string) (EmbeddingResult, error)
}

// ChatCapable 对话生成能力
type ChatCapable interface {
	Generate(ctx context.Context, query []*types.MessageContext, opts GenerateOptions) (GenerateResponse, error)
}

type Driver interface {
	Name() string
	Lang() string
}

// ErrPermanent 标记不可重试的调用错误（鉴权失败、请求非法等）
var ErrPermanent = errors.New("permanent provider error")

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPermanent, err.Error())
}

func IsPermanent(err error) bool {
	if errors.Is(err, ErrPermanent) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return true
		}
	}
	return false
}

// IsTransient reports whether the failure is worth retrying:
// timeouts, rate limits and upstream 5xx.
func IsTransient(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	// 网络层的其他错误按瞬时处理，交给退避重试兜底
	return true
}

func NumTokens(messages []openai.ChatCompletionMessage, model string) (numTokens int, err error) {
	var tokensPerMessage int
	switch model {
	case "gpt-3.5-turbo-0301":
		tokensPerMessage = 4
	default:
		tokensPerMessage = 3
	}

	tkm, err := tiktoken.EncodingForModel(normalizeTokenizerModel(model))
	if err != nil {
		err = fmt.Errorf("encoding for model: %v", err)
		return
	}

	for _, message := range messages {
		numTokens += tokensPerMessage
		numTokens += len(tkm.Encode(message.Content, nil, nil))
		numTokens += len(tkm.Encode(message.Role, nil, nil))
	}
	numTokens += 3 // every reply is primed with <|start|>assistant<|message|>
	return numTokens, nil
}

func NumTokensSingle(text, model string) (int, error) {
	tkm, err := tiktoken.EncodingForModel(normalizeTokenizerModel(model))
	if err != nil {
		return 0, fmt.Errorf("encoding for model: %v", err)
	}
	return len(tkm.Encode(text, nil, nil)), nil
}

// 非 OpenAI 模型没有注册的编码表，统一用 gpt-4 的 cl100k 估算
func normalizeTokenizerModel(model string) string {
	if strings.HasPrefix(model, "gpt-") {
		return model
	}
	return "gpt-4"
}
