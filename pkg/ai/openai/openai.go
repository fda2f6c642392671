package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"

	"github.com/complypilot/complypilot/pkg/ai"
	"github.com/complypilot/complypilot/pkg/types"
)

const (
	NAME = "openai"

	embeddingBatchMax = 16
)

type Driver struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	embeddingDim   int
}

func New(token, endpoint, chatModel, embeddingModel string, embeddingDim int) *Driver {
	cfg := openai.DefaultConfig(token)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}

	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}
	if embeddingModel == "" {
		embeddingModel = string(openai.LargeEmbedding3)
	}

	return &Driver{
		client:         openai.NewClientWithConfig(cfg),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		embeddingDim:   embeddingDim,
	}
}

func (s *Driver) Name() string {
	return NAME
}

func (s *Driver) Lang() string {
	return ai.MODEL_BASE_LANGUAGE_EN
}

func (s *Driver) embedding(ctx context.Context, content []string) (ai.EmbeddingResult, error) {
	slog.Debug("Embedding", slog.String("driver", NAME), slog.Int("inputs", len(content)))

	queryReq := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(s.embeddingModel),
	}
	if s.embeddingDim > 0 {
		queryReq.Dimensions = s.embeddingDim
	}

	r := ai.EmbeddingResult{}
	for _, group := range lo.Chunk(content, embeddingBatchMax) {
		queryReq.Input = group

		resp, err := ai.WithRetry(ctx, NAME+".embedding", func(ctx context.Context) (openai.EmbeddingResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, time.Second*ai.EMBEDDING_TIMEOUT)
			defer cancel()
			return s.client.CreateEmbeddings(ctx, queryReq)
		})
		if err != nil {
			return r, fmt.Errorf("error creating embedding: %w", err)
		}

		for _, v := range resp.Data {
			r.Data = append(r.Data, v.Embedding)
		}

		r.Usage.PromptTokens += resp.Usage.PromptTokens
		r.Usage.TotalTokens += resp.Usage.TotalTokens
		r.Model = string(resp.Model)
	}

	return r, nil
}

func (s *Driver) EmbeddingForQuery(ctx context.Context, content []string) (ai.EmbeddingResult, error) {
	return s.embedding(ctx, content)
}

func (s *Driver) EmbeddingForDocument(ctx context.Context, title string, content []string) (ai.EmbeddingResult, error) {
	return s.embedding(ctx, content)
}

func (s *Driver) Generate(ctx context.Context, query []*types.MessageContext, opts ai.GenerateOptions) (ai.GenerateResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       s.chatModel,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Messages: lo.Map(query, func(item *types.MessageContext, _ int) openai.ChatCompletionMessage {
			return openai.ChatCompletionMessage{
				Role:    item.Role.String(),
				Content: item.Content,
			}
		}),
	}

	resp, err := ai.WithRetry(ctx, NAME+".chat", func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*ai.CHAT_TIMEOUT)
		defer cancel()
		return s.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return ai.GenerateResponse{}, fmt.Errorf("completion error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ai.GenerateResponse{}, ai.Permanent(fmt.Errorf("completion returned no choices"))
	}

	slog.Debug("Generate", slog.String("driver", NAME), slog.String("model", s.chatModel))

	return ai.GenerateResponse{
		Received: resp.Choices[0].Message.Content,
		Model:    resp.Model,
		Usage: ai.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
