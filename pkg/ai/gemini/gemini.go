package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/complypilot/complypilot/pkg/ai"
	"github.com/complypilot/complypilot/pkg/types"
)

const (
	NAME = "gemini"
)

// Driver 仅提供对话生成能力。Gemini 的 embedding 维度与其他 provider
// 不可互换，registry 会为 embedding 另选兼容的 provider。
type Driver struct {
	client    *genai.Client
	chatModel string
}

func New(ctx context.Context, token, chatModel string) (*Driver, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(token))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client, %w", err)
	}

	if chatModel == "" {
		chatModel = "gemini-1.5-flash"
	}

	return &Driver{
		client:    client,
		chatModel: chatModel,
	}, nil
}

func (s *Driver) Name() string {
	return NAME
}

func (s *Driver) Lang() string {
	return ai.MODEL_BASE_LANGUAGE_EN
}

func (s *Driver) Generate(ctx context.Context, query []*types.MessageContext, opts ai.GenerateOptions) (ai.GenerateResponse, error) {
	model := s.client.GenerativeModel(s.chatModel)
	model.SetTemperature(opts.Temperature)
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxTokens))
	}

	var history []*genai.Content
	var last *types.MessageContext
	for i, item := range query {
		if item.Role == types.USER_ROLE_SYSTEM {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(item.Content)},
			}
			continue
		}
		if i == len(query)-1 {
			last = item
			break
		}
		role := "user"
		if item.Role == types.USER_ROLE_ASSISTANT {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(item.Content)},
		})
	}

	if last == nil {
		return ai.GenerateResponse{}, ai.Permanent(fmt.Errorf("gemini query requires a trailing user message"))
	}

	session := model.StartChat()
	session.History = history

	resp, err := ai.WithRetry(ctx, NAME+".chat", func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*ai.CHAT_TIMEOUT)
		defer cancel()
		return session.SendMessage(ctx, genai.Text(last.Content))
	})
	if err != nil {
		return ai.GenerateResponse{}, fmt.Errorf("completion error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ai.GenerateResponse{}, ai.Permanent(fmt.Errorf("completion returned no candidates"))
	}

	var received string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			received += string(text)
		}
	}

	result := ai.GenerateResponse{
		Received: received,
		Model:    s.chatModel,
	}
	if resp.UsageMetadata != nil {
		result.Usage = ai.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	slog.Debug("Generate", slog.String("driver", NAME), slog.String("model", s.chatModel))

	return result, nil
}
