package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/complypilot/complypilot/app/core"
	"github.com/complypilot/complypilot/pkg/ai"
	"github.com/complypilot/complypilot/pkg/errors"
	"github.com/complypilot/complypilot/pkg/types"
	"github.com/complypilot/complypilot/pkg/utils"
)

const (
	// 单轮最多回看的历史条数，超出部分在 token 预算前就被截断
	historyWindow = 20
	// 会话标题截取自首条消息
	titleMaxRunes = 30
)

const noContextNote = "No relevant reference material was found for this question. Answer from general knowledge and say so when unsure."

type ChatLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewChatLogic(ctx context.Context, core *core.Core) *ChatLogic {
	return &ChatLogic{
		ctx:  ctx,
		core: core,
	}
}

// newConversation 只组装不落库，随首轮消息一并入库
func newConversation(userID, firstMessage string) types.Conversation {
	now := time.Now().Unix()
	return types.Conversation{
		ID:        utils.GenUniqIDStr(),
		UserID:    userID,
		Title:     deriveTitle(firstMessage),
		Status:    types.CONVERSATION_STATUS_ACTIVE,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (l *ChatLogic) GetConversation(id string) (*types.Conversation, error) {
	conversation, err := l.core.Store().ConversationStore().Get(l.ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("ChatLogic.GetConversation.ConversationStore.Get", errors.ERROR_NOTFOUND, err).Code(http.StatusNotFound)
		}
		return nil, errors.New("ChatLogic.GetConversation.ConversationStore.Get", errors.ERROR_INTERNAL, err)
	}

	if user := GetUserInfo(l.ctx); user.User != conversation.UserID && user.Role != ROLE_ADMIN {
		return nil, errors.New("ChatLogic.GetConversation.auth", errors.ERROR_FORBIDDEN, nil).Code(http.StatusForbidden)
	}
	return conversation, nil
}

func (l *ChatLogic) ListConversations(page, pageSize uint64) ([]types.Conversation, error) {
	user := GetUserInfo(l.ctx)
	list, err := l.core.Store().ConversationStore().List(l.ctx, types.ListConversationOptions{
		UserID: user.User,
	}, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ChatLogic.ListConversations.ConversationStore.List", errors.ERROR_INTERNAL, err)
	}
	return list, nil
}

// ArchiveConversation 归档会话，历史消息保留可查
func (l *ChatLogic) ArchiveConversation(id string) error {
	if _, err := l.GetConversation(id); err != nil {
		return errors.Trace("ChatLogic.ArchiveConversation", err)
	}

	if err := l.core.Store().ConversationStore().UpdateStatus(l.ctx, id, types.CONVERSATION_STATUS_ARCHIVED); err != nil {
		return errors.New("ChatLogic.ArchiveConversation.UpdateStatus", errors.ERROR_INTERNAL, err)
	}
	return nil
}

func (l *ChatLogic) ListMessages(conversationID string, page, pageSize uint64) ([]types.ChatMessage, error) {
	if _, err := l.GetConversation(conversationID); err != nil {
		return nil, errors.Trace("ChatLogic.ListMessages", err)
	}

	list, err := l.core.Store().ChatMessageStore().List(l.ctx, conversationID, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ChatLogic.ListMessages.ChatMessageStore.List", errors.ERROR_INTERNAL, err)
	}
	return list, nil
}

// SendMessage 一问一答。整条链路要么全部落库要么全部不落：
// 向量化或生成失败时用户消息也不会入库。conversationID 为空时
// 新会话随首轮消息在同一事务内落库，失败不留空会话。
// 同一会话同一时刻只允许一轮在途，靠 redis 锁串行。
func (l *ChatLogic) SendMessage(conversationID, message string) (*types.ChatMessage, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.New("ChatLogic.SendMessage.check", errors.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	var (
		conversation *types.Conversation
		isNew        = conversationID == ""
		err          error
	)
	if isNew {
		user := GetUserInfo(l.ctx)
		if user.User == "" {
			return nil, errors.New("ChatLogic.SendMessage.check", errors.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized)
		}
		created := newConversation(user.User, message)
		conversation = &created
		conversationID = created.ID
	} else {
		conversation, err = l.GetConversation(conversationID)
		if err != nil {
			return nil, errors.Trace("ChatLogic.SendMessage", err)
		}
		if conversation.Status != types.CONVERSATION_STATUS_ACTIVE {
			return nil, errors.New("ChatLogic.SendMessage.archived", errors.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
		}
	}

	lockKey := fmt.Sprintf("chat:turn:%s", conversationID)
	locked, err := l.core.TryLock(l.ctx, lockKey)
	if err != nil {
		return nil, errors.New("ChatLogic.SendMessage.TryLock", errors.ERROR_INTERNAL, err)
	}
	if !locked {
		return nil, errors.New("ChatLogic.SendMessage.inflight", errors.ERROR_TURN_IN_FLIGHT, nil).Code(http.StatusConflict)
	}
	defer l.core.ReleaseLock(l.ctx, lockKey)

	snapshot, err := l.core.Srv().AI().Resolve(l.ctx)
	if err != nil {
		return nil, errors.Trace("ChatLogic.SendMessage.Resolve", err)
	}
	cfg := snapshot.Config

	contexts, err := l.queryKnowledge(snapshot.Embed, snapshot.EmbedConfig.Provider, cfg, message)
	if err != nil {
		return nil, errors.Trace("ChatLogic.SendMessage", err)
	}

	history, err := l.recentHistory(conversationID)
	if err != nil {
		return nil, errors.Trace("ChatLogic.SendMessage", err)
	}

	budget := cfg.ContextTokens - cfg.MaxTokens
	if budget <= 0 {
		return nil, errors.New("ChatLogic.SendMessage.budget", errors.ERROR_CONFIGURATION, nil).Code(http.StatusFailedDependency)
	}

	counter := func(text string) int {
		n, err := ai.NumTokensSingle(text, cfg.ChatModel)
		if err != nil {
			// 编码表缺失时按 4 字符一个 token 粗估
			return len(text) / 4
		}
		return n
	}

	prompt, refs, promptTokens, err := assemblePrompt(promptInput{
		SystemPrompt: cfg.SystemPrompt,
		Contexts:     contexts,
		History:      history,
		UserMessage:  message,
		Budget:       budget,
	}, counter)
	if err != nil {
		return nil, errors.Trace("ChatLogic.SendMessage", err)
	}

	timer := l.core.Metrics().ProviderRequestTimer(cfg.Provider, "chat")
	resp, err := snapshot.Chat.Generate(l.ctx, prompt, ai.GenerateOptions{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	timer.ObserveDuration()
	if err != nil {
		l.core.Metrics().ProviderErrorInc(cfg.Provider, "chat")
		return nil, errors.New("ChatLogic.SendMessage.Generate", errors.ERROR_PROVIDER, err).Code(http.StatusBadGateway)
	}

	if resp.Usage.PromptTokens > 0 {
		promptTokens = resp.Usage.PromptTokens
	}

	if refs == nil {
		refs = []types.ChunkRef{}
	}
	refsRaw, _ := json.Marshal(refs)
	// 同一轮两条消息共用落库时间，会话内先后以 sequence 为准
	now := time.Now().Unix()

	var assistantMsg *types.ChatMessage
	err = l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if isNew {
			if err := l.core.Store().ConversationStore().Create(ctx, *conversation); err != nil {
				return errors.New("ChatLogic.SendMessage.ConversationStore.Create", errors.ERROR_INTERNAL, err)
			}
		}

		seq, err := l.core.Store().ChatMessageStore().NextSequence(ctx, conversationID)
		if err != nil {
			return errors.New("ChatLogic.SendMessage.NextSequence", errors.ERROR_INTERNAL, err)
		}

		userMsg := &types.ChatMessage{
			ID:             utils.GenUniqIDStr(),
			ConversationID: conversationID,
			UserID:         conversation.UserID,
			Role:           types.USER_ROLE_USER,
			Message:        message,
			Sequence:       seq,
			SendTime:       now,
		}
		if err = l.core.Store().ChatMessageStore().Create(ctx, userMsg); err != nil {
			return errors.New("ChatLogic.SendMessage.ChatMessageStore.Create", errors.ERROR_INTERNAL, err)
		}

		assistantMsg = &types.ChatMessage{
			ID:               utils.GenUniqIDStr(),
			ConversationID:   conversationID,
			UserID:           conversation.UserID,
			Role:             types.USER_ROLE_ASSISTANT,
			Message:          resp.Received,
			Sequence:         seq + 1,
			PromptTokens:     promptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			Refs:             refsRaw,
			Provider:         cfg.Provider,
			Model:            resp.Model,
			SendTime:         now,
		}
		if err = l.core.Store().ChatMessageStore().Create(ctx, assistantMsg); err != nil {
			return errors.New("ChatLogic.SendMessage.ChatMessageStore.Create", errors.ERROR_INTERNAL, err)
		}

		if conversation.Title == "" {
			if err = l.core.Store().ConversationStore().UpdateTitle(ctx, conversationID, deriveTitle(message)); err != nil {
				return errors.New("ChatLogic.SendMessage.UpdateTitle", errors.ERROR_INTERNAL, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	bumpAnalyticsVersion(l.ctx, l.core)
	return assistantMsg, nil
}

func (l *ChatLogic) recentHistory(conversationID string) ([]types.ChatMessage, error) {
	history, err := l.core.Store().ChatMessageStore().List(l.ctx, conversationID, types.NO_PAGINATION, types.NO_PAGINATION)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ChatLogic.recentHistory.ChatMessageStore.List", errors.ERROR_INTERNAL, err)
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	return history, nil
}

func deriveTitle(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) > titleMaxRunes {
		runes = runes[:titleMaxRunes]
	}
	return string(runes)
}

type promptInput struct {
	SystemPrompt string
	Contexts     []types.ChunkQueryResult // 已按 cos 降序
	History      []types.ChatMessage      // 按 sequence 升序
	UserMessage  string
	Budget       int
}

type tokenCounter func(text string) int

func joinContextBlock(parts []string) string {
	return "Reference material:\n\n" + strings.Join(parts, "\n\n---\n\n")
}

// assemblePrompt 在 token 预算内组装上下文。裁剪顺序固定：
// system 与用户消息永不裁剪，检索内容从相似度低的先丢，
// 历史从最旧的先丢。system + 用户消息本身超预算则整轮拒绝。
// 检索块按整段计费，标题与分隔符在入选时一并扣减。
func assemblePrompt(in promptInput, count tokenCounter) ([]*types.MessageContext, []types.ChunkRef, int, error) {
	systemTokens := count(in.SystemPrompt)
	userTokens := count(in.UserMessage)

	remaining := in.Budget - systemTokens - userTokens
	if remaining < 0 {
		return nil, nil, 0, errors.New("assemblePrompt.budget", errors.ERROR_MESSAGE_TOO_LONG, nil).Code(http.StatusRequestEntityTooLarge)
	}

	var (
		refs         []types.ChunkRef
		contextParts []string
		blockCost    int
	)
	for _, item := range in.Contexts {
		cost := count(joinContextBlock(append(contextParts, item.Chunk)))
		if cost > remaining {
			break
		}
		blockCost = cost
		contextParts = append(contextParts, item.Chunk)
		refs = append(refs, types.ChunkRef{
			ChunkID: item.ID,
			DocID:   item.DocID,
			Cos:     item.Cos,
		})
	}

	var contextBlock string
	if len(contextParts) == 0 {
		contextBlock = noContextNote
		refs = nil
		blockCost = count(noContextNote)
	} else {
		contextBlock = joinContextBlock(contextParts)
	}
	remaining -= blockCost
	if remaining < 0 {
		remaining = 0
	}

	var kept []types.ChatMessage
	for i := len(in.History) - 1; i >= 0; i-- {
		cost := count(in.History[i].Message)
		if cost > remaining {
			break
		}
		remaining -= cost
		kept = append(kept, in.History[i])
	}

	messages := []*types.MessageContext{
		{
			Role:    types.USER_ROLE_SYSTEM,
			Content: strings.TrimSpace(in.SystemPrompt + "\n\n" + contextBlock),
		},
	}
	for i := len(kept) - 1; i >= 0; i-- {
		messages = append(messages, &types.MessageContext{
			Role:    kept[i].Role,
			Content: kept[i].Message,
		})
	}
	messages = append(messages, &types.MessageContext{
		Role:    types.USER_ROLE_USER,
		Content: in.UserMessage,
	})

	promptTokens := in.Budget - remaining
	return messages, refs, promptTokens, nil
}

func (l *ChatLogic) queryKnowledge(embed ai.EmbeddingCapable, embedProvider string, cfg types.ProviderConfig, message string) ([]types.ChunkQueryResult, error) {
	timer := l.core.Metrics().ProviderRequestTimer(embedProvider, "embedding")
	result, err := embed.EmbeddingForQuery(l.ctx, []string{message})
	timer.ObserveDuration()
	if err != nil {
		l.core.Metrics().ProviderErrorInc(embedProvider, "embedding")
		return nil, errors.New("ChatLogic.queryKnowledge.EmbeddingForQuery", errors.ERROR_PROVIDER, err).Code(http.StatusBadGateway)
	}
	if len(result.Data) == 0 {
		return nil, errors.New("ChatLogic.queryKnowledge.empty", errors.ERROR_PROVIDER, nil).Code(http.StatusBadGateway)
	}

	contexts, err := l.core.Store().KnowledgeChunkStore().Query(l.ctx, pgvector.NewVector(result.Data[0]), uint64(cfg.TopK), cfg.Threshold)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ChatLogic.queryKnowledge.Query", errors.ERROR_INTERNAL, err)
	}
	return contexts, nil
}
