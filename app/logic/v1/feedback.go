package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/complypilot/complypilot/app/core"
	"github.com/complypilot/complypilot/pkg/errors"
	"github.com/complypilot/complypilot/pkg/types"
	"github.com/complypilot/complypilot/pkg/utils"
)

const (
	analyticsCacheTTL     = time.Minute * 5
	analyticsVersionKey   = "analytics:version"
	defaultAnalyticsRange = time.Hour * 24 * 7
	defaultTopicLimit     = 20
	topicSampleLimit      = 1000
)

type FeedbackLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewFeedbackLogic(ctx context.Context, core *core.Core) *FeedbackLogic {
	return &FeedbackLogic{
		ctx:  ctx,
		core: core,
	}
}

type SubmitFeedbackArgs struct {
	MessageID string `json:"message_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required"`
	Helpful   *bool  `json:"helpful"`
	Comment   string `json:"comment"`
}

// SubmitFeedback 只接受针对 assistant 消息的评价，重复提交覆盖旧值
func (l *FeedbackLogic) SubmitFeedback(args SubmitFeedbackArgs) error {
	user := GetUserInfo(l.ctx)
	if user.User == "" {
		return errors.New("FeedbackLogic.SubmitFeedback.check", errors.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized)
	}
	if args.Rating < 1 || args.Rating > 5 {
		return errors.New("FeedbackLogic.SubmitFeedback.rating", errors.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	msg, err := l.core.Store().ChatMessageStore().Get(l.ctx, args.MessageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.New("FeedbackLogic.SubmitFeedback.ChatMessageStore.Get", errors.ERROR_NOTFOUND, err).Code(http.StatusNotFound)
		}
		return errors.New("FeedbackLogic.SubmitFeedback.ChatMessageStore.Get", errors.ERROR_INTERNAL, err)
	}
	if msg.Role != types.USER_ROLE_ASSISTANT {
		return errors.New("FeedbackLogic.SubmitFeedback.role", errors.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	err = l.core.Store().FeedbackStore().Upsert(l.ctx, types.Feedback{
		ID:        utils.GenUniqIDStr(),
		MessageID: args.MessageID,
		UserID:    user.User,
		Rating:    args.Rating,
		Helpful:   args.Helpful,
		Comment:   args.Comment,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return errors.New("FeedbackLogic.SubmitFeedback.FeedbackStore.Upsert", errors.ERROR_INTERNAL, err)
	}

	bumpAnalyticsVersion(l.ctx, l.core)
	return nil
}

// GetUsageAnalytics 聚合统计带 5 分钟缓存，写事件通过版本号使旧缓存失效
func (l *FeedbackLogic) GetUsageAnalytics(from, to int64) (*types.UsageAnalytics, error) {
	now := time.Now()
	if to <= 0 {
		to = now.Unix()
	}
	if from <= 0 {
		from = now.Add(-defaultAnalyticsRange).Unix()
	}
	if from > to {
		return nil, errors.New("FeedbackLogic.GetUsageAnalytics.range", errors.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	cacheKey := l.analyticsCacheKey(from, to)
	if raw, err := l.core.CacheGet(l.ctx, cacheKey); err == nil && raw != "" {
		var cached types.UsageAnalytics
		if json.Unmarshal([]byte(raw), &cached) == nil {
			return &cached, nil
		}
	}

	conversations, err := l.core.Store().ConversationStore().TotalCreatedBetween(l.ctx, from, to)
	if err != nil {
		return nil, errors.New("FeedbackLogic.GetUsageAnalytics.ConversationStore.TotalCreatedBetween", errors.ERROR_INTERNAL, err)
	}
	messages, err := l.core.Store().ChatMessageStore().TotalCreatedBetween(l.ctx, from, to)
	if err != nil {
		return nil, errors.New("FeedbackLogic.GetUsageAnalytics.ChatMessageStore.TotalCreatedBetween", errors.ERROR_INTERNAL, err)
	}
	ratings, err := l.core.Store().FeedbackStore().RatingCounts(l.ctx, from, to)
	if err != nil {
		return nil, errors.New("FeedbackLogic.GetUsageAnalytics.FeedbackStore.RatingCounts", errors.ERROR_INTERNAL, err)
	}
	helpful, total, err := l.core.Store().FeedbackStore().HelpfulStats(l.ctx, from, to)
	if err != nil {
		return nil, errors.New("FeedbackLogic.GetUsageAnalytics.FeedbackStore.HelpfulStats", errors.ERROR_INTERNAL, err)
	}

	result := &types.UsageAnalytics{
		ConversationCount: conversations,
		MessageCount:      messages,
		RatingCounts:      ratings,
		From:              from,
		To:                to,
	}
	if conversations > 0 {
		result.AvgMessages = float64(messages) / float64(conversations)
	}
	if total > 0 {
		result.HelpfulPercent = float64(helpful) / float64(total) * 100
	}

	if raw, err := json.Marshal(result); err == nil {
		if err = l.core.CacheSetEx(l.ctx, cacheKey, string(raw), analyticsCacheTTL); err != nil {
			slog.Warn("cache usage analytics failed", slog.String("error", err.Error()))
		}
	}
	return result, nil
}

func (l *FeedbackLogic) analyticsCacheKey(from, to int64) string {
	version, _ := l.core.CacheGet(l.ctx, analyticsVersionKey)
	if version == "" {
		version = "0"
	}
	return fmt.Sprintf("analytics:usage:%s:%d:%d", version, from, to)
}

func bumpAnalyticsVersion(ctx context.Context, core *core.Core) {
	if _, err := core.CacheIncr(ctx, analyticsVersionKey); err != nil {
		slog.Warn("bump analytics version failed", slog.String("error", err.Error()))
	}
}

var topicWordPattern = regexp.MustCompile(`[a-zA-Z0-9\p{Han}]+`)

var topicStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"was": true, "what": true, "when": true, "where": true, "which": true,
	"with": true, "this": true, "that": true, "from": true, "they": true,
	"have": true, "been": true, "about": true, "would": true, "there": true,
	"does": true, "how": true, "why": true, "who": true, "will": true,
	"should": true, "could": true, "please": true, "need": true, "want": true,
	"tell": true, "know": true, "our": true, "your": true,
}

// GetPopularTopics 基于最近用户提问的简单词频统计
func (l *FeedbackLogic) GetPopularTopics(from, to int64, limit int) ([]types.TopicCount, error) {
	now := time.Now()
	if to <= 0 {
		to = now.Unix()
	}
	if from <= 0 {
		from = now.Add(-defaultAnalyticsRange).Unix()
	}
	if limit <= 0 {
		limit = defaultTopicLimit
	}

	messages, err := l.core.Store().ChatMessageStore().ListUserMessagesBetween(l.ctx, from, to, topicSampleLimit)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("FeedbackLogic.GetPopularTopics.ListUserMessagesBetween", errors.ERROR_INTERNAL, err)
	}

	counts := make(map[string]int)
	for _, msg := range messages {
		for _, term := range extractTopicTerms(msg.Message) {
			counts[term]++
		}
	}

	result := make([]types.TopicCount, 0, len(counts))
	for term, count := range counts {
		result = append(result, types.TopicCount{Term: term, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Term < result[j].Term
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func extractTopicTerms(message string) []string {
	var terms []string
	for _, word := range topicWordPattern.FindAllString(strings.ToLower(message), -1) {
		if len([]rune(word)) < 3 && !containsHan(word) {
			continue
		}
		if topicStopwords[word] {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

func containsHan(word string) bool {
	for _, r := range word {
		if r >= 0x4e00 && r <= 0x9fff {
			return true
		}
	}
	return false
}
