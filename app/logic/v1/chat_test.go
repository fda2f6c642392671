package v1

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complypilot/complypilot/pkg/errors"
	"github.com/complypilot/complypilot/pkg/types"
	"github.com/complypilot/complypilot/pkg/utils"
)

func wordCounter(text string) int {
	return len(strings.Fields(text))
}

func TestAssemblePrompt_Basic(t *testing.T) {
	messages, refs, _, err := assemblePrompt(promptInput{
		SystemPrompt: "You are a compliance assistant.",
		Contexts: []types.ChunkQueryResult{
			{ID: "c1", DocID: "d1", Chunk: "policy says keep records", Cos: 0.92},
			{ID: "c2", DocID: "d1", Chunk: "retention is seven years", Cos: 0.85},
		},
		UserMessage: "how long do we keep records",
		Budget:      200,
	}, wordCounter)
	require.NoError(t, err)

	require.Len(t, messages, 2)
	assert.Equal(t, types.USER_ROLE_SYSTEM, messages[0].Role)
	assert.Contains(t, messages[0].Content, "policy says keep records")
	assert.Contains(t, messages[0].Content, "retention is seven years")
	assert.Equal(t, types.USER_ROLE_USER, messages[1].Role)
	assert.Equal(t, "how long do we keep records", messages[1].Content)

	require.Len(t, refs, 2)
	assert.Equal(t, "c1", refs[0].ChunkID)
	assert.Equal(t, 0.92, refs[0].Cos)
}

func TestAssemblePrompt_UserMessageNeverTrimmed(t *testing.T) {
	_, _, _, err := assemblePrompt(promptInput{
		SystemPrompt: "one two three",
		UserMessage:  "four five six seven",
		Budget:       5,
	}, wordCounter)
	require.Error(t, err)
	assert.Equal(t, errors.ERROR_MESSAGE_TOO_LONG, errors.Message(err))
}

func TestAssemblePrompt_LowCosDroppedFirst(t *testing.T) {
	// 预算容得下标题加相似度最高的一条，第二条连同分隔符放不下
	budget := wordCounter("sys") + wordCounter("ask") +
		wordCounter(joinContextBlock([]string{"first second third"})) + 1

	messages, refs, _, err := assemblePrompt(promptInput{
		SystemPrompt: "sys",
		Contexts: []types.ChunkQueryResult{
			{ID: "best", DocID: "d1", Chunk: "first second third", Cos: 0.9},
			{ID: "worst", DocID: "d1", Chunk: "fourth fifth sixth", Cos: 0.6},
		},
		UserMessage: "ask",
		Budget:      budget,
	}, wordCounter)
	require.NoError(t, err)

	require.Len(t, refs, 1)
	assert.Equal(t, "best", refs[0].ChunkID)
	assert.Contains(t, messages[0].Content, "first second third")
	assert.NotContains(t, messages[0].Content, "fourth fifth sixth")
}

func TestAssemblePrompt_HistoryOldestDroppedFirst(t *testing.T) {
	history := []types.ChatMessage{
		{Role: types.USER_ROLE_USER, Message: "oldest question", Sequence: 1},
		{Role: types.USER_ROLE_ASSISTANT, Message: "middle answer", Sequence: 2},
		{Role: types.USER_ROLE_USER, Message: "newest question", Sequence: 3},
	}

	noteCost := wordCounter(noContextNote)
	// 留给历史的预算只够最新两条
	budget := wordCounter("sys") + wordCounter("ask") + noteCost + 4

	messages, refs, _, err := assemblePrompt(promptInput{
		SystemPrompt: "sys",
		History:      history,
		UserMessage:  "ask",
		Budget:       budget,
	}, wordCounter)
	require.NoError(t, err)
	assert.Nil(t, refs)

	var contents []string
	for _, m := range messages {
		contents = append(contents, m.Content)
	}
	joined := strings.Join(contents, "|")
	assert.Contains(t, joined, "newest question")
	assert.Contains(t, joined, "middle answer")
	assert.NotContains(t, joined, "oldest question")

	// 保留下来的历史仍按时间正序排列
	require.Len(t, messages, 4)
	assert.Equal(t, "middle answer", messages[1].Content)
	assert.Equal(t, "newest question", messages[2].Content)
}

func TestAssemblePrompt_BlockDecorationCharged(t *testing.T) {
	// 两条 chunk 的裸字数恰好吃满剩余预算，
	// 标题与分隔符计费后只能进一条，组装结果不得超出预算
	chunkA := strings.TrimSpace(strings.Repeat("alpha ", 10))
	chunkB := strings.TrimSpace(strings.Repeat("beta ", 10))
	budget := wordCounter("sys") + wordCounter("ask") + 20

	messages, refs, promptTokens, err := assemblePrompt(promptInput{
		SystemPrompt: "sys",
		Contexts: []types.ChunkQueryResult{
			{ID: "a", DocID: "d1", Chunk: chunkA, Cos: 0.9},
			{ID: "b", DocID: "d1", Chunk: chunkB, Cos: 0.8},
		},
		UserMessage: "ask",
		Budget:      budget,
	}, wordCounter)
	require.NoError(t, err)

	require.Len(t, refs, 1)
	assert.Equal(t, "a", refs[0].ChunkID)

	total := 0
	for _, m := range messages {
		total += wordCounter(m.Content)
	}
	assert.LessOrEqual(t, total, budget)
	assert.LessOrEqual(t, promptTokens, budget)
}

func TestAssemblePrompt_EmptyContextNote(t *testing.T) {
	messages, refs, _, err := assemblePrompt(promptInput{
		SystemPrompt: "sys",
		UserMessage:  "ask",
		Budget:       200,
	}, wordCounter)
	require.NoError(t, err)

	assert.Nil(t, refs)
	assert.Contains(t, messages[0].Content, noContextNote)
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "short", deriveTitle("  short "))

	long := strings.Repeat("字", 50)
	assert.Equal(t, titleMaxRunes, len([]rune(deriveTitle(long))))
}

func TestNewConversation(t *testing.T) {
	utils.SetupIDWorker(1)

	conversation := newConversation("u1", "  how long do we keep records  ")
	assert.NotEmpty(t, conversation.ID)
	assert.Equal(t, "u1", conversation.UserID)
	assert.Equal(t, types.CONVERSATION_STATUS_ACTIVE, conversation.Status)
	assert.Equal(t, "how long do we keep records", conversation.Title)
	assert.NotZero(t, conversation.CreatedAt)
}
