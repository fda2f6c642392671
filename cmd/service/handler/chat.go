package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/complypilot/complypilot/app/logic/v1"
	"github.com/complypilot/complypilot/app/response"
	"github.com/complypilot/complypilot/pkg/errors"
	"github.com/complypilot/complypilot/pkg/utils"
)

type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" binding:"required"`
}

// Chat 一轮问答。conversation_id 为空时新会话在本轮内建立，
// 整轮失败不会留下空会话。
func (s *HttpSrv) Chat(c *gin.Context) {
	var req ChatRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	msg, err := v1.NewChatLogic(c.Request.Context(), s.Core).SendMessage(req.ConversationID, req.Message)
	if err != nil {
		response.APIError(c, errors.Trace("Chat", err))
		return
	}

	response.APISuccess(c, gin.H{
		"conversation_id": msg.ConversationID,
		"message":         msg,
		"refs":            msg.ChunkRefs(),
	})
}

type ListConversationsRequest struct {
	Page     uint64 `form:"page"`
	PageSize uint64 `form:"pagesize"`
}

func (s *HttpSrv) ListConversations(c *gin.Context) {
	var req ListConversationsRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	list, err := v1.NewChatLogic(c.Request.Context(), s.Core).ListConversations(req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, gin.H{"list": list})
}

func (s *HttpSrv) ArchiveConversation(c *gin.Context) {
	id, _ := c.Params.Get("id")
	if err := v1.NewChatLogic(c.Request.Context(), s.Core).ArchiveConversation(id); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

type ListMessagesRequest struct {
	Page     uint64 `form:"page"`
	PageSize uint64 `form:"pagesize"`
}

func (s *HttpSrv) ListConversationMessages(c *gin.Context) {
	id, _ := c.Params.Get("id")
	var req ListMessagesRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 || req.PageSize > 200 {
		req.PageSize = 50
	}

	list, err := v1.NewChatLogic(c.Request.Context(), s.Core).ListMessages(id, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, gin.H{"list": list})
}
