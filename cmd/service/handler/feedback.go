package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/complypilot/complypilot/app/logic/v1"
	"github.com/complypilot/complypilot/app/response"
	"github.com/complypilot/complypilot/pkg/utils"
)

type SubmitFeedbackRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Helpful *bool  `json:"helpful"`
	Comment string `json:"comment"`
}

func (s *HttpSrv) SubmitFeedback(c *gin.Context) {
	messageID, _ := c.Params.Get("id")
	var req SubmitFeedbackRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	err := v1.NewFeedbackLogic(c.Request.Context(), s.Core).SubmitFeedback(v1.SubmitFeedbackArgs{
		MessageID: messageID,
		Rating:    req.Rating,
		Helpful:   req.Helpful,
		Comment:   req.Comment,
	})
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

type AnalyticsRequest struct {
	From int64 `form:"from"`
	To   int64 `form:"to"`
}

func (s *HttpSrv) GetUsageAnalytics(c *gin.Context) {
	var req AnalyticsRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	result, err := v1.NewFeedbackLogic(c.Request.Context(), s.Core).GetUsageAnalytics(req.From, req.To)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, result)
}

type TopicsRequest struct {
	From  int64 `form:"from"`
	To    int64 `form:"to"`
	Limit int   `form:"limit"`
}

func (s *HttpSrv) GetPopularTopics(c *gin.Context) {
	var req TopicsRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	result, err := v1.NewFeedbackLogic(c.Request.Context(), s.Core).GetPopularTopics(req.From, req.To, req.Limit)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, gin.H{"list": result})
}
