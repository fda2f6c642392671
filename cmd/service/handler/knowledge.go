package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/complypilot/complypilot/app/logic/v1"
	"github.com/complypilot/complypilot/app/response"
	"github.com/complypilot/complypilot/pkg/types"
	"github.com/complypilot/complypilot/pkg/utils"
)

func (s *HttpSrv) CreateKnowledgeDoc(c *gin.Context) {
	var req v1.CreateDocumentArgs
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	doc, job, err := v1.NewKnowledgeLogic(c.Request.Context(), s.Core).CreateDocument(req)
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, gin.H{
		"doc": doc,
		"job": job,
	})
}

type ListKnowledgeDocsRequest struct {
	Category string `form:"category"`
	Keyword  string `form:"keyword"`
	Page     uint64 `form:"page"`
	PageSize uint64 `form:"pagesize"`
}

func (s *HttpSrv) ListKnowledgeDocs(c *gin.Context) {
	var req ListKnowledgeDocsRequest
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

	list, total, err := v1.NewKnowledgeLogic(c.Request.Context(), s.Core).ListDocuments(types.GetKnowledgeDocOptions{
		Category: req.Category,
		Keyword:  req.Keyword,
	}, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, gin.H{
		"list":  list,
		"total": total,
	})
}

func (s *HttpSrv) DeleteKnowledgeDoc(c *gin.Context) {
	docID, _ := c.Params.Get("doc")
	if err := v1.NewKnowledgeLogic(c.Request.Context(), s.Core).DeleteDocument(docID); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

type ReprocessDocRequest struct {
	Reset bool `json:"reset" form:"reset"`
}

func (s *HttpSrv) ReprocessKnowledgeDoc(c *gin.Context) {
	docID, _ := c.Params.Get("doc")
	var req ReprocessDocRequest
	if c.Request.ContentLength > 0 {
		if err := utils.BindArgsWithGin(c, &req); err != nil {
			response.APIError(c, err)
			return
		}
	}

	job, err := v1.NewKnowledgeLogic(c.Request.Context(), s.Core).ReprocessDocument(docID, req.Reset)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, job)
}

func (s *HttpSrv) CancelEmbeddingJob(c *gin.Context) {
	jobID, _ := c.Params.Get("job")
	job, err := v1.NewKnowledgeLogic(c.Request.Context(), s.Core).CancelJob(jobID)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, job)
}

func (s *HttpSrv) GetEmbeddingJob(c *gin.Context) {
	jobID, _ := c.Params.Get("job")
	job, err := v1.NewKnowledgeLogic(c.Request.Context(), s.Core).GetJobStatus(jobID)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, job)
}
