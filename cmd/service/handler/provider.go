package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/complypilot/complypilot/app/logic/v1"
	"github.com/complypilot/complypilot/app/response"
	"github.com/complypilot/complypilot/pkg/types"
	"github.com/complypilot/complypilot/pkg/utils"
)

func (s *HttpSrv) CreateProviderConfig(c *gin.Context) {
	var req v1.CreateProviderConfigArgs
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	cfg, err := v1.NewModelProviderLogic(c.Request.Context(), s.Core).CreateProviderConfig(req)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, cfg)
}

type ListProviderConfigsRequest struct {
	Provider string `form:"provider"`
	Page     uint64 `form:"page"`
	PageSize uint64 `form:"pagesize"`
}

func (s *HttpSrv) ListProviderConfigs(c *gin.Context) {
	var req ListProviderConfigsRequest
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

	list, err := v1.NewModelProviderLogic(c.Request.Context(), s.Core).ListProviderConfigs(types.ListProviderConfigOptions{
		Provider: req.Provider,
	}, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, gin.H{"list": list})
}

func (s *HttpSrv) GetProviderConfig(c *gin.Context) {
	id, _ := c.Params.Get("id")
	cfg, err := v1.NewModelProviderLogic(c.Request.Context(), s.Core).GetProviderConfig(id)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, cfg)
}

func (s *HttpSrv) UpdateProviderConfig(c *gin.Context) {
	id, _ := c.Params.Get("id")
	var req v1.UpdateProviderConfigRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	if err := v1.NewModelProviderLogic(c.Request.Context(), s.Core).UpdateProviderConfig(id, req); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

func (s *HttpSrv) ActivateProviderConfig(c *gin.Context) {
	id, _ := c.Params.Get("id")
	if err := v1.NewModelProviderLogic(c.Request.Context(), s.Core).ActivateProviderConfig(id); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

func (s *HttpSrv) DeleteProviderConfig(c *gin.Context) {
	id, _ := c.Params.Get("id")
	if err := v1.NewModelProviderLogic(c.Request.Context(), s.Core).DeleteProviderConfig(id); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}
