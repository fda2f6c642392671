package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/complypilot/complypilot/app/core"
	v1 "github.com/complypilot/complypilot/app/logic/v1"
	"github.com/complypilot/complypilot/app/response"
	"github.com/complypilot/complypilot/pkg/errors"
)

// Authorization 信任上游网关注入的身份头，缺失即拒绝
func Authorization() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.Request.Header.Get("X-User-ID")
		if user == "" {
			response.APIError(c, errors.New("middleware.Authorization", errors.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized))
			return
		}
		role := c.Request.Header.Get("X-User-Role")
		if role == "" {
			role = v1.ROLE_MEMBER
		}

		info := v1.UserInfo{User: user, Role: role}
		c.Set(v1.USER_CONTEXT_KEY, info)
		c.Request = c.Request.WithContext(v1.WithUserInfo(c.Request.Context(), user, role))
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if v1.GetUserInfo(c.Request.Context()).Role != v1.ROLE_ADMIN {
			response.APIError(c, errors.New("middleware.AdminOnly", errors.ERROR_FORBIDDEN, nil).Code(http.StatusForbidden))
			return
		}
		c.Next()
	}
}

// UseMetrics 记录接口耗时与错误状态码
func UseMetrics(appCore *core.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := appCore.Metrics().ApiResponseTimer(c.FullPath())
		c.Next()
		timer.ObserveDuration()

		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			appCore.Metrics().ApiErrorInc(c.Request.Method, c.FullPath(), status)
		}
	}
}

func Cors(c *gin.Context) {
	method := c.Request.Method
	origin := c.Request.Header.Get("Origin")
	if origin != "" {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, UPDATE")
		c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, X-User-ID, X-User-Role")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Access-Control-Allow-Origin, Access-Control-Allow-Headers, Cache-Control, Content-Language, Content-Type")
		c.Header("Access-Control-Allow-Credentials", "true")
	}
	if method == "OPTIONS" {
		c.AbortWithStatus(http.StatusNoContent)
	}
	c.Next()
}
