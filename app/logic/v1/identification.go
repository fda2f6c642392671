package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/complypilot/complypilot/pkg/errors"
)

const (
	USER_CONTEXT_KEY = "__chat_user"
	ROLE_ADMIN       = "admin"
	ROLE_MEMBER      = "member"
)

// UserInfo 网关透传的调用方身份
type UserInfo struct {
	User string
	Role string
}

type userInfoKey struct{}

func WithUserInfo(ctx context.Context, user, role string) context.Context {
	return context.WithValue(ctx, userInfoKey{}, UserInfo{User: user, Role: role})
}

func GetUserInfo(ctx context.Context) UserInfo {
	info, _ := ctx.Value(userInfoKey{}).(UserInfo)
	return info
}

func InjectUserInfo(c *gin.Context) (UserInfo, error) {
	raw, exists := c.Get(USER_CONTEXT_KEY)
	if !exists {
		return UserInfo{}, errors.New("InjectUserInfo", errors.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized)
	}
	info, ok := raw.(UserInfo)
	if !ok || info.User == "" {
		return UserInfo{}, errors.New("InjectUserInfo.cast", errors.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized)
	}
	return info, nil
}
