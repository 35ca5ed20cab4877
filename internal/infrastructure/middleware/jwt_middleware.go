package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studyhub_server/pkg/errorx"
	"studyhub_server/pkg/util/jwt"
)

// ContextUserID 上下文中保存当前用户 ID 的 key
const ContextUserID = "user_id"

// JWTAuth JWT 认证中间件
// 优先读取 Authorization: Bearer <token>；浏览器 websocket 无法带 header，允许 ?token=
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c)
		if !ok {
			abortUnauthorized(c, "authentication required")
			return
		}

		claims, err := jwt.ParseToken(token)
		if err != nil {
			abortUnauthorized(c, "token expired or invalid")
			return
		}
		if claims.Subject != jwt.SubjectAccessToken || claims.UserID == "" {
			abortUnauthorized(c, "an access token is required")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Next()
	}
}

// CurrentUserID 取出 JWTAuth 写入的用户 ID
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func extractToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", false
		}
		return strings.TrimSpace(token), true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    errorx.CodeUnauthorized,
		"message": msg,
	})
}
