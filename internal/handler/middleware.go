package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// AuthRequired 校验 Authorization 头中的 Bearer JWT，
// 通过后把用户 ID 写入请求上下文
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			respondError(c, http.StatusUnauthorized, "缺少认证令牌")
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			respondError(c, http.StatusUnauthorized, "认证头格式不正确")
			c.Abort()
			return
		}

		userID, err := a.auth.VerifyToken(strings.TrimSpace(parts[1]))
		if err != nil {
			respondError(c, http.StatusUnauthorized, "认证令牌无效或已过期")
			c.Abort()
			return
		}

		// 令牌有效但用户已被删除时同样拒绝
		if _, err := a.auth.GetUser(userID); err != nil {
			respondError(c, http.StatusUnauthorized, "用户不存在")
			c.Abort()
			return
		}

		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

// RequestLogger 用 slog 记录访问日志
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
