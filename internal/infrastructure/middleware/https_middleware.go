package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// SecureHeaders 安全响应头；dev 模式下关闭 HTTPS 相关限制
// forceTLS 为 true 时把 http 请求重定向到 host:port
func SecureHeaders(host string, port int, forceTLS, isDevelopment bool) gin.HandlerFunc {
	opts := secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "same-origin",
		IsDevelopment:      isDevelopment,
	}
	if forceTLS {
		opts.SSLRedirect = true
		opts.SSLHost = host + ":" + strconv.Itoa(port)
		opts.STSSeconds = 31536000
	}
	secureMiddleware := secure.New(opts)

	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			// 已经写了重定向响应
			zap.L().Debug("secure middleware stopped request", zap.Error(err))
			c.Abort()
			return
		}
		c.Next()
	}
}
