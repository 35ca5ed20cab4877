package handler

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"studyhub_server/pkg/errorx"
)

// ErrorBody 统一错误响应结构
type ErrorBody struct {
	Code    int    `json:"code"`    // 业务错误码
	Message string `json:"message"` // 提示信息
}

// HandleSuccess 返回成功响应，data 原样作为响应体
// data 为 nil 时只写状态码（如 204）
func HandleSuccess(c *gin.Context, status int, data any) {
	if data == nil {
		c.Status(status)
		return
	}
	c.JSON(status, data)
}

// HandleError 通用错误处理方法
// 业务错误按错误码映射 HTTP 状态；5xx 只返回通用提示，细节写日志
// 使用示例：
//
//	if err := svc.DoSomething(); err != nil {
//	    HandleError(c, err)
//	    return
//	}
func HandleError(c *gin.Context, err error) {
	status := errorx.HTTPStatus(err)

	var codeErr *errorx.CodeError
	if !errors.As(err, &codeErr) {
		zap.L().Error("system error",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(status, ErrorBody{Code: errorx.ErrServerBusy.Code, Message: errorx.ErrServerBusy.Msg})
		return
	}

	msg := codeErr.Msg
	if status >= http.StatusInternalServerError && errors.Unwrap(codeErr) != nil {
		// 带底层错误的 5xx 不把细节带给前端
		zap.L().Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Error(err),
		)
		msg = errorx.ErrServerBusy.Msg
	}
	c.AbortWithStatusJSON(status, ErrorBody{Code: codeErr.Code, Message: msg})
}

// HandleParamError 处理参数绑定错误（带 validator 翻译支持）
func HandleParamError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && Trans != nil {
		translated := RemoveTopStruct(validationErrs.Translate(Trans))
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{
			Code:    errorx.CodeInvalidParam,
			Message: joinMessages(translated),
		})
		return
	}

	// 非 validator 错误（如 JSON 格式错误）
	zap.L().Debug("param bind error", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{
		Code:    errorx.ErrInvalidParam.Code,
		Message: errorx.ErrInvalidParam.Msg,
	})
}

// joinMessages 按字段名排序，保证提示稳定
func joinMessages(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fields[k])
	}
	return strings.Join(msgs, "; ")
}
