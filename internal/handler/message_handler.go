// Package handler 提供 HTTP 请求处理器
// 本文件处理小组聊天消息和附件下载
package handler

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studyhub_server/internal/dto/request"
	"studyhub_server/internal/infrastructure/middleware"
	"studyhub_server/internal/infrastructure/storage"
	"studyhub_server/internal/service"
	"studyhub_server/pkg/errorx"
)

// multipartOverhead 表单字段和边界占用的额外字节
const multipartOverhead = 1 << 20

// MessageHandler 小组消息请求处理器
type MessageHandler struct {
	messageSvc service.MessageService
	maxUpload  int64
}

// NewMessageHandler 创建消息处理器实例
// maxUpload: 单个附件的最大字节数
func NewMessageHandler(messageSvc service.MessageService, maxUpload int64) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc, maxUpload: maxUpload}
}

// ListMessages 小组聊天记录，按创建时间升序
// GET /api/study-groups/:id/messages
// 响应: []respond.MessageRespond
func (h *MessageHandler) ListMessages(c *gin.Context) {
	data, err := h.messageSvc.ListMessages(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// PostMessage 发送消息
// POST /api/study-groups/:id/messages
// multipart 表单: content（可选）、file（可选）
// 响应: 201 respond.MessageRespond
func (h *MessageHandler) PostMessage(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)
	}

	var req request.PostMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		h.bindError(c, err)
		return
	}

	upload, file, err := h.formUpload(c)
	if err != nil {
		h.bindError(c, err)
		return
	}
	if file != nil {
		defer func() { _ = file.Close() }()
	}

	data, err := h.messageSvc.PostMessage(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req, upload)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusCreated, data)
}

// formUpload 取出 file 表单项，没有附件时返回 nil
func (h *MessageHandler) formUpload(c *gin.Context) (*request.Upload, multipart.File, error) {
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &request.Upload{Name: fh.Filename, Size: fh.Size, Reader: f}, f, nil
}

func (h *MessageHandler) bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		HandleError(c, errorx.Newf(errorx.CodeInvalidParam, "file exceeds the %d MB limit", h.maxUpload>>20))
		return
	}
	HandleParamError(c, err)
}

// DownloadAttachment 下载附件
// GET /api/study-groups/files/:groupId/:filename
// 本地存储直接流式返回；云存储重定向到对象地址
func (h *MessageHandler) DownloadAttachment(c *gin.Context) {
	groupId, fileName := c.Param("groupId"), c.Param("filename")
	content, err := h.messageSvc.DownloadAttachment(c.Request.Context(), middleware.CurrentUserID(c), groupId, fileName)
	if err != nil {
		HandleError(c, err)
		return
	}

	if content.RedirectURL != "" {
		c.Redirect(http.StatusFound, content.RedirectURL)
		return
	}
	defer func() { _ = content.Body.Close() }()

	name := storage.FileNameOf(groupId + "/" + fileName)
	contentType := content.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, content.Size, contentType, content.Body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": name}),
	})
	if err := c.Request.Context().Err(); err != nil {
		zap.L().Debug("download aborted by client",
			zap.String("group_id", groupId),
			zap.String("file", fileName),
			zap.Error(err))
	}
}
