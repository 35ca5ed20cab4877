// Package storage 群聊附件的文件存储抽象
// 启动时按配置选定一种后端（本地磁盘 / Cloudinary / S3），注入到业务层
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"studyhub_server/pkg/errorx"
)

// Kind 后端类型
type Kind string

const (
	KindLocal      Kind = "local"
	KindCloudinary Kind = "cloudinary"
	KindS3         Kind = "s3"
)

// ErrNotConfigured 云存储凭证缺失
var ErrNotConfigured = errors.New("storage backend is not configured")

// Object 一次 Store 的结果
type Object struct {
	Locator  string // <groupId>/<epochMillis>-<fileName>，也是删除键
	Size     int64
	MimeType string
}

// Content Open 的结果：要么是可读流，要么是重定向地址
type Content struct {
	Body        io.ReadCloser
	Size        int64
	MimeType    string
	RedirectURL string
}

// Backend 文件存储后端
// Delete 必须幂等：对象已不存在视为成功
type Backend interface {
	Kind() Kind
	IsConfigured() bool
	Store(ctx context.Context, groupID, originalName string, r io.ReadSeeker) (*Object, error)
	Open(ctx context.Context, locator string) (*Content, error)
	Delete(ctx context.Context, locator string) error
}

// URLSigner 支持按需签发限时下载地址的后端
// 后端未配置时返回空串且不报错
type URLSigner interface {
	SignedURL(ctx context.Context, locator, filename string) (string, error)
}

// SanitizeName 清洗客户端上传的文件名，只保留最后一段
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return -1
		case strings.ContainsRune(`/:*?"<>|`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

// NewLocator 生成 <groupId>/<epochMillis>-<fileName>
func NewLocator(groupID, originalName string, now time.Time) string {
	return groupID + "/" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + SanitizeName(originalName)
}

// ParseLocator 拆分并校验 locator，拒绝任何跳出群目录的写法
func ParseLocator(locator string) (groupID, fileName string, err error) {
	groupID, fileName, ok := strings.Cut(locator, "/")
	if !ok || !validSegment(groupID) || !validSegment(fileName) {
		return "", "", errorx.Newf(errorx.CodeInvalidParam, "invalid file locator %q", locator)
	}
	return groupID, fileName, nil
}

// FileNameOf 取 locator 中 "<epochMillis>-" 之后的原始文件名
func FileNameOf(locator string) string {
	_, fileName, err := ParseLocator(locator)
	if err != nil {
		return ""
	}
	if _, rest, ok := strings.Cut(fileName, "-"); ok && rest != "" {
		return rest
	}
	return fileName
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\\x00")
}

// sniff 识别内容类型并统计大小，结束后把读指针放回开头
func sniff(r io.ReadSeeker) (string, int64, error) {
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return "", 0, fmt.Errorf("detect mime type: %w", err)
	}
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return "", 0, fmt.Errorf("seek end: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", 0, fmt.Errorf("seek start: %w", err)
	}
	return mtype.String(), size, nil
}

func storageErr(err error, format string, args ...any) error {
	return errorx.Wrapf(err, errorx.CodeStorageError, format, args...)
}

func notFoundErr(err error, locator string) error {
	return errorx.Wrapf(err, errorx.CodeNotFound, "file %s not found", locator)
}
