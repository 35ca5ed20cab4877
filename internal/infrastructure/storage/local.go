package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// LocalBackend 本地磁盘存储，目录结构为 <root>/<groupId>/<epochMillis>-<fileName>
type LocalBackend struct {
	root string
	now  func() time.Time
}

// NewLocalBackend 创建本地存储
func NewLocalBackend(root string) *LocalBackend {
	return &LocalBackend{root: root, now: time.Now}
}

func (l *LocalBackend) Kind() Kind { return KindLocal }

// IsConfigured 本地磁盘总是可用
func (l *LocalBackend) IsConfigured() bool { return true }

func (l *LocalBackend) Store(ctx context.Context, groupID, originalName string, r io.ReadSeeker) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mimeType, size, err := sniff(r)
	if err != nil {
		return nil, storageErr(err, "inspect upload %s", originalName)
	}

	dir := filepath.Join(l.root, groupID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageErr(err, "create group directory %s", groupID)
	}

	// 同一毫秒内同名上传时顺延 1ms 重试
	var (
		locator string
		f       *os.File
	)
	now := l.now()
	for attempt := 0; attempt < 5; attempt++ {
		locator = NewLocator(groupID, originalName, now.Add(time.Duration(attempt)*time.Millisecond))
		path, perr := l.resolve(locator)
		if perr != nil {
			return nil, perr
		}
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil || !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return nil, storageErr(err, "create file for %s", originalName)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return nil, storageErr(err, "write file %s", locator)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, storageErr(err, "close file %s", locator)
	}

	return &Object{Locator: locator, Size: size, MimeType: mimeType}, nil
}

// Open 返回文件流，调用方负责 Close
func (l *LocalBackend) Open(_ context.Context, locator string) (*Content, error) {
	path, err := l.resolve(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFoundErr(err, locator)
		}
		return nil, storageErr(err, "open file %s", locator)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, storageErr(err, "stat file %s", locator)
	}
	if info.IsDir() {
		f.Close()
		return nil, notFoundErr(fs.ErrNotExist, locator)
	}

	mimeType, _, err := sniff(f)
	if err != nil {
		f.Close()
		return nil, storageErr(err, "inspect file %s", locator)
	}
	return &Content{Body: f, Size: info.Size(), MimeType: mimeType}, nil
}

// Delete 删除文件，文件不存在视为成功
func (l *LocalBackend) Delete(_ context.Context, locator string) error {
	path, err := l.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr(err, "remove file %s", locator)
	}
	return nil
}

func (l *LocalBackend) resolve(locator string) (string, error) {
	groupID, fileName, err := ParseLocator(locator)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, groupID, fileName), nil
}

var _ Backend = (*LocalBackend)(nil)
