package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"studyhub_server/internal/config"
)

const (
	resourceRaw   = "raw"
	resourceImage = "image"

	destroyOK       = "ok"
	destroyNotFound = "not found"
)

// errAssetNotFound Admin API 查不到该资源
var errAssetNotFound = errors.New("cloudinary asset not found")

// cloudinaryAPI 对 SDK 的最小封装，测试中替换为假实现
type cloudinaryAPI interface {
	upload(ctx context.Context, publicID string, r io.Reader) error
	destroy(ctx context.Context, publicID, resourceType string) (string, error)
	// asset 查询 raw 资源是否存在，不存在返回 errAssetNotFound
	asset(ctx context.Context, publicID string) error
	deliveryURL(publicID string) string
}

// CloudinaryBackend 以 raw 资源的形式存放附件，public id 即 <folder>/<locator>
type CloudinaryBackend struct {
	api    cloudinaryAPI
	folder string
	now    func() time.Time
}

// NewCloudinaryBackend 凭证优先取配置，其次取 CLOUDINARY_URL
// 两者都没有时返回未配置的后端，由 storage.New 决定降级还是失败
func NewCloudinaryBackend(cfg config.CloudinaryConfig) (*CloudinaryBackend, error) {
	b := &CloudinaryBackend{folder: strings.Trim(cfg.Folder, "/"), now: time.Now}

	var (
		cld *cloudinary.Cloudinary
		err error
	)
	switch {
	case cfg.CloudName != "" && cfg.APIKey != "" && cfg.APISecret != "":
		cld, err = cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	case os.Getenv("CLOUDINARY_URL") != "":
		cld, err = cloudinary.New()
	default:
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("init cloudinary client: %w", err)
	}
	b.api = &cloudinarySDK{cld: cld}
	return b, nil
}

func (c *CloudinaryBackend) Kind() Kind { return KindCloudinary }

func (c *CloudinaryBackend) IsConfigured() bool { return c.api != nil }

func (c *CloudinaryBackend) Store(ctx context.Context, groupID, originalName string, r io.ReadSeeker) (*Object, error) {
	if !c.IsConfigured() {
		return nil, storageErr(ErrNotConfigured, "store %s", originalName)
	}
	mimeType, size, err := sniff(r)
	if err != nil {
		return nil, storageErr(err, "inspect upload %s", originalName)
	}

	locator := NewLocator(groupID, originalName, c.now())
	if err := c.api.upload(ctx, c.publicID(locator), r); err != nil {
		return nil, storageErr(err, "upload %s to cloudinary", locator)
	}
	return &Object{Locator: locator, Size: size, MimeType: mimeType}, nil
}

// Open 确认资源仍存在后返回 CDN 地址，由 handler 重定向
func (c *CloudinaryBackend) Open(ctx context.Context, locator string) (*Content, error) {
	if !c.IsConfigured() {
		return nil, storageErr(ErrNotConfigured, "open %s", locator)
	}
	if _, _, err := ParseLocator(locator); err != nil {
		return nil, err
	}

	publicID := c.publicID(locator)
	if err := c.api.asset(ctx, publicID); err != nil {
		if errors.Is(err, errAssetNotFound) {
			return nil, notFoundErr(err, locator)
		}
		return nil, storageErr(err, "lookup asset %s", locator)
	}
	return &Content{RedirectURL: c.api.deliveryURL(publicID)}, nil
}

// Delete 先按 raw 删除，找不到再按 image 删除；两种都不存在视为成功
func (c *CloudinaryBackend) Delete(ctx context.Context, locator string) error {
	if !c.IsConfigured() {
		return storageErr(ErrNotConfigured, "delete %s", locator)
	}
	if _, _, err := ParseLocator(locator); err != nil {
		return err
	}

	publicID := c.publicID(locator)
	for _, resourceType := range []string{resourceRaw, resourceImage} {
		result, err := c.api.destroy(ctx, publicID, resourceType)
		if err != nil {
			return storageErr(err, "destroy %s (%s)", locator, resourceType)
		}
		switch result {
		case destroyOK:
			return nil
		case destroyNotFound:
			continue
		default:
			return storageErr(fmt.Errorf("unexpected result %q", result), "destroy %s (%s)", locator, resourceType)
		}
	}
	return nil
}

func (c *CloudinaryBackend) publicID(locator string) string {
	if c.folder == "" {
		return locator
	}
	return c.folder + "/" + locator
}

var _ Backend = (*CloudinaryBackend)(nil)

type cloudinarySDK struct {
	cld *cloudinary.Cloudinary
}

func (s *cloudinarySDK) upload(ctx context.Context, publicID string, r io.Reader) error {
	resp, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     publicID,
		ResourceType: resourceRaw,
	})
	if err != nil {
		return err
	}
	if resp.Error.Message != "" {
		return errors.New(resp.Error.Message)
	}
	return nil
}

func (s *cloudinarySDK) destroy(ctx context.Context, publicID, resourceType string) (string, error) {
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", errors.New(resp.Error.Message)
	}
	return resp.Result, nil
}

// asset 404 时 SDK 不返回 error，只在结果里带 "Resource not found" 信息
func (s *cloudinarySDK) asset(ctx context.Context, publicID string) error {
	resp, err := s.cld.Admin.Asset(ctx, admin.AssetParams{
		PublicID:  publicID,
		AssetType: api.File,
	})
	if err != nil {
		return err
	}
	if msg := resp.Error.Message; msg != "" {
		if strings.Contains(strings.ToLower(msg), "not found") {
			return fmt.Errorf("%w: %s", errAssetNotFound, msg)
		}
		return errors.New(msg)
	}
	return nil
}

func (s *cloudinarySDK) deliveryURL(publicID string) string {
	segments := strings.Split(publicID, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/%s/upload/%s",
		s.cld.Config.Cloud.CloudName, resourceRaw, strings.Join(segments, "/"))
}
