package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"studyhub_server/internal/config"
	"studyhub_server/pkg/constants"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3ObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3Presigner = func(api s3ObjectAPI) s3PresignAPI {
		if c, ok := api.(*s3.Client); ok {
			return s3.NewPresignClient(c)
		}
		return nil
	}
)

// s3ObjectAPI *s3.Client 中用到的方法
type s3ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3PresignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Backend 对象存储后端（AWS S3 / MinIO），下载一律走限时签名地址
type S3Backend struct {
	objects   s3ObjectAPI
	presigner s3PresignAPI
	bucket    string
	prefix    string
	ttl       time.Duration
	now       func() time.Time
}

// NewS3Backend bucket 为空时返回未配置的后端
func NewS3Backend(ctx context.Context, cfg config.S3Config) (*S3Backend, error) {
	b := &S3Backend{
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		ttl:    constants.SIGNED_URL_TTL,
		now:    time.Now,
	}
	if cfg.Bucket == "" {
		return b, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	b.objects = newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	b.presigner = newS3Presigner(b.objects)
	return b, nil
}

func (b *S3Backend) Kind() Kind { return KindS3 }

func (b *S3Backend) IsConfigured() bool { return b.objects != nil && b.presigner != nil }

func (b *S3Backend) Store(ctx context.Context, groupID, originalName string, r io.ReadSeeker) (*Object, error) {
	if !b.IsConfigured() {
		return nil, storageErr(ErrNotConfigured, "store %s", originalName)
	}
	mimeType, size, err := sniff(r)
	if err != nil {
		return nil, storageErr(err, "inspect upload %s", originalName)
	}

	locator := NewLocator(groupID, originalName, b.now())
	_, err = b.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.key(locator)),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(mimeType),
	})
	if err != nil {
		return nil, storageErr(err, "put object %s", locator)
	}
	return &Object{Locator: locator, Size: size, MimeType: mimeType}, nil
}

// Open 确认对象存在后返回签名下载地址
func (b *S3Backend) Open(ctx context.Context, locator string) (*Content, error) {
	if !b.IsConfigured() {
		return nil, storageErr(ErrNotConfigured, "open %s", locator)
	}
	if _, _, err := ParseLocator(locator); err != nil {
		return nil, err
	}

	head, err := b.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(locator)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, notFoundErr(err, locator)
		}
		return nil, storageErr(err, "head object %s", locator)
	}

	signed, err := b.SignedURL(ctx, locator, FileNameOf(locator))
	if err != nil {
		return nil, err
	}
	return &Content{
		RedirectURL: signed,
		Size:        aws.ToInt64(head.ContentLength),
		MimeType:    aws.ToString(head.ContentType),
	}, nil
}

// SignedURL 签发 1 小时有效的 GET 地址，filename 写入 Content-Disposition
func (b *S3Backend) SignedURL(ctx context.Context, locator, filename string) (string, error) {
	if !b.IsConfigured() {
		return "", nil
	}
	in := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(locator)),
	}
	if filename != "" {
		in.ResponseContentDisposition = aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	req, err := b.presigner.PresignGetObject(ctx, in, s3.WithPresignExpires(b.ttl))
	if err != nil {
		return "", storageErr(err, "presign %s", locator)
	}
	return req.URL, nil
}

// Delete S3 的 DeleteObject 本身对不存在的 key 返回成功
func (b *S3Backend) Delete(ctx context.Context, locator string) error {
	if !b.IsConfigured() {
		return storageErr(ErrNotConfigured, "delete %s", locator)
	}
	if _, _, err := ParseLocator(locator); err != nil {
		return err
	}
	_, err := b.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(locator)),
	})
	if err != nil && !isS3NotFound(err) {
		return storageErr(err, "delete object %s", locator)
	}
	return nil
}

func (b *S3Backend) key(locator string) string {
	if b.prefix == "" {
		return locator
	}
	return b.prefix + "/" + locator
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

var (
	_ Backend   = (*S3Backend)(nil)
	_ URLSigner = (*S3Backend)(nil)
)
