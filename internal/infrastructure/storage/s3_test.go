package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"studyhub_server/internal/config"
	"studyhub_server/pkg/errorx"
)

type fakeS3 struct {
	objects map[string]int64
	getIn   *s3.GetObjectInput
	opts    s3.PresignOptions
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.objects[*in.Key] = aws.ToInt64(in.ContentLength)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	size, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(size), ContentType: aws.String("application/pdf")}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.getIn = in
	for _, fn := range optFns {
		fn(&f.opts)
	}
	return &v4.PresignedHTTPRequest{URL: "https://bucket.test/" + *in.Key + "?X-Amz-Signature=abc"}, nil
}

func newFakeS3Backend(api *fakeS3) *S3Backend {
	return &S3Backend{
		objects:   api,
		presigner: api,
		bucket:    "studyhub",
		prefix:    "study-groups",
		ttl:       time.Hour,
		now:       func() time.Time { return time.UnixMilli(7) },
	}
}

func TestS3StoreOpenDelete(t *testing.T) {
	ctx := context.Background()
	api := &fakeS3{objects: map[string]int64{}}
	b := newFakeS3Backend(api)

	obj, err := b.Store(ctx, "G9", "past paper.pdf", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)
	require.Equal(t, "G9/7-past paper.pdf", obj.Locator)
	require.Contains(t, api.objects, "study-groups/G9/7-past paper.pdf")

	content, err := b.Open(ctx, obj.Locator)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(content.RedirectURL, "https://bucket.test/study-groups/G9/"))
	require.Equal(t, time.Hour, api.opts.Expires)
	require.Contains(t, aws.ToString(api.getIn.ResponseContentDisposition), "past paper.pdf")

	require.NoError(t, b.Delete(ctx, obj.Locator))
	require.NoError(t, b.Delete(ctx, obj.Locator))

	_, err = b.Open(ctx, obj.Locator)
	require.True(t, errorx.IsNotFound(err))
}

func TestS3SignedURLUnconfigured(t *testing.T) {
	b, err := NewS3Backend(context.Background(), config.S3Config{})
	require.NoError(t, err)
	require.False(t, b.IsConfigured())

	signed, err := b.SignedURL(context.Background(), "G1/1-a.txt", "a.txt")
	require.NoError(t, err)
	require.Empty(t, signed)
}

func TestNewS3BackendAppliesOptions(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	var region string
	loadDefaultAWSConfig = func(_ context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		region = lo.Region
		return aws.Config{}, nil
	}
	var endpoint string
	newS3ClientFromConfig = func(_ aws.Config, optFns ...func(*s3.Options)) s3ObjectAPI {
		var o s3.Options
		for _, fn := range optFns {
			fn(&o)
		}
		endpoint = aws.ToString(o.BaseEndpoint)
		return s3.New(o)
	}

	b, err := NewS3Backend(context.Background(), config.S3Config{
		Region:       "eu-west-1",
		Bucket:       "studyhub",
		BaseEndpoint: "http://127.0.0.1:9000",
		AccessKey:    "minio",
		SecretKey:    "minio123",
	})
	require.NoError(t, err)
	require.True(t, b.IsConfigured())
	require.Equal(t, "eu-west-1", region)
	require.Equal(t, "http://127.0.0.1:9000", endpoint)
}
