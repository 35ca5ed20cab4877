package message

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"studyhub_server/internal/config"
	"studyhub_server/internal/dao/mysql/mysqltest"
	"studyhub_server/internal/dao/mysql/repository"
	myredis "studyhub_server/internal/dao/redis"
	"studyhub_server/internal/dto/request"
	"studyhub_server/internal/infrastructure/storage"
	"studyhub_server/internal/model"
	"studyhub_server/internal/service/chat"
	"studyhub_server/internal/service/guard"
	"studyhub_server/pkg/constants"
	"studyhub_server/pkg/errorx"
)

type capturePublisher struct {
	events []chat.GroupEvent
}

func (p *capturePublisher) Publish(_ context.Context, ev chat.GroupEvent) error {
	p.events = append(p.events, ev)
	return nil
}

type fixture struct {
	repos  *repository.Repositories
	root   string
	events *capturePublisher
	svc    *messageService
}

func newFixture(t *testing.T, cache myredis.AsyncCacheService) *fixture {
	t.Helper()
	repos := mysqltest.NewRepos(t)
	mysqltest.SeedUser(t, repos, "U1", "Alice", "21CS001")
	mysqltest.SeedUser(t, repos, "U2", "Bob", "21CS002")
	mysqltest.SeedGroup(t, repos, "G1", "U1")

	root := t.TempDir()
	events := &capturePublisher{}
	svc := NewMessageService(repos, guard.New(repos), storage.NewLocalBackend(root), cache, events,
		config.RetentionConfig{MessageTTL: constants.MESSAGE_EXPIRY}, 1<<20)
	return &fixture{repos: repos, root: root, events: events, svc: svc}
}

func upload(name, body string) *request.Upload {
	return &request.Upload{Name: name, Size: int64(len(body)), Reader: strings.NewReader(body)}
}

func text(content string) request.PostMessageRequest {
	return request.PostMessageRequest{Content: content}
}

func TestPostMessageRequiresContentOrFile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.PostMessage(ctx, "U1", "G1", text(content), nil)
		require.ErrorIs(t, err, errorx.ErrEmptyMessage)
		require.Equal(t, 400, errorx.HTTPStatus(err))
	}

	// 校验先于成员判断
	_, err := f.svc.PostMessage(ctx, "U2", "G1", text(""), nil)
	require.ErrorIs(t, err, errorx.ErrEmptyMessage)

	cnt, err := f.repos.Message.CountByGroup("G1")
	require.NoError(t, err)
	require.Zero(t, cnt)
}

func TestPostMessageRejectsOversizedFile(t *testing.T) {
	f := newFixture(t, nil)
	big := &request.Upload{Name: "big.bin", Size: 2 << 20, Reader: bytes.NewReader(make([]byte, 8))}
	_, err := f.svc.PostMessage(context.Background(), "U1", "G1", text(""), big)
	require.Equal(t, errorx.CodeInvalidParam, errorx.GetCode(err))
}

func TestMembershipEnforced(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.PostMessage(ctx, "U2", "G1", text("hi"), nil)
	require.ErrorIs(t, err, errorx.ErrForbidden)
	_, err = f.svc.ListMessages(ctx, "U2", "G1")
	require.ErrorIs(t, err, errorx.ErrForbidden)
	_, err = f.svc.DownloadAttachment(ctx, "U2", "G1", "1-a.txt")
	require.ErrorIs(t, err, errorx.ErrForbidden)

	_, err = f.svc.PostMessage(ctx, "U1", "G404", text("hi"), nil)
	require.ErrorIs(t, err, errorx.ErrGroupNotFound)
	_, err = f.svc.ListMessages(ctx, "U1", "G404")
	require.ErrorIs(t, err, errorx.ErrGroupNotFound)

	// 非成员发消息不会留下附件
	_, err = f.svc.PostMessage(ctx, "U2", "G1", text(""), upload("notes.txt", "x"))
	require.ErrorIs(t, err, errorx.ErrForbidden)
	_, statErr := os.Stat(filepath.Join(f.root, "G1"))
	require.True(t, os.IsNotExist(statErr))
}

func TestPostAndListMessages(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	base := time.Now()
	for i, content := range []string{"first", "second", "hello"} {
		at := base.Add(time.Duration(i) * time.Second)
		f.svc.now = func() time.Time { return at }
		rsp, err := f.svc.PostMessage(ctx, "U1", "G1", text(content), nil)
		require.NoError(t, err)
		require.Equal(t, "Alice", rsp.Sender.Name)
		require.Equal(t, "21CS001", rsp.Sender.Uid)
		require.Equal(t, "U1", rsp.Sender.Id)
		require.Empty(t, rsp.FileUrl)
	}

	list, err := f.svc.ListMessages(ctx, "U1", "G1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "hello", list[2].Content)
	require.Equal(t, "Alice", list[2].Sender.Name)
	for i := 1; i < len(list); i++ {
		require.False(t, list[i].CreatedAt.Before(list[i-1].CreatedAt))
	}

	require.Len(t, f.events.events, 3)
	require.Equal(t, chat.EventMessageCreated, f.events.events[2].Type)
	require.Equal(t, "hello", f.events.events[2].Message.Content)
}

func TestPostMessageStoresEstimatedSize(t *testing.T) {
	f := newFixture(t, nil)
	rsp, err := f.svc.PostMessage(context.Background(), "U1", "G1", text("size me"), nil)
	require.NoError(t, err)

	var stored model.Message
	require.NoError(t, f.repos.DB().Where("uuid = ?", rsp.Id).First(&stored).Error)
	require.Greater(t, stored.EstimatedSize, int64(len("size me")))
}

func TestPostMessageUnknownSenderProfile(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.repos.GroupMember.Create(&model.GroupMember{GroupUuid: "G1", UserUuid: "U9"}))

	rsp, err := f.svc.PostMessage(context.Background(), "U9", "G1", text("hi"), nil)
	require.NoError(t, err)
	require.Equal(t, "U9", rsp.Sender.Id)
	require.Empty(t, rsp.Sender.Name)
}

func TestPostMessageWithAttachment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rsp, err := f.svc.PostMessage(ctx, "U1", "G1", text(""), upload("week 3 notes.txt", "eigenvalues"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rsp.FileUrl, FilePathPrefix+"G1/"))
	require.Equal(t, "week 3 notes.txt", rsp.FileName)
	require.Contains(t, rsp.FileType, "text/plain")

	fileName, err := url.PathUnescape(strings.TrimPrefix(rsp.FileUrl, FilePathPrefix+"G1/"))
	require.NoError(t, err)
	content, err := f.svc.DownloadAttachment(ctx, "U1", "G1", fileName)
	require.NoError(t, err)
	defer content.Body.Close()
	data, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	require.Equal(t, "eigenvalues", string(data))
	require.EqualValues(t, len("eigenvalues"), content.Size)
}

func TestDownloadAttachmentMissingOrEscaping(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, name := range []string{"1-gone.txt", "..", "../G2/1-x.txt", ""} {
		_, err := f.svc.DownloadAttachment(ctx, "U1", "G1", name)
		require.ErrorIs(t, err, errorx.ErrFileNotFound, name)
	}
}

func TestPostMessageDeletesFileWhenPersistFails(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.repos.DB().Migrator().DropTable(&model.Message{}))

	_, err := f.svc.PostMessage(context.Background(), "U1", "G1", text("with file"), upload("a.txt", "orphan"))
	require.ErrorIs(t, err, errorx.ErrServerBusy)

	entries, err := os.ReadDir(filepath.Join(f.root, "G1"))
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Empty(t, f.events.events)
}

func TestListMessagesHidesExpired(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.PostMessage(ctx, "U1", "G1", text("old"), nil)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(constants.MESSAGE_EXPIRY + time.Minute) }
	list, err := f.svc.ListMessages(ctx, "U1", "G1")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestListMessagesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := myredis.NewRedisCache(client, 2, 16)

	f := newFixture(t, cache)
	ctx := context.Background()
	key := constants.GROUP_MESSAGE_CACHE + "G1"

	_, err := f.svc.PostMessage(ctx, "U1", "G1", text("one"), nil)
	require.NoError(t, err)

	list, err := f.svc.ListMessages(ctx, "U1", "G1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Eventually(t, func() bool { return mr.Exists(key) }, time.Second, 10*time.Millisecond)
	require.Greater(t, mr.TTL(key), time.Duration(0))

	// 发送后立即能读到自己的消息
	_, err = f.svc.PostMessage(ctx, "U1", "G1", text("two"), nil)
	require.NoError(t, err)
	require.False(t, mr.Exists(key))

	list, err = f.svc.ListMessages(ctx, "U1", "G1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "two", list[1].Content)

	require.Eventually(t, func() bool { return mr.Exists(key) }, time.Second, 10*time.Millisecond)
	f.svc.InvalidateGroup("G1")
	require.False(t, mr.Exists(key))
}

func TestStaleRefillDoesNotOverwriteInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := myredis.NewRedisCache(client, 1, 16)

	f := newFixture(t, cache)
	ctx := context.Background()
	key := constants.GROUP_MESSAGE_CACHE + "G1"

	// 唯一的 worker 被占住，回填只能排队
	release := make(chan struct{})
	cache.SubmitTask(func() { <-release })

	list, err := f.svc.ListMessages(ctx, "U1", "G1")
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = f.svc.PostMessage(ctx, "U1", "G1", text("hello"), nil)
	require.NoError(t, err)

	close(release)
	drained := make(chan struct{})
	cache.SubmitTask(func() { close(drained) })
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("cache worker did not drain")
	}
	require.False(t, mr.Exists(key), "stale empty list was written back")

	list, err = f.svc.ListMessages(ctx, "U1", "G1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "hello", list[0].Content)
}

func TestListMessagesCacheUnavailable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	cache := myredis.NewRedisCache(client, 1, 4)
	mr.Close()

	f := newFixture(t, cache)
	_, err := f.svc.PostMessage(context.Background(), "U1", "G1", text("still works"), nil)
	require.NoError(t, err)

	list, err := f.svc.ListMessages(context.Background(), "U1", "G1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}
