// Package message 学习小组聊天：发消息、拉取消息、下载附件
package message

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"studyhub_server/internal/config"
	"studyhub_server/internal/dao/mysql/repository"
	myredis "studyhub_server/internal/dao/redis"
	"studyhub_server/internal/dto/request"
	"studyhub_server/internal/dto/respond"
	"studyhub_server/internal/infrastructure/storage"
	"studyhub_server/internal/model"
	"studyhub_server/internal/service/chat"
	"studyhub_server/internal/service/guard"
	"studyhub_server/pkg/constants"
	"studyhub_server/pkg/errorx"
	"studyhub_server/pkg/util/random"
)

// FilePathPrefix 附件对外下载路径前缀，后接 <groupId>/<fileName>
const FilePathPrefix = "/api/study-groups/files/"

// compensateTimeout 补偿删除文件的超时，请求被取消也要执行
const compensateTimeout = 10 * time.Second

// messageService 消息业务逻辑实现
type messageService struct {
	repos     *repository.Repositories
	guard     *guard.Guard
	store     storage.Backend
	cache     myredis.AsyncCacheService
	events    chat.Publisher
	retention config.RetentionConfig
	maxUpload int64
	now       func() time.Time
}

// NewMessageService 构造函数
// cache 与 events 可以为 nil：没有缓存直接读库，没有代理不推送
func NewMessageService(
	repos *repository.Repositories,
	g *guard.Guard,
	store storage.Backend,
	cache myredis.AsyncCacheService,
	events chat.Publisher,
	retention config.RetentionConfig,
	maxUpload int64,
) *messageService {
	if maxUpload <= 0 {
		maxUpload = constants.FILE_MAX_SIZE
	}
	if retention.MessageTTL <= 0 {
		retention.MessageTTL = constants.MESSAGE_EXPIRY
	}
	return &messageService{
		repos:     repos,
		guard:     g,
		store:     store,
		cache:     cache,
		events:    events,
		retention: retention,
		maxUpload: maxUpload,
		now:       time.Now,
	}
}

// PostMessage 发送消息
// 校验 -> 成员校验 -> 存附件 -> 写库；附件已存储而后续步骤失败时删除附件
func (m *messageService) PostMessage(ctx context.Context, userId, groupId string, req request.PostMessageRequest, upload *request.Upload) (*respond.MessageRespond, error) {
	if strings.TrimSpace(req.Content) == "" && upload == nil {
		return nil, errorx.ErrEmptyMessage
	}
	if upload != nil && upload.Size > m.maxUpload {
		return nil, errorx.Newf(errorx.CodeInvalidParam, "file exceeds the %d MB limit", m.maxUpload>>20)
	}
	if _, err := m.guard.AssertMember(userId, groupId); err != nil {
		return nil, hideDBError(err)
	}

	message := model.Message{
		Uuid:      "M" + random.GetNowAndLenRandomString(11),
		GroupUuid: groupId,
		SendId:    userId,
		Content:   req.Content,
		CreatedAt: m.now(),
	}

	if upload != nil {
		obj, err := m.store.Store(ctx, groupId, upload.Name, upload.Reader)
		if err != nil {
			zap.L().Error("store attachment failed",
				zap.String("group_id", groupId),
				zap.String("file", upload.Name),
				zap.Error(err))
			return nil, errorx.ErrStorageFailure
		}
		message.Locator = obj.Locator
		message.FileUrl = fileURL(obj.Locator)
		message.FileName = storage.FileNameOf(obj.Locator)
		message.FileType = obj.MimeType
		message.FileSize = obj.Size
	}

	rsp, err := m.persist(&message)
	if err != nil {
		if message.HasAttachment() {
			m.discardAttachment(ctx, message.Locator)
		}
		return nil, err
	}

	m.invalidate(ctx, groupId)
	chat.Notify(ctx, m.events, chat.GroupEvent{
		Type:    chat.EventMessageCreated,
		GroupId: groupId,
		Message: rsp,
		At:      message.CreatedAt,
	})
	return rsp, nil
}

// fileURL 对外下载地址，路径段做转义
func fileURL(locator string) string {
	groupId, fileName, _ := strings.Cut(locator, "/")
	return FilePathPrefix + url.PathEscape(groupId) + "/" + url.PathEscape(fileName)
}

// persist 填充发送者、计算估算大小并写库
func (m *messageService) persist(message *model.Message) (*respond.MessageRespond, error) {
	sender := respond.MessageSender{Id: message.SendId}
	user, err := m.repos.User.FindByUuid(message.SendId)
	switch {
	case err == nil:
		sender.Name, sender.Uid = user.Name, user.Uid
	case errorx.IsNotFound(err):
		// 账号资料未同步时只展示 ID
	default:
		zap.L().Error("load sender failed", zap.String("user_id", message.SendId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	rsp := toRespond(message, sender)
	data, err := json.Marshal(rsp)
	if err != nil {
		zap.L().Error("encode message failed", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	message.EstimatedSize = int64(len(data))

	if err := m.repos.Message.Create(message); err != nil {
		zap.L().Error("create message failed", zap.String("group_id", message.GroupUuid), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return &rsp, nil
}

// discardAttachment 补偿删除，失败只记日志
func (m *messageService) discardAttachment(ctx context.Context, locator string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	if err := m.store.Delete(ctx, locator); err != nil {
		zap.L().Error("delete orphaned attachment failed", zap.String("locator", locator), zap.Error(err))
		return
	}
	zap.L().Info("orphaned attachment deleted", zap.String("locator", locator))
}

// ListMessages 小组消息，按创建时间升序
// 先查 Redis，未命中再查库并异步回填，回填带版本号
func (m *messageService) ListMessages(ctx context.Context, userId, groupId string) ([]respond.MessageRespond, error) {
	if _, err := m.guard.AssertMember(userId, groupId); err != nil {
		return nil, hideDBError(err)
	}

	cacheKey := constants.GROUP_MESSAGE_CACHE + groupId
	if m.cache != nil {
		rspString, err := m.cache.Get(ctx, cacheKey)
		if err != nil {
			zap.L().Warn("redis get message list failed", zap.String("key", cacheKey), zap.Error(err))
		} else if rspString != "" {
			var rsp []respond.MessageRespond
			if err := json.Unmarshal([]byte(rspString), &rsp); err == nil {
				return rsp, nil
			}
			zap.L().Error("json unmarshal cache error", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	// 查库之前记下版本号，期间发生失效则放弃回填
	versionKey := constants.GROUP_MESSAGE_VERSION + groupId
	var version int64
	refill := m.cache != nil
	if refill {
		v, err := m.cache.Version(ctx, versionKey)
		if err != nil {
			zap.L().Warn("redis get message list version failed", zap.String("key", versionKey), zap.Error(err))
			refill = false
		}
		version = v
	}

	since := m.now().Add(-m.retention.MessageTTL)
	rows, err := m.repos.Message.ListByGroup(groupId, since)
	if err != nil {
		zap.L().Error("list group messages failed", zap.String("group_id", groupId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	rspList := make([]respond.MessageRespond, 0, len(rows))
	for i := range rows {
		rspList = append(rspList, toRespond(&rows[i].Message, respond.MessageSender{
			Id:   rows[i].SendId,
			Name: rows[i].SenderName,
			Uid:  rows[i].SenderUid,
		}))
	}

	if refill {
		m.cache.SubmitTask(func() {
			rspByte, err := json.Marshal(rspList)
			if err != nil {
				return
			}
			written, err := m.cache.SetIfVersion(context.Background(), cacheKey, string(rspByte), time.Minute*constants.REDIS_TIMEOUT, versionKey, version)
			if err != nil {
				zap.L().Warn("redis set message list failed", zap.String("key", cacheKey), zap.Error(err))
				return
			}
			if !written {
				zap.L().Debug("skip stale message list refill", zap.String("key", cacheKey), zap.Int64("version", version))
			}
		})
	}
	return rspList, nil
}

// DownloadAttachment 打开小组内的附件
// 返回的 Content 要么带可读流（调用方负责关闭），要么带重定向地址
func (m *messageService) DownloadAttachment(ctx context.Context, userId, groupId, fileName string) (*storage.Content, error) {
	if _, err := m.guard.AssertMember(userId, groupId); err != nil {
		return nil, hideDBError(err)
	}
	locator := groupId + "/" + fileName
	if _, _, err := storage.ParseLocator(locator); err != nil {
		return nil, errorx.ErrFileNotFound
	}
	content, err := m.store.Open(ctx, locator)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.ErrFileNotFound
		}
		zap.L().Error("open attachment failed", zap.String("locator", locator), zap.Error(err))
		return nil, errorx.ErrStorageFailure
	}
	return content, nil
}

// InvalidateGroup 删除小组消息列表缓存，供清理和解散使用
func (m *messageService) InvalidateGroup(groupId string) {
	m.invalidate(context.Background(), groupId)
}

// invalidate 同步失效：先自增版本号让在途回填作废，再删缓存
// 发送者随后拉列表必须能看到自己的消息
func (m *messageService) invalidate(ctx context.Context, groupId string) {
	if m.cache == nil {
		return
	}
	versionKey := constants.GROUP_MESSAGE_VERSION + groupId
	if err := m.cache.BumpVersion(ctx, versionKey, constants.MESSAGE_EXPIRY); err != nil {
		zap.L().Warn("redis bump message list version failed", zap.String("group_id", groupId), zap.Error(err))
	}
	if err := m.cache.Delete(ctx, constants.GROUP_MESSAGE_CACHE+groupId); err != nil {
		zap.L().Warn("redis delete message list failed", zap.String("group_id", groupId), zap.Error(err))
	}
}

func toRespond(message *model.Message, sender respond.MessageSender) respond.MessageRespond {
	rsp := respond.MessageRespond{
		Id:        message.Uuid,
		Group:     message.GroupUuid,
		Sender:    sender,
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	}
	if message.HasAttachment() {
		rsp.FileUrl = message.FileUrl
		rsp.FileName = message.FileName
		rsp.FileType = message.FileType
	}
	return rsp
}

// hideDBError 校验阶段的数据库错误不向客户端暴露
func hideDBError(err error) error {
	switch errorx.GetCode(err) {
	case errorx.CodeNotFound, errorx.CodeForbidden, errorx.CodeInvalidParam:
		return err
	}
	return errorx.ErrServerBusy
}
