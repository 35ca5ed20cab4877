package repository

import (
	"strings"
	"time"

	"studyhub_server/internal/model"
	"studyhub_server/pkg/errorx"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 追加消息，正文和附件不能同时为空
func (r *messageRepository) Create(message *model.Message) error {
	if strings.TrimSpace(message.Content) == "" && !message.HasAttachment() {
		return errorx.ErrEmptyMessage
	}
	if err := r.db.Create(message).Error; err != nil {
		return wrapDBError(err, "创建消息")
	}
	return nil
}

// ListByGroup LEFT JOIN user_info 填充发送者；已过期的消息不返回
func (r *messageRepository) ListByGroup(groupUuid string, since time.Time) ([]MessageWithSender, error) {
	var rows []MessageWithSender
	err := r.db.Table("message").
		Select("message.*, user_info.name AS sender_name, user_info.uid AS sender_uid").
		Joins("LEFT JOIN user_info ON user_info.uuid = message.send_id AND user_info.deleted_at IS NULL").
		Where("message.group_uuid = ? AND message.created_at > ?", groupUuid, since).
		Order("message.created_at ASC, message.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询小组消息 group_uuid=%s", groupUuid)
	}
	return rows, nil
}

// CountByGroup 小组消息数
func (r *messageRepository) CountByGroup(groupUuid string) (int64, error) {
	var cnt int64
	if err := r.db.Model(&model.Message{}).Where("group_uuid = ?", groupUuid).Count(&cnt).Error; err != nil {
		return 0, wrapDBErrorf(err, "统计小组消息 group_uuid=%s", groupUuid)
	}
	return cnt, nil
}

// SumEstimatedSize 小组消息估算总大小（字节）
func (r *messageRepository) SumEstimatedSize(groupUuid string) (int64, error) {
	var total int64
	if err := r.db.Model(&model.Message{}).
		Select("COALESCE(SUM(estimated_size), 0)").
		Where("group_uuid = ?", groupUuid).
		Scan(&total).Error; err != nil {
		return 0, wrapDBErrorf(err, "统计小组消息大小 group_uuid=%s", groupUuid)
	}
	return total, nil
}

// OldestN 最早的 n 条，只查删除所需的列
func (r *messageRepository) OldestN(groupUuid string, n int) ([]model.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	var messages []model.Message
	if err := r.db.Select("id", "uuid", "locator").
		Where("group_uuid = ?", groupUuid).
		Order("created_at ASC, id ASC").
		Limit(n).
		Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询最早消息 group_uuid=%s n=%d", groupUuid, n)
	}
	return messages, nil
}

// ExpiredBefore 已过被动过期时间的消息
func (r *messageRepository) ExpiredBefore(groupUuid string, before time.Time) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Select("id", "uuid", "locator").
		Where("group_uuid = ? AND created_at <= ?", groupUuid, before).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询过期消息 group_uuid=%s", groupUuid)
	}
	return messages, nil
}

// DeleteByIds 批量删除
func (r *messageRepository) DeleteByIds(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.Where("id IN ?", ids).Delete(&model.Message{})
	if res.Error != nil {
		return 0, wrapDBErrorf(res.Error, "批量删除消息 count=%d", len(ids))
	}
	return res.RowsAffected, nil
}

// FindAttachmentsByGroup 带附件的消息 id/uuid/locator
func (r *messageRepository) FindAttachmentsByGroup(groupUuid string) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Select("id", "uuid", "locator").
		Where("group_uuid = ? AND locator <> ''", groupUuid).
		Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询小组附件 group_uuid=%s", groupUuid)
	}
	return messages, nil
}

// DeleteByGroup 删除小组全部消息
func (r *messageRepository) DeleteByGroup(groupUuid string) (int64, error) {
	res := r.db.Where("group_uuid = ?", groupUuid).Delete(&model.Message{})
	if res.Error != nil {
		return 0, wrapDBErrorf(res.Error, "删除小组消息 group_uuid=%s", groupUuid)
	}
	return res.RowsAffected, nil
}
