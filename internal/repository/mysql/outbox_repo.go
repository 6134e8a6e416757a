package mysql

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"matrimony_match/internal/model"
)

type OutboxRepository struct {
	DB *gorm.DB
}

// OutboxPayload 投递到下游的事件体
type OutboxPayload struct {
	EventID    string                  `json:"event_id"`
	LedgerID   uint64                  `json:"ledger_id"`
	Kind       model.InteractionKind   `json:"kind"`
	Status     model.InteractionStatus `json:"status"`
	FromUserID uint64                  `json:"from_user_id"`
	ToUserID   uint64                  `json:"to_user_id"`
	Metadata   map[string]any          `json:"metadata,omitempty"`
	EventTime  string                  `json:"event_time"`
}

// InsertFor 为一条已写入的流水生成 outbox 记录，需与流水处于同一事务
func (r *OutboxRepository) InsertFor(ctx context.Context, ev *model.Interaction) error {
	payload, err := json.Marshal(OutboxPayload{
		EventID:    uuid.NewString(),
		LedgerID:   ev.ID,
		Kind:       ev.Kind,
		Status:     ev.Status,
		FromUserID: ev.FromUserID,
		ToUserID:   ev.ToUserID,
		Metadata:   ev.Metadata,
		EventTime:  ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Create(&model.InteractionOutbox{
		EventType:  string(ev.Kind),
		FromUserID: ev.FromUserID,
		ToUserID:   ev.ToUserID,
		Payload:    string(payload),
		Status:     model.OutboxPending,
	}).Error
}

// List outbox 待投递记录
func (r *OutboxRepository) List(ctx context.Context, batchSize int) ([]model.InteractionOutbox, error) {
	var list []model.InteractionOutbox
	if err := r.DB.WithContext(ctx).
		Where("status = ?", model.OutboxPending).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// RetryUpdate 投递失败：重试次数+1，达到上限后标记为失败不再拉取
// 先按旧的 retry 计算状态再自增，避免依赖数据库对同一条 UPDATE 中赋值顺序的处理
func (r *OutboxRepository) RetryUpdate(ctx context.Context, id uint64, maxRetry int) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.InteractionOutbox{}).Where("id = ?", id).
			Update("status", gorm.Expr("CASE WHEN retry + 1 >= ? THEN ? ELSE ? END", maxRetry, model.OutboxFailed, model.OutboxPending)).Error; err != nil {
			return err
		}
		return tx.Model(&model.InteractionOutbox{}).Where("id = ?", id).
			Update("retry", gorm.Expr("retry + 1")).Error
	})
}

// SuccessUpdate outbox 投递成功
func (r *OutboxRepository) SuccessUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.InteractionOutbox{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}
