package mysql

import (
	"context"

	"gorm.io/gorm"

	"matrimony_match/internal/model"
)

// InteractionRepository 互动流水，只追加
type InteractionRepository struct {
	DB *gorm.DB
}

// Append 追加一条事件
func (r *InteractionRepository) Append(ctx context.Context, ev *model.Interaction) error {
	return r.DB.WithContext(ctx).Create(ev).Error
}

// Transition 把 from->to 方向上处于 fromStatuses 的指定类型事件迁移到 toStatus，返回影响行数
func (r *InteractionRepository) Transition(ctx context.Context, from, to uint64, kinds []model.InteractionKind,
	fromStatuses []model.InteractionStatus, toStatus model.InteractionStatus) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.Interaction{}).
		Where("from_user_id = ? AND to_user_id = ? AND kind IN ? AND status IN ?", from, to, kinds, fromStatuses).
		Update("status", toStatus)
	return res.RowsAffected, res.Error
}

// ListByUser 用户相关的全部事件（发出或收到），新的在前
func (r *InteractionRepository) ListByUser(ctx context.Context, userID uint64, offset, limit int) ([]model.Interaction, int64, error) {
	base := func() *gorm.DB {
		return r.DB.WithContext(ctx).Model(&model.Interaction{}).
			Where("(from_user_id = ? OR to_user_id = ?)", userID, userID)
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.Interaction
	if err := base().Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListForReplay 重建快速列表所需的事件：仍然生效的事件加上全部浏览事件，按时间正序
func (r *InteractionRepository) ListForReplay(ctx context.Context, userID uint64) ([]model.Interaction, error) {
	var rows []model.Interaction
	err := r.DB.WithContext(ctx).
		Where("(from_user_id = ? OR to_user_id = ?)", userID, userID).
		Where("(status IN ? OR kind = ?)",
			[]model.InteractionStatus{model.StatusActive, model.StatusPending},
			model.KindProfileViewed).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}
