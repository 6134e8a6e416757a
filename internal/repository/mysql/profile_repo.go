package mysql

import (
	"context"

	"gorm.io/gorm"

	"matrimony_match/internal/model"
)

// ProfileRepository 资料表的只读访问，资料本身由资料服务维护
type ProfileRepository struct {
	DB *gorm.DB
}

func (r *ProfileRepository) FindByUser(ctx context.Context, userID uint64) (*model.Profile, error) {
	var p model.Profile
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	return &p, err
}

func (r *ProfileRepository) FindByUsers(ctx context.Context, userIDs []uint64) ([]model.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var list []model.Profile
	err := r.DB.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&list).Error
	return list, err
}

// Search 活跃资料检索，排除 excludeIDs，按创建时间倒序分页
func (r *ProfileRepository) Search(ctx context.Context, f model.ProfileFilter, excludeIDs []uint64, offset, limit int) ([]model.Profile, int64, error) {
	base := func() *gorm.DB {
		q := r.DB.WithContext(ctx).Model(&model.Profile{}).Where("is_active = ?", true)
		if f.Gender != "" {
			q = q.Where("gender = ?", f.Gender)
		}
		if len(excludeIDs) > 0 {
			q = q.Where("user_id NOT IN ?", excludeIDs)
		}
		if !f.BornAfter.IsZero() {
			q = q.Where("date_of_birth > ?", f.BornAfter)
		}
		if !f.BornOnOrBefore.IsZero() {
			q = q.Where("date_of_birth <= ?", f.BornOnOrBefore)
		}
		if len(f.Religions) > 0 {
			q = q.Where("religion IN ?", f.Religions)
		}
		if len(f.Cities) > 0 {
			q = q.Where("city IN ?", f.Cities)
		}
		if len(f.MotherTongues) > 0 {
			q = q.Where("mother_tongue IN ?", f.MotherTongues)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Profile
	if err := base().Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
