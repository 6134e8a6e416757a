package mysql

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"matrimony_match/internal/model"
)

// QuickListRepository 每个用户的关系集合与浏览计数
type QuickListRepository struct {
	DB *gorm.DB
}

// Ensure 幂等创建快速列表行（首次互动时惰性创建）
func (r *QuickListRepository) Ensure(ctx context.Context, owners ...uint64) error {
	rows := make([]model.QuickList, 0, len(owners))
	for _, id := range uniqueSorted(owners) {
		rows = append(rows, model.QuickList{OwnerID: id})
	}
	if len(rows) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoNothing: true,
	}).Create(&rows).Error
}

// Lock select for update 按 owner_id 升序锁住多行，固定顺序避免互相死锁
func (r *QuickListRepository) Lock(ctx context.Context, owners ...uint64) error {
	var rows []model.QuickList
	return r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id IN ?", uniqueSorted(owners)).
		Order("owner_id ASC").
		Find(&rows).Error
}

// LoadPairState 读取 actor 与 target 互相出现在对方哪些集合里
func (r *QuickListRepository) LoadPairState(ctx context.Context, actor, target uint64) (*model.PairState, error) {
	var rows []model.QuickListEntry
	if err := r.DB.WithContext(ctx).
		Select("owner_id", "list_kind", "member_id").
		Where("(owner_id = ? AND member_id = ?) OR (owner_id = ? AND member_id = ?)", actor, target, target, actor).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	st := model.NewPairState(actor, target)
	for _, e := range rows {
		if e.OwnerID == actor && e.MemberID == target {
			st.ActorLists[e.ListKind] = true
		}
		if e.OwnerID == target && e.MemberID == actor {
			st.TargetLists[e.ListKind] = true
		}
	}
	return st, nil
}

// AddMember 幂等加入集合；已存在时只刷新 updated_at（最近浏览依赖这一点）
func (r *QuickListRepository) AddMember(ctx context.Context, owner uint64, list model.ListKind, member uint64) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "list_kind"}, {Name: "member_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&model.QuickListEntry{OwnerID: owner, ListKind: list, MemberID: member}).Error
}

// RemoveMember 从集合移除，返回影响行数
func (r *QuickListRepository) RemoveMember(ctx context.Context, owner uint64, list model.ListKind, member uint64) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("owner_id = ? AND list_kind = ? AND member_id = ?", owner, list, member).
		Delete(&model.QuickListEntry{})
	return res.RowsAffected, res.Error
}

// IncrViews 调整浏览计数
func (r *QuickListRepository) IncrViews(ctx context.Context, owner uint64, given, received int64) error {
	return r.DB.WithContext(ctx).Model(&model.QuickList{}).
		Where("owner_id = ?", owner).
		Updates(map[string]any{
			"total_profile_views_given":    gorm.Expr("total_profile_views_given + ?", given),
			"total_profile_views_received": gorm.Expr("total_profile_views_received + ?", received),
		}).Error
}

// Members 返回若干集合的成员并集（去重）
func (r *QuickListRepository) Members(ctx context.Context, owner uint64, lists []model.ListKind) ([]uint64, error) {
	var ids []uint64
	if err := r.DB.WithContext(ctx).Model(&model.QuickListEntry{}).
		Where("owner_id = ? AND list_kind IN ?", owner, lists).
		Pluck("member_id", &ids).Error; err != nil {
		return nil, err
	}
	return uniqueSorted(ids), nil
}

// ListMembers 分页读取单个集合，最近变动的在前
func (r *QuickListRepository) ListMembers(ctx context.Context, owner uint64, list model.ListKind, offset, limit int) ([]model.QuickListEntry, int64, error) {
	base := func() *gorm.DB {
		return r.DB.WithContext(ctx).Model(&model.QuickListEntry{}).
			Where("owner_id = ? AND list_kind = ?", owner, list)
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.QuickListEntry
	if err := base().Order("updated_at DESC, id DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Summary 六个集合的大小与浏览计数；没有快速列表的用户返回全零
func (r *QuickListRepository) Summary(ctx context.Context, owner uint64) (*model.Summary, error) {
	var counts []struct {
		ListKind model.ListKind
		N        int64
	}
	if err := r.DB.WithContext(ctx).Model(&model.QuickListEntry{}).
		Select("list_kind, COUNT(*) AS n").
		Where("owner_id = ? AND list_kind IN ?", owner, model.RelationLists).
		Group("list_kind").
		Scan(&counts).Error; err != nil {
		return nil, err
	}

	s := &model.Summary{}
	for _, c := range counts {
		switch c.ListKind {
		case model.ListShortlisted:
			s.Shortlisted = c.N
		case model.ListBlocked:
			s.Blocked = c.N
		case model.ListSent:
			s.SentMatchRequests = c.N
		case model.ListReceived:
			s.ReceivedMatchRequests = c.N
		case model.ListAccepted:
			s.AcceptedRequests = c.N
		case model.ListDeclined:
			s.DeclinedRequests = c.N
		}
	}

	var ql model.QuickList
	err := r.DB.WithContext(ctx).Where("owner_id = ?", owner).First(&ql).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	s.TotalProfileViewsReceived = ql.TotalProfileViewsReceived
	s.TotalProfileViewsGiven = ql.TotalProfileViewsGiven
	return s, nil
}

// Replace 用重放结果整体替换某个用户的集合和计数，调用方需已持有该用户行锁
func (r *QuickListRepository) Replace(ctx context.Context, owner uint64, entries []model.QuickListEntry, given, received int64) error {
	db := r.DB.WithContext(ctx)
	if err := db.Where("owner_id = ?", owner).Delete(&model.QuickListEntry{}).Error; err != nil {
		return err
	}
	if len(entries) > 0 {
		if err := db.CreateInBatches(entries, 200).Error; err != nil {
			return err
		}
	}
	return db.Model(&model.QuickList{}).Where("owner_id = ?", owner).
		Updates(map[string]any{
			"total_profile_views_given":    given,
			"total_profile_views_received": received,
		}).Error
}

// ListOwners 按 owner_id 游标分批读取，返回本批最后一个 id
func (r *QuickListRepository) ListOwners(ctx context.Context, lastID uint64, batchSize int) ([]uint64, uint64, error) {
	var ids []uint64
	if err := r.DB.WithContext(ctx).Model(&model.QuickList{}).
		Where("owner_id > ?", lastID).
		Order("owner_id ASC").
		Limit(batchSize).
		Pluck("owner_id", &ids).Error; err != nil {
		return nil, lastID, err
	}
	if len(ids) == 0 {
		return nil, lastID, nil
	}
	return ids, ids[len(ids)-1], nil
}

func uniqueSorted(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
