package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"matrimony_match/internal/metrics"
	"matrimony_match/internal/model"
	"matrimony_match/internal/pkg"
	"matrimony_match/internal/repository/mysql"
)

// SummaryCache 汇总缓存
type SummaryCache interface {
	Get(ctx context.Context, userID uint64) (*model.Summary, bool, error)
	Set(ctx context.Context, userID uint64, s *model.Summary) error
}

// ListItem 集合成员及其资料；资料缺失时只有 userId
type ListItem struct {
	ProfileCard
	Since time.Time `json:"since"`
}

// HistoryItem 流水记录
type HistoryItem struct {
	ID         uint64                  `json:"id"`
	Direction  string                  `json:"direction"` // outgoing / incoming
	FromUserID uint64                  `json:"fromUserId"`
	ToUserID   uint64                  `json:"toUserId"`
	Kind       model.InteractionKind   `json:"kind"`
	Status     model.InteractionStatus `json:"status"`
	Metadata   map[string]any          `json:"metadata,omitempty"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// ListingService 读快速列表：集合分页、汇总、流水
type ListingService struct {
	quickList *mysql.QuickListRepository
	ledger    *mysql.InteractionRepository
	profiles  ProfileStore
	cache     SummaryCache
	metrics   *metrics.Metrics
	log       *zap.Logger
	sf        singleflight.Group
	now       func() time.Time
}

func NewListingService(db *gorm.DB, profiles ProfileStore, cache SummaryCache, m *metrics.Metrics, log *zap.Logger) *ListingService {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ListingService{
		quickList: &mysql.QuickListRepository{DB: db},
		ledger:    &mysql.InteractionRepository{DB: db},
		profiles:  profiles,
		cache:     cache,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// List 某个集合的成员，最近变动的在前
func (s *ListingService) List(ctx context.Context, owner uint64, list model.ListKind, page, limit int) (*pkg.Page[ListItem], error) {
	if owner == 0 {
		return nil, ErrInvalidArgument
	}
	page, limit = pkg.NormalizePage(page, limit)
	entries, total, err := s.quickList.ListMembers(ctx, owner, list, pkg.Offset(page, limit), limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", list, err)
	}
	if len(entries) == 0 {
		return pkg.NewPage[ListItem](nil, page, limit, total), nil
	}

	ids := make([]uint64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.MemberID)
	}
	profiles, err := s.profiles.FindProfilesByUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	byUser := make(map[uint64]*model.Profile, len(profiles))
	for i := range profiles {
		byUser[profiles[i].UserID] = &profiles[i]
	}

	now := s.now()
	items := make([]ListItem, 0, len(entries))
	for _, e := range entries {
		item := ListItem{ProfileCard: ProfileCard{UserID: e.MemberID}, Since: e.UpdatedAt}
		if p, ok := byUser[e.MemberID]; ok {
			item.ProfileCard = newProfileCard(p, now)
		}
		items = append(items, item)
	}
	return pkg.NewPage(items, page, limit, total), nil
}

// GetSummary 先读缓存，未命中时同一用户的并发请求只回源一次
func (s *ListingService) GetSummary(ctx context.Context, owner uint64) (*model.Summary, error) {
	if owner == 0 {
		return nil, ErrInvalidArgument
	}
	if s.cache != nil {
		sum, ok, err := s.cache.Get(ctx, owner)
		if err != nil {
			s.log.Warn("summary cache get failed", zap.Uint64("owner", owner), zap.Error(err))
		}
		if ok {
			s.metrics.SummaryCache.WithLabelValues("hit").Inc()
			return sum, nil
		}
		s.metrics.SummaryCache.WithLabelValues("miss").Inc()
	}

	v, err, _ := s.sf.Do(strconv.FormatUint(owner, 10), func() (any, error) {
		sum, err := s.quickList.Summary(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("load summary: %w", err)
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, owner, sum); err != nil {
				s.log.Warn("summary cache set failed", zap.Uint64("owner", owner), zap.Error(err))
			}
		}
		return sum, nil
	})
	if err != nil {
		return nil, err
	}
	// 共享结果拷贝一份再返回
	sum := *v.(*model.Summary)
	return &sum, nil
}

// GetHistory 用户发出或收到的流水，新的在前
func (s *ListingService) GetHistory(ctx context.Context, owner uint64, page, limit int) (*pkg.Page[HistoryItem], error) {
	if owner == 0 {
		return nil, ErrInvalidArgument
	}
	page, limit = pkg.NormalizePage(page, limit)
	rows, total, err := s.ledger.ListByUser(ctx, owner, pkg.Offset(page, limit), limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	items := make([]HistoryItem, 0, len(rows))
	for _, ev := range rows {
		dir := "outgoing"
		if ev.FromUserID != owner {
			dir = "incoming"
		}
		items = append(items, HistoryItem{
			ID:         ev.ID,
			Direction:  dir,
			FromUserID: ev.FromUserID,
			ToUserID:   ev.ToUserID,
			Kind:       ev.Kind,
			Status:     ev.Status,
			Metadata:   ev.Metadata,
			CreatedAt:  ev.CreatedAt,
		})
	}
	return pkg.NewPage(items, page, limit, total), nil
}
