package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"matrimony_match/internal/config"
	"matrimony_match/internal/model"
	"matrimony_match/internal/repository/mysql"
	"matrimony_match/internal/repository/redis"
)

// ErrRebuildInProgress 同一用户的重建正在进行
var ErrRebuildInProgress = errors.New("quick list rebuild already in progress")

// RebuildService 从流水重放出快速列表，用于修复或初始化
type RebuildService struct {
	uow   *mysql.UnitOfWork
	lock  *redis.DistLock
	cache SummaryInvalidator
	log   *zap.Logger
}

// NewRebuildService lock 为空时只依赖数据库行锁
func NewRebuildService(db *gorm.DB, lock *redis.DistLock, cache SummaryInvalidator, log *zap.Logger) *RebuildService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RebuildService{
		uow:   &mysql.UnitOfWork{DB: db},
		lock:  lock,
		cache: cache,
		log:   log,
	}
}

// RebuildQuickList 在持有该用户行锁的事务内重放流水，整体替换集合与计数
func (s *RebuildService) RebuildQuickList(ctx context.Context, userID uint64) error {
	if userID == 0 {
		return ErrInvalidArgument
	}
	if s.lock != nil {
		name := "rebuild:" + strconv.FormatUint(userID, 10)
		token := uuid.NewString()
		ok, err := s.lock.Acquire(ctx, name, token)
		if err != nil {
			return fmt.Errorf("acquire rebuild lock: %w", err)
		}
		if !ok {
			return ErrRebuildInProgress
		}
		defer func() {
			if err := s.lock.Release(context.Background(), name, token); err != nil {
				s.log.Warn("release rebuild lock failed", zap.Uint64("user", userID), zap.Error(err))
			}
		}()
	}

	var entries int
	err := s.uow.WithOwnerLock(ctx, userID, func(tx *gorm.DB) error {
		events, err := (&mysql.InteractionRepository{DB: tx}).ListForReplay(ctx, userID)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}
		rows, given, received := replay(userID, events)
		entries = len(rows)
		return (&mysql.QuickListRepository{DB: tx}).Replace(ctx, userID, rows, given, received)
	})
	if err != nil {
		return fmt.Errorf("rebuild quick list %d: %w", userID, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, 0, userID); err != nil {
			s.log.Warn("summary cache invalidate failed", zap.Uint64("user", userID), zap.Error(err))
		}
	}
	s.log.Info("quick list rebuilt", zap.Uint64("user", userID), zap.Int("entries", entries))
	return nil
}

type memberKey struct {
	list   model.ListKind
	member uint64
}

// replay 按时间正序把 owner 相关的生效事件折叠为集合成员和浏览计数
func replay(owner uint64, events []model.Interaction) ([]model.QuickListEntry, int64, int64) {
	var (
		given, received int64
		order           []memberKey
		entries         = map[memberKey]*model.QuickListEntry{}
	)
	put := func(list model.ListKind, member uint64, at time.Time) {
		k := memberKey{list: list, member: member}
		if e, ok := entries[k]; ok {
			e.UpdatedAt = at
			return
		}
		entries[k] = &model.QuickListEntry{OwnerID: owner, ListKind: list, MemberID: member, CreatedAt: at, UpdatedAt: at}
		order = append(order, k)
	}

	for _, ev := range events {
		outgoing := ev.FromUserID == owner
		other := ev.ToUserID
		if !outgoing {
			other = ev.FromUserID
		}

		if ev.Kind == model.KindProfileViewed {
			if outgoing {
				given++
			} else {
				received++
				put(model.ListViewers, other, ev.CreatedAt)
			}
			continue
		}

		switch {
		case ev.Kind == model.KindShortlisted && outgoing && ev.Status == model.StatusActive:
			put(model.ListShortlisted, other, ev.CreatedAt)
		case ev.Kind == model.KindBlocked && outgoing && ev.Status == model.StatusActive:
			put(model.ListBlocked, other, ev.CreatedAt)
		case ev.Kind == model.KindMatchRequestSent && ev.Status == model.StatusPending:
			if outgoing {
				put(model.ListSent, other, ev.CreatedAt)
			} else {
				put(model.ListReceived, other, ev.CreatedAt)
			}
		case ev.Kind == model.KindMatchRequestAccepted && ev.Status == model.StatusActive:
			// 匹配关系对双方对称
			put(model.ListAccepted, other, ev.CreatedAt)
		case (ev.Kind == model.KindDeclined || ev.Kind == model.KindMatchRequestDeclined) &&
			outgoing && ev.Status == model.StatusActive:
			put(model.ListDeclined, other, ev.CreatedAt)
		}
	}

	rows := make([]model.QuickListEntry, 0, len(order))
	for _, k := range order {
		rows = append(rows, *entries[k])
	}
	return rows, given, received
}

// QuickListReconciler 定期按 owner_id 分批重建所有快速列表
type QuickListReconciler struct {
	repo      *mysql.QuickListRepository
	rebuild   *RebuildService
	batchSize int
	interval  time.Duration
	log       *zap.Logger
}

func NewQuickListReconciler(db *gorm.DB, cfg config.ReconcileConfig, rebuild *RebuildService, log *zap.Logger) *QuickListReconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500 // 一批对账的用户数
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour // 对账的间隔时间
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &QuickListReconciler{
		repo:      &mysql.QuickListRepository{DB: db},
		rebuild:   rebuild,
		batchSize: cfg.BatchSize,
		interval:  cfg.Interval,
		log:       log,
	}
}

// ReconcilerRun 对账定时任务启动器
func (r *QuickListReconciler) ReconcilerRun(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := r.ReconcileOnce(ctx)
			if err != nil && ctx.Err() == nil {
				r.log.Error("quick list reconcile failed", zap.Int("rebuilt", n), zap.Error(err))
				continue
			}
			r.log.Debug("quick list reconciled", zap.Int("rebuilt", n))
		}
	}
}

// ReconcileOnce 遍历一遍全部用户，返回成功重建的数量；单个用户失败只记日志
func (r *QuickListReconciler) ReconcileOnce(ctx context.Context) (int, error) {
	var (
		lastID uint64
		done   int
	)
	for {
		ids, next, err := r.repo.ListOwners(ctx, lastID, r.batchSize)
		if err != nil {
			return done, fmt.Errorf("list owners after %d: %w", lastID, err)
		}
		if len(ids) == 0 {
			return done, nil
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return done, err
			}
			if err := r.rebuild.RebuildQuickList(ctx, id); err != nil {
				r.log.Warn("rebuild skipped", zap.Uint64("user", id), zap.Error(err))
				continue
			}
			done++
		}
		lastID = next
	}
}
