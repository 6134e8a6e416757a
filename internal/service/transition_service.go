package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"matrimony_match/internal/metrics"
	"matrimony_match/internal/model"
	"matrimony_match/internal/repository/mysql"
)

// 提交后第二次删除汇总缓存的延迟
const invalidateDelay = 500 * time.Millisecond

// SummaryInvalidator 汇总缓存失效
type SummaryInvalidator interface {
	Invalidate(ctx context.Context, delay time.Duration, userIDs ...uint64) error
}

// Result 一次关系迁移的结果
type Result struct {
	Message string `json:"message"`
	// Changed 为 false 表示幂等命中，没有任何写入
	Changed bool `json:"-"`
	// Matched 发送请求时因对方已发来请求而直接匹配
	Matched bool `json:"-"`
}

// TransitionService 所有会改变两人关系的操作
type TransitionService struct {
	uow     *mysql.UnitOfWork
	cache   SummaryInvalidator
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewTransitionService(db *gorm.DB, cache SummaryInvalidator, m *metrics.Metrics, log *zap.Logger) *TransitionService {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &TransitionService{cache: cache, metrics: m, log: log}
	s.uow = &mysql.UnitOfWork{
		DB: db,
		OnRetry: func(err error) {
			m.TransactionRetries.Inc()
			log.Warn("transient storage failure, retrying", zap.Error(err))
		},
	}
	return s
}

func (s *TransitionService) Shortlist(ctx context.Context, actor, target uint64) (*Result, error) {
	changed, err := s.run(ctx, "shortlist", actor, target, decideShortlist)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "Profile shortlisted", Changed: changed}, nil
}

func (s *TransitionService) RemoveFromShortlist(ctx context.Context, actor, target uint64) (*Result, error) {
	changed, err := s.run(ctx, "remove_shortlist", actor, target, decideRemoveFromShortlist)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "Profile removed from shortlist", Changed: changed}, nil
}

func (s *TransitionService) Block(ctx context.Context, actor, target uint64) (*Result, error) {
	changed, err := s.run(ctx, "block", actor, target, decideBlock)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "Profile blocked", Changed: changed}, nil
}

func (s *TransitionService) Unblock(ctx context.Context, actor, target uint64) (*Result, error) {
	changed, err := s.run(ctx, "unblock", actor, target, decideUnblock)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "Profile unblocked", Changed: changed}, nil
}

// SendMatchRequest 对方已有待处理的反向请求时直接接受该请求
func (s *TransitionService) SendMatchRequest(ctx context.Context, actor, target uint64) (*Result, error) {
	var matched bool
	changed, err := s.run(ctx, "send_request", actor, target, func(st *model.PairState) (*mysql.Change, error) {
		c, m, err := decideSendMatchRequest(st)
		matched = m
		return c, err
	})
	if err != nil {
		return nil, err
	}
	if matched {
		return &Result{Message: "Match request accepted", Changed: changed, Matched: true}, nil
	}
	return &Result{Message: "Match request sent", Changed: changed}, nil
}

// AcceptMatchRequest actor 接受 requester 发来的请求
func (s *TransitionService) AcceptMatchRequest(ctx context.Context, actor, requester uint64) (*Result, error) {
	changed, err := s.run(ctx, "accept_request", actor, requester, decideAcceptMatchRequest)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "Match request accepted", Changed: changed, Matched: true}, nil
}

func (s *TransitionService) DeclineMatchRequest(ctx context.Context, actor, requester uint64) (*Result, error) {
	changed, err := s.run(ctx, "decline_request", actor, requester, decideDeclineMatchRequest)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "Match request declined", Changed: changed}, nil
}

func (s *TransitionService) Decline(ctx context.Context, actor, target uint64) (*Result, error) {
	changed, err := s.run(ctx, "decline", actor, target, decideDecline)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "Profile declined", Changed: changed}, nil
}

func (s *TransitionService) RemoveFromDeclined(ctx context.Context, actor, target uint64) (*Result, error) {
	changed, err := s.run(ctx, "remove_declined", actor, target, decideRemoveFromDeclined)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "Profile removed from declined", Changed: changed}, nil
}

// RecordProfileView 查看自己的资料不记录，也不触碰存储
func (s *TransitionService) RecordProfileView(ctx context.Context, viewer, viewed uint64) (*Result, error) {
	if viewer != 0 && viewer == viewed {
		s.metrics.TransitionsTotal.WithLabelValues("profile_view", "noop").Inc()
		return &Result{Message: "Own profile view ignored"}, nil
	}
	changed, err := s.run(ctx, "profile_view", viewer, viewed, decideProfileView)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "Profile view recorded", Changed: changed}, nil
}

// run 参数校验、事务执行、错误归类、打点与提交后的缓存失效
func (s *TransitionService) run(ctx context.Context, action string, actor, target uint64, decide mysql.Decide) (bool, error) {
	if actor == 0 || target == 0 {
		s.metrics.TransitionsTotal.WithLabelValues(action, string(KindInvalidArgument)).Inc()
		return false, ErrInvalidArgument
	}
	// 自引用不需要进事务
	if actor == target {
		s.metrics.TransitionsTotal.WithLabelValues(action, string(KindSelfReference)).Inc()
		return false, ErrSelfReference
	}

	start := time.Now()
	change, err := s.uow.Run(ctx, actor, target, decide)
	s.metrics.TransactionSeconds.WithLabelValues(action).Observe(time.Since(start).Seconds())
	if err != nil {
		return false, s.classify(action, actor, target, err)
	}

	changed := !change.Empty()
	if !changed {
		s.metrics.TransitionsTotal.WithLabelValues(action, "noop").Inc()
		return false, nil
	}
	s.metrics.TransitionsTotal.WithLabelValues(action, "ok").Inc()
	s.invalidate(ctx, actor, target)
	s.log.Debug("relationship transition committed",
		zap.String("action", action),
		zap.Uint64("actor", actor),
		zap.Uint64("target", target),
		zap.Int("events", len(change.Events)),
		zap.Int("list_ops", len(change.ListOps)),
	)
	return true, nil
}

func (s *TransitionService) classify(action string, actor, target uint64, err error) error {
	var re *RelationError
	if errors.As(err, &re) {
		s.metrics.TransitionsTotal.WithLabelValues(action, string(re.Kind)).Inc()
		return re
	}
	if errors.Is(err, mysql.ErrTransient) {
		s.metrics.TransitionsTotal.WithLabelValues(action, string(KindTransientFailure)).Inc()
		s.log.Warn("transition gave up after retry",
			zap.String("action", action), zap.Uint64("actor", actor), zap.Uint64("target", target), zap.Error(err))
		return ErrTransientFailure
	}
	s.metrics.TransitionsTotal.WithLabelValues(action, "error").Inc()
	s.log.Error("transition failed",
		zap.String("action", action), zap.Uint64("actor", actor), zap.Uint64("target", target), zap.Error(err))
	return fmt.Errorf("%s: %w", action, err)
}

// invalidate 缓存只是加速层，失败只记日志
func (s *TransitionService) invalidate(ctx context.Context, ids ...uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, invalidateDelay, ids...); err != nil {
		s.log.Warn("summary cache invalidate failed", zap.Uint64s("users", ids), zap.Error(err))
	}
}
