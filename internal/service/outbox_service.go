package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"matrimony_match/internal/config"
	"matrimony_match/internal/metrics"
	"matrimony_match/internal/model"
	"matrimony_match/internal/pkg"
	"matrimony_match/internal/repository/mysql"
)

// Sender 投递一条 outbox 记录，返回错误时该记录会被重试
type Sender func(ctx context.Context, ob *model.InteractionOutbox) error

// OutboxRelayer outbox表相关服务
type OutboxRelayer struct {
	repo      *mysql.OutboxRepository
	batchSize int
	interval  time.Duration
	maxRetry  int
	sender    Sender
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewOutboxRelayer(db *gorm.DB, cfg config.OutboxConfig, sender Sender, m *metrics.Metrics, log *zap.Logger) *OutboxRelayer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 10
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxRelayer{
		repo:      &mysql.OutboxRepository{DB: db},
		batchSize: cfg.BatchSize,
		interval:  cfg.Interval,
		maxRetry:  cfg.MaxRetry,
		sender:    sender,
		metrics:   m,
		log:       log,
	}
}

// Run outbox启动器
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.DrainOnce(ctx)
		}
	}
}

// DrainOnce 按 id 顺序投递一批待发送记录，返回成功条数
func (r *OutboxRelayer) DrainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.batchSize)
	if err != nil {
		r.log.Error("outbox query failed", zap.Error(err))
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err = r.sender(ctx, &ob); err != nil {
			r.metrics.OutboxRelayed.WithLabelValues("failed").Inc()
			r.log.Warn("outbox send failed",
				zap.Uint64("id", ob.ID), zap.String("type", ob.EventType), zap.Int("retry", ob.Retry), zap.Error(err))
			if err = r.repo.RetryUpdate(ctx, ob.ID, r.maxRetry); err != nil {
				r.log.Error("outbox retry update failed", zap.Uint64("id", ob.ID), zap.Error(err))
			}
			continue
		}
		if err = r.repo.SuccessUpdate(ctx, ob.ID); err != nil {
			r.log.Error("outbox success update failed", zap.Uint64("id", ob.ID), zap.Error(err))
			continue
		}
		r.metrics.OutboxRelayed.WithLabelValues("sent").Inc()
		sent++
	}
	return sent
}

// LogSender 没有配置下游时使用，只打日志
func LogSender(log *zap.Logger) Sender {
	return func(ctx context.Context, ob *model.InteractionOutbox) error {
		log.Info("outbox event",
			zap.Uint64("id", ob.ID),
			zap.String("type", ob.EventType),
			zap.Uint64("from", ob.FromUserID),
			zap.Uint64("to", ob.ToUserID),
		)
		return nil
	}
}

// KafkaSender 以发起人 id 为 key，同一用户的事件落在同一分区
func KafkaSender(p *pkg.KafkaProducer) Sender {
	return func(ctx context.Context, ob *model.InteractionOutbox) error {
		return p.Send(ctx, pkg.MakeKeyFromID(ob.FromUserID), []byte(ob.Payload),
			kafka.Header{Key: "event_type", Value: []byte(ob.EventType)})
	}
}

// FanoutSender 依次调用全部 sender，任一失败整条记录重试
func FanoutSender(senders ...Sender) Sender {
	return func(ctx context.Context, ob *model.InteractionOutbox) error {
		var errs []error
		for _, s := range senders {
			if err := s(ctx, ob); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// MailNotifier 收到匹配请求、请求被接受时给对方发邮件
type MailNotifier struct {
	mailer   pkg.Mailer
	profiles ProfileStore
	log      *zap.Logger
}

func NewMailNotifier(mailer pkg.Mailer, profiles ProfileStore, log *zap.Logger) *MailNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &MailNotifier{mailer: mailer, profiles: profiles, log: log}
}

// Send 实现 Sender；收件人没有资料或邮箱时跳过
func (n *MailNotifier) Send(ctx context.Context, ob *model.InteractionOutbox) error {
	kind := model.InteractionKind(ob.EventType)
	if kind != model.KindMatchRequestSent && kind != model.KindMatchRequestAccepted {
		return nil
	}

	recipient, err := n.profiles.FindProfileByUser(ctx, ob.ToUserID)
	if errors.Is(err, ErrProfileMissing) {
		return nil
	}
	if err != nil {
		return err
	}
	if recipient.Email == "" {
		return nil
	}
	actorName := fmt.Sprintf("User %d", ob.FromUserID)
	actor, err := n.profiles.FindProfileByUser(ctx, ob.FromUserID)
	if err != nil && !errors.Is(err, ErrProfileMissing) {
		return err
	}
	if actor != nil && actor.Name != "" {
		actorName = actor.Name
	}

	var subject, body string
	if kind == model.KindMatchRequestSent {
		subject = "You have a new match request"
		body = pkg.MatchRequestHTML(recipient.Name, actorName)
	} else {
		subject = "Your match request was accepted"
		body = pkg.MatchAcceptedHTML(recipient.Name, actorName)
	}
	if err := n.mailer.Send(recipient.Email, subject, body); err != nil {
		return fmt.Errorf("mail %s to user %d: %w", kind, ob.ToUserID, err)
	}
	n.log.Debug("match notification mailed", zap.String("type", ob.EventType), zap.Uint64("to", ob.ToUserID))
	return nil
}
