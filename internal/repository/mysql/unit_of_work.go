package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"matrimony_match/internal/model"
)

// StatusTransition 流水状态迁移，例如把有效的收藏事件置为 expired
type StatusTransition struct {
	From         uint64
	To           uint64
	Kinds        []model.InteractionKind
	FromStatuses []model.InteractionStatus
	ToStatus     model.InteractionStatus
}

// ListOp 快速列表集合的增删
type ListOp struct {
	Owner  uint64
	List   model.ListKind
	Member uint64
	Remove bool
}

// CounterOp 浏览计数增量
type CounterOp struct {
	Owner    uint64
	Given    int64
	Received int64
}

// Change 一次迁移需要落库的全部内容：流水、状态迁移、集合变更、计数
// 只能通过 UnitOfWork.Run 在同一个事务内整体提交
type Change struct {
	Events      []*model.Interaction
	Transitions []StatusTransition
	ListOps     []ListOp
	Counters    []CounterOp
}

// Empty 没有任何写入（幂等命中）
func (c *Change) Empty() bool {
	return c == nil || (len(c.Events) == 0 && len(c.Transitions) == 0 && len(c.ListOps) == 0 && len(c.Counters) == 0)
}

// Decide 在加锁后的关系快照上计算变更；返回的错误会使事务回滚并原样返回
type Decide func(st *model.PairState) (*Change, error)

// UnitOfWork 流水与快速列表的原子写入
type UnitOfWork struct {
	DB *gorm.DB
	// OnRetry 瞬时错误触发重试时回调（打点用）
	OnRetry func(err error)
}

// Run 事务内：确保两边的快速列表存在，按 owner_id 顺序加行锁，读取关系快照，
// 计算变更并应用。瞬时错误整体重试一次，仍失败则返回包装了 ErrTransient 的错误。
func (u *UnitOfWork) Run(ctx context.Context, actor, target uint64, decide Decide) (*Change, error) {
	var (
		change *Change
		err    error
	)
	for attempt := 0; attempt < 2; attempt++ {
		change, err = u.runOnce(ctx, actor, target, decide)
		if err == nil || !IsTransient(err) {
			return change, err
		}
		if attempt == 0 && u.OnRetry != nil {
			u.OnRetry(err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrTransient, err)
}

func (u *UnitOfWork) runOnce(ctx context.Context, actor, target uint64, decide Decide) (*Change, error) {
	var change *Change
	err := u.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		qlRepo := &QuickListRepository{DB: tx}

		if err := qlRepo.Ensure(ctx, actor, target); err != nil {
			return err
		}
		if err := qlRepo.Lock(ctx, actor, target); err != nil {
			return err
		}
		st, err := qlRepo.LoadPairState(ctx, actor, target)
		if err != nil {
			return err
		}

		c, err := decide(st)
		if err != nil {
			return err
		}
		if err = apply(ctx, tx, c); err != nil {
			return err
		}
		change = c
		return nil
	})
	return change, err
}

// apply 先迁移旧事件状态，再追加新事件（每条都写 outbox），最后改集合与计数
func apply(ctx context.Context, tx *gorm.DB, c *Change) error {
	if c.Empty() {
		return nil
	}
	ledger := &InteractionRepository{DB: tx}
	qlRepo := &QuickListRepository{DB: tx}
	outbox := &OutboxRepository{DB: tx}

	for _, t := range c.Transitions {
		if _, err := ledger.Transition(ctx, t.From, t.To, t.Kinds, t.FromStatuses, t.ToStatus); err != nil {
			return fmt.Errorf("transition %v %d->%d: %w", t.Kinds, t.From, t.To, err)
		}
	}
	for _, ev := range c.Events {
		if err := ledger.Append(ctx, ev); err != nil {
			return fmt.Errorf("append %s: %w", ev.Kind, err)
		}
		if err := outbox.InsertFor(ctx, ev); err != nil {
			return fmt.Errorf("outbox %s: %w", ev.Kind, err)
		}
	}
	for _, op := range c.ListOps {
		var err error
		if op.Remove {
			_, err = qlRepo.RemoveMember(ctx, op.Owner, op.List, op.Member)
		} else {
			err = qlRepo.AddMember(ctx, op.Owner, op.List, op.Member)
		}
		if err != nil {
			return fmt.Errorf("quick list %s owner=%d: %w", op.List, op.Owner, err)
		}
	}
	for _, op := range c.Counters {
		if err := qlRepo.IncrViews(ctx, op.Owner, op.Given, op.Received); err != nil {
			return fmt.Errorf("view counters owner=%d: %w", op.Owner, err)
		}
	}
	return nil
}

// WithOwnerLock 在事务内锁住单个用户的快速列表行后执行 fn（重建用）
func (u *UnitOfWork) WithOwnerLock(ctx context.Context, owner uint64, fn func(tx *gorm.DB) error) error {
	return u.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		qlRepo := &QuickListRepository{DB: tx}
		if err := qlRepo.Ensure(ctx, owner); err != nil {
			return err
		}
		if err := qlRepo.Lock(ctx, owner); err != nil {
			return err
		}
		return fn(tx)
	})
}
