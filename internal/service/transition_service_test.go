package service

import (
	"context"
	"sync"
	"testing"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matrimony_match/internal/model"
	"matrimony_match/internal/repository/redis"
	tu "matrimony_match/internal/testutil"
)

func TestShortlist_OnceThenAlreadyExists(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.transitions.Shortlist(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []uint64{2}, e.members(t, 1, model.ListShortlisted))

	_, err = e.transitions.Shortlist(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	evs := e.events(t, 1, 2, model.KindShortlisted)
	require.Len(t, evs, 1)
	assert.Equal(t, model.StatusActive, evs[0].Status)
	assert.Equal(t, StatusShortlisted, e.statusOf(t, 1, 2))
	assert.Equal(t, StatusNone, e.statusOf(t, 2, 1))
}

func TestShortlist_Self(t *testing.T) {
	e := newEnv(t)
	_, err := e.transitions.Shortlist(context.Background(), 7, 7)
	assert.ErrorIs(t, err, ErrSelfReference)
	assert.Zero(t, e.count(t, &model.QuickList{}))
}

func TestTransition_InvalidArgument(t *testing.T) {
	e := newEnv(t)
	_, err := e.transitions.Block(context.Background(), 0, 2)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRemoveFromShortlist(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.transitions.RemoveFromShortlist(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Zero(t, e.count(t, &model.Interaction{}))

	_, err = e.transitions.Shortlist(ctx, 1, 2)
	require.NoError(t, err)
	res, err = e.transitions.RemoveFromShortlist(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Empty(t, e.members(t, 1, model.ListShortlisted))
	assert.Equal(t, model.StatusExpired, e.events(t, 1, 2, model.KindShortlisted)[0].Status)
	assert.Len(t, e.events(t, 1, 2, model.KindRemovedFromShortlist), 1)

	// 第二次移除不再产生流水
	res, err = e.transitions.RemoveFromShortlist(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, e.events(t, 1, 2, model.KindRemovedFromShortlist), 1)
}

func TestBlock_CascadesBothSides(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.transitions.Shortlist(ctx, 1, 2)
	require.NoError(t, err)
	_, err = e.transitions.Shortlist(ctx, 2, 1)
	require.NoError(t, err)
	_, err = e.transitions.SendMatchRequest(ctx, 1, 2)
	require.NoError(t, err)
	_, err = e.transitions.Decline(ctx, 2, 1)
	require.NoError(t, err)

	_, err = e.transitions.Block(ctx, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, StatusBlockedByYou, e.statusOf(t, 2, 1))
	assert.Equal(t, StatusBlockedByThem, e.statusOf(t, 1, 2))

	for _, l := range []model.ListKind{model.ListShortlisted, model.ListSent, model.ListReceived, model.ListAccepted} {
		assert.Empty(t, e.members(t, 1, l), "user 1 %s", l)
		assert.Empty(t, e.members(t, 2, l), "user 2 %s", l)
	}
	assert.Equal(t, []uint64{1}, e.members(t, 2, model.ListBlocked))
	assert.Empty(t, e.members(t, 1, model.ListBlocked))
	// 屏蔽不动拒绝集合
	assert.Equal(t, []uint64{1}, e.members(t, 2, model.ListDeclined))

	assert.Equal(t, model.StatusExpired, e.events(t, 1, 2, model.KindShortlisted)[0].Status)
	assert.Equal(t, model.StatusExpired, e.events(t, 2, 1, model.KindShortlisted)[0].Status)
	assert.Equal(t, model.StatusExpired, e.events(t, 1, 2, model.KindMatchRequestSent)[0].Status)

	_, err = e.transitions.Shortlist(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrForbiddenBlocked)
	_, err = e.transitions.SendMatchRequest(ctx, 2, 1)
	assert.ErrorIs(t, err, ErrForbiddenBlocked)
	_, err = e.transitions.Block(ctx, 2, 1)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// 被屏蔽的一方仍可以屏蔽对方
	_, err = e.transitions.Block(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, StatusBlockedByYou, e.statusOf(t, 1, 2))
}

func TestBlock_ExpiresMatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.transitions.SendMatchRequest(ctx, 1, 2)
	require.NoError(t, err)
	_, err = e.transitions.AcceptMatchRequest(ctx, 2, 1)
	require.NoError(t, err)
	_, err = e.transitions.Block(ctx, 1, 2)
	require.NoError(t, err)

	assert.Empty(t, e.members(t, 1, model.ListAccepted))
	assert.Empty(t, e.members(t, 2, model.ListAccepted))
	assert.Equal(t, model.StatusExpired, e.events(t, 2, 1, model.KindMatchRequestAccepted)[0].Status)
}

func TestUnblock_DoesNotRestore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.transitions.Shortlist(ctx, 1, 2)
	require.NoError(t, err)
	_, err = e.transitions.Block(ctx, 1, 2)
	require.NoError(t, err)

	res, err := e.transitions.Unblock(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Empty(t, e.members(t, 1, model.ListBlocked))
	assert.Empty(t, e.members(t, 1, model.ListShortlisted))
	assert.Equal(t, StatusNone, e.statusOf(t, 1, 2))
	assert.Equal(t, model.StatusExpired, e.events(t, 1, 2, model.KindBlocked)[0].Status)
	assert.Len(t, e.events(t, 1, 2, model.KindUnblocked), 1)

	res, err = e.transitions.Unblock(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	_, err = e.transitions.Shortlist(ctx, 1, 2)
	assert.NoError(t, err)
}

func TestAcceptMatchRequest_Symmetric(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.transitions.SendMatchRequest(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, StatusRequestSent, e.statusOf(t, 1, 2))
	assert.Equal(t, StatusRequestReceived, e.statusOf(t, 2, 1))

	_, err = e.transitions.SendMatchRequest(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrAlreadyPending)

	res, err = e.transitions.AcceptMatchRequest(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, res.Matched)

	assert.Equal(t, []uint64{2}, e.members(t, 1, model.ListAccepted))
	assert.Equal(t, []uint64{1}, e.members(t, 2, model.ListAccepted))
	assert.Empty(t, e.members(t, 1, model.ListSent))
	assert.Empty(t, e.members(t, 2, model.ListReceived))
	assert.Equal(t, StatusMatched, e.statusOf(t, 1, 2))
	assert.Equal(t, StatusMatched, e.statusOf(t, 2, 1))
	assert.Equal(t, model.StatusAccepted, e.events(t, 1, 2, model.KindMatchRequestSent)[0].Status)

	_, err = e.transitions.SendMatchRequest(ctx, 2, 1)
	assert.ErrorIs(t, err, ErrAlreadyMatched)
	_, err = e.transitions.AcceptMatchRequest(ctx, 2, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcceptMatchRequest_NotFoundRollsBack(t *testing.T) {
	e := newEnv(t)
	_, err := e.transitions.AcceptMatchRequest(context.Background(), 2, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, e.count(t, &model.QuickList{}))
	assert.Zero(t, e.count(t, &model.Interaction{}))
	assert.Zero(t, e.count(t, &model.InteractionOutbox{}))
}

func TestSendMatchRequest_ReversePendingAutoAccepts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.transitions.SendMatchRequest(ctx, 1, 2)
	require.NoError(t, err)
	res, err := e.transitions.SendMatchRequest(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "Match request accepted", res.Message)

	assert.Equal(t, StatusMatched, e.statusOf(t, 1, 2))
	assert.Equal(t, StatusMatched, e.statusOf(t, 2, 1))
	assert.Empty(t, e.events(t, 2, 1, model.KindMatchRequestSent))
	acc := e.events(t, 2, 1, model.KindMatchRequestAccepted)
	require.Len(t, acc, 1)
	assert.Equal(t, true, acc[0].Metadata["auto_accepted"])
}

func TestDeclineMatchRequest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.transitions.DeclineMatchRequest(ctx, 2, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.transitions.SendMatchRequest(ctx, 1, 2)
	require.NoError(t, err)
	_, err = e.transitions.DeclineMatchRequest(ctx, 2, 1)
	require.NoError(t, err)

	assert.Empty(t, e.members(t, 1, model.ListSent))
	assert.Empty(t, e.members(t, 2, model.ListReceived))
	assert.Equal(t, []uint64{1}, e.members(t, 2, model.ListDeclined))
	assert.Equal(t, model.StatusDeclined, e.events(t, 1, 2, model.KindMatchRequestSent)[0].Status)
	assert.Equal(t, StatusNone, e.statusOf(t, 1, 2))
}

func TestDecline_AndRemoveFromDeclined(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.transitions.Decline(ctx, 1, 2)
	require.NoError(t, err)
	_, err = e.transitions.Decline(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, []uint64{2}, e.members(t, 1, model.ListDeclined))

	res, err := e.transitions.RemoveFromDeclined(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Empty(t, e.members(t, 1, model.ListDeclined))
	assert.Equal(t, model.StatusExpired, e.events(t, 1, 2, model.KindDeclined)[0].Status)

	res, err = e.transitions.RemoveFromDeclined(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestSendMatchRequest_WithdrawsDecline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.transitions.Decline(ctx, 1, 2)
	require.NoError(t, err)
	_, err = e.transitions.SendMatchRequest(ctx, 1, 2)
	require.NoError(t, err)
	assert.Empty(t, e.members(t, 1, model.ListDeclined))
	assert.Equal(t, []uint64{2}, e.members(t, 1, model.ListSent))
}

func TestRecordProfileView(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.transitions.RecordProfileView(ctx, 3, 3)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Zero(t, e.count(t, &model.QuickList{}))
	assert.Zero(t, e.count(t, &model.Interaction{}))

	for i := 0; i < 2; i++ {
		_, err = e.transitions.RecordProfileView(ctx, 1, 2)
		require.NoError(t, err)
	}
	_, err = e.transitions.RecordProfileView(ctx, 3, 2)
	require.NoError(t, err)

	viewer, err := e.listing.GetSummary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), viewer.TotalProfileViewsGiven)
	assert.Zero(t, viewer.TotalProfileViewsReceived)

	viewed, err := e.listing.GetSummary(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), viewed.TotalProfileViewsReceived)
	assert.ElementsMatch(t, []uint64{1, 3}, e.members(t, 2, model.ListViewers))
	assert.Len(t, e.events(t, 1, 2, model.KindProfileViewed), 2)
}

func TestEveryEventHasOutboxRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, _ = e.transitions.Shortlist(ctx, 1, 2)
	_, _ = e.transitions.SendMatchRequest(ctx, 1, 2)
	_, _ = e.transitions.AcceptMatchRequest(ctx, 2, 1)
	_, _ = e.transitions.RecordProfileView(ctx, 2, 1)
	_, _ = e.transitions.Block(ctx, 1, 2)
	_, _ = e.transitions.Shortlist(ctx, 1, 2) // 失败，不写任何东西

	assert.Equal(t, int64(5), e.count(t, &model.Interaction{}))
	assert.Equal(t, e.count(t, &model.Interaction{}), e.count(t, &model.InteractionOutbox{}))
}

// TestConcurrentBlockAndShortlist 测试库只有一个连接，两个事务实际是串行执行的，
// 这里只校验任意先后顺序下的最终状态；行锁争用由 integration 标签下的 MySQL 用例覆盖
func TestConcurrentBlockAndShortlist(t *testing.T) {
	for i := 0; i < 10; i++ {
		e := newEnv(t)
		ctx := context.Background()

		var (
			wg           sync.WaitGroup
			shortlistErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := e.transitions.Block(ctx, 1, 2)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, shortlistErr = e.transitions.Shortlist(ctx, 2, 1)
		}()
		wg.Wait()

		if shortlistErr != nil {
			assert.ErrorIs(t, shortlistErr, ErrForbiddenBlocked)
		}
		// 不论先后，屏蔽生效后对方的收藏里都不会有屏蔽者
		assert.Equal(t, []uint64{2}, e.members(t, 1, model.ListBlocked))
		assert.Empty(t, e.members(t, 2, model.ListShortlisted))
		for _, ev := range e.events(t, 2, 1, model.KindShortlisted) {
			assert.Equal(t, model.StatusExpired, ev.Status)
		}
	}
}

func TestShortlist_TransientFailureAfterRetry(t *testing.T) {
	e := newEnv(t)
	tu.FailInserts(t, e.db, "interactions", &driver.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})

	res, err := e.transitions.Shortlist(context.Background(), 1, 2)
	assert.Nil(t, res)
	require.ErrorIs(t, err, ErrTransientFailure)

	var re *RelationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindTransientFailure, re.Kind)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.TransactionRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.TransitionsTotal.WithLabelValues("shortlist", string(KindTransientFailure))))

	// 两次尝试都整体回滚
	assert.Zero(t, e.count(t, &model.Interaction{}))
	assert.Zero(t, e.count(t, &model.QuickList{}))
	assert.Zero(t, e.count(t, &model.QuickListEntry{}))
	assert.Zero(t, e.count(t, &model.InteractionOutbox{}))
}

func TestTransitionMetrics(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, _ = e.transitions.Shortlist(ctx, 1, 2)
	_, _ = e.transitions.Shortlist(ctx, 1, 2)
	_, _ = e.transitions.RemoveFromShortlist(ctx, 5, 6)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.TransitionsTotal.WithLabelValues("shortlist", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.TransitionsTotal.WithLabelValues("shortlist", string(KindAlreadyExists))))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.TransitionsTotal.WithLabelValues("remove_shortlist", "noop")))
}

func TestTransition_InvalidatesSummaryCache(t *testing.T) {
	db := tu.NewDB(t)
	rdb, _ := tu.NewRedis(t)
	cache := redis.NewSummaryCacheRepository(rdb, time.Minute)
	transitions := NewTransitionService(db, cache, nil, nil)
	listing := NewListingService(db, NewProfileStore(db), cache, nil, nil)
	ctx := context.Background()

	sum, err := listing.GetSummary(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, sum.Shortlisted)
	_, hit, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, hit)

	_, err = transitions.Shortlist(ctx, 1, 2)
	require.NoError(t, err)

	sum, err = listing.GetSummary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Shortlisted)
}
