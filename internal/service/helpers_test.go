package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"matrimony_match/internal/metrics"
	"matrimony_match/internal/model"
	"matrimony_match/internal/repository/mysql"
	"matrimony_match/internal/testutil"
)

type env struct {
	db          *gorm.DB
	metrics     *metrics.Metrics
	transitions *TransitionService
	listing     *ListingService
	status      *StatusService
	ql          *mysql.QuickListRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithDB(testutil.NewDB(t))
}

func newEnvWithDB(db *gorm.DB) *env {
	m := metrics.NewNop()
	profiles := NewProfileStore(db)
	return &env{
		db:          db,
		metrics:     m,
		transitions: NewTransitionService(db, nil, m, nil),
		listing:     NewListingService(db, profiles, nil, m, nil),
		status:      NewStatusService(db),
		ql:          &mysql.QuickListRepository{DB: db},
	}
}

func (e *env) members(t *testing.T, owner uint64, list model.ListKind) []uint64 {
	t.Helper()
	ids, err := e.ql.Members(context.Background(), owner, []model.ListKind{list})
	require.NoError(t, err)
	return ids
}

func (e *env) statusOf(t *testing.T, from, to uint64) RelationshipStatus {
	t.Helper()
	st, err := e.status.GetStatus(context.Background(), from, to)
	require.NoError(t, err)
	return st
}

// events from->to 方向上指定类型的流水
func (e *env) events(t *testing.T, from, to uint64, kind model.InteractionKind) []model.Interaction {
	t.Helper()
	var rows []model.Interaction
	require.NoError(t, e.db.
		Where("from_user_id = ? AND to_user_id = ? AND kind = ?", from, to, kind).
		Order("id ASC").
		Find(&rows).Error)
	return rows
}

func (e *env) count(t *testing.T, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(m).Count(&n).Error)
	return n
}
