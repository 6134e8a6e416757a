//go:build integration

package service

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"matrimony_match/internal/config"
	"matrimony_match/internal/model"
	"matrimony_match/internal/repository/mysql"
)

// 运行方式：MATCH_TEST_MYSQL_DSN=... go test -tags integration ./internal/service/
// 库中的表会被清空，只能指向专用的测试库
func newMySQLEnv(t *testing.T) *env {
	t.Helper()
	dsn := os.Getenv("MATCH_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("MATCH_TEST_MYSQL_DSN not set")
	}
	db, err := mysql.InitDB(config.MySQLConfig{DSN: dsn, MaxOpenConns: 16, MaxIdleConns: 4}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, mysql.Migrate(db))
	for _, m := range model.Tables() {
		require.NoError(t, db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error)
	}
	return newEnvWithDB(db)
}

func TestMySQL_ConcurrentBlockAndShortlist(t *testing.T) {
	e := newMySQLEnv(t)
	ctx := context.Background()

	for i := uint64(0); i < 50; i++ {
		a, b := 1000+2*i, 1001+2*i
		var (
			wg           sync.WaitGroup
			blockErr     error
			shortlistErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, blockErr = e.transitions.Block(ctx, a, b)
		}()
		go func() {
			defer wg.Done()
			_, shortlistErr = e.transitions.Shortlist(ctx, b, a)
		}()
		wg.Wait()

		// 两边按相同顺序加锁，不应出现重试后仍失败的情况
		require.NoError(t, blockErr)
		if shortlistErr != nil {
			assert.ErrorIs(t, shortlistErr, ErrForbiddenBlocked)
		}
		assert.Equal(t, []uint64{b}, e.members(t, a, model.ListBlocked))
		assert.Empty(t, e.members(t, b, model.ListShortlisted))
	}
}
