package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"matrimony_match/internal/config"
)

func TestNew(t *testing.T) {
	log, err := New(config.LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	_, err = New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), 50*time.Millisecond)
	fc := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	l.Trace(ctx, time.Now(), fc, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), fc, nil)
	assert.Zero(t, logs.Len())

	l.Trace(ctx, time.Now(), fc, errors.New("deadlock"))
	l.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	entries := logs.TakeAll()
	require.Len(t, entries, 2)
	assert.Equal(t, "sql error", entries[0].Message)
	assert.Equal(t, "slow sql", entries[1].Message)
	assert.Equal(t, "gorm", entries[1].LoggerName)

	verbose := l.LogMode(gormlogger.Info)
	verbose.Trace(ctx, time.Now(), fc, nil)
	assert.Equal(t, 1, logs.FilterMessage("sql").Len())

	l.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), fc, errors.New("ignored"))
	assert.Equal(t, 1, logs.Len())
}
