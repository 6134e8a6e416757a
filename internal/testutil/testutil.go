// Package testutil 测试用的 SQLite / miniredis 环境与数据构造
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"matrimony_match/internal/model"
)

// NewDB 每个测试一个独立的 SQLite 文件库，已建好全部表
// 只开一个连接：事务之间天然串行，事务内只能使用 tx
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.Tables()...))
	return db
}

// NewRedis 启动 miniredis 并返回连接好的客户端
func NewRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

// Date UTC 零点
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ProfileOpt 修改默认资料
type ProfileOpt func(p *model.Profile)

func WithGender(g string) ProfileOpt { return func(p *model.Profile) { p.Gender = g } }

func WithBirth(dob time.Time) ProfileOpt { return func(p *model.Profile) { p.DateOfBirth = dob } }

func WithCity(city string) ProfileOpt { return func(p *model.Profile) { p.City = city } }

func WithReligion(r string) ProfileOpt { return func(p *model.Profile) { p.Religion = r } }

func WithMotherTongue(mt string) ProfileOpt { return func(p *model.Profile) { p.MotherTongue = mt } }

func WithEmail(email string) ProfileOpt { return func(p *model.Profile) { p.Email = email } }

func WithPreferences(pref model.PartnerPreferences) ProfileOpt {
	return func(p *model.Profile) { p.PartnerPreferences = pref }
}

func Inactive() ProfileOpt { return func(p *model.Profile) { p.IsActive = false } }

// SeedProfile 写入一条活跃资料；created_at 按 user_id 递增，便于断言排序
func SeedProfile(t testing.TB, db *gorm.DB, userID uint64, opts ...ProfileOpt) *model.Profile {
	t.Helper()
	p := &model.Profile{
		UserID:       userID,
		Name:         fmt.Sprintf("User %d", userID),
		Gender:       model.GenderFemale,
		DateOfBirth:  Date(1995, time.June, 1),
		City:         "Mumbai",
		Religion:     "Hindu",
		MotherTongue: "Marathi",
		IsActive:     true,
		CreatedAt:    Date(2024, time.January, 1).Add(time.Duration(userID) * time.Hour),
	}
	for _, o := range opts {
		o(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// AccessToken 按账号服务的格式签发 HS256 access token；ttl<0 得到已过期的 token
func AccessToken(t testing.TB, secret []byte, userID uint64, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    0,
		"sub":     "access",
		"iat":     now.Add(-time.Minute).Unix(),
		"exp":     now.Add(ttl).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)
	return tok
}

// FailInserts 让之后对 table 的每次 INSERT 都返回 err，用来模拟死锁等存储故障
func FailInserts(t testing.TB, db *gorm.DB, table string, err error) {
	t.Helper()
	require.NoError(t, db.Callback().Create().Before("gorm:create").
		Register("testutil:fail_"+table, func(tx *gorm.DB) {
			if tx.Statement.Table == table {
				_ = tx.AddError(err)
			}
		}))
}
