package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"matrimony_match/internal/model"
)

const (
	DefaultSummaryTTL = 10 * time.Minute
	SummaryKeyPrefix  = "quicklist:summary" // 用户快速列表汇总（hash）
	LockKeyPrefix     = "lock:quicklist"    // 分布式锁
)

var summaryFields = []string{
	"shortlisted", "blocked", "sent", "received", "accepted", "declined", "views_received", "views_given",
}

// SummaryCacheRepository 汇总的只读加速缓存；写路径提交后删除 key，读侧惰性回填
type SummaryCacheRepository struct {
	RDB *redis.Client
	ttl time.Duration
}

func NewSummaryCacheRepository(rdb *redis.Client, ttl time.Duration) *SummaryCacheRepository {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	return &SummaryCacheRepository{RDB: rdb, ttl: ttl}
}

func (r *SummaryCacheRepository) key(userID uint64) string {
	return fmt.Sprintf("%s:%d", SummaryKeyPrefix, userID)
}

// Get 命中返回 (summary, true)；未命中返回 (nil, false)
func (r *SummaryCacheRepository) Get(ctx context.Context, userID uint64) (*model.Summary, bool, error) {
	vals, err := r.RDB.HMGet(ctx, r.key(userID), summaryFields...).Result()
	if err != nil {
		return nil, false, err
	}
	nums := make([]int64, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// 任一字段缺失都视为未命中
			return nil, false, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false, nil
		}
		nums[i] = n
	}
	return &model.Summary{
		Shortlisted:               nums[0],
		Blocked:                   nums[1],
		SentMatchRequests:         nums[2],
		ReceivedMatchRequests:     nums[3],
		AcceptedRequests:          nums[4],
		DeclinedRequests:          nums[5],
		TotalProfileViewsReceived: nums[6],
		TotalProfileViewsGiven:    nums[7],
	}, true, nil
}

// Set 回填汇总
func (r *SummaryCacheRepository) Set(ctx context.Context, userID uint64, s *model.Summary) error {
	k := r.key(userID)
	_, err := r.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k,
			"shortlisted", s.Shortlisted,
			"blocked", s.Blocked,
			"sent", s.SentMatchRequests,
			"received", s.ReceivedMatchRequests,
			"accepted", s.AcceptedRequests,
			"declined", s.DeclinedRequests,
			"views_received", s.TotalProfileViewsReceived,
			"views_given", s.TotalProfileViewsGiven,
		)
		p.Expire(ctx, k, r.ttl)
		return nil
	})
	return err
}

// Invalidate 删除若干用户的汇总；delay>0 时在后台再删一次，抵消并发回填窗口
func (r *SummaryCacheRepository) Invalidate(ctx context.Context, delay time.Duration, userIDs ...uint64) error {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, r.key(id))
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.RDB.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if delay > 0 {
		go func() {
			t := time.NewTimer(delay)
			defer t.Stop()
			<-t.C
			_ = r.RDB.Del(context.Background(), keys...).Err()
		}()
	}
	return nil
}

// DistLock 基于 SETNX 的分布式锁
type DistLock struct {
	RDB *redis.Client
	TTL time.Duration
}

func (l *DistLock) key(name string) string {
	return fmt.Sprintf("%s:%s", LockKeyPrefix, name)
}

// Acquire 请求加分布式锁
func (l *DistLock) Acquire(ctx context.Context, name, token string) (bool, error) {
	return l.RDB.SetNX(ctx, l.key(name), token, l.TTL).Result()
}

// Release 用lua保证只删除自己持有的锁
func (l *DistLock) Release(ctx context.Context, name, token string) error {
	_, err := redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`).Run(ctx, l.RDB, []string{l.key(name)}, token).Result()
	return err
}
