// Package metrics 互动引擎的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "matrimony"

// Metrics 互动引擎指标
type Metrics struct {
	// TransitionsTotal 按动作和结果统计状态迁移（result: ok / noop / 错误类型）
	TransitionsTotal *prometheus.CounterVec
	// TransactionSeconds 单次迁移事务耗时
	TransactionSeconds *prometheus.HistogramVec
	// TransactionRetries 因死锁等瞬时错误重试的事务数
	TransactionRetries prometheus.Counter
	// OutboxRelayed 发件箱投递结果（sent / failed）
	OutboxRelayed *prometheus.CounterVec
	// SummaryCache 汇总缓存命中情况（hit / miss）
	SummaryCache *prometheus.CounterVec
}

// New 在给定 registerer 上注册指标，测试里传独立的 registry
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interaction",
			Name:      "transitions_total",
			Help:      "Relationship transitions by action and result",
		}, []string{"action", "result"}),
		TransactionSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "interaction",
			Name:      "transaction_seconds",
			Help:      "Duration of the ledger + quick list transaction",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"action"}),
		TransactionRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interaction",
			Name:      "transaction_retries_total",
			Help:      "Transactions retried after a transient storage failure",
		}),
		OutboxRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "relayed_total",
			Help:      "Outbox rows relayed by result",
		}, []string{"result"}),
		SummaryCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summary_cache",
			Name:      "lookups_total",
			Help:      "Summary cache lookups by result",
		}, []string{"result"}),
	}
}

// NewNop 不对外暴露的指标，给测试和命令行子命令用
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
