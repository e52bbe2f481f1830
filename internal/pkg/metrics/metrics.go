// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 购买事件的处理结果标签
const (
	OutcomeSuccess      = "success"
	OutcomeInsufficient = "insufficient_balance"
	OutcomeInvalid      = "invalid"
	OutcomeNotFound     = "not_found"
	OutcomeFailed       = "failed"
)

// Recorder 汇总积分服务对外暴露的 Prometheus 指标。
type Recorder struct {
	PointsEarned    prometheus.Counter
	PointsRedeemed  prometheus.Counter
	Purchases       *prometheus.CounterVec
	PurchaseLatency prometheus.Histogram
	TierChanges     *prometheus.CounterVec
}

// NewRecorder 在给定的 Registerer 上注册所有指标。
// 测试中传入 prometheus.NewRegistry() 以避免重复注册到全局 registry。
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		PointsEarned: f.NewCounter(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "points_earned_total",
			Help:      "Total points granted to customers.",
		}),
		PointsRedeemed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "points_redeemed_total",
			Help:      "Total points consumed by redemptions.",
		}),
		Purchases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "purchases_total",
			Help:      "Purchase events processed, by outcome.",
		}, []string{"outcome"}),
		PurchaseLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loyalty",
			Name:      "purchase_duration_seconds",
			Help:      "Time spent processing a purchase event.",
			Buckets:   prometheus.DefBuckets,
		}),
		TierChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "tier_changes_total",
			Help:      "Tier transitions after balance recalculation.",
		}, []string{"from", "to"}),
	}
}
