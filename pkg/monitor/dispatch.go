package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline 步骤名称
const (
	StepIntent  = "intent"
	StepBuild   = "build"
	StepSign    = "sign"
	StepMessage = "sign_message"
)

// 结果标签
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// DispatchMetrics 分发器监控指标
type DispatchMetrics struct {
	DispatchTotal *prometheus.CounterVec
	StepTotal     *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
}

// NewDispatchMetrics 在 reg 上注册指标，reg 为 nil 时使用默认 Registerer
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &DispatchMetrics{
		DispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chaincore_dispatch_total",
			Help: "Total number of chain module lookups",
		}, []string{"chain", "result"}),
		StepTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chaincore_pipeline_step_total",
			Help: "Total number of pipeline steps executed",
		}, []string{"chain", "step", "result"}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chaincore_pipeline_step_duration_seconds",
			Help:    "Duration of pipeline steps",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"chain", "step"}),
	}
}

// ObserveDispatch 记录一次模块查找，m 为 nil 时忽略
func (m *DispatchMetrics) ObserveDispatch(chain string, err error) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(chain, result(err)).Inc()
}

// ObserveStep 记录一个 pipeline 步骤
func (m *DispatchMetrics) ObserveStep(chain, step string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StepTotal.WithLabelValues(chain, step, result(err)).Inc()
	m.StepDuration.WithLabelValues(chain, step).Observe(time.Since(start).Seconds())
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
