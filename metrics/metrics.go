package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config 设置所有指标共享的常量标签。
type Config struct {
	ServiceName string
	Environment string
}

// Metrics 汇总渲染与导出相关的 Prometheus 指标。nil 接收者上的方法都是空操作，
// 调用方无需判断是否启用了监控。
type Metrics struct {
	gatherer       prometheus.Gatherer
	renderDuration *prometheus.HistogramVec
	exportItems    *prometheus.CounterVec
	exportJobs     *prometheus.CounterVec
	assetFetches   *prometheus.CounterVec
}

// New 创建并注册指标。reg 为 nil 时使用一个独立的 Registry，便于测试。
func New(reg *prometheus.Registry, cfg Config) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "diploma"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	renderDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "diploma_render_duration_seconds",
			Help:        "Time spent turning a layout result into PNG or PDF bytes.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		},
		[]string{"format"}, // png | pdf
	)
	exportItems := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "diploma_export_items_total",
			Help:        "Certificates processed by export jobs.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // succeeded | failed
	)
	exportJobs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "diploma_export_jobs_total",
			Help:        "Export jobs by final state.",
			ConstLabels: constLabels,
		},
		[]string{"state"}, // done | failed
	)
	assetFetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "diploma_asset_prefetch_total",
			Help:        "Image prefetch rounds before capture.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // ok | partial
	)

	reg.MustRegister(renderDuration, exportItems, exportJobs, assetFetches)

	return &Metrics{
		gatherer:       reg,
		renderDuration: renderDuration,
		exportItems:    exportItems,
		exportJobs:     exportJobs,
		assetFetches:   assetFetches,
	}
}

// ObserveRender 记录一次渲染耗时。
func (m *Metrics) ObserveRender(format string, d time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(format).Observe(d.Seconds())
}

// IncExportItem 记录一个导出条目的结果。
func (m *Metrics) IncExportItem(result string) {
	if m == nil {
		return
	}
	m.exportItems.WithLabelValues(result).Inc()
}

// IncExportJob 记录一个导出任务的最终状态。
func (m *Metrics) IncExportJob(state string) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(state).Inc()
}

// IncAssetPrefetch 记录一次图片预取。
func (m *Metrics) IncAssetPrefetch(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "partial"
	}
	m.assetFetches.WithLabelValues(result).Inc()
}

// Handler 返回暴露指标的 HTTP handler。
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
