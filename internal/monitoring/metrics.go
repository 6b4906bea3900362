package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 入库指标
	NewslettersStored *prometheus.CounterVec // 按来源渠道
	DuplicatesTotal   *prometheus.CounterVec // 按重复依据
	ContentsCreated   prometheus.Counter
	PrivateStores     prometheus.Counter

	// 导入指标
	ImportBatchesTotal  prometheus.Counter
	ImportItemsTotal    *prometheus.CounterVec // 按最终状态
	ImportRetriesTotal  prometheus.Counter
	ImportInFlightItems prometheus.Gauge

	// 文件夹指标
	FolderMergesTotal prometheus.Counter
	FolderUndosTotal  prometheus.Counter
	MergeSweepDeleted prometheus.Counter

	// 收件渠道指标
	IntakeMessagesTotal  prometheus.Counter
	IntakeRejectedTotal  *prometheus.CounterVec // 按拒收原因
	IntakeProcessingTime prometheus.Histogram
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lettervault_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lettervault_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		NewslettersStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lettervault_newsletters_stored_total",
				Help: "Total number of newsletters stored, by source channel",
			},
			[]string{"source"},
		),
		DuplicatesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lettervault_duplicates_total",
				Help: "Total number of duplicates detected, by reason",
			},
			[]string{"reason"},
		),
		ContentsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lettervault_contents_created_total",
				Help: "Total number of unique shared contents created",
			},
		),
		PrivateStores: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lettervault_private_stores_total",
				Help: "Total number of newsletters stored on the private branch",
			},
		),

		ImportBatchesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lettervault_import_batches_total",
				Help: "Total number of import batches started",
			},
		),
		ImportItemsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lettervault_import_items_total",
				Help: "Total number of import items processed, by final status",
			},
			[]string{"status"},
		),
		ImportRetriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lettervault_import_retries_total",
				Help: "Total number of rate-limit retries during remote import",
			},
		),
		ImportInFlightItems: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lettervault_import_in_flight_items",
				Help: "Number of import items currently being processed",
			},
		),

		FolderMergesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lettervault_folder_merges_total",
				Help: "Total number of folder merges",
			},
		),
		FolderUndosTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lettervault_folder_undos_total",
				Help: "Total number of merge undos",
			},
		),
		MergeSweepDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lettervault_merge_sweep_deleted_total",
				Help: "Total number of expired merge histories deleted by the sweeper",
			},
		),

		IntakeMessagesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lettervault_intake_messages_total",
				Help: "Total number of messages accepted over SMTP intake",
			},
		),
		IntakeRejectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lettervault_intake_rejected_total",
				Help: "Total number of SMTP intake rejections, by reason",
			},
			[]string{"reason"},
		),
		IntakeProcessingTime: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lettervault_intake_processing_duration_seconds",
				Help:    "SMTP intake processing duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// GinMiddleware 记录 HTTP 请求指标的 Gin 中间件。
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).
			Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 /metrics 的 Gin 处理器。
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// RecordStored 记录一次成功入库。
func (m *Metrics) RecordStored(source string) {
	m.NewslettersStored.WithLabelValues(source).Inc()
}

// RecordDuplicate 记录一次重复判定。
func (m *Metrics) RecordDuplicate(reason string) {
	m.DuplicatesTotal.WithLabelValues(reason).Inc()
}

// RecordImportItem 记录一个导入项的最终状态。
func (m *Metrics) RecordImportItem(status string) {
	m.ImportItemsTotal.WithLabelValues(status).Inc()
}

// RecordIntakeRejected 记录一次 SMTP 拒收。
func (m *Metrics) RecordIntakeRejected(reason string) {
	m.IntakeRejectedTotal.WithLabelValues(reason).Inc()
}
