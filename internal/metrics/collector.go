// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 推理指标
	inferenceRequestsTotal   *prometheus.CounterVec
	inferenceDuration        *prometheus.HistogramVec
	inferenceInFlight        prometheus.Gauge
	inferenceOutputSize      *prometheus.HistogramVec
	inferenceGateWait        *prometheus.HistogramVec
	inferenceGateTimeouts    *prometheus.CounterVec
	uploadRejectionsTotal    *prometheus.CounterVec
	outpaintedPixelsTotal    prometheus.Counter
	uploadedImageFormatTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 推理指标
	c.inferenceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_requests_total",
			Help:      "Total number of inpainting inference calls",
		},
		[]string{"provider", "model", "status"},
	)

	c.inferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Inpainting inference duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"provider", "model"},
	)

	c.inferenceInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inference_in_flight",
			Help:      "Number of inference calls currently holding the model",
		},
	)

	c.inferenceOutputSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_output_size_bytes",
			Help:      "Size of the encoded JPEG result in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"provider"},
	)

	c.inferenceGateWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_gate_wait_seconds",
			Help:      "Time spent waiting for the inference gate",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	c.inferenceGateTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_gate_timeouts_total",
			Help:      "Total number of requests that gave up waiting for the inference gate",
		},
		[]string{"mode"},
	)

	c.uploadRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_rejections_total",
			Help:      "Total number of rejected inpaint requests by error code",
		},
		[]string{"code"},
	)

	c.outpaintedPixelsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outpainted_pixels_total",
			Help:      "Total number of padded pixels handed to the model for generation",
		},
	)

	c.uploadedImageFormatTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_image_format_total",
			Help:      "Total number of decoded uploads by image format",
		},
		[]string{"format"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🎨 推理指标记录
// =============================================================================

// RecordInference 记录一次推理调用
func (c *Collector) RecordInference(provider, model, status string, duration time.Duration, outputBytes int) {
	c.inferenceRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.inferenceDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if outputBytes > 0 {
		c.inferenceOutputSize.WithLabelValues(provider).Observe(float64(outputBytes))
	}
}

// InferenceStarted 推理开始，占用模型
func (c *Collector) InferenceStarted() {
	c.inferenceInFlight.Inc()
}

// InferenceFinished 推理结束，释放模型
func (c *Collector) InferenceFinished() {
	c.inferenceInFlight.Dec()
}

// RecordGateWait 记录等待推理闸门的耗时
func (c *Collector) RecordGateWait(mode string, wait time.Duration, acquired bool) {
	c.inferenceGateWait.WithLabelValues(mode).Observe(wait.Seconds())
	if !acquired {
		c.inferenceGateTimeouts.WithLabelValues(mode).Inc()
	}
}

// =============================================================================
// 🖼️ 上传指标记录
// =============================================================================

// RecordRejection 记录被拒绝的请求
func (c *Collector) RecordRejection(code string) {
	c.uploadRejectionsTotal.WithLabelValues(code).Inc()
}

// RecordUpload 记录成功解码的上传及其需要生成的像素数
func (c *Collector) RecordUpload(format string, generatedPixels int) {
	c.uploadedImageFormatTotal.WithLabelValues(format).Inc()
	if generatedPixels > 0 {
		c.outpaintedPixelsTotal.Add(float64(generatedPixels))
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
