package inpaint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"runtime/debug"
	"time"

	"github.com/BaSui01/inpaintflow/canvas"
	"github.com/BaSui01/inpaintflow/internal/lock"
	"github.com/BaSui01/inpaintflow/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/inpaintflow/inpaint"

// 对客户端暴露的固定错误文案
const (
	MsgGenerationFailed = "An error occurred during inpainting."
	MsgTimeout          = "Inpainting did not finish in time."
	MsgRequestCanceled  = "Request canceled by client."
	MsgUnsupportedSize  = "Requested size is not supported by the inpainting model."
)

// Recorder 推理指标记录器，由 internal/metrics.Collector 实现
type Recorder interface {
	RecordInference(provider, model, status string, duration time.Duration, outputBytes int)
	InferenceStarted()
	InferenceFinished()
	RecordGateWait(mode string, wait time.Duration, acquired bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordInference(string, string, string, time.Duration, int) {}
func (nopRecorder) InferenceStarted() {}
func (nopRecorder) InferenceFinished() {}
func (nopRecorder) RecordGateWait(string, time.Duration, bool) {}

// =============================================================================
// 🎨 Invoker
// =============================================================================

// Invoker 串行化地调用生成模型并把结果编码为 JPEG
type Invoker struct {
	pipeline Pipeline
	settings Settings
	gate     lock.Gate
	recorder Recorder
	timeout  time.Duration
	tracer   trace.Tracer
	logger   *zap.Logger

	inferenceCount    metric.Int64Counter
	inferenceDuration metric.Float64Histogram
}

// Option 配置 Invoker
type Option func(*Invoker)

// WithGate 设置推理闸门，默认单槽位的进程内闸门
func WithGate(g lock.Gate) Option {
	return func(i *Invoker) { i.gate = g }
}

// WithRecorder 设置 Prometheus 指标记录器
func WithRecorder(r Recorder) Option {
	return func(i *Invoker) {
		if r != nil {
			i.recorder = r
		}
	}
}

// WithTimeout 限制等待闸门与推理的总时长，0 表示不限制
func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) { i.timeout = d }
}

// WithTracer 覆盖默认的全局 tracer
func WithTracer(t trace.Tracer) Option {
	return func(i *Invoker) { i.tracer = t }
}

// NewInvoker 创建 Invoker
func NewInvoker(pipeline Pipeline, settings Settings, logger *zap.Logger, opts ...Option) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	i := &Invoker{
		pipeline: pipeline,
		settings: settings,
		recorder: nopRecorder{},
		tracer:   otel.Tracer(instrumentationName),
		logger:   logger.With(zap.String("component", "inference")),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.gate == nil {
		i.gate = lock.NewLocalLock(1)
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if i.inferenceCount, err = meter.Int64Counter("inpaint.inference.count",
		metric.WithDescription("Number of inpainting inference calls")); err != nil {
		i.logger.Warn("failed to create otel counter", zap.Error(err))
	}
	if i.inferenceDuration, err = meter.Float64Histogram("inpaint.inference.duration",
		metric.WithDescription("Inpainting inference duration"), metric.WithUnit("s")); err != nil {
		i.logger.Warn("failed to create otel histogram", zap.Error(err))
	}
	return i
}

// Pipeline 返回注入的模型
func (i *Invoker) Pipeline() Pipeline { return i.pipeline }

// Settings 返回生成设置
func (i *Invoker) Settings() Settings { return i.settings }

// Inpaint 对已填充的图像执行一次推理，返回位于起始位置的 JPEG 流
func (i *Invoker) Inpaint(ctx context.Context, padded *image.RGBA, mask *image.Gray, width, height int) (*bytes.Reader, error) {
	params := i.settings.Parameters(width, height)
	provider, model := i.pipeline.Name(), i.pipeline.Model()

	logger := i.logger
	if rid, ok := types.RequestID(ctx); ok {
		logger = logger.With(zap.String("request_id", rid))
	}

	if v, ok := i.pipeline.(SizeValidator); ok {
		if err := v.ValidateSize(width, height); err != nil {
			logger.Info("target size rejected by model",
				zap.Int("width", width),
				zap.Int("height", height),
				zap.String("model", model),
				zap.Error(err),
			)
			return nil, types.NewError(types.ErrValidation, MsgUnsupportedSize).
				WithField("width", err.Error()).
				WithField("height", err.Error()).
				WithCause(err)
		}
	}

	logger.Info("starting inpainting",
		zap.Int("width", params.Width),
		zap.Int("height", params.Height),
		zap.Int("steps", params.Steps),
		zap.Float64("guidance_scale", params.GuidanceScale),
		zap.Float64("strength", params.Strength),
		zap.String("provider", provider),
		zap.String("model", model),
	)

	ctx, span := i.tracer.Start(ctx, "inpaint.invoke", trace.WithAttributes(
		attribute.String("inpaint.provider", provider),
		attribute.String("inpaint.model", model),
		attribute.Int("inpaint.width", params.Width),
		attribute.Int("inpaint.height", params.Height),
		attribute.Int("inpaint.steps", params.Steps),
	))
	defer span.End()

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	// 1. 等待闸门
	waitStart := time.Now()
	release, err := i.gate.Acquire(ctx)
	i.recorder.RecordGateWait(i.gate.Mode(), time.Since(waitStart), err == nil)
	if err != nil {
		return nil, i.fail(ctx, span, logger, provider, model, 0, fmt.Errorf("wait for inference gate: %w", err))
	}
	defer release()

	i.recorder.InferenceStarted()
	defer i.recorder.InferenceFinished()

	// 2. 调用模型
	start := time.Now()
	result, err := i.call(ctx, &Request{Image: padded, Mask: mask, GenerationParameters: params})
	duration := time.Since(start)
	if err != nil {
		return nil, i.fail(ctx, span, logger, provider, model, duration, err)
	}
	if result == nil || len(result.Images) == 0 || result.Images[0] == nil {
		return nil, i.fail(ctx, span, logger, provider, model, duration, errors.New("pipeline returned no images"))
	}

	// 3. 编码 JPEG
	buf := new(bytes.Buffer)
	if err := canvas.EncodeJPEG(buf, result.Images[0], i.settings.jpegQuality()); err != nil {
		return nil, i.fail(ctx, span, logger, provider, model, duration, err)
	}

	i.recorder.RecordInference(provider, model, "success", duration, buf.Len())
	i.recordOTel(ctx, provider, "success", duration)
	span.SetAttributes(attribute.Int("inpaint.output_bytes", buf.Len()))
	span.SetStatus(codes.Ok, "")

	logger.Info("inpainting completed successfully",
		zap.Duration("duration", duration),
		zap.Int("output_bytes", buf.Len()),
		zap.Int("images_returned", len(result.Images)),
	)

	return bytes.NewReader(buf.Bytes()), nil
}

// call 调用模型并把 panic 转换为错误，保证进程在后端异常后仍可继续服务
func (i *Invoker) call(ctx context.Context, req *Request) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("pipeline panicked",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
			result, err = nil, fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return i.pipeline.Inpaint(ctx, req)
}

// fail 记录失败并转换为对外错误
func (i *Invoker) fail(ctx context.Context, span trace.Span, logger *zap.Logger, provider, model string, duration time.Duration, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	var out *types.Error
	status := "error"
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		status = "timeout"
		out = types.NewError(types.ErrTimeout, MsgTimeout).WithCause(cause)
	case errors.Is(ctx.Err(), context.Canceled):
		status = "canceled"
		out = types.NewError(types.ErrRequestCanceled, MsgRequestCanceled).WithCause(cause)
	default:
		out = types.NewError(types.ErrGenerationFailed, MsgGenerationFailed).WithCause(cause)
	}

	i.recorder.RecordInference(provider, model, status, duration, 0)
	i.recordOTel(context.WithoutCancel(ctx), provider, status, duration)

	logger.Error("error during inpainting",
		zap.String("status", status),
		zap.String("code", string(types.GetErrorCode(out))),
		zap.Duration("duration", duration),
		zap.Error(cause),
	)
	return out
}

func (i *Invoker) recordOTel(ctx context.Context, provider, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	if i.inferenceCount != nil {
		i.inferenceCount.Add(ctx, 1, attrs)
	}
	if i.inferenceDuration != nil {
		i.inferenceDuration.Record(ctx, duration.Seconds(), attrs)
	}
}
