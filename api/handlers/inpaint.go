package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/BaSui01/inpaintflow/canvas"
	"github.com/BaSui01/inpaintflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🖼️ 外扩（outpainting）Handler
// =============================================================================

const (
	msgEmptyUpload     = "No image file uploaded or file is empty."
	msgInvalidImage    = "Invalid image file or corrupted."
	msgImageReadFailed = "Failed to read uploaded image."
	msgValidation      = "Request validation failed."
	msgTooLarge        = "Uploaded payload exceeds the size limit."
)

// Inpainter 执行一次外扩推理，返回 JPEG 数据
type Inpainter interface {
	Inpaint(ctx context.Context, padded *image.RGBA, mask *image.Gray, width, height int) (*bytes.Reader, error)
}

// UploadRecorder 记录上传与拒绝指标
type UploadRecorder interface {
	RecordUpload(format string, generatedPixels int)
	RecordRejection(code string)
}

type nopUploadRecorder struct{}

func (nopUploadRecorder) RecordUpload(string, int) {}
func (nopUploadRecorder) RecordRejection(string)   {}

// InpaintOptions 请求校验策略
type InpaintOptions struct {
	MaxUploadBytes int64
	MaxDimension   int
	MultipleOf     int
}

// DefaultInpaintOptions 返回默认策略：20 MiB、4096 上限、8 的倍数
func DefaultInpaintOptions() InpaintOptions {
	return InpaintOptions{
		MaxUploadBytes: 20 << 20,
		MaxDimension:   4096,
		MultipleOf:     8,
	}
}

// InpaintHandler 处理 POST /inpaint/
type InpaintHandler struct {
	inpainter Inpainter
	recorder  UploadRecorder
	opts      InpaintOptions
	logger    *zap.Logger
}

// NewInpaintHandler 创建外扩处理器，recorder 可为 nil
func NewInpaintHandler(inpainter Inpainter, opts InpaintOptions, recorder UploadRecorder, logger *zap.Logger) *InpaintHandler {
	defaults := DefaultInpaintOptions()
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = defaults.MaxDimension
	}
	if opts.MultipleOf < 1 {
		opts.MultipleOf = 1
	}
	if recorder == nil {
		recorder = nopUploadRecorder{}
	}
	return &InpaintHandler{
		inpainter: inpainter,
		recorder:  recorder,
		opts:      opts,
		logger:    logger.With(zap.String("component", "inpaint_handler")),
	}
}

// HandleInpaint 处理 multipart 表单（image、width、height），成功时返回 image/jpeg
func (h *InpaintHandler) HandleInpaint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.reject(w, r, types.NewError(types.ErrMethodNotAllowed, "method not allowed"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		h.reject(w, r, formError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	width, height, verr := h.parseDimensions(r.MultipartForm)
	if verr != nil {
		h.reject(w, r, verr)
		return
	}

	logger := h.logger
	if rid, ok := types.RequestID(r.Context()); ok {
		logger = logger.With(zap.String("request_id", rid))
	}
	logger.Info("received inpainting request",
		zap.Int("target_width", width),
		zap.Int("target_height", height),
	)

	data, terr := readUpload(r.MultipartForm)
	if terr != nil {
		h.reject(w, r, terr)
		return
	}

	// 目标尺寸即解码上限：更大的图像只读头部就会被拒绝
	src, format, err := canvas.Decode(data, width, height)
	if err != nil {
		var tooLarge *canvas.TooLargeError
		if errors.As(err, &tooLarge) {
			logger.Info("image larger than target canvas",
				zap.Int("width", tooLarge.Width),
				zap.Int("height", tooLarge.Height),
				zap.Int("bytes", len(data)),
			)
			h.reject(w, r, smallerTargetError(tooLarge.Width, tooLarge.Height, width, height).WithCause(err))
			return
		}
		if errors.Is(err, canvas.ErrInvalidImage) {
			h.reject(w, r, types.NewError(types.ErrInvalidImage, msgInvalidImage).WithCause(err))
			return
		}
		h.reject(w, r, types.NewError(types.ErrImageReadFailed, msgImageReadFailed).WithCause(err))
		return
	}

	bounds := src.Bounds()
	logger.Info("image uploaded",
		zap.String("format", format),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
		zap.Int("bytes", len(data)),
	)

	if bounds.Dx() > width || bounds.Dy() > height {
		h.reject(w, r, smallerTargetError(bounds.Dx(), bounds.Dy(), width, height))
		return
	}

	prepared := canvas.Prepare(src, width, height)
	h.recorder.RecordUpload(format, width*height-bounds.Dx()*bounds.Dy())

	out, err := h.inpainter.Inpaint(r.Context(), prepared.Image, prepared.Mask, width, height)
	if err != nil {
		apiErr, ok := types.AsError(err)
		if !ok {
			apiErr = types.NewError(types.ErrInternalError, "internal server error").WithCause(err)
		}
		h.reject(w, r, apiErr)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, out); err != nil {
		logger.Warn("failed to stream inpainted image", zap.Error(err))
	}
}

func (h *InpaintHandler) reject(w http.ResponseWriter, r *http.Request, err *types.Error) {
	h.recorder.RecordRejection(string(err.Code))
	WriteError(w, r, err, h.logger)
}

// smallerTargetError 目标画布小于原图时的字段级校验错误
func smallerTargetError(imageWidth, imageHeight, width, height int) *types.Error {
	e := types.NewError(types.ErrValidation, msgValidation)
	if imageWidth > width {
		e.WithField("width", fmt.Sprintf("must be at least the image width %d", imageWidth))
	}
	if imageHeight > height {
		e.WithField("height", fmt.Sprintf("must be at least the image height %d", imageHeight))
	}
	return e
}

// parseDimensions 在读取图像之前校验 width/height
func (h *InpaintHandler) parseDimensions(form *multipart.Form) (int, int, *types.Error) {
	var verr *types.Error
	addField := func(field, message string) {
		if verr == nil {
			verr = types.NewError(types.ErrValidation, msgValidation)
		}
		verr.WithField(field, message)
	}

	parse := func(field string) int {
		values := form.Value[field]
		if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
			addField(field, "field required")
			return 0
		}
		n, err := strconv.Atoi(strings.TrimSpace(values[0]))
		if err != nil {
			addField(field, "value is not a valid integer")
			return 0
		}
		switch {
		case n <= 0:
			addField(field, "must be greater than 0")
		case n > h.opts.MaxDimension:
			addField(field, fmt.Sprintf("must be at most %d", h.opts.MaxDimension))
		case n%h.opts.MultipleOf != 0:
			addField(field, fmt.Sprintf("must be a multiple of %d", h.opts.MultipleOf))
		}
		return n
	}

	width := parse("width")
	height := parse("height")
	if verr != nil {
		return 0, 0, verr
	}
	return width, height, nil
}

func readUpload(form *multipart.Form) ([]byte, *types.Error) {
	files := form.File["image"]
	if len(files) == 0 {
		return nil, types.NewError(types.ErrValidation, msgValidation).WithField("image", "field required")
	}
	header := files[0]
	if header.Size == 0 {
		return nil, types.NewError(types.ErrEmptyUpload, msgEmptyUpload)
	}

	f, err := header.Open()
	if err != nil {
		return nil, types.NewError(types.ErrImageReadFailed, msgImageReadFailed).WithCause(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, types.NewError(types.ErrImageReadFailed, msgImageReadFailed).WithCause(err)
	}
	if len(data) == 0 {
		return nil, types.NewError(types.ErrEmptyUpload, msgEmptyUpload)
	}
	return data, nil
}

func formError(err error) *types.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		return types.NewError(types.ErrPayloadTooLarge, msgTooLarge).WithCause(err)
	}
	return types.NewError(types.ErrValidation, msgValidation).
		WithField("body", "expected a multipart/form-data body").
		WithCause(err)
}
