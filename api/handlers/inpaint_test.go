package handlers

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/BaSui01/inpaintflow/canvas"
	"github.com/BaSui01/inpaintflow/inpaint"
	"github.com/BaSui01/inpaintflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

// stubPipeline 按调用序号返回预设结果
type stubPipeline struct {
	calls   atomic.Int32
	fail    func(call int32) error
	lastReq atomic.Pointer[inpaint.Request]
}

func (p *stubPipeline) Name() string  { return "stub" }
func (p *stubPipeline) Model() string { return "stub-model" }

func (p *stubPipeline) Inpaint(_ context.Context, req *inpaint.Request) (*inpaint.Result, error) {
	n := p.calls.Add(1)
	p.lastReq.Store(req)
	if p.fail != nil {
		if err := p.fail(n); err != nil {
			return nil, err
		}
	}
	out := image.NewRGBA(image.Rect(0, 0, req.Width, req.Height))
	for i := range out.Pix {
		out.Pix[i] = 0x80
	}
	return &inpaint.Result{Images: []image.Image{out}}, nil
}

type fakeUploadRecorder struct {
	formats    []string
	pixels     []int
	rejections []string
}

func (f *fakeUploadRecorder) RecordUpload(format string, pixels int) {
	f.formats = append(f.formats, format)
	f.pixels = append(f.pixels, pixels)
}

func (f *fakeUploadRecorder) RecordRejection(code string) {
	f.rejections = append(f.rejections, code)
}

func newTestHandler(t *testing.T, p *stubPipeline) (*InpaintHandler, *fakeUploadRecorder) {
	t.Helper()
	invoker := inpaint.NewInvoker(p, inpaint.DefaultSettings(), zap.NewNop())
	rec := &fakeUploadRecorder{}
	return NewInpaintHandler(invoker, DefaultInpaintOptions(), rec, zap.NewNop()), rec
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartRequest 构造表单；data 为 nil 时不包含文件字段
func multipartRequest(t *testing.T, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		fw, err := mw.CreateFormFile("image", "input.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/inpaint/", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorInfo {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

// =============================================================================
// 🧪 成功路径
// =============================================================================

func TestInpaintHandler_Success(t *testing.T) {
	p := &stubPipeline{}
	h, rec := newTestHandler(t, p)

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, pngBytes(t, 400, 300), map[string]string{"width": "512", "height": "512"}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	out, err := jpeg.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 512, 512), out.Bounds())

	req := p.lastReq.Load()
	require.NotNil(t, req)
	assert.Equal(t, 512, req.Width)
	assert.Equal(t, 512, req.Height)
	assert.Equal(t, image.Rect(0, 0, 512, 512), req.Image.Bounds())
	assert.Equal(t, uint8(canvas.MaskPreserve), req.Mask.GrayAt(56+10, 106+10).Y)
	assert.Equal(t, uint8(canvas.MaskGenerate), req.Mask.GrayAt(0, 0).Y)

	assert.Equal(t, []string{"png"}, rec.formats)
	assert.Equal(t, []int{512*512 - 400*300}, rec.pixels)
	assert.Empty(t, rec.rejections)
}

func TestInpaintHandler_SameSizeTarget(t *testing.T) {
	p := &stubPipeline{}
	h, _ := newTestHandler(t, p)

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, pngBytes(t, 64, 64), map[string]string{"width": "64", "height": "64"}))

	require.Equal(t, http.StatusOK, w.Code)
	req := p.lastReq.Load()
	require.NotNil(t, req)
	for _, v := range req.Mask.Pix {
		if v != canvas.MaskPreserve {
			t.Fatalf("identity target should produce an all-preserve mask, got %d", v)
		}
	}
}

// =============================================================================
// 🧪 校验失败
// =============================================================================

func TestInpaintHandler_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		fields    map[string]string
		wantField string
	}{
		{"width not multiple of 8", map[string]string{"width": "513", "height": "512"}, "width"},
		{"height zero", map[string]string{"width": "512", "height": "0"}, "height"},
		{"negative width", map[string]string{"width": "-8", "height": "512"}, "width"},
		{"too large", map[string]string{"width": "8192", "height": "512"}, "width"},
		{"not an integer", map[string]string{"width": "abc", "height": "512"}, "width"},
		{"missing height", map[string]string{"width": "512"}, "height"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubPipeline{}
			h, rec := newTestHandler(t, p)

			w := httptest.NewRecorder()
			h.HandleInpaint(w, multipartRequest(t, pngBytes(t, 16, 16), tt.fields))

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			info := decodeError(t, w)
			assert.Equal(t, string(types.ErrValidation), info.Code)
			require.NotEmpty(t, info.Fields)
			assert.Equal(t, tt.wantField, info.Fields[0].Field)
			assert.Equal(t, int32(0), p.calls.Load())
			assert.Equal(t, []string{string(types.ErrValidation)}, rec.rejections)
		})
	}
}

func TestInpaintHandler_ValidationBeforeImageRead(t *testing.T) {
	p := &stubPipeline{}
	h, _ := newTestHandler(t, p)

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, []byte("not an image"), map[string]string{"width": "513", "height": "512"}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(types.ErrValidation), decodeError(t, w).Code)
}

func TestInpaintHandler_MultipleOfDisabled(t *testing.T) {
	p := &stubPipeline{}
	invoker := inpaint.NewInvoker(p, inpaint.DefaultSettings(), zap.NewNop())
	h := NewInpaintHandler(invoker, InpaintOptions{MultipleOf: 1}, nil, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, pngBytes(t, 10, 10), map[string]string{"width": "13", "height": "11"}))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInpaintHandler_TargetSmallerThanImage(t *testing.T) {
	p := &stubPipeline{}
	h, _ := newTestHandler(t, p)

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, pngBytes(t, 100, 40), map[string]string{"width": "64", "height": "64"}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	info := decodeError(t, w)
	require.Len(t, info.Fields, 1)
	assert.Equal(t, "width", info.Fields[0].Field)
	assert.Equal(t, int32(0), p.calls.Load())
}

// pngHeaderOnly 只有签名 + IHDR + IEND，声明任意尺寸但不含像素数据
func pngHeaderOnly(width, height uint32) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString("\x89PNG\r\n\x1a\n")
	writeChunk := func(typ string, data []byte) {
		body := append([]byte(typ), data...)
		_ = binary.Write(buf, binary.BigEndian, uint32(len(data)))
		buf.Write(body)
		_ = binary.Write(buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8], ihdr[9] = 8, 6
	writeChunk("IHDR", ihdr)
	writeChunk("IEND", nil)
	return buf.Bytes()
}

func TestInpaintHandler_OversizedHeaderRejectedBeforeDecode(t *testing.T) {
	p := &stubPipeline{}
	h, rec := newTestHandler(t, p)

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, pngHeaderOnly(12000, 12000), map[string]string{"width": "512", "height": "512"}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	info := decodeError(t, w)
	assert.Equal(t, string(types.ErrValidation), info.Code)
	require.Len(t, info.Fields, 2)
	assert.Equal(t, "width", info.Fields[0].Field)
	assert.Contains(t, info.Fields[0].Message, "12000")
	assert.Equal(t, "height", info.Fields[1].Field)
	assert.Equal(t, int32(0), p.calls.Load())
	assert.Empty(t, rec.formats)
	assert.Equal(t, []string{string(types.ErrValidation)}, rec.rejections)
}

func TestInpaintHandler_HeaderOnlyWithinTargetIsInvalid(t *testing.T) {
	p := &stubPipeline{}
	h, _ := newTestHandler(t, p)

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, pngHeaderOnly(64, 64), map[string]string{"width": "512", "height": "512"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrInvalidImage), decodeError(t, w).Code)
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestInpaintHandler_MissingImageField(t *testing.T) {
	p := &stubPipeline{}
	h, _ := newTestHandler(t, p)

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, nil, map[string]string{"width": "512", "height": "512"}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	info := decodeError(t, w)
	require.Len(t, info.Fields, 1)
	assert.Equal(t, "image", info.Fields[0].Field)
}

func TestInpaintHandler_EmptyUpload(t *testing.T) {
	p := &stubPipeline{}
	h, rec := newTestHandler(t, p)

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, []byte{}, map[string]string{"width": "512", "height": "512"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	info := decodeError(t, w)
	assert.Equal(t, string(types.ErrEmptyUpload), info.Code)
	assert.Equal(t, "No image file uploaded or file is empty.", info.Message)
	assert.Equal(t, int32(0), p.calls.Load())
	assert.Equal(t, []string{string(types.ErrEmptyUpload)}, rec.rejections)
}

func TestInpaintHandler_InvalidImage(t *testing.T) {
	p := &stubPipeline{}
	h, _ := newTestHandler(t, p)

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, []byte("definitely not a picture"), map[string]string{"width": "512", "height": "512"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	info := decodeError(t, w)
	assert.Equal(t, string(types.ErrInvalidImage), info.Code)
	assert.Equal(t, "Invalid image file or corrupted.", info.Message)
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestInpaintHandler_MethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t, &stubPipeline{})

	w := httptest.NewRecorder()
	h.HandleInpaint(w, httptest.NewRequest(http.MethodGet, "/inpaint/", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
}

func TestInpaintHandler_NotMultipart(t *testing.T) {
	h, _ := newTestHandler(t, &stubPipeline{})

	r := httptest.NewRequest(http.MethodPost, "/inpaint/", bytes.NewBufferString(`{"width":512}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleInpaint(w, r)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestInpaintHandler_PayloadTooLarge(t *testing.T) {
	p := &stubPipeline{}
	invoker := inpaint.NewInvoker(p, inpaint.DefaultSettings(), zap.NewNop())
	h := NewInpaintHandler(invoker, InpaintOptions{MaxUploadBytes: 1024, MultipleOf: 8}, nil, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, bytes.Repeat([]byte{0xAB}, 8192), map[string]string{"width": "512", "height": "512"}))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, string(types.ErrPayloadTooLarge), decodeError(t, w).Code)
	assert.Equal(t, int32(0), p.calls.Load())
}

// =============================================================================
// 🧪 推理失败
// =============================================================================

func TestInpaintHandler_PipelineFailureThenRecovery(t *testing.T) {
	p := &stubPipeline{fail: func(call int32) error {
		if call == 1 {
			return errors.New("CUDA out of memory")
		}
		return nil
	}}
	h, rec := newTestHandler(t, p)
	fields := map[string]string{"width": "64", "height": "64"}

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, pngBytes(t, 32, 32), fields))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	info := decodeError(t, w)
	assert.Equal(t, string(types.ErrGenerationFailed), info.Code)
	assert.Equal(t, "An error occurred during inpainting.", info.Message)
	assert.NotContains(t, info.Message, "CUDA")

	w = httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, pngBytes(t, 32, 32), fields))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(2), p.calls.Load())
	assert.Equal(t, []string{string(types.ErrGenerationFailed)}, rec.rejections)
}

type errInpainter struct{ err error }

func (e errInpainter) Inpaint(context.Context, *image.RGBA, *image.Gray, int, int) (*bytes.Reader, error) {
	return nil, e.err
}

func TestInpaintHandler_UntypedInpainterError(t *testing.T) {
	h := NewInpaintHandler(errInpainter{err: errors.New("boom")}, DefaultInpaintOptions(), nil, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, pngBytes(t, 8, 8), map[string]string{"width": "8", "height": "8"}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(types.ErrInternalError), decodeError(t, w).Code)
}

func TestInpaintHandler_TimeoutMapsTo504(t *testing.T) {
	timeoutErr := types.NewError(types.ErrTimeout, inpaint.MsgTimeout)
	h := NewInpaintHandler(errInpainter{err: timeoutErr}, DefaultInpaintOptions(), nil, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleInpaint(w, multipartRequest(t, pngBytes(t, 8, 8), map[string]string{"width": "8", "height": "8"}))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestInpaintHandler_RequestIDInErrorBody(t *testing.T) {
	h, _ := newTestHandler(t, &stubPipeline{})

	r := multipartRequest(t, []byte{}, map[string]string{"width": "8", "height": "8"})
	r = r.WithContext(types.WithRequestID(r.Context(), "req-123"))
	w := httptest.NewRecorder()
	h.HandleInpaint(w, r)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "req-123", resp.RequestID)
}
