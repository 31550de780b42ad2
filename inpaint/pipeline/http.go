package pipeline

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/inpaintflow/canvas"
	"github.com/BaSui01/inpaintflow/internal/tlsutil"
)

const maxErrorBody = 512

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return tlsutil.BackendClient(timeout)
}

// statusError 读取错误响应体并生成错误
func statusError(backend string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%s error: status=%d body=%s", backend, resp.StatusCode, strings.TrimSpace(string(body)))
}

// encodeBase64PNG 把图像编码为 base64 PNG
func encodeBase64PNG(img image.Image) (string, error) {
	data, err := canvas.EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// decodeBase64Image 解码 base64 图像，兼容 data URI 前缀
func decodeBase64Image(s string) (image.Image, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return decodeImageBytes(data)
}

func decodeImageBytes(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode returned image: %w", err)
	}
	return img, nil
}

func pngToInts(data []byte) []int {
	out := make([]int, len(data))
	for i, b := range data {
		out[i] = int(b)
	}
	return out
}
