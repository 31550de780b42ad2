package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/BaSui01/inpaintflow/canvas"
	"github.com/BaSui01/inpaintflow/inpaint"
	"go.uber.org/zap"
)

// OpenAIPipeline 通过 OpenAI 图像编辑接口执行 inpainting
type OpenAIPipeline struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIPipeline 创建 OpenAI 后端
func NewOpenAIPipeline(cfg Config, logger *zap.Logger) *OpenAIPipeline {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	p := &OpenAIPipeline{
		cfg:    cfg,
		client: newHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("pipeline", ProviderOpenAI)),
	}
	if sizes := p.SupportedSizes(); sizes != nil {
		p.logger.Info("model restricts output size",
			zap.String("model", cfg.Model),
			zap.Any("sizes", sizes),
		)
	}
	return p
}

func (p *OpenAIPipeline) Name() string  { return ProviderOpenAI }
func (p *OpenAIPipeline) Model() string { return p.cfg.Model }

type editResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL     string `json:"url,omitempty"`
		B64JSON string `json:"b64_json,omitempty"`
	} `json:"data"`
}

// openAIEditSizes /v1/images/edits 对各模型允许的 size 取值；未列出的模型不做限制
var openAIEditSizes = map[string][]image.Point{
	"dall-e-2":    {{X: 256, Y: 256}, {X: 512, Y: 512}, {X: 1024, Y: 1024}},
	"gpt-image-1": {{X: 1024, Y: 1024}, {X: 1536, Y: 1024}, {X: 1024, Y: 1536}},
}

// SupportedSizes 返回当前模型可用的输出尺寸，nil 表示不限制
func (p *OpenAIPipeline) SupportedSizes() []image.Point {
	return openAIEditSizes[p.cfg.Model]
}

// ValidateSize 实现 inpaint.SizeValidator
func (p *OpenAIPipeline) ValidateSize(width, height int) error {
	sizes := p.SupportedSizes()
	if sizes == nil || slices.Contains(sizes, image.Pt(width, height)) {
		return nil
	}
	names := make([]string, len(sizes))
	for i, s := range sizes {
		names[i] = fmt.Sprintf("%dx%d", s.X, s.Y)
	}
	return fmt.Errorf("%w: %s accepts %s, got %dx%d",
		inpaint.ErrUnsupportedSize, p.cfg.Model, strings.Join(names, ", "), width, height)
}

// alphaMask 把灰度遮罩转换为 OpenAI 要求的形式：需要生成的区域完全透明
func alphaMask(mask *image.Gray) *image.NRGBA {
	b := mask.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := uint8(0xff)
			if mask.GrayAt(x, y).Y == canvas.MaskGenerate {
				a = 0
			}
			out.SetNRGBA(x, y, color.NRGBA{A: a})
		}
	}
	return out
}

// Inpaint 实现 inpaint.Pipeline
func (p *OpenAIPipeline) Inpaint(ctx context.Context, req *inpaint.Request) (*inpaint.Result, error) {
	if err := p.ValidateSize(req.Width, req.Height); err != nil {
		return nil, err
	}

	imagePNG, err := canvas.EncodePNG(req.Image)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	maskPNG, err := canvas.EncodePNG(alphaMask(req.Mask))
	if err != nil {
		return nil, fmt.Errorf("encode mask: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(imagePNG); err != nil {
		return nil, err
	}
	maskPart, err := writer.CreateFormFile("mask", "mask.png")
	if err != nil {
		return nil, err
	}
	if _, err := maskPart.Write(maskPNG); err != nil {
		return nil, err
	}

	_ = writer.WriteField("prompt", req.Prompt)
	_ = writer.WriteField("model", p.cfg.Model)
	_ = writer.WriteField("n", "1")
	_ = writer.WriteField("size", fmt.Sprintf("%dx%d", req.Width, req.Height))
	if strings.HasPrefix(p.cfg.Model, "dall-e") {
		_ = writer.WriteField("response_format", "b64_json")
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/images/edits",
		&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai edit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, statusError("openai edit", resp)
	}

	var eResp editResponse
	if err := json.NewDecoder(resp.Body).Decode(&eResp); err != nil {
		return nil, fmt.Errorf("failed to decode openai edit response: %w", err)
	}

	images := make([]image.Image, 0, len(eResp.Data))
	for _, d := range eResp.Data {
		var (
			img image.Image
			err error
		)
		switch {
		case d.B64JSON != "":
			img, err = decodeBase64Image(d.B64JSON)
		case d.URL != "":
			img, err = p.download(ctx, d.URL)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return &inpaint.Result{Images: images}, nil
}

// download 拉取以 URL 形式返回的结果
func (p *OpenAIPipeline) download(ctx context.Context, url string) (image.Image, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("download edited image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, statusError("openai download", resp)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode returned image: %w", err)
	}
	return img, nil
}
