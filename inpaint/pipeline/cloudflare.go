package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/inpaintflow/canvas"
	"github.com/BaSui01/inpaintflow/inpaint"
	"go.uber.org/zap"
)

// cfMaxSteps Workers AI 对 num_steps 的上限
const cfMaxSteps = 20

// CloudflarePipeline 通过 Cloudflare Workers AI 执行 inpainting
type CloudflarePipeline struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewCloudflarePipeline 创建 Workers AI 后端
func NewCloudflarePipeline(cfg Config, logger *zap.Logger) *CloudflarePipeline {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCloudflareBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultCloudflareModel
	}
	return &CloudflarePipeline{
		cfg:    cfg,
		client: newHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("pipeline", ProviderCloudflare)),
	}
}

func (p *CloudflarePipeline) Name() string  { return ProviderCloudflare }
func (p *CloudflarePipeline) Model() string { return p.cfg.Model }

type cfInpaintRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Height         int     `json:"height,omitempty"`
	Width          int     `json:"width,omitempty"`
	Image          []int   `json:"image"`
	Mask           []int   `json:"mask"`
	NumSteps       int     `json:"num_steps,omitempty"`
	Strength       float64 `json:"strength,omitempty"`
	Guidance       float64 `json:"guidance,omitempty"`
}

type cfInpaintResponse struct {
	Result struct {
		ImageB64 string `json:"image_b64"`
		Image    string `json:"image"`
	} `json:"result"`
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (p *CloudflarePipeline) endpoint() string {
	return fmt.Sprintf("%s/accounts/%s/ai/run/%s",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.AccountID, p.cfg.Model)
}

// Inpaint 实现 inpaint.Pipeline
func (p *CloudflarePipeline) Inpaint(ctx context.Context, req *inpaint.Request) (*inpaint.Result, error) {
	imagePNG, err := canvas.EncodePNG(req.Image)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	maskPNG, err := canvas.EncodePNG(req.Mask)
	if err != nil {
		return nil, fmt.Errorf("encode mask: %w", err)
	}

	steps := req.Steps
	if steps > cfMaxSteps {
		p.logger.Debug("clamping num_steps", zap.Int("requested", steps), zap.Int("max", cfMaxSteps))
		steps = cfMaxSteps
	}

	payload, err := json.Marshal(cfInpaintRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Height:         req.Height,
		Width:          req.Width,
		Image:          pngToInts(imagePNG),
		Mask:           pngToInts(maskPNG),
		NumSteps:       steps,
		Strength:       req.Strength,
		Guidance:       req.GuidanceScale,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal workers ai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("workers ai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, statusError("workers ai", resp)
	}

	img, err := p.readImage(resp)
	if err != nil {
		return nil, err
	}
	return &inpaint.Result{Images: []image.Image{img}}, nil
}

// readImage Stable Diffusion 模型直接返回图像字节，其它模型返回 JSON 包装的 base64
func (p *CloudflarePipeline) readImage(resp *http.Response) (image.Image, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read workers ai response: %w", err)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return decodeImageBytes(body)
	}

	var cfResp cfInpaintResponse
	if err := json.Unmarshal(body, &cfResp); err != nil {
		// 部分网关不设置 Content-Type
		if img, decErr := decodeImageBytes(body); decErr == nil {
			return img, nil
		}
		return nil, fmt.Errorf("failed to decode workers ai response: %w", err)
	}
	if !cfResp.Success && len(cfResp.Errors) > 0 {
		msgs := make([]string, 0, len(cfResp.Errors))
		for _, e := range cfResp.Errors {
			msgs = append(msgs, fmt.Sprintf("%d: %s", e.Code, e.Message))
		}
		return nil, fmt.Errorf("workers ai error: %s", strings.Join(msgs, "; "))
	}

	b64 := cfResp.Result.ImageB64
	if b64 == "" {
		b64 = cfResp.Result.Image
	}
	if b64 == "" {
		return nil, errors.New("workers ai response did not contain an image")
	}
	return decodeBase64Image(b64)
}
