package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/BaSui01/inpaintflow/inpaint"
	"go.uber.org/zap"
)

// SDWebUIPipeline 通过 Stable Diffusion WebUI 的 img2img 接口执行 inpainting
type SDWebUIPipeline struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// inpainting_fill 取值
const (
	sdFillOriginal    = 1
	sdFillLatentNoise = 2
)

// NewSDWebUIPipeline 创建 SD WebUI 后端
func NewSDWebUIPipeline(cfg Config, logger *zap.Logger) *SDWebUIPipeline {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSDWebUIBaseURL
	}
	return &SDWebUIPipeline{
		cfg:    cfg,
		client: newHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("pipeline", ProviderSDWebUI)),
	}
}

func (p *SDWebUIPipeline) Name() string  { return ProviderSDWebUI }
func (p *SDWebUIPipeline) Model() string { return p.cfg.Model }

type sdImg2ImgRequest struct {
	InitImages        []string       `json:"init_images"`
	Mask              string         `json:"mask"`
	Prompt            string         `json:"prompt"`
	NegativePrompt    string         `json:"negative_prompt,omitempty"`
	Width             int            `json:"width"`
	Height            int            `json:"height"`
	CFGScale          float64        `json:"cfg_scale"`
	DenoisingStrength float64        `json:"denoising_strength"`
	Steps             int            `json:"steps"`
	InpaintingFill    int            `json:"inpainting_fill"`
	InpaintFullRes    bool           `json:"inpaint_full_res"`
	InpaintingMaskInv int            `json:"inpainting_mask_invert"`
	MaskBlur          int            `json:"mask_blur"`
	BatchSize         int            `json:"batch_size"`
	OverrideSettings  map[string]any `json:"override_settings,omitempty"`
}

type sdImg2ImgResponse struct {
	Images []string `json:"images"`
	Info   string   `json:"info,omitempty"`
}

// Inpaint 实现 inpaint.Pipeline
func (p *SDWebUIPipeline) Inpaint(ctx context.Context, req *inpaint.Request) (*inpaint.Result, error) {
	initImage, err := encodeBase64PNG(req.Image)
	if err != nil {
		return nil, fmt.Errorf("encode init image: %w", err)
	}
	mask, err := encodeBase64PNG(req.Mask)
	if err != nil {
		return nil, fmt.Errorf("encode mask: %w", err)
	}

	body := sdImg2ImgRequest{
		InitImages:        []string{initImage},
		Mask:              mask,
		Prompt:            req.Prompt,
		NegativePrompt:    req.NegativePrompt,
		Width:             req.Width,
		Height:            req.Height,
		CFGScale:          req.GuidanceScale,
		DenoisingStrength: req.Strength,
		Steps:             req.Steps,
		InpaintingFill:    sdFillLatentNoise,
		BatchSize:         1,
	}
	if req.Strength < 1 {
		// 低重绘强度下 latent noise 会残留噪点
		body.InpaintingFill = sdFillOriginal
	}
	if p.cfg.Model != "" {
		body.OverrideSettings = map[string]any{"sd_model_checkpoint": p.cfg.Model}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal img2img request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/sdapi/v1/img2img",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sdwebui request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, statusError("sdwebui", resp)
	}

	var sdResp sdImg2ImgResponse
	if err := json.NewDecoder(resp.Body).Decode(&sdResp); err != nil {
		return nil, fmt.Errorf("failed to decode sdwebui response: %w", err)
	}

	images := make([]image.Image, 0, len(sdResp.Images))
	for _, b64 := range sdResp.Images {
		img, err := decodeBase64Image(b64)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	p.logger.Debug("img2img finished", zap.Int("images", len(images)))
	return &inpaint.Result{Images: images}, nil
}

// Ping 检查 WebUI 是否可达
func (p *SDWebUIPipeline) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/sdapi/v1/options", nil)
	if err != nil {
		return err
	}
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sdwebui unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return statusError("sdwebui", resp)
	}
	return nil
}
