package inpaint

import "github.com/BaSui01/inpaintflow/canvas"

// 未配置时使用的生成参数
const (
	DefaultPrompt = "expand image, resize and fill naturally, high resolution, natural continuation, " +
		"natural background characters, realistic background characters"

	DefaultNegativePrompt = "blurry, image repeat, distorted, unclear, low resolution, Double head, " +
		"Double figure, double body, Disfigured body, logo, watermark, text, title, signature, words, " +
		"letters, characters, subtitle, cropped, zoomed, extra fingers, extra limbs, unnatural hands, " +
		"extra legs, disfigured, disfigured fingers, disfigured hands, glasses, straws, " +
		"unnatural background characters"

	DefaultGuidanceScale = 7.5
	DefaultStrength      = 1.0
	DefaultSteps         = 50
)

// Settings 进程级生成设置，启动时加载一次，之后只读。
// 零值字段在组装参数时回退到默认值。
type Settings struct {
	Prompt         string
	NegativePrompt string
	GuidanceScale  float64
	Strength       float64
	Steps          int
	JPEGQuality    int
}

// DefaultSettings 返回全部使用默认值的设置
func DefaultSettings() Settings {
	return Settings{
		Prompt:         DefaultPrompt,
		NegativePrompt: DefaultNegativePrompt,
		GuidanceScale:  DefaultGuidanceScale,
		Strength:       DefaultStrength,
		Steps:          DefaultSteps,
		JPEGQuality:    canvas.DefaultJPEGQuality,
	}
}

// GenerationParameters 传给模型的完整参数
type GenerationParameters struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	GuidanceScale  float64 `json:"guidance_scale"`
	Strength       float64 `json:"strength"`
	Steps          int     `json:"num_inference_steps"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
}

// Parameters 按请求尺寸组装生成参数
func (s Settings) Parameters(width, height int) GenerationParameters {
	p := GenerationParameters{
		Prompt:         s.Prompt,
		NegativePrompt: s.NegativePrompt,
		GuidanceScale:  s.GuidanceScale,
		Strength:       s.Strength,
		Steps:          s.Steps,
		Width:          width,
		Height:         height,
	}
	if p.Prompt == "" {
		p.Prompt = DefaultPrompt
	}
	if p.NegativePrompt == "" {
		p.NegativePrompt = DefaultNegativePrompt
	}
	if p.GuidanceScale <= 0 {
		p.GuidanceScale = DefaultGuidanceScale
	}
	if p.Strength <= 0 {
		p.Strength = DefaultStrength
	}
	if p.Steps <= 0 {
		p.Steps = DefaultSteps
	}
	return p
}

func (s Settings) jpegQuality() int {
	if s.JPEGQuality < 1 || s.JPEGQuality > 100 {
		return canvas.DefaultJPEGQuality
	}
	return s.JPEGQuality
}
