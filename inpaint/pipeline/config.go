package pipeline

import "time"

// Provider names
const (
	ProviderSDWebUI    = "sdwebui"
	ProviderCloudflare = "cloudflare"
	ProviderOpenAI     = "openai"
)

// Config 后端配置
type Config struct {
	// 后端类型: sdwebui, cloudflare, openai
	Provider string `json:"provider" yaml:"provider"`
	// 模型名称（sdwebui 为 checkpoint 名，可为空表示使用当前已加载的模型）
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// 基础 URL
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// API Key / Token
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// Cloudflare 账户 ID
	AccountID string `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	// 单次请求超时
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// 默认值
const (
	DefaultSDWebUIBaseURL    = "http://127.0.0.1:7860"
	DefaultCloudflareBaseURL = "https://api.cloudflare.com/client/v4"
	DefaultCloudflareModel   = "@cf/runwayml/stable-diffusion-v1-5-inpainting"
	DefaultOpenAIBaseURL     = "https://api.openai.com"
	DefaultOpenAIModel       = "dall-e-2"
	DefaultTimeout           = 5 * time.Minute
)
