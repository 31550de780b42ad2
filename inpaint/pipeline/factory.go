package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/inpaintflow/inpaint"
	"go.uber.org/zap"
)

// ErrLoadModel 启动时无法构造后端
var ErrLoadModel = errors.New("failed to load inpainting model")

// Pinger 可探测连通性的后端
type Pinger interface {
	Ping(ctx context.Context) error
}

// New 按配置构造后端
func New(cfg Config, logger *zap.Logger) (inpaint.Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	logger.Info("loading inpainting model",
		zap.String("provider", provider),
		zap.String("model", cfg.Model),
		zap.String("base_url", cfg.BaseURL),
	)

	var p inpaint.Pipeline
	switch provider {
	case ProviderSDWebUI, "":
		p = NewSDWebUIPipeline(cfg, logger)
	case ProviderCloudflare:
		if cfg.AccountID == "" || cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: cloudflare requires account_id and api_key", ErrLoadModel)
		}
		p = NewCloudflarePipeline(cfg, logger)
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai requires api_key", ErrLoadModel)
		}
		p = NewOpenAIPipeline(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrLoadModel, cfg.Provider)
	}

	logger.Info("inpainting model loaded",
		zap.String("provider", p.Name()),
		zap.String("model", p.Model()),
	)
	return p, nil
}
