package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"randechat/internal/config"
)

// New builds the model backend selected by cfg.LLM.Provider
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Model, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		return NewGeminiModel(ctx, cfg.Gemini, "", logger)
	case config.ProviderOpenAI:
		return NewOpenAIModel(cfg.OpenAI, cfg.LLM.Timeout, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
}
