package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/admi-n/nullshot-auditor/src/internal/ai/client"
)

// AIClient 所有模型后端必须实现的接口
type AIClient interface {
	// Complete 发送 prompt 返回模型原始文本，没有内容时返回空串
	Complete(ctx context.Context, prompt string) (string, error)
	GetName() string
	Close() error
}

// AIClientConfig 客户端配置
type AIClientConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	Proxy    string
}

// NewAIClient 根据 provider 创建对应的客户端
func NewAIClient(cfg AIClientConfig) (AIClient, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		return client.NewGeminiClient(client.GeminiConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Proxy:   cfg.Proxy,
		})

	case "openai", "gpt4":
		return client.NewOpenAIClient(client.OpenAIConfig{
			Flavor:  "openai",
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Proxy:   cfg.Proxy,
		})

	case "deepseek":
		return client.NewOpenAIClient(client.OpenAIConfig{
			Flavor:  "deepseek",
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Proxy:   cfg.Proxy,
		})

	case "local-llm", "ollama":
		return client.NewLocalLLMClient(client.LocalLLMConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Proxy:   cfg.Proxy,
		})

	default:
		return nil, fmt.Errorf("unsupported AI provider: %s (supported: %s)", cfg.Provider, strings.Join(Providers, ", "))
	}
}

// Providers 支持的 provider 名称
var Providers = []string{"gemini", "openai", "deepseek", "ollama"}

// ValidateProvider 验证 provider 名称；"heuristic" 表示不使用远程模型
func ValidateProvider(provider string) error {
	switch strings.ToLower(provider) {
	case "gemini", "openai", "gpt4", "deepseek", "local-llm", "ollama", "heuristic":
		return nil
	}
	return fmt.Errorf("invalid provider '%s', must be one of: %s, heuristic", provider, strings.Join(Providers, ", "))
}
