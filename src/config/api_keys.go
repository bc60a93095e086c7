package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/admi-n/nullshot-auditor/src/internal/ai"
)

// 配置里没有填写时依次读取的环境变量
var apiKeyEnv = map[string][]string{
	"gemini":   {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai":   {"OPENAI_API_KEY"},
	"deepseek": {"DEEPSEEK_API_KEY"},
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func (s *Settings) applyEnvFallbacks() {
	if s.AI.Gemini.APIKey == "" {
		s.AI.Gemini.APIKey = firstEnv(apiKeyEnv["gemini"]...)
	}
	if s.AI.OpenAI.APIKey == "" {
		s.AI.OpenAI.APIKey = firstEnv(apiKeyEnv["openai"]...)
	}
	if s.AI.DeepSeek.APIKey == "" {
		s.AI.DeepSeek.APIKey = firstEnv(apiKeyEnv["deepseek"]...)
	}
	if s.Etherscan.APIKey == "" {
		s.Etherscan.APIKey = os.Getenv("ETHERSCAN_API_KEY")
	}
	if s.RPC.URL == "" {
		s.RPC.URL = os.Getenv("ETH_RPC_URL")
	}
	if s.Slack.Token == "" {
		s.Slack.Token = firstEnv("SLACK_BOT_USER_TOKEN", "SLACK_BOT_TOKEN")
	}
}

// providerSettings 返回 provider 对应的配置段
func (a *AISettings) providerSettings(provider string) (ProviderSettings, string, error) {
	switch strings.ToLower(provider) {
	case "gemini":
		return a.Gemini, "gemini", nil
	case "openai", "gpt4":
		return a.OpenAI, "openai", nil
	case "deepseek":
		return a.DeepSeek, "deepseek", nil
	case "local-llm", "ollama":
		return a.LocalLLM, "local_llm", nil
	default:
		return ProviderSettings{}, "", fmt.Errorf("unsupported AI provider: %s", provider)
	}
}

// UsesRemote 当前 provider 是否需要远程模型
func (a *AISettings) UsesRemote() bool {
	return !strings.EqualFold(a.Provider, "heuristic")
}

// ClientConfig 生成当前 provider 的客户端配置。
// 远程 provider 缺少 API Key 时返回错误，本地模型不需要 Key
func (a *AISettings) ClientConfig() (ai.AIClientConfig, error) {
	ps, section, err := a.providerSettings(a.Provider)
	if err != nil {
		return ai.AIClientConfig{}, err
	}
	if section != "local_llm" && ps.APIKey == "" {
		return ai.AIClientConfig{}, fmt.Errorf("%s API key not found in config (ai.%s.api_key) or environment variable %s",
			a.Provider, section, strings.Join(apiKeyEnv[section], "/"))
	}

	model := ps.Model
	if a.Model != "" {
		model = a.Model
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return ai.AIClientConfig{
		Provider: a.Provider,
		APIKey:   ps.APIKey,
		BaseURL:  ps.BaseURL,
		Model:    model,
		Timeout:  timeout,
		Proxy:    a.Proxy,
	}, nil
}
