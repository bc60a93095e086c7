package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "codellama"
)

// LocalLLMClient 通过 Ollama 的 /api/chat 调用本地模型
type LocalLLMClient struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// LocalLLMConfig 本地 LLM 配置
type LocalLLMConfig struct {
	BaseURL string // 默认 http://localhost:11434
	Model   string // 例如 "llama3", "codellama"
	Timeout time.Duration
	Proxy   string
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Format   string          `json:"format,omitempty"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// NewLocalLLMClient 创建本地 LLM 客户端，不需要 API Key
func NewLocalLLMClient(cfg LocalLLMConfig) (*LocalLLMClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second // 本地推理较慢
	}

	hc, err := NewHTTPClient(cfg.Proxy, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &LocalLLMClient{
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/api/chat",
		model:      cfg.Model,
		httpClient: hc,
	}, nil
}

// Complete 发送一轮对话，要求模型输出 JSON
func (c *LocalLLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(ollamaChatRequest{
		Model: c.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Format:  "json",
		Options: map[string]any{"temperature": 0.1},
	})
	if err != nil {
		return "", fmt.Errorf("ollama: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("ollama: read response: %w", err)
	}

	var out ollamaChatResponse
	decodeErr := json.Unmarshal(raw, &out)
	switch {
	case decodeErr == nil && out.Error != "":
		return "", fmt.Errorf("ollama: %s (status %d)", out.Error, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("ollama: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	case decodeErr != nil:
		return "", fmt.Errorf("ollama: decode response: %w", decodeErr)
	}
	return out.Message.Content, nil
}

// GetName 返回客户端名称
func (c *LocalLLMClient) GetName() string {
	return "ollama (" + c.model + ")"
}

// Close 清理资源
func (c *LocalLLMClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
