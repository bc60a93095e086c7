package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultDeepSeekURL   = "https://api.deepseek.com/v1"
	defaultDeepSeekModel = "deepseek-chat"

	systemPrompt = "You are an expert Solidity smart contract security auditor. Always answer with a single JSON object and nothing else."
)

// OpenAIConfig OpenAI 兼容接口配置（OpenAI、DeepSeek 等）
type OpenAIConfig struct {
	Flavor  string // "openai" 或 "deepseek"
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Proxy   string
}

// OpenAIClient 基于 go-openai 的客户端
type OpenAIClient struct {
	client *openai.Client
	flavor string
	model  string
	// jsonMode 为 false 表示后端不支持 response_format，已降级为普通文本
	jsonMode atomic.Bool
}

// NewOpenAIClient 创建 OpenAI 兼容客户端
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Flavor == "" {
		cfg.Flavor = "openai"
	}
	if cfg.Flavor == "deepseek" {
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultDeepSeekURL
		}
		if cfg.Model == "" {
			cfg.Model = defaultDeepSeekModel
		}
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient, err := NewHTTPClient(cfg.Proxy, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = httpClient

	c := &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		flavor: cfg.Flavor,
		model:  cfg.Model,
	}
	c.jsonMode.Store(true)
	return c, nil
}

// Complete 发送 prompt 并返回第一条回复，没有回复时返回空串
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   4096,
	}
	jsonMode := c.jsonMode.Load()
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil && jsonMode && isUnsupportedResponseFormatError(err) {
		c.jsonMode.Store(false)
		req.ResponseFormat = nil
		resp, err = c.client.CreateChatCompletion(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("%s chat completion failed: %w", c.flavor, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func isUnsupportedResponseFormatError(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "response_format") &&
		(strings.Contains(msg, "not supported") || strings.Contains(msg, "invalid parameter"))
}

// GetName 返回客户端名称
func (c *OpenAIClient) GetName() string {
	return fmt.Sprintf("%s (%s)", c.flavor, c.model)
}

func (c *OpenAIClient) Close() error {
	return nil
}
