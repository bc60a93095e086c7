package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ValidateProxyURL 验证代理 URL，空字符串表示不使用代理
func ValidateProxyURL(proxyURL string) error {
	if strings.TrimSpace(proxyURL) == "" {
		return nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "socks5" {
		return fmt.Errorf("unsupported proxy scheme: %s (supported: http, https, socks5)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("proxy host cannot be empty")
	}
	return nil
}

// NewHTTPClient 创建模型后端使用的 HTTP 客户端，proxyURL 非空时走代理
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	if err := ValidateProxyURL(proxyURL); err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     30 * time.Second,
	}
	if p := strings.TrimSpace(proxyURL); p != "" {
		u, _ := url.Parse(p)
		transport.Proxy = http.ProxyURL(u)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}
