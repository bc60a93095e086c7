package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

// CallObserver 记录每次远程调用的耗时与结果
type CallObserver interface {
	ObserveRemoteCall(provider, outcome string, d time.Duration)
}

// ManagerConfig Manager 配置
type ManagerConfig struct {
	// Timeout 单次远程调用超时，<=0 时使用 60s
	Timeout        time.Duration
	RequestsPerMin int
	Observer       CallObserver
}

// Manager 包装 AIClient，负责限流、超时和错误归类
type Manager struct {
	client   AIClient
	limiter  *rate.Limiter
	timeout  time.Duration
	observer CallObserver
}

// NewManager 创建 Manager，client 由调用方构造并注入
func NewManager(c AIClient, cfg ManagerConfig) *Manager {
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Manager{
		client:   c,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMin)), cfg.RequestsPerMin),
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
	}
}

// Complete 发送 prompt，返回非空的模型文本
//
// 错误归类：超时 -> ErrTimeout；空文本 -> ErrNoResponseContent；
// 其他后端错误 -> *RemoteProviderError。调用方取消时原样返回 ctx 错误。
func (m *Manager) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.limiter.Wait(callCtx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: rate limit wait: %v", internal.ErrTimeout, err)
	}

	start := time.Now()
	text, err := m.client.Complete(callCtx, prompt)
	elapsed := time.Since(start)

	switch {
	case err != nil && errors.Is(ctx.Err(), context.Canceled):
		m.observe("canceled", elapsed)
		return "", ctx.Err()
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)):
		m.observe("timeout", elapsed)
		slog.Warn("remote model call timed out", "provider", m.client.GetName(), "timeout", m.timeout)
		return "", fmt.Errorf("%w after %s: %v", internal.ErrTimeout, m.timeout, err)
	case err != nil:
		m.observe("error", elapsed)
		return "", &internal.RemoteProviderError{Provider: m.client.GetName(), Err: err}
	case strings.TrimSpace(text) == "":
		m.observe("empty", elapsed)
		return "", internal.ErrNoResponseContent
	}

	m.observe("ok", elapsed)
	slog.Debug("remote model call finished", "provider", m.client.GetName(), "duration", elapsed, "bytes", len(text))
	return text, nil
}

func (m *Manager) observe(outcome string, d time.Duration) {
	if m.observer != nil {
		m.observer.ObserveRemoteCall(m.client.GetName(), outcome, d)
	}
}

// GetClientInfo 返回后端名称
func (m *Manager) GetClientInfo() string {
	return m.client.GetName()
}

func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// TestConnection 发送一条简单 prompt 检查后端是否可用
func (m *Manager) TestConnection(ctx context.Context) error {
	fmt.Println("🔍 测试 AI 客户端连接...")

	if _, err := m.Complete(ctx, `Reply with the JSON object {"status": "OK"}.`); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	fmt.Println("✅ AI 客户端连接成功!")
	return nil
}
