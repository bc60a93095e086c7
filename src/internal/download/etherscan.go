package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/admi-n/nullshot-auditor/src/internal/ai/client"
)

// EtherscanConfig Etherscan API 配置
type EtherscanConfig struct {
	APIKey  string
	BaseURL string // 默认 https://api.etherscan.io/v2
	ChainID int64  // 默认 1（以太坊主网）
	Proxy   string // 可选的 HTTP 代理 URL（例如 http://127.0.0.1:7897）
	// RequestsPerSecond 免费额度为 5
	RequestsPerSecond int
}

// SourceInfo 已验证合约的源码信息
type SourceInfo struct {
	ContractName    string
	CompilerVersion string
	SourceCode      string
	Proxy           bool
	Implementation  string
}

// etherscanResponse Etherscan API 响应结构
type etherscanResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type etherscanSource struct {
	SourceCode      string `json:"SourceCode"`
	ContractName    string `json:"ContractName"`
	CompilerVersion string `json:"CompilerVersion"`
	Proxy           string `json:"Proxy"`
	Implementation  string `json:"Implementation"`
}

// EtherscanClient 查询已验证源码
type EtherscanClient struct {
	cfg        EtherscanConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    time.Duration
}

// NewEtherscanClient 创建客户端，APIKey 不能为空
func NewEtherscanClient(cfg EtherscanConfig) (*EtherscanClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("etherscan API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.etherscan.io/v2"
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = 1
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}

	hc, err := client.NewHTTPClient(cfg.Proxy, 20*time.Second)
	if err != nil {
		return nil, fmt.Errorf("解析 Etherscan proxy 失败: %w", err)
	}

	return &EtherscanClient{
		cfg:        cfg,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		backoff:    500 * time.Millisecond,
	}, nil
}

func (c *EtherscanClient) sourceURL(address string) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("解析 Etherscan BaseURL 失败: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api"

	q := url.Values{}
	q.Set("chainid", strconv.FormatInt(c.cfg.ChainID, 10))
	q.Set("module", "contract")
	q.Set("action", "getsourcecode")
	q.Set("address", address)
	q.Set("apikey", strings.TrimSpace(c.cfg.APIKey))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// GetContractSource 获取合约源码。合约未验证时 verified 为 false 且 err 为 nil。
// 网络抖动、EOF 和超时会重试，最多 3 次
func (c *EtherscanClient) GetContractSource(ctx context.Context, address string) (info SourceInfo, verified bool, err error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return SourceInfo{}, false, fmt.Errorf("空的地址传入 GetContractSource")
	}
	finalURL, err := c.sourceURL(address)
	if err != nil {
		return SourceInfo{}, false, err
	}

	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return SourceInfo{}, false, err
		}

		body, status, err := c.get(ctx, finalURL)
		if err != nil {
			lastErr = err
			if isTemporaryNetErr(err) && attempt < maxAttempts {
				if serr := sleepCtx(ctx, time.Duration(attempt)*c.backoff); serr != nil {
					return SourceInfo{}, false, serr
				}
				continue
			}
			return SourceInfo{}, false, fmt.Errorf("请求 Etherscan API 失败: %w", err)
		}

		if status != http.StatusOK {
			snippet := string(body)
			if len(snippet) > 1024 {
				snippet = snippet[:1024]
			}
			return SourceInfo{}, false, fmt.Errorf("etherscan 返回非 200 状态: %d, body: %s", status, snippet)
		}

		var resp etherscanResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return SourceInfo{}, false, fmt.Errorf("解析 Etherscan JSON 失败: %w", err)
		}
		// status != "1" 时 result 是一段错误文本
		if resp.Status != "1" {
			var msg string
			_ = json.Unmarshal(resp.Result, &msg)
			if isRateLimitMessage(msg) && attempt < maxAttempts {
				lastErr = fmt.Errorf("etherscan rate limited: %s", msg)
				if serr := sleepCtx(ctx, time.Duration(attempt)*c.backoff); serr != nil {
					return SourceInfo{}, false, serr
				}
				continue
			}
			if msg != "" && !strings.EqualFold(resp.Message, "OK") {
				return SourceInfo{}, false, fmt.Errorf("etherscan error: %s: %s", resp.Message, msg)
			}
			return SourceInfo{}, false, nil
		}

		var results []etherscanSource
		if err := json.Unmarshal(resp.Result, &results); err != nil {
			return SourceInfo{}, false, fmt.Errorf("解析 Etherscan result 失败: %w", err)
		}
		if len(results) == 0 || strings.TrimSpace(results[0].SourceCode) == "" {
			return SourceInfo{}, false, nil
		}

		res := results[0]
		code, err := flattenSource(res.SourceCode)
		if err != nil {
			return SourceInfo{}, false, err
		}
		return SourceInfo{
			ContractName:    res.ContractName,
			CompilerVersion: res.CompilerVersion,
			SourceCode:      code,
			Proxy:           res.Proxy == "1",
			Implementation:  res.Implementation,
		}, true, nil
	}

	return SourceInfo{}, false, fmt.Errorf("请求 Etherscan 多次失败: %w", lastErr)
}

func (c *EtherscanClient) get(ctx context.Context, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", "nullshot-auditor/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// flattenSource 处理多文件合约：Etherscan 用 {{...}} 包裹 standard-json 输入，
// 或直接给出 {path: {content}} 映射。多个文件按路径排序拼接
func flattenSource(src string) (string, error) {
	trimmed := strings.TrimSpace(src)
	if !strings.HasPrefix(trimmed, "{") {
		return src, nil
	}
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		trimmed = trimmed[1 : len(trimmed)-1]
	}

	type file struct {
		Content string `json:"content"`
	}
	var std struct {
		Sources map[string]file `json:"sources"`
	}
	sources := map[string]file{}
	if err := json.Unmarshal([]byte(trimmed), &std); err == nil && len(std.Sources) > 0 {
		sources = std.Sources
	} else if err := json.Unmarshal([]byte(trimmed), &sources); err != nil || len(sources) == 0 {
		return "", fmt.Errorf("无法解析多文件源码: %v", err)
	}

	paths := make([]string, 0, len(sources))
	for p := range sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var sb strings.Builder
	for i, p := range paths {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("// File: " + p + "\n")
		sb.WriteString(sources[p].Content)
	}
	return sb.String(), nil
}

func isRateLimitMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "rate limit")
}

// isTemporaryNetErr 判断是否为可重试的网络错误
func isTemporaryNetErr(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
