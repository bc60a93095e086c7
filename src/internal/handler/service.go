// Package handler 是 CLI 和 HTTP 共用的边界服务：
// 决定远程失败时是否降级为启发式结果，并负责历史记录、通知和批量审计。
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/admi-n/nullshot-auditor/src/internal"
	"github.com/admi-n/nullshot-auditor/src/internal/core"
	"github.com/admi-n/nullshot-auditor/src/internal/download"
	"github.com/admi-n/nullshot-auditor/src/internal/notify"
	"github.com/admi-n/nullshot-auditor/src/internal/store"
	"github.com/admi-n/nullshot-auditor/src/internal/telemetry"
)

// Policy 远程失败时的处理策略
type Policy int

const (
	// PolicyPrimary 只使用主编排器，失败原样返回
	PolicyPrimary Policy = iota
	// PolicyFallbackOnError 远程失败时改用启发式编排器
	PolicyFallbackOnError
)

func (p Policy) String() string {
	if p == PolicyFallbackOnError {
		return "fallback-on-error"
	}
	return "primary"
}

var (
	// ErrHistoryDisabled 没有配置历史存储
	ErrHistoryDisabled = errors.New("audit history is not configured")
	// ErrFetchDisabled 没有配置按地址获取源码
	ErrFetchDisabled = errors.New("auditing by address is not configured")
)

// Recorder 业务指标，*telemetry.Metrics 实现了该接口
type Recorder interface {
	ObserveAudit(source, verdict string, score int)
	ObserveFix(source, mode string)
	ObserveFallback(operation string)
}

// Fetcher 按地址获取源码，*download.Fetcher 实现了该接口
type Fetcher interface {
	Fetch(ctx context.Context, address string) (*internal.Contract, error)
}

// Options 服务的可选依赖，零值表示不启用
type Options struct {
	Policy   Policy
	Fallback *core.Orchestrator
	Store    store.Store
	Notifier notify.Notifier
	Metrics  Recorder
	Fetcher  Fetcher
	// Concurrency 批量审计的并发上限，<=0 时为 4
	Concurrency int
}

// Service 边界服务
type Service struct {
	primary *core.Orchestrator
	opts    Options
}

// NewService 创建服务。PolicyFallbackOnError 要求提供 Fallback
func NewService(primary *core.Orchestrator, opts Options) (*Service, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary orchestrator is required")
	}
	if opts.Policy == PolicyFallbackOnError && opts.Fallback == nil {
		return nil, fmt.Errorf("policy %s requires a fallback orchestrator", opts.Policy)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Service{primary: primary, opts: opts}, nil
}

// AuditResult 审计报告加结论
type AuditResult struct {
	Subject string
	Report  *internal.AuditReport
	Verdict internal.Verdict
	// HistoryID 历史记录 id，未保存时为空
	HistoryID string
}

// shouldFallback 只有远程失败才降级，输入错误和调用方取消都不降级
func (s *Service) shouldFallback(err error) bool {
	return s.opts.Policy == PolicyFallbackOnError && internal.IsRemoteFailure(err)
}

func (s *Service) fellBack(op string, err error) {
	telemetry.LogWarn("remote provider failed, using heuristic result", "operation", op, "error", err)
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveFallback(op)
	}
}

// Audit 审计源码。subject 用于日志、历史和通知（文件名或地址）
func (s *Service) Audit(ctx context.Context, subject, code string) (*AuditResult, error) {
	report, err := s.primary.StartAudit(ctx, code)
	if err != nil && s.shouldFallback(err) {
		s.fellBack("audit", err)
		report, err = s.opts.Fallback.StartAudit(ctx, code)
	}
	if err != nil {
		return nil, err
	}

	res := &AuditResult{Subject: subject, Report: report, Verdict: core.Evaluate(report)}
	telemetry.LogInfo("audit completed",
		"subject", subject, "report", report.ID, "source", report.Source,
		"score", report.Score, "verdict", res.Verdict, "vulnerabilities", len(report.Vulnerabilities))

	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveAudit(string(report.Source), string(res.Verdict), report.Score)
	}
	s.record(ctx, res)
	return res, nil
}

// record 保存历史并在 REJECT 时通知，失败只记录日志
func (s *Service) record(ctx context.Context, res *AuditResult) {
	if s.opts.Store != nil {
		id, err := s.opts.Store.Save(ctx, res.Report, res.Verdict)
		if err != nil {
			telemetry.LogError("failed to save audit history", err, "report", res.Report.ID)
		}
		res.HistoryID = id
	}
	if s.opts.Notifier != nil && res.Verdict == internal.VerdictReject {
		if err := s.opts.Notifier.NotifyVerdict(ctx, res.Subject, res.Report, res.Verdict); err != nil {
			telemetry.LogError("failed to send notification", err, "report", res.Report.ID)
		}
	}
}

// AuditAddress 获取已部署合约的源码后审计
func (s *Service) AuditAddress(ctx context.Context, address string) (*AuditResult, *internal.Contract, error) {
	if s.opts.Fetcher == nil {
		return nil, nil, ErrFetchDisabled
	}
	contract, err := s.opts.Fetcher.Fetch(ctx, address)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.Audit(ctx, contract.Address, contract.Code)
	if err != nil {
		return nil, contract, err
	}
	return res, contract, nil
}

// Fix 生成单个或批量修复
func (s *Service) Fix(ctx context.Context, code string, target internal.FixTarget) (*internal.FixSuggestion, error) {
	fix, err := s.primary.GenerateFix(ctx, code, target)
	if err != nil && s.shouldFallback(err) {
		s.fellBack("fix", err)
		fix, err = s.opts.Fallback.GenerateFix(ctx, code, target)
	}
	if err != nil {
		return nil, err
	}

	mode := "single"
	if target.IsBatch() {
		mode = "batch"
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveFix(string(fix.Source), mode)
	}
	return fix, nil
}

// Generate 根据描述生成合约
func (s *Service) Generate(ctx context.Context, prompt string) (*internal.GeneratedContract, error) {
	out, err := s.primary.Generate(ctx, prompt)
	if err != nil && s.shouldFallback(err) {
		s.fellBack("generate", err)
		out, err = s.opts.Fallback.Generate(ctx, prompt)
	}
	return out, err
}

// BatchItem 批量审计的输入
type BatchItem struct {
	Subject string
	Code    string
	Address string // Code 为空且 Address 非空时按地址获取源码
}

// BatchResult 单个输入的结果，Err 非空时 Result 为 nil
type BatchResult struct {
	Subject string
	Result  *AuditResult
	Err     error
}

// AuditBatch 并发审计，结果顺序与输入一致。单个失败不影响其它输入
func (s *Service) AuditBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, item := range items {
		g.Go(func() error {
			results[i] = s.auditItem(gctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) auditItem(ctx context.Context, item BatchItem) BatchResult {
	if strings.TrimSpace(item.Code) == "" && item.Address != "" {
		res, contract, err := s.AuditAddress(ctx, item.Address)
		subject := item.Address
		if contract != nil {
			subject = contract.Address
		}
		return BatchResult{Subject: subject, Result: res, Err: err}
	}
	res, err := s.Audit(ctx, item.Subject, item.Code)
	return BatchResult{Subject: item.Subject, Result: res, Err: err}
}

// History 最近的审计记录
func (s *Service) History(ctx context.Context, limit int) ([]store.Record, error) {
	if s.opts.Store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.opts.Store.List(ctx, limit)
}

// Report 按 id 读取审计记录
func (s *Service) Report(ctx context.Context, id string) (*store.Record, error) {
	if s.opts.Store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.opts.Store.Get(ctx, id)
}

// Feedback 记录用户对审计结果的评价
func (s *Service) Feedback(ctx context.Context, id string, fb store.Feedback) error {
	if s.opts.Store == nil {
		return ErrHistoryDisabled
	}
	return s.opts.Store.SaveFeedback(ctx, id, fb)
}

// IsClientError 判断错误是否由调用方输入引起
func IsClientError(err error) bool {
	return errors.Is(err, internal.ErrInvalidSubmission) ||
		errors.Is(err, download.ErrNotContract) ||
		errors.Is(err, download.ErrUnverified)
}
