// Package core 是审计流程的编排层：校验输入并委派给注入的 provider。
// 编排层本身不做降级，降级策略由 handler 决定。
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/admi-n/nullshot-auditor/src/internal"
	"github.com/admi-n/nullshot-auditor/src/internal/provider"
)

// Orchestrator 持有一组 provider，不保存任何跨请求状态
type Orchestrator struct {
	auditor   provider.Auditor
	fixer     provider.Fixer
	generator provider.Generator
}

// NewOrchestrator 创建编排器，generator 可以为 nil
func NewOrchestrator(auditor provider.Auditor, fixer provider.Fixer, generator provider.Generator) *Orchestrator {
	return &Orchestrator{auditor: auditor, fixer: fixer, generator: generator}
}

// StartAudit 对源码发起审计，空白源码直接返回 ErrInvalidSubmission
func (o *Orchestrator) StartAudit(ctx context.Context, code string) (*internal.AuditReport, error) {
	if strings.TrimSpace(code) == "" {
		return nil, internal.ErrInvalidSubmission
	}
	return o.auditor.Audit(ctx, code)
}

// GenerateFix 按目标类型调用单个修复或批量修复
func (o *Orchestrator) GenerateFix(ctx context.Context, code string, target internal.FixTarget) (*internal.FixSuggestion, error) {
	if strings.TrimSpace(code) == "" {
		return nil, internal.ErrInvalidSubmission
	}
	if !target.IsBatch() {
		return o.fixer.Fix(ctx, code, *target.Vulnerability)
	}
	if len(target.Vulnerabilities) == 0 {
		return nil, fmt.Errorf("%w: no vulnerabilities to fix", internal.ErrInvalidSubmission)
	}
	return o.fixer.FixAll(ctx, code, target.Vulnerabilities)
}

// Generate 根据描述生成合约
func (o *Orchestrator) Generate(ctx context.Context, prompt string) (*internal.GeneratedContract, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is empty", internal.ErrInvalidSubmission)
	}
	if o.generator == nil {
		return nil, fmt.Errorf("contract generation is not configured")
	}
	return o.generator.Generate(ctx, prompt)
}

// Evaluate 把审计报告归结为结论：
// 存在 High 为 REJECT，存在 Medium 为 WARN，其余为 APPROVE
func Evaluate(report *internal.AuditReport) internal.Verdict {
	switch {
	case report.HasSeverity(internal.SeverityHigh):
		return internal.VerdictReject
	case report.HasSeverity(internal.SeverityMedium):
		return internal.VerdictWarn
	default:
		return internal.VerdictApprove
	}
}
