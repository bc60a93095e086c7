package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/admi-n/nullshot-auditor/src/internal"
	"github.com/admi-n/nullshot-auditor/src/internal/ai/parser"
	"github.com/admi-n/nullshot-auditor/src/strategy/prompts"
)

// Remote 基于远程模型的 Auditor、Fixer、Generator
type Remote struct {
	llm     Completer
	catalog prompts.Catalog
	now     func() time.Time
}

// NewRemote 使用注入的模型调用和 prompt 目录创建远程 provider
func NewRemote(llm Completer, catalog prompts.Catalog) *Remote {
	return &Remote{llm: llm, catalog: catalog, now: time.Now}
}

// complete 渲染 prompt、调用模型并提取 JSON
func (r *Remote) complete(ctx context.Context, name string, data prompts.Data) ([]byte, error) {
	prompt, err := r.catalog.Build(name, data)
	if err != nil {
		return nil, err
	}

	text, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, internal.ErrNoResponseContent
	}
	return parser.Parse(text)
}

// Audit 实现 Auditor；缺失的 id 与 timestamp 在这里补齐
func (r *Remote) Audit(ctx context.Context, code string) (*internal.AuditReport, error) {
	raw, err := r.complete(ctx, prompts.Audit, prompts.Data{Code: code})
	if err != nil {
		return nil, fmt.Errorf("remote audit: %w", err)
	}
	report, err := parser.DecodeAuditReport(raw)
	if err != nil {
		return nil, fmt.Errorf("remote audit: %w", err)
	}

	if report.ID == "" {
		report.ID = newReportID()
	}
	if report.Timestamp == 0 {
		report.Timestamp = r.now().UnixMilli()
	}
	report.Source = internal.SourceRemote
	report.CodeHash = CodeHash(code)
	return report, nil
}

// Fix 实现 Fixer
func (r *Remote) Fix(ctx context.Context, code string, v internal.Vulnerability) (*internal.FixSuggestion, error) {
	raw, err := r.complete(ctx, prompts.Fix, prompts.Data{Code: code, Vulnerability: &v})
	if err != nil {
		return nil, fmt.Errorf("remote fix %s: %w", v.ID, err)
	}
	fixed, explanation, err := parser.DecodeFix(raw)
	if err != nil {
		return nil, fmt.Errorf("remote fix %s: %w", v.ID, err)
	}

	return &internal.FixSuggestion{
		VulnerabilityID: v.ID,
		OriginalCode:    code,
		FixedCode:       fixed,
		Explanation:     explanation,
		Source:          internal.SourceRemote,
	}, nil
}

// FixAll 用一个组合 prompt 覆盖所有漏洞，只产生一个修复结果
func (r *Remote) FixAll(ctx context.Context, code string, vs []internal.Vulnerability) (*internal.FixSuggestion, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("%w: no vulnerabilities to fix", internal.ErrInvalidSubmission)
	}

	raw, err := r.complete(ctx, prompts.FixAll, prompts.Data{Code: code, Vulnerabilities: vs})
	if err != nil {
		return nil, fmt.Errorf("remote fix-all: %w", err)
	}
	fixed, explanation, err := parser.DecodeFix(raw)
	if err != nil {
		return nil, fmt.Errorf("remote fix-all: %w", err)
	}

	return &internal.FixSuggestion{
		VulnerabilityID: internal.FixAllID,
		OriginalCode:    code,
		FixedCode:       fixed,
		Explanation:     explanation,
		Source:          internal.SourceRemote,
	}, nil
}

// Generate 实现 Generator
func (r *Remote) Generate(ctx context.Context, prompt string) (*internal.GeneratedContract, error) {
	raw, err := r.complete(ctx, prompts.Generate, prompts.Data{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("remote generate: %w", err)
	}
	out, err := parser.DecodeGenerated(raw)
	if err != nil {
		return nil, fmt.Errorf("remote generate: %w", err)
	}
	out.Source = internal.SourceRemote
	return out, nil
}
