package renderers

import (
	"fmt"
	"strings"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

// MarkdownRenderer markdown渲染器
type MarkdownRenderer struct{}

// NewMarkdownRenderer 创建markdown渲染器
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// RenderVulnerability 渲染单个漏洞
func (r *MarkdownRenderer) RenderVulnerability(v internal.Vulnerability) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s **[%s]** %s", SeverityIcon(v.Severity), v.Severity, v.Title)
	if v.ID != "" {
		fmt.Fprintf(&b, " `%s`", v.ID)
	}
	b.WriteString("\n")
	if loc := lineRange(v); loc != "" {
		fmt.Fprintf(&b, "   **位置**: %s\n", loc)
	}
	fmt.Fprintf(&b, "   **描述**: %s", v.Description)
	if v.Suggestion != "" {
		fmt.Fprintf(&b, "\n   **建议**: %s", v.Suggestion)
	}
	return b.String()
}

func lineRange(v internal.Vulnerability) string {
	switch {
	case v.LineStart == nil:
		return ""
	case v.LineEnd == nil || *v.LineEnd == *v.LineStart:
		return fmt.Sprintf("第 %d 行", *v.LineStart)
	default:
		return fmt.Sprintf("第 %d-%d 行", *v.LineStart, *v.LineEnd)
	}
}

// RenderAudit 渲染一次审计结果，subject 为文件名或合约地址
func (r *MarkdownRenderer) RenderAudit(subject string, report *internal.AuditReport, verdict internal.Verdict) string {
	var result strings.Builder

	result.WriteString(fmt.Sprintf("## %s\n\n", subject))
	result.WriteString(fmt.Sprintf("**结论**: %s %s\n", VerdictIcon(verdict), verdict))
	result.WriteString(fmt.Sprintf("**评分**: %d/100\n", report.Score))
	result.WriteString(fmt.Sprintf("**来源**: %s\n", report.Source))
	if report.CodeHash != "" {
		result.WriteString(fmt.Sprintf("**源码哈希**: `%s`\n", report.CodeHash))
	}
	result.WriteString("\n")

	if report.Summary != "" {
		result.WriteString("### 摘要\n\n")
		result.WriteString(report.Summary + "\n\n")
	}

	if len(report.Vulnerabilities) == 0 {
		result.WriteString("✅ 未发现漏洞\n\n")
		return result.String()
	}

	result.WriteString("### 漏洞详情\n\n")
	for i, v := range report.Vulnerabilities {
		result.WriteString(fmt.Sprintf("%d. %s\n\n", i+1, r.RenderVulnerability(v)))
	}
	return result.String()
}

// RenderFix 渲染修复建议
func (r *MarkdownRenderer) RenderFix(fix *internal.FixSuggestion) string {
	var result strings.Builder
	target := fix.VulnerabilityID
	if target == internal.FixAllID {
		target = "全部漏洞"
	}
	result.WriteString(fmt.Sprintf("### 🔧 修复: %s\n\n", target))
	result.WriteString(fix.Explanation + "\n\n")
	result.WriteString("```solidity\n")
	result.WriteString(strings.TrimRight(fix.FixedCode, "\n"))
	result.WriteString("\n```\n\n")
	return result.String()
}

// SeverityIcon 获取严重等级对应的图标
func SeverityIcon(s internal.Severity) string {
	switch s {
	case internal.SeverityHigh:
		return "🔴"
	case internal.SeverityMedium:
		return "🟡"
	case internal.SeverityLow:
		return "🟢"
	default:
		return "⚪"
	}
}

// VerdictIcon 获取结论对应的图标
func VerdictIcon(v internal.Verdict) string {
	switch v {
	case internal.VerdictReject:
		return "❌"
	case internal.VerdictWarn:
		return "⚠️"
	default:
		return "✅"
	}
}
