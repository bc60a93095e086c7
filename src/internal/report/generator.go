package report

import (
	"fmt"
	"strings"

	"github.com/admi-n/nullshot-auditor/src/internal"
	"github.com/admi-n/nullshot-auditor/src/internal/report/renderers"
)

// Generator 报告生成器接口
type Generator interface {
	Generate(report *Report) (string, error)
}

// MarkdownGenerator markdown格式报告生成器
type MarkdownGenerator struct {
	renderer *renderers.MarkdownRenderer
}

// NewMarkdownGenerator 创建markdown报告生成器
func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{renderer: renderers.NewMarkdownRenderer()}
}

// Generate 生成markdown格式报告
func (g *MarkdownGenerator) Generate(report *Report) (string, error) {
	var b strings.Builder

	title := report.Title
	if title == "" {
		title = "Nullshot 审计报告"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if report.Provider != "" {
		fmt.Fprintf(&b, "**模型提供商**: %s\n", report.Provider)
	}
	fmt.Fprintf(&b, "**生成时间**: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))

	verdicts, severities, failed := report.Stats()
	b.WriteString("## 审计统计\n\n")
	fmt.Fprintf(&b, "- **审计对象**: %d\n", len(report.Entries))
	for _, v := range []internal.Verdict{internal.VerdictReject, internal.VerdictWarn, internal.VerdictApprove} {
		if n := verdicts[v]; n > 0 {
			fmt.Fprintf(&b, "- **%s**: %d\n", v, n)
		}
	}
	if failed > 0 {
		fmt.Fprintf(&b, "- **失败**: %d\n", failed)
	}
	b.WriteString("\n")

	if len(severities) > 0 {
		b.WriteString("## 漏洞严重性分布\n\n")
		for _, s := range []internal.Severity{internal.SeverityHigh, internal.SeverityMedium, internal.SeverityLow} {
			if n := severities[s]; n > 0 {
				fmt.Fprintf(&b, "- %s **%s**: %d\n", renderers.SeverityIcon(s), s, n)
			}
		}
		b.WriteString("\n")
	}

	for i, e := range report.Entries {
		if e.Err != nil || e.Report == nil {
			fmt.Fprintf(&b, "## %s\n\n❌ 审计失败: %v\n\n", e.Subject, e.Err)
		} else {
			b.WriteString(g.renderer.RenderAudit(e.Subject, e.Report, e.Verdict))
		}
		if e.Fix != nil {
			b.WriteString(g.renderer.RenderFix(e.Fix))
		}
		if i < len(report.Entries)-1 {
			b.WriteString("---\n\n")
		}
	}
	return b.String(), nil
}
