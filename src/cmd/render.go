package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/admi-n/nullshot-auditor/src/internal"
	"github.com/admi-n/nullshot-auditor/src/internal/report/renderers"
)

var (
	badgeBase = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("0"))

	verdictColors = map[internal.Verdict]lipgloss.Color{
		internal.VerdictApprove: lipgloss.Color("10"),
		internal.VerdictWarn:    lipgloss.Color("11"),
		internal.VerdictReject:  lipgloss.Color("9"),
	}

	subtle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// verdictBadge 终端中的彩色结论标签
func verdictBadge(v internal.Verdict) string {
	c, ok := verdictColors[v]
	if !ok {
		c = lipgloss.Color("7")
	}
	return badgeBase.Background(c).Render(string(v))
}

// printer 负责把结果写到终端，markdown 通过 glamour 渲染
type printer struct {
	out      io.Writer
	md       *renderers.MarkdownRenderer
	renderer *glamour.TermRenderer
}

func newPrinter(out io.Writer) *printer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		r = nil
	}
	return &printer{out: out, md: renderers.NewMarkdownRenderer(), renderer: r}
}

// markdown 渲染失败时输出原文
func (p *printer) markdown(content string) {
	if p.renderer != nil {
		if s, err := p.renderer.Render(content); err == nil {
			fmt.Fprint(p.out, s)
			return
		}
	}
	fmt.Fprintln(p.out, content)
}

func (p *printer) audit(subject string, report *internal.AuditReport, verdict internal.Verdict) {
	fmt.Fprintf(p.out, "%s %s %s\n", verdictBadge(verdict), subject,
		subtle.Render(fmt.Sprintf("score %d · %s", report.Score, report.Source)))
	p.markdown(p.md.RenderAudit(subject, report, verdict))
}

func (p *printer) fix(fix *internal.FixSuggestion) {
	p.markdown(p.md.RenderFix(fix))
}

func (p *printer) failure(subject string, err error) {
	fmt.Fprintf(p.out, "❌ %s: %v\n", subject, err)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
