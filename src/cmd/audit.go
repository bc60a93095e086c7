package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/admi-n/nullshot-auditor/src/internal"
	"github.com/admi-n/nullshot-auditor/src/internal/handler"
	"github.com/admi-n/nullshot-auditor/src/internal/report"
)

type auditFlags struct {
	addresses   []string
	addressFile string
	jsonOut     bool
	noSave      bool
	outDir      string
	failOn      string
	concurrency int
}

// auditOutput --json 模式下每个对象的输出
type auditOutput struct {
	Subject string                `json:"subject"`
	Report  *internal.AuditReport `json:"report,omitempty"`
	Verdict internal.Verdict      `json:"verdict,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func newAuditCmd(a *app) *cobra.Command {
	f := &auditFlags{}
	c := &cobra.Command{
		Use:   "audit [file.sol ...]",
		Short: "审计本地 Solidity 文件或已部署的合约地址",
		Example: `  nullshot audit contracts/Bank.sol
  nullshot audit --address 0xdAC17F958D2ee523a2206206994597C13D831ec7
  nullshot audit --address-file targets.txt --provider deepseek --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAudit(cmd, args, f)
		},
	}
	c.Flags().StringSliceVar(&f.addresses, "address", nil, "合约地址，可重复或用逗号分隔")
	c.Flags().StringVar(&f.addressFile, "address-file", "", "地址列表文件（每行一个地址，# 开头为注释）")
	c.Flags().BoolVar(&f.jsonOut, "json", false, "以 JSON 输出结果")
	c.Flags().BoolVar(&f.noSave, "no-save", false, "不写入 markdown 报告文件")
	c.Flags().StringVar(&f.outDir, "out", "", "报告目录（默认使用配置 report.dir）")
	c.Flags().StringVar(&f.failOn, "fail-on", "", "出现该结论时以非零状态退出: warn | reject")
	c.Flags().IntVar(&f.concurrency, "concurrency", 4, "并发审计数量")
	return c
}

func (a *app) runAudit(cmd *cobra.Command, args []string, f *auditFlags) error {
	failOn := internal.Verdict(strings.ToUpper(f.failOn))
	if failOn != "" && failOn != internal.VerdictWarn && failOn != internal.VerdictReject {
		return fmt.Errorf("--fail-on must be warn or reject, got %q", f.failOn)
	}

	items, err := collectTargets(args, f)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("nothing to audit: pass .sol files, --address or --address-file")
	}

	ctx := cmd.Context()
	d, err := a.wire(ctx, wireOptions{history: true, fetch: hasAddress(items), notify: true, concurrency: f.concurrency})
	if err != nil {
		return err
	}
	defer d.Close()

	out := cmd.OutOrStdout()
	if !f.jsonOut {
		fmt.Fprintf(out, "🎯 使用 %s 审计 %d 个目标...\n\n", d.provider, len(items))
	}

	results := d.svc.AuditBatch(ctx, items)

	rep := report.NewReport("Solidity 安全审计报告", d.provider)
	p := newPrinter(out)
	outputs := make([]auditOutput, 0, len(results))
	worst := internal.VerdictApprove
	for _, r := range results {
		if r.Err != nil {
			rep.AddEntry(report.Entry{Subject: r.Subject, Err: r.Err})
			outputs = append(outputs, auditOutput{Subject: r.Subject, Error: r.Err.Error()})
			if !f.jsonOut {
				p.failure(r.Subject, r.Err)
			}
			continue
		}
		rep.AddEntry(report.Entry{Subject: r.Subject, Report: r.Result.Report, Verdict: r.Result.Verdict})
		outputs = append(outputs, auditOutput{Subject: r.Subject, Report: r.Result.Report, Verdict: r.Result.Verdict})
		if severity(r.Result.Verdict) > severity(worst) {
			worst = r.Result.Verdict
		}
		if !f.jsonOut {
			p.audit(r.Subject, r.Result.Report, r.Result.Verdict)
		}
	}

	if f.jsonOut {
		if err := writeJSON(out, outputs); err != nil {
			return err
		}
	} else {
		verdicts, _, failed := rep.Stats()
		fmt.Fprintf(out, "📊 %s %d  %s %d  %s %d  ❌ 失败 %d\n",
			verdictBadge(internal.VerdictApprove), verdicts[internal.VerdictApprove],
			verdictBadge(internal.VerdictWarn), verdicts[internal.VerdictWarn],
			verdictBadge(internal.VerdictReject), verdicts[internal.VerdictReject],
			failed)
	}

	if !f.noSave {
		path, err := a.saveReport(rep, f.outDir)
		if err != nil {
			return err
		}
		if !f.jsonOut {
			fmt.Fprintf(out, "📝 报告已保存: %s\n", path)
		}
	}

	if failOn != "" && severity(worst) >= severity(failOn) {
		return fmt.Errorf("audit verdict %s", worst)
	}
	return nil
}

// saveReport 把报告写入 dir，dir 为空时使用配置 report.dir
func (a *app) saveReport(rep *report.Report, dir string) (string, error) {
	if dir == "" {
		dir = a.settings.Report.Dir
	}
	reporter := report.NewReporter(report.NewMarkdownGenerator(), report.NewFileStorage(dir))
	return reporter.GenerateAndSave(rep)
}

func severity(v internal.Verdict) int {
	switch v {
	case internal.VerdictReject:
		return 2
	case internal.VerdictWarn:
		return 1
	default:
		return 0
	}
}

// collectTargets 把文件参数和地址参数转换为批量审计的输入
func collectTargets(files []string, f *auditFlags) ([]handler.BatchItem, error) {
	var items []handler.BatchItem
	for _, path := range files {
		code, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取合约文件失败: %w", err)
		}
		items = append(items, handler.BatchItem{Subject: path, Code: string(code)})
	}

	addrs := f.addresses
	if f.addressFile != "" {
		fromFile, err := handler.ReadAddressFile(f.addressFile)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, fromFile...)
	}
	for _, addr := range addrs {
		if addr = strings.TrimSpace(addr); addr != "" {
			items = append(items, handler.BatchItem{Subject: addr, Address: addr})
		}
	}
	return items, nil
}

func hasAddress(items []handler.BatchItem) bool {
	for _, it := range items {
		if it.Address != "" {
			return true
		}
	}
	return false
}
