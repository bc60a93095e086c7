package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/admi-n/nullshot-auditor/src/internal"
	"github.com/admi-n/nullshot-auditor/src/internal/report"
)

type fixFlags struct {
	vulnIDs []string
	all     bool
	write   bool
	jsonOut bool
	noSave  bool
	outDir  string
}

func newFixCmd(a *app) *cobra.Command {
	f := &fixFlags{}
	c := &cobra.Command{
		Use:   "fix <file.sol>",
		Short: "审计文件并为发现的漏洞生成修复",
		Example: `  nullshot fix Bank.sol --all
  nullshot fix Bank.sol --vuln vuln-1 --write`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFix(cmd, args[0], f)
		},
	}
	c.Flags().StringSliceVar(&f.vulnIDs, "vuln", nil, "要修复的漏洞 id，可重复")
	c.Flags().BoolVar(&f.all, "all", false, "一次修复全部漏洞")
	c.Flags().BoolVar(&f.write, "write", false, "把修复后的代码写回原文件")
	c.Flags().BoolVar(&f.jsonOut, "json", false, "以 JSON 输出修复结果")
	c.Flags().BoolVar(&f.noSave, "no-save", false, "不写入 markdown 修复报告")
	c.Flags().StringVar(&f.outDir, "out", "", "报告目录（默认使用配置 report.dir）")
	c.MarkFlagsMutuallyExclusive("vuln", "all")
	c.MarkFlagsOneRequired("vuln", "all")
	return c
}

func (a *app) runFix(cmd *cobra.Command, path string, f *fixFlags) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取合约文件失败: %w", err)
	}
	code := string(raw)

	ctx := cmd.Context()
	d, err := a.wire(ctx, wireOptions{history: true})
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.svc.Audit(ctx, path, code)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(res.Report.Vulnerabilities) == 0 {
		if f.jsonOut {
			return writeJSON(out, []internal.FixSuggestion{})
		}
		fmt.Fprintln(out, "✅ 未发现漏洞，无需修复")
		return nil
	}

	target, err := selectTarget(res.Report.Vulnerabilities, f)
	if err != nil {
		return err
	}

	fix, err := d.svc.Fix(ctx, code, target)
	if err != nil {
		return err
	}

	if f.jsonOut {
		if err := writeJSON(out, fix); err != nil {
			return err
		}
	} else {
		newPrinter(out).fix(fix)
	}

	if f.write {
		if err := os.WriteFile(path, []byte(fix.FixedCode), 0o644); err != nil {
			return fmt.Errorf("写回文件失败: %w", err)
		}
		if !f.jsonOut {
			fmt.Fprintf(out, "💾 已写入 %s\n", path)
		}
	}

	if !f.noSave {
		rep := report.NewReport("Solidity Fix 修复报告", d.provider)
		rep.AddEntry(report.Entry{Subject: path, Report: res.Report, Verdict: res.Verdict, Fix: fix})
		saved, err := a.saveReport(rep, f.outDir)
		if err != nil {
			return err
		}
		if !f.jsonOut {
			fmt.Fprintf(out, "📝 报告已保存: %s\n", saved)
		}
	}
	return nil
}

// selectTarget 根据 --all/--vuln 选出修复目标；只选中一个漏洞时使用单个修复
func selectTarget(found []internal.Vulnerability, f *fixFlags) (internal.FixTarget, error) {
	if f.all {
		return internal.FixTarget{Vulnerabilities: found}, nil
	}

	byID := make(map[string]internal.Vulnerability, len(found))
	for _, v := range found {
		byID[v.ID] = v
	}
	var picked []internal.Vulnerability
	for _, id := range f.vulnIDs {
		v, ok := byID[id]
		if !ok {
			return internal.FixTarget{}, fmt.Errorf("%w: vulnerability %q not found in audit report", internal.ErrInvalidSubmission, id)
		}
		picked = append(picked, v)
	}
	if len(picked) == 1 {
		return internal.FixTarget{Vulnerability: &picked[0]}, nil
	}
	return internal.FixTarget{Vulnerabilities: picked}, nil
}
