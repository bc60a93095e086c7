package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/admi-n/nullshot-auditor/src/internal/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	c := &cobra.Command{
		Use:   "history [报告 id]",
		Short: "查看审计历史，指定 id 时显示完整报告",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.wire(ctx, wireOptions{history: true})
			if err != nil {
				return err
			}
			defer d.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				rec, err := d.svc.Report(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(out, rec)
				}
				newPrinter(out).audit(rec.Report.ID, &rec.Report, rec.Verdict)
				for _, fb := range rec.Feedback {
					mark := "👎"
					if fb.Accepted {
						mark = "👍"
					}
					fmt.Fprintf(out, "%s %s %s\n", mark, time.UnixMilli(fb.CreatedAt).Format(time.DateTime), fb.Comment)
				}
				return nil
			}

			recs, err := d.svc.History(ctx, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(out, recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(out, "📭 暂无审计记录")
				return nil
			}
			for _, r := range recs {
				fmt.Fprintf(out, "%s %s  %s  %s  score %3d  %d 个漏洞  %s\n",
					verdictBadge(r.Verdict),
					r.ID,
					r.Report.ID,
					time.UnixMilli(r.Report.Timestamp).Format(time.DateTime),
					r.Report.Score,
					len(r.Report.Vulnerabilities),
					subtle.Render(string(r.Report.Source)))
			}
			return nil
		},
	}
	c.Flags().IntVarP(&limit, "limit", "n", 20, "显示的记录数")
	c.Flags().BoolVar(&jsonOut, "json", false, "以 JSON 输出")
	c.AddCommand(newFeedbackCmd(a))
	return c
}

func newFeedbackCmd(a *app) *cobra.Command {
	var (
		reject  bool
		comment string
	)
	c := &cobra.Command{
		Use:   "feedback <报告 id>",
		Short: "对一份审计报告给出反馈（默认认可）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.wire(ctx, wireOptions{history: true})
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.svc.Feedback(ctx, args[0], store.Feedback{Accepted: !reject, Comment: comment}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ 已记录对 %s 的反馈\n", args[0])
			return nil
		},
	}
	c.Flags().BoolVar(&reject, "reject", false, "标记报告不准确")
	c.Flags().StringVarP(&comment, "comment", "m", "", "反馈内容")
	return c
}
