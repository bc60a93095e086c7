package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		outFile string
		jsonOut bool
	)
	c := &cobra.Command{
		Use:     "generate <描述>",
		Short:   "根据自然语言描述生成 Solidity 合约",
		Example: `  nullshot generate "an ERC20 token with a capped supply" --out Token.sol`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.wire(ctx, wireOptions{})
			if err != nil {
				return err
			}
			defer d.Close()

			g, err := d.svc.Generate(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, g)
			}
			if outFile != "" {
				if err := os.WriteFile(outFile, []byte(g.Code), 0o644); err != nil {
					return fmt.Errorf("写入文件失败: %w", err)
				}
				fmt.Fprintf(out, "💾 已生成 %s（%s）\n", outFile, g.Source)
			}

			p := newPrinter(out)
			p.markdown("### ✨ " + g.Explanation + "\n\n```solidity\n" + strings.TrimRight(g.Code, "\n") + "\n```\n")
			return nil
		},
	}
	c.Flags().StringVarP(&outFile, "out", "o", "", "把生成的合约写入文件")
	c.Flags().BoolVar(&jsonOut, "json", false, "以 JSON 输出")
	return c
}
