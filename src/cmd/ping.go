package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/admi-n/nullshot-auditor/src/internal/ai"
)

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "检查远程模型是否可用",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.settings
			if !s.AI.UsesRemote() {
				fmt.Fprintln(cmd.OutOrStdout(), "ℹ️  当前使用启发式规则，不需要远程模型")
				return nil
			}
			if err := ai.ValidateProvider(s.AI.Provider); err != nil {
				return err
			}

			mgr, err := newManager(s, nil)
			if err != nil {
				return err
			}
			defer mgr.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "🤖 %s\n", mgr.GetClientInfo())
			return mgr.TestConnection(cmd.Context())
		},
	}
}
