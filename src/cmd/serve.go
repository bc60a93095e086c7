package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/admi-n/nullshot-auditor/src/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API（/audit /fix /generate /reports /metrics）",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := a.wire(ctx, wireOptions{history: true, fetch: true, notify: true})
			if err != nil {
				return err
			}
			defer d.Close()

			addr := a.v.GetString("server.addr")
			fmt.Fprintf(cmd.OutOrStdout(), "🚀 NullShot API 监听 %s（%s）\n", addr, d.provider)
			return server.New(d.svc, server.Config{
				Addr:     addr,
				Provider: d.provider,
				Metrics:  d.metrics,
			}).Run(ctx)
		},
	}
	c.Flags().String("addr", "", "监听地址（默认使用配置 server.addr）")
	c.PreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			return a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
		}
		return nil
	}
	return c
}
