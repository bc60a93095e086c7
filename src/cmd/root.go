// Package cmd 是 nullshot 命令行入口
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/admi-n/nullshot-auditor/src/config"
	"github.com/admi-n/nullshot-auditor/src/internal/telemetry"
)

// app 保存一次命令执行期间共享的状态
type app struct {
	cfgFile  string
	v        *viper.Viper
	settings *config.Settings
	logs     io.Closer
}

// 持久化 flag 与配置键的对应关系
var flagKeys = map[string]string{
	"verbose":  "verbose",
	"log-file": "log_file",
	"provider": "ai.provider",
	"model":    "ai.model",
	"fallback": "ai.fallback",
	"timeout":  "ai.timeout",
	"proxy":    "ai.proxy",
}

// NewRootCmd 创建完整的命令树
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "nullshot",
		Short: "🔍 NullShot - Solidity 智能合约安全审计工具",
		Long: `NullShot 审计 Solidity 合约、生成修复建议并根据描述生成合约。
配置了远程模型时使用模型分析，模型不可用时降级为内置的启发式规则。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.Root().PersistentFlags())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logs != nil {
				a.logs.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "配置文件路径（默认 ./nullshot.yaml）")
	pf.BoolP("verbose", "v", false, "输出调试日志")
	pf.String("log-file", "", "同时把日志写入该文件")
	pf.String("provider", "", "模型后端: gemini | openai | deepseek | local-llm | heuristic")
	pf.String("model", "", "覆盖配置中的模型名称")
	pf.Bool("fallback", true, "远程模型失败时使用启发式结果")
	pf.Duration("timeout", 0, "单次远程调用超时（例如 90s）")
	pf.String("proxy", "", "HTTP 代理，例如 http://127.0.0.1:7897")

	root.AddCommand(
		newAuditCmd(a),
		newFixCmd(a),
		newGenerateCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
		newPingCmd(a),
	)
	return root
}

// load 读取配置，把命令行 flag 绑定到 viper 后解码
func (a *app) load(flags *pflag.FlagSet) error {
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	s, err := config.Decode(v)
	if err != nil {
		return err
	}
	a.v = v
	a.settings = s
	a.logs = telemetry.InitLogger(s.Verbose, s.LogFile)

	telemetry.LogDebug("configuration loaded", "config", v.ConfigFileUsed(), "provider", s.AI.Provider)
	return nil
}

// Run 执行命令行
func Run() error {
	return NewRootCmd().Execute()
}

// PrintFatal 将错误打印到 stderr 并以非零代码退出。
func PrintFatal(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "错误:", err)
	os.Exit(1)
}
