package cmd

import (
	"context"
	"fmt"

	"github.com/admi-n/nullshot-auditor/src/config"
	"github.com/admi-n/nullshot-auditor/src/internal/ai"
	"github.com/admi-n/nullshot-auditor/src/internal/core"
	"github.com/admi-n/nullshot-auditor/src/internal/download"
	"github.com/admi-n/nullshot-auditor/src/internal/handler"
	"github.com/admi-n/nullshot-auditor/src/internal/notify"
	"github.com/admi-n/nullshot-auditor/src/internal/provider"
	"github.com/admi-n/nullshot-auditor/src/internal/store"
	"github.com/admi-n/nullshot-auditor/src/internal/telemetry"
	"github.com/admi-n/nullshot-auditor/src/strategy/prompts"
	"github.com/admi-n/nullshot-auditor/src/strategy/templates"
)

// deps 一次命令使用的全部组件
type deps struct {
	svc      *handler.Service
	metrics  *telemetry.Metrics
	manager  *ai.Manager // 使用启发式规则时为 nil
	provider string
	closers  []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// wireOptions 控制哪些可选组件需要连接
type wireOptions struct {
	history bool
	fetch   bool
	notify  bool

	// concurrency 批量审计并发数，0 使用服务默认值
	concurrency int
}

func heuristicOrchestrator() (*core.Orchestrator, error) {
	lib, err := templates.Load()
	if err != nil {
		return nil, fmt.Errorf("加载合约模板失败: %w", err)
	}
	return core.NewOrchestrator(provider.NewHeuristicAuditor(), provider.NewHeuristicFixer(), provider.NewHeuristicGenerator(lib)), nil
}

// newManager 根据配置创建远程模型调用
func newManager(s *config.Settings, observer ai.CallObserver) (*ai.Manager, error) {
	cc, err := s.AI.ClientConfig()
	if err != nil {
		return nil, err
	}
	client, err := ai.NewAIClient(cc)
	if err != nil {
		return nil, err
	}
	return ai.NewManager(client, ai.ManagerConfig{
		Timeout:        cc.Timeout,
		RequestsPerMin: s.AI.RequestsPerMin,
		Observer:       observer,
	}), nil
}

func loadCatalog(path string) (prompts.Catalog, error) {
	if path == "" {
		return prompts.DefaultCatalog()
	}
	return prompts.LoadCatalog(path)
}

// wire 按配置组装服务。可选组件（历史、按地址获取、Slack）初始化失败时只记录警告
func (a *app) wire(ctx context.Context, o wireOptions) (*deps, error) {
	s := a.settings
	d := &deps{metrics: telemetry.NewMetrics(nil), provider: "heuristic"}

	heuristic, err := heuristicOrchestrator()
	if err != nil {
		return nil, err
	}
	opts := handler.Options{Metrics: d.metrics, Concurrency: o.concurrency}
	primary := heuristic

	if s.AI.UsesRemote() {
		mgr, err := newManager(s, d.metrics)
		switch {
		case err != nil && !s.AI.Fallback:
			return nil, err
		case err != nil:
			telemetry.LogWarn("remote provider unavailable, using heuristic analysis", "provider", s.AI.Provider, "error", err)
		default:
			catalog, err := loadCatalog(s.AI.PromptsFile)
			if err != nil {
				mgr.Close()
				return nil, fmt.Errorf("加载 prompt 失败: %w", err)
			}
			remote := provider.NewRemote(mgr, catalog)
			primary = core.NewOrchestrator(remote, remote, remote)
			d.manager = mgr
			d.provider = mgr.GetClientInfo()
			d.closers = append(d.closers, func() { mgr.Close() })
			if s.AI.Fallback {
				opts.Policy = handler.PolicyFallbackOnError
				opts.Fallback = heuristic
			}
		}
	}

	if o.history && s.Database.Enabled {
		if st, err := openStore(ctx, s); err != nil {
			telemetry.LogWarn("audit history disabled", "error", err)
		} else {
			opts.Store = st
			d.closers = append(d.closers, func() { st.Close() })
		}
	}

	if o.fetch {
		if f, closeFn, err := newFetcher(ctx, s); err != nil {
			telemetry.LogWarn("auditing by address disabled", "error", err)
		} else {
			opts.Fetcher = f
			d.closers = append(d.closers, closeFn)
		}
	}

	if o.notify && s.Slack.Enabled {
		if n, err := notify.NewSlackNotifier(s.Slack.Token, s.Slack.Channel); err != nil {
			telemetry.LogWarn("slack notifications disabled", "error", err)
		} else {
			opts.Notifier = n
		}
	}

	svc, err := handler.NewService(primary, opts)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.svc = svc
	return d, nil
}

func openStore(ctx context.Context, s *config.Settings) (*store.SQLStore, error) {
	driver, err := config.DriverName(s.Database.Driver)
	if err != nil {
		return nil, err
	}
	db, err := config.OpenDB(ctx, s.Database.Driver, s.Database.DSN)
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQLStore(ctx, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

// newFetcher 创建按地址获取源码的组件，配置了 RPC 时先检查链上字节码
func newFetcher(ctx context.Context, s *config.Settings) (*download.Fetcher, func(), error) {
	es, err := download.NewEtherscanClient(download.EtherscanConfig{
		APIKey:  s.Etherscan.APIKey,
		BaseURL: s.Etherscan.BaseURL,
		ChainID: s.Etherscan.ChainID,
		Proxy:   s.AI.Proxy,
	})
	if err != nil {
		return nil, nil, err
	}

	if s.RPC.URL == "" {
		return download.NewFetcher(es, nil), func() {}, nil
	}
	ec, err := download.Dial(ctx, s.RPC.URL)
	if err != nil {
		return nil, nil, err
	}
	return download.NewFetcher(es, ec), ec.Close, nil
}
