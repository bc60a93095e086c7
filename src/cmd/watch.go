package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/admi-n/nullshot-auditor/src/internal/telemetry"
)

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	c := &cobra.Command{
		Use:   "watch <目录或文件>",
		Short: "监听 .sol 文件变化并自动重新审计",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := a.wire(ctx, wireOptions{history: true, notify: true})
			if err != nil {
				return err
			}
			defer d.Close()

			w, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("watch init failed: %w", err)
			}
			defer w.Close()
			if err := addWatchRecursive(w, args[0]); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := newPrinter(out)
			fmt.Fprintf(out, "👀 正在监听 %s（%s），Ctrl+C 退出\n", args[0], d.provider)

			var mu sync.Mutex // 串行输出
			watchSolidity(ctx, w, debounce, func(path string) {
				code, err := os.ReadFile(path)
				if err != nil {
					telemetry.LogWarn("failed to read changed file", "path", path, "error", err)
					return
				}
				res, err := d.svc.Audit(ctx, path, string(code))

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					p.failure(path, err)
					return
				}
				p.audit(path, res.Report, res.Verdict)
			})
			return nil
		},
	}
	c.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "同一文件连续修改的合并间隔")
	return c
}

// addWatchRecursive 监听 root 下所有目录，root 是文件时只监听该文件
func addWatchRecursive(w *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "lib") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// watchSolidity 处理事件直到 ctx 结束。同一文件在 debounce 内的多次修改只触发一次 onChange
func watchSolidity(ctx context.Context, w *fsnotify.Watcher, debounce time.Duration, onChange func(path string)) {
	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
		wg     sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addWatchRecursive(w, ev.Name); err != nil {
						telemetry.LogWarn("failed to watch new directory", "path", ev.Name, "error", err)
					}
					continue
				}
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".sol") {
				continue
			}

			path := ev.Name
			mu.Lock()
			if t, ok := timers[path]; ok && t.Stop() {
				wg.Done()
			}
			wg.Add(1)
			var t *time.Timer
			t = time.AfterFunc(debounce, func() {
				defer wg.Done()
				mu.Lock()
				if timers[path] == t {
					delete(timers, path)
				}
				mu.Unlock()
				onChange(path)
			})
			timers[path] = t
			mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			telemetry.LogWarn("watch error", "error", err)
		}
	}
}
