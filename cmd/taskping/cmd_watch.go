package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/taskping/internal/config"
	"github.com/user/taskping/internal/digest"
	"github.com/user/taskping/internal/engine"
	"github.com/user/taskping/internal/history"
	"github.com/user/taskping/internal/notify"
	"github.com/user/taskping/internal/pricing"
	"github.com/user/taskping/internal/server"
	"github.com/user/taskping/internal/types"
	"github.com/user/taskping/internal/watch"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Start the transcript watcher daemon",
	RunE:  runWatch,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "taskping.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

// buildChannels registers every notification channel the config enables.
// A channel that cannot work on this host is skipped with a warning, not a
// startup failure.
func buildChannels(cfg *config.Config) *notify.Registry {
	registry := notify.NewRegistry()
	if cfg.Notify.Console.Enabled {
		registry.Register(notify.NewConsole(nil))
	}
	if cfg.Notify.Desktop.Enabled {
		desktop := notify.NewDesktop()
		if desktop.Available() {
			registry.Register(desktop)
		} else {
			slog.Warn("desktop notifications unavailable on this host")
		}
	}
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID)
		if err != nil {
			slog.Warn("telegram channel disabled", "error", err)
		} else {
			registry.Register(tg)
		}
	}
	return registry
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Cost resolver and completion engine
	resolver := pricing.NewResolver(pricing.Options{
		DefaultModel:         cfg.Pricing.DefaultModel,
		EstimateMissingUsage: cfg.Pricing.EstimateMissingUsage,
	})
	eng := engine.New(cfg.EngineConfig(), nil, resolver)

	// Notification pipeline
	registry := buildChannels(cfg)
	mutes := notify.NewMuteStore(filepath.Join(cfg.DataDir, "mutes.json"))
	dispatcher := notify.NewDispatcher(registry, mutes, notify.DispatcherOptions{
		MaxConcurrent:    int64(cfg.Notify.MaxConcurrent),
		CompletionSignal: types.CompletionType(cfg.Notify.CompletionSignal),
	})
	dispatcher.Start(context.Background())
	eng.Subscribe(dispatcher.Notify)

	// History store
	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.New(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(context.Background()); err != nil {
			return fmt.Errorf("migrate history store: %w", err)
		}
		eng.Subscribe(history.NewHandle(store).Notify)
	}

	// Digest scheduler
	if cfg.Digest.Enabled {
		if store == nil {
			slog.Warn("digest disabled, history store is off")
		} else {
			sched := digest.New(store, dispatcher, cfg.Digest.Schedule)
			if err := sched.Start(); err != nil {
				return fmt.Errorf("start digest: %w", err)
			}
			defer sched.Stop()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// Transcript watcher
	watcher := watch.New(cfg.Watch.Root, eng, watch.Options{
		ReplayExisting: cfg.Watch.ReplayExisting,
		RescanInterval: cfg.RescanInterval(),
	})
	g.Go(func() error { return watcher.Run(gctx) })

	// Debug HTTP API
	if cfg.HTTP.Enabled {
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: server.New(eng),
		}
		g.Go(func() error {
			slog.Info("debug API listening", "addr", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug API: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			httpServer.Close()
			return nil
		})
	}

	slog.Info("taskping started",
		"watch_root", cfg.Watch.Root,
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"channels", registry.Names(),
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}

		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		cancel()
		if err := g.Wait(); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if cfg.FlushOnExit {
			eng.CompleteAll()
		}
		if !dispatcher.WaitIdle(10 * time.Second) {
			slog.Warn("notification queue not drained before exit")
		}
		dispatcher.Stop()
		return nil
	}
}
