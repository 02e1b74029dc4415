package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"github.com/llehouerou/cloudwaves/internal/account"
	"github.com/llehouerou/cloudwaves/internal/cache"
	"github.com/llehouerou/cloudwaves/internal/catalog"
	"github.com/llehouerou/cloudwaves/internal/config"
	"github.com/llehouerou/cloudwaves/internal/logging"
	"github.com/llehouerou/cloudwaves/internal/mpris"
	"github.com/llehouerou/cloudwaves/internal/notify"
	"github.com/llehouerou/cloudwaves/internal/playback"
	"github.com/llehouerou/cloudwaves/internal/player"
	"github.com/llehouerou/cloudwaves/internal/queue"
	"github.com/llehouerou/cloudwaves/internal/ui"
)

const (
	// verifyTimeout bounds the cache integrity pass on exit.
	verifyTimeout  = 10 * time.Second
	restoreTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog, err := logging.Setup(cfg.GetLoggingConfig())
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if opts.accountCommand() {
		return manageAccount(ctx, cfg, logger, opts, os.Stdout)
	}

	// Audio backends write to stderr and would corrupt the TUI.
	restoreStderr, err := logging.CaptureStderr(logger)
	if err != nil {
		logger.Warn("stderr capture unavailable", "error", err)
		restoreStderr = func() {}
	}
	defer restoreStderr()

	if err := start(ctx, cfg, logger, opts); err != nil {
		logger.Error("exit", "error", err)
		return err
	}
	return nil
}

func start(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts options) error {
	rem, err := newRemote(cfg)
	if err != nil {
		return err
	}

	accountFile, err := account.DefaultFile()
	if err != nil {
		return fmt.Errorf("account file: %w", err)
	}
	accounts := account.NewManager(accountFile, rem, cfg.AutoCheck, logger)
	defer accounts.Flush()

	quality, _ := cfg.GetQuality()
	capacity, _ := cfg.GetCacheCapacity()
	audioCache, err := cache.Open(ctx, cache.Options{
		Dir:      cfg.GetCacheDir(),
		Quality:  quality,
		Capacity: capacity,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() {
		if err := audioCache.Close(); err != nil {
			logger.Warn("close cache", "error", err)
		}
	}()

	boundary, _ := cfg.GetBoundary()
	q := queue.New(boundary)
	defer q.Close()

	session := player.NewBeepSession(logger)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start audio: %w", err)
	}
	session.SetVolume(cfg.GetVolume())
	defer session.Quit()

	svc := playback.New(q, session, audioCache, rem, accounts, playback.Options{Logger: logger})
	defer svc.Close()
	go svc.Run(ctx)

	// The startup playlist needs the restored session.
	go func() {
		restoreCtx, cancel := context.WithTimeout(ctx, restoreTimeout)
		defer cancel()
		if err := accounts.Restore(restoreCtx); err != nil {
			logger.Warn("automatic sign-in failed", "error", err)
		}
		if opts.playlist == "" {
			return
		}
		if err := svc.PlayPlaylist(ctx, opts.playlist); err != nil {
			logger.Warn("startup playlist failed", "playlist", opts.playlist, "error", err)
		}
	}()

	if cfg.NotificationsEnabled() {
		notifier, err := notify.New()
		if err != nil {
			logger.Warn("notifications unavailable", "error", err)
		} else {
			go notify.NewReporter(notifier, logger).Watch(ctx, svc.Subscribe())
		}
	}

	adapter, err := mpris.New(ctx, svc)
	if err != nil {
		logger.Warn("mpris unavailable", "error", err)
	} else {
		defer adapter.Close()
	}

	model := ui.New(ctx, svc, audioCache, rem)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}

	session.Quit()
	verify(audioCache, logger)
	return nil
}

func newRemote(cfg *config.Config) (catalog.Service, error) {
	api := cfg.GetAPIConfig()
	if api.Offline {
		return catalog.NewMemory(), nil
	}
	timeout, err := api.GetTimeout()
	if err != nil {
		return nil, err
	}
	return catalog.NewClientWithTimeout(api.BaseURL, timeout), nil
}

// verify checks every cached blob on exit. It is best effort: a timeout
// leaves the rest for the next run.
func verify(c *cache.Manager, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	removed, err := c.VerifyAll(ctx)
	if err != nil {
		logger.Warn("cache verify incomplete", "error", err)
	}
	if removed > 0 {
		logger.Info("cache verify removed corrupt entries", "count", removed)
	}
}
