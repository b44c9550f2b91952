// Package app wires configuration, storage, the crontab and the outbound
// clients into the service layer for both the HTTP server and one-shot
// crontab invocations.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"controlling_hottub/internal/clients"
	"controlling_hottub/internal/config"
	"controlling_hottub/internal/crontab"
	"controlling_hottub/internal/handlers"
	"controlling_hottub/internal/logger"
	"controlling_hottub/internal/repository"
	"controlling_hottub/internal/repository/db"
	"controlling_hottub/internal/schedule"
	"controlling_hottub/internal/server"
	"controlling_hottub/internal/service"
	"controlling_hottub/internal/timezone"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired services and the resources they own.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Timezone *timezone.Resolver
	Services *service.Service

	closers []func() error
}

// New loads configuration from configPath (empty means configs/config.yml)
// and wires every collaborator.
func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.Get(cfg.LogLevel)
	a := &App{Config: cfg, Log: log}

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(cfg.Storage.LogsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}

	forensic, closeForensic, err := logger.NewForensic(cfg.Storage.ForensicLog())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeForensic)

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init sqlite: %w", err)
	}
	a.closers = append(a.closers, sqlDB.Close)

	a.Timezone = timezone.NewWith(cfg.Timezone.DescriptorFile, cfg.Timezone.LocaltimeLink, os.LookupEnv)
	log.Infow("host timezone resolved", "tz", a.Timezone.SystemTimezone(), "source", a.Timezone.Source())

	commands, err := commandBuilder(cfg, configPath)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Services = service.NewService(service.Deps{
		Repos:    repository.NewRepository(sqlDB, fs, cfg.Storage.JobsDir(), cfg.Storage.StateDir()),
		Config:   cfg,
		Timezone: a.Timezone,
		Cron:     newMutator(cfg, fs, log, forensic),
		Trigger:  newWebhook(cfg, log),
		Monitor:  newMonitor(cfg),
		Commands: commands,
		Fs:       fs,
		Log:      log,
	})
	return a, nil
}

func newMutator(cfg *config.Config, fs afero.Fs, log, forensic *logger.Logger) *crontab.Mutator {
	opts := crontab.Options{
		Fs:         fs,
		StateDir:   cfg.Storage.StateDir(),
		MaxBackups: cfg.Cron.MaxBackups,
		Log:        log,
		Forensic:   forensic,
	}
	if cfg.Cron.Backup {
		opts.BackupDir = cfg.Storage.BackupDir()
	}
	return crontab.NewMutator(&crontab.CommandBackend{}, opts)
}

func newWebhook(cfg *config.Config, log *logger.Logger) *clients.Webhook {
	return clients.NewWebhook(clients.WebhookOptions{
		BaseURL:    cfg.Equipment.WebhookURL,
		Key:        cfg.Equipment.WebhookKey,
		DryRun:     cfg.Equipment.DryRun,
		RatePerSec: cfg.Equipment.RatePerSec,
		Timeout:    cfg.Equipment.RequestTimeout,
		Log:        log,
	})
}

// newMonitor returns nil (as an interface) when monitoring is off.
func newMonitor(cfg *config.Config) service.Monitor {
	if !cfg.Monitor.Enabled || cfg.Monitor.APIKey == "" {
		return nil
	}
	return clients.NewMonitor(cfg.Monitor.APIURL, cfg.Monitor.APIKey, nil)
}

// commandBuilder pins the entry commands to absolute paths; crontab runs
// them from the user's home directory.
func commandBuilder(cfg *config.Config, configPath string) (schedule.CommandBuilder, error) {
	b := schedule.CommandBuilder{Binary: cfg.Cron.Binary, LogFile: cfg.Storage.JobLog()}
	var err error
	if b.WorkDir, err = filepath.Abs(cfg.Cron.WorkDir); err != nil {
		return b, fmt.Errorf("resolve cron.work_dir: %w", err)
	}
	if configPath != "" {
		if b.ConfigFile, err = filepath.Abs(configPath); err != nil {
			return b, fmt.Errorf("resolve config path: %w", err)
		}
	}
	if !filepath.IsAbs(b.LogFile) {
		b.LogFile = filepath.Join(b.WorkDir, b.LogFile)
	}
	return b, nil
}

// Serve runs the HTTP API until ctx is cancelled. The simulator runs alongside
// when enabled, and the daily characteristics entry is installed first.
func (a *App) Serve(ctx context.Context) error {
	if installed, err := a.Services.EnsureRegenerationCron(ctx); err != nil {
		a.Log.Errorw("ensure regeneration entry failed", "err", err)
	} else if installed {
		a.Log.Infow("characteristics regeneration entry installed", "at", a.Config.Cron.RegenerateAt)
	}

	bgCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.Config.Simulator.Enabled {
		a.Log.Infow("simulator enabled", "tick", a.Config.Simulator.Tick)
		go a.Services.Simulator.Run(bgCtx, a.Config.Simulator.Tick)
	}

	srv := server.New(a.Config.Port, handlers.NewHandler(a.Services, a.Log).InitRoutes())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()
	a.Log.Infow("http server listening", "addr", srv.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Log.Infow("shutting down server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return <-errCh
}

// Close releases the database and log files in reverse order of opening.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
