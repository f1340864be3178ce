// Command dutyroster runs the on-call schedule client. With no arguments it
// starts the long-running daemon (session watcher, reminder trigger, ops
// endpoints); the assign and clear subcommands perform one batch edit and
// exit.
//
//	dutyroster                                      run the daemon
//	dutyroster assign <date>[,<date>...] <name> <phone>
//	dutyroster clear <date>[,<date>...]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/example/dutyroster/internal/batch"
	"github.com/example/dutyroster/internal/cache"
	"github.com/example/dutyroster/internal/config"
	"github.com/example/dutyroster/internal/duty"
	"github.com/example/dutyroster/internal/logging"
	"github.com/example/dutyroster/internal/mirror"
	"github.com/example/dutyroster/internal/ops"
	"github.com/example/dutyroster/internal/reminder"
	"github.com/example/dutyroster/internal/remote"
	"github.com/example/dutyroster/internal/session"
)

type app struct {
	cfg         config.Config
	logger      *slog.Logger
	sessions    *session.Manager
	client      *remote.Client
	schedule    *cache.Cache
	coordinator *batch.Coordinator
	closeMirror func() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err, "error_kind", duty.ErrorKind(err))
		os.Exit(1)
	}
	defer func() {
		a.schedule.Flush()
		if cerr := a.closeMirror(); cerr != nil {
			logger.Error("failed to close durable mirror", "error", cerr)
		}
	}()

	args := os.Args[1:]
	if len(args) == 0 {
		if err := a.runDaemon(ctx); err != nil {
			logger.Error("daemon exited with error", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := a.runCommand(ctx, args); err != nil {
		logger.Error("command failed", "error", err, "error_kind", duty.ErrorKind(err))
		os.Exit(1)
	}
}

// buildApp wires the components, logs in, and hydrates the cache. The manager
// and client reference each other (token source one way, authenticator the
// other), so the authenticator is bound through a closure resolved after the
// client exists.
func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	snapshots, closeMirror, err := openMirror(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open durable mirror: %w", err)
	}

	var client *remote.Client
	sessions := session.NewManager(session.AuthenticatorFunc(
		func(ctx context.Context, params remote.LoginParams) (remote.LoginResult, error) {
			return client.Login(ctx, params)
		},
	), time.Now, cfg.SessionDefaultTTL, logger)
	client = remote.New(cfg.APIBaseURL, nil, sessions, cfg.HTTPTimeout, logger)

	schedule := cache.New(client, snapshots, logger)
	coordinator := batch.NewCoordinator(client, schedule, sessions, batch.NewSelectionSet(), nil, logger)

	a := &app{
		cfg:         cfg,
		logger:      logger,
		sessions:    sessions,
		client:      client,
		schedule:    schedule,
		coordinator: coordinator,
		closeMirror: closeMirror,
	}

	if _, err := sessions.Login(ctx, cfg.Username, cfg.Password); err != nil {
		_ = closeMirror()
		return nil, fmt.Errorf("initial login failed: %w", err)
	}
	if err := schedule.Hydrate(ctx); err != nil {
		_ = closeMirror()
		return nil, fmt.Errorf("failed to hydrate schedule cache: %w", err)
	}
	if schedule.Degraded() {
		logger.Warn("operating disconnected from the remote store")
	}
	return a, nil
}

func (a *app) runDaemon(ctx context.Context) error {
	go a.sessions.Watch(ctx, a.cfg.SessionCheckInterval)

	if a.cfg.ReminderEnabled {
		notifier := reminder.NewNotifier(nil, a.logger)
		runner := reminder.NewRunner(a.schedule, notifier, reminder.Settings{
			Enabled:     a.cfg.ReminderEnabled,
			HoursBefore: a.cfg.ReminderHoursBefore,
			WebhookURL:  a.cfg.ReminderWebhookURL,
		}, a.cfg.ShiftStartHour, time.Now, a.logger)
		go runner.Run(ctx, a.cfg.ReminderCheckInterval)
	}

	server := &http.Server{
		Addr:              a.cfg.OpsListenAddr,
		Handler:           ops.NewRouter(a.sessions, a.schedule, a.client),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("failed to shutdown ops server", "error", err)
		}
	}()

	a.logger.Info("duty roster client running", "ops_addr", server.Addr, "api", a.cfg.APIBaseURL)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *app) runCommand(ctx context.Context, args []string) error {
	switch args[0] {
	case "assign":
		if len(args) != 4 {
			return fmt.Errorf("usage: dutyroster assign <date>[,<date>...] <name> <phone>")
		}
		if err := a.selectDates(args[1]); err != nil {
			return err
		}
		if err := a.coordinator.Save(ctx, duty.AssignmentInput{
			EmployeeName: args[2],
			Phone:        args[3],
		}); err != nil {
			return err
		}
		a.logger.Info("assignment saved", "dates", args[1], "employee", args[2])
		return nil
	case "clear":
		if len(args) != 2 {
			return fmt.Errorf("usage: dutyroster clear <date>[,<date>...]")
		}
		if err := a.selectDates(args[1]); err != nil {
			return err
		}
		if err := a.coordinator.Delete(ctx); err != nil {
			return err
		}
		a.logger.Info("assignments cleared", "dates", args[1])
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (a *app) selectDates(list string) error {
	dates := strings.Split(list, ",")
	selection := a.coordinator.Selection()
	selection.SetMode(batch.ModeMulti)
	selection.Clear()
	for _, date := range dates {
		date = strings.TrimSpace(date)
		if err := duty.ValidateDateKey(date); err != nil {
			return err
		}
		selection.Select(date)
	}
	return nil
}

func openMirror(ctx context.Context, cfg config.Config) (cache.Mirror, func() error, error) {
	switch cfg.MirrorBackend {
	case config.MirrorBackendRedis:
		store, err := mirror.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := mirror.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}
