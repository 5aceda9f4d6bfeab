package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/course-reg-api/internal/handler"
	"github.com/noah-isme/course-reg-api/internal/models"
	"github.com/noah-isme/course-reg-api/internal/repository"
	"github.com/noah-isme/course-reg-api/internal/router"
	"github.com/noah-isme/course-reg-api/internal/service"
	"github.com/noah-isme/course-reg-api/pkg/cache"
	"github.com/noah-isme/course-reg-api/pkg/export"
	"github.com/noah-isme/course-reg-api/pkg/mail"
)

const (
	shutdownTimeout = 15 * time.Second
	drainTimeout    = 10 * time.Second
	saveTimeout     = 30 * time.Second
)

type notificationInbox interface {
	Push(ctx context.Context, n models.Notification) error
	List(ctx context.Context, username string, offset, limit int) ([]models.Notification, int, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Loads the registration snapshot, serves the HTTP API and writes the
snapshot back on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, logr, g := rt.cfg, rt.logger, rt.graph

	var inbox notificationInbox
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		redisInbox := repository.NewRedisInboxRepository(client, cfg.Notify.InboxTTL, logr)
		rt.closers = append(rt.closers, redisInbox.Close)
		inbox = redisInbox
	} else {
		inbox = repository.NewMemoryInboxRepository(cfg.Notify.InboxTTL)
	}

	metrics := service.NewMetricsService()
	notifications := service.NewNotificationService(inbox, mail.New(cfg.Mail, logr), metrics, logr, service.NotificationConfig{
		Workers: cfg.Notify.Workers,
		Buffer:  cfg.Notify.Buffer,
		Retries: cfg.Notify.Retries,
	})
	// Workers outlive the signal context so Drain can flush them.
	notifications.Start(context.Background())

	users := service.NewUserService(g, rt.validate, logr, service.UserServiceConfig{})
	auth := service.NewAuthService(users, rt.validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "registrar",
	})
	courses := service.NewCourseService(g, rt.validate, logr, service.CourseServiceConfig{MaxAU: cfg.Registration.MaxAU})
	registrations := service.NewRegistrationService(service.RegistrationServiceParams{
		Graph:    g,
		Notifier: notifications,
		Metrics:  metrics,
		Logger:   logr,
		Config:   service.RegistrationServiceConfig{MaxAU: cfg.Registration.MaxAU},
	})
	reports := service.NewReportService(g, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	var graphLock sync.Mutex
	observeStores := func() { metrics.ObserveStores(g.Stats()) }
	observeStores()

	engine := router.New(router.Options{
		Config:     cfg,
		Logger:     logr,
		Metrics:    metrics,
		Tokens:     auth,
		GraphLock:  &graphLock,
		AfterGraph: observeStores,
	}, router.Handlers{
		Auth:         handler.NewAuthHandler(auth),
		Course:       handler.NewCourseHandler(courses, registrations),
		Index:        handler.NewIndexHandler(courses, registrations, reports),
		User:         handler.NewUserHandler(users, registrations),
		Registration: handler.NewRegistrationHandler(registrations, auth),
		Notification: handler.NewNotificationHandler(notifications),
		Metrics:      handler.NewMetricsHandler(metrics),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logr.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			logr.Error("server failed", zap.Error(err))
			runErr = fmt.Errorf("serve http: %w", err)
		}
	}

	shutdownErr := runShutdown(logr,
		shutdownStep{name: "http", timeout: shutdownTimeout, run: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil {
				logr.Warn("server shutdown", zap.Error(err))
			}
			return nil
		}},
		shutdownStep{name: "notifications", timeout: drainTimeout, run: func(ctx context.Context) error {
			notifications.Drain(ctx)
			return nil
		}},
		shutdownStep{name: "snapshot", timeout: saveTimeout, run: func(ctx context.Context) error {
			graphLock.Lock()
			defer graphLock.Unlock()
			if err := rt.snapshot.Save(ctx, g); err != nil {
				return err
			}
			logr.Info("snapshot saved", zap.Any("stores", g.Stats()))
			return nil
		}},
	)
	return errors.Join(runErr, shutdownErr)
}

// shutdownStep is one stage of a graceful stop.
type shutdownStep struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
}

// runShutdown runs steps in order, each under its own deadline, so a slow
// step never leaves the next one with an expired context.
func runShutdown(logr *zap.Logger, steps ...shutdownStep) error {
	var errs []error
	for _, step := range steps {
		ctx, cancel := context.WithTimeout(context.Background(), step.timeout)
		err := step.run(ctx)
		cancel()
		if err != nil {
			logr.Error("shutdown step failed", zap.String("step", step.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	return errors.Join(errs...)
}
