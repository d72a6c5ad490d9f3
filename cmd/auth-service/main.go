package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/auth-service/internal/cache"
	"github.com/pribylovaa/auth-service/internal/codegen"
	"github.com/pribylovaa/auth-service/internal/config"
	"github.com/pribylovaa/auth-service/internal/mail"
	"github.com/pribylovaa/auth-service/internal/metrics"
	"github.com/pribylovaa/auth-service/internal/service"
	"github.com/pribylovaa/auth-service/internal/signer"
	"github.com/pribylovaa/auth-service/internal/storage"
	"github.com/pribylovaa/auth-service/internal/storage/memory"
	"github.com/pribylovaa/auth-service/internal/storage/mongo"
	"github.com/pribylovaa/auth-service/internal/storage/postgres"
	grpcops "github.com/pribylovaa/auth-service/internal/transport/grpc"
	httpapi "github.com/pribylovaa/auth-service/internal/transport/http"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", "env", cfg.Env, "storage", cfg.Storage.Driver)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	// Хранилище c таймаутом подключения.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	str, err := setupStorage(dbCtx, cfg, log)
	dbCancel()
	if err != nil {
		log.Error("storage_connect_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer str.Close()

	sg, err := signer.New(cfg.Auth)
	if err != nil {
		log.Error("signer_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	mailer, err := setupMailer(cfg, log)
	if err != nil {
		log.Error("mailer_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	srvc := service.New(str, sg, codegen.NewNanoID(codegen.DefaultLength), mailer, cfg.Auth,
		service.WithMetrics(m),
	)
	log.Info("service_initialized")

	// Служебный gRPC (grpc.health.v1).
	grpc_prometheus.EnableHandlingTimeHistogram()
	ops := grpcops.NewOpsServer(log, cfg.Timeouts.Request)

	// Метрики и пробы на отдельном листенере.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !ops.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := str.Ping(ctx); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	metricsSrv := &http.Server{
		Addr:              cfg.Metrics.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Публичный REST API.
	apiSrv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: httpapi.NewRouter(srvc, httpapi.Options{
			Logger:   log,
			Metrics:  m,
			Timeout:  cfg.Timeouts.Request,
			BasePath: cfg.HTTP.BasePath,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr())
	if err != nil {
		log.Error("grpc_listen_failed",
			slog.String("addr", cfg.GRPC.Addr()),
			slog.String("err", err.Error()),
		)
		os.Exit(1)
	}

	serveErrCh := make(chan error, 3)

	go func() {
		log.Info("metrics_listen_start", slog.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("metrics: %w", err)
		}
	}()

	go func() {
		log.Info("http_listen_start", slog.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("http: %w", err)
		}
	}()

	go func() {
		if err := ops.Serve(grpcLis); err != nil {
			serveErrCh <- err
		}
	}()

	// Фоновая инвалидация сессий с истёкшим refresh-TTL.
	startSessionJanitor(rootCtx, srvc, log, cfg.Timeouts.Janitor)

	ops.SetServing(true)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		log.Error("serve_failed", slog.String("err", err.Error()))
	}

	// Graceful stop с таймаутом.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	ops.Stop(shutdownCtx)

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_failed", slog.String("err", err.Error()))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)

	log.Info("service_stopped")
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}

// setupStorage выбирает бэкенд по storage.driver. Для postgres при
// db.migrate накатываются миграции; при заданном redis_url сессии кэшируются.
func setupStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	var st storage.Storage

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pg, err := postgres.New(ctx, cfg.DB.DatabaseURL)
		if err != nil {
			return nil, err
		}

		if cfg.DB.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				pg.Close()
				return nil, err
			}
			log.Info("postgres_migrated")
		}

		st = pg
	case config.DriverMongo:
		mg, err := mongo.New(ctx, cfg.Mongo.URL)
		if err != nil {
			return nil, err
		}

		st = mg
	case config.DriverMemory:
		st = memory.New()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	log.Info("storage_connected", slog.String("driver", cfg.Storage.Driver))

	if cfg.Redis.RedisURL == "" {
		return st, nil
	}

	c, err := cache.NewRedisCache(ctx, cfg.Redis.RedisURL, cfg.Redis.Prefix)
	if err != nil {
		st.Close()
		return nil, err
	}
	log.Info("redis_connected")

	return cache.NewCachedSessions(st, c, cfg.Redis.TTL), nil
}

// setupMailer возвращает SMTP-почтальон, если задан smtp.host, иначе пишет письма в лог.
// Тело письма (с кодом) логируется только в local.
func setupMailer(cfg *config.Config, log *slog.Logger) (mail.Mailer, error) {
	if cfg.SMTP.Host == "" {
		log.Warn("smtp_disabled", slog.String("mailer", "log"))
		return mail.NewLog(log, cfg.Env == envLocal), nil
	}

	return mail.NewSMTP(cfg.SMTP, cfg.Auth.Sender)
}

// startSessionJanitor периодически инвалидирует сессии, чей refresh-токен уже истёк.
func startSessionJanitor(ctx context.Context, srvc *service.Service, log *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := srvc.SweepSessions(ctx); err != nil {
					log.Error("session_janitor_failed", slog.String("err", err.Error()))
				}
			}
		}
	}()
}
