package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/roomtune/server/internal/catalog"
	"github.com/roomtune/server/internal/controller"
	"github.com/roomtune/server/internal/hub"
	roomRepo "github.com/roomtune/server/internal/repository/room"
	roomRedis "github.com/roomtune/server/internal/repository/room/redis"
	"github.com/roomtune/server/internal/service/room"
	"github.com/roomtune/server/internal/sink/pacer"
	"github.com/roomtune/server/pkg/ctxlogger"
	"github.com/roomtune/server/pkg/redisclient"
)

type AppConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	LogLevel        string        `json:"log_level"`
	QueueLimit      int           `json:"queue_limit"`
	TickInterval    time.Duration `json:"tick_interval"`
	ResolveTimeout  time.Duration `json:"resolve_timeout"`
	PauseTimeout    time.Duration `json:"pause_timeout"`
	ClientQueueSize int           `json:"client_queue_size"`
	CatalogURL      string        `json:"catalog_url"`
	CatalogQuality  string        `json:"catalog_quality"`
	SinkFrame       time.Duration `json:"sink_frame"`
	SinkBuffer      time.Duration `json:"sink_buffer"`
	SnapshotTTL     time.Duration `json:"snapshot_ttl"`
	RedisEnabled    bool          `json:"redis_enabled"`
	RedisPort       int           `json:"redis_port"`
	RedisHost       string        `json:"redis_host"`
	RedisPassword   string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.QueueLimit < 1 {
		return errors.New("queue limit must be greater than 0")
	}
	if cfg.TickInterval <= 0 {
		return errors.New("tick interval must be positive")
	}
	if cfg.ResolveTimeout <= 0 {
		return errors.New("resolve timeout must be positive")
	}
	if cfg.PauseTimeout <= 0 {
		return errors.New("pause timeout must be positive")
	}
	if cfg.ClientQueueSize < 1 {
		return errors.New("client queue size must be greater than 0")
	}
	if cfg.SinkFrame <= 0 || cfg.SinkBuffer < cfg.SinkFrame {
		return errors.New("sink buffer must hold at least one positive frame")
	}
	if cfg.CatalogURL == "" {
		return errors.New("catalog url is required")
	}
	if cfg.RedisEnabled && cfg.SnapshotTTL <= 0 {
		return errors.New("snapshot ttl must be positive")
	}
	return nil
}

type snapshotStore interface {
	SetSnapshot(context.Context, *roomRepo.SetSnapshotParams) error
	GetSnapshot(context.Context, string) (roomRepo.Snapshot, error)
	IsSnapshotExists(context.Context, string) (bool, error)
	RemoveSnapshot(context.Context, string) error
}

func newLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	h := hub.New(cfg.ClientQueueSize, logger)
	resolver := catalog.NewHTTPResolver(&catalog.Config{
		BaseURL: cfg.CatalogURL,
		Quality: cfg.CatalogQuality,
	}, &http.Client{Timeout: cfg.ResolveTimeout})
	sinkFactory := pacer.NewFactory(pacer.Config{
		Frame:  cfg.SinkFrame,
		Buffer: cfg.SinkBuffer,
	}, logger)
	roomConfig := &room.Config{
		QueueLimit:     cfg.QueueLimit,
		TickInterval:   cfg.TickInterval,
		ResolveTimeout: cfg.ResolveTimeout,
		PauseTimeout:   cfg.PauseTimeout,
	}

	var store snapshotStore
	if cfg.RedisEnabled {
		rc, err := redisclient.NewRedisClient(&redisclient.Config{
			Port:     cfg.RedisPort,
			Host:     cfg.RedisHost,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer rc.Close()

		store = roomRedis.NewRepo(rc, cfg.SnapshotTTL)
	} else {
		logger.WarnContext(ctx, "redis disabled, room snapshots will not survive restarts")
	}

	roomService := room.NewService(roomConfig, resolver, sinkFactory, h, store, logger)
	defer roomService.Shutdown()

	controller := controller.NewController(roomService, h, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
