package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roomtune/server/internal/domain"
	"github.com/roomtune/server/internal/reconciler"
	"github.com/roomtune/server/pkg/ctxlogger"
)

type config struct {
	URL       string
	Room      string
	Tolerance time.Duration
	Heartbeat time.Duration
	LogLevel  string
}

func loadConfig() config {
	pflag.String("url", "ws://localhost:80/api/v1/ws", "Server websocket url")
	pflag.String("room", "", "Room to listen to")
	pflag.Duration("drift-tolerance", 750*time.Millisecond, "Allowed drift before the local player is corrected")
	pflag.Duration("heartbeat", 15*time.Second, "Interval between ALIVE messages")
	pflag.String("log-level", "INFO", "Logging level")
	pflag.Parse()

	viper.SetEnvPrefix("LISTENER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.BindPFlags(pflag.CommandLine)

	return config{
		URL:       viper.GetString("url"),
		Room:      viper.GetString("room"),
		Tolerance: viper.GetDuration("drift-tolerance"),
		Heartbeat: viper.GetDuration("heartbeat"),
		LogLevel:  viper.GetString("log-level"),
	}
}

// logPlayer stands in for a real audio output: it logs what it is told and
// keeps a wall clock position.
type logPlayer struct {
	logger *slog.Logger

	mu        sync.Mutex
	song      domain.Song
	url       string
	base      int64
	startedAt time.Time
	playing   bool
}

func (p *logPlayer) Load(song domain.Song, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.song, p.url = song, url
	p.base, p.playing = 0, false
	p.logger.Info("load", "song", song.Title, "artist", song.Artist, "url", url)
	return nil
}

func (p *logPlayer) Play(positionMs int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.base, p.startedAt, p.playing = positionMs, time.Now(), true
	p.logger.Info("play", "song", p.song.Title, "position_ms", positionMs)
	return nil
}

func (p *logPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.base = p.positionLocked()
	p.playing = false
	p.logger.Info("pause", "song", p.song.Title, "position_ms", p.base)
	return nil
}

func (p *logPlayer) Seek(positionMs int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.base, p.startedAt = positionMs, time.Now()
	p.logger.Info("seek", "song", p.song.Title, "position_ms", positionMs)
	return nil
}

func (p *logPlayer) Position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.positionLocked()
}

func (p *logPlayer) positionLocked() int64 {
	if !p.playing {
		return p.base
	}
	return p.base + time.Since(p.startedAt).Milliseconds()
}

func (p *logPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Info("stop", "song", p.song.Title)
	p.song, p.url = domain.Song{}, ""
	p.base, p.playing = 0, false
	return nil
}

func dial(ctx context.Context, addr, room string) (*websocket.Conn, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", u.Redacted(), err)
	}

	return conn, nil
}

func heartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration, mu *sync.Mutex) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mu.Lock()
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err := conn.WriteJSON(map[string]string{"type": "ALIVE"})
			mu.Unlock()
			if err != nil {
				return
			}
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			// unblock the reader if the server never answers the close
			time.AfterFunc(time.Second, func() { conn.Close() })
			return
		}
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	if cfg.Room == "" {
		return fmt.Errorf("room is required")
	}

	conn, err := dial(ctx, cfg.URL, cfg.Room)
	if err != nil {
		return err
	}
	defer conn.Close()

	rec := reconciler.New(reconciler.Config{
		Room:             cfg.Room,
		DriftToleranceMs: cfg.Tolerance.Milliseconds(),
	}, &logPlayer{logger: logger.With("component", "player")}, logger)

	var writeMu sync.Mutex
	go heartbeat(ctx, conn, cfg.Heartbeat, &writeMu)

	logger.InfoContext(ctx, "listening", "room", cfg.Room)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		if err := rec.Apply(data); err != nil {
			logger.WarnContext(ctx, "failed to apply event", "error", err)
		}
	}
}

func main() {
	cfg := loadConfig()

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}
	logger := slog.New(&ctxlogger.ContextHandler{
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.Fatal(err)
	}
}
