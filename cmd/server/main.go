package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roomtune/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

func (v configVar[T]) bind() {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	queueLimit = configVar[int]{
		envKey:       "SERVER_QUEUE_LIMIT",
		flagKey:      "queue-limit",
		defaultValue: 100,
		usage:        "Maximum number of songs in a room queue",
	}
	tickInterval = configVar[time.Duration]{
		envKey:       "SERVER_TICK_INTERVAL",
		flagKey:      "tick-interval",
		defaultValue: time.Second,
		usage:        "Interval between music_state broadcasts while playing",
	}
	resolveTimeout = configVar[time.Duration]{
		envKey:       "SERVER_RESOLVE_TIMEOUT",
		flagKey:      "resolve-timeout",
		defaultValue: 10 * time.Second,
		usage:        "Maximum time to resolve a song stream url",
	}
	pauseTimeout = configVar[time.Duration]{
		envKey:       "SERVER_PAUSE_TIMEOUT",
		flagKey:      "pause-timeout",
		defaultValue: 5 * time.Minute,
		usage:        "Time a room may stay paused before its audio sink is released",
	}
	clientQueueSize = configVar[int]{
		envKey:       "SERVER_CLIENT_QUEUE_SIZE",
		flagKey:      "client-queue-size",
		defaultValue: 64,
		usage:        "Outbound frames buffered per websocket client",
	}
	catalogURL = configVar[string]{
		envKey:       "CATALOG_URL",
		flagKey:      "catalog-url",
		defaultValue: "http://localhost:3000",
		usage:        "Music catalog base url",
	}
	catalogQuality = configVar[string]{
		envKey:       "CATALOG_QUALITY",
		flagKey:      "catalog-quality",
		defaultValue: "standard",
		usage:        "Preferred stream quality",
	}
	sinkFrame = configVar[time.Duration]{
		envKey:       "SINK_FRAME",
		flagKey:      "sink-frame",
		defaultValue: 20 * time.Millisecond,
		usage:        "Audio frame length",
	}
	sinkBuffer = configVar[time.Duration]{
		envKey:       "SINK_BUFFER",
		flagKey:      "sink-buffer",
		defaultValue: time.Second,
		usage:        "Audio pushed ahead of playback",
	}
	snapshotTTL = configVar[time.Duration]{
		envKey:       "SNAPSHOT_TTL",
		flagKey:      "snapshot-ttl",
		defaultValue: 24 * time.Hour,
		usage:        "Lifetime of a room snapshot in redis",
	}
	redisEnabled = configVar[bool]{
		envKey:       "REDIS_ENABLED",
		flagKey:      "redis-enabled",
		defaultValue: true,
		usage:        "Mirror room snapshots to redis",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.Int(queueLimit.flagKey, queueLimit.defaultValue, queueLimit.usage)
	pflag.Duration(tickInterval.flagKey, tickInterval.defaultValue, tickInterval.usage)
	pflag.Duration(resolveTimeout.flagKey, resolveTimeout.defaultValue, resolveTimeout.usage)
	pflag.Duration(pauseTimeout.flagKey, pauseTimeout.defaultValue, pauseTimeout.usage)
	pflag.Int(clientQueueSize.flagKey, clientQueueSize.defaultValue, clientQueueSize.usage)
	pflag.String(catalogURL.flagKey, catalogURL.defaultValue, catalogURL.usage)
	pflag.String(catalogQuality.flagKey, catalogQuality.defaultValue, catalogQuality.usage)
	pflag.Duration(sinkFrame.flagKey, sinkFrame.defaultValue, sinkFrame.usage)
	pflag.Duration(sinkBuffer.flagKey, sinkBuffer.defaultValue, sinkBuffer.usage)
	pflag.Duration(snapshotTTL.flagKey, snapshotTTL.defaultValue, snapshotTTL.usage)
	pflag.Bool(redisEnabled.flagKey, redisEnabled.defaultValue, redisEnabled.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	port.bind()
	host.bind()
	logLevel.bind()
	queueLimit.bind()
	tickInterval.bind()
	resolveTimeout.bind()
	pauseTimeout.bind()
	clientQueueSize.bind()
	catalogURL.bind()
	catalogQuality.bind()
	sinkFrame.bind()
	sinkBuffer.bind()
	snapshotTTL.bind()
	redisEnabled.bind()
	redisPort.bind()
	redisHost.bind()
	redisPassword.bind()

	return &app.AppConfig{
		Host:            viper.GetString(host.flagKey),
		Port:            viper.GetInt(port.flagKey),
		LogLevel:        viper.GetString(logLevel.flagKey),
		QueueLimit:      viper.GetInt(queueLimit.flagKey),
		TickInterval:    viper.GetDuration(tickInterval.flagKey),
		ResolveTimeout:  viper.GetDuration(resolveTimeout.flagKey),
		PauseTimeout:    viper.GetDuration(pauseTimeout.flagKey),
		ClientQueueSize: viper.GetInt(clientQueueSize.flagKey),
		CatalogURL:      viper.GetString(catalogURL.flagKey),
		CatalogQuality:  viper.GetString(catalogQuality.flagKey),
		SinkFrame:       viper.GetDuration(sinkFrame.flagKey),
		SinkBuffer:      viper.GetDuration(sinkBuffer.flagKey),
		SnapshotTTL:     viper.GetDuration(snapshotTTL.flagKey),
		RedisEnabled:    viper.GetBool(redisEnabled.flagKey),
		RedisPort:       viper.GetInt(redisPort.flagKey),
		RedisHost:       viper.GetString(redisHost.flagKey),
		RedisPassword:   viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
