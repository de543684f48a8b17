// Command hellobirb greets members of a Discord community when they turn on
// their camera in the watched voice channel. It:
//   - Loads configuration and initializes structured logging.
//   - Loads the last-seen state file and opens the Discord gateway.
//   - Watches voice-state updates and runs the greeting pipeline
//     (dedup, composition, deferred follow-up sends).
//   - Exposes a minimal HTTP server with /, /healthz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/hellobirb/archive"
	"github.com/onnwee/hellobirb/config"
	"github.com/onnwee/hellobirb/discord"
	"github.com/onnwee/hellobirb/dispatch"
	"github.com/onnwee/hellobirb/greet"
	"github.com/onnwee/hellobirb/presence"
	"github.com/onnwee/hellobirb/server"
	"github.com/onnwee/hellobirb/telemetry"
	"github.com/onnwee/hellobirb/weather"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	initLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config incomplete", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("hellobirb", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	store := presence.Open(filepath.Join(cfg.DataDir, "last-seen.json"))
	telemetry.SetTrackedMembers(store.Len())

	client, err := discord.New(cfg.BotToken)
	if err != nil {
		slog.Error("discord session setup failed", slog.Any("err", err))
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	composer := &greet.Composer{
		Weather: weather.NewClient(),
		Archive: archive.NewFS(cfg.DataDir),
		Rand:    rng,
		Opts: greet.Options{
			GoodToSeeYouDays:      cfg.GoodToSeeYouDays,
			GiftProbability:       cfg.GiftProbability,
			ExtraGiftProbability:  cfg.ExtraGiftProbability,
			MondayMorningAddendum: cfg.MondayMorningAddendum,
			WeatherLocation:       cfg.WeatherLocation,
			WeatherFreshness:      time.Duration(cfg.WeatherFreshnessHours) * time.Hour,
			Dev:                   cfg.Dev,
		},
	}
	dispatcher := &dispatch.Dispatcher{Sender: client, Muter: client, Rand: rng}
	watcher := presence.NewWatcher(store, client, composer, dispatcher, cfg)
	client.RegisterVoiceWatcher(watcher)
	if cfg.GuildID != "" {
		client.RegisterSnowfight(cfg.GuildID)
	}

	if err := client.Open(); err != nil {
		slog.Error("discord gateway open failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Error("discord gateway close failed", slog.Any("err", err))
		}
	}()
	slog.Info("cheep cheep! ready to greet",
		slog.String("watch_channel", cfg.WatchChannelID),
		slog.String("announce_channel", cfg.AnnounceChannelID),
		slog.String("time_zone", cfg.BotTimeZone))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, store, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	store.Flush()
}

// initLogging configures slog from LOG_LEVEL and LOG_FORMAT (text | json).
func initLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
}
