// Command send-message posts a one-off message to the announce channel: a
// plain-text file is sent as-is (trimmed), a JSON file becomes an embed with
// the standard on-this-day title and color applied as defaults. Useful for
// testing on-this-day content before dropping it into the data directory.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/onnwee/hellobirb/archive"
	"github.com/onnwee/hellobirb/config"
	"github.com/onnwee/hellobirb/discord"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		slog.Error("a filename is required")
		os.Exit(1)
	}
	file := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config incomplete", slog.Any("err", err))
		os.Exit(1)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		slog.Error("unable to read message file", slog.String("file", file), slog.Any("err", err))
		os.Exit(1)
	}

	client, err := discord.New(cfg.BotToken)
	if err != nil {
		slog.Error("discord session setup failed", slog.Any("err", err))
		os.Exit(1)
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

	body := strings.TrimSpace(string(data))
	if strings.HasSuffix(file, ".json") || strings.HasPrefix(body, "{") {
		embed, err := archive.DecodeEmbed(data)
		if err != nil {
			slog.Error("unable to parse embed JSON", slog.Any("err", err))
			os.Exit(1)
		}
		err = client.SendEmbed(cfg.AnnounceChannelID, embed)
		if err != nil {
			slog.Error("unable to send embed", slog.Any("err", err))
			os.Exit(1)
		}
	} else {
		if err := client.Send(cfg.AnnounceChannelID, body); err != nil {
			slog.Error("unable to send message", slog.Any("err", err))
			os.Exit(1)
		}
	}
	slog.Info("sent message", slog.String("file", file))
}
