// Package config loads environment variables and provides a typed Config used across the bot.
// It applies sensible defaults so the binary can run locally with minimal setup.
// The only fatal-at-startup conditions are an unresolvable time zone and
// missing channel wiring; use Validate for the latter check.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DevFlags are the recognized DEV_MODE entries. Each one bypasses a normal
// gating rule so the bot can be exercised locally without waiting a day.
type DevFlags struct {
	AlwaysGreet        bool
	AlwaysFirst        bool
	AlwaysGift         bool
	AlwaysExtraGift    bool
	AlwaysGoodToSeeYou bool
	AlwaysWeather      bool
}

type Config struct {
	// Discord
	BotToken          string
	GuildID           string
	WatchChannelID    string
	AnnounceChannelID string
	PresenceRoleID    string

	// Greeting behavior
	BotTimeZone           string
	Location              *time.Location
	MondayMorningAddendum string
	TypingDelay           time.Duration
	GoodToSeeYouDays      int
	GiftProbability       float64
	ExtraGiftProbability  float64
	MuteOnJoin            bool

	// Weather (weather.gov office and grid, e.g. "TOP/32,81")
	WeatherLocation       string
	WeatherFreshnessHours int

	// Storage
	DataDir string

	Dev DevFlags
}

// Load reads environment variables and applies defaults. It doesn't fail if
// the Discord token is missing; use Validate when you require the full bot.
// Missing optional variables disable features (e.g., weather, presence role).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.BotToken = os.Getenv("BOT_TOKEN")
	cfg.GuildID = os.Getenv("GUILD_ID")
	cfg.WatchChannelID = os.Getenv("WATCH_VOICE_CHANNEL_ID")
	cfg.AnnounceChannelID = os.Getenv("ANNOUNCE_CHANNEL_ID")
	cfg.PresenceRoleID = os.Getenv("PRESENCE_ROLE_ID")
	cfg.MondayMorningAddendum = os.Getenv("MONDAY_MORNING_ADDENDUM")
	cfg.WeatherLocation = os.Getenv("WEATHER_GOV_OFFICE_AND_GRID")

	cfg.BotTimeZone = os.Getenv("BOT_TIME_ZONE")
	if cfg.BotTimeZone == "" {
		cfg.BotTimeZone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.BotTimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid BOT_TIME_ZONE %q: %w", cfg.BotTimeZone, err)
	}
	cfg.Location = loc

	cfg.TypingDelay = 3 * time.Second
	if v := os.Getenv("TYPING_DELAY_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("invalid TYPING_DELAY_MS %q", v)
		}
		cfg.TypingDelay = time.Duration(ms) * time.Millisecond
	}

	cfg.GoodToSeeYouDays = 7
	if v := os.Getenv("GOOD_TO_SEE_YOU_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid GOOD_TO_SEE_YOU_DAYS %q", v)
		}
		cfg.GoodToSeeYouDays = n
	}

	cfg.GiftProbability = 0.25
	if v := os.Getenv("GIFT_PROBABILITY"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p < 0 || p > 1 {
			return nil, fmt.Errorf("invalid GIFT_PROBABILITY %q", v)
		}
		cfg.GiftProbability = p
	}

	cfg.ExtraGiftProbability = 0.25
	if v := os.Getenv("EXTRA_GIFT_PROBABILITY"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p < 0 || p > 1 {
			return nil, fmt.Errorf("invalid EXTRA_GIFT_PROBABILITY %q", v)
		}
		cfg.ExtraGiftProbability = p
	}

	cfg.WeatherFreshnessHours = 6
	if v := os.Getenv("WEATHER_FRESHNESS_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid WEATHER_FRESHNESS_HOURS %q", v)
		}
		cfg.WeatherFreshnessHours = n
	}

	cfg.MuteOnJoin = os.Getenv("MUTE_ON_JOIN") == "1"

	cfg.DataDir = os.Getenv("DATA_DIR")
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	cfg.Dev = parseDevFlags(os.Getenv("DEV_MODE"))

	return cfg, nil
}

// parseDevFlags splits a comma-separated DEV_MODE list into flags.
// Unknown entries are ignored rather than rejected.
func parseDevFlags(raw string) DevFlags {
	var f DevFlags
	for _, entry := range strings.Split(raw, ",") {
		switch strings.TrimSpace(entry) {
		case "alwaysGreet":
			f.AlwaysGreet = true
		case "alwaysFirst":
			f.AlwaysFirst = true
		case "alwaysGift":
			f.AlwaysGift = true
		case "alwaysExtraGift":
			f.AlwaysExtraGift = true
		case "alwaysGoodToSeeYou":
			f.AlwaysGoodToSeeYou = true
		case "alwaysWeather":
			f.AlwaysWeather = true
		}
	}
	return f
}

// Validate checks required fields for running the greeter bot.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("missing env: BOT_TOKEN is required")
	}
	if c.WatchChannelID == "" || c.AnnounceChannelID == "" {
		return fmt.Errorf("missing env: require WATCH_VOICE_CHANNEL_ID, ANNOUNCE_CHANNEL_ID")
	}
	return nil
}
