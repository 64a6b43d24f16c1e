package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	DatabaseURL string
	RedisURL    string

	DiscordGuild   string
	DiscordChannel string
	Website        string

	AnnounceQueue string

	SweepInterval time.Duration

	MetricsAddr string

	MsgOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		DiscordGuild:   "Cloud konijn",
		DiscordChannel: "rocket-league",
		Website:        "http://sheffield.studlab.os3.nl/OS3-Rocket-League-Ladder/",
		AnnounceQueue:  "rll:announce",
		SweepInterval:  30 * time.Minute,
		MetricsAddr:    ":9109",
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	if v := strings.TrimSpace(os.Getenv("DISCORD_GUILD")); v != "" {
		cfg.DiscordGuild = v
	}
	if v := strings.TrimSpace(os.Getenv("DISCORD_CHANNEL")); v != "" {
		cfg.DiscordChannel = v
	}
	if v := strings.TrimSpace(os.Getenv("WEBSITE")); v != "" {
		cfg.Website = v
	}
	if v := strings.TrimSpace(os.Getenv("ANNOUNCE_QUEUE")); v != "" {
		cfg.AnnounceQueue = v
	}
	if v := strings.TrimSpace(os.Getenv("EXPIRED_CHALLENGES_WAIT_TIMER")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SweepInterval = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	cfg.MsgOverrideDir = strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR"))

	return cfg, nil
}
