package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment overlay. Credentials never have to live in the config file;
// operators can supply them via a .env file (loaded in cmd/bot) or the
// process environment. An env value always wins over the file value.
const (
	EnvTelegramToken   = "DEALCAST_TELEGRAM_TOKEN"
	EnvMicroblogToken  = "DEALCAST_MICROBLOG_TOKEN"
	EnvMediaGraphToken = "DEALCAST_MEDIAGRAPH_TOKEN"
	EnvSourceAPIKey    = "DEALCAST_SOURCE_API_KEY"
	EnvDryRun          = "DEALCAST_DRY_RUN"
)

// ApplyEnv overlays recognized environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelegramToken)); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMicroblogToken)); v != "" {
		cfg.Channels.Microblog.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMediaGraphToken)); v != "" {
		cfg.Channels.MediaGraph.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSourceAPIKey)); v != "" {
		cfg.Source.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDryRun)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DryRun = b
		}
	}
}
