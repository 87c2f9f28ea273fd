package config

// Config is the whole configuration file.
//
// The file is YAML (JSON is also accepted); credentials may be left empty in
// the file and supplied through environment variables instead (see env.go).
// All durations are Go duration strings (e.g. "30s", "10m").
type Config struct {
	// DryRun replaces every remote publish call with a local echo.
	// Formatting and length validation still run, so dry-run output is
	// representative of a real cycle.
	DryRun bool `json:"dry_run"`

	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Source    SourceConfig    `json:"source"`
	Telegram  TelegramConfig  `json:"telegram"`
	Channels  ChannelsConfig  `json:"channels"`
	Roundup   RoundupConfig   `json:"roundup"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Relay   LogRelay    `json:"relay"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LogRelay forwards warn/error log lines to the operator chat.
type LogRelay struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the dedup ledger backing store.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "file":   dependency-free jsonl append log
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// SourceConfig points at the deal feed API.
type SourceConfig struct {
	BaseURL    string  `json:"base_url" validate:"required,url"`
	APIKey     string  `json:"api_key,omitempty"`
	FetchLimit int     `json:"fetch_limit,omitempty"`
	MinScore   float64 `json:"min_score,omitempty"` // global floor; channels raise it
	Timeout    string  `json:"timeout,omitempty"`
}

// TelegramConfig is the bot identity used for the chat-bot channel and the
// operator command surface.
type TelegramConfig struct {
	Token        string  `json:"token,omitempty"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	PollTimeout  string  `json:"poll_timeout,omitempty"`
}

type ChannelsConfig struct {
	Microblog  ChannelConfig `json:"microblog"`
	MediaGraph ChannelConfig `json:"mediagraph"`
	ChatBot    ChannelConfig `json:"chatbot"`
}

// ChannelConfig is the per-channel distribution policy.
type ChannelConfig struct {
	Enabled bool `json:"enabled"`

	// Schedule triggers cycles: a cron spec ("0 */3 * * *"), an interval
	// ("45m"), or empty when PostTimes is used instead.
	Schedule string `json:"schedule,omitempty"`
	// PostTimes lists fixed HH:MM times of day (channel gated by trigger
	// times rather than a rolling window alone).
	PostTimes []string `json:"post_times,omitempty"`

	MaxPerWindow   int     `json:"max_per_window" validate:"gte=0"`
	WindowHours    int     `json:"window_hours" validate:"gte=0"`
	ScoreThreshold float64 `json:"score_threshold" validate:"gte=0,lte=100"`
	MaxPostsPerRun int     `json:"max_posts_per_run" validate:"gte=0"`

	// PacingDelay separates sequential publishes within one cycle.
	PacingDelay string `json:"pacing_delay,omitempty"`

	// Async processing knobs (mediagraph only).
	PollInterval    string `json:"poll_interval,omitempty"`
	MaxPollAttempts int    `json:"max_poll_attempts,omitempty"`

	// CharLimit overrides the channel's default text limit.
	CharLimit int `json:"char_limit,omitempty" validate:"gte=0"`

	// Remote endpoint + credentials (HTTP channels).
	BaseURL   string `json:"base_url,omitempty" validate:"omitempty,url"`
	Token     string `json:"token,omitempty"`
	AccountID string `json:"account_id,omitempty"`

	// ChatID is the destination chat for the chat-bot channel.
	ChatID int64 `json:"chat_id,omitempty"`
}

// RoundupConfig controls the weekly thread roundup.
type RoundupConfig struct {
	Enabled    bool   `json:"enabled"`
	Schedule   string `json:"schedule,omitempty"` // default: sunday evening
	TopN       int    `json:"top_n,omitempty"`
	WindowDays int    `json:"window_days,omitempty"`
}

type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Workers  int    `json:"workers,omitempty"`
	Timezone string `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/Berlin"
}
