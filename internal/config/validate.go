package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports a configuration problem that prevents a channel
// (or the whole process) from starting. It is reported once at startup and
// never retried per cycle.
type ValidationError struct {
	Section string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Section, e.Reason)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural constraints and per-channel credential
// completeness. Disabled channels are not required to carry credentials.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return &ValidationError{
				Section: f.Namespace(),
				Reason:  fmt.Sprintf("failed %q validation", f.Tag()),
			}
		}
		return err
	}

	if err := c.validateChannel("channels.microblog", c.Channels.Microblog); err != nil {
		return err
	}
	if err := c.validateChannel("channels.mediagraph", c.Channels.MediaGraph); err != nil {
		return err
	}

	if c.Channels.MediaGraph.Enabled && c.Channels.MediaGraph.MaxPollAttempts <= 0 {
		return &ValidationError{Section: "channels.mediagraph", Reason: "max_poll_attempts must be > 0"}
	}

	for _, raw := range [][2]string{
		{"channels.microblog.pacing_delay", c.Channels.Microblog.PacingDelay},
		{"channels.mediagraph.pacing_delay", c.Channels.MediaGraph.PacingDelay},
		{"channels.chatbot.pacing_delay", c.Channels.ChatBot.PacingDelay},
		{"channels.mediagraph.poll_interval", c.Channels.MediaGraph.PollInterval},
		{"source.timeout", c.Source.Timeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
	} {
		if _, err := ParseDurationField(raw[0], raw[1]); err != nil {
			return &ValidationError{Section: raw[0], Reason: err.Error()}
		}
	}
	return nil
}

func (c *Config) validateChannel(section string, ch ChannelConfig) error {
	if !ch.Enabled {
		return nil
	}
	if ch.MaxPerWindow > 0 && ch.WindowHours <= 0 {
		return &ValidationError{Section: section, Reason: "window_hours is required when max_per_window is set"}
	}
	if ch.Schedule == "" && len(ch.PostTimes) == 0 {
		return &ValidationError{Section: section, Reason: "either schedule or post_times is required"}
	}
	return nil
}

// CredentialError reports what keeps an enabled channel from starting, or
// nil. Credential gaps are deliberately not part of Validate: the app
// reports them once, skips that channel and keeps the rest of the
// pipeline running.
func (c *Config) CredentialError(channel string) error {
	switch channel {
	case "microblog":
		if c.Channels.Microblog.Enabled && strings.TrimSpace(c.Channels.Microblog.Token) == "" {
			return &ValidationError{Section: "channels.microblog", Reason: "token is missing (set " + EnvMicroblogToken + ")"}
		}
	case "mediagraph":
		if c.Channels.MediaGraph.Enabled && strings.TrimSpace(c.Channels.MediaGraph.Token) == "" {
			return &ValidationError{Section: "channels.mediagraph", Reason: "token is missing (set " + EnvMediaGraphToken + ")"}
		}
	case "chatbot":
		if !c.Channels.ChatBot.Enabled {
			return nil
		}
		if strings.TrimSpace(c.Telegram.Token) == "" {
			return &ValidationError{Section: "channels.chatbot", Reason: "telegram token is missing (set " + EnvTelegramToken + ")"}
		}
		if c.Channels.ChatBot.ChatID == 0 {
			return &ValidationError{Section: "channels.chatbot", Reason: "chat_id is required"}
		}
	}
	return nil
}
