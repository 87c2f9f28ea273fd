package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dealcast/pkg/logx"
)

const validYAML = `
dry_run: false
logging:
  level: info
  console: true
storage:
  driver: file
  path: /tmp/dealcast-ledger.jsonl
source:
  base_url: https://deals.example
  min_score: 50
telegram:
  token: tg-token
  owner_user_ids: [42]
channels:
  microblog:
    enabled: true
    schedule: "0 */3 * * *"
    max_per_window: 8
    window_hours: 24
    score_threshold: 70
    max_posts_per_run: 3
    pacing_delay: 45s
    base_url: https://microblog.example
    token: mb-token
  mediagraph:
    enabled: true
    post_times: ["09:00", "18:30"]
    max_per_window: 4
    window_hours: 24
    score_threshold: 80
    poll_interval: 20s
    max_poll_attempts: 15
    base_url: https://mediagraph.example
    token: mg-token
    account_id: acct-1
  chatbot:
    enabled: true
    schedule: 45m
    max_per_window: 20
    window_hours: 24
    score_threshold: 60
    chat_id: -100123
roundup:
  enabled: true
  top_n: 5
  window_days: 7
scheduler:
  enabled: true
  timezone: Europe/Berlin
`

func writeConfig(t *testing.T, body string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return NewManager(path)
}

func TestLoadValidConfig(t *testing.T) {
	m := writeConfig(t, validYAML)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Channels.Microblog.MaxPerWindow != 8 {
		t.Fatalf("max_per_window = %d, want 8", cfg.Channels.Microblog.MaxPerWindow)
	}
	if got := cfg.Channels.MediaGraph.PostTimes; len(got) != 2 || got[1] != "18:30" {
		t.Fatalf("post_times = %v", got)
	}
	if cfg.Channels.ChatBot.ChatID != -100123 {
		t.Fatalf("chat_id = %d", cfg.Channels.ChatBot.ChatID)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestLoadRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantSub string
	}{
		{
			name:    "unknown field",
			mutate:  func(s string) string { return s + "\nmystery_knob: 3\n" },
			wantSub: "unknown field",
		},
		{
			name: "missing source url",
			mutate: func(s string) string {
				return strings.Replace(s, "base_url: https://deals.example", "base_url: \"\"", 1)
			},
			wantSub: "Source.BaseURL",
		},
		{
			name:    "window cap without window hours",
			mutate:  func(s string) string { return strings.Replace(s, "window_hours: 24", "window_hours: 0", 1) },
			wantSub: "window_hours",
		},
		{
			name:    "bad pacing delay",
			mutate:  func(s string) string { return strings.Replace(s, "pacing_delay: 45s", "pacing_delay: soonish", 1) },
			wantSub: "pacing_delay",
		},
		{
			name: "mediagraph without poll budget",
			mutate: func(s string) string {
				return strings.Replace(s, "max_poll_attempts: 15", "max_poll_attempts: 0", 1)
			},
			wantSub: "max_poll_attempts",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			m := writeConfig(t, tc.mutate(validYAML))
			_, err := m.Load()
			if err == nil {
				t.Fatal("want error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestValidationErrorType(t *testing.T) {
	m := writeConfig(t, strings.Replace(validYAML, "window_hours: 24", "window_hours: 0", 1))
	_, err := m.Load()
	if err == nil {
		t.Fatal("want error")
	}
	if !IsValidationError(err) {
		t.Fatalf("want ValidationError, got %T: %v", err, err)
	}
}

func TestMissingCredentialIsNotFatal(t *testing.T) {
	// A credential gap must not fail Load: the app skips that channel and
	// keeps the rest of the pipeline running.
	body := strings.Replace(validYAML, "token: mb-token", "token: \"\"", 1)
	m := writeConfig(t, body)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("missing channel token must not fail validation: %v", err)
	}

	err = cfg.CredentialError("microblog")
	if err == nil {
		t.Fatal("CredentialError should report the missing token")
	}
	if !IsValidationError(err) {
		t.Fatalf("want ValidationError, got %T", err)
	}
	if !strings.Contains(err.Error(), "channels.microblog") {
		t.Fatalf("error %q does not name the channel section", err)
	}
	if cfg.CredentialError("mediagraph") != nil || cfg.CredentialError("chatbot") != nil {
		t.Fatal("channels with complete credentials must pass")
	}
}

func TestCredentialErrorChatIDRequired(t *testing.T) {
	body := strings.Replace(validYAML, "chat_id: -100123", "chat_id: 0", 1)
	m := writeConfig(t, body)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("chat_id gap must not fail validation: %v", err)
	}
	err = cfg.CredentialError("chatbot")
	if err == nil || !strings.Contains(err.Error(), "chat_id") {
		t.Fatalf("want chat_id credential error, got %v", err)
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv(EnvMicroblogToken, "env-mb-token")
	t.Setenv(EnvDryRun, "true")

	m := writeConfig(t, validYAML)
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Channels.Microblog.Token != "env-mb-token" {
		t.Fatalf("token = %q, env must win over file", cfg.Channels.Microblog.Token)
	}
	if !cfg.DryRun {
		t.Fatal("dry_run env overlay not applied")
	}
}

func TestEnvOverlaySuppliesMissingToken(t *testing.T) {
	// Credentials may be absent from the file entirely.
	t.Setenv(EnvMediaGraphToken, "env-mg-token")
	m := writeConfig(t, strings.Replace(validYAML, "token: mg-token", "token: \"\"", 1))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("env-supplied token should validate: %v", err)
	}
	if cfg.Channels.MediaGraph.Token != "env-mg-token" {
		t.Fatal("env token not applied")
	}
}

func TestWatchPicksUpFileChange(t *testing.T) {
	m := writeConfig(t, validYAML)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	m.SetLogger(logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		_ = m.Watch(ctx)
	}()

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	// Give the watcher a moment to attach before writing.
	time.Sleep(300 * time.Millisecond)
	updated := strings.Replace(validYAML, "score_threshold: 70", "score_threshold: 90", 1)
	if err := os.WriteFile(m.path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-sub:
		if cfg.Channels.Microblog.ScoreThreshold != 90 {
			t.Fatalf("score_threshold = %v, want 90", cfg.Channels.Microblog.ScoreThreshold)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload never published")
	}

	cancel()
	select {
	case <-watchDone:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchKeepsOldConfigOnBadWrite(t *testing.T) {
	m := writeConfig(t, validYAML)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	before := m.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	time.Sleep(300 * time.Millisecond)
	if err := os.WriteFile(m.path, []byte("not: [valid"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(700 * time.Millisecond)

	if m.Get() != before {
		t.Fatal("broken write must not replace the committed config")
	}
}
