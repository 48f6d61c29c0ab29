package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var keys = []string{
	"SCOUT_PORT", "LOG_LEVEL", "SCOUT_API_TOKEN",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "SCOUT_MODEL", "SCOUT_LLM_TIMEOUT",
	"TAVILY_API_KEY", "TAVILY_URL", "SCOUT_SEARCH_TIMEOUT",
	"SCOUT_FETCH_TIMEOUT", "SCOUT_USER_AGENT",
	"SCOUT_COMPACT_THRESHOLD", "SCOUT_COMPACT_KEEP", "SCOUT_MAX_STEPS", "SCOUT_STEP_TIMEOUT", "SCOUT_THREAD_TTL",
	"DATABASE_URL", "NATS_URL", "NATS_TOKEN", "NATS_QUEUE", "SCOUT_MAX_IN_FLIGHT", "SLACK_BOT_TOKEN", "SLACK_REPORTS_CHANNEL",
}

// clearEnv unsets every key for the duration of the test and runs it in an
// empty directory so no .env file is picked up.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Port != 8760 {
		t.Errorf("expected default port 8760, got %d", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("expected default model, got %s", cfg.Model)
	}
	if cfg.OpenAIBaseURL != "https://api.openai.com/v1" {
		t.Errorf("expected default openai url, got %s", cfg.OpenAIBaseURL)
	}
	if cfg.TavilyURL != "https://api.tavily.com" {
		t.Errorf("expected default tavily url, got %s", cfg.TavilyURL)
	}
	if cfg.FetchTimeout != 10*time.Second || cfg.SearchTimeout != 30*time.Second || cfg.LLMTimeout != 120*time.Second {
		t.Errorf("unexpected default timeouts: %v %v %v", cfg.FetchTimeout, cfg.SearchTimeout, cfg.LLMTimeout)
	}
	if cfg.CompactThreshold != 5 || cfg.CompactKeep != 2 || cfg.MaxSteps != 25 {
		t.Errorf("unexpected workflow defaults: %+v", cfg)
	}
	if cfg.ThreadTTL != time.Hour || cfg.StepTimeout != 0 {
		t.Errorf("unexpected ttl/step timeout: %v %v", cfg.ThreadTTL, cfg.StepTimeout)
	}
	if cfg.NatsQueue != "scout" || cfg.MaxInFlight != 4 {
		t.Errorf("unexpected nats consumer defaults: %s %d", cfg.NatsQueue, cfg.MaxInFlight)
	}
	if cfg.NatsURL != "" || cfg.DatabaseURL != "" || cfg.SlackBotToken != "" || cfg.APIToken != "" {
		t.Error("expected optional integrations to be off by default")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCOUT_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	t.Setenv("SCOUT_MODEL", "gpt-4o")
	t.Setenv("TAVILY_API_KEY", "tvly-test")
	t.Setenv("SCOUT_FETCH_TIMEOUT", "3s")
	t.Setenv("SCOUT_COMPACT_THRESHOLD", "9")
	t.Setenv("SCOUT_THREAD_TTL", "15m")
	t.Setenv("NATS_URL", "nats://custom:4222")
	t.Setenv("NATS_QUEUE", "scout-eu")
	t.Setenv("SCOUT_MAX_IN_FLIGHT", "8")
	t.Setenv("SLACK_REPORTS_CHANNEL", "C12345")
	t.Setenv("SCOUT_API_TOKEN", "scout-secret-token")

	cfg := Load()

	if cfg.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug log level, got %s", cfg.LogLevel)
	}
	if cfg.OpenAIAPIKey != "sk-test-key" || cfg.Model != "gpt-4o" {
		t.Errorf("unexpected model settings: %s %s", cfg.OpenAIAPIKey, cfg.Model)
	}
	if cfg.TavilyAPIKey != "tvly-test" {
		t.Errorf("expected custom tavily key, got %s", cfg.TavilyAPIKey)
	}
	if cfg.FetchTimeout != 3*time.Second {
		t.Errorf("expected 3s fetch timeout, got %v", cfg.FetchTimeout)
	}
	if cfg.CompactThreshold != 9 {
		t.Errorf("expected compact threshold 9, got %d", cfg.CompactThreshold)
	}
	if cfg.ThreadTTL != 15*time.Minute {
		t.Errorf("expected 15m ttl, got %v", cfg.ThreadTTL)
	}
	if cfg.NatsURL != "nats://custom:4222" {
		t.Errorf("expected custom nats url, got %s", cfg.NatsURL)
	}
	if cfg.NatsQueue != "scout-eu" || cfg.MaxInFlight != 8 {
		t.Errorf("unexpected nats consumer settings: %s %d", cfg.NatsQueue, cfg.MaxInFlight)
	}
	if cfg.SlackChannel != "C12345" {
		t.Errorf("expected custom slack channel, got %s", cfg.SlackChannel)
	}
	if cfg.APIToken != "scout-secret-token" {
		t.Errorf("expected custom api token, got %s", cfg.APIToken)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCOUT_PORT", "notanumber")
	t.Setenv("SCOUT_LLM_TIMEOUT", "soon")

	cfg := Load()

	if cfg.Port != 8760 {
		t.Errorf("expected default port on invalid value, got %d", cfg.Port)
	}
	if cfg.LLMTimeout != 120*time.Second {
		t.Errorf("expected default timeout on invalid value, got %v", cfg.LLMTimeout)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir, _ := os.Getwd()
	env := "OPENAI_API_KEY=sk-from-file\nSCOUT_MODEL=gpt-from-file\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCOUT_MODEL", "gpt-from-env")

	cfg := Load()

	if cfg.OpenAIAPIKey != "sk-from-file" {
		t.Errorf("expected key from .env, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.Model != "gpt-from-env" {
		t.Errorf("expected the environment to win over .env, got %q", cfg.Model)
	}
}
