package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	LogLevel string
	APIToken string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	LLMTimeout    time.Duration

	TavilyAPIKey  string
	TavilyURL     string
	SearchTimeout time.Duration

	FetchTimeout time.Duration
	UserAgent    string

	CompactThreshold int
	CompactKeep      int
	MaxSteps         int
	StepTimeout      time.Duration
	ThreadTTL        time.Duration

	DatabaseURL   string
	NatsURL       string
	NatsToken     string
	NatsQueue     string
	MaxInFlight   int
	SlackBotToken string
	SlackChannel  string
}

// Load reads the configuration from the environment. Variables in a .env
// file in the working directory are applied first without overriding ones
// already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:     envInt("SCOUT_PORT", 8760),
		LogLevel: envStr("LOG_LEVEL", "info"),
		APIToken: envStr("SCOUT_API_TOKEN", ""),

		OpenAIAPIKey:  envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL: envStr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:         envStr("SCOUT_MODEL", "gpt-4o-mini"),
		LLMTimeout:    envDuration("SCOUT_LLM_TIMEOUT", 120*time.Second),

		TavilyAPIKey:  envStr("TAVILY_API_KEY", ""),
		TavilyURL:     envStr("TAVILY_URL", "https://api.tavily.com"),
		SearchTimeout: envDuration("SCOUT_SEARCH_TIMEOUT", 30*time.Second),

		FetchTimeout: envDuration("SCOUT_FETCH_TIMEOUT", 10*time.Second),
		UserAgent:    envStr("SCOUT_USER_AGENT", ""),

		CompactThreshold: envInt("SCOUT_COMPACT_THRESHOLD", 5),
		CompactKeep:      envInt("SCOUT_COMPACT_KEEP", 2),
		MaxSteps:         envInt("SCOUT_MAX_STEPS", 25),
		StepTimeout:      envDuration("SCOUT_STEP_TIMEOUT", 0),
		ThreadTTL:        envDuration("SCOUT_THREAD_TTL", time.Hour),

		DatabaseURL:   envStr("DATABASE_URL", ""),
		NatsURL:       envStr("NATS_URL", ""),
		NatsToken:     envStr("NATS_TOKEN", ""),
		NatsQueue:     envStr("NATS_QUEUE", "scout"),
		MaxInFlight:   envInt("SCOUT_MAX_IN_FLIGHT", 4),
		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_REPORTS_CHANNEL", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
