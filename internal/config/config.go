package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by VERITAS_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("VERITAS_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// SignalProvider returns the configured signal analyzer provider.
// Defaults to "openai" if not set.
// Valid values: openai, heuristic, mock
func SignalProvider() string {
	p := os.Getenv("SIGNAL_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// SignalModel returns the chat model used by the model-backed analyzers.
// Empty means the provider default.
func SignalModel() string {
	return os.Getenv("SIGNAL_MODEL")
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "openai" if not set.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// VotingWindowSecs returns the default arbitration window length.
// Defaults to 86400 (one day) if not set.
func VotingWindowSecs() int {
	secs, err := strconv.Atoi(os.Getenv("VOTING_WINDOW_SECS"))
	if err != nil || secs <= 0 {
		return 86400
	}
	return secs
}

// MinVotesRequired returns the participation floor below which a tally
// falls back to the AI verdict. Defaults to 5 if not set.
func MinVotesRequired() int {
	n, err := strconv.Atoi(os.Getenv("MIN_VOTES_REQUIRED"))
	if err != nil || n <= 0 {
		return 5
	}
	return n
}

// AutoResolveConfidence returns the confidence floor above which an
// unflagged AI verdict resolves without arbitration. Defaults to 0.85.
func AutoResolveConfidence() float64 {
	c, err := strconv.ParseFloat(os.Getenv("AUTO_RESOLVE_CONFIDENCE"), 64)
	if err != nil || c <= 0 || c > 1 {
		return 0.85
	}
	return c
}

// CloserInterval returns how often the session closer sweeps for expired
// sessions. Defaults to one minute.
func CloserInterval() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("CLOSER_INTERVAL_SECS"))
	if err != nil || secs <= 0 {
		return time.Minute
	}
	return time.Duration(secs) * time.Second
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
