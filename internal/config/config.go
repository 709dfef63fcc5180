package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all agent configuration.
type Config struct {
	AgentPort   string
	GinMode     string
	LogLevel    string
	LogFormat   string
	ExamAPIBase string
	HTTPTimeout time.Duration
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
	// WarningMarks are the remaining-seconds values at which the timer
	// emits a one-time warning, highest first.
	WarningMarks []int
	// TabSwitchLimit is the number of tab switches that forces submission.
	TabSwitchLimit int
	// AutoSubmitGrace is the delay between announcing a forced submission
	// and actually sending it, so the notice can be shown first.
	AutoSubmitGrace time.Duration
	// ResumeOnSubmitFailure re-arms the timer and integrity monitor
	// automatically after a failed submission. When false the session
	// stays paused until the user resumes explicitly.
	ResumeOnSubmitFailure bool
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		AgentPort:             getEnv("AGENT_PORT", "7180"),
		GinMode:               getEnv("GIN_MODE", "debug"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "pretty"),
		ExamAPIBase:           getEnv("EXAM_API_BASE", "http://localhost:5000/api"),
		HTTPTimeout:           time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		AllowedOrigins:        parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		WarningMarks:          parseMarks(getEnv("WARNING_MARKS", "300,60")),
		TabSwitchLimit:        getEnvInt("TAB_SWITCH_LIMIT", 3),
		AutoSubmitGrace:       time.Duration(getEnvInt("AUTO_SUBMIT_GRACE_SECONDS", 2)) * time.Second,
		ResumeOnSubmitFailure: getEnvBool("RESUME_ON_SUBMIT_FAILURE", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// parseMarks parses a comma-separated list of remaining-seconds warning
// marks. Invalid or non-positive entries are skipped.
func parseMarks(raw string) []int {
	parts := strings.Split(raw, ",")
	marks := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			continue
		}
		marks = append(marks, n)
	}
	return marks
}
