package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database
	DatabaseURL string

	// Server
	Port       int
	CronSecret string

	// Classifier
	GeminiAPIKey     string
	GeminiModel      string
	GeminiEndpoint   string
	AnalyzeBatchSize int
	AnalyzeDelay     time.Duration
	ExtractLimit     int
	StoreRawHTML     bool

	// Fetching
	FetchTimeout      time.Duration
	RedirectHosts     []string
	InterstitialHosts []string
	BrowserFetch      bool
	BrowserHeadless   bool
	BrowserProfileDir string

	// Background work
	ScheduleInterval time.Duration
	TaskQueueSize    int
	TaskTimeout      time.Duration

	// RSS Feed
	FeedTitle       string
	FeedDescription string
	FeedLink        string
	FeedAuthor      string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from a .env file, when present, and the environment
func Load() (*Config, error) {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		Port:              getEnvAsInt("PORT", 8080),
		CronSecret:        getEnv("CRON_SECRET", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiEndpoint:    getEnv("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"),
		AnalyzeBatchSize:  getEnvAsInt("ANALYZE_BATCH_SIZE", 5),
		AnalyzeDelay:      getEnvAsDuration("ANALYZE_DELAY", 6*time.Second),
		ExtractLimit:      getEnvAsInt("EXTRACT_LIMIT", 12000),
		StoreRawHTML:      getEnvAsBool("STORE_RAW_HTML", false),
		FetchTimeout:      getEnvAsDuration("FETCH_TIMEOUT", 5*time.Second),
		RedirectHosts:     getEnvAsList("REDIRECT_HOSTS", []string{"news.google.com"}),
		InterstitialHosts: getEnvAsList("INTERSTITIAL_HOSTS", []string{"consent.google.com"}),
		BrowserFetch:      getEnvAsBool("BROWSER_FETCH", false),
		BrowserHeadless:   getEnvAsBool("SCRAPER_HEADLESS", true),
		BrowserProfileDir: getEnv("BROWSER_PROFILE_DIR", ""),
		ScheduleInterval:  getEnvAsDuration("SCHEDULE_INTERVAL", 0),
		TaskQueueSize:     getEnvAsInt("TASK_QUEUE_SIZE", 16),
		TaskTimeout:       getEnvAsDuration("TASK_TIMEOUT", 10*time.Minute),
		FeedTitle:         getEnv("FEED_TITLE", "Sports Business Curator"),
		FeedDescription:   getEnv("FEED_DESCRIPTION", "Curated sports and esports business articles"),
		FeedLink:          getEnv("FEED_LINK", "http://localhost:8080"),
		FeedAuthor:        getEnv("FEED_AUTHOR", "Curator"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AnalyzeBatchSize <= 0 {
		return nil, fmt.Errorf("ANALYZE_BATCH_SIZE must be positive, got %d", cfg.AnalyzeBatchSize)
	}
	if cfg.AnalyzeDelay < 0 || cfg.FetchTimeout <= 0 || cfg.ScheduleInterval < 0 {
		return nil, fmt.Errorf("ANALYZE_DELAY, FETCH_TIMEOUT and SCHEDULE_INTERVAL must not be negative")
	}

	return cfg, nil
}

// ClassifierEnabled reports whether a Gemini key is configured
func (c *Config) ClassifierEnabled() bool {
	return c.GeminiAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("6s") or plain milliseconds ("6000")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
