package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	GitHub   GitHubConfig
	Scraper  ScraperConfig
	AI       AIConfig
	Workers  WorkersConfig
	Admin    AdminConfig
	Limits   LimitsConfig
}

type ServerConfig struct {
	Port         string
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

type DatabaseConfig struct {
	Path string
}

type LogConfig struct {
	Level  string
	Format string
}

type GitHubConfig struct {
	Token           string
	Enrich          bool
	TrendingBaseURL string
}

// ScraperConfig drives the trending feed and the scrape scheduler.
type ScraperConfig struct {
	// Languages lists the language filters scraped per run; "" means all languages.
	Languages         []string
	TimeRange         string
	IntervalHours     int
	Hour              int
	Concurrency       int
	TimeoutSeconds    int
	RunTimeoutMinutes int
	LockPath          string
}

type AIConfig struct {
	APIKey          string
	Model           string
	BaseURL         string
	TimeoutSeconds  int
	MaxTokens       int
	RetryAttempts   int
	RetryBaseMS     int
	RetryMaxMS      int
	Languages       []string
	DefaultLanguage string
}

type WorkersConfig struct {
	Analysis    int
	Scrape      int
	PollSeconds int
}

type AdminConfig struct {
	Token string
}

type LimitsConfig struct {
	MaxTotalResults int
	MaxPageSize     int
	DefaultPageSize int
}

// ConfigurationError reports a missing or malformed setting.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Message)
}

var AppConfig *Config

// Load loads configuration from .env file and environment variables
func Load() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = FromEnv()
	return nil
}

// FromEnv builds a Config from the current environment without touching AppConfig
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Mode:         getEnv("GIN_MODE", "release"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 15),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./ideabase.db"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		GitHub: GitHubConfig{
			Token:           getEnv("GITHUB_TOKEN", ""),
			Enrich:          getEnvAsBool("GITHUB_ENRICH", true),
			TrendingBaseURL: getEnv("TRENDING_BASE_URL", "https://github.com"),
		},
		Scraper: ScraperConfig{
			Languages:         normalizeScrapeLanguages(getEnvAsList("SCRAPE_LANGUAGES", []string{"all"})),
			TimeRange:         getEnv("SCRAPE_TIME_RANGE", "daily"),
			IntervalHours:     getEnvAsInt("SCRAPE_INTERVAL_HOURS", 24),
			Hour:              getEnvAsInt("SCRAPE_HOUR", 2),
			Concurrency:       getEnvAsInt("SCRAPE_CONCURRENCY", 3),
			TimeoutSeconds:    getEnvAsInt("SCRAPE_TIMEOUT_SECONDS", 30),
			RunTimeoutMinutes: getEnvAsInt("SCRAPE_RUN_TIMEOUT_MINUTES", 30),
			LockPath:          getEnv("SCHEDULER_LOCK_PATH", "./ideabase-scheduler.lock"),
		},
		AI: AIConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			Model:           getEnv("OPENAI_MODEL", "gpt-4"),
			BaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			TimeoutSeconds:  getEnvAsInt("AI_TIMEOUT_SECONDS", 90),
			MaxTokens:       getEnvAsInt("AI_MAX_TOKENS", 1500),
			RetryAttempts:   getEnvAsInt("AI_RETRY_ATTEMPTS", 4),
			RetryBaseMS:     getEnvAsInt("AI_RETRY_BASE_MS", 1000),
			RetryMaxMS:      getEnvAsInt("AI_RETRY_MAX_MS", 30000),
			Languages:       getEnvAsList("INSIGHT_LANGUAGES", []string{"en", "zh"}),
			DefaultLanguage: getEnv("DEFAULT_INSIGHT_LANGUAGE", "en"),
		},
		Workers: WorkersConfig{
			Analysis:    getEnvAsInt("ANALYSIS_WORKERS", 2),
			Scrape:      getEnvAsInt("SCRAPE_WORKERS", 1),
			PollSeconds: getEnvAsInt("WORKER_POLL_SECONDS", 5),
		},
		Admin: AdminConfig{
			Token: getEnv("ADMIN_TOKEN", ""),
		},
		Limits: LimitsConfig{
			MaxTotalResults: getEnvAsInt("MAX_TOTAL_RESULTS", 100),
			MaxPageSize:     getEnvAsInt("MAX_PAGE_SIZE", 50),
			DefaultPageSize: getEnvAsInt("DEFAULT_PAGE_SIZE", 20),
		},
	}
}

// Validate checks the settings every entry point depends on
func (c *Config) Validate() error {
	positive := map[string]int{
		"SCRAPE_INTERVAL_HOURS":      c.Scraper.IntervalHours,
		"SCRAPE_CONCURRENCY":         c.Scraper.Concurrency,
		"SCRAPE_TIMEOUT_SECONDS":     c.Scraper.TimeoutSeconds,
		"SCRAPE_RUN_TIMEOUT_MINUTES": c.Scraper.RunTimeoutMinutes,
		"AI_TIMEOUT_SECONDS":         c.AI.TimeoutSeconds,
		"ANALYSIS_WORKERS":           c.Workers.Analysis,
		"SCRAPE_WORKERS":             c.Workers.Scrape,
		"WORKER_POLL_SECONDS":        c.Workers.PollSeconds,
		"MAX_TOTAL_RESULTS":          c.Limits.MaxTotalResults,
		"MAX_PAGE_SIZE":              c.Limits.MaxPageSize,
		"DEFAULT_PAGE_SIZE":          c.Limits.DefaultPageSize,
	}
	for key, value := range positive {
		if value <= 0 {
			return &ConfigurationError{Key: key, Message: "must be a positive integer"}
		}
	}

	if c.Scraper.Hour < 0 || c.Scraper.Hour > 23 {
		return &ConfigurationError{Key: "SCRAPE_HOUR", Message: "must be between 0 and 23"}
	}

	switch c.Scraper.TimeRange {
	case "daily", "weekly", "monthly":
	default:
		return &ConfigurationError{Key: "SCRAPE_TIME_RANGE", Message: "must be daily, weekly or monthly"}
	}

	if len(c.AI.Languages) == 0 {
		return &ConfigurationError{Key: "INSIGHT_LANGUAGES", Message: "at least one analysis language is required"}
	}

	if c.Limits.DefaultPageSize > c.Limits.MaxPageSize {
		return &ConfigurationError{Key: "DEFAULT_PAGE_SIZE", Message: "must not exceed MAX_PAGE_SIZE"}
	}

	return nil
}

// RequireAI checks the credentials needed to call the generative backend
func (c *Config) RequireAI() error {
	if strings.TrimSpace(c.AI.APIKey) == "" {
		return &ConfigurationError{Key: "OPENAI_API_KEY", Message: "is required"}
	}
	if strings.TrimSpace(c.AI.Model) == "" {
		return &ConfigurationError{Key: "OPENAI_MODEL", Message: "is required"}
	}
	return nil
}

func (c *Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

func (c *Config) ScrapeRunTimeout() time.Duration {
	return time.Duration(c.Scraper.RunTimeoutMinutes) * time.Minute
}

func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

func (c *Config) WorkerPollInterval() time.Duration {
	return time.Duration(c.Workers.PollSeconds) * time.Second
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, trimming blanks
func getEnvAsList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// "all" selects the unfiltered trending page
func normalizeScrapeLanguages(languages []string) []string {
	out := make([]string, 0, len(languages))
	for _, language := range languages {
		if strings.EqualFold(language, "all") {
			language = ""
		}
		out = append(out, language)
	}
	return out
}
