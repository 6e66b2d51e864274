package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App           App           `mapstructure:"app"`
	Database      Database      `mapstructure:"database"`
	AI            AI            `mapstructure:"ai"`
	Pipeline      Pipeline      `mapstructure:"pipeline"`
	Feeds         Feeds         `mapstructure:"feeds"`
	Schedule      Schedule      `mapstructure:"schedule"`
	Lock          Lock          `mapstructure:"lock"`
	Server        Server        `mapstructure:"server"`
	Observability Observability `mapstructure:"observability"`
	Logging       Logging       `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Environment string `mapstructure:"environment"`
	DataDir     string `mapstructure:"data_dir"`
	ConfigFile  string `mapstructure:"config_file"`
}

// Database holds PostgreSQL configuration
type Database struct {
	ConnectionString string `mapstructure:"connection_string"`
	MaxOpenConns     int    `mapstructure:"max_open_conns"`
	MaxIdleConns     int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  string `mapstructure:"conn_max_lifetime"`
}

// AI holds text-generation configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
	Cache  AICache      `mapstructure:"cache"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	Timeout           string  `mapstructure:"timeout"`
	MaxTokens         int32   `mapstructure:"max_tokens"`
	Temperature       float32 `mapstructure:"temperature"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
}

// AICache holds the response cache configuration
type AICache struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	TTL     string `mapstructure:"ttl"`
}

// Pipeline holds orchestrator tuning
type Pipeline struct {
	FetchConcurrency int    `mapstructure:"fetch_concurrency"`
	StageTimeout     string `mapstructure:"stage_timeout"`
}

// Feeds holds RSS/feed configuration
type Feeds struct {
	UserAgent            string `mapstructure:"user_agent"`
	Timeout              string `mapstructure:"timeout"`
	MaxDescriptionLength int    `mapstructure:"max_description_length"`
	SeedFile             string `mapstructure:"seed_file"`
}

// Schedule holds cron expressions for the pipeline stages
type Schedule struct {
	Enabled      bool   `mapstructure:"enabled"`
	Sync         string `mapstructure:"sync"`
	Digest       string `mapstructure:"digest"`
	Timezone     string `mapstructure:"timezone"`
	RunOnStartup bool   `mapstructure:"run_on_startup"`
}

// Lock holds cross-process run lock configuration
type Lock struct {
	Backend  string `mapstructure:"backend"` // none, file, redis
	Dir      string `mapstructure:"dir"`
	RedisURL string `mapstructure:"redis_url"`
	TTL      string `mapstructure:"ttl"`
}

// Server holds HTTP server configuration
type Server struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Observability holds metrics and analytics configuration
type Observability struct {
	MetricsEnabled bool          `mapstructure:"metrics_enabled"`
	PostHog        PostHogConfig `mapstructure:"posthog"`
}

// PostHogConfig holds PostHog analytics configuration
type PostHogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Host    string `mapstructure:"host"`
}

// Logging holds logging configuration
type Logging struct {
	Level string `mapstructure:"level"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".axial")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached configuration and viper state. Tests only.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.data_dir", ".axial")

	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	viper.SetDefault("ai.gemini.model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.gemini.timeout", "30s")
	viper.SetDefault("ai.gemini.max_tokens", 512)
	viper.SetDefault("ai.gemini.temperature", 0.3)
	viper.SetDefault("ai.gemini.requests_per_minute", 30)
	viper.SetDefault("ai.cache.enabled", true)
	viper.SetDefault("ai.cache.path", ".axial/llm-cache.db")
	viper.SetDefault("ai.cache.ttl", "168h")

	viper.SetDefault("pipeline.fetch_concurrency", 4)
	viper.SetDefault("pipeline.stage_timeout", "25m")

	viper.SetDefault("feeds.user_agent", "Axial.news/1.0 RSS Reader")
	viper.SetDefault("feeds.timeout", "15s")
	viper.SetDefault("feeds.max_description_length", 1000)

	viper.SetDefault("schedule.enabled", true)
	viper.SetDefault("schedule.sync", "*/30 * * * *")
	viper.SetDefault("schedule.digest", "0 6 * * *")
	viper.SetDefault("schedule.timezone", "UTC")
	viper.SetDefault("schedule.run_on_startup", true)

	viper.SetDefault("lock.backend", "file")
	viper.SetDefault("lock.dir", ".axial/locks")
	viper.SetDefault("lock.ttl", "30m")

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 3001)
	viper.SetDefault("server.allowed_origins", []string{"*"})

	viper.SetDefault("observability.metrics_enabled", true)
	viper.SetDefault("observability.posthog.enabled", false)
	viper.SetDefault("observability.posthog.host", "https://us.i.posthog.com")

	viper.SetDefault("logging.level", "info")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("database.connection_string", []string{
		"DATABASE_URL",
		"POSTGRES_URL",
	})

	// Gemini API key - support multiple formats
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("lock.redis_url", []string{
		"REDIS_URL",
	})

	bindEnvKeys("observability.posthog.api_key", []string{
		"POSTHOG_API_KEY",
	})

	bindEnvKeys("server.port", []string{
		"PORT",
	})

	bindEnvKeys("logging.level", []string{
		"LOG_LEVEL",
		"AXIAL_LOG_LEVEL",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	config.App.DataDir = expandPath(config.App.DataDir)
	config.AI.Cache.Path = expandPath(config.AI.Cache.Path)
	config.Lock.Dir = expandPath(config.Lock.Dir)
	config.Feeds.SeedFile = expandPath(config.Feeds.SeedFile)
	config.Lock.Backend = strings.ToLower(strings.TrimSpace(config.Lock.Backend))

	// Validate durations
	durations := map[string]string{
		"database.conn_max_lifetime": config.Database.ConnMaxLifetime,
		"ai.gemini.timeout":          config.AI.Gemini.Timeout,
		"ai.cache.ttl":               config.AI.Cache.TTL,
		"pipeline.stage_timeout":     config.Pipeline.StageTimeout,
		"feeds.timeout":              config.Feeds.Timeout,
		"lock.ttl":                   config.Lock.TTL,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	if _, err := time.LoadLocation(config.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule.timezone: %s", config.Schedule.Timezone)
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures required configuration is consistent
func validateConfig(config *Config) error {
	var errs []string

	switch config.Lock.Backend {
	case "none", "file":
	case "redis":
		if config.Lock.RedisURL == "" {
			errs = append(errs, "Redis lock backend requires lock.redis_url. Set REDIS_URL environment variable")
		}
	default:
		errs = append(errs, fmt.Sprintf("Unknown lock backend: %s. Supported: none, file, redis", config.Lock.Backend))
	}

	if config.Pipeline.FetchConcurrency < 1 {
		errs = append(errs, "pipeline.fetch_concurrency must be at least 1")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port out of range: %d", config.Server.Port))
	}

	if config.Observability.PostHog.Enabled && config.Observability.PostHog.APIKey == "" {
		errs = append(errs, "PostHog enabled but missing API key. Set POSTHOG_API_KEY environment variable")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

// Duration parses a duration that postProcessConfig already validated.
// An empty value yields fallback.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// Convenience getters for commonly used configuration values
func GetDatabase() Database           { return Get().Database }
func GetAI() AI                       { return Get().AI }
func GetPipeline() Pipeline           { return Get().Pipeline }
func GetFeeds() Feeds                 { return Get().Feeds }
func GetSchedule() Schedule           { return Get().Schedule }
func GetLock() Lock                   { return Get().Lock }
func GetServer() Server               { return Get().Server }
func GetObservability() Observability { return Get().Observability }
func GetPostHogConfig() PostHogConfig { return Get().Observability.PostHog }

// HasGeminiAPIKey returns true if a usable Gemini key is configured
func HasGeminiAPIKey() bool {
	return isValidAPIKey(Get().AI.Gemini.APIKey)
}

// isValidAPIKey checks if an API key is valid (not empty and not a placeholder)
func isValidAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	placeholders := []string{
		"your-api-key", "your-gemini-key", "YOUR_API_KEY", "PLACEHOLDER", "CHANGE_ME",
	}
	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}

	return true
}
