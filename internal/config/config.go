package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Save store backend names accepted in STORY_SAVE_BACKEND.
const (
	SaveBackendFile     = "file"
	SaveBackendPostgres = "postgres"
	SaveBackendRedis    = "redis"
)

// Config holds the runtime configuration of the story server, loaded from
// the environment. Game content (characters, templates, fallbacks) lives in
// the YAML game config, see GameConfig.
type Config struct {
	// Server settings
	Port        string `envconfig:"STORY_SERVER_PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// Game config file (characters, prompt templates, fallbacks)
	GameConfigPath string `envconfig:"GAME_CONFIG_PATH" default:"config/game_config.yml"`

	// AI settings
	AIClientType  string        `envconfig:"AI_CLIENT_TYPE" default:"ollama"`
	AIBaseURL     string        `envconfig:"AI_BASE_URL" default:"http://localhost:11434"`
	AIAPIKey      string        `envconfig:"AI_API_KEY"`
	AIModel       string        `envconfig:"AI_MODEL" default:"mistral"`
	AITimeout     time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AITemperature float64       `envconfig:"AI_TEMPERATURE" default:"0.7"`
	AITopP        float64       `envconfig:"AI_TOP_P" default:"0.9"`
	AIMaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"2048"`

	// Save store settings
	SaveBackend string `envconfig:"STORY_SAVE_BACKEND" default:"file"`
	SaveDir     string `envconfig:"STORY_SAVE_DIR" default:"saves"`

	// PostgreSQL settings (save backend "postgres")
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"story"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`

	// Redis settings (save backend "redis")
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Speech synthesis settings
	SpeechEnabled  bool          `envconfig:"SPEECH_ENABLED" default:"false"`
	SpeechBaseURL  string        `envconfig:"SPEECH_BASE_URL" default:"http://localhost:8880"`
	SpeechCacheDir string        `envconfig:"SPEECH_CACHE_DIR" default:"cache/audio"`
	SpeechTimeout  time.Duration `envconfig:"SPEECH_TIMEOUT" default:"30s"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig loads the runtime configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load story server configuration: %w", err)
	}

	switch cfg.SaveBackend {
	case SaveBackendFile, SaveBackendPostgres, SaveBackendRedis:
	default:
		return nil, fmt.Errorf("unknown save backend: '%s'", cfg.SaveBackend)
	}

	return &cfg, nil
}
