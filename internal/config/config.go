package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Groq      GroqConfig
	Suno      SunoConfig
	R2        R2Config
	Workspace WorkspaceConfig
	Pipeline  PipelineConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type DatabaseConfig struct {
	Path string // sqlite database file
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	CreatePerHour int
	RetryPerHour  int
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type SunoConfig struct {
	APIKey  string
	BaseURL string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type WorkspaceConfig struct {
	LocalDir string // fallback mirror directory when R2 is not configured
}

// PipelineConfig holds the knobs for the album production pipeline.
type PipelineConfig struct {
	SubmitStagger    time.Duration // minimum spacing between vendor submissions
	RecoveryInterval time.Duration // reconciliation cadence
	LeaseTTL         time.Duration // orchestrator run lease lifetime
	SongRetryCap     int           // global failed-song retry cap
	RetryBatch       int           // max songs retried per recovery pass
	SafetyRetries    int           // corrective re-prompts before redaction
	MinLyricsLength  int           // shorter completions are failures
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("GROQ_API_KEY")
	readSecret("SUNO_API_KEY")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("database.path", "DATABASE_PATH")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("ratelimit.create_per_hour", "RATELIMIT_CREATE_PER_HOUR")
	_ = viper.BindEnv("ratelimit.retry_per_hour", "RATELIMIT_RETRY_PER_HOUR")
	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("groq.model", "GROQ_MODEL")
	_ = viper.BindEnv("suno.api_key", "SUNO_API_KEY")
	_ = viper.BindEnv("suno.base_url", "SUNO_BASE_URL")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("workspace.local_dir", "WORKSPACE_LOCAL_DIR")
	_ = viper.BindEnv("pipeline.submit_stagger_seconds", "PIPELINE_SUBMIT_STAGGER_SECONDS")
	_ = viper.BindEnv("pipeline.recovery_interval_seconds", "PIPELINE_RECOVERY_INTERVAL_SECONDS")
	_ = viper.BindEnv("pipeline.lease_ttl_seconds", "PIPELINE_LEASE_TTL_SECONDS")
	_ = viper.BindEnv("pipeline.song_retry_cap", "PIPELINE_SONG_RETRY_CAP")
	_ = viper.BindEnv("pipeline.retry_batch", "PIPELINE_RETRY_BATCH")
	_ = viper.BindEnv("pipeline.safety_retries", "PIPELINE_SAFETY_RETRIES")
	_ = viper.BindEnv("pipeline.min_lyrics_length", "PIPELINE_MIN_LYRICS_LENGTH")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("database.path", "data/producer.db")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("ratelimit.create_per_hour", 10)
	viper.SetDefault("ratelimit.retry_per_hour", 30)

	// Groq defaults
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "llama-3.3-70b-versatile")

	// Suno defaults
	viper.SetDefault("suno.base_url", "https://api.sunoapi.org")

	// Workspace defaults
	viper.SetDefault("workspace.local_dir", "data/workspace")

	// Pipeline defaults
	viper.SetDefault("pipeline.submit_stagger_seconds", 30)
	viper.SetDefault("pipeline.recovery_interval_seconds", 120)
	viper.SetDefault("pipeline.lease_ttl_seconds", 1800)
	viper.SetDefault("pipeline.song_retry_cap", 3)
	viper.SetDefault("pipeline.retry_batch", 5)
	viper.SetDefault("pipeline.safety_retries", 2)
	viper.SetDefault("pipeline.min_lyrics_length", 120)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			CreatePerHour: viper.GetInt("ratelimit.create_per_hour"),
			RetryPerHour:  viper.GetInt("ratelimit.retry_per_hour"),
		},
		Groq: GroqConfig{
			APIKey:  viper.GetString("groq.api_key"),
			BaseURL: viper.GetString("groq.base_url"),
			Model:   viper.GetString("groq.model"),
		},
		Suno: SunoConfig{
			APIKey:  viper.GetString("suno.api_key"),
			BaseURL: viper.GetString("suno.base_url"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Workspace: WorkspaceConfig{
			LocalDir: viper.GetString("workspace.local_dir"),
		},
		Pipeline: PipelineConfig{
			SubmitStagger:    time.Duration(viper.GetInt("pipeline.submit_stagger_seconds")) * time.Second,
			RecoveryInterval: time.Duration(viper.GetInt("pipeline.recovery_interval_seconds")) * time.Second,
			LeaseTTL:         time.Duration(viper.GetInt("pipeline.lease_ttl_seconds")) * time.Second,
			SongRetryCap:     viper.GetInt("pipeline.song_retry_cap"),
			RetryBatch:       viper.GetInt("pipeline.retry_batch"),
			SafetyRetries:    viper.GetInt("pipeline.safety_retries"),
			MinLyricsLength:  viper.GetInt("pipeline.min_lyrics_length"),
		},
	}

	return cfg, nil
}
