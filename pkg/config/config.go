package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers understood by the server bootstrap.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Log       LogConfig
	Kernel    KernelConfig
	Optimizer OptimizerConfig
	Features  FeatureConfig
}

// StoreConfig selects the persistence adapter backing project documents.
type StoreConfig struct {
	Driver  string
	FileDir string
	Prefix  string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig gates mutating routes behind bearer tokens issued elsewhere.
type AuthConfig struct {
	Enabled bool
	Secret  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// KernelConfig tunes the session controller.
type KernelConfig struct {
	UndoDepth   int
	DefaultTerm string
}

// OptimizerConfig governs optimization runs and their proposals.
type OptimizerConfig struct {
	ProposalTTL   time.Duration
	Workers       int
	MaxIterations int
	BackupDir     string
}

// FeatureConfig toggles optional surfaces of the HTTP shell.
type FeatureConfig struct {
	Metrics  bool
	EventsWS bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Store = StoreConfig{
		Driver:  strings.ToLower(v.GetString("STORE_DRIVER")),
		FileDir: v.GetString("STORE_FILE_DIR"),
		Prefix:  v.GetString("STORE_PREFIX"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		Enabled: v.GetBool("AUTH_ENABLED"),
		Secret:  v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	undoDepth := v.GetInt("UNDO_DEPTH")
	if undoDepth <= 0 {
		undoDepth = 50
	}
	cfg.Kernel = KernelConfig{
		UndoDepth:   undoDepth,
		DefaultTerm: v.GetString("DEFAULT_TERM"),
	}

	workers := v.GetInt("OPTIMIZER_WORKERS")
	if workers <= 0 {
		workers = 1
	}
	cfg.Optimizer = OptimizerConfig{
		ProposalTTL:   parseDuration(v.GetString("OPTIMIZER_PROPOSAL_TTL"), 30*time.Minute),
		Workers:       workers,
		MaxIterations: v.GetInt("OPTIMIZER_MAX_ITERATIONS"),
		BackupDir:     v.GetString("BACKUP_DIR"),
	}

	cfg.Features = FeatureConfig{
		Metrics:  v.GetBool("ENABLE_METRICS"),
		EventsWS: v.GetBool("ENABLE_EVENTS_WS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_DRIVER", StoreMemory)
	v.SetDefault("STORE_FILE_DIR", "./data")
	v.SetDefault("STORE_PREFIX", "edt:")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "edt")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UNDO_DEPTH", 50)
	v.SetDefault("DEFAULT_TERM", "autumn")

	v.SetDefault("OPTIMIZER_PROPOSAL_TTL", "30m")
	v.SetDefault("OPTIMIZER_WORKERS", 1)
	v.SetDefault("OPTIMIZER_MAX_ITERATIONS", 1000)
	v.SetDefault("BACKUP_DIR", "./backups")

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("ENABLE_EVENTS_WS", true)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
