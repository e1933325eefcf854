package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Backup targets
const (
	BackupTargetDir = "dir"
	BackupTargetS3  = "s3"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment" validate:"oneof=development production test"`
	Debug       bool   `mapstructure:"debug"`
}

// StorageConfig selects where the document lives
type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=file sqlite postgres redis"`
	// DataPath is the JSON file for the file driver. Empty means the
	// platform data directory.
	DataPath string `mapstructure:"data_path"`
	// DocumentName keys the document in SQL and Redis backends.
	DocumentName string `mapstructure:"document_name" validate:"required"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// SQLiteConfig holds SQLite configuration
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

// BackupConfig holds backup target configuration
type BackupConfig struct {
	Target    string `mapstructure:"target" validate:"oneof=dir s3"`
	Dir       string `mapstructure:"dir"`
	Bucket    string `mapstructure:"bucket" validate:"required_if=Target s3"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format" validate:"oneof=json console"`
	Output   string `mapstructure:"output" validate:"oneof=stdout file"`
	Filename string `mapstructure:"filename" validate:"required_if=Output file"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from various sources
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	return LoadFrom(viper.New())
}

// LoadFrom reads configuration through v. Tests pass their own instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Tofu")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Storage defaults
	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.data_path", "")
	v.SetDefault("storage.document_name", "tofu_data")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "tofu")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "30s")

	// SQLite defaults
	v.SetDefault("sqlite.path", "tofu.db")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "tofu:")

	// Backup defaults
	v.SetDefault("backup.target", BackupTargetDir)
	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.bucket", "")
	v.SetDefault("backup.prefix", "tofu/")
	v.SetDefault("backup.region", "us-east-1")
	v.SetDefault("backup.endpoint", "")
	v.SetDefault("backup.access_key", "")
	v.SetDefault("backup.secret_key", "")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.filename", "")

	// Server defaults
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Security defaults
	v.SetDefault("security.cors_allowed_origins", "*")
	v.SetDefault("security.rate_limit_requests", 100)
	v.SetDefault("security.rate_limit_window", "1m")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
}

func bindEnvVars(v *viper.Viper) {
	// App
	_ = v.BindEnv("app.name", "APP_NAME")
	_ = v.BindEnv("app.version", "APP_VERSION")
	_ = v.BindEnv("app.environment", "APP_ENVIRONMENT")
	_ = v.BindEnv("app.debug", "APP_DEBUG")

	// Storage
	_ = v.BindEnv("storage.driver", "TOFU_STORAGE_DRIVER")
	_ = v.BindEnv("storage.data_path", "TOFU_DATA_PATH")
	_ = v.BindEnv("storage.document_name", "TOFU_DOCUMENT_NAME")

	// Database
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.name", "DB_NAME")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.ssl_mode", "DB_SSL_MODE")
	_ = v.BindEnv("database.max_open_conns", "DB_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.max_idle_conns", "DB_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.conn_max_lifetime", "DB_CONN_MAX_LIFETIME")
	_ = v.BindEnv("database.conn_max_idle_time", "DB_CONN_MAX_IDLE_TIME")

	// SQLite
	_ = v.BindEnv("sqlite.path", "SQLITE_PATH")

	// Redis
	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("redis.prefix", "REDIS_PREFIX")

	// Backup
	_ = v.BindEnv("backup.target", "BACKUP_TARGET")
	_ = v.BindEnv("backup.dir", "BACKUP_DIR")
	_ = v.BindEnv("backup.bucket", "BACKUP_BUCKET")
	_ = v.BindEnv("backup.prefix", "BACKUP_PREFIX")
	_ = v.BindEnv("backup.region", "BACKUP_REGION")
	_ = v.BindEnv("backup.endpoint", "BACKUP_ENDPOINT")
	_ = v.BindEnv("backup.access_key", "BACKUP_ACCESS_KEY")
	_ = v.BindEnv("backup.secret_key", "BACKUP_SECRET_KEY")

	// Logger
	_ = v.BindEnv("logger.level", "LOG_LEVEL")
	_ = v.BindEnv("logger.format", "LOG_FORMAT")
	_ = v.BindEnv("logger.output", "LOG_OUTPUT")
	_ = v.BindEnv("logger.filename", "LOG_FILENAME")

	// Server
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.host", "SERVER_HOST")
	_ = v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	_ = v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	_ = v.BindEnv("server.idle_timeout", "SERVER_IDLE_TIMEOUT")

	// Security
	_ = v.BindEnv("security.cors_allowed_origins", "CORS_ALLOWED_ORIGINS")
	_ = v.BindEnv("security.rate_limit_requests", "RATE_LIMIT_REQUESTS")
	_ = v.BindEnv("security.rate_limit_window", "RATE_LIMIT_WINDOW")

	// Metrics
	_ = v.BindEnv("metrics.enabled", "ENABLE_METRICS")
}

func validateConfig(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	if cfg.Storage.Driver == DriverPostgres {
		if cfg.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if cfg.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if cfg.Storage.Driver == DriverSQLite && cfg.SQLite.Path == "" {
		return fmt.Errorf("sqlite path is required")
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (cfg *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// GetAddr returns the Redis address
func (cfg *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// GetAddr returns the HTTP listen address
func (cfg *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// IsDevelopment returns true if the environment is development
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment == "development"
}
