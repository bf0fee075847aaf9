// Package config loads application configuration from environment
// variables (SFS_ prefix) with optional YAML file overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	WebSocket  WebSocketConfig  `yaml:"websocket" envconfig:"WEBSOCKET"`
	Workflow   WorkflowConfig   `yaml:"workflow" envconfig:"WORKFLOW"`
	Operations OperationsConfig `yaml:"operations" envconfig:"OPERATIONS"`
	Guardian   GuardianConfig   `yaml:"guardian" envconfig:"GUARDIAN"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// SecurityConfig contains CORS and rate limiting configuration.
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// PathsConfig contains file system paths configuration.
type PathsConfig struct {
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	AuditDBPath string `yaml:"audit_db_path" envconfig:"AUDIT_DB_PATH" default:"data/audit.db"`
	ExportDir   string `yaml:"export_dir" envconfig:"EXPORT_DIR" default:"data/exports"`
	LogsDir     string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// WebSocketConfig contains WebSocket configuration.
type WebSocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
}

// WorkflowConfig controls workflow session lifecycle.
type WorkflowConfig struct {
	SessionTTL    time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" default:"30m"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL" default:"5m"`
}

// OperationsConfig controls the background job queue.
type OperationsConfig struct {
	Workers      int           `yaml:"workers" envconfig:"WORKERS" default:"4"`
	MaxAttempts  int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" default:"3"`
	BackoffBase  time.Duration `yaml:"backoff_base" envconfig:"BACKOFF_BASE" default:"10s"`
	JobRetention time.Duration `yaml:"job_retention" envconfig:"JOB_RETENTION" default:"24h"`
}

// GuardianConfig controls the assumption checker.
type GuardianConfig struct {
	Alpha      float64 `yaml:"alpha" envconfig:"ALPHA" default:"0.05"`
	MinSample  int     `yaml:"min_sample" envconfig:"MIN_SAMPLE" default:"8"`
	StrictMode bool    `yaml:"strict_mode" envconfig:"STRICT_MODE" default:"false"`
}

// Load loads configuration from environment variables and config file.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("SFS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := getConfigFilePath()
	if configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence
// for anything the environment actually set; envconfig has already
// applied defaults, so file values only fill true zero slots).
func mergeConfigs(fileConfig, envConfig Config) Config {
	if fileConfig.Server.Port != 0 {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if fileConfig.Logging.Level != "" {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	if fileConfig.Logging.Output != "" {
		envConfig.Logging.Output = fileConfig.Logging.Output
	}
	if fileConfig.Paths.DataDir != "" {
		envConfig.Paths.DataDir = fileConfig.Paths.DataDir
	}
	if fileConfig.Paths.AuditDBPath != "" {
		envConfig.Paths.AuditDBPath = fileConfig.Paths.AuditDBPath
	}
	if len(fileConfig.Security.AllowedOrigins) > 0 {
		envConfig.Security.AllowedOrigins = fileConfig.Security.AllowedOrigins
	}
	if fileConfig.Workflow.SessionTTL != 0 {
		envConfig.Workflow.SessionTTL = fileConfig.Workflow.SessionTTL
	}
	if fileConfig.Operations.Workers != 0 {
		envConfig.Operations.Workers = fileConfig.Operations.Workers
	}
	if fileConfig.Guardian.Alpha != 0 {
		envConfig.Guardian.Alpha = fileConfig.Guardian.Alpha
	}
	envConfig.Guardian.StrictMode = envConfig.Guardian.StrictMode || fileConfig.Guardian.StrictMode

	return envConfig
}

// EnsureDirectories creates the data, export, and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.ExportDir,
		c.Paths.LogsDir,
		filepath.Dir(c.Paths.AuditDBPath),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// validate validates the configuration.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Guardian.Alpha <= 0 || c.Guardian.Alpha >= 1 {
		return fmt.Errorf("guardian alpha must be in (0, 1), got %g", c.Guardian.Alpha)
	}

	if c.Operations.Workers <= 0 {
		return fmt.Errorf("operations workers must be positive")
	}

	if c.Workflow.SessionTTL <= 0 {
		return fmt.Errorf("workflow session TTL must be positive")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}

	return nil
}

// getConfigFilePath returns the path to the config file, if any.
func getConfigFilePath() string {
	if path := os.Getenv("SFS_CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns the default configuration without consulting the
// environment. Used by tests and as a fallback.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			DataDir:     "data",
			AuditDBPath: "data/audit.db",
			ExportDir:   "data/exports",
			LogsDir:     "logs",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		Workflow: WorkflowConfig{
			SessionTTL:    30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Operations: OperationsConfig{
			Workers:      4,
			MaxAttempts:  3,
			BackoffBase:  10 * time.Second,
			JobRetention: 24 * time.Hour,
		},
		Guardian: GuardianConfig{
			Alpha:     0.05,
			MinSample: 8,
		},
	}
}
