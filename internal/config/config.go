package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/rezonia/fatoora/internal/logger"
	"github.com/rezonia/fatoora/internal/submission"
)

// Config is the process configuration, read from FATOORA_* variables
type Config struct {
	// HTTP server
	ServerAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	Debug         bool

	// Gateway
	Environment     submission.Environment
	GatewayURL      string
	GatewayTimeout  time.Duration
	CertificateFile string
	PrivateKeyFile  string
	Secret          string

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// LoadDotEnv loads variables from the given files, or ./.env when none is
// given. Missing files are ignored; existing variables are not overridden.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	var err error
	config := &Config{
		ServerAddress:   getEnv("FATOORA_ADDRESS", ":8080"),
		GatewayURL:      getEnv("FATOORA_GATEWAY_URL", ""),
		CertificateFile: getEnv("FATOORA_CERTIFICATE", ""),
		PrivateKeyFile:  getEnv("FATOORA_PRIVATE_KEY", ""),
		Secret:          getEnv("FATOORA_SECRET", ""),
		LogLevel:        getEnv("FATOORA_LOG_LEVEL", "info"),
		LogFormat:       getEnv("FATOORA_LOG_FORMAT", "console"),
		LogTimeFormat:   getEnv("FATOORA_LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:       getEnv("FATOORA_LOG_OUTPUT", "stderr"),
	}

	if config.Environment, err = submission.ParseEnvironment(getEnv("FATOORA_ENVIRONMENT", string(submission.Sandbox))); err != nil {
		return nil, fmt.Errorf("FATOORA_ENVIRONMENT: %w", err)
	}
	if config.ReadTimeout, err = getDuration("FATOORA_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if config.WriteTimeout, err = getDuration("FATOORA_WRITE_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}
	if config.GatewayTimeout, err = getDuration("FATOORA_GATEWAY_TIMEOUT", submission.DefaultTimeout); err != nil {
		return nil, err
	}
	if config.Debug, err = getBool("FATOORA_DEBUG", false); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("FATOORA_ADDRESS must not be empty")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.GatewayTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// GatewayBaseURL returns the explicit gateway URL or the environment's default
func (c *Config) GatewayBaseURL() string {
	if c.GatewayURL != "" {
		return c.GatewayURL
	}
	return c.Environment.BaseURL()
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
