package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".atmd"
	envPrefix  = "ATMD"

	KeyWorkers         = "processing.workers"
	KeyQueueSize       = "processing.queue_size"
	KeyAttempts        = "processing.attempts"
	KeyRetryInterval   = "processing.retry_interval"
	KeyLockWait        = "processing.lock_wait"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyCredentialsPath = "credentials.path"
)

type Processing struct {
	Workers       int
	QueueSize     int
	Attempts      int
	RetryInterval time.Duration
	LockWait      time.Duration
}

type Log struct {
	Level  string
	Format string
}

type Config struct {
	Processing      Processing
	Log             Log
	CredentialsPath string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyWorkers, 16)
	v.SetDefault(KeyQueueSize, 1024)
	v.SetDefault(KeyAttempts, 3)
	v.SetDefault(KeyRetryInterval, time.Duration(0))
	v.SetDefault(KeyLockWait, time.Duration(0))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyCredentialsPath, "")
}

// LoadDotEnv loads .env files into the process environment. Missing files are
// not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	return nil
}

// Load reads ~/.atmd/config.toml when present and applies ATMD_* environment
// overrides, e.g. ATMD_PROCESSING_WORKERS.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, configDir))
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Processing: Processing{
			Workers:       v.GetInt(KeyWorkers),
			QueueSize:     v.GetInt(KeyQueueSize),
			Attempts:      v.GetInt(KeyAttempts),
			RetryInterval: v.GetDuration(KeyRetryInterval),
			LockWait:      v.GetDuration(KeyLockWait),
		},
		Log: Log{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
		CredentialsPath: v.GetString(KeyCredentialsPath),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Processing.Workers <= 0:
		return fmt.Errorf("%s must be positive, got %d", KeyWorkers, c.Processing.Workers)
	case c.Processing.QueueSize <= 0:
		return fmt.Errorf("%s must be positive, got %d", KeyQueueSize, c.Processing.QueueSize)
	case c.Processing.Attempts <= 0:
		return fmt.Errorf("%s must be positive, got %d", KeyAttempts, c.Processing.Attempts)
	case c.Processing.RetryInterval < 0:
		return fmt.Errorf("%s must not be negative", KeyRetryInterval)
	case c.Processing.LockWait < 0:
		return fmt.Errorf("%s must not be negative", KeyLockWait)
	}

	return nil
}
