package config

import (
	"fmt"
	"os"
	"strings"

	"candle-replay/src/helpers"
	"candle-replay/src/models"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces the environment overrides, e.g. REPLAY_PORT.
const EnvPrefix = "REPLAY"

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig reads the YAML file, fills defaults, applies REPLAY_* environment
// overrides and validates the result.
func NewConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()
	config.applyEnv(newEnv())

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "candle-replay"
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.GrpcPort == 0 {
		c.GrpcPort = 50051
	}

	if c.Replay.DefaultSpeed == 0 {
		c.Replay.DefaultSpeed = 1
	}
	if c.Replay.DataDir == "" {
		c.Replay.DataDir = "data"
	}
	if c.Replay.DefaultFile == "" {
		c.Replay.DefaultFile = "temp.json"
	}
	if c.Replay.SendBuffer == 0 {
		c.Replay.SendBuffer = 256
	}

	if c.Storage.DBType == "" {
		c.Storage.DBType = "none"
	}

	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 30
	}

	if c.Provider.Name == "" {
		c.Provider.Name = "twelvedata"
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://api.twelvedata.com"
	}
}

// -----------------------------------------------------------------------------

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// applyEnv overrides file values with any REPLAY_* variable that is set.
func (c *Config) applyEnv(v *viper.Viper) {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setFloat := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}

	setString("name", &c.Name)
	setString("host", &c.Host)
	setInt("port", &c.Port)
	setString("log_level", &c.LogLevel)
	setString("grpc_host", &c.GrpcHost)
	setInt("grpc_port", &c.GrpcPort)

	setFloat("default_speed", &c.Replay.DefaultSpeed)
	setFloat("max_speed", &c.Replay.MaxSpeed)
	setString("data_dir", &c.Replay.DataDir)
	setString("default_file", &c.Replay.DefaultFile)

	setString("db_type", &c.Storage.DBType)
	setString("db_path", &c.Storage.DBPath)
	setString("db_connection_string", &c.Storage.DBConnectionString)
	setString("ledger_path", &c.Storage.LedgerPath)

	setString("api_key", &c.Provider.APIKey)
	setString("base_url", &c.Provider.BaseURL)
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return helpers.NewConfigurationError("application name cannot be empty")
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "WARN", "ERROR", "CRITICAL":
	default:
		return helpers.NewConfigurationError("unknown log level %q", c.LogLevel)
	}

	if c.Host == "" {
		return helpers.NewConfigurationError("server host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return helpers.NewConfigurationError("invalid server port number: %d", c.Port)
	}
	if c.GrpcPort < 0 || c.GrpcPort > 65535 {
		return helpers.NewConfigurationError("invalid gRPC port number: %d", c.GrpcPort)
	}
	if c.GrpcPort == c.Port && c.GrpcHost == c.Host {
		return helpers.NewConfigurationError("gRPC and HTTP servers cannot share port %d", c.Port)
	}

	// Validate Replay configuration
	if c.Replay.DefaultSpeed <= 0 {
		return helpers.NewConfigurationError("default speed must be greater than 0")
	}
	if c.Replay.MaxSpeed < 0 {
		return helpers.NewConfigurationError("max speed cannot be negative")
	}
	if c.Replay.MaxSpeed > 0 && c.Replay.DefaultSpeed > c.Replay.MaxSpeed {
		return helpers.NewConfigurationError("default speed %v exceeds max speed %v", c.Replay.DefaultSpeed, c.Replay.MaxSpeed)
	}
	if c.Replay.SendBuffer < 1 {
		return helpers.NewConfigurationError("send buffer must be at least 1")
	}

	// Validate Storage configuration
	switch strings.ToLower(c.Storage.DBType) {
	case "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return helpers.NewConfigurationError("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return helpers.NewConfigurationError("connection string cannot be empty for postgres")
		}
	default:
		return helpers.NewConfigurationError("unknown database type %q", c.Storage.DBType)
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return helpers.NewConfigurationError("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return helpers.NewConfigurationError("max retries cannot be negative")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
