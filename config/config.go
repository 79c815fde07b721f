package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server. Tags use
// mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Token codec configuration. TokenSecret selects symmetric signing;
	// the PEM file pair selects RS256. Exactly one must be configured.
	TokenSecret         string `mapstructure:"TOKEN_SECRET"`
	TokenPrivateKeyFile string `mapstructure:"TOKEN_PRIVATE_KEY_FILE"`
	TokenPublicKeyFile  string `mapstructure:"TOKEN_PUBLIC_KEY_FILE"`
	TokenIssuer         string `mapstructure:"TOKEN_ISSUER"`
	TokenTTLMin         int    `mapstructure:"TOKEN_TTL_MIN"`

	// Optional shared token cache. Empty RedisAddr selects the in-process
	// store.
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	CacheDefaultMin int    `mapstructure:"CACHE_DEFAULT_MIN"`
}

// LoadConfig reads configuration from file, environment variables, and
// defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/gatekeeper/")
	v.AddConfigPath("$HOME/.gatekeeper")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/gatekeeper_dev")
	v.SetDefault("MONGO_DB_NAME", "gatekeeper_dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "gatekeeper")
	v.SetDefault("TOKEN_ISSUER", "gatekeeper")
	v.SetDefault("TOKEN_TTL_MIN", 60)
	v.SetDefault("CACHE_DEFAULT_MIN", 15)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file means defaults and env vars apply; anything
		// else is a real failure.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if cfg.TokenSecret == "" && (cfg.TokenPrivateKeyFile == "" || cfg.TokenPublicKeyFile == "") {
		return nil, errors.New("config must define TOKEN_SECRET or the TOKEN_PRIVATE_KEY_FILE/TOKEN_PUBLIC_KEY_FILE pair")
	}

	return &cfg, nil
}
