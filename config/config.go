package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ProviderConfig holds the statically provisioned OAuth client for one
// provider. Providers using dynamic registration leave these empty.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// ServerConfig holds all configuration for the connect service.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`

	// AppBaseURL is the canonical externally-visible base URL of this
	// service. Redirect URIs handed to providers are built from it, so it
	// must match what each OAuth client was registered with.
	AppBaseURL string `mapstructure:"APP_BASE_URL" validate:"required,url"`

	// DefaultReturnPath is where failure redirects land when no originating
	// page is known (e.g. a callback whose flow context already expired).
	DefaultReturnPath string `mapstructure:"DEFAULT_RETURN_PATH"`

	// BackendAPIURL is the product backend that persists integrations.
	BackendAPIURL string `mapstructure:"BACKEND_API_URL" validate:"required,url"`

	// RedisAddr switches the secure store from process-local memory to
	// Redis when set. Required for multi-instance deployments.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// FlowContextTTLMin bounds how long a pending authorization may sit
	// between initiation and callback.
	FlowContextTTLMin int `mapstructure:"FLOW_CONTEXT_TTL_MIN" validate:"gt=0"`
	// ClientCredsTTLHour bounds how long dynamically-registered client
	// credentials are reused before re-registering.
	ClientCredsTTLHour int `mapstructure:"CLIENT_CREDS_TTL_HOUR" validate:"gt=0"`

	// MCPClientName is the display name sent during dynamic client
	// registration.
	MCPClientName string `mapstructure:"MCP_CLIENT_NAME"`

	// Per-provider OAuth clients, bound from <PROVIDER>_CLIENT_ID,
	// <PROVIDER>_CLIENT_SECRET and <PROVIDER>_SCOPES after unmarshalling.
	Notion    ProviderConfig `mapstructure:"-"`
	Atlassian ProviderConfig `mapstructure:"-"`
	GitHub    ProviderConfig `mapstructure:"-"`
	Figma     ProviderConfig `mapstructure:"-"`
	Slack     ProviderConfig `mapstructure:"-"`
	Sentry    ProviderConfig `mapstructure:"-"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/flowdeck-connect/")
	v.AddConfigPath("$HOME/.flowdeck-connect")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("DEFAULT_RETURN_PATH", "/integrations")
	v.SetDefault("BACKEND_API_URL", "http://localhost:9090")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "flowdeck-connect")
	v.SetDefault("FLOW_CONTEXT_TTL_MIN", 10)
	v.SetDefault("CLIENT_CREDS_TTL_HOUR", 720) // 30 days
	v.SetDefault("MCP_CLIENT_NAME", "flowdeck-connect")

	if err := v.ReadInConfig(); err != nil {
		// ConfigFileNotFoundError is acceptable, means we use defaults/env vars.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	cfg.Notion = providerFromEnv(v, "NOTION")
	cfg.Atlassian = providerFromEnv(v, "ATLASSIAN")
	cfg.GitHub = providerFromEnv(v, "GITHUB")
	cfg.Figma = providerFromEnv(v, "FIGMA")
	cfg.Slack = providerFromEnv(v, "SLACK")
	cfg.Sentry = providerFromEnv(v, "SENTRY")

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func providerFromEnv(v *viper.Viper, prefix string) ProviderConfig {
	pc := ProviderConfig{
		ClientID:     v.GetString(prefix + "_CLIENT_ID"),
		ClientSecret: v.GetString(prefix + "_CLIENT_SECRET"),
	}
	if raw := v.GetString(prefix + "_SCOPES"); raw != "" {
		pc.Scopes = strings.Fields(raw)
	}
	return pc
}
