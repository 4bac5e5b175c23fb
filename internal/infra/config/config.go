// Package config provides application-wide configuration loaded from env vars,
// optionally seeded from a YAML file. Every field has a safe default so the
// binary starts locally without any setup; provider credentials are simply empty.
//
// A loaded Config is an immutable snapshot: callers pass it by value and never
// mutate it after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matiasleandrokruk/aiweb/internal/infra/llm"
)

// Config holds runtime configuration for the gateway.
type Config struct {
	// Direct provider
	OpenAIAPIKey  string `yaml:"openai_api_key"`  // OPENAI_API_KEY
	OpenAIBaseURL string `yaml:"openai_base_url"` // OPENAI_BASE_URL, default: SDK default

	// Hosted provider (all three of key, endpoint, deployment select it)
	AzureAPIKey     string `yaml:"azure_openai_api_key"`     // AZURE_OPENAI_API_KEY
	AzureEndpoint   string `yaml:"azure_openai_endpoint"`    // AZURE_OPENAI_ENDPOINT
	AzureDeployment string `yaml:"azure_openai_deployment"`  // AZURE_OPENAI_DEPLOYMENT
	AzureAPIVersion string `yaml:"azure_openai_api_version"` // AZURE_OPENAI_API_VERSION, default: "2024-02-15-preview"

	// Azure responses/files/vector_stores need a newer preview than chat completions.
	AzureRetrievalAPIVersion string `yaml:"azure_openai_retrieval_api_version"` // AZURE_OPENAI_RETRIEVAL_API_VERSION, default: "2025-03-01-preview"

	// Temperature is sent only when non-zero. gpt-5 rejects anything but the
	// default, so there is no fixed default here.
	Temperature float64 `yaml:"llm_temperature"` // LLM_TEMPERATURE

	// Retrieval
	VectorStoreID string `yaml:"vector_store_id"` // VECTOR_STORE_ID, empty disables retrieval

	// Storage
	DatabasePath string `yaml:"database_path"` // DATABASE_PATH, default: "./data/aiweb.db"

	// HTTP
	HTTPHost string `yaml:"http_host"` // HTTP_HOST, default: "0.0.0.0"
	HTTPPort int    `yaml:"http_port"` // HTTP_PORT, default: 8000

	// Browser origins allowed to call the API.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"` // CORS_ALLOWED_ORIGINS (comma-separated), default: "*"

	// Logging
	LogLevel  string `yaml:"log_level"`  // LOG_LEVEL, default: "info"
	LogPretty bool   `yaml:"log_pretty"` // LOG_PRETTY, default: false

	// Bootstrap account, created at startup when both are set
	AdminUsername string `yaml:"admin_username"` // ADMIN_USERNAME
	AdminPassword string `yaml:"admin_password"` // ADMIN_PASSWORD
}

const (
	envKeyOpenAIAPIKey    = "OPENAI_API_KEY"
	envKeyOpenAIBaseURL   = "OPENAI_BASE_URL"
	envKeyAzureAPIKey     = "AZURE_OPENAI_API_KEY"
	envKeyAzureEndpoint   = "AZURE_OPENAI_ENDPOINT"
	envKeyAzureDeployment = "AZURE_OPENAI_DEPLOYMENT"
	envKeyAzureAPIVersion = "AZURE_OPENAI_API_VERSION"
	envKeyTemperature     = "LLM_TEMPERATURE"
	envKeyRetrievalAPIVer = "AZURE_OPENAI_RETRIEVAL_API_VERSION"
	envKeyVectorStoreID   = "VECTOR_STORE_ID"
	envKeyDatabasePath    = "DATABASE_PATH"
	envKeyHTTPHost        = "HTTP_HOST"
	envKeyHTTPPort        = "HTTP_PORT"
	envKeyCORSOrigins     = "CORS_ALLOWED_ORIGINS"
	envKeyLogLevel        = "LOG_LEVEL"
	envKeyLogPretty       = "LOG_PRETTY"
	envKeyAdminUsername   = "ADMIN_USERNAME"
	envKeyAdminPassword   = "ADMIN_PASSWORD"

	// EnvKeyConfigFile names the optional YAML file read by LoadFromEnv.
	EnvKeyConfigFile = "AIWEB_CONFIG"
)

// Defaults returns the configuration used when neither a file nor env vars set a value.
func Defaults() Config {
	return Config{
		AzureAPIVersion:          llm.DefaultAzureAPIVersion,
		AzureRetrievalAPIVersion: llm.DefaultAzureRetrievalAPIVersion,
		DatabasePath:             "./data/aiweb.db",
		HTTPHost:                 "0.0.0.0",
		HTTPPort:                 8000,
		LogLevel:                 "info",
		CORSAllowedOrigins:       []string{"*"},
	}
}

// Load reads configuration from environment variables, applying defaults for missing values.
func Load() Config {
	return overlayEnv(Defaults())
}

// LoadFile reads the YAML file at path on top of Defaults, then applies env overrides.
// Env always wins so deployments can patch a shared file per instance.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return overlayEnv(cfg), nil
}

// LoadFromEnv uses LoadFile when AIWEB_CONFIG is set, Load otherwise.
func LoadFromEnv() (Config, error) {
	if path := os.Getenv(EnvKeyConfigFile); path != "" {
		return LoadFile(path)
	}
	return Load(), nil
}

// LLMSettings returns the provider-selection snapshot consumed by llm.SelectProvider.
func (c Config) LLMSettings() llm.Settings {
	return llm.Settings{
		OpenAIAPIKey:    c.OpenAIAPIKey,
		OpenAIBaseURL:   c.OpenAIBaseURL,
		AzureAPIKey:     c.AzureAPIKey,
		AzureEndpoint:   c.AzureEndpoint,
		AzureDeployment: c.AzureDeployment,
		AzureAPIVersion: c.AzureAPIVersion,

		AzureRetrievalAPIVersion: c.AzureRetrievalAPIVersion,
	}
}

// SeedAdmin reports whether a bootstrap account is configured.
func (c Config) SeedAdmin() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

func overlayEnv(c Config) Config {
	c.OpenAIAPIKey = envOr(envKeyOpenAIAPIKey, c.OpenAIAPIKey)
	c.OpenAIBaseURL = envOr(envKeyOpenAIBaseURL, c.OpenAIBaseURL)
	c.AzureAPIKey = envOr(envKeyAzureAPIKey, c.AzureAPIKey)
	c.AzureEndpoint = envOr(envKeyAzureEndpoint, c.AzureEndpoint)
	c.AzureDeployment = envOr(envKeyAzureDeployment, c.AzureDeployment)
	c.AzureAPIVersion = envOr(envKeyAzureAPIVersion, c.AzureAPIVersion)
	c.AzureRetrievalAPIVersion = envOr(envKeyRetrievalAPIVer, c.AzureRetrievalAPIVersion)
	c.Temperature = envFloatOr(envKeyTemperature, c.Temperature)
	c.VectorStoreID = envOr(envKeyVectorStoreID, c.VectorStoreID)
	c.DatabasePath = envOr(envKeyDatabasePath, c.DatabasePath)
	c.HTTPHost = envOr(envKeyHTTPHost, c.HTTPHost)
	c.HTTPPort = envIntOr(envKeyHTTPPort, c.HTTPPort)
	c.CORSAllowedOrigins = envListOr(envKeyCORSOrigins, c.CORSAllowedOrigins)
	c.LogLevel = envOr(envKeyLogLevel, c.LogLevel)
	c.LogPretty = envBoolOr(envKeyLogPretty, c.LogPretty)
	c.AdminUsername = envOr(envKeyAdminUsername, c.AdminUsername)
	c.AdminPassword = envOr(envKeyAdminPassword, c.AdminPassword)
	return c
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envIntOr ignores unparsable values rather than failing startup.
func envIntOr(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

// envListOr splits a comma-separated value, dropping blank entries.
func envListOr(key string, fallback []string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envBoolOr(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}
