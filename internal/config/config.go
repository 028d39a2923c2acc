// Package config loads relay configuration, environment-first with an
// optional relay.yaml file. It is read once in main and injected; nothing
// else in the process touches the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"portfolio-relay/internal/usecase"
)

// Config is the full relay configuration.
type Config struct {
	// Addr is the listen address for cmd/server.
	Addr string
	// UpstreamBaseURL overrides the default chat-completions endpoint.
	UpstreamBaseURL string
	// Model is the upstream model identifier.
	Model string
	// APIKey is the upstream credential. An empty key is not a startup
	// failure: each request is rejected with a configuration error instead.
	APIKey string
	// APIKeyParameter, when set, names an SSM parameter holding the key and
	// takes precedence over APIKey.
	APIKeyParameter string
	// UpstreamHeaderTimeout bounds time-to-first-byte from upstream.
	UpstreamHeaderTimeout time.Duration
	// Persona holds the static facts for the system prompt.
	Persona usecase.Persona
}

// Load reads configuration from RELAY_-prefixed environment variables,
// falling back to relay.yaml in the working directory, then to defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("relay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("relay")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read relay.yaml: %w", err)
		}
	}

	cfg := &Config{
		Addr:                  v.GetString("addr"),
		UpstreamBaseURL:       v.GetString("upstream_base_url"),
		Model:                 v.GetString("model"),
		APIKey:                v.GetString("api_key"),
		APIKeyParameter:       v.GetString("api_key_parameter"),
		UpstreamHeaderTimeout: v.GetDuration("upstream_header_timeout"),
		Persona: usecase.Persona{
			AssistantName: v.GetString("persona.assistant_name"),
			OwnerName:     v.GetString("persona.owner_name"),
			OwnerEmail:    v.GetString("persona.owner_email"),
			Education:     v.GetString("persona.education"),
			Skills:        v.GetString("persona.skills"),
			Goals:         v.GetString("persona.goals"),
		},
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("config: model must not be empty")
	}
	if cfg.UpstreamHeaderTimeout <= 0 {
		return nil, errors.New("config: upstream_header_timeout must be positive")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("upstream_base_url", "")
	v.SetDefault("model", "gemini-1.5-flash")
	v.SetDefault("api_key", "")
	v.SetDefault("api_key_parameter", "")
	v.SetDefault("upstream_header_timeout", 30*time.Second)
	v.SetDefault("persona.assistant_name", "Joven AI")
	v.SetDefault("persona.owner_name", "Joven Benagua")
	v.SetDefault("persona.owner_email", "Jovenpbenagua@email.com")
	v.SetDefault("persona.education", "BSIT (Expected 2026)")
	v.SetDefault("persona.skills", "Java, JavaScript, MySQL, Networking")
	v.SetDefault("persona.goals", "IT Support / Systems Specialist")
}
