// Package app wires configuration into a ready-to-serve router. Both the
// standalone server and the Lambda entrypoint share this assembly.
package app

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-chi/chi/v5"

	"portfolio-relay/handler"
	"portfolio-relay/internal/config"
	"portfolio-relay/internal/integrations/openai"
	"portfolio-relay/internal/integrations/paramstore"
	"portfolio-relay/internal/usecase"
)

// BuildRouter assembles credentials, the upstream client, the relay service
// and the HTTP surface from cfg. ctx is only used for AWS client setup.
func BuildRouter(ctx context.Context, cfg *config.Config, log *slog.Logger) (chi.Router, error) {
	creds, err := buildCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []openai.Option{openai.WithHeaderTimeout(cfg.UpstreamHeaderTimeout)}
	if cfg.UpstreamBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.UpstreamBaseURL))
	}
	client, err := openai.NewClient(creds, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: create upstream client: %w", err)
	}

	relay, err := usecase.NewRelayService(client, cfg.Model, cfg.Persona)
	if err != nil {
		return nil, fmt.Errorf("app: create relay service: %w", err)
	}

	h, err := handler.New(relay, log)
	if err != nil {
		return nil, fmt.Errorf("app: create handler: %w", err)
	}
	return handler.NewRouter(h), nil
}

// buildCredentials prefers an SSM-held key when one is configured; otherwise
// the key comes straight from config. A missing key is not rejected here —
// the relay reports it per request.
func buildCredentials(ctx context.Context, cfg *config.Config) (openai.Credentials, error) {
	if cfg.APIKeyParameter == "" {
		return openai.Static(cfg.APIKey), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}
	store, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: create paramstore client: %w", err)
	}
	creds, err := openai.NewParameterCredentials(store, cfg.APIKeyParameter)
	if err != nil {
		return nil, fmt.Errorf("app: create parameter credentials: %w", err)
	}
	return creds, nil
}
