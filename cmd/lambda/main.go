package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambdaurl"

	"portfolio-relay/internal/app"
	"portfolio-relay/internal/config"
)

// The relay behind a Lambda Function URL with response streaming enabled, so
// the SSE body reaches the browser as upstream chunks arrive.
func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	router, err := app.BuildRouter(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to build router", "err", err)
		os.Exit(1)
	}

	lambdaurl.Start(router)
}
