package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	server "github.com/xenking/munchify/internal/server/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := server.LoadConfig()
		if err != nil {
			return err
		}
		return server.Run(ctx, lg, m, cfg)
	})
}
