package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eddyoasis/procurement-workflow/internal/container"
	httpapi "github.com/eddyoasis/procurement-workflow/internal/interfaces/http"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			logger.Info("Starting procurement workflow service",
				zap.String("address", cfg.Server.Address()),
				zap.String("base_currency", cfg.Workflow.BaseCurrency))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
			if err != nil {
				return err
			}
			if err := c.Start(ctx); err != nil {
				return err
			}
			defer c.Close()

			services := c.Services()
			server := httpapi.NewServer(
				httpapi.ServerConfig{
					Mode:         cfg.Server.Mode,
					Host:         cfg.Server.Host,
					Port:         cfg.Server.Port,
					ReadTimeout:  cfg.Server.ReadTimeout,
					WriteTimeout: cfg.Server.WriteTimeout,
				},
				services.Requisition,
				services.PurchaseOrder,
				services.Threshold,
				&httpLogger{logger: logger},
				httpapi.WithHealth(func() (bool, interface{}) {
					h := c.Health()
					return h.Overall, h.Components
				}),
				httpapi.WithMetrics(c.Metrics().Handler()),
			)

			err = server.Start(ctx)
			logger.Info("Server exited", zap.Error(err))
			return err
		},
	}
}

// httpLogger adapts zap to the http package Logger
type httpLogger struct {
	logger *zap.Logger
}

func (l *httpLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l *httpLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, keysAndValues...)
}
