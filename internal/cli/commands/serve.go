package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/marker/internal/cli/config"
	"github.com/conduit-lang/marker/internal/web"
	"github.com/conduit-lang/marker/internal/web/cache"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the marker introspection API",
		Long: `Registers the schema document and serves resolved marker queries over
HTTP. Responses are cached in memory or Redis, per marker.yml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if schemaPath != "" {
				cfg.SchemaPath = schemaPath
			}
			if err := loadSchema(cfg.SchemaPath); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema document (default from marker.yml)")
	return cmd
}

func runServe(cfg *config.Config) error {
	logger, err := newLogger(cfg.Logging.Mode)
	if err != nil {
		return err
	}
	defer logger.Sync()

	backend, err := newCacheBackend(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to create response cache: %w", err)
	}

	server := web.New(web.Config{
		Addr:              cfg.Server.Addr(),
		Logger:            logger,
		Cache:             backend,
		CacheTTL:          time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	color.New(color.FgGreen).Printf("Introspection API on http://%s\n", cfg.Server.Addr())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newCacheBackend(cfg config.CacheConfig) (cache.Backend, error) {
	if cfg.Backend == "redis" {
		return cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Cache:    cache.DefaultConfig(),
		})
	}
	return cache.NewMemory(), nil
}
