package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"taskdoc/internal/app"
	"taskdoc/internal/blob"
	"taskdoc/internal/config"
	"taskdoc/internal/gitrepo"
	"taskdoc/internal/search"
	"taskdoc/internal/session"
	"taskdoc/internal/store"
)

func newServeCmd(a *App) *cobra.Command {
	var (
		addr        string
		dataDir     string
		databaseURL string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the editor HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			if addr != "" {
				cfg.Addr = addr
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
				cfg.UploadDir, cfg.TemplatesDir, cfg.HistoryDir = config.DataPaths(dataDir)
			}
			if databaseURL != "" {
				cfg.DatabaseURL = databaseURL
			}
			log := a.logger(cmd, cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			service, err := buildService(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer service.Close()
			return serve(ctx, cfg, service, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides TASKDOC_ADDR)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory (overrides TASKDOC_DATA_DIR)")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "postgres:// or sqlite:// URL (overrides DATABASE_URL)")
	return cmd
}

// buildService wires the configured backends. Unset optional services fall
// back to their in-process versions.
func buildService(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app.Service, error) {
	dataStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	blobs, err := openBlobs(ctx, cfg, log)
	if err != nil {
		_ = dataStore.Close()
		return nil, err
	}

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		_ = dataStore.Close()
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
	}

	var sessions session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Info().Msg("using redis for editing sessions")
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			_ = dataStore.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		sessions = redisStore
	}

	service := app.New(cfg, app.Deps{
		Store:    dataStore,
		Blobs:    blobs,
		History:  gitrepo.New(cfg.HistoryDir),
		Search:   search.NewService(meili, log),
		Sessions: sessions,
		Log:      log,
	})
	if err := service.Bootstrap(ctx); err != nil {
		log.Warn().Err(err).Msg("bootstrap error (will retry on next restart)")
	}
	return service, nil
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Store, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Info().Str("dir", cfg.DataDir).Msg("using file storage")
		files, err := store.NewFileStore(cfg.DataDir, cfg.TemplatesDir)
		if err != nil {
			return nil, err
		}
		return files, nil
	}
	var migrations fs.FS
	if cfg.MigrationsDir != "" {
		migrations = os.DirFS(cfg.MigrationsDir)
	}
	s, err := store.Connect(ctx, cfg.DatabaseURL, migrations)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return s, nil
}

func openBlobs(ctx context.Context, cfg config.Config, log zerolog.Logger) (blob.Store, error) {
	if strings.TrimSpace(cfg.S3Endpoint) == "" {
		fsStore, err := blob.NewFSStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		return fsStore, nil
	}
	log.Info().Str("endpoint", cfg.S3Endpoint).Str("bucket", cfg.S3Bucket).Msg("using s3 uploads")
	s, err := blob.NewS3Store(ctx, blob.S3Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 connection failed: %w", err)
	}
	return s, nil
}

// serve runs until ctx is cancelled and then drains in-flight requests.
func serve(ctx context.Context, cfg config.Config, service *app.Service, log zerolog.Logger) error {
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("taskdoc listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
