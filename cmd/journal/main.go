package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"journal-service/handler"
	"journal-service/internal/config"
	"journal-service/internal/metrics"
	"journal-service/internal/repository"
	"journal-service/internal/usecase"
)

var rootCmd = &cobra.Command{
	Use:   "journal",
	Short: "journal - conversation archive service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the journal HTTP API",
	RunE:  runServe,
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild every manifest from the stored entries",
	RunE:  runRebuild,
}

func init() {
	rootCmd.AddCommand(serveCmd, rebuildCmd)
}

func main() {
	// Local development keeps credentials in .env; absence is fine.
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	journal, err := usecase.New(store, usecase.Options{
		Debounce:        cfg.Debounce,
		FlushRetryDelay: cfg.FlushRetryDelay,
		WriteAttempts:   cfg.WriteAttempts,
		WriteRetryDelay: cfg.WriteRetryDelay,
		HorizonDays:     cfg.HorizonDays,
		MaxKeys:         cfg.MaxKeys,
		Reporter:        metrics.NewReporter(),
	})
	if err != nil {
		return err
	}

	h, err := handler.New(journal, slog.Default())
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("journal listening", "addr", cfg.Addr, "bucket", cfg.Bucket)
		errCh <- srv.ListenAndServe()
	}()

	stop, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-stop.Done():
		slog.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	rebuilder, err := usecase.NewRebuilder(store, slog.Default(), cfg.HorizonDays, cfg.MaxKeys, nil)
	if err != nil {
		return err
	}
	report, err := rebuilder.Rebuild(ctx)
	if err != nil {
		return err
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
}

// newStore builds the S3 store, honoring a custom endpoint so the same
// binary talks to R2 and MinIO style backends.
func newStore(ctx context.Context, cfg config.Config) (*repository.Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return repository.New(client, cfg.Bucket)
}
