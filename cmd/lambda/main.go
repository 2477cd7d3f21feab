package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"journal-service/handler"
	"journal-service/internal/config"
	"journal-service/internal/metrics"
	"journal-service/internal/repository"
	"journal-service/internal/usecase"
)

func main() {
	ctx := context.Background()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	// ---- Configuration (read only here) ----
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
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
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	store, err := repository.New(client, cfg.Bucket)
	if err != nil {
		slog.Error("failed to create object store", "err", err)
		os.Exit(1)
	}

	journal, err := usecase.New(store, usecase.Options{
		WriteAttempts:   cfg.WriteAttempts,
		WriteRetryDelay: cfg.WriteRetryDelay,
		HorizonDays:     cfg.HorizonDays,
		MaxKeys:         cfg.MaxKeys,
		Reporter:        metrics.NewReporter(),
	})
	if err != nil {
		slog.Error("failed to create journal", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.New(journal, slog.Default())
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(handler.NewLambda(h).Handle)
}
