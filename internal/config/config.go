// Package config reads the journal service configuration from the
// environment. Configuration is read once at startup; a missing bucket is a
// fail-fast configuration error, not something the write path retries.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Bucket is the S3-compatible bucket holding the journal. Required.
	Bucket string
	// Endpoint overrides the S3 endpoint for R2/MinIO style backends.
	Endpoint string
	Region   string
	// Static credentials for endpoints outside the default AWS chain.
	AccessKeyID     string
	SecretAccessKey string

	// Addr is the HTTP listen address for journal serve.
	Addr string

	Debounce        time.Duration
	FlushRetryDelay time.Duration
	WriteAttempts   uint
	WriteRetryDelay time.Duration
	HorizonDays     int
	MaxKeys         int32
}

// FromEnv loads the configuration, applying documented defaults.
func FromEnv() (Config, error) {
	bucket := os.Getenv("JOURNAL_BUCKET")
	if bucket == "" {
		return Config{}, errors.New("config: JOURNAL_BUCKET is not set")
	}
	cfg := Config{
		Bucket:          bucket,
		Endpoint:        os.Getenv("JOURNAL_S3_ENDPOINT"),
		Region:          envStr("JOURNAL_S3_REGION", "auto"),
		AccessKeyID:     os.Getenv("JOURNAL_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("JOURNAL_S3_SECRET_ACCESS_KEY"),
		Addr:            envStr("JOURNAL_ADDR", ":8080"),
		Debounce:        envMillis("JOURNAL_DEBOUNCE_MS", 1000),
		FlushRetryDelay: envMillis("JOURNAL_FLUSH_RETRY_MS", 2000),
		WriteAttempts:   uint(envInt("JOURNAL_WRITE_ATTEMPTS", 3)),
		WriteRetryDelay: envMillis("JOURNAL_WRITE_RETRY_MS", 2000),
		HorizonDays:     envInt("JOURNAL_SCAN_HORIZON_DAYS", 30),
		MaxKeys:         int32(envInt("JOURNAL_LIST_MAX_KEYS", 1000)),
	}
	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envMillis(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Millisecond
}
