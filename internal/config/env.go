package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the environment variables read by parseEnv, e.g.
// VKSYNC_ACCESS_TOKEN or VKSYNC_COMMIT_REMOTE.
const EnvPrefix = "VKSYNC_"

// parseEnv overlays VKSYNC_* environment variables onto config. Variable
// names map to the JSON keys: VKSYNC_RETRY_DELAY -> retry_delay.
func parseEnv(config *Config) error {
	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	strs := map[string]*string{
		"api_base_url":        &config.APIBaseURL,
		"access_token":        &config.AccessToken,
		"credential_provider": &config.CredentialProvider,
		"credential_tag":      &config.CredentialTag,
		"database_driver":     &config.DatabaseDriver,
		"database_dsn":        &config.DatabaseDSN,
		"log_level":           &config.LogLevel,
		"metrics_addr":        &config.MetricsAddr,
		"token_secret":        &config.TokenSecret,
		"archive_dir":         &config.ArchiveDir,
		"s3_bucket":           &config.S3Bucket,
		"s3_region":           &config.S3Region,
		"s3_base_endpoint":    &config.S3BaseEndpoint,
		"s3_access_key":       &config.S3AccessKey,
		"s3_secret_key":       &config.S3SecretKey,
	}
	for key, dst := range strs {
		if k.Exists(key) {
			*dst = k.String(key)
		}
	}

	if k.Exists("api_version") {
		config.APIVersion = k.Float64("api_version")
	}
	if k.Exists("requests_per_second") {
		config.RequestsPerSecond = k.Float64("requests_per_second")
	}
	if k.Exists("retry_max_attempts") {
		config.RetryMaxAttempts = k.Int("retry_max_attempts")
	}
	if k.Exists("credential_refresh_attempts") {
		config.CredentialRefreshAttempts = k.Int("credential_refresh_attempts")
	}
	if k.Exists("commit_remote") {
		config.CommitRemote = k.Bool("commit_remote")
	}
	if k.Exists("request_timeout") {
		config.RequestTimeout = k.Duration("request_timeout")
	}
	if k.Exists("retry_delay") {
		config.RetryDelay = k.Duration("retry_delay")
	}
	if k.Exists("credential_backoff") {
		config.CredentialBackoff = k.Duration("credential_backoff")
	}
	if k.Exists("breaker_timeout") {
		config.BreakerTimeout = k.Duration("breaker_timeout")
	}
	if k.Exists("watch_interval") {
		config.WatchInterval = k.Duration("watch_interval")
	}
	return nil
}
