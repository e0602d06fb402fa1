package config

import (
	"os"

	"github.com/dmitrijs2005/vksync/internal/flagx"
	"github.com/dmitrijs2005/vksync/internal/timex"
	"github.com/goccy/go-json"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// strings such as "1s" or integer nanoseconds. Pointer fields distinguish an
// explicit false/zero from an absent key.
type JsonConfig struct {
	APIBaseURL                string          `json:"api_base_url"`
	APIVersion                float64         `json:"api_version"`
	RequestTimeout            *timex.Duration `json:"request_timeout"`
	AccessToken               string          `json:"access_token"`
	CredentialProvider        string          `json:"credential_provider"`
	CredentialTag             string          `json:"credential_tag"`
	CommitRemote              *bool           `json:"commit_remote"`
	DatabaseDriver            string          `json:"database_driver"`
	DatabaseDSN               string          `json:"database_dsn"`
	RetryMaxAttempts          int             `json:"retry_max_attempts"`
	RetryDelay                *timex.Duration `json:"retry_delay"`
	CredentialBackoff         *timex.Duration `json:"credential_backoff"`
	CredentialRefreshAttempts int             `json:"credential_refresh_attempts"`
	RequestsPerSecond         float64         `json:"requests_per_second"`
	BreakerTimeout            *timex.Duration `json:"breaker_timeout"`
	LogLevel                  string          `json:"log_level"`
	MetricsAddr               string          `json:"metrics_addr"`
	WatchInterval             *timex.Duration `json:"watch_interval"`
	TokenSecret               string          `json:"token_secret"`
	ArchiveDir                string          `json:"archive_dir"`
	S3Bucket                  string          `json:"s3_bucket"`
	S3Region                  string          `json:"s3_region"`
	S3BaseEndpoint            string          `json:"s3_base_endpoint"`
	S3AccessKey               string          `json:"s3_access_key"`
	S3SecretKey               string          `json:"s3_secret_key"`
}

// parseJson overlays values from the file named by -c/-config onto config.
// Keys missing from the file leave the current value alone. An unreadable or
// invalid file panics.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.APIBaseURL, c.APIBaseURL)
	setString(&config.AccessToken, c.AccessToken)
	setString(&config.CredentialProvider, c.CredentialProvider)
	setString(&config.CredentialTag, c.CredentialTag)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.TokenSecret, c.TokenSecret)
	setString(&config.ArchiveDir, c.ArchiveDir)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)

	if c.APIVersion > 0 {
		config.APIVersion = c.APIVersion
	}
	if c.RetryMaxAttempts > 0 {
		config.RetryMaxAttempts = c.RetryMaxAttempts
	}
	if c.CredentialRefreshAttempts > 0 {
		config.CredentialRefreshAttempts = c.CredentialRefreshAttempts
	}
	if c.RequestsPerSecond > 0 {
		config.RequestsPerSecond = c.RequestsPerSecond
	}
	if c.CommitRemote != nil {
		config.CommitRemote = *c.CommitRemote
	}
	if c.RequestTimeout != nil {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.RetryDelay != nil {
		config.RetryDelay = c.RetryDelay.Duration
	}
	if c.CredentialBackoff != nil {
		config.CredentialBackoff = c.CredentialBackoff.Duration
	}
	if c.BreakerTimeout != nil {
		config.BreakerTimeout = c.BreakerTimeout.Duration
	}
	if c.WatchInterval != nil {
		config.WatchInterval = c.WatchInterval.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
