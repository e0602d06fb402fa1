// Package config handles configuration for the sync engine: defaults, a JSON
// file overlay, VKSYNC_* environment variables and command-line flags, applied
// in that order.
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for vksync.
//
// Fields:
//   - APIBaseURL / APIVersion: remote endpoint root and default method version.
//   - RequestTimeout: per-request HTTP timeout.
//   - AccessToken: fixed override credential; bypasses rotation when set.
//   - CredentialProvider / CredentialTag: which stored credentials to rotate.
//   - CommitRemote: global switch for remote-write side effects.
//   - DatabaseDriver / DatabaseDSN: storage backend ("pgx" or "sqlite").
//   - RetryMaxAttempts / RetryDelay: invoker retry budget and transient sleep.
//   - CredentialBackoff / CredentialRefreshAttempts: rotator waits and refresh bound.
//   - RequestsPerSecond: pacing applied per credential.
//   - BreakerTimeout: how long the transport breaker stays open.
//   - MetricsAddr: listen address for /metrics; empty disables the endpoint.
//   - WatchInterval: polling period of the watch command.
//   - TokenSecret: passphrase sealing stored access tokens; empty stores them as is.
//   - ArchiveDir: local raw payload archive, used when S3Bucket is empty.
//   - S3*: optional raw payload archive; disabled when S3Bucket is empty.
type Config struct {
	APIBaseURL                string
	APIVersion                float64
	RequestTimeout            time.Duration
	AccessToken               string
	CredentialProvider        string
	CredentialTag             string
	CommitRemote              bool
	DatabaseDriver            string
	DatabaseDSN               string
	RetryMaxAttempts          int
	RetryDelay                time.Duration
	CredentialBackoff         time.Duration
	CredentialRefreshAttempts int
	RequestsPerSecond         float64
	BreakerTimeout            time.Duration
	LogLevel                  string
	MetricsAddr               string
	WatchInterval             time.Duration
	TokenSecret               string
	ArchiveDir                string
	S3Bucket                  string
	S3Region                  string
	S3BaseEndpoint            string
	S3AccessKey               string
	S3SecretKey               string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "https://api.vk.com"
	c.APIVersion = 5.131
	c.RequestTimeout = 1 * time.Second
	c.CredentialProvider = "vkontakte"
	c.CommitRemote = true
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:vksync.db"
	c.RetryMaxAttempts = 25
	c.RetryDelay = 1 * time.Second
	c.CredentialBackoff = 1 * time.Second
	c.CredentialRefreshAttempts = 5
	c.RequestsPerSecond = 3
	c.BreakerTimeout = 30 * time.Second
	c.LogLevel = "info"
	c.WatchInterval = 5 * time.Minute
	c.S3Region = "us-east-1"
}

// LoadConfig builds a Config from defaults, then the optional JSON file, then
// the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, os.Args[1:])
	if err := parseEnv(cfg); err != nil {
		panic(err)
	}
	parseFlags(cfg)
	return cfg
}
