package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/vksync/internal/flagx"
)

// ValuedFlags lists every settings flag that consumes a value. The app uses
// it to find the subcommand among the remaining arguments.
var ValuedFlags = []string{"-c", "-config", "-u", "-v", "-t", "-k", "-r", "-d", "-n", "-w", "-q", "-l", "-b", "-g", "-e", "-i", "-a"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-u string    API base URL
//	-v float     default API version
//	-t duration  request timeout ("1s")
//	-k string    override access token
//	-r string    database driver ("pgx" or "sqlite")
//	-d string    database DSN
//	-n int       retry budget (attempts per call)
//	-w duration  transient retry delay
//	-q float     requests per second per credential
//	-l string    log level
//	-m bool      commit remote writes (-m=false disables)
//	-b string    S3 archive bucket
//	-g string    S3 region
//	-e string    S3 base endpoint
//	-i duration  watch polling interval
//	-a string    local payload archive directory
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-v", "-t", "-k", "-r", "-d", "-n", "-w", "-q", "-l", "-m", "-b", "-g", "-e", "-i", "-a"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.APIBaseURL, "u", config.APIBaseURL, "API base URL")
	fs.Float64Var(&config.APIVersion, "v", config.APIVersion, "default API version")
	fs.DurationVar(&config.RequestTimeout, "t", config.RequestTimeout, "request timeout")
	fs.StringVar(&config.AccessToken, "k", config.AccessToken, "override access token")
	fs.StringVar(&config.DatabaseDriver, "r", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.RetryMaxAttempts, "n", config.RetryMaxAttempts, "retry budget per call")
	fs.DurationVar(&config.RetryDelay, "w", config.RetryDelay, "transient retry delay")
	fs.Float64Var(&config.RequestsPerSecond, "q", config.RequestsPerSecond, "requests per second per credential")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.BoolVar(&config.CommitRemote, "m", config.CommitRemote, "commit remote writes")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 archive bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.DurationVar(&config.WatchInterval, "i", config.WatchInterval, "watch polling interval")
	fs.StringVar(&config.ArchiveDir, "a", config.ArchiveDir, "local payload archive directory")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
