package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/eventsnap/internal/flagx"
)

var knownFlags = []string{
	"-a", "-d", "-s", "-u", "-p", "-b", "-g", "-e", "-m",
	"-concurrency", "-fetch-timeout", "-max-file-bytes", "-max-archive-bytes",
	"-url-ttl", "-job-ttl", "-sweep-interval", "-downloads-per-hour", "-job-store",
	"-trusted-proxies",
}

// parseFlags populates Config fields from command-line flags.
//
// Short forms kept from the original server layout:
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-u/-p       S3 root user / password
//	-b/-g/-e    S3 bucket / region / base endpoint
//	-m string   media base URL allowed as fetch origin
//
// Durations (-fetch-timeout, -url-ttl, -job-ttl, -sweep-interval) use Go
// duration syntax. -trusted-proxies takes a comma-separated list. Only the flags above are looked at; everything else in
// os.Args is left for other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.MediaBaseURL, "m", config.MediaBaseURL, "media base URL (fetch allow-list)")

	fs.IntVar(&config.FetchConcurrency, "concurrency", config.FetchConcurrency, "parallel fetches per batch")
	fs.DurationVar(&config.FetchTimeout, "fetch-timeout", config.FetchTimeout, "timeout of a single fetch")
	fs.Int64Var(&config.MaxFileBytes, "max-file-bytes", config.MaxFileBytes, "per-file size ceiling")
	fs.Int64Var(&config.MaxArchiveBytes, "max-archive-bytes", config.MaxArchiveBytes, "per-archive size ceiling")
	fs.DurationVar(&config.SignedURLTTL, "url-ttl", config.SignedURLTTL, "signed URL lifetime")
	fs.DurationVar(&config.JobTTL, "job-ttl", config.JobTTL, "job and archive retention")
	fs.DurationVar(&config.SweepInterval, "sweep-interval", config.SweepInterval, "in-process sweep period (0 disables)")
	fs.IntVar(&config.DownloadsPerHour, "downloads-per-hour", config.DownloadsPerHour, "per-client download ceiling")
	fs.StringVar(&config.JobStore, "job-store", config.JobStore, "job store: memory or postgres")
	fs.Func("trusted-proxies", "comma-separated proxy IPs or CIDRs trusted for X-Forwarded-For", func(v string) error {
		config.TrustedProxies = splitList(v)
		return nil
	})

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}


func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
