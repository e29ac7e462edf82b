package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/eventsnap/internal/flagx"
	"github.com/dmitrijs2005/eventsnap/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations
// accept "30s" style strings or integer nanoseconds. Pointer fields let a
// file override only what it names.
type JsonConfig struct {
	HTTPAddr         *string         `json:"http_addr"`
	DatabaseDSN      *string         `json:"database_dsn"`
	SecretKey        *string         `json:"secret_key"`
	S3RootUser       *string         `json:"s3_root_user"`
	S3RootPassword   *string         `json:"s3_root_password"`
	S3Bucket         *string         `json:"s3_bucket"`
	S3Region         *string         `json:"s3_region"`
	S3BaseEndpoint   *string         `json:"s3_base_endpoint"`
	MediaBaseURL     *string         `json:"media_base_url"`
	FetchConcurrency *int            `json:"fetch_concurrency"`
	FetchTimeout     *timex.Duration `json:"fetch_timeout"`
	MaxFileBytes     *int64          `json:"max_file_bytes"`
	MaxArchiveBytes  *int64          `json:"max_archive_bytes"`
	MaxBulkItems     *int            `json:"max_bulk_items"`
	SignedURLTTL     *timex.Duration `json:"signed_url_ttl"`
	JobTTL           *timex.Duration `json:"job_ttl"`
	SweepInterval    *timex.Duration `json:"sweep_interval"`
	DownloadsPerHour *int            `json:"downloads_per_hour"`
	TrustedProxies   []string        `json:"trusted_proxies"`
	JobStore         *string         `json:"job_store"`
	WatermarkText    *string         `json:"watermark_text"`
}

// parseJson overlays values from the JSON file given with -c or -config.
// Nothing happens when no file is named. An unreadable or malformed file
// panics: the process cannot start with a config it did not understand.
func parseJson(config *Config) {
	path := flagx.ConfigPathFromArgs()
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

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.MediaBaseURL, c.MediaBaseURL)
	setString(&config.JobStore, c.JobStore)
	setString(&config.WatermarkText, c.WatermarkText)

	if c.FetchConcurrency != nil {
		config.FetchConcurrency = *c.FetchConcurrency
	}
	if c.MaxFileBytes != nil {
		config.MaxFileBytes = *c.MaxFileBytes
	}
	if c.MaxArchiveBytes != nil {
		config.MaxArchiveBytes = *c.MaxArchiveBytes
	}
	if c.MaxBulkItems != nil {
		config.MaxBulkItems = *c.MaxBulkItems
	}
	if c.DownloadsPerHour != nil {
		config.DownloadsPerHour = *c.DownloadsPerHour
	}
	if c.TrustedProxies != nil {
		config.TrustedProxies = c.TrustedProxies
	}
	if c.FetchTimeout != nil {
		config.FetchTimeout = c.FetchTimeout.Duration
	}
	if c.SignedURLTTL != nil {
		config.SignedURLTTL = c.SignedURLTTL.Duration
	}
	if c.JobTTL != nil {
		config.JobTTL = c.JobTTL.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
