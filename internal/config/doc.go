// Package config provides configuration management for the report server mirror.
// It loads configuration from multiple sources, validates it, and hands out an
// immutable Config that is passed explicitly to every component constructor.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority), optionally seeded from .env files
//	2. A YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern PBI_* for namespacing:
//
//	PBI_REMOTE_BASE_URL=https://pbi.example.com
//	PBI_REMOTE_TIMEOUT=30s
//	PBI_STORAGE_KIND=s3
//	PBI_STORAGE_S3_BUCKET=report-mirror
//	PBI_LOGGING_LEVEL=debug
//	PBI_SERVER_ADDR=:9090
//	PBI_SUMMARY_PATH=run-summary.xlsx
//	PBI_SUMMARY_FORMAT=xlsx
//
// The YAML file is taken from PBI_CONFIG_FILE, or config.yaml / configs/config.yaml
// in the working directory.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Testing
//
// Use config.Default() to get a configuration that needs no environment.
package config
