// Package config loads the smoke suite configuration from an optional .env
// file and environment variables, validates it, and provides defaults that
// point the suite at the public sites.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kuitang/portal-smoke/internal/throttle"
	"github.com/kuitang/portal-smoke/internal/urlutil"
)

const (
	DefaultPortalURL = "https://www.naver.com"
	DefaultBlogURL   = "https://blog.naver.com"
	DefaultToolURL   = "https://playwright.dev"

	defaultEnvFile = ".env"
	defaultRegion  = "auto"
)

// Supported browser engines.
const (
	BrowserChromium = "chromium"
	BrowserFirefox  = "firefox"
	BrowserWebKit   = "webkit"
)

// Config holds all suite configuration.
type Config struct {
	// Browser settings
	Browser         string
	Headless        bool
	InstallBrowsers bool // Download browser binaries before launch
	Live            bool // Run the cases against the configured public sites

	// Timeouts
	DefaultTimeout time.Duration // Budget for steps that declare none
	CaseTimeout    time.Duration // Ceiling for one whole test case

	// Navigation pacing
	Throttle throttle.Config

	// Target sites
	PortalURL string
	BlogURL   string
	ToolURL   string

	// Failure artifacts
	ArtifactDir    string // Local directory for screenshots; empty disables
	ArtifactBucket string // S3 bucket; empty disables upload
	ArtifactPrefix string

	// S3-compatible storage (same variables the AWS SDK and Tigris use)
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Load reads the optional env file named by E2E_ENV_FILE (default .env) and
// then builds the configuration from the environment. Variables already set
// in the process environment win over the file.
func Load() (*Config, error) {
	envFile := getEnvOrDefault("E2E_ENV_FILE", defaultEnvFile)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{}

	cfg.Browser = strings.ToLower(getEnvOrDefault("E2E_BROWSER", BrowserChromium))
	cfg.Headless = parseBoolOrDefault("E2E_HEADLESS", true)
	cfg.InstallBrowsers = parseBoolOrDefault("E2E_INSTALL_BROWSERS", false)
	cfg.Live = parseBoolOrDefault("E2E_LIVE", false)

	cfg.DefaultTimeout = parseDurationOrDefault("E2E_DEFAULT_TIMEOUT", 5*time.Second)
	cfg.CaseTimeout = parseDurationOrDefault("E2E_CASE_TIMEOUT", 60*time.Second)

	cfg.Throttle = throttle.Config{
		RPS:             parseFloat64OrDefault("E2E_NAV_RPS", throttle.DefaultConfig.RPS),
		Burst:           parseIntOrDefault("E2E_NAV_BURST", throttle.DefaultConfig.Burst),
		CleanupInterval: throttle.DefaultConfig.CleanupInterval,
	}

	cfg.PortalURL = getEnvOrDefault("E2E_PORTAL_URL", DefaultPortalURL)
	cfg.BlogURL = getEnvOrDefault("E2E_BLOG_URL", DefaultBlogURL)
	cfg.ToolURL = getEnvOrDefault("E2E_TOOL_URL", DefaultToolURL)

	cfg.ArtifactDir = getEnvOrDefault("E2E_ARTIFACT_DIR", "")
	cfg.ArtifactBucket = getEnvOrDefault("E2E_ARTIFACT_BUCKET", "")
	cfg.ArtifactPrefix = strings.Trim(getEnvOrDefault("E2E_ARTIFACT_PREFIX", "smoke"), "/")

	cfg.AWSEndpointS3 = getEnvOrDefault("AWS_ENDPOINT_URL_S3", "")
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultRegion)
	cfg.AWSAccessKeyID = getEnvOrDefault("AWS_ACCESS_KEY_ID", "")
	cfg.AWSSecretAccessKey = getEnvOrDefault("AWS_SECRET_ACCESS_KEY", "")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []string

	switch c.Browser {
	case BrowserChromium, BrowserFirefox, BrowserWebKit:
	default:
		errs = append(errs, fmt.Sprintf("E2E_BROWSER must be one of chromium, firefox, webkit (got %q)", c.Browser))
	}

	if c.DefaultTimeout <= 0 {
		errs = append(errs, "E2E_DEFAULT_TIMEOUT must be positive")
	}
	if c.CaseTimeout <= 0 {
		errs = append(errs, "E2E_CASE_TIMEOUT must be positive")
	} else if c.DefaultTimeout > c.CaseTimeout {
		errs = append(errs, "E2E_DEFAULT_TIMEOUT must not exceed E2E_CASE_TIMEOUT")
	}

	if c.Throttle.RPS < 0 {
		errs = append(errs, "E2E_NAV_RPS must not be negative (0 disables pacing)")
	}
	if c.Throttle.Burst <= 0 {
		errs = append(errs, "E2E_NAV_BURST must be positive")
	}

	for _, target := range []struct{ name, value string }{
		{"E2E_PORTAL_URL", c.PortalURL},
		{"E2E_BLOG_URL", c.BlogURL},
		{"E2E_TOOL_URL", c.ToolURL},
	} {
		if !urlutil.IsHTTPURL(target.value) {
			errs = append(errs, fmt.Sprintf("%s must be an absolute http(s) URL (got %q)", target.name, target.value))
		}
	}

	// S3 upload needs credentials; the endpoint may be left to the SDK default.
	if c.ArtifactBucket != "" {
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required when E2E_ARTIFACT_BUCKET is set")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required when E2E_ARTIFACT_BUCKET is set")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ArtifactsEnabled reports whether failure screenshots are kept anywhere.
func (c *Config) ArtifactsEnabled() bool {
	return c.ArtifactDir != "" || c.ArtifactBucket != ""
}

// Summary returns a one-line description of the effective configuration
// with secrets left out.
func (c *Config) Summary() string {
	storage := "off"
	switch {
	case c.ArtifactBucket != "":
		storage = "s3://" + c.ArtifactBucket + "/" + c.ArtifactPrefix
	case c.ArtifactDir != "":
		storage = c.ArtifactDir
	}
	return fmt.Sprintf("browser=%s headless=%t live=%t case_timeout=%s nav_rps=%g artifacts=%s",
		c.Browser, c.Headless, c.Live, c.CaseTimeout, c.Throttle.RPS, storage)
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
