package config

import (
	"strings"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/ratelimit"
)

const defaultArtifactRegion = "auto"

// StubConfig configures the local stand-in for the Hello Pet site.
type StubConfig struct {
	ListenAddr      string
	SessionDuration time.Duration
	LoginLimit      ratelimit.Config
}

// LoadStubConfig reads stub server settings from HELLOPET_STUB_* env vars.
// addr overrides HELLOPET_STUB_ADDR when non-empty.
func LoadStubConfig(addr string) (StubConfig, error) {
	cfg := StubConfig{
		ListenAddr:      getEnvOrDefault("HELLOPET_STUB_ADDR", "127.0.0.1:8090"),
		SessionDuration: parseDurationOrDefault("HELLOPET_STUB_SESSION_DURATION", 24*time.Hour),
		LoginLimit: ratelimit.Config{
			RPS:             parseFloat64OrDefault("HELLOPET_STUB_LOGIN_RPS", ratelimit.DefaultConfig.RPS),
			Burst:           parseIntOrDefault("HELLOPET_STUB_LOGIN_BURST", ratelimit.DefaultConfig.Burst),
			CleanupInterval: parseDurationOrDefault("HELLOPET_STUB_LOGIN_CLEANUP", ratelimit.DefaultConfig.CleanupInterval),
		},
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}

	var errs []string
	if cfg.SessionDuration <= 0 {
		errs = append(errs, "HELLOPET_STUB_SESSION_DURATION must be positive")
	}
	if cfg.LoginLimit.RPS <= 0 {
		errs = append(errs, "HELLOPET_STUB_LOGIN_RPS must be positive")
	}
	if cfg.LoginLimit.Burst <= 0 {
		errs = append(errs, "HELLOPET_STUB_LOGIN_BURST must be positive")
	}
	if len(errs) > 0 {
		return StubConfig{}, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

// ArtifactConfig locates the optional S3 bucket that failure artifacts are
// published to. Publishing is off when Bucket is empty.
type ArtifactConfig struct {
	Bucket          string // HELLOPET_ARTIFACT_BUCKET
	Prefix          string // HELLOPET_ARTIFACT_PREFIX
	Endpoint        string // AWS_ENDPOINT_URL_S3
	Region          string // AWS_REGION
	AccessKeyID     string // AWS_ACCESS_KEY_ID
	SecretAccessKey string // AWS_SECRET_ACCESS_KEY
	PublicURL       string // HELLOPET_ARTIFACT_PUBLIC_URL
}

// Enabled reports whether artifacts should be uploaded.
func (a ArtifactConfig) Enabled() bool {
	return a.Bucket != ""
}

// LoadArtifactConfig reads artifact publishing settings from the environment.
func LoadArtifactConfig() (ArtifactConfig, error) {
	a := ArtifactConfig{
		Bucket:          getEnvOrDefault("HELLOPET_ARTIFACT_BUCKET", ""),
		Prefix:          strings.Trim(getEnvOrDefault("HELLOPET_ARTIFACT_PREFIX", ""), "/"),
		Endpoint:        getEnvOrDefault("AWS_ENDPOINT_URL_S3", ""),
		Region:          getEnvOrDefault("AWS_REGION", defaultArtifactRegion),
		AccessKeyID:     getEnvOrDefault("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnvOrDefault("AWS_SECRET_ACCESS_KEY", ""),
		PublicURL:       getEnvOrDefault("HELLOPET_ARTIFACT_PUBLIC_URL", ""),
	}
	if a.PublicURL == "" && a.Endpoint != "" && a.Bucket != "" {
		a.PublicURL = strings.TrimRight(a.Endpoint, "/") + "/" + a.Bucket
	}
	if !a.Enabled() {
		return a, nil
	}

	var errs []string
	if a.AccessKeyID == "" {
		errs = append(errs, "AWS_ACCESS_KEY_ID is required when HELLOPET_ARTIFACT_BUCKET is set")
	}
	if a.SecretAccessKey == "" {
		errs = append(errs, "AWS_SECRET_ACCESS_KEY is required when HELLOPET_ARTIFACT_BUCKET is set")
	}
	if len(errs) > 0 {
		return ArtifactConfig{}, &ValidationError{Errors: errs}
	}
	return a, nil
}
