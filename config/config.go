// Package config loads agent configuration from the environment.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime configuration for the capture agent.
//
// Timing policy (poll cadence, overlay expiry, wizard photo count, JPEG
// quality tiers) is deliberately not configurable; those constants live in
// their owning packages.
type Config struct {
	// Host and Port for the HTTP control surface.
	Host string
	Port string

	// DetectionBaseURL is the base URL of the face detection/matching service.
	DetectionBaseURL string
	// APIToken is sent as a bearer token on every detection/enrollment request.
	APIToken string

	// CameraDeviceID is the local video capture device index.
	CameraDeviceID int
	// CameraID is the logical camera identifier reported to the detection service.
	CameraID string

	// RequestTimeout bounds a single detection or enrollment round trip.
	RequestTimeout time.Duration
}

// ServerAddress returns the joined host:port for the control surface listener.
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strings.TrimSpace(c.Port))
}

// LoadFromEnv builds a Config from environment variables, applying defaults
// and validating the result.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:             getEnvOrDefault("HOST", "0.0.0.0"),
		Port:             getEnvOrDefault("PORT", "8089"),
		DetectionBaseURL: getEnvOrDefault("DETECTION_BASE_URL", "http://localhost:8000"),
		APIToken:         os.Getenv("API_TOKEN"),
		CameraDeviceID:   int(parseIntOrDefault("CAMERA_DEVICE_ID", 0)),
		CameraID:         getEnvOrDefault("CAMERA_ID", "cam-entrance"),
		RequestTimeout:   parseDurationOrDefault("REQUEST_TIMEOUT", 15*time.Second),
	}

	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if !strings.HasPrefix(cfg.DetectionBaseURL, "http://") && !strings.HasPrefix(cfg.DetectionBaseURL, "https://") {
		return nil, fmt.Errorf("invalid DETECTION_BASE_URL: %q", cfg.DetectionBaseURL)
	}
	if cfg.CameraDeviceID < 0 {
		return nil, fmt.Errorf("CAMERA_DEVICE_ID must be >= 0 (got %d)", cfg.CameraDeviceID)
	}
	if cfg.CameraID == "" {
		return nil, fmt.Errorf("CAMERA_ID must not be empty")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be > 0 (got %s)", cfg.RequestTimeout)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
