/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures the presence gateway by reading operating system environment variables,
including the running environment, port, CORS allowed origins, the real-time endpoint path,
the identity binding mode, and the per-connection transport limits.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// AuthModeTrust accepts the userId of an auth frame at face value.
	AuthModeTrust = "trust"

	// AuthModeVerified requires a signed session token matching the claimed userId.
	AuthModeVerified = "verified"
)

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	AuthMode       string
	JWTSecret      string

	// Real-time Gateway Settings
	WSPath         string
	SendBufferSize int
	MaxFrameBytes  int64
	PongWait       time.Duration
	UpgradeRate    float64
	UpgradeBurst   int
}

// IsDevelopment reports whether the application runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
// It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	port, err := intEnv("PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	cfg.AllowedOrigins = []string{}
	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	cfg.AuthMode = strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if cfg.AuthMode == "" {
		cfg.AuthMode = AuthModeTrust
	}
	if cfg.AuthMode != AuthModeTrust && cfg.AuthMode != AuthModeVerified {
		return nil, fmt.Errorf("invalid AUTH_MODE %q: expected %q or %q", cfg.AuthMode, AuthModeTrust, AuthModeVerified)
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.AuthMode == AuthModeVerified && cfg.JWTSecret == "" {
		if cfg.IsDevelopment() {
			cfg.JWTSecret = "your_default_insecure_secret_key_change_me"
		} else {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required for AUTH_MODE=%s in %s environment", AuthModeVerified, cfg.Environment)
		}
	}

	// --- Real-time Gateway Settings ---
	cfg.WSPath = os.Getenv("WS_PATH")
	if cfg.WSPath == "" {
		cfg.WSPath = "/api/ws"
	}
	if !strings.HasPrefix(cfg.WSPath, "/") {
		return nil, fmt.Errorf("invalid WS_PATH %q: must start with '/'", cfg.WSPath)
	}

	if cfg.SendBufferSize, err = intEnv("SEND_BUFFER_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.SendBufferSize <= 0 {
		return nil, fmt.Errorf("SEND_BUFFER_SIZE must be positive, got %d", cfg.SendBufferSize)
	}

	maxFrame, err := intEnv("MAX_FRAME_BYTES", 8192)
	if err != nil {
		return nil, err
	}
	if maxFrame <= 0 {
		return nil, fmt.Errorf("MAX_FRAME_BYTES must be positive, got %d", maxFrame)
	}
	cfg.MaxFrameBytes = int64(maxFrame)

	cfg.PongWait = 60 * time.Second
	if pongStr := os.Getenv("PONG_WAIT"); pongStr != "" {
		d, err := time.ParseDuration(pongStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PONG_WAIT environment variable: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("PONG_WAIT must be positive, got %s", d)
		}
		cfg.PongWait = d
	}

	cfg.UpgradeRate = 1.0
	if rateStr := os.Getenv("UPGRADE_RATE"); rateStr != "" {
		r, err := strconv.ParseFloat(rateStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid UPGRADE_RATE environment variable: %w", err)
		}
		cfg.UpgradeRate = r
	}

	if cfg.UpgradeBurst, err = intEnv("UPGRADE_BURST", 10); err != nil {
		return nil, err
	}

	return cfg, nil
}

// intEnv reads an integer environment variable, falling back to def when unset.
func intEnv(key string, def int) (int, error) {
	str := os.Getenv(key)
	if str == "" {
		return def, nil
	}
	v, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}
