package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultGeminiModel is used when GEMINI_MODEL is unset.
const DefaultGeminiModel = "gemini-2.5-flash"

// BaseConfig provides common configuration functionality
type BaseConfig struct {
	ConfigPath string
}

// LoadConfig loads configuration from a file, falling back to
// config/<envPrefix>.json and finally to environment variables, which the
// caller applies afterwards. A file that exists but does not parse is an error.
func (c *BaseConfig) LoadConfig(configPath string, envPrefix string, config any) error {
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("read %s config: %w", envPrefix, err)
		}
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("parse %s config: %w", envPrefix, err)
		}
		zap.L().Info("loaded model configuration", zap.String("path", configPath))
		return nil
	}

	defaultPath := filepath.Join("config", fmt.Sprintf("%s.json", envPrefix))
	if data, err := os.ReadFile(defaultPath); err == nil {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("parse %s: %w", defaultPath, err)
		}
		zap.L().Info("loaded model configuration", zap.String("path", defaultPath))
		return nil
	}

	zap.L().Debug("using environment for model configuration", zap.String("prefix", envPrefix))
	return nil
}

// geminiModelName returns GEMINI_MODEL or the default.
func geminiModelName(configured string) string {
	if configured != "" {
		return configured
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		return v
	}
	return DefaultGeminiModel
}

func envOr(current, key, fallback string) string {
	if current != "" {
		return current
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true")
}
