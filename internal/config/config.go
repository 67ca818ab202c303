package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port           string   `json:"port" yaml:"port"`
		Debug          bool     `json:"debug" yaml:"debug"`
		DebugAuth      bool     `json:"debug_auth" yaml:"debug_auth"`
		AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
		LocalImagePath string   `json:"local_image_path" yaml:"local_image_path"`
	} `json:"server" yaml:"server"`

	Store struct {
		Backend   string `json:"backend" yaml:"backend"` // "memory", "sqlite", "postgres" or "firestore"
		Path      string `json:"path" yaml:"path"`
		DSN       string `json:"dsn" yaml:"dsn"`
		ProjectID string `json:"project_id" yaml:"project_id"`
	} `json:"store" yaml:"store"`

	Blobs struct {
		Backend string `json:"backend" yaml:"backend"` // "memory", "fs" or "gcs"
		Dir     string `json:"dir" yaml:"dir"`
		Bucket  string `json:"bucket" yaml:"bucket"`
	} `json:"blobs" yaml:"blobs"`

	Auth struct {
		Mode      string `json:"mode" yaml:"mode"` // "dev" or "firebase"
		DevSecret string `json:"dev_secret" yaml:"dev_secret"`
		ProjectID string `json:"project_id" yaml:"project_id"`
		APIKey    string `json:"api_key" yaml:"api_key"`
	} `json:"auth" yaml:"auth"`

	ML struct {
		Type          string `json:"type" yaml:"type"`                     // density model, "local"
		TextType      string `json:"text_type" yaml:"text_type"`           // "none", "google" or "genai"
		DensityConfig string `json:"density_config" yaml:"density_config"` // model JSON config file
		TextConfig    string `json:"text_config" yaml:"text_config"`
	} `json:"ml" yaml:"ml"`

	Client struct {
		Origin      string   `json:"origin" yaml:"origin"`
		APIBase     string   `json:"api_base" yaml:"api_base"`
		SessionFile string   `json:"session_file" yaml:"session_file"`
		Latitude    *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty"`
		Longitude   *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	} `json:"client" yaml:"client"`
}

// Default returns a configuration that runs everything locally.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Store.Backend = "sqlite"
	cfg.Store.Path = "hairguard.db"
	cfg.Blobs.Backend = "fs"
	cfg.Blobs.Dir = "./blobs"
	cfg.Auth.Mode = "dev"
	cfg.Auth.DevSecret = "hairguard-dev-secret"
	cfg.ML.Type = "local"
	cfg.ML.TextType = "none"
	cfg.Client.Origin = "http://localhost:8080"

	home, _ := os.UserHomeDir()
	cfg.Client.SessionFile = filepath.Join(home, ".hairguard", "session.json")
	return cfg
}

// LoadConfig loads configuration from a JSON or YAML file, then applies
// environment overrides. An empty path yields defaults plus environment.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		switch strings.ToLower(filepath.Ext(configPath)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		default:
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional is LoadConfig for callers that tolerate a missing file.
func LoadOptional(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			configPath = ""
		}
	}
	return LoadConfig(configPath)
}

// Validate checks the values the binaries cannot run without.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is not set")
	}
	switch c.Store.Backend {
	case "memory", "sqlite", "postgres", "firestore":
	default:
		return fmt.Errorf("unsupported store backend: %q", c.Store.Backend)
	}
	switch c.Blobs.Backend {
	case "memory", "fs", "gcs":
	default:
		return fmt.Errorf("unsupported blob backend: %q", c.Blobs.Backend)
	}
	switch c.Auth.Mode {
	case "dev", "firebase":
	default:
		return fmt.Errorf("unsupported auth mode: %q", c.Auth.Mode)
	}
	switch c.ML.TextType {
	case "none", "", "google", "genai":
	default:
		return fmt.Errorf("unsupported text model: %q", c.ML.TextType)
	}
	if c.Store.Backend == "sqlite" && c.Store.Path == "" {
		c.Store.Path = "hairguard.db"
	}
	if c.Blobs.Backend == "fs" && c.Blobs.Dir == "" {
		c.Blobs.Dir = "./blobs"
	}
	if (c.Client.Latitude == nil) != (c.Client.Longitude == nil) {
		return fmt.Errorf("client latitude and longitude must be set together")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		c.Server.AllowedOrigins = origins
	}
	if v := os.Getenv("DEBUG_AUTH"); v != "" {
		c.Server.DebugAuth = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LOCAL_IMAGE_PATH"); v != "" {
		c.Server.LocalImagePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("FIREBASE_PROJECT_ID"); v != "" {
		c.Store.ProjectID = v
		c.Auth.ProjectID = v
	}
	if v := os.Getenv("FIREBASE_STORAGE_BUCKET"); v != "" {
		c.Blobs.Bucket = v
	}
	if v := os.Getenv("FIREBASE_API_KEY"); v != "" {
		c.Auth.APIKey = v
	}
	if v := os.Getenv("HAIRGUARD_DEV_SECRET"); v != "" {
		c.Auth.DevSecret = v
	}
	if v := os.Getenv("HAIRGUARD_TEXT_MODEL"); v != "" {
		c.ML.TextType = v
	}
	if v := os.Getenv("GEMINI_ENABLED"); v != "" && !strings.EqualFold(v, "true") {
		c.ML.TextType = "none"
	}
	if v, ok := os.LookupEnv("HAIRGUARD_API_BASE"); ok {
		c.Client.APIBase = v
	}
	if lat, lng := os.Getenv("HAIRGUARD_LAT"), os.Getenv("HAIRGUARD_LNG"); lat != "" && lng != "" {
		la, errLat := strconv.ParseFloat(lat, 64)
		lo, errLng := strconv.ParseFloat(lng, 64)
		if errLat == nil && errLng == nil {
			c.Client.Latitude = &la
			c.Client.Longitude = &lo
		}
	}
}

// APIBase returns the base URL for agent API calls. An empty api_base means
// the API lives on the same origin as everything else.
func (c *Config) APIBase() string {
	if c.Client.APIBase != "" {
		return strings.TrimRight(c.Client.APIBase, "/")
	}
	return strings.TrimRight(c.Client.Origin, "/")
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("HAIRGUARD_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
