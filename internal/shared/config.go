package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Classifier backends
const (
	BackendHTTP   = "http"
	BackendTFLite = "tflite"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Server     ServerConfig     `toml:"server"`
	Classifier ClassifierConfig `toml:"classifier"`
	Library    LibraryConfig    `toml:"library"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ClassifierConfig selects and tunes the classification oracle.
type ClassifierConfig struct {
	Backend       string       `toml:"backend"`
	Timeout       string       `toml:"timeout"`        // Go duration; empty or "0" disables the bound
	LowConfidence float64      `toml:"low_confidence"` // Results below this are flagged
	HTTP          HTTPOracle   `toml:"http"`
	TFLite        TFLiteOracle `toml:"tflite"`
}

// TimeoutDuration parses Timeout, returning zero when unset.
func (c ClassifierConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: classifier.timeout %q: %v", ErrInvalidConfig, c.Timeout, err)
	}
	return d, nil
}

// HTTPOracle configures the remote inference endpoint.
type HTTPOracle struct {
	Endpoint  string      `toml:"endpoint"`
	RateLimit float64     `toml:"rate_limit"` // Requests per second
	OAuth     OAuthConfig `toml:"oauth"`
}

// OAuthConfig contains OAuth2 client credentials for the inference endpoint.
//
// Leaving token_url empty disables authentication.
type OAuthConfig struct {
	TokenURL     string   `toml:"token_url"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	Scopes       []string `toml:"scopes"`
}

// Enabled reports whether client credentials are configured.
func (o OAuthConfig) Enabled() bool {
	return o.TokenURL != ""
}

// TFLiteOracle configures on-device inference.
type TFLiteOracle struct {
	ModelPath    string  `toml:"model_path"`
	LabelsPath   string  `toml:"labels_path"`
	Threads      int     `toml:"threads"`
	InputMean    float32 `toml:"input_mean"`
	InputStd     float32 `toml:"input_std"`
	ApplySoftmax bool    `toml:"apply_softmax"`
}

// LibraryConfig contains settings for stored photos.
type LibraryConfig struct {
	JPEGQuality   int   `toml:"jpeg_quality"` // 0 stores the original bytes
	MaxImageBytes int64 `toml:"max_image_bytes"`
}

// Validate checks value ranges that the TOML decoder cannot express.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}

	switch c.Classifier.Backend {
	case BackendHTTP:
		if c.Classifier.HTTP.Endpoint == "" {
			return fmt.Errorf("%w: classifier.http.endpoint is required", ErrInvalidConfig)
		}
		if o := c.Classifier.HTTP.OAuth; o.Enabled() && o.ClientID == "" {
			return fmt.Errorf("%w: classifier.http.oauth.client_id is required with token_url", ErrInvalidConfig)
		}
	case BackendTFLite:
		if c.Classifier.TFLite.ModelPath == "" || c.Classifier.TFLite.LabelsPath == "" {
			return fmt.Errorf("%w: classifier.tflite model_path and labels_path are required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown classifier backend %q", ErrInvalidConfig, c.Classifier.Backend)
	}

	if _, err := c.Classifier.TimeoutDuration(); err != nil {
		return err
	}

	if lc := c.Classifier.LowConfidence; lc < 0 || lc > 1 {
		return fmt.Errorf("%w: classifier.low_confidence must be within [0,1], got %v", ErrInvalidConfig, lc)
	}

	if q := c.Library.JPEGQuality; q < 0 || q > 100 {
		return fmt.Errorf("%w: library.jpeg_quality must be within [0,100], got %d", ErrInvalidConfig, q)
	}

	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
