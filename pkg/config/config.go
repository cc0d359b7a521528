package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FLICKRMIRROR_"

// Config holds all configuration options for the mirror
type Config struct {
	// Flickr API credentials and endpoint
	Flickr FlickrConfig `yaml:"flickr" json:"flickr"`

	// Local mirror destination
	Output OutputConfig `yaml:"output" json:"output"`

	// Pacing of remote calls
	Mirror MirrorConfig `yaml:"mirror" json:"mirror"`

	// Retry policy for catalog pages
	PageRetry PageRetryConfig `yaml:"page_retry" json:"page_retry"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`

	UI UIConfig `yaml:"ui" json:"ui"`
}

// FlickrConfig holds Flickr-specific configuration
type FlickrConfig struct {
	APIKey           string `yaml:"api_key" json:"api_key"`
	APISecret        string `yaml:"api_secret" json:"api_secret"`
	OAuthToken       string `yaml:"oauth_token" json:"oauth_token"`
	OAuthTokenSecret string `yaml:"oauth_token_secret" json:"oauth_token_secret"`
	// UserID is the NSID whose photos are mirrored; "me" means the token owner
	UserID   string `yaml:"user_id" json:"user_id"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// OutputConfig holds destination directory configuration
type OutputConfig struct {
	DestinationDirectory string `yaml:"destination_directory" json:"destination_directory"`
	DirPermissions       string `yaml:"dir_permissions" json:"dir_permissions"`
	FilePermissions      string `yaml:"file_permissions" json:"file_permissions"`
}

// MirrorConfig holds pacing configuration for remote calls
type MirrorConfig struct {
	PerPage           int           `yaml:"per_page" json:"per_page"`
	CourtesyDelay     time.Duration `yaml:"courtesy_delay" json:"courtesy_delay"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown" json:"rate_limit_cooldown"`
	DownloadTimeout   time.Duration `yaml:"download_timeout" json:"download_timeout"`
}

// PageRetryConfig holds the retry policy for catalog page fetches.
// MaxAttempts 0 retries forever.
type PageRetryConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// UIConfig holds terminal output preferences
type UIConfig struct {
	Notifications bool `yaml:"notifications" json:"notifications"`
	TUI           bool `yaml:"tui" json:"tui"`
	Quiet         bool `yaml:"quiet" json:"quiet"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Flickr: FlickrConfig{
			UserID:   "me",
			Endpoint: "https://api.flickr.com/services/rest/",
		},
		Output: OutputConfig{
			DestinationDirectory: "downloads",
			DirPermissions:       "0755",
			FilePermissions:      "0644",
		},
		Mirror: MirrorConfig{
			PerPage:           500,
			CourtesyDelay:     500 * time.Millisecond,
			RateLimitCooldown: 300 * time.Second,
			DownloadTimeout:   5 * time.Minute,
		},
		PageRetry: PageRetryConfig{
			InitialDelay: 30 * time.Second,
			MaxDelay:     5 * time.Minute,
			Multiplier:   2.0,
			MaxAttempts:  10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		UI: UIConfig{
			Notifications: false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(envPrefix + "API_KEY"); v != "" {
		c.Flickr.APIKey = v
	}
	if v := os.Getenv(envPrefix + "API_SECRET"); v != "" {
		c.Flickr.APISecret = v
	}
	if v := os.Getenv(envPrefix + "OAUTH_TOKEN"); v != "" {
		c.Flickr.OAuthToken = v
	}
	if v := os.Getenv(envPrefix + "OAUTH_TOKEN_SECRET"); v != "" {
		c.Flickr.OAuthTokenSecret = v
	}
	if v := os.Getenv(envPrefix + "USER_ID"); v != "" {
		c.Flickr.UserID = v
	}
	if v := os.Getenv(envPrefix + "ENDPOINT"); v != "" {
		c.Flickr.Endpoint = v
	}
	if v := os.Getenv(envPrefix + "DESTINATION_DIRECTORY"); v != "" {
		c.Output.DestinationDirectory = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv(envPrefix + "NOTIFICATIONS"); v != "" {
		c.UI.Notifications = strings.EqualFold(v, "true")
	}

	if v := os.Getenv(envPrefix + "PAGE_RETRY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAGE_RETRY_MAX_ATTEMPTS: %w", envPrefix, err))
		} else {
			c.PageRetry.MaxAttempts = n
		}
	}
	if v := os.Getenv(envPrefix + "COURTESY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCOURTESY_DELAY: %w", envPrefix, err))
		} else {
			c.Mirror.CourtesyDelay = d
		}
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // no config file is not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".flickrmirror.yaml",
		".flickrmirror.yml",
		filepath.Join(home, ".config", "flickrmirror", "config.yaml"),
		filepath.Join(home, ".config", "flickrmirror", "config.yml"),
		filepath.Join(home, ".flickrmirror.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks that the configuration can drive a mirror run
func (c *Config) Validate() error {
	var errs []error

	if c.Flickr.APIKey == "" {
		errs = append(errs, errors.New("flickr api_key is required"))
	}
	if c.Flickr.APISecret == "" {
		errs = append(errs, errors.New("flickr api_secret is required"))
	}
	if c.Flickr.Endpoint == "" {
		errs = append(errs, errors.New("flickr endpoint is required"))
	}
	if c.Output.DestinationDirectory == "" {
		errs = append(errs, errors.New("destination_directory is required"))
	}
	if _, err := ParsePerm(c.Output.DirPermissions); err != nil {
		errs = append(errs, fmt.Errorf("dir_permissions: %w", err))
	}
	if _, err := ParsePerm(c.Output.FilePermissions); err != nil {
		errs = append(errs, fmt.Errorf("file_permissions: %w", err))
	}

	if c.Mirror.PerPage <= 0 || c.Mirror.PerPage > 500 {
		errs = append(errs, errors.New("per_page must be between 1 and 500"))
	}
	if c.Mirror.CourtesyDelay < 0 {
		errs = append(errs, errors.New("courtesy_delay cannot be negative"))
	}
	if c.Mirror.RateLimitCooldown < 0 {
		errs = append(errs, errors.New("rate_limit_cooldown cannot be negative"))
	}

	if c.PageRetry.MaxAttempts < 0 {
		errs = append(errs, errors.New("page_retry max_attempts cannot be negative"))
	}
	if c.PageRetry.Multiplier < 1 {
		errs = append(errs, errors.New("page_retry multiplier must be at least 1"))
	}
	if c.PageRetry.MaxDelay < c.PageRetry.InitialDelay {
		errs = append(errs, errors.New("page_retry max_delay must not be below initial_delay"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// HasToken reports whether an OAuth access token is configured
func (c *Config) HasToken() bool {
	return c.Flickr.OAuthToken != "" && c.Flickr.OAuthTokenSecret != ""
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["api-key"].(string); ok && v != "" {
		c.Flickr.APIKey = v
	}
	if v, ok := flags["api-secret"].(string); ok && v != "" {
		c.Flickr.APISecret = v
	}
	if v, ok := flags["user-id"].(string); ok && v != "" {
		c.Flickr.UserID = v
	}
	if v, ok := flags["destination"].(string); ok && v != "" {
		c.Output.DestinationDirectory = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["page-retry-max-attempts"].(int); ok && v >= 0 {
		c.PageRetry.MaxAttempts = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.UI.Notifications = v
	}
	if v, ok := flags["tui"].(bool); ok {
		c.UI.TUI = v
	}
	if v, ok := flags["quiet"].(bool); ok {
		c.UI.Quiet = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment (including .env) > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".flickrmirror.env"))

	cfg, err := LoadUnvalidated(configPath, flags)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadUnvalidated layers defaults, file, environment and flags without
// validating the result. Used by commands that inspect a partial config.
func LoadUnvalidated(configPath string, flags map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	return cfg, nil
}

// ParsePerm parses an octal permission string such as "0755"
func ParsePerm(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid permission %q: %w", s, err)
	}
	if v > 0o777 {
		return 0, fmt.Errorf("invalid permission %q", s)
	}
	return os.FileMode(v), nil
}
