package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Output      OutputConfig      `mapstructure:"output"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	Terraform   TerraformConfig   `mapstructure:"terraform"`
	Artifacts   ArtifactsConfig   `mapstructure:"artifacts"`
	Server      ServerConfig      `mapstructure:"server"`
	Analyzer    AnalyzerConfig    `mapstructure:"analyzer"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig holds where generated bundles are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// DatabaseConfig holds the history database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// CredentialsConfig holds the location of the master key that seals stored
// provider credentials.
type CredentialsConfig struct {
	KeyFile string `mapstructure:"key_file"`
}

// GeminiConfig holds the language model settings. Without an API key the
// keyword extractor and the rule table are used.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// TerraformConfig selects how Terraform runs.
type TerraformConfig struct {
	Binary string `mapstructure:"binary"`
	// Runner is "local" (terraform on PATH) or "docker".
	Runner     string `mapstructure:"runner"`
	Image      string `mapstructure:"image"`
	DockerHost string `mapstructure:"docker_host"`
}

// ArtifactsConfig holds the S3-compatible bucket bundle archives are
// uploaded to. Archives stay local when no endpoint is set.
type ArtifactsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ServerConfig holds HTTP server and worker configuration for serve mode.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Workers is how many deployments run at once.
	Workers       int           `mapstructure:"workers"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	DeployTimeout time.Duration `mapstructure:"deploy_timeout"`
	// StreamPoll is how often log streams check for new lines.
	StreamPoll time.Duration `mapstructure:"stream_poll"`

	// Tokens are accepted bearer tokens. Empty disables authentication.
	Tokens []string `mapstructure:"tokens"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AnalyzerConfig holds repository analysis configuration.
type AnalyzerConfig struct {
	WorkDir      string        `mapstructure:"work_dir"`
	CloneTimeout time.Duration `mapstructure:"clone_timeout"`
	CacheSize    int           `mapstructure:"cache_size"`
}

// =============================================================================
// Config Loading
// =============================================================================

// DataDir is the default home of the history database and the master key.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".autodeploy"
	}
	return filepath.Join(home, ".autodeploy")
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment. Variables already set win; missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	dataDir := DataDir()

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("output.dir", "./deployments")
	v.SetDefault("database.path", filepath.Join(dataDir, "history.db"))
	v.SetDefault("credentials.key_file", filepath.Join(dataDir, "master.key"))
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "")
	v.SetDefault("terraform.binary", "terraform")
	v.SetDefault("terraform.runner", "local")
	v.SetDefault("terraform.image", "")
	v.SetDefault("terraform.docker_host", "")

	v.SetDefault("artifacts.enabled", false)
	v.SetDefault("artifacts.endpoint", "")
	v.SetDefault("artifacts.region", "us-east-1")
	v.SetDefault("artifacts.bucket", "autodeploy-bundles")
	v.SetDefault("artifacts.access_key", "")
	v.SetDefault("artifacts.secret_key", "")
	v.SetDefault("artifacts.use_ssl", true)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.workers", 2)
	v.SetDefault("server.poll_interval", "5s")
	v.SetDefault("server.deploy_timeout", "1h")
	v.SetDefault("server.stream_poll", "1s")
	v.SetDefault("server.tokens", []string{})

	v.SetDefault("analyzer.work_dir", "")
	v.SetDefault("analyzer.clone_timeout", "2m")
	v.SetDefault("analyzer.cache_size", 32)

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only a file that exists but cannot be parsed is fatal.
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("AUTODEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The Gemini key is commonly exported without the prefix.
	if v.GetString("gemini.api_key") == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			v.Set("gemini.api_key", key)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// AUTODEPLOY_SERVER_TOKENS arrives as one comma separated string.
	cfg.Server.Tokens = splitTokens(cfg.Server.Tokens)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Terraform.Runner) {
	case "local", "docker":
	default:
		return fmt.Errorf("terraform.runner must be local or docker, got %q", c.Terraform.Runner)
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("server.workers must be at least 1, got %d", c.Server.Workers)
	}
	if c.Analyzer.CacheSize < 0 {
		return fmt.Errorf("analyzer.cache_size must not be negative, got %d", c.Analyzer.CacheSize)
	}
	return nil
}

func splitTokens(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, token := range strings.Split(entry, ",") {
			if token = strings.TrimSpace(token); token != "" {
				out = append(out, token)
			}
		}
	}
	return out
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
// Logs go to w so command output on stdout stays clean.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
