package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`

	StagingStaleHours int `toml:"staging_stale_hours"`
}

// Catalog contains configuration for the remote course catalog API.
type Catalog struct {
	BaseURL        string `toml:"base_url"`
	SignedURLPath  string `toml:"signed_url_path"`
	CourseID       string `toml:"course_id"`
	RootFolderID   string `toml:"root_folder_id"`
	AccessToken    string `toml:"access_token"`
	APIVersion     string `toml:"api_version"`
	Region         string `toml:"region"`
	RequestTimeout int    `toml:"request_timeout"`
	MaxDepth       int    `toml:"max_depth"`
}

// Rendition contains the video quality preference.
type Rendition struct {
	Quality         string `toml:"quality"`
	ManifestTimeout int    `toml:"manifest_timeout"`
}

// Remux contains configuration for the external container remux tool.
type Remux struct {
	Binary  string `toml:"binary"`
	Timeout int    `toml:"timeout"`
}

// Transfer contains the per-item pipeline limits.
type Transfer struct {
	SizeCeilingMB      int64  `toml:"size_ceiling_mb"`
	PartLayout         string `toml:"part_layout"`
	UploadDelaySeconds int    `toml:"upload_delay_seconds"`
	DownloadTimeout    int    `toml:"download_timeout"`
	UploadTimeout      int    `toml:"upload_timeout"`
	Concurrency        int    `toml:"concurrency"`
}

// Telegram contains Bot API upload settings.
type Telegram struct {
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
	APIURL   string `toml:"api_url"`
}

// S3 contains object storage upload settings.
type S3 struct {
	Endpoint        string `toml:"endpoint"`
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Prefix          string `toml:"prefix"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	UsePathStyle    bool   `toml:"use_path_style"`
}

// Directory contains settings for the local directory sink.
type Directory struct {
	Path string `toml:"path"`
}

// Sink selects and configures the upload destination.
type Sink struct {
	Kind      string    `toml:"kind"`
	Telegram  Telegram  `toml:"telegram"`
	S3        S3        `toml:"s3"`
	Directory Directory `toml:"directory"`
}

// Ledger configures the completion ledger store.
type Ledger struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ferry.
//
// Configuration sections by subsystem:
//   - Paths: staging, ledger state, and log directories
//   - Catalog: remote course catalog endpoint and credentials
//   - Rendition: preferred video quality
//   - Remux: ffmpeg binary and run limit
//   - Transfer: size ceiling, throttling, timeouts, and concurrency
//   - Sink: upload destination (telegram, s3, directory)
//   - Ledger: completion ledger driver
//   - Notifications: ntfy push notification settings
//   - Metrics: Prometheus listener
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Catalog       Catalog       `toml:"catalog"`
	Rendition     Rendition     `toml:"rendition"`
	Remux         Remux         `toml:"remux"`
	Transfer      Transfer      `toml:"transfer"`
	Sink          Sink          `toml:"sink"`
	Ledger        Ledger        `toml:"ledger"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(filepath.Join(xdg.ConfigHome, "ferry", "config.toml"))
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file next to the configuration file or in
// the working directory is loaded first so secrets can stay out of the TOML file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(filepath.Dir(resolvedPath))

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv never overrides variables already present in the environment.
func loadDotEnv(configDir string) {
	candidates := []string{".env"}
	if configDir != "" && configDir != "." {
		candidates = append([]string{filepath.Join(configDir, ".env")}, candidates...)
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ferry.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the staging, state, and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir}
	if c.Sink.Kind == SinkDirectory && strings.TrimSpace(c.Sink.Directory.Path) != "" {
		dirs = append(dirs, c.Sink.Directory.Path)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the sqlite ledger database location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath returns the run lock guarding the staging directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StagingDir, ".ferry.lock")
}

// SizeCeilingMB returns the configured part ceiling, or the sink's default
// when transfer.size_ceiling_mb is zero.
func (c *Config) SizeCeilingMB() int64 {
	if c.Transfer.SizeCeilingMB > 0 {
		return c.Transfer.SizeCeilingMB
	}
	if c.Sink.Kind == SinkTelegram && c.TelegramPublicAPI() {
		return telegramPublicCeilingMB
	}
	return defaultSizeCeilingMB
}

// SizeCeilingBytes converts the effective part ceiling to bytes.
func (c *Config) SizeCeilingBytes() int64 {
	return c.SizeCeilingMB() * 1024 * 1024
}

// TelegramPublicAPI reports whether the telegram sink talks to the public Bot
// API server rather than a local one.
func (c *Config) TelegramPublicAPI() bool {
	raw := strings.TrimSpace(c.Sink.Telegram.APIURL)
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	return strings.EqualFold(u.Hostname(), telegramPublicHost)
}

// StagingStaleAfter returns the age after which leftover item directories are purged.
func (c *Config) StagingStaleAfter() time.Duration {
	return time.Duration(c.Paths.StagingStaleHours) * time.Hour
}

// UploadDelay returns the enforced minimum gap between uploads.
func (c *Config) UploadDelay() time.Duration {
	return time.Duration(c.Transfer.UploadDelaySeconds) * time.Second
}

// DownloadTimeout bounds a single document or direct video download.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Transfer.DownloadTimeout) * time.Second
}

// UploadTimeout bounds a single part upload.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Transfer.UploadTimeout) * time.Second
}

// RemuxTimeout bounds a single ffmpeg invocation.
func (c *Config) RemuxTimeout() time.Duration {
	return time.Duration(c.Remux.Timeout) * time.Second
}

// CatalogTimeout bounds a single catalog API request.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.RequestTimeout) * time.Second
}

// ManifestTimeout bounds a rendition manifest fetch.
func (c *Config) ManifestTimeout() time.Duration {
	return time.Duration(c.Rendition.ManifestTimeout) * time.Second
}

// RemuxBinary returns the ffmpeg executable name.
func (c *Config) RemuxBinary() string {
	if strings.TrimSpace(c.Remux.Binary) == "" {
		return defaultRemuxBinary
	}
	return c.Remux.Binary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
