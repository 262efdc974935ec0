package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var validQualities = map[string]struct{}{
	"240p":  {},
	"360p":  {},
	"480p":  {},
	"720p":  {},
	"1080p": {},
}

// Validate ensures the configuration is usable by every command. Catalog
// credentials are only required by commands that walk the catalog; see
// ValidateCatalog.
func (c *Config) Validate() error {
	if err := c.validateRendition(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateSink(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"catalog.request_timeout":       c.Catalog.RequestTimeout,
		"catalog.max_depth":             c.Catalog.MaxDepth,
		"rendition.manifest_timeout":    c.Rendition.ManifestTimeout,
		"remux.timeout":                 c.Remux.Timeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"paths.staging_stale_hours":     c.Paths.StagingStaleHours,
	}); err != nil {
		return err
	}
	return nil
}

// ValidateCatalog checks the settings needed to walk the remote catalog.
func (c *Config) ValidateCatalog(now time.Time) error {
	if c.Catalog.BaseURL == "" {
		return errors.New("catalog.base_url must be set")
	}
	if _, err := url.ParseRequestURI(c.Catalog.BaseURL); err != nil {
		return fmt.Errorf("catalog.base_url is not a valid URL: %w", err)
	}
	if c.Catalog.CourseID == "" {
		return errors.New("catalog.course_id must be set")
	}
	if c.Catalog.RootFolderID == "" {
		return errors.New("catalog.root_folder_id must be set")
	}
	if c.Catalog.AccessToken == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/ferry/config.toml"
		}
		return fmt.Errorf("catalog.access_token is required. Set FERRY_CATALOG_TOKEN env var or edit %s (create with 'ferry config init')", defaultPath)
	}
	if exp, ok := TokenExpiry(c.Catalog.AccessToken); ok && !exp.After(now) {
		return fmt.Errorf("catalog.access_token expired at %s", exp.UTC().Format(time.RFC3339))
	}
	return nil
}

// TokenExpiry reads the exp claim of a JWT access token without verifying its
// signature. Opaque tokens report ok=false.
func TokenExpiry(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (c *Config) validateRendition() error {
	if _, ok := validQualities[c.Rendition.Quality]; !ok {
		return fmt.Errorf("rendition.quality %q is not one of 240p, 360p, 480p, 720p, 1080p", c.Rendition.Quality)
	}
	return nil
}

func (c *Config) validateTransfer() error {
	if c.Transfer.SizeCeilingMB < 0 {
		return errors.New("transfer.size_ceiling_mb must not be negative (0 uses the sink default)")
	}
	switch c.Transfer.PartLayout {
	case "balanced", "fill":
	default:
		return fmt.Errorf("transfer.part_layout %q must be balanced or fill", c.Transfer.PartLayout)
	}
	if c.Transfer.UploadDelaySeconds < 0 {
		return errors.New("transfer.upload_delay_seconds must not be negative")
	}
	return ensurePositiveMap(map[string]int{
		"transfer.download_timeout": c.Transfer.DownloadTimeout,
		"transfer.upload_timeout":   c.Transfer.UploadTimeout,
		"transfer.concurrency":      c.Transfer.Concurrency,
	})
}

func (c *Config) validateSink() error {
	switch c.Sink.Kind {
	case SinkTelegram:
		if c.Sink.Telegram.BotToken == "" {
			return errors.New("sink.telegram.bot_token is required. Set TELEGRAM_BOT_TOKEN env var or edit the config file")
		}
		if c.Sink.Telegram.ChatID == "" {
			return errors.New("sink.telegram.chat_id is required. Set TELEGRAM_CHAT_ID env var or edit the config file")
		}
		if err := c.validateTelegramCeiling(); err != nil {
			return err
		}
	case SinkS3:
		if c.Sink.S3.Bucket == "" {
			return errors.New("sink.s3.bucket must be set when sink.kind is s3")
		}
		if (c.Sink.S3.AccessKeyID == "") != (c.Sink.S3.SecretAccessKey == "") {
			return errors.New("sink.s3.access_key_id and sink.s3.secret_access_key must be set together")
		}
	case SinkDirectory:
		if c.Sink.Directory.Path == "" {
			return errors.New("sink.directory.path must be set when sink.kind is directory")
		}
	default:
		return fmt.Errorf("sink.kind %q must be telegram, s3, or directory", c.Sink.Kind)
	}
	return nil
}

// validateTelegramCeiling rejects part ceilings the Bot API would refuse, so an
// oversized part fails at startup instead of after a full download.
func (c *Config) validateTelegramCeiling() error {
	limit, server := int64(telegramLocalLimitBytes), "a local Bot API server"
	if c.TelegramPublicAPI() {
		limit, server = telegramPublicLimitBytes, "the public Bot API ("+telegramPublicHost+")"
	}
	if c.SizeCeilingBytes() > limit {
		return fmt.Errorf("transfer.size_ceiling_mb %d exceeds the %d MB upload limit of %s; lower it, set it to 0 for the sink default, or point sink.telegram.api_url at a local Bot API server",
			c.SizeCeilingMB(), limit/1_000_000, server)
	}
	return nil
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Driver {
	case LedgerSQLite:
		return nil
	case LedgerPostgres:
		if c.Ledger.DSN == "" {
			return errors.New("ledger.dsn must be set when ledger.driver is postgres (or set FERRY_LEDGER_DSN)")
		}
		return nil
	default:
		return fmt.Errorf("ledger.driver %q must be sqlite or postgres", c.Ledger.Driver)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
