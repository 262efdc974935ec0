package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeRendition()
	c.normalizeTransfer()
	if err := c.normalizeSink(); err != nil {
		return err
	}
	c.normalizeLedger()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir()
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir()
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	c.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.Catalog.BaseURL), "/")
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = defaultCatalogBaseURL
	}
	c.Catalog.SignedURLPath = strings.TrimSpace(c.Catalog.SignedURLPath)
	if c.Catalog.SignedURLPath == "" {
		c.Catalog.SignedURLPath = defaultSignedURLPath
	}
	c.Catalog.CourseID = strings.TrimSpace(c.Catalog.CourseID)
	c.Catalog.RootFolderID = strings.TrimSpace(c.Catalog.RootFolderID)
	c.Catalog.AccessToken = strings.TrimSpace(c.Catalog.AccessToken)
	if c.Catalog.AccessToken == "" {
		if value, ok := os.LookupEnv("FERRY_CATALOG_TOKEN"); ok {
			c.Catalog.AccessToken = strings.TrimSpace(value)
		}
	}
	c.Catalog.APIVersion = strings.TrimSpace(c.Catalog.APIVersion)
	if c.Catalog.APIVersion == "" {
		c.Catalog.APIVersion = defaultCatalogAPIVersion
	}
	c.Catalog.Region = strings.TrimSpace(c.Catalog.Region)
	if c.Catalog.Region == "" {
		c.Catalog.Region = defaultCatalogRegion
	}
}

func (c *Config) normalizeRendition() {
	c.Rendition.Quality = strings.ToLower(strings.TrimSpace(c.Rendition.Quality))
	if c.Rendition.Quality == "" {
		c.Rendition.Quality = defaultQuality
	}
}

func (c *Config) normalizeTransfer() {
	c.Transfer.PartLayout = strings.ToLower(strings.TrimSpace(c.Transfer.PartLayout))
	if c.Transfer.PartLayout == "" {
		c.Transfer.PartLayout = defaultPartLayout
	}
	c.Remux.Binary = strings.TrimSpace(c.Remux.Binary)
}

func (c *Config) normalizeSink() error {
	c.Sink.Kind = strings.ToLower(strings.TrimSpace(c.Sink.Kind))
	if c.Sink.Kind == "" {
		c.Sink.Kind = defaultSinkKind
	}

	tg := &c.Sink.Telegram
	tg.BotToken = strings.TrimSpace(tg.BotToken)
	if tg.BotToken == "" {
		if value, ok := os.LookupEnv("TELEGRAM_BOT_TOKEN"); ok {
			tg.BotToken = strings.TrimSpace(value)
		}
	}
	tg.ChatID = strings.TrimSpace(tg.ChatID)
	if tg.ChatID == "" {
		if value, ok := os.LookupEnv("TELEGRAM_CHAT_ID"); ok {
			tg.ChatID = strings.TrimSpace(value)
		}
	}
	tg.APIURL = strings.TrimRight(strings.TrimSpace(tg.APIURL), "/")
	if tg.APIURL == "" {
		tg.APIURL = defaultTelegramAPIURL
	}

	s3 := &c.Sink.S3
	s3.Endpoint = strings.TrimSpace(s3.Endpoint)
	s3.Bucket = strings.TrimSpace(s3.Bucket)
	s3.Prefix = strings.Trim(strings.TrimSpace(s3.Prefix), "/")
	s3.Region = strings.TrimSpace(s3.Region)
	if s3.Region == "" {
		if value, ok := os.LookupEnv("AWS_REGION"); ok && strings.TrimSpace(value) != "" {
			s3.Region = strings.TrimSpace(value)
		} else {
			s3.Region = defaultS3Region
		}
	}
	if s3.AccessKeyID == "" {
		if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
			s3.AccessKeyID = strings.TrimSpace(value)
		}
	}
	if s3.SecretAccessKey == "" {
		if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
			s3.SecretAccessKey = strings.TrimSpace(value)
		}
	}

	if strings.TrimSpace(c.Sink.Directory.Path) != "" {
		expanded, err := expandPath(c.Sink.Directory.Path)
		if err != nil {
			return fmt.Errorf("sink.directory.path: %w", err)
		}
		c.Sink.Directory.Path = expanded
	}
	return nil
}

func (c *Config) normalizeLedger() {
	c.Ledger.Driver = strings.ToLower(strings.TrimSpace(c.Ledger.Driver))
	switch c.Ledger.Driver {
	case "", "sqlite3":
		c.Ledger.Driver = LedgerSQLite
	case "postgresql", "pg":
		c.Ledger.Driver = LedgerPostgres
	}
	c.Ledger.DSN = strings.TrimSpace(c.Ledger.DSN)
	if c.Ledger.DSN == "" {
		if value, ok := os.LookupEnv("FERRY_LEDGER_DSN"); ok {
			c.Ledger.DSN = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
