package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	SinkTelegram  = "telegram"
	SinkS3        = "s3"
	SinkDirectory = "directory"

	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
)

const (
	defaultStagingStaleHours     = 24
	defaultCatalogBaseURL        = "https://api.classplusapp.com"
	defaultSignedURLPath         = "/cams/uploader/video/jw-signed-url"
	defaultCatalogAPIVersion     = "52"
	defaultCatalogRegion         = "IN"
	defaultCatalogRequestTimeout = 30
	defaultCatalogMaxDepth       = 32
	defaultQuality               = "480p"
	defaultManifestTimeout       = 20
	defaultRemuxBinary           = "ffmpeg"
	defaultRemuxTimeout          = 3600
	defaultSizeCeilingMB         = 1900
	telegramPublicCeilingMB      = 47
	defaultPartLayout            = "balanced"
	defaultUploadDelaySeconds    = 3
	defaultDownloadTimeout       = 3600
	defaultUploadTimeout         = 1800
	defaultConcurrency           = 2
	defaultSinkKind              = SinkTelegram
	defaultTelegramAPIURL        = "https://api.telegram.org"
	defaultS3Region              = "us-east-1"
	defaultLedgerDriver          = LedgerSQLite
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Upload limits of the Telegram Bot API. The public server rejects multipart
// uploads over 50 MB; a local Bot API server accepts up to 2000 MB.
const (
	telegramPublicHost       = "api.telegram.org"
	telegramPublicLimitBytes = 50_000_000
	telegramLocalLimitBytes  = 2_000_000_000
)

func defaultStagingDir() string {
	return filepath.Join(xdg.CacheHome, "ferry", "staging")
}

func defaultStateDir() string {
	return filepath.Join(xdg.StateHome, "ferry")
}

func defaultLogDir() string {
	return filepath.Join(xdg.StateHome, "ferry", "logs")
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir(),
			StateDir:   defaultStateDir(),
			LogDir:     defaultLogDir(),

			StagingStaleHours: defaultStagingStaleHours,
		},
		Catalog: Catalog{
			BaseURL:        defaultCatalogBaseURL,
			SignedURLPath:  defaultSignedURLPath,
			APIVersion:     defaultCatalogAPIVersion,
			Region:         defaultCatalogRegion,
			RequestTimeout: defaultCatalogRequestTimeout,
			MaxDepth:       defaultCatalogMaxDepth,
		},
		Rendition: Rendition{
			Quality:         defaultQuality,
			ManifestTimeout: defaultManifestTimeout,
		},
		Remux: Remux{
			Binary:  defaultRemuxBinary,
			Timeout: defaultRemuxTimeout,
		},
		Transfer: Transfer{
			SizeCeilingMB:      0,
			PartLayout:         defaultPartLayout,
			UploadDelaySeconds: defaultUploadDelaySeconds,
			DownloadTimeout:    defaultDownloadTimeout,
			UploadTimeout:      defaultUploadTimeout,
			Concurrency:        defaultConcurrency,
		},
		Sink: Sink{
			Kind: defaultSinkKind,
			Telegram: Telegram{
				APIURL: defaultTelegramAPIURL,
			},
			S3: S3{
				Region: defaultS3Region,
			},
		},
		Ledger: Ledger{
			Driver: defaultLedgerDriver,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
