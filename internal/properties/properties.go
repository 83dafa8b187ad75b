package properties

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPollInterval    = 30 * time.Second
	defaultDownloadWorkers = 4
)

// Load reads the first .env file found among paths (".env" and "../.env" when none are given).
// A missing file is not an error: the process environment is used as is.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env", "../.env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		return godotenv.Load(p)
	}
	return nil
}

func RootPath() string {
	if p := os.Getenv("ROOT_PATH"); p != "" {
		return p
	}
	return "."
}

// ResultDir holds the merged mosaics and zonal archives.
func ResultDir() string {
	if p := os.Getenv("RESULT_DIR"); p != "" {
		return p
	}
	return filepath.Join(RootPath(), "data", "result")
}

func WorkDir() string {
	if p := os.Getenv("WORK_DIR"); p != "" {
		return p
	}
	return filepath.Join(RootPath(), "data", "tmp")
}

// CacheDir holds fetched composites between runs. CACHE_DIR=off disables the cache.
func CacheDir() string {
	switch p := os.Getenv("CACHE_DIR"); p {
	case "off":
		return ""
	case "":
		return filepath.Join(RootPath(), "data", "cache")
	default:
		return p
	}
}

func PollInterval() time.Duration {
	return durationEnv("POLL_INTERVAL", defaultPollInterval)
}

func DownloadWorkers() int {
	if n, err := strconv.Atoi(os.Getenv("DOWNLOAD_WORKERS")); err == nil && n > 0 {
		return n
	}
	return defaultDownloadWorkers
}

func BackendURL() string {
	return os.Getenv("BACKEND_URL")
}

func StorageURL() string {
	return os.Getenv("STORAGE_URL")
}

// Client credentials shared by the backend and storage clients.
func ClientID() string {
	return os.Getenv("BACKEND_CLIENT_ID")
}

func ClientSecret() string {
	return os.Getenv("BACKEND_CLIENT_SECRET")
}

func TokenURL() string {
	return os.Getenv("BACKEND_TOKEN_URL")
}

// DatabaseURL enables the export job ledger when set.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}

func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}

func LogLevel() string {
	return os.Getenv("LOG_LEVEL")
}

func LogFormat() string {
	return os.Getenv("LOG_FORMAT")
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

type Color struct {
	R, G, B uint8
}

// ColorMap is the indicator palette keyed by class name.
var ColorMap = map[string]Color{
	"degraded": {215, 25, 28},
	"stable":   {255, 255, 191},
	"improved": {26, 150, 65},
}
