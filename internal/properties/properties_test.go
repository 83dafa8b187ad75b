package properties

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("ROOT_PATH", "/srv/sdg")
	t.Setenv("RESULT_DIR", "")
	t.Setenv("WORK_DIR", "")
	t.Setenv("CACHE_DIR", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("DOWNLOAD_WORKERS", "")

	assert.Equal(t, filepath.Join("/srv/sdg", "data", "result"), ResultDir())
	assert.Equal(t, filepath.Join("/srv/sdg", "data", "tmp"), WorkDir())
	assert.Equal(t, filepath.Join("/srv/sdg", "data", "cache"), CacheDir())
	assert.Equal(t, 30*time.Second, PollInterval())
	assert.Equal(t, 4, DownloadWorkers())
}

func TestOverrides(t *testing.T) {
	t.Setenv("CACHE_DIR", "off")
	t.Setenv("DOWNLOAD_WORKERS", "8")
	assert.Empty(t, CacheDir())
	assert.Equal(t, 8, DownloadWorkers())

	for value, want := range map[string]time.Duration{
		"2m":    2 * time.Minute,
		"45":    45 * time.Second,
		"-5s":   30 * time.Second,
		"often": 30 * time.Second,
	} {
		t.Setenv("POLL_INTERVAL", value)
		assert.Equal(t, want, PollInterval(), value)
	}
}

func TestLoadReadsFirstExistingFile(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("BACKEND_URL=https://backend.example\n"), 0o644))
	t.Setenv("BACKEND_URL", "")
	os.Unsetenv("BACKEND_URL")

	require.NoError(t, Load(filepath.Join(dir, "missing.env"), env))
	assert.Equal(t, "https://backend.example", BackendURL())
}

func TestLoadWithoutFile(t *testing.T) {
	assert.NoError(t, Load(filepath.Join(t.TempDir(), "none.env")))
}
