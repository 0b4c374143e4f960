package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashcore/internal/blob"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
http:
  shutdown_timeout: 3s
data_dir: data
dashboards_dir: /etc/dashd/dashboards
sources:
  ridership:
    url: mta.csv
disabled_plugins: [marathon]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data"), cfg.DataDir)
	assert.Equal(t, "/etc/dashd/dashboards", cfg.DashboardsDir)
	assert.Equal(t, "mta.csv", cfg.Sources["ridership"].URL)
	assert.False(t, cfg.Enabled("marathon"))
	assert.False(t, cfg.Enabled("Marathon"))
	assert.True(t, cfg.Enabled("grants"))
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\nblob:\n  driver: fs\n")
	t.Setenv("DASHCORE_LOG_LEVEL", "warn")
	t.Setenv("DASHCORE_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("DASHCORE_BLOB_DRIVER", "s3")
	t.Setenv("DASHCORE_BLOB_S3_BUCKET", "artifacts")
	t.Setenv("DASHCORE_BLOB_S3_PATH_STYLE", "TRUE")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, blob.DriverS3, cfg.Blob.Driver)
	assert.Equal(t, "artifacts", cfg.Blob.S3.Bucket)
	assert.True(t, cfg.Blob.S3.PathStyle)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"syntax":     "logging: [",
		"level":      "logging:\n  level: chatty\n",
		"driver":     "blob:\n  driver: floppy\n",
		"s3 bucket":  "blob:\n  driver: s3\n",
		"queue size": "export:\n  queue_size: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestValidateAcceptsEmptyDriver(t *testing.T) {
	cfg := Default()
	cfg.Blob.Driver = ""
	assert.NoError(t, cfg.Validate())
}
