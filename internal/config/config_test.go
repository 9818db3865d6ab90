package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SEKOU_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sekou", cfg.App.Name)
	assert.Equal(t, 7012, cfg.App.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "Asia/Tokyo", cfg.Calendar.Timezone)
	assert.Equal(t, 3, cfg.Calendar.MaxPerCell)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, uint32(5), cfg.Assignment.BreakerFailures)
	assert.Equal(t, []string{"*"}, cfg.API.CORS.Origins)
	assert.True(t, cfg.IsDevelopment())
	assert.Len(t, cfg.Calendar.Slots(), 3)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SEKOU_CONFIG", "")
	t.Setenv("SEKOU_APP_PORT", "9000")
	t.Setenv("SEKOU_STORAGE_DRIVER", "redis")
	t.Setenv("SEKOU_ASSIGNMENT_BASE_URL", "http://assign.internal")
	t.Setenv("SEKOU_ASSIGNMENT_TIMEOUT", "3s")
	t.Setenv("SEKOU_API_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, "http://assign.internal", cfg.Assignment.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Assignment.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORS.Origins)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sekou.yaml")
	content := `
app:
  env: production
calendar:
  timezone: UTC
  max_per_cell: 5
  time_slots:
    - id: am
      name: 午前
      start: "09:00"
      end: "12:00"
session:
  ttl: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SEKOU_CONFIG", path)
	t.Setenv("SEKOU_APP_PORT", "8100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 8100, cfg.App.Port, "文件中未出现的字段保持环境变量的值")
	assert.Equal(t, 5, cfg.Calendar.MaxPerCell)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	require.Len(t, cfg.Calendar.Slots(), 1)
	assert.Equal(t, "am", cfg.Calendar.Slots()[0].ID)

	loc, err := cfg.Calendar.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"未知存储驱动", "SEKOU_STORAGE_DRIVER", "sqlite"},
		{"非法时区", "SEKOU_CALENDAR_TIMEZONE", "Mars/Olympus"},
		{"非法端口", "SEKOU_APP_PORT", "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SEKOU_CONFIG", "")
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("SEKOU_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())
}
