package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, ":2525", cfg.Intake.BindAddr)
	assert.Equal(t, "in.lettervault.app", cfg.Intake.Domain)
	assert.Equal(t, int64(10*1024*1024), cfg.Intake.MaxMsgBytes)

	assert.Equal(t, 3, cfg.Import.Concurrency)
	assert.Equal(t, 3, cfg.Import.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Import.RetryBaseDelay)
	assert.Equal(t, 500, cfg.Import.FreeMonthlyQuota)

	assert.Empty(t, cfg.Remote.BaseURL, "远程导入默认禁用")

	assert.Equal(t, 30*time.Second, cfg.Folder.UndoWindow)
	assert.Equal(t, time.Minute, cfg.Folder.SweepInterval)

	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)

	assert.Empty(t, cfg.Database.Type, "默认内存存储")
	assert.False(t, cfg.Redis.Enabled)

	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
	assert.Equal(t, 168*time.Hour, cfg.JWT.RefreshExpiry)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LETTERVAULT_SERVER_PORT", "9090")
	t.Setenv("LETTERVAULT_IMPORT_CONCURRENCY", "8")
	t.Setenv("LETTERVAULT_FOLDER_UNDO_WINDOW", "45s")
	t.Setenv("LETTERVAULT_CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("LETTERVAULT_REDIS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Import.Concurrency)
	assert.Equal(t, 45*time.Second, cfg.Folder.UndoWindow)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("非法时长", func(t *testing.T) {
		t.Setenv("LETTERVAULT_FOLDER_UNDO_WINDOW", "soon")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("不支持的数据库类型", func(t *testing.T) {
		t.Setenv("LETTERVAULT_DATABASE_TYPE", "sqlite")
		t.Setenv("LETTERVAULT_DATABASE_DSN", "file::memory:")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("指定数据库类型时必须提供 DSN", func(t *testing.T) {
		t.Setenv("LETTERVAULT_DATABASE_TYPE", "postgres")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非正并发数回落为默认", func(t *testing.T) {
		t.Setenv("LETTERVAULT_IMPORT_CONCURRENCY", "0")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Import.Concurrency)
	})
}
