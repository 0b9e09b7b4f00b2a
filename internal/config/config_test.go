package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_FileAndDefaults(t *testing.T) {
	p := writeYAML(t, `
app:
  env: prod
postgres:
  dsn: postgres://ledger@localhost/ledger
ledger:
  lock_wait: 500ms
telegram:
  admin_chat_id: -100123
  recipients: [11, 22]
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "prod", c.App.Env)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, StoragePostgres, c.Ledger.Storage)
	assert.Equal(t, 500*time.Millisecond, c.Ledger.LockWait)
	assert.Equal(t, 2*time.Second, c.Postgres.LockTimeout)
	assert.Equal(t, int64(-100123), c.Telegram.AdminChatID)
	assert.Equal(t, []int64{11, 22}, c.Telegram.Recipients)
	assert.Equal(t, "ledger:low_stock", c.Redis.AlertQueue)
	assert.True(t, c.Metrics.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_LEDGER_STORAGE", "memory")
	t.Setenv("APP_HTTP_ADDR", ":9090")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, c.Ledger.Storage)
	assert.Equal(t, ":9090", c.HTTP.Addr)
}

func TestLoad_EnvOnlyKeys(t *testing.T) {
	t.Setenv("APP_POSTGRES_DSN", "postgres://env@localhost/ledger")
	t.Setenv("APP_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("APP_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("APP_TELEGRAM_ADMIN_CHAT_ID", "-100500")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env@localhost/ledger", c.Postgres.DSN)
	assert.Equal(t, "redis://localhost:6379/0", c.Redis.URL)
	assert.Equal(t, "123:abc", c.Telegram.Token)
	assert.Equal(t, int64(-100500), c.Telegram.AdminChatID)
	assert.Equal(t, 10*time.Second, c.Ledger.DeliverTimeout)
}

func TestLoad_Validation(t *testing.T) {
	_, err := Load(writeYAML(t, "ledger:\n  storage: postgres\n"))
	assert.ErrorContains(t, err, "postgres.dsn")

	_, err = Load(writeYAML(t, "ledger:\n  storage: sqlite\n"))
	assert.ErrorContains(t, err, "unknown ledger.storage")

	_, err = Load(writeYAML(t, "ledger:\n  storage: memory\n  lock_wait: 0s\n"))
	assert.ErrorContains(t, err, "lock_wait")

	_, err = Load(writeYAML(t, "ledger:\n  storage: memory\n  deliver_timeout: 0s\n"))
	assert.ErrorContains(t, err, "deliver_timeout")
}
