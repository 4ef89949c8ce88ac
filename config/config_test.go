package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "estmator.yml")
	body := `
system:
  workdir: ` + dir + `
web:
  port: 9000
  base_url: https://quotes.example.com
database:
  type: sqlite
  name: estmator.db
mail:
  enabled: true
  host: smtp.example.com
  port: 587
  from: quotes@example.com
`
	require.NoError(t, os.WriteFile(cfile, []byte(body), 0o644))

	t.Setenv("ESTMATOR_WEB_PORT", "9100")
	t.Setenv("ESTMATOR_MAIL_USE_HTML", "false")

	cfg := LoadConfig(cfile)
	assert.Equal(t, 9100, cfg.Web.Port)
	assert.Equal(t, "https://quotes.example.com", cfg.Web.BaseURL)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.True(t, cfg.Mail.Enabled)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.False(t, cfg.Mail.UseHTML)
	// defaults survive when the file does not mention them
	assert.Equal(t, 12, cfg.Web.TokenTTL)

	assert.DirExists(t, cfg.GetLogDir())
	assert.DirExists(t, cfg.GetDataDir())
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ESTMATOR_SYSTEM_WORKER_DIR", dir)

	cfg := LoadConfig(filepath.Join(dir, "absent.yml"))
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 1816, cfg.Web.Port)
	assert.Equal(t, dir, cfg.System.Workdir)
}
