package storyengine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "Suvichaar", cfg.Site.Name)
	assert.Equal(t, 3, cfg.Site.PublisherID)
	assert.Equal(t, DriverDir, cfg.Storage.Driver)
	assert.Equal(t, "suvichaarstories", cfg.Storage.HTMLBucket)
	assert.Equal(t, "https://stories.suvichaar.org/", cfg.Assets.RenderedBase)
	assert.Equal(t, "media.suvichaar.org", cfg.Assets.MediaHost)
	assert.Equal(t, 10*time.Second, cfg.Assets.FetchTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Template.CacheTTL)
	assert.Equal(t, "https://", cfg.Template.RepairPrefix)
	assert.Equal(t, 300, cfg.Oracle.MaxTokens)
	assert.Equal(t, []string{"en-US", "hi"}, cfg.Languages)
	assert.Equal(t, 22, cfg.Categories["Travel"])
	assert.Len(t, cfg.Attribution, 3)
	assert.False(t, cfg.UploadHTML)
}

func TestLoadConfigYAMLAndEnv(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	path := writeFile(t, "config.yml", `
server:
  addr: ":8080"
  rate_window: 30s
site:
  name: Stories
storage:
  driver: s3
  endpoint: minio.local:9000
  use_ssl: true
  html_bucket: html
  retry:
    timeout: 5s
assets:
  bucket: media
  third_party_hosts: [images.example.com]
template:
  strict: true
categories:
  Science: 40
languages: [en-US]
`)
	t.Setenv("UPLOAD_HTML", "yes")
	t.Setenv("ADDR", ":9090")
	t.Setenv("AWS_ACCESS_KEY", "AKIA")
	t.Setenv("LANGUAGES", "en-US, hi, mr")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.RateWindow)
	assert.Equal(t, "Stories", cfg.Site.Name)
	assert.Equal(t, DriverS3, cfg.Storage.Driver)
	assert.Equal(t, "minio.local:9000", cfg.Storage.S3.Endpoint)
	assert.True(t, cfg.Storage.S3.UseSSL)
	assert.Equal(t, "AKIA", cfg.Storage.S3.AccessKey)
	assert.Equal(t, "html", cfg.Storage.HTMLBucket)
	assert.Equal(t, 5*time.Second, cfg.Storage.Retry.Timeout)
	assert.Equal(t, "media", cfg.Assets.Bucket)
	assert.Equal(t, []string{"images.example.com"}, cfg.Assets.ThirdPartyHosts)
	assert.True(t, cfg.Template.Strict)
	assert.Equal(t, 40, cfg.Categories["Science"])
	assert.NotContains(t, cfg.Categories, "Travel")
	assert.Equal(t, []string{"en-US", "hi", "mr"}, cfg.Languages)
	assert.True(t, cfg.UploadHTML)
}

func TestLoadConfigEnvFile(t *testing.T) {
	envFile := writeFile(t, "test.env", "STORY_BASE=https://example.org/s/\n")
	t.Setenv("ENV_FILE", envFile)
	t.Cleanup(func() { _ = os.Unsetenv("STORY_BASE") })

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/s/", cfg.Site.StoryBase)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeFile(t, "bad.yml", "server: [unclosed"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "s3.yml", "storage:\n  driver: s3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.endpoint")

	_, err = LoadConfig(writeFile(t, "ftp.yml", "storage:\n  driver: ftp\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "config.yml", GetConfigPath("config.yml"))
	t.Setenv("CONFIG_PATH", "/etc/storyengine.yml")
	assert.Equal(t, "/etc/storyengine.yml", GetConfigPath("config.yml"))
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "yes", " Yes "} {
		assert.True(t, parseBool(s), s)
	}
	for _, s := range []string{"false", "0", "no", ""} {
		assert.False(t, parseBool(s), s)
	}
}
