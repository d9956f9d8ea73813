package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "")
	t.Setenv("DEST_PATH_FORMAT", "")
	t.Setenv("PUBLISH_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageAzureFiles, cfg.StorageType)
	assert.Equal(t, "2006-01-02_15-04", cfg.DestPathFormat)
	assert.Equal(t, 30, cfg.PublishTimeout)
	assert.False(t, cfg.CleanupAfterPublish)
}

func TestLoadAzureFiles(t *testing.T) {
	t.Setenv("AZURE_FILES_BASE_URL", "https://acct.file.core.windows.net/")
	t.Setenv("AZURE_FILES_SHARE", "artifacts")
	t.Setenv("AZURE_FILES_SAS_PUBLIC_TOKEN", "?sv=2020")
	t.Setenv("AZURE_FILES_ACCOUNT_NAME", "acct")
	t.Setenv("AZURE_FILES_ACCOUNT_KEY", "a2V5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://acct.file.core.windows.net/", cfg.AzureBaseURL)
	assert.Equal(t, "artifacts", cfg.AzureShare)
	assert.Equal(t, "?sv=2020", cfg.AzureSASPublicToken)
	assert.Equal(t, "acct", cfg.AzureAccountName)
	assert.Equal(t, "a2V5", cfg.AzureAccountKey)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	t.Setenv("TEST_BOOL", "true")

	assert.Equal(t, 7, getEnvAsInt("TEST_INT", 7))
	assert.True(t, getEnvAsBool("TEST_BOOL", false))
	assert.Equal(t, "fallback", getEnv("TEST_MISSING_KEY", "fallback"))
}
