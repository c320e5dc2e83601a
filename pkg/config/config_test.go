package config

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
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAccessKeyID, EnvSecretAccessKey, EnvBucket, EnvRatesURL, EnvRatesToKeep, EnvMaxRetries} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.ValidateUpload(), "認証情報とバケットが無い")
}

func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_BUCKET", "rates-bucket")

	path := writeFile(t, "config.yaml", `
source:
  rates_to_keep: ["EUR / CHF"]
  pairing: positional
storage:
  bucket: ${TEST_BUCKET}
  access_key_id: AKIA
  secret_access_key: secret
  endpoint: http://localhost:9000
http:
  timeout: 5s
  max_retries: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rates-bucket", cfg.Storage.Bucket)
	assert.Equal(t, []string{"EUR / CHF"}, cfg.Source.RatesToKeep)
	assert.Equal(t, "positional", cfg.Source.Pairing)
	assert.Equal(t, "http://localhost:9000", cfg.Storage.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, uint64(2), cfg.HTTP.MaxRetries)

	// ファイルに無い項目はデフォルトのまま
	assert.Equal(t, "https://www.snb.ch/en/", cfg.Source.URL)
	assert.Equal(t, "eu-north-1", cfg.Storage.Region)
	assert.Equal(t, "exchange_rate_data", cfg.Storage.TableName)

	assert.NoError(t, cfg.ValidateUpload())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBucket, "from-env")
	t.Setenv(EnvAccessKeyID, "env-key")
	t.Setenv(EnvSecretAccessKey, "env-secret")
	t.Setenv(EnvRatesToKeep, "EUR / CHF, GBP / CHF,")
	t.Setenv(EnvMaxRetries, "3")

	path := writeFile(t, "config.yaml", "storage:\n  bucket: from-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Storage.Bucket)
	assert.Equal(t, "env-key", cfg.Storage.AccessKeyID)
	assert.Equal(t, "env-secret", cfg.Storage.SecretAccessKey)
	assert.Equal(t, []string{"EUR / CHF", "GBP / CHF"}, cfg.Source.RatesToKeep)
	assert.Equal(t, uint64(3), cfg.HTTP.MaxRetries)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "source: [unclosed"))
	assert.Error(t, err)

	t.Setenv(EnvMaxRetries, "-1")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := writeFile(t, ".env", "AWS_UPLOAD_BUCKET_NAME=dotenv-bucket\n")
	// t.Setenv で空文字列が設定済みのため godotenv は上書きしない
	require.NoError(t, os.Unsetenv(EnvBucket))
	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv(EnvBucket) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-bucket", cfg.Storage.Bucket)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Source.RatesToKeep = nil
	cfg.Source.URL = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.url")
	assert.Contains(t, err.Error(), "rates_to_keep")
}
