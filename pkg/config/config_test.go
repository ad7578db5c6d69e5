package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int    `env:"TEST_CFG_PORT" envDefault:"8000"`
	Host     string `env:"TEST_CFG_HOST" envDefault:"localhost"`
	LogLevel string `env:"TEST_CFG_LOG_LEVEL" envDefault:"info"`
	Debug    bool   `env:"TEST_CFG_DEBUG" envDefault:"false"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Debug)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_DEBUG", "true")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_EnvironmentWins(t *testing.T) {
	path := writeFile(t, `
# local overrides
TEST_CFG_PORT=3000
export TEST_CFG_HOST="127.0.0.1"
TEST_CFG_LOG_LEVEL='debug'
`)
	t.Setenv("TEST_CFG_PORT", "4000")

	var cfg testConfig
	require.NoError(t, LoadFile(&cfg, path))

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, LoadFile(&cfg, filepath.Join(t.TempDir(), "absent.env")))

	assert.Equal(t, 8000, cfg.Port)
}

func TestLoadFile_QuotesAndInlineComments(t *testing.T) {
	path := writeFile(t, `TEST_CFG_HOST="s3cret" # signing key
TEST_CFG_PORT=8100 # port
`)

	var cfg testConfig
	require.NoError(t, LoadFile(&cfg, path))

	assert.Equal(t, "s3cret", cfg.Host)
	assert.Equal(t, 8100, cfg.Port)
}

func TestReadEnvFile_KeysMatchEnvTags(t *testing.T) {
	path := writeFile(t, "TEST_CFG_LOG_LEVEL=warn\n")

	vars, err := readEnvFile(path)

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"TEST_CFG_LOG_LEVEL": "warn"}, vars)
}
