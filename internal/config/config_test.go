package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	assert := assert_.New(t)
	dir := filepath.Join(t.TempDir(), "config")
	t.Setenv("LEECHER_CONFIG_DIR", dir)

	c, err := load(viper.New())
	require_.NoError(t, err)
	assert.Equal(dir, c.ConfigDir)
	assert.DirExists(dir)
	assert.Equal(filepath.Join(dir, "catalog.sqlite3"), c.CatalogFile)
	assert.Equal(filepath.Join(dir, "state.db"), c.DatabaseFile)
	assert.NotEmpty(c.DownloadFolder)
	assert.Equal(30*time.Second, c.MaxRetryTime)
	assert.Equal(time.Second, c.ProgressUpdateInterval)
	assert.Equal(5*time.Minute, c.AuthCacheTTL)
	assert.Equal(zapcore.InfoLevel, c.LogLevel)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	t.Setenv("LEECHER_CONFIG_DIR", dir)
	require_.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(
		"download_folder: /srv/videos\n"+
			"log_level: warn\n"+
			"max_retry_time: 1m\n",
	), 0600))
	t.Setenv("LEECHER_LOG_LEVEL", "debug")

	c, err := load(viper.New())
	require_.NoError(t, err)
	assert.Equal("/srv/videos", c.DownloadFolder)
	assert.Equal(time.Minute, c.MaxRetryTime)
	assert.Equal(zapcore.DebugLevel, c.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	t.Setenv("LEECHER_CONFIG_DIR", dir)

	t.Setenv("LEECHER_LOG_LEVEL", "loud")
	_, err := load(viper.New())
	assert.ErrorContains(err, "log_level")

	t.Setenv("LEECHER_LOG_LEVEL", "info")
	require_.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("download_folder: [unclosed\n"), 0600))
	_, err = load(viper.New())
	assert.ErrorContains(err, "config file")
}
