package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoFileOrEnv(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qworker.yaml")
	content := []byte("host: 10.0.0.1\nport: 9090\nqueue_size: 16\nworkers:\n  - 127.0.0.1:8181\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Host)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 16, cfg.QueueSize)
	assert.Equal(t, []string{"127.0.0.1:8181"}, cfg.Workers)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qworker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9090\n"), 0o644))

	t.Setenv("WORKER_DEFAULT_PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
}

func TestEnvListParsing(t *testing.T) {
	t.Setenv("WORKER_LIST", "127.0.0.1:8181, 127.0.0.1:8182 ,,127.0.0.1:8183")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:8181", "127.0.0.1:8182", "127.0.0.1:8183"}, cfg.Workers)
}

func TestEnvOverridesEveryField(t *testing.T) {
	t.Setenv("WORKER_DEFAULT_HOST", "192.168.1.1")
	t.Setenv("WORKER_DEFAULT_PORT", "1111")
	t.Setenv("WORKER_DEFAULT_QTY", "8")
	t.Setenv("WORKER_QUEUE_SIZE", "32")
	t.Setenv("WORKER_LIST", "a:1")
	t.Setenv("WORKER_HIGH_LIST", "b:2")
	t.Setenv("QW_REGISTRY_URL", "http://registry:9400")
	t.Setenv("WORKER_DISCOVERY_PORT", "9988")
	t.Setenv("NOFILES", "65536")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", cfg.Host)
	assert.Equal(t, 1111, cfg.Port)
	assert.Equal(t, 8, cfg.DefaultQty)
	assert.Equal(t, 32, cfg.QueueSize)
	assert.Equal(t, []string{"a:1"}, cfg.Workers)
	assert.Equal(t, []string{"b:2"}, cfg.HighPriorityWorkers)
	assert.Equal(t, "http://registry:9400", cfg.RegistryURL)
	assert.Equal(t, 9988, cfg.DiscoveryPort)
	assert.Equal(t, uint64(65536), cfg.NoFiles)
}

func TestAddr(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
}

func TestInvalidEnvIntIgnored(t *testing.T) {
	t.Setenv("WORKER_DEFAULT_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Port, cfg.Port)
}
