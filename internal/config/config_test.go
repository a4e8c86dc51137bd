package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadWithNoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("", viper.New())
	require.NoError(t, err)
	require.Equal(t, "cardctl", cfg.Actor)
	require.Empty(t, cfg.DatabasePath)
	require.False(t, cfg.InMemory)
}

func TestLoadMissingConfigPathIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.toml")
	cfg, err := Load(path, viper.New())
	require.NoError(t, err)
	require.Equal(t, "cardctl", cfg.Actor)
}

func TestLoadReadsFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardledger.toml")
	content := "actor = \"alice\"\ndatabase_path = \"/tmp/custom.db\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, viper.New())
	require.NoError(t, err)
	require.Equal(t, "alice", cfg.Actor)
	require.Equal(t, "/tmp/custom.db", cfg.DatabasePath)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardledger.toml")
	require.NoError(t, os.WriteFile(path, []byte("actor = \"alice\"\n"), 0o644))

	t.Setenv("CARDLEDGER_ACTOR", "bob")

	cfg, err := Load(path, viper.New())
	require.NoError(t, err)
	require.Equal(t, "bob", cfg.Actor)
}

func TestResolveDatabasePathPrefersExplicitPath(t *testing.T) {
	cfg := Config{DatabasePath: "/explicit/path.db"}
	require.Equal(t, "/explicit/path.db", ResolveDatabasePath(cfg, "/wd"))
}

func TestResolveDatabasePathFallsBackToDefaultDir(t *testing.T) {
	cfg := Config{}
	got := ResolveDatabasePath(cfg, "/wd")
	require.Equal(t, filepath.Join("/wd", DefaultDir, DefaultDatabaseName), got)
}
