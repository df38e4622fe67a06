package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int    `json:"port"`
	Database string `json:"database"`
	Portals  struct {
		Overrides string `json:"overrides"`
	} `json:"portals"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	err := os.WriteFile(path, []byte(contents), 0600)
	require.NoError(t, err)
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{
		// comments are allowed
		port: 8080,
		database: "roster.db",
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ database: "local.db" }`)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, 8080, config.Port)
	require.Equal(t, "local.db", config.Database)
}

func TestReadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rosterd.json5"), `{ port: 1 }`)
	writeFile(t, filepath.Join(dir, "elsewhere.json5"), `{ portals: { overrides: "portals.yaml" } }`)
	t.Setenv("ROSTERIQ_CONFIG_ROSTERD", filepath.Join(dir, "elsewhere.json5"))

	config, err := ReadConfig[testConfig](filepath.Join(dir, "rosterd.json5"))
	require.NoError(t, err)
	require.Equal(t, 1, config.Port)
	require.Equal(t, "portals.yaml", config.Portals.Overrides)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "none.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0777))
	writeFile(t, filepath.Join(root, "telemetry.json5"), `{ port: 4318 }`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { os.Chdir(wd) })

	config, err := ReadRecursively[testConfig]("telemetry.json5")
	require.NoError(t, err)
	require.Equal(t, 4318, config.Port)
}
