package paths

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnv swaps the platform lookups for the duration of a test.
func fakeEnv(t *testing.T, goos string) {
	t.Helper()
	saved := env
	t.Cleanup(func() { env = saved })

	env.goos = goos
	env.home = func() (string, error) { return "/home/ada", nil }
	env.configDir = func() (string, error) { return "/Users/ada/Library/Application Support", nil }
	env.getwd = func() (string, error) { return "/work", nil }
}

func TestDefaultDirs(t *testing.T) {
	tests := []struct {
		name       string
		goos       string
		xdgConfig  string
		xdgData    string
		wantConfig string
		wantData   string
	}{
		{
			name:       "linux with xdg",
			goos:       "linux",
			xdgConfig:  "/xdg/config",
			xdgData:    "/xdg/data",
			wantConfig: "/xdg/config/multirow",
			wantData:   "/xdg/data/multirow",
		},
		{
			name:       "linux without xdg",
			goos:       "linux",
			wantConfig: "/home/ada/.config/multirow",
			wantData:   "/home/ada/.local/share/multirow",
		},
		{
			name:       "darwin ignores xdg",
			goos:       "darwin",
			xdgConfig:  "/xdg/config",
			wantConfig: "/Users/ada/Library/Application Support/multirow",
			wantData:   "/Users/ada/Library/Application Support/multirow",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeEnv(t, tt.goos)
			t.Setenv("XDG_CONFIG_HOME", tt.xdgConfig)
			t.Setenv("XDG_DATA_HOME", tt.xdgData)

			cfg, err := DefaultConfigDir()
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.wantConfig), cfg)

			data, err := DefaultDataDir()
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.wantData), data)
		})
	}
}

func TestDefaultDirsPropagateErrors(t *testing.T) {
	fakeEnv(t, "linux")
	t.Setenv("XDG_CONFIG_HOME", "")
	env.home = func() (string, error) { return "", errors.New("no home") }

	_, err := DefaultConfigDir()
	assert.EqualError(t, err, "no home")
}

func TestResolveConfigDir(t *testing.T) {
	fakeEnv(t, "linux")
	t.Setenv("XDG_CONFIG_HOME", "")

	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag wins over env", "/explicit/config", "/env/config", "/explicit/config"},
		{"env when flag empty", "", "/env/config", "/env/config"},
		{"platform default", "", "", "/home/ada/.config/multirow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.env)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	fakeEnv(t, "linux")

	tests := []struct {
		name       string
		flag       string
		configured string
		env        string
		want       string
	}{
		{"flag wins over all", "/flag/data", "/config/data", "/env/data", "/flag/data"},
		{"config wins over env", "", "/config/data", "/env/data", "/config/data"},
		{"env when flag and config empty", "", "", "/env/data", "/env/data"},
		{"working directory default", "", "", "", "/work/.multirow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.env)
			got, err := ResolveDataDir(tt.flag, tt.configured)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestRelativeOverridesBecomeAbsolute(t *testing.T) {
	t.Setenv(EnvConfigDir, "relative/env")
	got, err := ResolveConfigDir("")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got), "got %s", got)

	t.Setenv(EnvDataDir, "")
	got, err = ResolveDataDir("", "relative/config")
	require.NoError(t, err)
	cwd, _ := os.Getwd()
	assert.Equal(t, filepath.Join(cwd, "relative", "config"), got)
}

func TestFiles(t *testing.T) {
	assert.Equal(t, filepath.Join("/cfg", "config.yaml"), ConfigFile("/cfg"))
	assert.Equal(t, filepath.Join("/cfg", "schema.yaml"), SchemaFile("/cfg", ""))
	assert.Equal(t, filepath.Join("/cfg", "forms", "s.yaml"), SchemaFile("/cfg", "forms/s.yaml"))
	assert.Equal(t, "/abs/s.yaml", SchemaFile("/cfg", "/abs/s.yaml"))
}
