package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, dir, path string)
		validate  func(t *testing.T, cfg *Config)
		checkFile func(t *testing.T, path string)
		wantErr   bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func(t *testing.T, dir, path string) {},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "127.0.0.1:6809", cfg.Relay.Listen)
				assert.Equal(t, 20*time.Second, cfg.Feeds.DataInterval.Std())
				assert.Equal(t, 10*time.Minute, cfg.Feeds.MetarInterval.Std())
				assert.Equal(t, 4, cfg.Ticker.SyncEvery)
				assert.Equal(t, "fsuipc", cfg.Sim.Provider)
			},
			checkFile: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Contains(t, string(content), "127.0.0.1:6809")
				assert.Contains(t, string(content), "# Options: fsuipc, mock")
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func(t *testing.T, dir, path string) {
				data := "relay:\n  listen: 127.0.0.1:7000\nfeeds:\n  data_interval: 45s\n"
				require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "127.0.0.1:7000", cfg.Relay.Listen)
				assert.Equal(t, 45*time.Second, cfg.Feeds.DataInterval.Std())
				// Untouched sections keep their defaults
				assert.Equal(t, 10*time.Minute, cfg.Feeds.MetarInterval.Std())
			},
			checkFile: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Contains(t, string(content), "127.0.0.1:7000")
			},
		},
		{
			name: "DotEnv_Override",
			setup: func(t *testing.T, dir, path string) {
				env := "TRAFFICVIEWER_DATA_URL=http://localhost:9000/data.json\nTRAFFICVIEWER_LISTEN=127.0.0.1:6900\n"
				require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644))
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "http://localhost:9000/data.json", cfg.Feeds.DataURL)
				assert.Equal(t, "127.0.0.1:6900", cfg.Relay.Listen)
			},
			checkFile: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.NotContains(t, string(content), "localhost:9000", "env values must not be persisted")
			},
		},
		{
			name: "ProcessEnv_WinsOverDotEnv",
			setup: func(t *testing.T, dir, path string) {
				env := "TRAFFICVIEWER_METAR_URL=http://from-dotenv/metar\n"
				require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644))
				t.Setenv(EnvMetarURL, "http://from-env/metar")
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "http://from-env/metar", cfg.Feeds.MetarURL)
			},
		},
		{
			name: "InvalidYAML",
			setup: func(t *testing.T, dir, path string) {
				require.NoError(t, os.WriteFile(path, []byte("relay: [unclosed"), 0o644))
			},
			wantErr: true,
		},
		{
			name: "InvalidListen",
			setup: func(t *testing.T, dir, path string) {
				require.NoError(t, os.WriteFile(path, []byte("relay:\n  listen: nonsense\n"), 0o644))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "trafficviewer.yaml")
			tt.setup(t, dir, path)

			cfg, err := Load(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t, path)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "Defaults", mutate: func(c *Config) {}},
		{name: "API disabled", mutate: func(c *Config) { c.API.Address = "" }},
		{name: "Bad provider", mutate: func(c *Config) { c.Sim.Provider = "xplane" }, wantErr: "sim.provider"},
		{name: "Zero sync", mutate: func(c *Config) { c.Ticker.SyncEvery = 0 }, wantErr: "sync_every"},
		{name: "Zero interval", mutate: func(c *Config) { c.Feeds.DataInterval = 0 }, wantErr: "feed intervals"},
		{name: "Bad level", mutate: func(c *Config) { c.Log.Protocol.Level = "TRACE" }, wantErr: "log.protocol.level"},
		{name: "Missing URL", mutate: func(c *Config) { c.Feeds.MetarURL = "" }, wantErr: "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "trafficviewer.yaml")

	require.NoError(t, GenerateDefault(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "# Traffic Viewer Configuration"))

	// Existing file is left alone
	require.NoError(t, os.WriteFile(path, []byte("custom"), 0o644))
	require.NoError(t, GenerateDefault(path))
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(content))
}
