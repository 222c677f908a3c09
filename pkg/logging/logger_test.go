package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficviewer/pkg/config"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	protocolLog := filepath.Join(tempDir, "protocol.log")

	// Leftover from a previous run must be rotated away
	require.NoError(t, os.WriteFile(protocolLog, []byte("stale line\n"), 0o644))

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG", MaxSizeMB: 1, MaxBackups: 2},
		Protocol: config.LogSettings{Path: protocolLog, Level: "INFO", MaxSizeMB: 1, MaxBackups: 2},
	}

	prevDefault := slog.Default()
	cleanup, err := Init(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { slog.SetDefault(prevDefault) })

	Protocol("abc", Outbound, "#TMSERVER:EGLL_TWR:hello\r\n")
	slog.Warn("relay send failed", "failures", 1)
	cleanup()

	data, err := os.ReadFile(protocolLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#TMSERVER:EGLL_TWR:hello")
	assert.Contains(t, string(data), "dir=out")
	assert.NotContains(t, string(data), "stale line")
	assert.NotContains(t, string(data), "\\r\\n")

	_, err = os.Stat(serverLog)
	assert.NoError(t, err, "server log file not created")

	assert.Contains(t, GlobalLogCapture.GetLastLine(), "relay send failed")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(strings.ToLower(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLogCaptureWriter(t *testing.T) {
	w := &LogCaptureWriter{}
	_, _ = w.Write([]byte("first\n"))
	_, _ = w.Write([]byte("second\n"))
	assert.Equal(t, "second", w.GetLastLine())
}
