package app

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/omnibuild/internal/testutil"
)

func TestNewLogger_Formats(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		format string
		want   string
	}{
		{format: "text", want: `msg="Rebuild succeeded." task=main`},
		{format: "pretty", want: "[omni] Rebuild succeeded. task=main"},
	}

	for _, tc := range testCases {
		t.Run(tc.format, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			buf := &testutil.SafeBuffer{}
			logger := newLogger("info", tc.format, buf)

			// --- Act ---
			logger.Info("Rebuild succeeded.", "task", "main")
			logger.Debug("Hidden.")

			// --- Assert ---
			require.Contains(t, buf.String(), tc.want)
			require.NotContains(t, buf.String(), "Hidden.")
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	buf := &testutil.SafeBuffer{}
	logger := newLogger("debug", "json", buf)

	// --- Act ---
	logger.Debug("Using config.", "config_path", "/proj/omni.build.json")

	// --- Assert ---
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &record))
	require.Equal(t, "DEBUG", record["level"])
	require.Equal(t, "Using config.", record["msg"])
	require.Equal(t, "/proj/omni.build.json", record["config_path"])
}

func TestPrettyHandler_AttrsAndGroups(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	buf := &testutil.SafeBuffer{}
	logger := newLogger("debug", "pretty", buf).With("task", "preload").WithGroup("child")

	// --- Act ---
	logger.Warn("Main process exited.", "pid", 42, "error", "exit status 1")

	// --- Assert ---
	line := strings.TrimSpace(buf.String())
	require.Equal(t, `[omni] Main process exited. task=preload child.pid=42 child.error="exit status 1"`, line)
}
