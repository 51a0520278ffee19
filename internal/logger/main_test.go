package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdr-platform/settings-service/internal/logger"
)

func emitSamples() {
	log.Info().Msg("setting created")
	log.Error().Err(errors.New("duplicate name")).Msg("setting not created") //nolint:goerr113
	log.Trace().Msg("filter translated")
}

func TestInit(t *testing.T) {
	base := logger.Log{LogLevel: "info", ServiceName: "mdr-settings", AppName: "settings-service"}

	testCases := []struct {
		name  string
		tweak func(l *logger.Log)
		lines int // JSON lines expected on the console, -1 for console writer text
	}{
		{name: "no target writes nothing", tweak: func(*logger.Log) {}, lines: 0},
		{name: "json console", tweak: func(l *logger.Log) { l.Console.Enabled = true }, lines: 2},
		{name: "trace level", tweak: func(l *logger.Log) { l.Console.Enabled = true; l.LogLevel = "trace" }, lines: 3},
		{name: "error level", tweak: func(l *logger.Log) { l.Console.Enabled = true; l.LogLevel = "error" }, lines: 1},
		{
			name: "trace with caller and stack",
			tweak: func(l *logger.Log) {
				l.Console.Enabled = true
				l.LogLevel = "trace"
				l.ReportCaller = true
			},
			lines: 3,
		},
		{
			name:  "console writer",
			tweak: func(l *logger.Log) { l.Console = logger.Console{Enabled: true, UseConsoleWriter: true} },
			lines: -1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.tweak(&cfg)

			out := captureOutput(t, func() {
				require.NoError(t, logger.Init(cfg))
				emitSamples()
			})

			switch {
			case tc.lines == 0:
				assert.Empty(t, out)
			case tc.lines < 0:
				assert.Contains(t, out, "setting created")
				assert.NotContains(t, out, `"message"`)
			default:
				lines := strings.Split(strings.TrimSpace(out), "\n")
				require.Len(t, lines, tc.lines, out)

				for _, line := range lines {
					var doc map[string]any
					require.NoError(t, json.Unmarshal([]byte(line), &doc), line)
					assert.Equal(t, "mdr-settings", doc["service"])
				}
			}
		})
	}
}

func TestInitRollingFiles(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, logger.Init(logger.Log{
		LogLevel:    "info",
		ServiceName: "mdr-settings",
		AppName:     "settings-service",
		File: logger.LogFile{
			Enabled: true,
			Path:    dir,
			Error:   logger.RollingFile{Name: "error.log", MaxSize: 1},
			Info:    logger.RollingFile{Name: "info.log", MaxSize: 1},
		},
	}))

	emitSamples()

	errorLog, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errorLog), "duplicate name")
	assert.NotContains(t, string(errorLog), "setting created")

	infoLog, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(infoLog), "setting created")
}

func TestInitRejectsIncompleteConfig(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     logger.Log
		wantErr error
	}{
		{name: "missing service name", cfg: logger.Log{LogLevel: "info", AppName: "a"}, wantErr: logger.ErrServiceNameIsEmpty},
		{name: "missing app name", cfg: logger.Log{LogLevel: "info", ServiceName: "s"}, wantErr: logger.ErrAppNameIsEmpty},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, logger.Init(tc.cfg), tc.wantErr)
		})
	}

	require.Error(t, logger.Init(logger.Log{LogLevel: "loud", AppName: "a", ServiceName: "s"}))
}

func TestComponentLogger(t *testing.T) {
	out := captureOutput(t, func() {
		require.NoError(t, logger.Init(logger.Log{
			LogLevel:    "info",
			ServiceName: "mdr-settings",
			AppName:     "settings-service",
			Console:     logger.Console{Enabled: true},
		}))

		logger.FromContext(logger.NewContext(context.Background(), "abc-123"), "SettingsController").
			Info().Msg("hello")

		anon := logger.For("SettingsService", "")
		anon.Info().Msg("anonymous")
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, "mdr-settings::SettingsController", first["component"])
	assert.Equal(t, "abc-123", first["correlationId"])
	assert.Equal(t, logger.NoCorrelationID, second["correlationId"])
}

func TestLevelWriterSkipsMissingTargets(t *testing.T) {
	lw := &logger.LevelWriter{}

	n, err := lw.WriteLevel(zerolog.InfoLevel, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	stdout := os.Stdout
	stderr := os.Stderr

	r, w, _ := os.Pipe()
	os.Stdout = w
	os.Stderr = w

	fn()

	outC := make(chan string)

	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	_ = w.Close()
	os.Stdout = stdout
	os.Stderr = stderr

	return <-outC
}
