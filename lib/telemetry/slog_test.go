package telemetry

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		name     string
		expected slog.Level
		fails    bool
	}{
		{name: "debug", expected: slog.LevelDebug},
		{name: "INFO", expected: slog.LevelInfo},
		{name: "", expected: slog.LevelInfo},
		{name: "warning", expected: slog.LevelWarn},
		{name: "Warn", expected: slog.LevelWarn},
		{name: "error", expected: slog.LevelError},
		{name: "loud", fails: true},
	}

	for _, test := range cases {
		level, err := ParseLevel(test.name)
		if test.fails {
			require.Error(t, err, test.name)
			continue
		}
		require.NoError(t, err, test.name)
		require.Equal(t, test.expected, level, test.name)
	}
}

func TestSlogAPI(t *testing.T) {
	buff := &bytes.Buffer{}
	logger := slog.New(NewHandler(buff, slog.LevelInfo))
	api := NewScopedAPI("portal", NewSlogAPI(logger))

	api.ReportDebug("hidden")
	api.ReportWarning("client.listings", "row 3")
	api.ReportBroken("client.login", "boom")

	out := buff.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `id="portal: client.listings"`)
	require.Contains(t, out, `params.0="row 3"`)
	require.Contains(t, out, "level=ERROR")
	require.Equal(t, 2, strings.Count(out, "pid="))
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	api := NewScopedAPI("sync", rec)

	api.ReportWarning("syncer.process", 1)
	api.ReportWarning("syncer.save", 2)
	api.ReportBroken("syncer.process", 3)

	require.Len(t, rec.Reports("warning", "syncer."), 2)
	require.Len(t, rec.Reports("broken", "sync: syncer.process"), 1)
	require.Empty(t, rec.Reports("debug", ""))
}
