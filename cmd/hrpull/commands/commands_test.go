package commands

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"hrpull/internal/applicants"
	"hrpull/internal/positions"
	"hrpull/lib/telemetry"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func seed(t *testing.T) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	visa := "No"
	snapshot := applicants.Snapshot{
		7: applicants.NewCandidate(applicants.Listing{ID: 7, FirstName: "Grace", LastName: "Hopper", ApplicationDate: "March 1, 2025", ApplicationState: "New"}),
		3: applicants.NewCandidate(applicants.Listing{ID: 3, FirstName: "Alan", LastName: "Turing"}),
	}
	snapshot[7].NeedVisa = &visa
	require.NoError(t, applicants.SaveSnapshot(fs, "swe", snapshot))
	require.NoError(t, util.WriteFile(fs, "swe/"+snapshot[7].Folder+"/"+applicants.CombinedFile, []byte("%PDF-1.4"), 0o644))
	require.NoError(t, fs.MkdirAll("swe/"+snapshot[3].Folder, 0o755))
	require.NoError(t, fs.MkdirAll("empty", 0o755))
	return fs
}

func TestStoredPositions(t *testing.T) {
	fs := seed(t)

	names, err := storedPositions(fs, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"swe"}, names)

	names, err = storedPositions(fs, []string{"swe"})
	require.NoError(t, err)
	require.Equal(t, []string{"swe"}, names)

	_, err = storedPositions(fs, []string{"empty"})
	require.ErrorContains(t, err, "has not been synced")
}

func TestListPosition(t *testing.T) {
	fs := seed(t)
	snapshot, err := applicants.LoadSnapshot(fs, "swe")
	require.NoError(t, err)

	out := &bytes.Buffer{}
	tbl := newTable(out)
	require.NoError(t, listPosition(fs, "swe", tbl))
	tbl.Render()

	text := out.String()
	require.Contains(t, text, "Grace Hopper")
	require.Contains(t, text, "Alan Turing")
	require.Less(t, bytes.Index(out.Bytes(), []byte("Alan Turing")), bytes.Index(out.Bytes(), []byte("Grace Hopper")), "ordered by id")

	// the empty folder of an unprocessed candidate is left in place
	_, err = fs.Stat("swe/" + snapshot[3].Folder)
	require.NoError(t, err)
}

func TestSyncAllContinuesAfterFailure(t *testing.T) {
	fs := memfs.New()
	var opened []string
	open := func(ctx context.Context, login, password string) (applicants.Portal, error) {
		opened = append(opened, login)
		return nil, errors.New("browser crashed")
	}
	syncer := applicants.NewSyncer(fs, open, &telemetry.Recorder{}, applicants.Options{})

	err := syncAll(context.Background(), syncer, []positions.Position{
		{Name: "swe", Login: "a", Password: "x"},
		{Name: "ds", Login: "b", Password: "y"},
	})
	require.ErrorContains(t, err, "2 of 2 positions failed")
	require.ErrorIs(t, err, applicants.ErrDriver)
	require.Equal(t, []string{"a", "b"}, opened)
}

func TestSyncAllStopsWhenCancelled(t *testing.T) {
	fs := memfs.New()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	open := func(ctx context.Context, login, password string) (applicants.Portal, error) {
		calls++
		cancel()
		return nil, ctx.Err()
	}
	syncer := applicants.NewSyncer(fs, open, &telemetry.Recorder{}, applicants.Options{})

	err := syncAll(ctx, syncer, []positions.Position{
		{Name: "swe", Login: "a", Password: "x"},
		{Name: "ds", Login: "b", Password: "y"},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

type spanNames struct {
	mu    sync.Mutex
	names []string
}

func (e *spanNames) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, span := range spans {
		e.names = append(e.names, span.Name())
	}
	return nil
}

func (e *spanNames) Shutdown(ctx context.Context) error {
	return nil
}

func TestFailedCommandFlushesTelemetry(t *testing.T) {
	exporter := &spanNames{}
	setupTelemetry = func(ctx context.Context, serviceName string) (telemetry.Telemetry, error) {
		return telemetry.Telemetry{
			TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter)),
		}, nil
	}
	failing := &cobra.Command{
		Use: "always-fails",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, span := providers.TracerProvider.Tracer("commands").Start(cmd.Context(), "doomed")
			span.End()
			return errors.New("portal unreachable")
		},
	}
	rootCmd.AddCommand(failing)
	rootCmd.SetArgs([]string{"always-fails"})
	t.Cleanup(func() {
		rootCmd.RemoveCommand(failing)
		rootCmd.SetArgs(nil)
		setupTelemetry = telemetry.SetupFromEnv
		providers = telemetry.Telemetry{}
	})

	err := execute(context.Background())
	require.ErrorContains(t, err, "portal unreachable")
	require.Equal(t, []string{"doomed"}, exporter.names, "spans of a failed command are exported")
}
