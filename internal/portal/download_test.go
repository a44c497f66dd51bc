package portal

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) (DownloadWatcher, billy.Filesystem, billy.Filesystem) {
	t.Helper()
	root := memfs.New()
	downloads, err := root.Chroot("downloads")
	require.NoError(t, err)
	out, err := root.Chroot("out")
	require.NoError(t, err)

	w := NewDownloadWatcher(downloads)
	w.attempts = 3
	w.interval = time.Millisecond
	return w, downloads, out
}

func TestDownloadCollect(t *testing.T) {
	w, downloads, out := newTestWatcher(t)
	require.NoError(t, util.WriteFile(downloads, "notes.pdf", []byte("x"), 0o644))
	require.NoError(t, util.WriteFile(downloads, "123456.pdf.crdownload", []byte("x"), 0o644))
	require.NoError(t, w.Expect())

	require.NoError(t, util.WriteFile(downloads, "482913.pdf", []byte("%PDF-1.7"), 0o644))
	require.NoError(t, w.Collect(context.Background(), out, "swe/1-a_b/combined.pdf"))

	contents, err := util.ReadFile(out, "swe/1-a_b/combined.pdf")
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.7", string(contents))
	_, err = downloads.Stat("482913.pdf")
	require.Error(t, err, "the download is moved, not copied")
}

func TestDownloadStale(t *testing.T) {
	w, downloads, _ := newTestWatcher(t)
	require.NoError(t, util.WriteFile(downloads, "000001.pdf", []byte("x"), 0o644))
	require.ErrorIs(t, w.Expect(), ErrAmbiguousDownload)
}

func TestDownloadAmbiguous(t *testing.T) {
	w, downloads, out := newTestWatcher(t)
	require.NoError(t, util.WriteFile(downloads, "000001.pdf", []byte("x"), 0o644))
	require.NoError(t, util.WriteFile(downloads, "000002.pdf", []byte("y"), 0o644))
	require.ErrorIs(t, w.Collect(context.Background(), out, "combined.pdf"), ErrAmbiguousDownload)
}

func TestDownloadTimeout(t *testing.T) {
	w, _, out := newTestWatcher(t)
	require.ErrorIs(t, w.Collect(context.Background(), out, "combined.pdf"), ErrNoDownload)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, w.Collect(ctx, out, "combined.pdf"), context.Canceled)
}
