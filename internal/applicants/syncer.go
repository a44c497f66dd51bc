package applicants

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"hrpull/internal/positions"
	"hrpull/lib/assert"
	"hrpull/lib/fsutil"
	"hrpull/lib/telemetry"

	"github.com/go-git/go-billy/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_syncer_open     = "syncer.open"
	report_syncer_listings = "syncer.listings"
	report_syncer_process  = "syncer.process"
	report_syncer_combined = "syncer.combined"
	report_syncer_save     = "syncer.save"
	report_syncer_listed   = "syncer.listed"
)

// CombinedFile is the name of the combined document inside a candidate folder.
const CombinedFile = "combined.pdf"

var (
	// ErrStartupTimeout means the portal could not be opened and logged into in time.
	ErrStartupTimeout = errors.New("startup timed out")
	// ErrDriver is any other failure of the browser while talking to the portal.
	ErrDriver = errors.New("browser driver failure")
)

var tracer = telemetry.Tracer("hrpull.internal.applicants")
var processedCounter, _ = otel.Meter("hrpull.internal.applicants").Int64Counter("candidates_processed")

// Portal is a logged in session with the HR portal.
type Portal interface {
	// Listings returns the rows of the position's applicants table.
	Listings(ctx context.Context) ([]Listing, error)
	// Process fills the candidate from its page and stores its combined document
	// into `folder` when `tryDownload` is set.
	Process(ctx context.Context, c *Candidate, folder string, tryDownload bool) error
	Close() error
}

// OpenPortal starts a browser and logs into the portal with a position's credentials.
type OpenPortal func(ctx context.Context, login, password string) (Portal, error)

type Options struct {
	// Headless browsers cannot save documents, candidates are only read.
	Headless bool
	// LoadSaveOnly rewrites the snapshots without touching the portal.
	LoadSaveOnly bool
	// StartupTimeout bounds opening the portal and logging in, 0 means no bound.
	StartupTimeout time.Duration
}

// Syncer brings the snapshot of a position up to date with the portal.
type Syncer struct {
	fs   billy.Filesystem
	open OpenPortal
	tel  telemetry.API
	opts Options
}

func NewSyncer(fs billy.Filesystem, open OpenPortal, tel telemetry.API, opts Options) Syncer {
	assert.NotNil(fs)
	assert.NotNil(open)
	assert.NotNil(tel)

	return Syncer{
		fs:   fs,
		open: open,
		tel:  telemetry.NewScopedAPI("applicants", tel),
		opts: opts,
	}
}

// classify maps any error out of the portal onto one of the two recognized failures,
// cancellation is passed through untouched so that callers can stop altogether.
func classify(ctx context.Context, err error, startup bool) error {
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}
	if errors.Is(err, ErrStartupTimeout) || errors.Is(err, ErrDriver) {
		return err
	}
	if startup && (errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrStartupTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrDriver, err)
}

func (s Syncer) openPortal(ctx context.Context, pos positions.Position) (Portal, error) {
	if s.opts.StartupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.StartupTimeout)
		defer cancel()
	}
	portal, err := s.open(ctx, pos.Login, pos.Password)
	if err != nil {
		return nil, classify(ctx, err, true)
	}
	return portal, nil
}

// positionRun is the state of syncing one position.
type positionRun struct {
	fs        billy.Filesystem
	dir       string
	snapshot  Snapshot
	lastSaved []byte
}

// save writes the snapshot when it differs from what was last written or read.
func (r *positionRun) save() (bool, error) {
	contents, err := EncodeSnapshot(r.snapshot)
	if err != nil {
		return false, err
	}
	if r.lastSaved != nil && bytes.Equal(contents, r.lastSaved) {
		return false, nil
	}
	err = fsutil.WriteFileAtomic(r.fs, path.Join(r.dir, SnapshotFile), contents)
	if err != nil {
		return false, err
	}
	r.lastSaved = contents
	return true, nil
}

// SyncPosition updates `<pos.Name>/candidates.yaml` and the candidate folders next to it.
//
// On failure the snapshot on disk is the last one saved, which is after the last
// candidate that was processed successfully. Rerunning continues from there.
func (s Syncer) SyncPosition(ctx context.Context, pos positions.Position) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "SyncPosition")
	defer span.End()
	span.SetAttributes(attribute.String("position", pos.Name))

	log := slog.With("position", pos.Name)
	dir := pos.Name

	err := s.fs.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, err
	}
	snapshot, err := LoadSnapshot(s.fs, dir)
	if err != nil {
		return nil, err
	}
	snapshotPath := path.Join(dir, SnapshotFile)

	if s.opts.LoadSaveOnly {
		err = SaveSnapshot(s.fs, dir, snapshot)
		if err != nil {
			s.tel.ReportBroken(report_syncer_save, err, snapshotPath)
			return nil, err
		}
		log.Info("rewrote snapshot", "path", snapshotPath, "candidates", len(snapshot))
		return snapshot, nil
	}

	original, err := EncodeSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	run := &positionRun{
		fs:        s.fs,
		dir:       dir,
		snapshot:  snapshot,
		lastSaved: original,
	}

	log.Info("logging in")
	portal, err := s.openPortal(ctx, pos)
	if err != nil {
		s.reportFailure(report_syncer_open, err, pos.Name)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open portal")
		return snapshot, err
	}
	defer func() {
		closeErr := portal.Close()
		if closeErr != nil {
			s.tel.ReportWarning(report_syncer_open, fmt.Errorf("close: %w", closeErr), pos.Name)
		}
	}()

	listings, err := portal.Listings(ctx)
	if err != nil {
		err = classify(ctx, err, false)
		s.reportFailure(report_syncer_listings, err, pos.Name)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list candidates")
		return snapshot, err
	}
	log.Info("looking at candidates", "count", len(listings))
	s.tel.ReportCount(report_syncer_listed, int64(len(listings)))

	merged := Merge(snapshot, listings)

	for _, id := range merged.Listed {
		c := snapshot[id]
		processed, err := IsProcessed(s.fs, dir, c)
		if err != nil {
			return snapshot, err
		}
		if processed {
			log.Info("candidate was already processed", "candidate", c.Folder)
			continue
		}

		log.Info("candidate is being processed", "candidate", c.Folder)
		err = s.processCandidate(ctx, portal, dir, c)
		if err != nil {
			err = classify(ctx, err, false)
			s.reportFailure(report_syncer_process, err, pos.Name, c.Folder)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to process candidate")
			return snapshot, err
		}
		processedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("position", pos.Name)))

		_, err = run.save()
		if err != nil {
			s.tel.ReportBroken(report_syncer_save, err, snapshotPath)
			return snapshot, err
		}
	}

	final, err := EncodeSnapshot(snapshot)
	if err != nil {
		return snapshot, err
	}
	if bytes.Equal(final, original) {
		log.Info("no updates", "path", snapshotPath)
		return snapshot, nil
	}

	if len(merged.New) > 0 {
		log.Warn("updated", "path", snapshotPath, "new", len(merged.New))
	} else {
		log.Info("updated", "path", snapshotPath, "new", 0)
	}
	_, err = run.save()
	if err != nil {
		s.tel.ReportBroken(report_syncer_save, err, snapshotPath)
		return snapshot, err
	}
	return snapshot, nil
}

func (s Syncer) processCandidate(ctx context.Context, portal Portal, dir string, c *Candidate) error {
	ctx, span := tracer.Start(ctx, "processCandidate")
	defer span.End()
	span.SetAttributes(attribute.Int64("candidate", c.ID))

	folder := path.Join(dir, c.Folder)
	err := s.fs.MkdirAll(folder, 0o755)
	if err != nil {
		return err
	}

	err = portal.Process(ctx, c, folder, !s.opts.Headless)
	if err != nil {
		return err
	}

	// older snapshots carry this instead of `combined`
	delete(c.Extra, "has_combined")

	relative := path.Join(c.Folder, CombinedFile)
	exists, err := fsutil.Exists(s.fs, path.Join(dir, relative))
	if err != nil {
		return err
	}
	if exists {
		c.Combined = relative
	} else {
		c.Combined = ""
		s.tel.ReportWarning(report_syncer_combined, fmt.Errorf("%s absent", path.Join(dir, relative)))
	}
	return nil
}

func (s Syncer) reportFailure(id string, err error, params ...any) {
	params = append([]any{err}, params...)
	switch {
	case errors.Is(err, ErrStartupTimeout):
		s.tel.ReportWarning(id, params...)
	case errors.Is(err, context.Canceled):
		s.tel.ReportDebug("cancelled", params...)
	default:
		s.tel.ReportBroken(id, params...)
	}
}
