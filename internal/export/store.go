// Package export copies position snapshots into a SQL database so they can be
// queried and shared outside of the YAML files.
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"hrpull/internal/applicants"
	"hrpull/internal/db"
	"hrpull/lib/assert"
)

type Store struct {
	db     *sql.DB
	qry    *db.Queries
	makeTx db.MakeTx
}

func NewStore(database *sql.DB) Store {
	assert.NotNil(database)
	return Store{
		db:     database,
		qry:    db.New(database),
		makeTx: db.NewMakeTx(database),
	}
}

// Migrate creates the tables when they are not there yet.
func (s Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, db.Schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	value := s.String
	return &value
}

// jsonSafe turns the maps yaml decodes hand-written mappings with non-string
// keys into (map[any]any) into maps json can encode, keys are formatted as text.
func jsonSafe(v any) any {
	switch v := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[fmt.Sprint(k)] = jsonSafe(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = jsonSafe(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = jsonSafe(item)
		}
		return out
	default:
		return v
	}
}

// Replace stores `snapshot` as everything known about `position`, rows of
// candidates that are no longer in the snapshot are removed.
func (s Store) Replace(ctx context.Context, position string, snapshot applicants.Snapshot, at time.Time) error {
	txqry, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return err
	}
	defer discard()

	err = txqry.UpsertPosition(ctx, db.UpsertPositionParams{
		Name:       position,
		ExportedAt: at.Unix(),
	})
	if err != nil {
		return err
	}
	err = txqry.DeleteCandidatesOf(ctx, position)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		c := snapshot[id]
		extra := []byte("{}")
		if len(c.Extra) > 0 {
			extra, err = json.Marshal(jsonSafe(c.Extra))
			if err != nil {
				return fmt.Errorf("candidate %d: encode extra fields: %w", id, err)
			}
		}

		err = txqry.CreateCandidate(ctx, db.CreateCandidateParams{
			Position:         position,
			ID:               c.ID,
			Url:              c.URL,
			LastName:         c.LastName,
			FirstName:        c.FirstName,
			ApplicationDate:  c.ApplicationDate,
			ApplicationState: c.ApplicationState,
			Emailed:          c.Emailed,
			Email:            nullable(c.Email),
			NeedVisa:         nullable(c.NeedVisa),
			Phone:            c.Phone,
			Address:          c.Address,
			Schedule:         c.Schedule,
			Notes:            c.Notes,
			Folder:           c.Folder,
			Combined:         c.Combined,
			Verdict:          c.Verdict,
			Github:           c.GitHub,
			Extra:            string(extra),
		})
		if err != nil {
			return fmt.Errorf("candidate %d: %w", id, err)
		}
	}

	return commit()
}

// Candidates reads back what was stored for `position`.
func (s Store) Candidates(ctx context.Context, position string) (applicants.Snapshot, error) {
	rows, err := s.qry.GetCandidates(ctx, position)
	if err != nil {
		return nil, err
	}

	snapshot := applicants.Snapshot{}
	for _, r := range rows {
		c := &applicants.Candidate{
			ID:               r.ID,
			URL:              r.Url,
			LastName:         r.LastName,
			FirstName:        r.FirstName,
			ApplicationDate:  r.ApplicationDate,
			ApplicationState: r.ApplicationState,
			Emailed:          r.Emailed,
			Email:            fromNullable(r.Email),
			NeedVisa:         fromNullable(r.NeedVisa),
			Phone:            r.Phone,
			Address:          r.Address,
			Schedule:         r.Schedule,
			Notes:            r.Notes,
			Folder:           r.Folder,
			Combined:         r.Combined,
			Verdict:          r.Verdict,
			GitHub:           r.Github,
		}
		var extra map[string]any
		err = json.Unmarshal([]byte(r.Extra), &extra)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: decode extra fields: %w", r.ID, err)
		}
		if len(extra) > 0 {
			c.Extra = extra
		}
		snapshot[r.ID] = c
	}
	return snapshot, nil
}

// Positions lists every exported position with the time it was exported.
func (s Store) Positions(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.qry.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		out[r.Name] = time.Unix(r.ExportedAt, 0)
	}
	return out, nil
}
