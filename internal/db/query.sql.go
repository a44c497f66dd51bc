package db

import (
	"context"
	"database/sql"
)

const upsertPosition = `-- name: UpsertPosition :exec
insert into position(name, exported_at) values (?, ?)
on conflict (name) do update set exported_at = excluded.exported_at
`

type UpsertPositionParams struct {
	Name       string
	ExportedAt int64
}

func (q *Queries) UpsertPosition(ctx context.Context, arg UpsertPositionParams) error {
	_, err := q.db.ExecContext(ctx, upsertPosition, arg.Name, arg.ExportedAt)
	return err
}

const deleteCandidatesOf = `-- name: DeleteCandidatesOf :exec
delete from candidate where position = ?
`

func (q *Queries) DeleteCandidatesOf(ctx context.Context, position string) error {
	_, err := q.db.ExecContext(ctx, deleteCandidatesOf, position)
	return err
}

const createCandidate = `-- name: CreateCandidate :exec
insert into candidate(
    position, id, url, last_name, first_name, application_date, application_state,
    emailed, email, need_visa, phone, address, schedule, notes, folder, combined,
    verdict, github, extra
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateCandidateParams struct {
	Position         string
	ID               int64
	Url              string
	LastName         string
	FirstName        string
	ApplicationDate  string
	ApplicationState string
	Emailed          bool
	Email            sql.NullString
	NeedVisa         sql.NullString
	Phone            string
	Address          string
	Schedule         string
	Notes            string
	Folder           string
	Combined         string
	Verdict          string
	Github           string
	Extra            string
}

func (q *Queries) CreateCandidate(ctx context.Context, arg CreateCandidateParams) error {
	_, err := q.db.ExecContext(ctx, createCandidate,
		arg.Position,
		arg.ID,
		arg.Url,
		arg.LastName,
		arg.FirstName,
		arg.ApplicationDate,
		arg.ApplicationState,
		arg.Emailed,
		arg.Email,
		arg.NeedVisa,
		arg.Phone,
		arg.Address,
		arg.Schedule,
		arg.Notes,
		arg.Folder,
		arg.Combined,
		arg.Verdict,
		arg.Github,
		arg.Extra,
	)
	return err
}

const getCandidates = `-- name: GetCandidates :many
select position, id, url, last_name, first_name, application_date, application_state,
    emailed, email, need_visa, phone, address, schedule, notes, folder, combined,
    verdict, github, extra
from candidate
where position = ?
order by id
`

func (q *Queries) GetCandidates(ctx context.Context, position string) ([]Candidate, error) {
	rows, err := q.db.QueryContext(ctx, getCandidates, position)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Candidate
	for rows.Next() {
		var i Candidate
		if err := rows.Scan(
			&i.Position,
			&i.ID,
			&i.Url,
			&i.LastName,
			&i.FirstName,
			&i.ApplicationDate,
			&i.ApplicationState,
			&i.Emailed,
			&i.Email,
			&i.NeedVisa,
			&i.Phone,
			&i.Address,
			&i.Schedule,
			&i.Notes,
			&i.Folder,
			&i.Combined,
			&i.Verdict,
			&i.Github,
			&i.Extra,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPositions = `-- name: GetPositions :many
select name, exported_at from position order by name
`

func (q *Queries) GetPositions(ctx context.Context) ([]Position, error) {
	rows, err := q.db.QueryContext(ctx, getPositions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Position
	for rows.Next() {
		var i Position
		if err := rows.Scan(&i.Name, &i.ExportedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
