package db

import (
	"database/sql"
)

type Candidate struct {
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

type Position struct {
	Name       string
	ExportedAt int64
}
