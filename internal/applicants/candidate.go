// Package applicants keeps the local record of a position's candidates in sync with
// what the portal lists, one snapshot file per position.
package applicants

import (
	"fmt"

	"hrpull/lib/textutil"
)

// Listing is one row of the portal's applicants table.
type Listing struct {
	ID               int64
	URL              string
	LastName         string
	FirstName        string
	ApplicationDate  string
	ApplicationState string
}

// Candidate is the stored record of an applicant. Fields the tool does not know
// about (added by hand to the snapshot) are kept in Extra and written back as-is.
type Candidate struct {
	ID               int64   `yaml:"id"`
	URL              string  `yaml:"url"`
	LastName         string  `yaml:"last_name"`
	FirstName        string  `yaml:"first_name"`
	ApplicationDate  string  `yaml:"application_date"`
	ApplicationState string  `yaml:"application_state"`
	Emailed          bool    `yaml:"emailed"`
	Email            *string `yaml:"email"`
	NeedVisa         *string `yaml:"need_visa"`
	Phone            string  `yaml:"phone,omitempty"`
	Address          string  `yaml:"address,omitempty"`
	Schedule         string  `yaml:"schedule,omitempty"`
	Notes            string  `yaml:"notes"`
	Folder           string  `yaml:"folder"`
	Combined         string  `yaml:"combined"`
	Verdict          string  `yaml:"_verdict_"`
	GitHub           string  `yaml:"github"`

	Extra map[string]any `yaml:",inline"`
}

// Snapshot is every stored candidate of a position keyed by id.
type Snapshot map[int64]*Candidate

// FolderName is the directory a candidate's documents are stored in, relative to
// the position directory.
func FolderName(id int64, firstName, lastName string) string {
	return fmt.Sprintf("%d-%s_%s", id, textutil.PathSafe(firstName), textutil.PathSafe(lastName))
}

// NewCandidate creates the record of a candidate seen for the first time, the fields
// that only the candidate page can fill start out unknown.
func NewCandidate(l Listing) *Candidate {
	return &Candidate{
		ID:               l.ID,
		URL:              l.URL,
		LastName:         l.LastName,
		FirstName:        l.FirstName,
		ApplicationDate:  l.ApplicationDate,
		ApplicationState: l.ApplicationState,
		Emailed:          false,
		Email:            nil,
		NeedVisa:         nil,
		Notes:            "",
		Folder:           FolderName(l.ID, l.FirstName, l.LastName),
	}
}

// DisplayName is "First Last".
func (c *Candidate) DisplayName() string {
	return c.FirstName + " " + c.LastName
}

// EmailAddress returns the email or "" when it was not scraped yet.
func (c *Candidate) EmailAddress() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}
