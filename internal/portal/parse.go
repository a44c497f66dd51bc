package portal

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"hrpull/internal/applicants"
	"hrpull/lib/htmlutil"
	"hrpull/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

// ErrUnexpectedPage means a page did not have the structure the parsers expect,
// usually because the portal changed or a session expired.
var ErrUnexpectedPage = errors.New("unexpected page structure")

// contact information labels as the portal renders them
const (
	fieldFirstName = "First Name"
	fieldLastName  = "Last Name"
	fieldEmail     = "Please indicate your email address"
	fieldNeedVisa  = "Will you now or in the future require sponsorship for employment visa status (e.g., H-1B visa status)?"
	fieldPhone     = "Primary Contact Number"
	fieldSchedule  = "Work schedule desired?"
)

var addressFields = []string{"Address1", "City", "State", "Country"}

var applicationPathRegex = regexp.MustCompile(`^/hr/job_applications/(\d+)$`)

// applicationID returns the id of a job application link, links that point
// elsewhere (other hosts included) return false.
func applicationID(base, link *url.URL) (int64, bool) {
	if link.Host != base.Host {
		return 0, false
	}
	groups := applicationPathRegex.FindStringSubmatch(link.Path)
	if len(groups) < 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(groups[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ParseListings reads the applicants table of a position.
func ParseListings(base *url.URL, doc *goquery.Document) ([]applicants.Listing, error) {
	table := doc.Find("#results").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: no #results table", ErrUnexpectedPage)
	}

	var listings []applicants.Listing
	var rowErr error
	table.Find("tr").Slice(1, goquery.ToEnd).EachWithBreak(func(i int, row *goquery.Selection) bool {
		listing, err := parseListingRow(base, row)
		if err != nil {
			rowErr = fmt.Errorf("row %d: %w", i+1, err)
			return false
		}
		listings = append(listings, listing)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return listings, nil
}

func parseListingRow(base *url.URL, row *goquery.Selection) (applicants.Listing, error) {
	rawID, _ := row.Attr("data-id")
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return applicants.Listing{}, fmt.Errorf("%w: data-id %q", ErrUnexpectedPage, rawID)
	}

	var link *url.URL
	for _, a := range htmlutil.GetAnchors(base, row.Find("a")) {
		linkID, ok := applicationID(base, a.Url)
		if !ok {
			continue
		}
		if linkID != id {
			return applicants.Listing{}, fmt.Errorf(
				"%w: row %d links to application %d", ErrUnexpectedPage, id, linkID,
			)
		}
		link = a.Url
		break
	}
	if link == nil {
		return applicants.Listing{}, fmt.Errorf("%w: row %d has no application link", ErrUnexpectedPage, id)
	}

	cells := row.Find("td")
	if cells.Length() < 6 {
		return applicants.Listing{}, fmt.Errorf(
			"%w: row %d has %d cells", ErrUnexpectedPage, id, cells.Length(),
		)
	}

	return applicants.Listing{
		ID:               id,
		URL:              link.String(),
		LastName:         htmlutil.Text(cells.Eq(1)),
		FirstName:        htmlutil.Text(cells.Eq(2)),
		ApplicationDate:  htmlutil.Text(cells.Eq(4)),
		ApplicationState: htmlutil.Text(cells.Eq(5)),
	}, nil
}

// ContactInfo is the contact information table of a candidate page keyed by label.
type ContactInfo map[string]string

// ParseContactInfo finds the table captioned "Contact Information", pages without
// the caption keep it as their second table.
func ParseContactInfo(doc *goquery.Document) (ContactInfo, error) {
	tables := doc.Find("table")

	table := tables.FilterFunction(func(_ int, t *goquery.Selection) bool {
		return textutil.MatchName(htmlutil.Text(t.ChildrenFiltered("caption")), []string{"contactinformation"})
	}).First()
	if table.Length() == 0 {
		if tables.Length() < 2 {
			return nil, fmt.Errorf("%w: no contact information table", ErrUnexpectedPage)
		}
		table = tables.Eq(1)
	}

	info := ContactInfo{}
	for _, pair := range htmlutil.TablePairs(table) {
		info[pair.Key] = pair.Value
	}
	return info, nil
}

// Name is the candidate's name as the page shows it.
func (info ContactInfo) Name() string {
	return strings.TrimSpace(info[fieldFirstName] + " " + info[fieldLastName])
}

// Address joins the non-empty parts of the postal address.
func (info ContactInfo) Address() string {
	var parts []string
	for _, field := range addressFields {
		if v := info[field]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// Apply copies the contact information onto the candidate. The email and visa
// answers must be present on the page, the rest may be missing.
func (info ContactInfo) Apply(c *applicants.Candidate) error {
	email, ok := info[fieldEmail]
	if !ok {
		return fmt.Errorf("%w: no email field", ErrUnexpectedPage)
	}
	needVisa, ok := info[fieldNeedVisa]
	if !ok {
		return fmt.Errorf("%w: no visa sponsorship field", ErrUnexpectedPage)
	}

	c.Email = &email
	c.NeedVisa = &needVisa
	c.Phone = info[fieldPhone]
	c.Address = info.Address()
	c.Schedule = info[fieldSchedule]
	return nil
}

// combinedState is what a candidate page says about its combined document.
type combinedState struct {
	// NeedsGeneration is set when the generate button is there but no document
	// was generated yet.
	NeedsGeneration bool
	// Ready is set once the "Regenerate" link shows, the document can be viewed.
	Ready bool
	// View is the link to the document, nil when there is none.
	View *url.URL
}

func parseCombinedState(base *url.URL, doc *goquery.Document) (combinedState, error) {
	generate := doc.Find(".generate-one-combo")
	if generate.Length() > 1 {
		return combinedState{}, fmt.Errorf(
			"%w: %d combined document buttons", ErrUnexpectedPage, generate.Length(),
		)
	}
	container := doc.Find(".combined-doc-container").First()

	state := combinedState{}
	if generate.Length() == 1 {
		state.NeedsGeneration = container.Length() == 0 || htmlutil.Text(container) == "Generate"
	}

	for _, a := range htmlutil.GetAnchors(base, doc.Find("a")) {
		if a.Name == "Regenerate" {
			state.Ready = true
			break
		}
	}
	for _, a := range htmlutil.GetAnchors(base, container.Find("a")) {
		if a.Name == "View" {
			state.View = a.Url
			break
		}
	}
	return state, nil
}
