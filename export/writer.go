package export

import (
	"io"
	"time"

	"github.com/goliatone/go-dashboard/profile"
)

// Snapshot is a point in time copy of the page data being exported.
type Snapshot struct {
	Profile     *profile.Profile
	Widget      string
	RequestedBy string
	RequestedAt time.Time
}

// Title returns the report title.
func (s Snapshot) Title() string {
	if s.Profile != nil && s.Profile.CompanyName != "" {
		return s.Profile.CompanyName + " report"
	}
	return "Assessment report"
}

// Sections groups the non-empty fields of the snapshot by section, keeping
// the profile field order.
func (s Snapshot) Sections() []Section {
	var out []Section
	index := map[string]int{}

	for _, f := range s.Profile.Fields() {
		i, ok := index[f.Section]
		if !ok {
			i = len(out)
			index[f.Section] = i
			out = append(out, Section{Name: f.Section, Title: sectionTitles[f.Section]})
		}
		out[i].Fields = append(out[i].Fields, f)
	}
	return out
}

// Section is a titled group of fields.
type Section struct {
	Name   string
	Title  string
	Fields []profile.Field
}

var sectionTitles = map[string]string{
	profile.InputCompany:         "Company",
	profile.InputTier:            "Urgency",
	profile.InputResearch:        "Research",
	profile.InputScore:           "Score",
	profile.InputPersonas:        "Personas",
	profile.InputRecommendations: "Recommendations",
}

// Writer serializes a snapshot in one format.
type Writer interface {
	Format() Format
	ContentType() string
	Extension() string
	Write(w io.Writer, snapshot Snapshot) error
}
