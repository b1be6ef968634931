package profile

import (
	_ "embed"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// Research sections of the checklist.
const (
	SectionWebsite  = "website_research"
	SectionLinkedIn = "linkedin_research"
)

// FieldSpec describes one required research field.
type FieldSpec struct {
	Field           string `yaml:"field" json:"field"`
	Description     string `yaml:"description" json:"description"`
	WhereToFind     string `yaml:"where_to_find" json:"where_to_find"`
	QualityStandard string `yaml:"quality_standard" json:"quality_standard"`
	Example         string `yaml:"example" json:"example"`
	MinLength       int    `yaml:"min_length,omitempty" json:"min_length,omitempty"`
}

// Checklist lists the research fields a profile needs before it counts as
// complete.
type Checklist struct {
	Website  []FieldSpec `yaml:"website_research"`
	LinkedIn []FieldSpec `yaml:"linkedin_research"`
}

// MissingField is a required field with no value.
type MissingField struct {
	Section     string `json:"section"`
	Field       string `json:"field"`
	Description string `json:"description"`
	WhereToFind string `json:"where_to_find"`
}

// QualityIssue is a field with a value that does not meet its standard.
type QualityIssue struct {
	Section  string `json:"section"`
	Field    string `json:"field"`
	Issue    string `json:"issue"`
	Standard string `json:"standard"`
	Example  string `json:"example"`
}

// Report is the result of checking a profile against a Checklist.
type Report struct {
	Company string         `json:"company"`
	Valid   bool           `json:"valid"`
	Missing []MissingField `json:"missing,omitempty"`
	Issues  []QualityIssue `json:"issues,omitempty"`
	Total   int            `json:"total"`
	Filled  int            `json:"filled"`
}

// Percent returns the share of required fields that are filled.
func (r Report) Percent() int {
	if r.Total == 0 {
		return 100
	}
	return r.Filled * 100 / r.Total
}

//go:embed checklist.yml
var checklistYAML []byte

var builtin = sync.OnceValue(func() Checklist {
	var doc struct {
		Research Checklist `yaml:"research_checklist"`
	}
	if err := yaml.Unmarshal(checklistYAML, &doc); err != nil {
		panic(err)
	}
	return doc.Research
})

// DefaultChecklist returns the built in research checklist. The dashboard
// widget and the validate command both start from it.
func DefaultChecklist() Checklist {
	c := builtin()
	return Checklist{
		Website:  slices.Clone(c.Website),
		LinkedIn: slices.Clone(c.LinkedIn),
	}
}

// LoadChecklist reads a YAML checklist. Sections missing from the document
// keep their defaults.
func LoadChecklist(r io.Reader) (Checklist, error) {
	checklist := DefaultChecklist()

	var doc struct {
		Research Checklist `yaml:"research_checklist"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return checklist, errors.Wrap(err, errors.CategoryBadInput, "unable to parse research checklist")
	}

	if len(doc.Research.Website) > 0 {
		checklist.Website = doc.Research.Website
	}
	if len(doc.Research.LinkedIn) > 0 {
		checklist.LinkedIn = doc.Research.LinkedIn
	}
	return checklist, nil
}

// minLength returns the quality threshold for a field. Website description
// fields need 20 characters and other website fields 10. LinkedIn posts and
// background need 30; other LinkedIn fields only need a value.
func minLength(section string, req FieldSpec) int {
	if req.MinLength > 0 {
		return req.MinLength
	}

	switch section {
	case SectionWebsite:
		if strings.Contains(req.Field, "description") {
			return 20
		}
		return 10
	case SectionLinkedIn:
		if strings.Contains(req.Field, "posts") || strings.Contains(req.Field, "background") {
			return 30
		}
	}
	return 0
}

// Check validates the research fields of p.
func (c Checklist) Check(p *Profile) Report {
	report := Report{}
	if p != nil {
		report.Company = p.CompanyName
	}
	if report.Company == "" {
		report.Company = "Unknown"
	}

	check := func(section string, reqs []FieldSpec) {
		for _, req := range reqs {
			report.Total++

			value := ""
			if p != nil {
				value = strings.TrimSpace(p.Value(req.Field))
			}

			if err := validation.Validate(value, validation.Required); err != nil {
				report.Missing = append(report.Missing, MissingField{
					Section:     section,
					Field:       req.Field,
					Description: req.Description,
					WhereToFind: req.WhereToFind,
				})
				continue
			}

			report.Filled++

			threshold := minLength(section, req)
			if threshold == 0 {
				continue
			}

			if err := validation.Validate(value, validation.RuneLength(threshold, 0)); err != nil {
				report.Issues = append(report.Issues, QualityIssue{
					Section:  section,
					Field:    req.Field,
					Issue:    fmt.Sprintf("too short (%d chars), needs at least %d", utf8.RuneCountInString(value), threshold),
					Standard: req.QualityStandard,
					Example:  req.Example,
				})
			}
		}
	}

	check(SectionWebsite, c.Website)
	check(SectionLinkedIn, c.LinkedIn)

	report.Valid = len(report.Missing) == 0 && len(report.Issues) == 0
	return report
}
