package profile_test

import (
	"strings"
	"testing"

	"github.com/goliatone/go-dashboard/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeProfile() *profile.Profile {
	return &profile.Profile{
		CompanyName:                "Acme Dental",
		WebsiteProductDescription:  "Scheduling software for independent dental clinics",
		WebsiteValueProp:           "Cut no-shows by thirty percent",
		WebsiteTargetCustomer:      "Clinics with two to ten chairs",
		LinkedInRecentPosts:        "Posted about hiring a first sales rep after 50 customers",
		LinkedInBackground:         "Ten years as a practice manager before founding Acme",
		LinkedInCompanyDescription: "Front desk tools",
	}
}

func TestChecklistCompleteProfile(t *testing.T) {
	report := profile.DefaultChecklist().Check(completeProfile())

	assert.True(t, report.Valid)
	assert.Empty(t, report.Missing)
	assert.Empty(t, report.Issues)
	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 100, report.Percent())
}

func TestChecklistMissingFields(t *testing.T) {
	p := completeProfile()
	p.WebsiteValueProp = "  "
	p.LinkedInCompanyDescription = ""

	report := profile.DefaultChecklist().Check(p)

	require.False(t, report.Valid)
	require.Len(t, report.Missing, 2)
	assert.Equal(t, "website_value_prop", report.Missing[0].Field)
	assert.Equal(t, profile.SectionWebsite, report.Missing[0].Section)
	assert.Equal(t, "linkedin_company_description", report.Missing[1].Field)
	assert.Equal(t, 4, report.Filled)
}

func TestChecklistQualityThresholds(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*profile.Profile)
		field   string
		flagged bool
	}{
		{
			name:    "website description under 20 chars",
			mutate:  func(p *profile.Profile) { p.WebsiteProductDescription = "Dental software" },
			field:   "website_product_description",
			flagged: true,
		},
		{
			name:    "other website field at 10 chars",
			mutate:  func(p *profile.Profile) { p.WebsiteValueProp = "0123456789" },
			field:   "website_value_prop",
			flagged: false,
		},
		{
			name:    "linkedin posts under 30 chars",
			mutate:  func(p *profile.Profile) { p.LinkedInRecentPosts = "Hiring" },
			field:   "linkedin_recent_posts",
			flagged: true,
		},
		{
			name:    "short linkedin company description is fine",
			mutate:  func(p *profile.Profile) { p.LinkedInCompanyDescription = "Tools" },
			field:   "linkedin_company_description",
			flagged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := completeProfile()
			tt.mutate(p)

			report := profile.DefaultChecklist().Check(p)

			var found bool
			for _, issue := range report.Issues {
				if issue.Field == tt.field {
					found = true
				}
			}
			assert.Equal(t, tt.flagged, found)
			assert.Equal(t, !tt.flagged, report.Valid)
		})
	}
}

func TestChecklistNilProfile(t *testing.T) {
	report := profile.DefaultChecklist().Check(nil)
	assert.False(t, report.Valid)
	assert.Equal(t, "Unknown", report.Company)
	assert.Len(t, report.Missing, 6)
	assert.Equal(t, 0, report.Percent())
}

func TestLoadChecklist(t *testing.T) {
	doc := `
research_checklist:
  website_research:
    - field: website_value_prop
      description: Main promise
      min_length: 5
`
	checklist, err := profile.LoadChecklist(strings.NewReader(doc))
	require.NoError(t, err)

	require.Len(t, checklist.Website, 1)
	assert.Equal(t, 5, checklist.Website[0].MinLength)
	assert.Len(t, checklist.LinkedIn, 3)

	_, err = profile.LoadChecklist(strings.NewReader("research_checklist: ["))
	assert.Error(t, err)
}

func TestChecklistWidgetAndReportAgree(t *testing.T) {
	p := completeProfile()
	p.WebsiteTargetCustomer = "Clinics, 2-10 chair"

	report := profile.DefaultChecklist().Check(p)
	assert.True(t, report.Valid, "non description website fields need 10 chars")

	widget, ok := p.Slice(profile.InputCompleteness)[profile.InputCompleteness].(profile.Report)
	require.True(t, ok)
	assert.Equal(t, report, widget)
}

func TestDefaultChecklistIsCopied(t *testing.T) {
	first := profile.DefaultChecklist()
	first.Website[0].Field = "changed"

	second := profile.DefaultChecklist()
	assert.Equal(t, "website_product_description", second.Website[0].Field)
	assert.Len(t, second.Website, 3)
	assert.Len(t, second.LinkedIn, 3)
}
