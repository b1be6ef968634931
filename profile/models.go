package profile

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Input keys a widget can declare to receive a slice of a Profile.
const (
	InputCompany         = "company"
	InputResearch        = "research"
	InputTier            = "tier"
	InputScore           = "score"
	InputPersonas        = "personas"
	InputRecommendations = "recommendations"
	InputCompleteness    = "completeness"
)

// Profile is the scored assessment profile of a user. It is fetched once per
// dashboard visit and shared read-only by every widget.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`

	ID     uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty" yaml:"id"`
	UserID uuid.UUID `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty" yaml:"user_id"`

	CompanyName    string `bun:"company_name,notnull" json:"company_name,omitempty" yaml:"company_name"`
	CompanyWebsite string `bun:"company_website" json:"company_website,omitempty" yaml:"company_website"`
	FounderName    string `bun:"founder_name" json:"founder_name,omitempty" yaml:"founder_name"`
	FounderTitle   string `bun:"founder_title" json:"founder_title,omitempty" yaml:"founder_title"`
	LinkedInURL    string `bun:"linkedin_url" json:"linkedin_url,omitempty" yaml:"linkedin_url"`
	Phone          string `bun:"phone_number" json:"phone_number,omitempty" yaml:"phone_number"`

	UrgencyTier    int      `bun:"urgency_tier" json:"urgency_tier,omitempty" yaml:"urgency_tier"`
	UrgencySignals []string `bun:"urgency_signals" json:"urgency_signals,omitempty" yaml:"urgency_signals"`

	WebsiteProductDescription  string `bun:"website_product_description" json:"website_product_description,omitempty" yaml:"website_product_description"`
	WebsiteValueProp           string `bun:"website_value_prop" json:"website_value_prop,omitempty" yaml:"website_value_prop"`
	WebsiteTargetCustomer      string `bun:"website_target_customer" json:"website_target_customer,omitempty" yaml:"website_target_customer"`
	LinkedInRecentPosts        string `bun:"linkedin_recent_posts" json:"linkedin_recent_posts,omitempty" yaml:"linkedin_recent_posts"`
	LinkedInBackground         string `bun:"linkedin_background" json:"linkedin_background,omitempty" yaml:"linkedin_background"`
	LinkedInCompanyDescription string `bun:"linkedin_company_description" json:"linkedin_company_description,omitempty" yaml:"linkedin_company_description"`
	MBTIType                   string `bun:"mbti_type_inferred" json:"mbti_type_inferred,omitempty" yaml:"mbti_type_inferred"`
	ResearchNotes              string `bun:"research_notes" json:"research_notes,omitempty" yaml:"research_notes"`

	Score           *Score    `bun:"score" json:"score,omitempty" yaml:"score"`
	Personas        []Persona `bun:"personas" json:"personas,omitempty" yaml:"personas"`
	Recommendations []string  `bun:"recommendations" json:"recommendations,omitempty" yaml:"recommendations"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty" yaml:"-"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty" yaml:"-"`
}

// Score is the assessment result. Dimensions holds per-area scores (0-100).
type Score struct {
	Overall    int            `json:"overall" yaml:"overall"`
	Grade      string         `json:"grade,omitempty" yaml:"grade"`
	Dimensions map[string]int `json:"dimensions,omitempty" yaml:"dimensions"`
}

// Persona is a buyer persona derived from the assessment.
type Persona struct {
	Name       string   `json:"name" yaml:"name"`
	Role       string   `json:"role,omitempty" yaml:"role"`
	Summary    string   `json:"summary,omitempty" yaml:"summary"`
	PainPoints []string `json:"pain_points,omitempty" yaml:"pain_points"`
}

// Clone returns a deep copy of the profile. Exports and widgets receive
// clones so nothing downstream can mutate the page's copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}

	out := *p
	out.UrgencySignals = slices.Clone(p.UrgencySignals)
	out.Recommendations = slices.Clone(p.Recommendations)

	if p.Score != nil {
		score := *p.Score
		score.Dimensions = maps.Clone(p.Score.Dimensions)
		out.Score = &score
	}

	if p.Personas != nil {
		out.Personas = make([]Persona, len(p.Personas))
		for i, persona := range p.Personas {
			persona.PainPoints = slices.Clone(persona.PainPoints)
			out.Personas[i] = persona
		}
	}

	if p.CreatedAt != nil {
		t := *p.CreatedAt
		out.CreatedAt = &t
	}

	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		out.UpdatedAt = &t
	}

	return &out
}

// Field is a labeled, non-empty value of a profile.
type Field struct {
	Section string
	Key     string
	Label   string
	Value   string
}

// Fields flattens the profile into labeled values in a stable order. Empty
// optional values are left out so writers never have to deal with them.
func (p *Profile) Fields() []Field {
	if p == nil {
		return nil
	}

	fields := make([]Field, 0, 24)
	add := func(section, key, label, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		fields = append(fields, Field{Section: section, Key: key, Label: label, Value: value})
	}

	add(InputCompany, "company_name", "Company", p.CompanyName)
	add(InputCompany, "company_website", "Website", p.CompanyWebsite)
	add(InputCompany, "founder_name", "Founder", p.FounderName)
	add(InputCompany, "founder_title", "Founder title", p.FounderTitle)
	add(InputCompany, "linkedin_url", "LinkedIn", p.LinkedInURL)
	add(InputCompany, "phone_number", "Phone", p.Phone)

	if p.UrgencyTier > 0 {
		add(InputTier, "urgency_tier", "Urgency tier", strconv.Itoa(p.UrgencyTier))
	}
	add(InputTier, "urgency_signals", "Urgency signals", strings.Join(p.UrgencySignals, ", "))

	add(InputResearch, "website_product_description", "Product", p.WebsiteProductDescription)
	add(InputResearch, "website_value_prop", "Value proposition", p.WebsiteValueProp)
	add(InputResearch, "website_target_customer", "Target customer", p.WebsiteTargetCustomer)
	add(InputResearch, "linkedin_recent_posts", "Recent posts", p.LinkedInRecentPosts)
	add(InputResearch, "linkedin_background", "Background", p.LinkedInBackground)
	add(InputResearch, "linkedin_company_description", "Company description", p.LinkedInCompanyDescription)
	add(InputResearch, "mbti_type_inferred", "MBTI (inferred)", p.MBTIType)
	add(InputResearch, "research_notes", "Notes", p.ResearchNotes)

	if p.Score != nil {
		add(InputScore, "score_overall", "Overall score", strconv.Itoa(p.Score.Overall))
		add(InputScore, "score_grade", "Grade", p.Score.Grade)
		for _, dim := range p.Score.SortedDimensions() {
			add(InputScore, "score_"+dim.Name, dim.Name, strconv.Itoa(dim.Value))
		}
	}

	for i, persona := range p.Personas {
		key := "persona_" + strconv.Itoa(i+1)
		value := persona.Name
		if persona.Role != "" {
			value += " (" + persona.Role + ")"
		}
		if persona.Summary != "" {
			value += ": " + persona.Summary
		}
		add(InputPersonas, key, "Persona "+strconv.Itoa(i+1), value)
	}

	for i, rec := range p.Recommendations {
		add(InputRecommendations, "recommendation_"+strconv.Itoa(i+1), "Recommendation "+strconv.Itoa(i+1), rec)
	}

	return fields
}

// Dimension is a named score value.
type Dimension struct {
	Name  string
	Value int
}

// SortedDimensions returns dimensions ordered by name.
func (s *Score) SortedDimensions() []Dimension {
	if s == nil || len(s.Dimensions) == 0 {
		return nil
	}
	names := slices.Sorted(maps.Keys(s.Dimensions))
	out := make([]Dimension, 0, len(names))
	for _, name := range names {
		out = append(out, Dimension{Name: name, Value: s.Dimensions[name]})
	}
	return out
}

// Slice returns the parts of the profile named by inputs. Unknown keys are
// ignored and missing values are left out.
func (p *Profile) Slice(inputs ...string) map[string]any {
	out := make(map[string]any, len(inputs))
	if p == nil {
		return out
	}

	for _, input := range inputs {
		switch input {
		case InputCompany:
			out[input] = map[string]string{
				"name":          p.CompanyName,
				"website":       p.CompanyWebsite,
				"founder_name":  p.FounderName,
				"founder_title": p.FounderTitle,
				"linkedin_url":  p.LinkedInURL,
				"phone":         p.Phone,
			}
		case InputResearch:
			out[input] = p.sectionFields(InputResearch)
		case InputTier:
			if p.UrgencyTier > 0 {
				out[input] = map[string]any{
					"tier":    p.UrgencyTier,
					"signals": slices.Clone(p.UrgencySignals),
				}
			}
		case InputScore:
			if p.Score != nil {
				out[input] = p.Score
			}
		case InputPersonas:
			if len(p.Personas) > 0 {
				out[input] = p.Personas
			}
		case InputRecommendations:
			if len(p.Recommendations) > 0 {
				out[input] = p.Recommendations
			}
		case InputCompleteness:
			out[input] = DefaultChecklist().Check(p)
		}
	}
	return out
}

func (p *Profile) sectionFields(section string) []Field {
	var out []Field
	for _, f := range p.Fields() {
		if f.Section == section {
			out = append(out, f)
		}
	}
	return out
}

// Value returns a research field by its column name.
func (p *Profile) Value(field string) string {
	switch field {
	case "website_product_description":
		return p.WebsiteProductDescription
	case "website_value_prop":
		return p.WebsiteValueProp
	case "website_target_customer":
		return p.WebsiteTargetCustomer
	case "linkedin_recent_posts":
		return p.LinkedInRecentPosts
	case "linkedin_background":
		return p.LinkedInBackground
	case "linkedin_company_description":
		return p.LinkedInCompanyDescription
	case "mbti_type_inferred":
		return p.MBTIType
	case "research_notes":
		return p.ResearchNotes
	case "company_name":
		return p.CompanyName
	case "company_website":
		return p.CompanyWebsite
	case "founder_name":
		return p.FounderName
	case "founder_title":
		return p.FounderTitle
	case "linkedin_url":
		return p.LinkedInURL
	default:
		return ""
	}
}
