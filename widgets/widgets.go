// Package widgets declares the built in dashboard widgets.
package widgets

import (
	"github.com/goliatone/go-dashboard"
	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/profile"
)

// Widget ids.
const (
	Assessment          = "assessment"
	Research            = "research"
	Overview            = "overview"
	Personas            = "personas"
	Recommendations     = "recommendations"
	Completeness        = "completeness"
	TechnicalTranslator = "technical-translator"
)

// Descriptors returns the built in widgets in navigation order.
func Descriptors() []dashboard.WidgetDescriptor {
	return []dashboard.WidgetDescriptor{
		{
			ID:          Assessment,
			Title:       "Assessment",
			Description: "Company details and the scores they produced",
			Category:    dashboard.CategoryInput,
			Available:   true,
			Inputs:      []string{profile.InputCompany, profile.InputScore},
		},
		{
			ID:          Research,
			Title:       "Research",
			Description: "Website and LinkedIn research notes",
			Category:    dashboard.CategoryInput,
			Available:   true,
			Inputs:      []string{profile.InputResearch},
		},
		{
			ID:          Overview,
			Title:       "Overview",
			Description: "Score summary and lead tier",
			Category:    dashboard.CategoryOutput,
			Available:   true,
			Inputs:      []string{profile.InputCompany, profile.InputTier, profile.InputScore},
		},
		{
			ID:          Personas,
			Title:       "Personas",
			Description: "Buyer personas derived from the assessment",
			Category:    dashboard.CategoryOutput,
			Available:   true,
			Inputs:      []string{profile.InputPersonas},
		},
		{
			ID:          Recommendations,
			Title:       "Recommendations",
			Description: "Next steps ranked by impact",
			Category:    dashboard.CategoryOutput,
			Available:   true,
			Inputs:      []string{profile.InputRecommendations},
			MinRole:     auth.RoleMember,
		},
		{
			ID:          Completeness,
			Title:       "Research completeness",
			Description: "Required research fields and their quality",
			Category:    dashboard.CategoryOutput,
			Available:   true,
			Inputs:      []string{profile.InputCompleteness},
		},
		{
			ID:          TechnicalTranslator,
			Title:       "Technical Translator",
			Description: "Plain language explanations of technical findings",
			Category:    dashboard.CategoryOutput,
			Available:   false,
		},
	}
}

// NewRegistry builds a registry of the built in widgets.
func NewRegistry(opts ...dashboard.RegistryOption) (*dashboard.Registry, error) {
	return dashboard.NewRegistry(Descriptors(), opts...)
}
