package profile

import (
	"context"
	"html"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nyaruka/phonenumbers"
)

// Service reads and writes profiles on behalf of the dashboard.
type Service struct {
	repo          Repository
	policy        *bluemonday.Policy
	defaultRegion string
	logger        Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDefaultRegion sets the region used to parse phone numbers without a
// country prefix.
func WithDefaultRegion(region string) ServiceOption {
	return func(s *Service) {
		if region = strings.TrimSpace(region); region != "" {
			s.defaultRegion = strings.ToUpper(region)
		}
	}
}

// NewService creates a profile service.
func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:          repo,
		policy:        bluemonday.StrictPolicy(),
		defaultRegion: "US",
		logger:        defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithLogger sets the service logger.
func (s *Service) WithLogger(logger Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Fetch returns the profile owned by userID.
func (s *Service) Fetch(ctx context.Context, userID string) (*Profile, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid user id").
			WithCode(errors.CodeBadRequest).
			WithMetadata(map[string]any{"user_id": userID})
	}

	record, err := s.repo.GetByUserID(ctx, id)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// List returns up to limit profiles, ordered by urgency tier.
func (s *Service) List(ctx context.Context, limit int) ([]*Profile, error) {
	return s.repo.List(ctx, limit)
}

// Save normalizes and stores a profile.
func (s *Service) Save(ctx context.Context, record *Profile) (*Profile, error) {
	if record == nil {
		return nil, ErrProfileInvalid
	}

	normalized := record.Clone()
	s.Normalize(normalized)

	if err := normalized.Validate(); err != nil {
		return nil, err
	}

	return s.repo.Save(ctx, normalized)
}

// Normalize strips markup from free text and formats the phone number in
// E.164 when it can be parsed.
func (s *Service) Normalize(p *Profile) {
	if p == nil {
		return
	}

	clean := func(v string) string {
		return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
	}

	p.CompanyName = clean(p.CompanyName)
	p.FounderName = clean(p.FounderName)
	p.FounderTitle = clean(p.FounderTitle)
	p.WebsiteProductDescription = clean(p.WebsiteProductDescription)
	p.WebsiteValueProp = clean(p.WebsiteValueProp)
	p.WebsiteTargetCustomer = clean(p.WebsiteTargetCustomer)
	p.LinkedInRecentPosts = clean(p.LinkedInRecentPosts)
	p.LinkedInBackground = clean(p.LinkedInBackground)
	p.LinkedInCompanyDescription = clean(p.LinkedInCompanyDescription)
	p.ResearchNotes = clean(p.ResearchNotes)
	p.MBTIType = strings.ToUpper(clean(p.MBTIType))

	for i, rec := range p.Recommendations {
		p.Recommendations[i] = clean(rec)
	}
	for i, signal := range p.UrgencySignals {
		p.UrgencySignals[i] = clean(signal)
	}

	if p.Phone != "" {
		p.Phone = s.normalizePhone(p.Phone)
	}
}

func (s *Service) normalizePhone(raw string) string {
	num, err := phonenumbers.Parse(raw, s.defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		s.logger.Debug("keeping unparsable phone number", "phone", raw)
		return strings.TrimSpace(raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
