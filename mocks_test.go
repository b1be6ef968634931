package dashboard_test

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-dashboard/analytics"
	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/profile"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
)

// memBackend is an in-memory IdentityBackend.
type memBackend struct {
	auth.ChangeHub

	mu       sync.Mutex
	sessions map[string]*auth.Session
	err      error
}

func newMemBackend() *memBackend {
	return &memBackend{sessions: map[string]*auth.Session{}}
}

func (b *memBackend) add(token string, role auth.UserRole) *auth.Session {
	s := &auth.Session{
		ID:        "sess-" + token,
		Token:     token,
		UserID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte(token)).String(),
		Username:  "user-" + token,
		Role:      role,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	b.mu.Lock()
	b.sessions[token] = s
	b.mu.Unlock()
	return s
}

func (b *memBackend) fail(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

func (b *memBackend) GetSession(_ context.Context, token string) (*auth.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return b.sessions[token], nil
}

func (b *memBackend) SignOut(_ context.Context, token string) error {
	b.mu.Lock()
	delete(b.sessions, token)
	b.mu.Unlock()
	b.Emit(auth.SessionEvent{Type: auth.SessionSignedOut, Token: token})
	return nil
}

// navigator records redirects.
type navigator struct {
	mu        sync.Mutex
	params    map[string]string
	redirects []string
}

func newNavigator(params map[string]string) *navigator {
	return &navigator{params: params}
}

func (n *navigator) Param(key string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params[key]
}

func (n *navigator) Redirect(to string) {
	n.mu.Lock()
	n.redirects = append(n.redirects, to)
	n.mu.Unlock()
}

func (n *navigator) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.redirects...)
}

// dataService serves profiles, optionally holding each call until release
// is closed.
type dataService struct {
	mu       sync.Mutex
	profiles map[string]*profile.Profile
	err      error
	calls    int
	release  chan struct{}
	started  chan struct{}
	returned chan struct{}
	honorCtx bool
}

func newDataService() *dataService {
	return &dataService{profiles: map[string]*profile.Profile{}, honorCtx: true}
}

// hold makes Fetch block until the returned release function is called.
func (d *dataService) hold() (release func()) {
	d.mu.Lock()
	d.release = make(chan struct{})
	d.started = make(chan struct{}, 16)
	d.returned = make(chan struct{}, 16)
	ch := d.release
	d.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (d *dataService) Fetch(ctx context.Context, userID string) (*profile.Profile, error) {
	d.mu.Lock()
	d.calls++
	release, started, returned := d.release, d.started, d.returned
	record, err := d.profiles[userID], d.err
	honor := d.honorCtx
	d.mu.Unlock()

	if returned != nil {
		defer notify(returned)
	}

	if release != nil {
		notify(started)
		if honor {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			<-release
		}
	}

	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, profile.ErrProfileNotFound
	}
	return record.Clone(), nil
}

func (d *dataService) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type memorySink struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (s *memorySink) Record(_ context.Context, evt analytics.Event) error {
	s.mu.Lock()
	s.events = append(s.events, evt)
	s.mu.Unlock()
	return nil
}

func (s *memorySink) count(t analytics.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, evt := range s.events {
		if evt.Type == t {
			n++
		}
	}
	return n
}

func sampleProfile(userID string) *profile.Profile {
	return &profile.Profile{
		UserID:         uuid.MustParse(userID),
		CompanyName:    "Acme Analytics",
		CompanyWebsite: "https://acme.test",
		FounderName:    "Ana Ortiz",
		UrgencyTier:    1,
		UrgencySignals: []string{"hiring sales lead"},
		Score: &profile.Score{
			Overall:    72,
			Grade:      "B",
			Dimensions: map[string]int{"clarity": 80, "reach": 64},
		},
		Personas: []profile.Persona{
			{Name: "Ops Olivia", Role: "Head of Operations", Summary: "Owns tooling budget"},
		},
	}
}

type stubGate struct {
	enabled map[string]bool
}

func (g stubGate) Enabled(_ context.Context, key string, _ ...gate.ResolveOption) (bool, error) {
	enabled, ok := g.enabled[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

type authConfig struct{}

func (authConfig) GetSigningKey() string { return "test-signing-key-with-enough-bytes" }
func (authConfig) GetTokenExpiration() int { return 24 }
func (authConfig) GetExtendedTokenDuration() int { return 48 }
func (authConfig) GetContextKey() string { return "session" }
func (authConfig) GetIssuer() string { return "dashboard" }
func (authConfig) GetAudience() []string { return []string{"dashboard:web"} }
func (authConfig) GetRejectedRouteKey() string { return "rejected_route" }
func (authConfig) GetRejectedRouteDefault() string { return "/dashboard" }
func (authConfig) GetSignInRoute() string { return "/login" }
func (authConfig) GetForbiddenRoute() string { return "/forbidden" }

type dashboardConfig struct {
	route string
	limit float64
	burst int
}

func (c dashboardConfig) GetDashboardRoute() string { return c.route }
func (c dashboardConfig) GetWidgetParam() string { return "widget" }
func (c dashboardConfig) GetExportRateLimit() float64 { return c.limit }
func (c dashboardConfig) GetExportBurst() int { return c.burst }

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
