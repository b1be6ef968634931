package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-dashboard/analytics"
	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/export"
	"github.com/goliatone/go-dashboard/profile"
	"github.com/goliatone/go-errors"
)

// Phase is the state of a Page.
type Phase string

const (
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseLoading         Phase = "loading"
	PhaseReady           Phase = "ready"
)

var transitions = map[Phase]map[Phase]struct{}{
	PhaseUnauthenticated: {
		PhaseLoading: {},
	},
	PhaseLoading: {
		PhaseReady:           {},
		PhaseUnauthenticated: {},
	},
	PhaseReady: {
		PhaseReady:           {},
		PhaseUnauthenticated: {},
	},
}

// Region is the content area of the active widget.
type Region struct {
	Widget WidgetDescriptor
	Slot   Slot
	// Data holds the profile parts the widget declared as inputs. Missing
	// parts are absent.
	Data map[string]any
	// Err is set when the page data could not be loaded; the widget
	// renders its empty state.
	Err error
}

// Frame is a consistent snapshot of a Page.
type Frame struct {
	Phase      Phase
	Generation uint64
	User       *auth.Identity
	Widgets    []WidgetDescriptor
	// Banner holds an identity backend failure. The page stays loading.
	Banner error
	// Redirect is the route the visitor was sent to, if any.
	Redirect string
	Region   *Region
}

// Regions returns the widget regions to render: one when ready, none
// otherwise.
func (f Frame) Regions() []Region {
	if f.Phase != PhaseReady || f.Region == nil {
		return nil
	}
	return []Region{*f.Region}
}

// ActiveWidget returns the id of the rendered widget.
func (f Frame) ActiveWidget() string {
	if f.Region == nil {
		return ""
	}
	return f.Region.Widget.ID
}

// PageOption configures a Page.
type PageOption func(*Page)

// WithAnalytics sets the sink for page views, selections and exports.
func WithAnalytics(sink analytics.Sink) PageOption {
	return func(p *Page) {
		p.sink = analytics.Normalize(sink)
	}
}

// WithExporter sets the export service.
func WithExporter(exporter Exporter) PageOption {
	return func(p *Page) {
		if exporter != nil {
			p.exporter = exporter
		}
	}
}

// WithPageLogger sets the page logger.
func WithPageLogger(logger Logger) PageOption {
	return func(p *Page) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithWidgetParam sets the URL parameter holding the widget id. Default:
// "widget".
func WithWidgetParam(name string) PageOption {
	return func(p *Page) {
		if name != "" {
			p.widgetParam = name
		}
	}
}

// WithoutPageView stops the page from recording page views. Mounts that only
// serve an export use it.
func WithoutPageView() PageOption {
	return func(p *Page) {
		p.noViews = true
	}
}

// Page is the widget host. It is safe for concurrent use; work started by
// Mount runs on its own goroutine and reports back under the page lock.
type Page struct {
	provider    *auth.Provider
	nav         auth.Navigator
	registry    *Registry
	data        DataService
	exporter    Exporter
	sink        analytics.Sink
	logger      Logger
	widgetParam string
	noViews     bool

	mu       sync.Mutex
	phase    Phase
	gen      uint64
	cancel   context.CancelFunc
	settled  chan struct{}
	isSettle bool
	guard    *auth.Guard
	session  *auth.Session
	visible  []WidgetDescriptor
	shared   *profile.Profile
	dataErr  error
	banner   error
	redirect string
	pending  string
	active   WidgetDescriptor
	viewed   bool

	nextID    int
	listeners map[int]func(Frame)
}

// NewPage builds an unmounted page.
func NewPage(provider *auth.Provider, nav auth.Navigator, registry *Registry, data DataService, opts ...PageOption) *Page {
	p := &Page{
		provider:    provider,
		nav:         nav,
		registry:    registry,
		data:        data,
		exporter:    export.NewService(),
		sink:        analytics.Noop(),
		logger:      defLogger{},
		widgetParam: "widget",
		phase:       PhaseUnauthenticated,
		listeners:   make(map[int]func(Frame)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Mount starts session resolution and the data fetch. The initial widget is
// the URL parameter when it names a visible widget, else the default.
func (p *Page) Mount(ctx context.Context) error {
	p.mu.Lock()
	if err := p.transition(PhaseLoading); err != nil {
		p.mu.Unlock()
		return err
	}

	pending := ""
	if p.nav != nil {
		pending = p.nav.Param(p.widgetParam)
	}

	gen := p.start(pending)
	p.viewed = false
	runCtx := p.runContext(ctx)
	frame := p.frame()
	p.mu.Unlock()

	p.notify(frame)
	go p.run(runCtx, gen, false)
	return nil
}

// Retry resolves the session again after an identity backend failure.
func (p *Page) Retry(ctx context.Context) error {
	p.mu.Lock()
	if p.phase != PhaseLoading {
		err := p.invalid("retry")
		p.mu.Unlock()
		return err
	}

	p.cancel()
	gen := p.start(p.pending)
	runCtx := p.runContext(ctx)
	p.mu.Unlock()

	go p.run(runCtx, gen, true)
	return nil
}

// start resets per mount state. Callers hold p.mu.
func (p *Page) start(pending string) uint64 {
	p.gen++
	p.settle()
	p.settled = make(chan struct{})
	p.isSettle = false
	p.guard = auth.NewGuard(p.provider, p.nav)
	p.pending = pending
	p.session = nil
	p.visible = nil
	p.shared = nil
	p.dataErr = nil
	p.banner = nil
	p.redirect = ""
	p.active = WidgetDescriptor{}
	return p.gen
}

func (p *Page) runContext(ctx context.Context) context.Context {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	return runCtx
}

func (p *Page) run(ctx context.Context, gen uint64, refresh bool) {
	var state auth.State
	if refresh {
		state = p.provider.Refresh(ctx)
	} else {
		state = p.provider.Init(ctx)
	}

	if ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	guard := p.guard
	p.mu.Unlock()

	session, ok := guard.RequireAuthentication()
	if !ok {
		p.update(gen, func() {
			if state.IsLoading {
				p.banner = state.LastError
				p.logger.Warn("session resolution failed, page stays loading", "error", state.LastError)
			} else {
				p.redirect = guard.Redirected()
			}
			p.settle()
		})
		return
	}

	visible := p.registry.Visible(ctx, session.Role)

	var first bool
	var initial string
	if !p.update(gen, func() {
		p.session = session
		p.visible = visible
		first = !p.viewed
		p.viewed = true
		initial = p.pending
	}) {
		return
	}

	if first && !p.noViews {
		desc, _ := p.registry.Resolve(ctx, initial, session.Role)
		p.record(ctx, analytics.Event{
			Type:      analytics.EventPageView,
			UserID:    session.UserID,
			SessionID: session.ID,
			Widget:    desc.ID,
		})
	}

	record, err := p.data.Fetch(ctx, session.UserID)
	if ctx.Err() != nil {
		return
	}

	p.update(gen, func() {
		if err != nil {
			p.dataErr = dataFetchError(err, session.UserID)
			p.logger.Error("page data fetch failed", "user", session.UserID, "error", err)
		} else {
			p.shared = record
		}

		desc, selErr := p.registry.Resolve(ctx, p.pending, session.Role)
		if selErr != nil && !IsInvalidWidgetSelection(selErr) {
			p.dataErr = selErr
			p.logger.Error("no widget to render", "user", session.UserID, "error", selErr)
			p.settle()
			return
		}
		if selErr != nil {
			p.logger.Debug("widget selection corrected", "error", selErr)
		}

		if err := p.transition(PhaseReady); err != nil {
			p.logger.Error("page transition failed", "error", err)
			return
		}
		p.active = desc
		p.pending = ""
		p.settle()
	})
}

// update applies mutate when gen is still current and notifies listeners.
// It reports whether the mutation was applied.
func (p *Page) update(gen uint64, mutate func()) bool {
	p.mu.Lock()
	if gen != p.gen || p.phase == PhaseUnauthenticated {
		p.mu.Unlock()
		return false
	}
	mutate()
	frame := p.frame()
	p.mu.Unlock()

	p.notify(frame)
	return true
}

// Select switches the active widget. While loading the selection is kept
// and applied when the data arrives. Unknown ids fall back to the default.
func (p *Page) Select(ctx context.Context, id string) error {
	p.mu.Lock()

	switch p.phase {
	case PhaseLoading:
		p.pending = id
		p.mu.Unlock()
		return nil
	case PhaseReady:
	default:
		err := p.invalid("select")
		p.mu.Unlock()
		return err
	}

	desc, err := p.registry.Resolve(ctx, id, p.session.Role)
	if err != nil && !IsInvalidWidgetSelection(err) {
		p.mu.Unlock()
		return err
	}
	if err != nil {
		p.logger.Debug("widget selection corrected", "error", err)
	}

	changed := desc.ID != p.active.ID
	_ = p.transition(PhaseReady)
	p.active = desc
	session := p.session
	frame := p.frame()
	p.mu.Unlock()

	if changed {
		p.notify(frame)
		p.record(ctx, analytics.Event{
			Type:      analytics.EventWidgetSelected,
			UserID:    session.UserID,
			SessionID: session.ID,
			Widget:    desc.ID,
		})
	}
	return nil
}

// Wait blocks until the current mount settled: ready, redirected or stuck
// on an identity backend failure. A Retry or remount while waiting moves the
// wait over to the new mount.
func (p *Page) Wait(ctx context.Context) (Frame, error) {
	p.mu.Lock()
	ch := p.settled
	p.mu.Unlock()

	if ch == nil {
		return p.Frame(), p.invalid("wait")
	}

	for {
		select {
		case <-ch:
		case <-ctx.Done():
			return p.Frame(), ctx.Err()
		}

		p.mu.Lock()
		next := p.settled
		p.mu.Unlock()

		if next == nil || next == ch {
			return p.Frame(), nil
		}
		ch = next
	}
}

// Frame returns the current snapshot.
func (p *Page) Frame() Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame()
}

// Subscribe registers fn for frame changes and returns a function that
// removes it. Unmount drops every listener.
func (p *Page) Subscribe(fn func(Frame)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Unmount cancels in-flight work. Late results are dropped.
func (p *Page) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase == PhaseUnauthenticated {
		return
	}

	_ = p.transition(PhaseUnauthenticated)
	p.gen++
	if p.cancel != nil {
		p.cancel()
	}
	p.settle()

	p.shared = nil
	p.session = nil
	p.visible = nil
	p.active = WidgetDescriptor{}
	p.listeners = make(map[int]func(Frame))
}

// RequestExport exports a copy of the current page data in format.
func (p *Page) RequestExport(ctx context.Context, format string) (*export.Artifact, error) {
	p.mu.Lock()
	if p.phase != PhaseReady {
		err := p.invalid("export")
		p.mu.Unlock()
		return nil, err
	}
	if p.shared == nil {
		p.mu.Unlock()
		return nil, export.ErrEmptySnapshot
	}

	req := export.Request{
		Format:      format,
		Profile:     p.shared.Clone(),
		Widget:      p.active.ID,
		RequestedBy: p.session.UserID,
		RequestedAt: time.Now(),
	}
	session := p.session
	p.mu.Unlock()

	artifact, err := p.exporter.RequestExport(ctx, req)

	evt := analytics.Event{
		Type:      analytics.EventExportRequested,
		UserID:    session.UserID,
		SessionID: session.ID,
		Widget:    req.Widget,
		Metadata:  map[string]any{"format": format},
	}
	if err != nil {
		evt.Type = analytics.EventExportFailed
		evt.Metadata["error"] = err.Error()
	} else {
		evt.Metadata["export_id"] = artifact.ID
	}
	p.record(ctx, evt)

	return artifact, err
}

func (p *Page) frame() Frame {
	f := Frame{
		Phase:      p.phase,
		Generation: p.gen,
		Banner:     p.banner,
		Redirect:   p.redirect,
		Widgets:    append([]WidgetDescriptor(nil), p.visible...),
	}

	if p.session != nil {
		f.User = &auth.Identity{
			ID:       p.session.UserID,
			Username: p.session.Username,
			Email:    p.session.Email,
			Role:     p.session.Role,
		}
	}

	if p.phase == PhaseReady {
		f.Region = &Region{
			Widget: p.active,
			Slot:   SlotFor(p.active),
			Data:   p.shared.Slice(p.active.Inputs...),
			Err:    p.dataErr,
		}
	} else if p.dataErr != nil && f.Banner == nil {
		f.Banner = p.dataErr
	}

	return f
}

func (p *Page) transition(to Phase) error {
	if _, ok := transitions[p.phase][to]; !ok {
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from": string(p.phase),
			"to":   string(to),
		})
	}
	p.phase = to
	return nil
}

func (p *Page) invalid(op string) *errors.Error {
	return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
		"from":      string(p.phase),
		"operation": op,
	})
}

func (p *Page) settle() {
	if p.settled != nil && !p.isSettle {
		close(p.settled)
		p.isSettle = true
	}
}

func (p *Page) notify(frame Frame) {
	p.mu.Lock()
	if frame.Generation != p.gen {
		p.mu.Unlock()
		return
	}
	listeners := make([]func(Frame), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(frame)
	}
}

func (p *Page) record(ctx context.Context, evt analytics.Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if err := p.sink.Record(context.WithoutCancel(ctx), evt); err != nil {
		p.logger.Error("failed to record activity", "event", evt.Type, "error", err)
	}
}
