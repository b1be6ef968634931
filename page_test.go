package dashboard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-dashboard"
	"github.com/goliatone/go-dashboard/analytics"
	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/export"
	"github.com/goliatone/go-dashboard/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type pageFixture struct {
	backend *memBackend
	nav     *navigator
	data    *dataService
	sink    *memorySink
	session *auth.Session
	page    *dashboard.Page

	mu     sync.Mutex
	frames []dashboard.Frame
}

func newPageFixture(t *testing.T, token string, params map[string]string) *pageFixture {
	t.Helper()

	f := &pageFixture{
		backend: newMemBackend(),
		nav:     newNavigator(params),
		data:    newDataService(),
		sink:    &memorySink{},
	}

	if token != "" {
		f.session = f.backend.add(token, auth.RoleMember)
		f.data.profiles[f.session.UserID] = sampleProfile(f.session.UserID)
	}

	provider := auth.NewProvider(f.backend, token)
	t.Cleanup(provider.Close)

	f.page = dashboard.NewPage(provider, f.nav, dashboard.MustRegistry(testDescriptors()), f.data,
		dashboard.WithAnalytics(f.sink),
	)
	f.page.Subscribe(func(frame dashboard.Frame) {
		f.mu.Lock()
		f.frames = append(f.frames, frame)
		f.mu.Unlock()
	})
	t.Cleanup(f.page.Unmount)

	return f
}

func (f *pageFixture) observed() []dashboard.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dashboard.Frame(nil), f.frames...)
}

func (f *pageFixture) mountAndWait(t *testing.T) dashboard.Frame {
	t.Helper()
	require.NoError(t, f.page.Mount(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frame, err := f.page.Wait(ctx)
	require.NoError(t, err)
	return frame
}

func TestPage_WidgetParamSelectsWidget(t *testing.T) {
	f := newPageFixture(t, "tok", map[string]string{"widget": "personas"})

	frame := f.mountAndWait(t)

	assert.Equal(t, dashboard.PhaseReady, frame.Phase)
	assert.Equal(t, "personas", frame.ActiveWidget())
	require.Len(t, frame.Regions(), 1)
	assert.Equal(t, dashboard.SlotSecondary, frame.Region.Slot)
	assert.Contains(t, frame.Region.Data, "personas")
	assert.NoError(t, frame.Region.Err)

	require.NotNil(t, frame.User)
	assert.Equal(t, f.session.UserID, frame.User.ID)
	assert.Empty(t, f.nav.all())
	assert.Equal(t, 1, f.sink.count(analytics.EventPageView))
}

func TestPage_EveryReadyFrameHasOneRegion(t *testing.T) {
	f := newPageFixture(t, "tok", nil)
	f.mountAndWait(t)

	require.NoError(t, f.page.Select(context.Background(), "overview"))
	require.NoError(t, f.page.Select(context.Background(), "personas"))

	frames := f.observed()
	require.NotEmpty(t, frames)
	for _, frame := range frames {
		if frame.Phase == dashboard.PhaseReady {
			assert.Len(t, frame.Regions(), 1)
		} else {
			assert.Empty(t, frame.Regions())
		}
	}
}

func TestPage_NoSessionRedirectsOnce(t *testing.T) {
	f := newPageFixture(t, "", map[string]string{"widget": "personas"})

	frame := f.mountAndWait(t)

	assert.Equal(t, dashboard.PhaseLoading, frame.Phase)
	assert.Equal(t, "/login", frame.Redirect)
	assert.Empty(t, frame.Regions())
	assert.Equal(t, []string{"/login"}, f.nav.all())

	for _, observed := range f.observed() {
		assert.Empty(t, observed.Regions())
	}

	assert.Zero(t, f.data.callCount())
	assert.Zero(t, f.sink.count(analytics.EventPageView))
}

func TestPage_UnknownWidgetFallsBackToDefault(t *testing.T) {
	for _, id := range []string{"", "does-not-exist", "translator", "admin-notes"} {
		t.Run(id, func(t *testing.T) {
			f := newPageFixture(t, "tok", map[string]string{"widget": id})
			frame := f.mountAndWait(t)

			assert.Equal(t, dashboard.PhaseReady, frame.Phase)
			assert.Equal(t, "assessment", frame.ActiveWidget())
			assert.Len(t, frame.Regions(), 1)
		})
	}
}

func TestPage_SelectWhileLoadingAppliesAfterFetch(t *testing.T) {
	f := newPageFixture(t, "tok", nil)
	release := f.data.hold()

	require.NoError(t, f.page.Mount(context.Background()))
	<-f.data.started

	require.NoError(t, f.page.Select(context.Background(), "personas"))

	frame := f.page.Frame()
	assert.Equal(t, dashboard.PhaseLoading, frame.Phase)
	assert.Empty(t, frame.Regions())

	release()

	frame, err := f.page.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "personas", frame.ActiveWidget())
}

func TestPage_SelectDoesNotRefetch(t *testing.T) {
	f := newPageFixture(t, "tok", nil)
	f.mountAndWait(t)

	require.NoError(t, f.page.Select(context.Background(), "personas"))
	require.NoError(t, f.page.Select(context.Background(), "nope"))

	frame := f.page.Frame()
	assert.Equal(t, "assessment", frame.ActiveWidget())
	assert.Equal(t, 1, f.data.callCount())
	assert.Equal(t, 1, f.sink.count(analytics.EventPageView))
	assert.Equal(t, 2, f.sink.count(analytics.EventWidgetSelected))
}

func TestPage_UnmountDuringFetchDropsResult(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newPageFixture(t, "tok", nil)
	f.data.honorCtx = false
	release := f.data.hold()

	require.NoError(t, f.page.Mount(context.Background()))
	<-f.data.started

	before := len(f.observed())
	f.page.Unmount()

	release()
	<-f.data.returned

	frame := f.page.Frame()
	assert.Equal(t, dashboard.PhaseUnauthenticated, frame.Phase)
	assert.Empty(t, frame.Regions())
	assert.Nil(t, frame.User)
	assert.Len(t, f.observed(), before)

	_, err := f.page.Wait(context.Background())
	assert.NoError(t, err)
}

func TestPage_UnmountCancelsFetch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newPageFixture(t, "tok", nil)
	f.data.hold()

	require.NoError(t, f.page.Mount(context.Background()))
	<-f.data.started

	f.page.Unmount()
	<-f.data.returned

	assert.Equal(t, dashboard.PhaseUnauthenticated, f.page.Frame().Phase)
}

func TestPage_BackendUnavailableKeepsLoading(t *testing.T) {
	f := newPageFixture(t, "tok", nil)
	f.backend.fail(errors.New("connection refused"))

	frame := f.mountAndWait(t)

	assert.Equal(t, dashboard.PhaseLoading, frame.Phase)
	require.Error(t, frame.Banner)
	assert.True(t, auth.IsAuthResolutionError(frame.Banner))
	assert.Empty(t, frame.Redirect)
	assert.Empty(t, f.nav.all())
	assert.Empty(t, frame.Regions())

	f.backend.fail(nil)
	require.NoError(t, f.page.Retry(context.Background()))

	frame, err := f.page.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dashboard.PhaseReady, frame.Phase)
	assert.NoError(t, frame.Banner)
	assert.Equal(t, 1, f.sink.count(analytics.EventPageView))
}

func TestPage_RetryMidFetchReleasesWaiters(t *testing.T) {
	f := newPageFixture(t, "tok", nil)
	release := f.data.hold()

	require.NoError(t, f.page.Mount(context.Background()))
	<-f.data.started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	waited := make(chan dashboard.Frame, 1)
	go func() {
		frame, _ := f.page.Wait(ctx)
		waited <- frame
	}()

	previous := dashboard.PageSettled(f.page)
	require.NoError(t, f.page.Retry(context.Background()))

	select {
	case <-previous:
	default:
		t.Fatal("retry left the previous mount unsettled")
	}

	release()

	select {
	case frame := <-waited:
		assert.Equal(t, dashboard.PhaseReady, frame.Phase)
	case <-ctx.Done():
		t.Fatal("wait started before retry never returned")
	}
}

func TestPage_DataFetchErrorRendersEmptyWidget(t *testing.T) {
	f := newPageFixture(t, "tok", map[string]string{"widget": "overview"})
	f.data.err = errors.New("upstream timeout")

	frame := f.mountAndWait(t)

	assert.Equal(t, dashboard.PhaseReady, frame.Phase)
	require.Len(t, frame.Regions(), 1)
	assert.Equal(t, "overview", frame.ActiveWidget())
	assert.True(t, dashboard.IsDataFetchError(frame.Region.Err))
	assert.Empty(t, frame.Region.Data)

	_, err := f.page.RequestExport(context.Background(), "pdf")
	assert.ErrorIs(t, err, export.ErrEmptySnapshot)
}

func TestPage_InvalidTransitions(t *testing.T) {
	f := newPageFixture(t, "tok", nil)

	assert.Error(t, f.page.Select(context.Background(), "overview"))
	_, err := f.page.Wait(context.Background())
	assert.Error(t, err)
	_, err = f.page.RequestExport(context.Background(), "pdf")
	assert.Error(t, err)

	f.mountAndWait(t)
	assert.Error(t, f.page.Mount(context.Background()))
	assert.Error(t, f.page.Retry(context.Background()))
}

func TestPage_RemountFiresPageViewAgain(t *testing.T) {
	f := newPageFixture(t, "tok", nil)
	f.mountAndWait(t)
	f.page.Unmount()
	f.mountAndWait(t)

	assert.Equal(t, 2, f.sink.count(analytics.EventPageView))
	assert.Equal(t, 2, f.data.callCount())
}

func TestPage_RequestExport(t *testing.T) {
	f := newPageFixture(t, "tok", map[string]string{"widget": "overview"})
	f.mountAndWait(t)

	artifact, err := f.page.RequestExport(context.Background(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, export.FormatPDF, artifact.Format)
	assert.NotEmpty(t, artifact.Body)
	assert.Contains(t, artifact.Filename, "acme-analytics-overview")

	artifact, err = f.page.RequestExport(context.Background(), "xlsx")
	assert.Nil(t, artifact)
	require.Error(t, err)
	assert.True(t, export.IsUnsupportedFormat(err))

	assert.Equal(t, 1, f.sink.count(analytics.EventExportRequested))
	assert.Equal(t, 1, f.sink.count(analytics.EventExportFailed))
}

type capturingExporter struct {
	req export.Request
}

func (c *capturingExporter) RequestExport(_ context.Context, req export.Request) (*export.Artifact, error) {
	c.req = req
	return &export.Artifact{ID: "x"}, nil
}

func TestPage_ExportGetsSnapshot(t *testing.T) {
	exporter := &capturingExporter{}
	backend := newMemBackend()
	session := backend.add("tok", auth.RoleMember)
	data := newDataService()
	data.profiles[session.UserID] = sampleProfile(session.UserID)

	provider := auth.NewProvider(backend, "tok")
	t.Cleanup(provider.Close)

	page := dashboard.NewPage(provider, newNavigator(nil), dashboard.MustRegistry(testDescriptors()), data,
		dashboard.WithExporter(exporter),
	)
	t.Cleanup(page.Unmount)
	require.NoError(t, page.Mount(context.Background()))
	_, err := page.Wait(context.Background())
	require.NoError(t, err)

	_, err = page.RequestExport(context.Background(), "csv")
	require.NoError(t, err)

	exporter.req.Profile.CompanyName = "mutated"
	exporter.req.Profile.Personas[0].Name = "mutated"

	require.NoError(t, page.Select(context.Background(), "personas"))
	frame := page.Frame()
	personas := frame.Region.Data["personas"].([]profile.Persona)
	assert.Equal(t, "Ops Olivia", personas[0].Name)
	assert.Equal(t, session.UserID, exporter.req.RequestedBy)
	assert.Equal(t, "assessment", exporter.req.Widget)
}

func TestPage_SignOutElsewhereDoesNotLeakAfterUnmount(t *testing.T) {
	f := newPageFixture(t, "tok", nil)
	f.mountAndWait(t)
	f.page.Unmount()

	before := len(f.observed())
	require.NoError(t, f.backend.SignOut(context.Background(), "tok"))
	assert.Len(t, f.observed(), before)
}
