package scraper

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/marketplace-harvester/internal/metrics"
	"github.com/maltedev/marketplace-harvester/internal/models"
	"github.com/maltedev/marketplace-harvester/internal/parser"
	"github.com/maltedev/marketplace-harvester/internal/session"
	"github.com/maltedev/marketplace-harvester/internal/storage"
)

type harvesterFixture struct {
	sessions   *session.Store
	browser    *fakeSession
	launchedUA string
	metrics    *metrics.Metrics
	harvester  *Harvester
}

func newHarvesterFixture(t *testing.T, launchErr error) *harvesterFixture {
	t.Helper()

	sessions, err := session.NewStore(t.TempDir())
	require.NoError(t, err)

	f := &harvesterFixture{sessions: sessions, metrics: metrics.New()}
	f.browser = newFakeSession(newFakePage(), "")

	filter := models.DefaultFilterSpec()
	filter.MaxPageScrape = 3

	f.harvester = NewHarvester(HarvesterConfig{
		Launch: func(ua string) (BrowserSession, error) {
			f.launchedUA = ua
			if launchErr != nil {
				return nil, launchErr
			}
			f.browser.userAgent = ua
			return f.browser, nil
		},
		Sessions:   sessions,
		UserAgents: []string{"Mozilla/5.0 test"},
		Parser:     parser.NewShopeeParser(),
		Store:      storage.NewMemoryStore(),
		Filter:     filter,
		Timing:     testTiming(),
		Metrics:    f.metrics,
		Logger:     testLogger(),
	})
	return f
}

func TestHarvesterAttemptRestoresSession(t *testing.T) {
	f := newHarvesterFixture(t, nil)
	require.NoError(t, f.sessions.Save(testCred.Identity, &session.Session{
		Cookies:   []*http.Cookie{{Name: "SPC_EC", Value: "old", Domain: ".shopee.co.id", Path: "/"}},
		UserAgent: "Mozilla/5.0 stored",
	}))

	rejected := goodItem(1, "Gamis A")
	rejected.Stock = 1
	page := f.browser.fakePage
	page.html = accountMenuHTML
	page.onGoto = func(p *fakePage, url string) {
		if url != loginURL {
			f.browser.captures <- listingPayload(rejected)
		}
	}
	f.browser.cookies = []*http.Cookie{{
		Name:    "SPC_EC",
		Value:   "fresh",
		Domain:  ".shopee.co.id",
		Path:    "/",
		Expires: time.Now().Add(24 * time.Hour),
	}}

	out := f.harvester.Attempt(context.Background(), models.NewTarget(targetURL), testCred, 0)

	assert.True(t, out.Finished)
	assert.Equal(t, ClassNone, out.Class)
	assert.Equal(t, testCred.Identity, out.Identity)
	assert.Equal(t, "Mozilla/5.0 stored", f.launchedUA)
	require.Len(t, f.browser.added, 1)
	assert.Equal(t, "old", f.browser.added[0].Value)
	assert.True(t, f.browser.closed)

	saved, err := f.sessions.Load(testCred.Identity)
	require.NoError(t, err)
	require.Len(t, saved.Cookies, 1)
	assert.Equal(t, "fresh", saved.Cookies[0].Value)
	assert.Equal(t, "Mozilla/5.0 stored", saved.UserAgent)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("none")))
}

func TestHarvesterAttemptLoginFailure(t *testing.T) {
	f := newHarvesterFixture(t, nil)

	out := f.harvester.Attempt(context.Background(), models.NewTarget("gamis"), testCred, 2)

	assert.Equal(t, ClassLoginFailed, out.Class)
	assert.ErrorIs(t, out.Err, ErrAuthFailure)
	assert.Equal(t, 2, out.ResumePage(9))
	assert.Equal(t, "Mozilla/5.0 test", f.launchedUA)
	assert.Empty(t, f.browser.added)
	assert.True(t, f.browser.closed)

	_, err := f.sessions.Load(testCred.Identity)
	assert.NoError(t, err, "session saved even when login fails")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("login-failed")))
}

func TestHarvesterAttemptLaunchFailure(t *testing.T) {
	f := newHarvesterFixture(t, errors.New("playwright not installed"))

	out := f.harvester.Attempt(context.Background(), models.NewTarget("gamis"), testCred, 0)

	assert.Equal(t, ClassTransport, out.Class)
	assert.ErrorIs(t, out.Err, ErrTransportAnomaly)
	assert.False(t, f.browser.closed)
}
