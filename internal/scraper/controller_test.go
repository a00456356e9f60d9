package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/marketplace-harvester/internal/models"
	"github.com/maltedev/marketplace-harvester/internal/parser"
	"github.com/maltedev/marketplace-harvester/internal/ratelimit"
	"github.com/maltedev/marketplace-harvester/internal/storage"
)

const targetURL = "https://shopee.co.id/search?keyword=gamis"

// pageScript is how the fake site answers a navigation to one result page.
type pageScript struct {
	listing []listingEntry
	html    string
	landOn  string
}

type controllerFixture struct {
	page       *fakePage
	captures   chan models.CapturedPayload
	store      *storage.MemoryStore
	controller *Controller
	details    map[string]int64
	scripts    map[int]pageScript
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	f := &controllerFixture{
		page:     newFakePage(),
		captures: make(chan models.CapturedPayload, 64),
		store:    storage.NewMemoryStore(),
		details:  make(map[string]int64),
		scripts:  make(map[int]pageScript),
	}

	f.page.onGoto = func(p *fakePage, url string) {
		s := f.scripts[PageFromURL(url)]
		p.html = s.html
		if s.landOn != "" {
			p.url = s.landOn
		}
		if len(s.listing) > 0 {
			f.captures <- listingPayloadFor(PageFromURL(url), s.listing...)
		}
	}
	f.page.onClick = func(p *fakePage, selector, text string) {
		if selector != tileSelector {
			return
		}
		if id, ok := f.details[text]; ok {
			f.captures <- detailPayload(id, text)
		}
		p.visit(productURL(text))
	}

	timing := testTiming()
	prober := NewProber(f.page, 0)
	f.controller = NewController(ControllerDeps{
		Page:        f.page,
		Captures:    f.captures,
		Navigator:   NewNavigator(f.page, prober, timing, testLogger()),
		Detector:    NewDetector(prober, timing, testLogger()),
		Interceptor: NewInterceptor(parser.NewShopeeParser(), f.store, nil, nil, testLogger()),
		Pacer:       ratelimit.NewAdaptiveRateLimiter(0, 0, 0),
		Timing:      timing,
		Logger:      testLogger(),
	})
	return f
}

// product registers a listing entry whose tile is visible and whose click
// yields a detail payload.
func (f *controllerFixture) product(id int64, name string) listingEntry {
	f.page.tiles[name] = true
	f.details[name] = id
	return goodItem(id, name)
}

func (f *controllerFixture) run(pageCap int) *Run {
	filter := models.DefaultFilterSpec()
	filter.MaxPageScrape = pageCap
	return NewRun(models.NewTarget(targetURL), "tokoku", filter)
}

func TestControllerCapturesThenExhausts(t *testing.T) {
	f := newControllerFixture(t)
	f.scripts[0] = pageScript{listing: []listingEntry{f.product(1, "Gamis A"), f.product(2, "Gamis B")}}
	f.scripts[1] = pageScript{html: `<div class="shopee-search-empty-result-section"></div>`}

	out := f.controller.Execute(context.Background(), f.run(5), 0)

	assert.True(t, out.Finished)
	assert.Equal(t, ClassNone, out.Class)
	assert.NoError(t, out.Err)
	assert.Equal(t, 2, out.Captured)
	assert.Equal(t, 1, out.LastPage)
	assert.Equal(t, 1, PageFromURL(out.LastURL))
	assert.Equal(t, []string{"Gamis A", "Gamis B"}, f.page.clicks)
	assert.Equal(t, 2, f.page.backs)
	assert.Equal(t, 2, f.store.Len())
}

func TestControllerEmptyMatchExhausts(t *testing.T) {
	f := newControllerFixture(t)
	rejected := f.product(1, "Gamis A")
	rejected.Sold = 10
	f.scripts[0] = pageScript{listing: []listingEntry{rejected}}

	out := f.controller.Execute(context.Background(), f.run(5), 0)

	assert.True(t, out.Finished)
	assert.Zero(t, out.Captured)
	assert.Equal(t, ClassNone, out.Class)
	assert.NoError(t, out.Err)
	assert.Empty(t, f.page.clicks)
	assert.Len(t, f.page.gotos, 1)
}

func TestControllerResumesFromStartPage(t *testing.T) {
	f := newControllerFixture(t)
	f.scripts[3] = pageScript{listing: []listingEntry{f.product(7, "Gamis Resume")}}
	f.scripts[4] = pageScript{html: `<div class="shopee-search-empty-result-section"></div>`}

	out := f.controller.Execute(context.Background(), f.run(9), 3)

	require.NotEmpty(t, f.page.gotos)
	assert.Equal(t, 3, PageFromURL(f.page.gotos[0].URL))
	assert.Equal(t, 3, out.StartPage)
	assert.Equal(t, 1, out.Captured)
	assert.True(t, out.Finished)
	assert.Equal(t, 9, out.ResumePage(9))
}

func TestControllerStartAtCap(t *testing.T) {
	f := newControllerFixture(t)

	out := f.controller.Execute(context.Background(), f.run(3), 3)

	assert.True(t, out.Finished)
	assert.Empty(t, f.page.gotos)
}

func TestControllerRunEndingStates(t *testing.T) {
	tests := []struct {
		name   string
		script pageScript
		class  ErrorClass
		is     error
	}{
		{
			name:   "empty first page is an invalid target",
			script: pageScript{html: `<div class="shopee-search-empty-result-section"></div>`},
			class:  ClassInvalidURL,
			is:     ErrInvalidTarget,
		},
		{
			name:   "traffic error",
			script: pageScript{landOn: "https://shopee.co.id/verify/traffic/error"},
			class:  ClassCaptcha,
			is:     ErrChallengeFailure,
		},
		{
			name:   "failure banner",
			script: pageScript{html: `<button class="cHPMhq">Laporkan Permasalahan</button>`},
			class:  ClassCaptcha,
			is:     ErrChallengeFailure,
		},
		{
			name:   "logged out",
			script: pageScript{landOn: "https://shopee.co.id/buyer/login?next=x"},
			class:  ClassLoginFailed,
			is:     ErrAuthFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newControllerFixture(t)
			f.scripts[0] = tt.script

			out := f.controller.Execute(context.Background(), f.run(5), 0)

			assert.False(t, out.Finished)
			assert.Equal(t, tt.class, out.Class)
			assert.ErrorIs(t, out.Err, tt.is)
			assert.NotEmpty(t, out.Error)
			assert.Zero(t, out.LastPage)

			var runErr *RunError
			require.True(t, errors.As(out.Err, &runErr))
			assert.Equal(t, 0, runErr.Page)
		})
	}
}

func TestControllerResultsTimeoutMovesOn(t *testing.T) {
	f := newControllerFixture(t)
	f.scripts[1] = pageScript{listing: []listingEntry{f.product(1, "Gamis A")}}
	f.scripts[2] = pageScript{html: `<div class="shopee-search-empty-result-section"></div>`}

	out := f.controller.Execute(context.Background(), f.run(5), 0)

	assert.True(t, out.Finished)
	assert.Equal(t, 1, out.Anomalies)
	assert.Equal(t, 1, out.Captured)
	assert.Equal(t, ClassNone, out.Class)
}

func TestControllerTransportFailures(t *testing.T) {
	f := newControllerFixture(t)
	f.page.gotoErr = errors.New("net::ERR_TIMED_OUT")

	out := f.controller.Execute(context.Background(), f.run(2), 0)

	assert.Equal(t, 2, out.Anomalies)
	assert.Equal(t, 1, out.LastPage)
	assert.NoError(t, out.Err)
}

func TestControllerStopsWhenNothingCaptured(t *testing.T) {
	f := newControllerFixture(t)
	f.page.tiles["Gamis Hilang"] = true
	f.scripts[0] = pageScript{listing: []listingEntry{goodItem(1, "Gamis Hilang")}}

	out := f.controller.Execute(context.Background(), f.run(5), 0)

	assert.False(t, out.Finished)
	assert.Equal(t, ClassNone, out.Class)
	assert.Zero(t, out.Captured)
	assert.Equal(t, []string{"Gamis Hilang"}, f.page.clicks)
	assert.Len(t, f.page.gotos, 1)
}

func TestControllerDuplicatesOnly(t *testing.T) {
	f := newControllerFixture(t)
	f.scripts[0] = pageScript{listing: []listingEntry{f.product(1, "Gamis A")}}

	rec, err := parser.NewShopeeParser().ParseDetail(detailPayload(1, "Gamis A").Body, "tes_scrape")
	require.NoError(t, err)
	_, err = f.store.Insert(context.Background(), rec)
	require.NoError(t, err)

	out := f.controller.Execute(context.Background(), f.run(5), 0)

	assert.Zero(t, out.Captured)
	assert.Equal(t, 1, out.Duplicates)
	assert.False(t, out.Finished)
	assert.Equal(t, 1, f.store.Len())
}

// challengeOnFirstClick sends the first click on name to a verification
// route that never clears.
func (f *controllerFixture) challengeOnFirstClick(name string) {
	click := f.page.onClick
	hit := false
	f.page.onClick = func(p *fakePage, selector, text string) {
		click(p, selector, text)
		if text == name && !hit {
			hit = true
			p.visit("https://shopee.co.id/verify/captcha?anti_bot=1")
		}
	}
}

func TestControllerChallengeMidClick(t *testing.T) {
	f := newControllerFixture(t)
	f.scripts[0] = pageScript{listing: []listingEntry{f.product(1, "Gamis A"), f.product(2, "Gamis B")}}
	f.scripts[1] = pageScript{html: `<div class="shopee-search-empty-result-section"></div>`}
	f.challengeOnFirstClick("Gamis A")

	out := f.controller.Execute(context.Background(), f.run(5), 0)

	assert.Equal(t, []string{"Gamis A"}, f.page.clicks)
	assert.Equal(t, 1, out.Captured)
	assert.False(t, out.Finished)
	assert.Equal(t, ClassCaptcha, out.Class)
	assert.True(t, out.Class.Retryable())
	assert.ErrorIs(t, out.Err, ErrChallengeFailure)
	assert.Zero(t, out.LastPage)
	assert.Len(t, f.page.gotos, 1, "no navigation while the challenge is up")
}

func TestControllerIgnoresStaleListing(t *testing.T) {
	f := newControllerFixture(t)
	f.scripts[0] = pageScript{listing: []listingEntry{f.product(1, "Gamis A")}}
	f.scripts[1] = pageScript{listing: []listingEntry{f.product(2, "Gamis B")}}
	f.scripts[2] = pageScript{html: `<div class="shopee-search-empty-result-section"></div>`}

	// The page 0 listing re-fired by the last GoBack lands while page 1 loads.
	stale := listingPayloadFor(0, f.product(3, "Gamis Lama"))
	serve := f.page.onGoto
	f.page.onGoto = func(p *fakePage, url string) {
		if PageFromURL(url) == 1 {
			f.captures <- stale
		}
		serve(p, url)
	}

	out := f.controller.Execute(context.Background(), f.run(5), 0)

	assert.Equal(t, []string{"Gamis A", "Gamis B"}, f.page.clicks)
	assert.Equal(t, 2, out.Captured)
	assert.True(t, out.Finished)
	assert.Equal(t, 2, out.LastPage)
}

func TestControllerRenavigatesFromHome(t *testing.T) {
	f := newControllerFixture(t)
	f.scripts[0] = pageScript{listing: []listingEntry{f.product(1, "Gamis A")}}
	f.scripts[1] = pageScript{html: `<div class="shopee-search-empty-result-section"></div>`}

	serve := f.page.onGoto
	bounced := false
	f.page.onGoto = func(p *fakePage, url string) {
		if !bounced {
			bounced = true
			p.url = models.BaseURL
			return
		}
		serve(p, url)
	}

	out := f.controller.Execute(context.Background(), f.run(5), 0)

	assert.Equal(t, 1, out.Captured)
	assert.True(t, out.Finished)
	assert.Len(t, f.page.gotos, 3)
}

func TestControllerCancelled(t *testing.T) {
	f := newControllerFixture(t)

	out := f.controller.Execute(cancelledContext(), f.run(5), 0)

	assert.False(t, out.Finished)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, ClassNone, out.Class)
}

func TestClickTileScrollsIntoView(t *testing.T) {
	f := newControllerFixture(t)
	f.page.visit(targetURL)
	f.page.revealAt["Gamis Jauh"] = 1000

	err := f.controller.clickTile(context.Background(), "Gamis Jauh", targetURL)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 500, 1000}, f.page.scrolls)
	assert.Equal(t, []string{"Gamis Jauh"}, f.page.clicks)
	assert.Zero(t, f.page.backs)
}

func TestClickTileReturnsToListing(t *testing.T) {
	f := newControllerFixture(t)
	f.page.visit(targetURL)
	f.page.visit(productURL("Gamis Lain"))

	err := f.controller.clickTile(context.Background(), "Gamis Tidak Ada", targetURL)
	assert.Error(t, err)
	assert.Equal(t, 1, f.page.backs)
	assert.Len(t, f.page.scrolls, scrollLimit/scrollStep)
}

func TestTileText(t *testing.T) {
	assert.Equal(t, "Gamis A", tileText("Gamis A"))
	assert.Equal(t, "Gamis Syari Premium Jumbo Busu", tileText("Gamis Syari Premium Jumbo Busui Friendly"))
	assert.Equal(t, "Gamis Syari Premium Jumbo Xyz", tileText("Gamis Syari Premium Jumbo Xyz Abc"))
	assert.Equal(t, "Gamis Ukuran Besar Katun Jepan", tileText("Gamis Ukuran Besar Katun Jepang"))
}
