package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

func TestPredicates(t *testing.T) {
	page := newFakePage()
	page.url = "https://shopee.co.id/"
	page.html = `<div class="shopee-search-empty-result-section">Hasil tidak ditemukan</div>
<button class="hKaCPY">Coba Lagi</button>`

	snap := NewSnapshot(page)

	assert.True(t, URLIs("https://shopee.co.id")(snap))
	assert.True(t, URLIs("https://shopee.co.id/")(snap))
	assert.False(t, URLIs("https://shopee.co.id/search")(snap))
	assert.True(t, URLContains("shopee")(snap))
	assert.True(t, Present(emptyResult, "")(snap))
	assert.True(t, Present("button.hKaCPY", "Coba")(snap))
	assert.False(t, Present("button.hKaCPY", "Laporkan")(snap))
	assert.False(t, Present("div.missing", "")(snap))
	assert.True(t, AnyOf(URLContains("nope"), Present(emptyResult, ""))(snap))
	assert.False(t, AnyOf()(snap))

	assert.Equal(t, 1, page.contentCalls, "snapshot parses the page once")
}

func TestURLPredicateSkipsContent(t *testing.T) {
	page := newFakePage()
	page.url = "https://shopee.co.id/verify/captcha"

	assert.True(t, challengePending(NewSnapshot(page)))
	assert.Zero(t, page.contentCalls)
}

func TestProbe(t *testing.T) {
	t.Run("matches later", func(t *testing.T) {
		page := newFakePage()
		page.urlSeq = []string{"about:blank", "about:blank", models.BaseURL}
		prober := NewProber(page, time.Millisecond)

		assert.True(t, prober.Probe(context.Background(), URLIs(models.BaseURL), time.Second))
	})

	t.Run("times out", func(t *testing.T) {
		prober := NewProber(newFakePage(), time.Millisecond)

		start := time.Now()
		assert.False(t, prober.Probe(context.Background(), URLContains("never"), 10*time.Millisecond))
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("zero timeout evaluates once", func(t *testing.T) {
		page := newFakePage()
		prober := NewProber(page, time.Millisecond)

		assert.False(t, prober.Probe(context.Background(), URLContains("never"), 0))
		assert.True(t, prober.Probe(context.Background(), URLIs("about:blank"), 0))
	})

	t.Run("cancelled", func(t *testing.T) {
		prober := NewProber(newFakePage(), time.Millisecond)
		assert.False(t, prober.Probe(cancelledContext(), URLContains("never"), time.Minute))
	})
}

func TestDetectorClassify(t *testing.T) {
	tests := []struct {
		name string
		url  string
		html string
		want PageState
	}{
		{name: "clear", url: "https://shopee.co.id/search?keyword=gamis", html: "<div>ok</div>", want: Clear},
		{name: "traffic error", url: "https://shopee.co.id/verify/traffic/error", want: ChallengeFailed},
		{name: "report button", url: models.BaseURL, html: `<button class="cHPMhq">Laporkan Permasalahan</button>`, want: ChallengeFailed},
		{name: "load error", url: models.BaseURL, html: `<div class="D4kY48">Maaf, terjadi kesalahan saat memuat halaman</div>`, want: ChallengeFailed},
		{name: "network problem", url: models.BaseURL, html: `<div class="uUcrOy">kami mendeteksi masalah dari koneksi jaringanmu</div>`, want: ChallengeFailed},
		{name: "retry button", url: models.BaseURL, html: `<button class="hKaCPY">Coba Lagi</button>`, want: ChallengeFailed},
		{name: "login route", url: "https://shopee.co.id/buyer/login?next=x", want: LoginRequired},
		{name: "login form", url: models.BaseURL, html: `<input type="text" class="Z7tNyT">`, want: LoginRequired},
		{name: "empty result", url: models.BaseURL, html: `<div class="shopee-search-empty-result-section"></div>`, want: EmptyResult},
		{name: "failure wins over pending", url: "https://shopee.co.id/verify/captcha", html: `<button class="hKaCPY">Coba Lagi</button>`, want: ChallengeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage()
			page.url = tt.url
			page.html = tt.html
			d := NewDetector(NewProber(page, time.Millisecond), testTiming(), testLogger())

			got, err := d.Classify(context.Background(), time.Second)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectorPendingChallenge(t *testing.T) {
	t.Run("caller timeout returns active", func(t *testing.T) {
		page := newFakePage()
		page.url = "https://shopee.co.id/verify/captcha?anti_bot_tracking_id=1"
		d := NewDetector(NewProber(page, time.Millisecond), testTiming(), testLogger())

		got, err := d.Classify(context.Background(), 5*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, ChallengeActive, got)
	})

	t.Run("ceiling returns failed", func(t *testing.T) {
		page := newFakePage()
		page.url = "https://shopee.co.id/verify/captcha"
		timing := testTiming()
		timing.ChallengeCeiling = 10 * time.Millisecond
		d := NewDetector(NewProber(page, time.Millisecond), timing, testLogger())

		got, err := d.Classify(context.Background(), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, ChallengeFailed, got)
	})

	t.Run("solved challenge clears", func(t *testing.T) {
		page := newFakePage()
		page.urlSeq = []string{
			"https://shopee.co.id/verify/captcha",
			"https://shopee.co.id/verify/captcha",
			"https://shopee.co.id/search?keyword=gamis",
		}
		d := NewDetector(NewProber(page, time.Millisecond), testTiming(), testLogger())

		got, err := d.Classify(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, Clear, got)
	})

	t.Run("cancelled", func(t *testing.T) {
		page := newFakePage()
		page.url = "https://shopee.co.id/verify/captcha"
		d := NewDetector(NewProber(page, time.Millisecond), testTiming(), testLogger())

		_, err := d.Classify(cancelledContext(), time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDetectorObserver(t *testing.T) {
	page := newFakePage()
	page.url = "https://shopee.co.id/verify/traffic/error"
	d := NewDetector(NewProber(page, time.Millisecond), testTiming(), testLogger())

	var seen []PageState
	d.OnState(func(s PageState) { seen = append(seen, s) })

	_, err := d.Classify(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []PageState{ChallengeFailed}, seen)
	assert.Equal(t, "challenge_failed", seen[0].String())
}
