package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

var errNotVisible = errors.New("element not visible")

type navigation struct {
	URL     string
	Referer string
}

// fakePage is an in-memory Page. Hooks let a test script how the site reacts
// to navigation, clicks and key presses.
type fakePage struct {
	url   string
	html  string
	stack []string

	// urlSeq overrides url: each URL() call consumes the next entry, the
	// last one repeats.
	urlSeq   []string
	urlCalls int

	contentCalls int
	gotos        []navigation
	clicks       []string
	fills        map[string]string
	typed        []string
	pressed      []string
	backs        int
	scrolls      []int

	tiles    map[string]bool
	revealAt map[string]int

	gotoErr error
	onGoto  func(f *fakePage, url string)
	onClick func(f *fakePage, selector, text string)
	onPress func(f *fakePage, key string)
}

func newFakePage() *fakePage {
	return &fakePage{
		url:      "about:blank",
		fills:    make(map[string]string),
		tiles:    make(map[string]bool),
		revealAt: make(map[string]int),
	}
}

func (f *fakePage) visit(url string) {
	f.url = url
	f.stack = append(f.stack, url)
}

func (f *fakePage) URL() string {
	if len(f.urlSeq) > 0 {
		i := f.urlCalls
		if i >= len(f.urlSeq) {
			i = len(f.urlSeq) - 1
		}
		f.urlCalls++
		return f.urlSeq[i]
	}
	return f.url
}

func (f *fakePage) Content() (string, error) {
	f.contentCalls++
	return f.html, nil
}

func (f *fakePage) Goto(url, referer string) error {
	f.gotos = append(f.gotos, navigation{URL: url, Referer: referer})
	if f.gotoErr != nil {
		return f.gotoErr
	}
	f.visit(url)
	if f.onGoto != nil {
		f.onGoto(f, url)
	}
	return nil
}

func (f *fakePage) Reload() error {
	return nil
}

func (f *fakePage) GoBack() error {
	f.backs++
	if len(f.stack) > 1 {
		f.stack = f.stack[:len(f.stack)-1]
		f.url = f.stack[len(f.stack)-1]
	}
	return nil
}

func (f *fakePage) Reveal(selector, hasText string, _ time.Duration) error {
	if selector == tileSelector && !f.tiles[hasText] {
		return errNotVisible
	}
	return nil
}

func (f *fakePage) Click(selector, hasText string, _ time.Duration) error {
	if selector == tileSelector && !f.tiles[hasText] {
		return errNotVisible
	}
	if hasText != "" {
		f.clicks = append(f.clicks, hasText)
	} else {
		f.clicks = append(f.clicks, selector)
	}
	if f.onClick != nil {
		f.onClick(f, selector, hasText)
	}
	return nil
}

func (f *fakePage) Fill(selector, value string, _ time.Duration) error {
	f.fills[selector] = value
	return nil
}

func (f *fakePage) Type(text string) error {
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakePage) Press(key string) error {
	f.pressed = append(f.pressed, key)
	if f.onPress != nil {
		f.onPress(f, key)
	}
	return nil
}

func (f *fakePage) ScrollTo(y int) error {
	f.scrolls = append(f.scrolls, y)
	for text, at := range f.revealAt {
		if y >= at {
			f.tiles[text] = true
		}
	}
	return nil
}

// fakeSession is a BrowserSession over a fakePage.
type fakeSession struct {
	*fakePage
	captures  chan models.CapturedPayload
	cookies   []*http.Cookie
	added     []*http.Cookie
	userAgent string
	closed    bool
}

func newFakeSession(page *fakePage, ua string) *fakeSession {
	return &fakeSession{
		fakePage:  page,
		captures:  make(chan models.CapturedPayload, 64),
		userAgent: ua,
	}
}

func (s *fakeSession) Captures() <-chan models.CapturedPayload {
	return s.captures
}

func (s *fakeSession) AddCookies(cookies []*http.Cookie) error {
	s.added = append(s.added, cookies...)
	return nil
}

func (s *fakeSession) Cookies() ([]*http.Cookie, error) {
	return s.cookies, nil
}

func (s *fakeSession) UserAgent() string {
	return s.userAgent
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTiming() Timing {
	return Timing{
		PollInterval:        time.Millisecond,
		PredicateTimeout:    time.Millisecond,
		ChallengeCeiling:    200 * time.Millisecond,
		ResultsTimeout:      30 * time.Millisecond,
		SettleDelay:         0,
		SearchInputTimeout:  5 * time.Millisecond,
		AccountProbe:        2 * time.Millisecond,
		LoginFormProbe:      2 * time.Millisecond,
		LoginSubmitDelay:    0,
		ClickSettle:         3 * time.Millisecond,
		TileLocateTimeout:   time.Millisecond,
		TileScrollProbe:     time.Millisecond,
		TileFallbackTimeout: time.Millisecond,
		MaxLoginAttempts:    3,
	}
}

const listingURL = "https://shopee.co.id/api/v4/search/search_items?by=relevancy&keyword=gamis&limit=60&newest=0&scenario=PAGE_GLOBAL_SEARCH"

type listingEntry struct {
	ID     int64
	Name   string
	Price  int
	Sold   int
	Stock  int
	Rating float64
}

func goodItem(id int64, name string) listingEntry {
	return listingEntry{ID: id, Name: name, Price: 50000, Sold: 100, Stock: 200, Rating: 4.8}
}

func listingPayload(entries ...listingEntry) models.CapturedPayload {
	return listingPayloadFor(0, entries...)
}

// listingPayloadFor answers the search_items request of result page.
func listingPayloadFor(page int, entries ...listingEntry) models.CapturedPayload {
	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, map[string]any{
			"item_basic": map[string]any{
				"itemid":      e.ID,
				"shopid":      77,
				"name":        e.Name,
				"price_min":   int64(e.Price) * 100000,
				"price_max":   int64(e.Price) * 100000,
				"sold":        e.Sold,
				"stock":       e.Stock,
				"item_rating": map[string]any{"rating_star": e.Rating},
			},
		})
	}
	body, _ := json.Marshal(map[string]any{"items": items})
	u := strings.Replace(listingURL, "newest=0", fmt.Sprintf("newest=%d", page*60), 1)
	return models.CapturedPayload{Kind: models.EndpointListingSearch, URL: u, Body: body}
}

func detailPayload(id int64, name string) models.CapturedPayload {
	body := fmt.Sprintf(`{"error":0,"data":{"item":{"item_id":%d,"shop_id":77,"title":%q,"image":"img","price":5000000000,"stock":100,`+
		`"categories":[{"catid":100017,"display_name":"Fashion Muslim"}],"models":[]},`+
		`"product_images":{"images":["img-1"]},"shop_detailed":{"userid":9}}}`, id, name)
	return models.CapturedPayload{
		Kind: models.EndpointDetailFetch,
		URL:  fmt.Sprintf("https://shopee.co.id/api/v4/pdp/get_pc?item_id=%d&shop_id=77", id),
		Body: []byte(body),
	}
}

func productURL(name string) string {
	return models.BaseURL + strings.ReplaceAll(name, " ", "-")
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
