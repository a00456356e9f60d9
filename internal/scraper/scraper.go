package scraper

import (
	"net/http"
	"time"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

// Page is the browser surface the scraper drives. Selector arguments are
// CSS; hasText narrows a selector to elements containing that text.
type Page interface {
	URL() string
	Content() (string, error)
	Goto(url, referer string) error
	Reload() error
	GoBack() error
	Reveal(selector, hasText string, timeout time.Duration) error
	Click(selector, hasText string, timeout time.Duration) error
	Fill(selector, value string, timeout time.Duration) error
	Type(text string) error
	Press(key string) error
	ScrollTo(y int) error
}

// BrowserSession is one launched browser with its single page.
type BrowserSession interface {
	Page
	Captures() <-chan models.CapturedPayload
	AddCookies(cookies []*http.Cookie) error
	Cookies() ([]*http.Cookie, error)
	UserAgent() string
	Close() error
}

// LaunchFunc starts a browser session with the given user agent.
type LaunchFunc func(userAgent string) (BrowserSession, error)

// Marketplace selectors and routes.
const (
	loginURL      = models.BaseURL + "buyer/login?next=https%3A%2F%2Fshopee.co.id%2F"
	loginReferer  = "https://www.google.com/search?q=shopee"
	searchURL     = models.BaseURL + "search"
	verifyPath    = "/verify/"
	trafficError  = "/verify/traffic/error"
	loginPath     = "/buyer/login"
	searchInput   = "input.shopee-searchbar-input__input"
	emptyResult   = "div.shopee-search-empty-result-section"
	accountMenu   = "div.navbar__link--account__container"
	loginUser     = "input[type=text].Z7tNyT"
	loginPass     = "input[type=password].Z7tNyT"
	loginAlert    = "div[role=alert]"
	tileSelector  = "a > div > div"
	tileTextLimit = 30
	scrollLimit   = 7000
	scrollStep    = 500
)

// Timing holds every bounded wait of the scrape loop.
type Timing struct {
	PollInterval        time.Duration
	PredicateTimeout    time.Duration
	ChallengeCeiling    time.Duration
	ResultsTimeout      time.Duration
	SettleDelay         time.Duration
	SearchInputTimeout  time.Duration
	AccountProbe        time.Duration
	LoginFormProbe      time.Duration
	LoginSubmitDelay    time.Duration
	ClickSettle         time.Duration
	TileLocateTimeout   time.Duration
	TileScrollProbe     time.Duration
	TileFallbackTimeout time.Duration
	MaxLoginAttempts    int
}

func DefaultTiming() Timing {
	return Timing{
		PollInterval:        500 * time.Millisecond,
		PredicateTimeout:    300 * time.Millisecond,
		ChallengeCeiling:    600 * time.Second,
		ResultsTimeout:      300 * time.Second,
		SettleDelay:         time.Second,
		SearchInputTimeout:  5 * time.Second,
		AccountProbe:        time.Second,
		LoginFormProbe:      500 * time.Millisecond,
		LoginSubmitDelay:    2 * time.Second,
		ClickSettle:         500 * time.Millisecond,
		TileLocateTimeout:   2 * time.Second,
		TileScrollProbe:     500 * time.Millisecond,
		TileFallbackTimeout: 10 * time.Second,
		MaxLoginAttempts:    3,
	}
}
