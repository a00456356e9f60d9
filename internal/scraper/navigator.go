package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

type Navigator struct {
	page   Page
	prober *Prober
	timing Timing
	logger *slog.Logger
}

func NewNavigator(page Page, prober *Prober, timing Timing, logger *slog.Logger) *Navigator {
	return &Navigator{
		page:   page,
		prober: prober,
		timing: timing,
		logger: logger.With("component", "navigator"),
	}
}

// Navigate opens result page pageIndex of target and returns the URL the
// browser settled on.
func (n *Navigator) Navigate(ctx context.Context, target models.Target, pageIndex int, filter models.FilterSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var err error
	switch {
	case target.IsURL():
		err = n.gotoResults(target.Raw, pageIndex, filter)
	case pageIndex == 0:
		err = n.search(ctx, target.Raw)
	default:
		err = n.gotoResults(SearchURL(target.Raw), pageIndex, filter)
	}
	if err != nil {
		if errors.Is(err, ErrInvalidTarget) {
			return n.page.URL(), err
		}
		return n.page.URL(), fmt.Errorf("%w: %v", ErrTransportAnomaly, err)
	}

	if !sleep(ctx, n.timing.SettleDelay) {
		return n.page.URL(), ctx.Err()
	}

	current := n.page.URL()
	n.logger.Debug("navigated", "target", target.Raw, "page", pageIndex, "url", current)
	return current, nil
}

func (n *Navigator) gotoResults(raw string, pageIndex int, filter models.FilterSpec) error {
	u, err := ResultsURL(raw, pageIndex, filter)
	if err != nil {
		return err
	}

	referer := models.BaseURL
	if pageIndex > 0 {
		if prev := n.page.URL(); prev != "" && prev != "about:blank" {
			referer = prev
		}
	}

	return n.page.Goto(u, referer)
}

// search types a free-text query into the marketplace search box.
func (n *Navigator) search(ctx context.Context, query string) error {
	if !URLIs(models.BaseURL)(n.prober.Snapshot()) {
		if err := n.page.Goto(models.BaseURL, ""); err != nil {
			return err
		}
	}

	box := Present(searchInput, "")
	if !n.prober.Probe(ctx, box, n.timing.SearchInputTimeout) {
		n.logger.Warn("search input not ready, reloading home")
		if err := n.page.Goto(models.BaseURL, ""); err != nil {
			return err
		}
		if !n.prober.Probe(ctx, box, n.timing.SearchInputTimeout) {
			return fmt.Errorf("search input not found")
		}
	}

	if err := n.page.Click(searchInput, "", n.timing.SearchInputTimeout); err != nil {
		return fmt.Errorf("failed to focus search input: %w", err)
	}
	if err := n.page.Type(query); err != nil {
		return fmt.Errorf("failed to type query: %w", err)
	}
	return n.page.Press("Enter")
}

// SearchURL is the results route for a free-text query.
func SearchURL(query string) string {
	return searchURL + "?keyword=" + url.QueryEscape(query)
}

// ResultsURL applies the page index and filter parameters to a results URL.
// Existing query parameters are kept unless overridden.
func ResultsURL(raw string, pageIndex int, filter models.FilterSpec) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	q := u.Query()
	if pageIndex > 0 {
		q.Set("page", strconv.Itoa(pageIndex))
	}
	if filter.PriceMin > 0 {
		q.Set("minPrice", strconv.Itoa(filter.PriceMin))
	}
	if filter.PriceMax > 0 {
		q.Set("maxPrice", strconv.Itoa(filter.PriceMax))
	}
	if stars := int(math.Floor(filter.MinRating)); stars > 0 {
		q.Set("ratingFilter", strconv.Itoa(stars))
	}
	if filter.SortBy != "" {
		q.Set("sortBy", filter.SortBy)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// PageFromURL reads the page query parameter, defaulting to 0.
func PageFromURL(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	page, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil || page < 0 {
		return 0
	}
	return page
}
