package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/maltedev/marketplace-harvester/internal/events"
	"github.com/maltedev/marketplace-harvester/internal/metrics"
	"github.com/maltedev/marketplace-harvester/internal/models"
	"github.com/maltedev/marketplace-harvester/internal/parser"
	"github.com/maltedev/marketplace-harvester/internal/storage"
)

// Interceptor applies captured payloads to the current run.
type Interceptor struct {
	parser    parser.Parser
	store     storage.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewInterceptor(p parser.Parser, store storage.Store, pub events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Interceptor {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Interceptor{
		parser:    p,
		store:     store,
		publisher: pub,
		metrics:   m,
		logger:    logger.With("component", "interceptor"),
	}
}

func (i *Interceptor) Handle(ctx context.Context, run *Run, p models.CapturedPayload) {
	i.metrics.IncPayload(string(p.Kind))

	switch p.Kind {
	case models.EndpointListingSearch:
		i.handleListing(run, p)
	case models.EndpointDetailFetch:
		i.handleDetail(ctx, run, p)
	}
}

// handleListing only counts result pages requested with a search scenario,
// and only while the run is waiting for results.
func (i *Interceptor) handleListing(run *Run, p models.CapturedPayload) {
	if !strings.Contains(p.URL, "scenario") {
		i.logger.Debug("ignoring listing response without scenario", "url", p.URL)
		return
	}
	if run.Phase != PhaseAwaitingResults {
		return
	}
	if page, ok := listingPage(p.URL); ok && page != run.Page {
		i.logger.Debug("ignoring listing response for another page", "url", p.URL, "page", run.Page)
		return
	}

	items, err := i.parser.ParseSearch(p.Body)
	if err != nil {
		i.logger.Error("failed to parse listing response", "url", p.URL, "error", err)
		return
	}

	var titles []string
	for _, item := range items {
		if reasons := run.Filter.Reject(item); len(reasons) > 0 {
			i.logger.Debug("listing item filtered", "name", item.Name, "reasons", reasons)
			continue
		}
		titles = append(titles, item.Name)
	}

	if len(titles) == 0 {
		i.logger.Info("no listing item passed the filters", "target", run.Target.Raw, "items", len(items))
		run.markEmptyMatch()
		return
	}

	run.AddTitles(titles)
	i.logger.Info("listing items queued", "target", run.Target.Raw, "queued", len(titles), "items", len(items))
}

func (i *Interceptor) handleDetail(ctx context.Context, run *Run, p models.CapturedPayload) {
	rec, err := i.parser.ParseDetail(p.Body, run.Filter.Namespace)
	switch {
	case errors.Is(err, parser.ErrNoData):
		i.metrics.IncRecord("no_data")
		i.logger.Error("detail response without data", "url", p.URL, "body", truncate(string(p.Body), 300))
		return
	case errors.Is(err, parser.ErrMappingGap):
		run.Gaps++
		i.metrics.IncRecord("mapping_gap")
		i.logger.Warn("detail response not mappable", "url", p.URL, "error", err)
		return
	case err != nil:
		i.metrics.IncRecord("error")
		i.logger.Error("failed to parse detail response", "url", p.URL, "error", err)
		return
	}

	res, err := i.store.Insert(ctx, rec)
	if err != nil {
		i.metrics.IncRecord("error")
		i.logger.Error("failed to store record", "id", rec.ID, "error", err)
		return
	}

	if res == storage.DuplicateKey {
		run.Duplicates++
		i.metrics.IncRecord("duplicate")
		i.logger.Info("duplicate record", "id", rec.ID, "name", truncate(rec.Name, 70))
		return
	}

	run.recordCaptured()
	i.metrics.IncRecord("inserted")
	i.logger.Info("scraped", "id", rec.ID, "name", truncate(rec.Name, 70))

	if err := i.publisher.PublishRecordCaptured(ctx, run.ID, run.Target.Raw, rec); err != nil {
		i.logger.Warn("failed to publish record event", "id", rec.ID, "error", err)
	}
}

// listingPage derives the result page from the newest and limit query
// parameters of a search_items request.
func listingPage(raw string) (int, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, false
	}
	q := u.Query()
	newest, err := strconv.Atoi(q.Get("newest"))
	if err != nil || newest < 0 {
		return 0, false
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		return 0, false
	}
	return newest / limit, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
