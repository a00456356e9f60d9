package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/marketplace-harvester/internal/metrics"
	"github.com/maltedev/marketplace-harvester/internal/models"
	"github.com/maltedev/marketplace-harvester/internal/ratelimit"
)

// Pacer spaces tile clicks and learns from challenge sightings.
type Pacer interface {
	ratelimit.RateLimiter
	RecordSuccess()
	RecordError()
}

type resultsState int

const (
	resultsReady resultsState = iota
	resultsEmptyMatch
	resultsEmptyPage
	resultsTimeout
)

// Controller pages through one target: navigate, wait for the listing
// response, click every surviving tile, repeat.
type Controller struct {
	page        Page
	captures    <-chan models.CapturedPayload
	navigator   *Navigator
	detector    *Detector
	interceptor *Interceptor
	pacer       Pacer
	timing      Timing
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

type ControllerDeps struct {
	Page        Page
	Captures    <-chan models.CapturedPayload
	Navigator   *Navigator
	Detector    *Detector
	Interceptor *Interceptor
	Pacer       Pacer
	Timing      Timing
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

func NewController(d ControllerDeps) *Controller {
	pacer := d.Pacer
	if pacer == nil {
		pacer = ratelimit.NewAdaptiveRateLimiter(0, 0, 0)
	}
	return &Controller{
		page:        d.Page,
		captures:    d.Captures,
		navigator:   d.Navigator,
		detector:    d.Detector,
		interceptor: d.Interceptor,
		pacer:       pacer,
		timing:      d.Timing,
		metrics:     d.Metrics,
		logger:      d.Logger.With("component", "controller"),
	}
}

// Execute runs pages [start, MaxPageScrape) of the run's target.
func (c *Controller) Execute(ctx context.Context, run *Run, start int) Outcome {
	out := Outcome{
		RunID:     run.ID,
		Target:    run.Target.Raw,
		Identity:  run.Identity,
		StartPage: start,
		LastPage:  start,
		StartedAt: time.Now(),
	}
	defer func() {
		out.Captured = run.Captured
		out.Duplicates = run.Duplicates
		out.Duration = time.Since(out.StartedAt)
	}()

	pageCap := run.Filter.MaxPageScrape
	if start >= pageCap {
		c.logger.Info("resume cursor at page cap, nothing to do", "target", run.Target.Raw, "start", start)
		out.Finished = true
		return out
	}

	log := c.logger.With("target", run.Target.Raw, "run_id", run.ID)

	for p := start; p < pageCap; p++ {
		c.drain(ctx, run)
		run.ResetPage()
		run.Page = p
		out.LastPage = p
		c.metrics.IncPage()

		stop, err := c.runPage(ctx, run, p, &out, log)
		if err != nil {
			out.setErr(err)
			return out
		}
		if stop {
			return out
		}
	}

	out.Finished = true
	log.Info("page cap reached", "pages", pageCap-start, "captured", run.Captured)
	return out
}

// runPage handles one result page. stop ends the target without an error.
func (c *Controller) runPage(ctx context.Context, run *Run, p int, out *Outcome, log *slog.Logger) (stop bool, err error) {
	log = log.With("page", p)

	current, err := c.navigator.Navigate(ctx, run.Target, p, run.Filter)
	if current != "" {
		out.LastURL = current
	}
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrInvalidTarget) {
			return true, c.wrap(err, p, current)
		}
		out.Anomalies++
		log.Warn("navigation failed, moving to next page", "error", err)
		return false, nil
	}

	if err := c.checkPage(ctx, p, current); err != nil {
		return true, err
	}

	log.Info("waiting for listing results")
	state, err := c.awaitResults(ctx, run, p)
	if err != nil {
		return true, err
	}
	if now := c.page.URL(); now != "" {
		out.LastURL = now
	}

	switch state {
	case resultsEmptyMatch:
		log.Info("no listing item matches the filters, target exhausted")
		out.Finished = true
		return true, nil
	case resultsEmptyPage:
		if p == 0 {
			return true, newRunError(ClassInvalidURL, p, current, fmt.Errorf("%w: empty result page", ErrInvalidTarget))
		}
		log.Info("empty result page, target exhausted")
		out.Finished = true
		return true, nil
	case resultsTimeout:
		out.Anomalies++
		log.Warn("listing results did not arrive in time", "timeout", c.timing.ResultsTimeout)
		return false, nil
	}

	if err := c.clickResults(ctx, run, p, out.LastURL, log); err != nil {
		return true, err
	}
	c.drain(ctx, run)

	if run.PageCaptured() == 0 {
		log.Warn("no new record captured on page, stopping target", "queued", len(run.ToClick()), "duplicates", run.Duplicates)
		return true, nil
	}

	log.Info("page done", "captured", run.PageCaptured(), "total", run.Captured)
	return false, nil
}

// checkPage classifies the page right after navigation.
func (c *Controller) checkPage(ctx context.Context, p int, url string) error {
	state, err := c.detector.Classify(ctx, c.timing.ChallengeCeiling)
	if err != nil {
		return err
	}
	switch state {
	case ChallengeFailed, ChallengeActive:
		return newRunError(ClassCaptcha, p, url, ErrChallengeFailure)
	case LoginRequired:
		return newRunError(ClassLoginFailed, p, url, fmt.Errorf("%w: redirected to login", ErrAuthFailure))
	}
	return nil
}

func (c *Controller) awaitResults(ctx context.Context, run *Run, p int) (resultsState, error) {
	run.Phase = PhaseAwaitingResults
	deadline := time.Now().Add(c.timing.ResultsTimeout)

	for {
		c.drain(ctx, run)
		if len(run.toClick) > 0 {
			return resultsReady, nil
		}
		if run.EmptyMatch() {
			return resultsEmptyMatch, nil
		}
		if err := ctx.Err(); err != nil {
			return resultsTimeout, err
		}
		if time.Now().After(deadline) {
			return resultsTimeout, nil
		}

		snap := NewSnapshot(c.page)
		if URLIs(models.BaseURL)(snap) {
			c.logger.Info("bounced to home page, navigating again", "target", run.Target.Raw, "page", p)
			if _, err := c.navigator.Navigate(ctx, run.Target, p, run.Filter); err != nil {
				c.logger.Warn("re-navigation failed", "error", err)
			}
		}

		state, err := c.detector.Classify(ctx, c.timing.ChallengeCeiling)
		if err != nil {
			return resultsTimeout, err
		}
		switch state {
		case ChallengeFailed, ChallengeActive:
			return resultsTimeout, newRunError(ClassCaptcha, p, snap.URL, ErrChallengeFailure)
		case LoginRequired:
			return resultsTimeout, newRunError(ClassLoginFailed, p, snap.URL, fmt.Errorf("%w: redirected to login", ErrAuthFailure))
		case EmptyResult:
			return resultsEmptyPage, nil
		}

		if err := c.wait(ctx, run, c.timing.PollInterval); err != nil {
			return resultsTimeout, err
		}
	}
}

func (c *Controller) clickResults(ctx context.Context, run *Run, p int, listURL string, log *slog.Logger) error {
	run.Phase = PhaseClickingResults
	titles := run.ToClick()
	log.Info("clicking results", "count", len(titles))

	for idx, name := range titles {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.drain(ctx, run)

		if err := c.challengeCheck(ctx, p); err != nil {
			log.Warn("challenge before click, abandoning page", "remaining", len(titles)-idx, "error", err)
			return err
		}

		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}

		if err := c.clickTile(ctx, name, listURL); err != nil {
			c.metrics.IncTileClick("missed")
			log.Warn("failed to click result tile", "name", truncate(name, 70), "error", err)
			continue
		}
		c.metrics.IncTileClick("clicked")

		if !sleep(ctx, c.timing.ClickSettle) {
			return ctx.Err()
		}
		c.drain(ctx, run)

		if err := c.challengeCheck(ctx, p); err != nil {
			log.Warn("challenge after click, abandoning page", "remaining", len(titles)-idx-1, "error", err)
			return err
		}
		c.pacer.RecordSuccess()

		if err := c.page.GoBack(); err != nil {
			log.Warn("failed to go back to results", "error", err)
		}
	}

	return nil
}

// challengeCheck classifies briefly. A challenge still pending after the
// full ceiling, or one that failed, ends the run as captcha.
func (c *Controller) challengeCheck(ctx context.Context, p int) error {
	state, err := c.detector.Classify(ctx, c.timing.ClickSettle)
	if err != nil {
		return err
	}
	if state == ChallengeActive {
		c.pacer.RecordError()
		if state, err = c.detector.Classify(ctx, c.timing.ChallengeCeiling); err != nil {
			return err
		}
	}
	switch state {
	case ChallengeFailed, ChallengeActive:
		c.pacer.RecordError()
		return newRunError(ClassCaptcha, p, c.page.URL(), ErrChallengeFailure)
	case LoginRequired:
		return newRunError(ClassLoginFailed, p, c.page.URL(), fmt.Errorf("%w: redirected to login", ErrAuthFailure))
	}
	return nil
}

// clickTile finds a result tile by the start of its title. When the tile is
// not on screen, the page is scrolled down in steps until it shows up.
func (c *Controller) clickTile(ctx context.Context, name, listURL string) error {
	text := tileText(name)

	if err := c.page.Reveal(tileSelector, text, c.timing.TileLocateTimeout); err == nil {
		if err := c.page.Click(tileSelector, text, c.timing.TileLocateTimeout); err == nil {
			return nil
		}
	}

	prefix := listURL
	if len(prefix) > 50 {
		prefix = prefix[:50]
	}
	if !strings.Contains(c.page.URL(), prefix) {
		if err := c.page.GoBack(); err != nil {
			c.logger.Debug("failed to go back before scrolling", "error", err)
		}
	}

	for y := 0; y < scrollLimit; y += scrollStep {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.page.ScrollTo(y); err != nil {
			return fmt.Errorf("failed to scroll: %w", err)
		}
		if c.page.Reveal(tileSelector, text, c.timing.TileScrollProbe) == nil {
			break
		}
	}

	if err := c.page.Reveal(tileSelector, text, c.timing.TileFallbackTimeout); err != nil {
		return fmt.Errorf("tile %q not found: %w", text, err)
	}
	return c.page.Click(tileSelector, text, c.timing.TileFallbackTimeout)
}

func tileText(name string) string {
	r := []rune(name)
	if len(r) > tileTextLimit {
		r = r[:tileTextLimit]
	}
	return strings.TrimSpace(string(r))
}

// drain applies every payload already captured, without blocking.
func (c *Controller) drain(ctx context.Context, run *Run) {
	for {
		select {
		case p, ok := <-c.captures:
			if !ok {
				return
			}
			c.interceptor.Handle(ctx, run, p)
		default:
			return
		}
	}
}

// wait sleeps for d, applying payloads as they arrive.
func (c *Controller) wait(ctx context.Context, run *Run, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case p, ok := <-c.captures:
			if !ok {
				<-timer.C
				return nil
			}
			c.interceptor.Handle(ctx, run, p)
			if len(run.toClick) > 0 || run.EmptyMatch() {
				return nil
			}
		}
	}
}

func (c *Controller) wrap(err error, p int, url string) error {
	var runErr *RunError
	if errors.As(err, &runErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return newRunError(ClassOf(err), p, url, err)
}
