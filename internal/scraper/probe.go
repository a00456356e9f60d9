package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Snapshot is the page state at one instant. The DOM is parsed on first use,
// so URL-only predicates never pay for it.
type Snapshot struct {
	URL    string
	page   Page
	doc    *goquery.Document
	loaded bool
}

func NewSnapshot(p Page) *Snapshot {
	return &Snapshot{URL: p.URL(), page: p}
}

func (s *Snapshot) Doc() *goquery.Document {
	if s.loaded {
		return s.doc
	}
	s.loaded = true

	html, err := s.page.Content()
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	s.doc = doc
	return doc
}

// Predicate is a pure test over a snapshot.
type Predicate func(*Snapshot) bool

func URLContains(sub string) Predicate {
	return func(s *Snapshot) bool {
		return strings.Contains(s.URL, sub)
	}
}

// URLIs matches the URL with or without a trailing slash.
func URLIs(url string) Predicate {
	want := strings.TrimSuffix(url, "/")
	return func(s *Snapshot) bool {
		return strings.TrimSuffix(s.URL, "/") == want
	}
}

// Present matches when an element for selector exists, and contains text
// when text is non-empty.
func Present(selector, text string) Predicate {
	return func(s *Snapshot) bool {
		doc := s.Doc()
		if doc == nil {
			return false
		}
		sel := doc.Find(selector)
		if text == "" {
			return sel.Length() > 0
		}
		return sel.FilterFunction(func(_ int, el *goquery.Selection) bool {
			return strings.Contains(el.Text(), text)
		}).Length() > 0
	}
}

func AnyOf(preds ...Predicate) Predicate {
	return func(s *Snapshot) bool {
		for _, p := range preds {
			if p(s) {
				return true
			}
		}
		return false
	}
}

// Prober polls fresh snapshots of a page.
type Prober struct {
	page     Page
	interval time.Duration
}

func NewProber(p Page, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Prober{page: p, interval: interval}
}

func (p *Prober) Snapshot() *Snapshot {
	return NewSnapshot(p.page)
}

// Probe reports whether pred holds within timeout. It always evaluates at
// least once and returns false early when ctx is done.
func (p *Prober) Probe(ctx context.Context, pred Predicate, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for {
		if pred(p.Snapshot()) {
			return true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		wait := p.interval
		if wait > remaining {
			wait = remaining
		}
		if !sleep(ctx, wait) {
			return false
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
