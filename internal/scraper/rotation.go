package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/maltedev/marketplace-harvester/internal/metrics"
	"github.com/maltedev/marketplace-harvester/internal/models"
	"github.com/maltedev/marketplace-harvester/internal/storage"
)

var ErrNoCredential = errors.New("no credential available")

// Rotator picks credentials at random while keeping the most recently used
// half of the pool out of the draw.
type Rotator struct {
	mu     sync.Mutex
	creds  []models.Credential
	recent *lru.Cache[string, struct{}]
	rnd    *rand.Rand
}

func NewRotator(creds []models.Credential, rnd *rand.Rand) (*Rotator, error) {
	if len(creds) == 0 {
		return nil, ErrNoCredential
	}
	recent, err := lru.New[string, struct{}](max(1, len(creds)/2))
	if err != nil {
		return nil, fmt.Errorf("failed to create recently-used set: %w", err)
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Rotator{creds: creds, recent: recent, rnd: rnd}, nil
}

// Pick returns a credential outside the recently-used set and outside
// exclude. When every remaining credential was used recently, the
// recently-used set is ignored.
func (r *Rotator) Pick(exclude map[string]bool) (models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var eligible, fallback []models.Credential
	for _, c := range r.creds {
		if exclude[c.Identity] {
			continue
		}
		fallback = append(fallback, c)
		if !r.recent.Contains(c.Identity) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		eligible = fallback
	}
	if len(eligible) == 0 {
		return models.Credential{}, ErrNoCredential
	}

	c := eligible[r.rnd.Intn(len(eligible))]
	r.recent.Add(c.Identity, struct{}{})
	return c, nil
}

// Recent lists recently used identities, oldest first.
func (r *Rotator) Recent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recent.Keys()
}

func (r *Rotator) Size() int {
	return len(r.creds)
}

// Attempter runs one attempt on one target with one credential.
type Attempter interface {
	Attempt(ctx context.Context, target models.Target, cred models.Credential, start int) Outcome
}

// TargetList is the durable list of pending targets.
type TargetList interface {
	Remove(raw string) error
}

// History keeps the most recent outcomes for the status API.
type History struct {
	mu       sync.RWMutex
	outcomes []Outcome
	limit    int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 100
	}
	return &History{limit: limit}
}

func (h *History) Add(o Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.outcomes = append(h.outcomes, o)
	if over := len(h.outcomes) - h.limit; over > 0 {
		h.outcomes = append([]Outcome(nil), h.outcomes[over:]...)
	}
}

// List returns outcomes newest first.
func (h *History) List() []Outcome {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Outcome, len(h.outcomes))
	for i, o := range h.outcomes {
		out[len(h.outcomes)-1-i] = o
	}
	return out
}

type OrchestratorConfig struct {
	Rotator *Rotator
	Runner  Attempter
	Resume  storage.ResumeStore
	Targets TargetList
	History *History
	Filter  models.FilterSpec
	// MaxAttempts bounds retries per target. Zero means the pool size.
	MaxAttempts int
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Orchestrator walks the target list sequentially, rotating credentials on
// challenge and login failures.
type Orchestrator struct {
	rotator     *Rotator
	runner      Attempter
	resume      storage.ResumeStore
	targets     TargetList
	history     *History
	filter      models.FilterSpec
	maxAttempts int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = cfg.Rotator.Size()
	}
	resume := cfg.Resume
	if resume == nil {
		resume = storage.NewMemoryResumeStore()
	}
	history := cfg.History
	if history == nil {
		history = NewHistory(0)
	}
	return &Orchestrator{
		rotator:     cfg.Rotator,
		runner:      cfg.Runner,
		resume:      resume,
		targets:     cfg.Targets,
		history:     history,
		filter:      cfg.Filter,
		maxAttempts: attempts,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With("component", "orchestrator"),
	}
}

func (o *Orchestrator) History() *History {
	return o.history
}

// RunAll processes targets in order until the list is done or ctx ends.
func (o *Orchestrator) RunAll(ctx context.Context, targets []models.Target) []Outcome {
	var all []Outcome
	for i, t := range targets {
		if ctx.Err() != nil {
			o.logger.Info("stopping before remaining targets", "remaining", len(targets)-i)
			break
		}
		o.logger.Info("processing target", "target", t.Raw, "index", i+1, "total", len(targets))
		all = append(all, o.RunTarget(ctx, t)...)
	}
	return all
}

// RunTarget retries one target across credentials. The resume cursor is
// persisted after every attempt so an interrupted process picks up where
// the last attempt stopped.
func (o *Orchestrator) RunTarget(ctx context.Context, target models.Target) []Outcome {
	log := o.logger.With("target", target.Raw)

	start := 0
	if page, ok, err := o.resume.Get(ctx, target.Raw); err != nil {
		log.Warn("failed to read resume cursor", "error", err)
	} else if ok {
		start = page
		log.Info("resuming target", "page", page)
	}

	var outcomes []Outcome
	tried := make(map[string]bool)

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}

		cred, err := o.rotator.Pick(tried)
		if err != nil {
			log.Warn("no credential left for target", "attempts", attempt-1)
			break
		}
		tried[cred.Identity] = true

		log.Info("starting attempt", "attempt", attempt, "identity", cred.Identity, "start", start)
		out := o.runner.Attempt(ctx, target, cred, start)
		outcomes = append(outcomes, out)
		o.history.Add(out)

		next := out.ResumePage(o.filter.MaxPageScrape)
		if err := o.resume.Set(ctx, target.Raw, next); err != nil {
			log.Warn("failed to persist resume cursor", "page", next, "error", err)
		}
		start = next

		if ctx.Err() != nil {
			break
		}
		if out.Class.Retryable() {
			log.Warn("attempt failed, rotating credential", "class", out.Class, "identity", cred.Identity, "next_page", next)
			continue
		}
		if out.Err != nil {
			log.Warn("abandoning target", "class", out.Class, "error", out.Err)
		} else {
			log.Info("target done", "captured", out.Captured, "finished", out.Finished)
		}
		break
	}

	if ctx.Err() != nil {
		log.Info("interrupted, keeping target for the next run", "page", start)
		return outcomes
	}

	if o.targets != nil {
		if err := o.targets.Remove(target.Raw); err != nil {
			log.Error("failed to remove target from list", "error", err)
		}
	}
	if err := o.resume.Clear(ctx, target.Raw); err != nil {
		log.Warn("failed to clear resume cursor", "error", err)
	}
	return outcomes
}
