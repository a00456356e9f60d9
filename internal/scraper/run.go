package scraper

import (
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

type Phase int

const (
	PhaseNavigating Phase = iota
	PhaseAwaitingResults
	PhaseClickingResults
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingResults:
		return "awaiting_results"
	case PhaseClickingResults:
		return "clicking_results"
	default:
		return "navigating"
	}
}

// Run is the mutable state of one attempt on one target. Page-scoped fields
// are reset by ResetPage on every page transition.
type Run struct {
	ID       uuid.UUID
	Target   models.Target
	Identity string
	Filter   models.FilterSpec
	Phase    Phase
	// Page is the result page being worked on.
	Page int

	toClick      []string
	seen         map[string]struct{}
	emptyMatch   bool
	pageCaptured int

	Captured   int
	Duplicates int
	Gaps       int
}

func NewRun(target models.Target, identity string, filter models.FilterSpec) *Run {
	r := &Run{
		ID:       uuid.New(),
		Target:   target,
		Identity: identity,
		Filter:   filter,
	}
	r.ResetPage()
	return r
}

func (r *Run) ResetPage() {
	r.Phase = PhaseNavigating
	r.toClick = nil
	r.seen = make(map[string]struct{})
	r.emptyMatch = false
	r.pageCaptured = 0
}

// AddTitles appends titles not seen on this page, keeping discovery order.
func (r *Run) AddTitles(titles []string) {
	for _, t := range titles {
		if _, ok := r.seen[t]; ok {
			continue
		}
		r.seen[t] = struct{}{}
		r.toClick = append(r.toClick, t)
	}
}

func (r *Run) ToClick() []string {
	out := make([]string, len(r.toClick))
	copy(out, r.toClick)
	return out
}

func (r *Run) EmptyMatch() bool {
	return r.emptyMatch
}

func (r *Run) PageCaptured() int {
	return r.pageCaptured
}

func (r *Run) markEmptyMatch() {
	r.emptyMatch = true
}

func (r *Run) recordCaptured() {
	r.Captured++
	r.pageCaptured++
}

// Outcome summarizes a finished run attempt.
type Outcome struct {
	RunID      uuid.UUID     `json:"run_id"`
	Target     string        `json:"target"`
	Identity   string        `json:"identity"`
	StartPage  int           `json:"start_page"`
	LastPage   int           `json:"last_page"`
	LastURL    string        `json:"last_url"`
	Captured   int           `json:"captured"`
	Duplicates int           `json:"duplicates"`
	Anomalies  int           `json:"anomalies"`
	Finished   bool          `json:"finished"`
	Class      ErrorClass    `json:"class"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// ResumePage is the page a follow-up attempt should start from.
func (o Outcome) ResumePage(pageCap int) int {
	if o.Finished {
		return pageCap
	}
	if o.LastURL != "" {
		if p := PageFromURL(o.LastURL); p > 0 {
			return p
		}
	}
	return o.LastPage
}

func (o *Outcome) setErr(err error) {
	o.Err = err
	o.Class = ClassOf(err)
	if err != nil {
		o.Error = err.Error()
	}
}
