package scraper

import (
	"context"
	"log/slog"
	"time"
)

type PageState int

const (
	Clear PageState = iota
	ChallengeActive
	ChallengeFailed
	LoginRequired
	EmptyResult
)

func (s PageState) String() string {
	switch s {
	case Clear:
		return "clear"
	case ChallengeActive:
		return "challenge_active"
	case ChallengeFailed:
		return "challenge_failed"
	case LoginRequired:
		return "login_required"
	case EmptyResult:
		return "empty_result"
	default:
		return "unknown"
	}
}

var (
	challengeFailed = AnyOf(
		URLContains(trafficError),
		Present("button.cHPMhq", "Laporkan Permasalahan"),
		Present("div.D4kY48", "terjadi kesalahan saat memuat halaman"),
		Present("div.uUcrOy", "kami mendeteksi masalah dari koneksi jaringanmu"),
		Present("button.hKaCPY", "Coba Lagi"),
	)
	challengePending = URLContains(verifyPath)
	loginRequired    = AnyOf(URLContains(loginPath), Present(loginUser, ""))
	emptyResults     = Present(emptyResult, "")
)

// decide maps one snapshot to a page state. Failure markers win over a
// pending verification route.
func decide(s *Snapshot) PageState {
	switch {
	case challengeFailed(s):
		return ChallengeFailed
	case challengePending(s):
		return ChallengeActive
	case loginRequired(s):
		return LoginRequired
	case emptyResults(s):
		return EmptyResult
	default:
		return Clear
	}
}

type Detector struct {
	prober *Prober
	timing Timing
	logger *slog.Logger
	// observe is called with every classification result.
	observe func(PageState)
}

func NewDetector(prober *Prober, timing Timing, logger *slog.Logger) *Detector {
	return &Detector{
		prober: prober,
		timing: timing,
		logger: logger.With("component", "detector"),
	}
}

// Classify waits while a verification challenge is pending. It returns
// ChallengeActive when timeout passes with the challenge still up, and
// ChallengeFailed once the challenge ceiling passes regardless of timeout.
func (d *Detector) Classify(ctx context.Context, timeout time.Duration) (PageState, error) {
	start := time.Now()
	logged := false

	for {
		state := Clear
		d.prober.Probe(ctx, func(s *Snapshot) bool {
			state = decide(s)
			return state != Clear
		}, d.timing.PredicateTimeout)

		if err := ctx.Err(); err != nil {
			return Clear, err
		}

		if state != ChallengeActive {
			d.report(state)
			return state, nil
		}

		if !logged {
			d.logger.Info("verification challenge pending, waiting")
			logged = true
		}

		elapsed := time.Since(start)
		if elapsed >= d.timing.ChallengeCeiling {
			d.logger.Warn("challenge ceiling reached", "elapsed", elapsed)
			d.report(ChallengeFailed)
			return ChallengeFailed, nil
		}
		if elapsed >= timeout {
			d.report(ChallengeActive)
			return ChallengeActive, nil
		}

		if !sleep(ctx, d.timing.PollInterval) {
			return Clear, ctx.Err()
		}
	}
}

func (d *Detector) report(state PageState) {
	if state == ChallengeFailed {
		d.logger.Warn("challenge failed")
	}
	if d.observe != nil {
		d.observe(state)
	}
}

// OnState registers fn to receive every classification.
func (d *Detector) OnState(fn func(PageState)) {
	d.observe = fn
}
