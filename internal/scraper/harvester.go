package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/maltedev/marketplace-harvester/internal/events"
	"github.com/maltedev/marketplace-harvester/internal/metrics"
	"github.com/maltedev/marketplace-harvester/internal/models"
	"github.com/maltedev/marketplace-harvester/internal/parser"
	"github.com/maltedev/marketplace-harvester/internal/session"
	"github.com/maltedev/marketplace-harvester/internal/storage"
)

// SessionStore persists cookies and the user agent per identity.
type SessionStore interface {
	Load(identity string) (*session.Session, error)
	Save(identity string, sess *session.Session) error
}

type HarvesterConfig struct {
	Launch     LaunchFunc
	Sessions   SessionStore
	UserAgents []string
	Parser     parser.Parser
	Store      storage.Store
	Publisher  events.Publisher
	Pacer      Pacer
	Filter     models.FilterSpec
	Timing     Timing
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Rand       *rand.Rand
}

// Harvester runs single attempts: one browser, one credential, one target.
type Harvester struct {
	cfg  HarvesterConfig
	mu   sync.Mutex
	rnd  *rand.Rand
	log  *slog.Logger
	intr *Interceptor
}

func NewHarvester(cfg HarvesterConfig) *Harvester {
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Harvester{
		cfg:  cfg,
		rnd:  rnd,
		log:  cfg.Logger.With("component", "harvester"),
		intr: NewInterceptor(cfg.Parser, cfg.Store, cfg.Publisher, cfg.Metrics, cfg.Logger),
	}
}

// Attempt launches a browser with the identity's stored session, logs in and
// runs the target from start. Cookies are saved on every exit path.
func (h *Harvester) Attempt(ctx context.Context, target models.Target, cred models.Credential, start int) Outcome {
	log := h.log.With("identity", cred.Identity, "target", target.Raw)
	run := NewRun(target, cred.Identity, h.cfg.Filter)

	out := Outcome{
		RunID:     run.ID,
		Target:    target.Raw,
		Identity:  cred.Identity,
		StartPage: start,
		LastPage:  start,
		StartedAt: time.Now(),
	}
	defer func() {
		h.cfg.Metrics.ObserveRun(out.Duration)
		h.cfg.Metrics.IncRun(string(out.Class))
	}()

	sess := h.loadSession(cred.Identity, log)
	ua := h.userAgent()
	if sess != nil && sess.UserAgent != "" {
		ua = sess.UserAgent
	}

	bs, err := h.cfg.Launch(ua)
	if err != nil {
		out.setErr(newRunError(ClassTransport, start, "", fmt.Errorf("%w: failed to launch browser: %v", ErrTransportAnomaly, err)))
		out.Duration = time.Since(out.StartedAt)
		return out
	}
	defer func() {
		h.saveSession(bs, cred.Identity, log)
		if err := bs.Close(); err != nil {
			log.Warn("failed to close browser", "error", err)
		}
	}()

	if sess != nil && len(sess.Cookies) > 0 {
		if err := bs.AddCookies(sess.Cookies); err != nil {
			log.Warn("failed to restore cookies", "error", err)
		} else {
			log.Info("session restored", "cookies", len(sess.Cookies))
		}
	}

	prober := NewProber(bs, 0)
	detector := NewDetector(prober, h.cfg.Timing, h.cfg.Logger)
	detector.OnState(func(s PageState) {
		h.cfg.Metrics.IncPageState(s.String())
	})

	login := NewLogin(bs, prober, detector, h.cfg.Timing, h.cfg.Logger)
	if err := login.EnsureLoggedIn(ctx, cred); err != nil {
		out.LastURL = bs.URL()
		out.setErr(h.loginError(err, start, out.LastURL))
		out.Duration = time.Since(out.StartedAt)
		log.Warn("login failed", "class", out.Class, "error", err)
		return out
	}

	controller := NewController(ControllerDeps{
		Page:        bs,
		Captures:    bs.Captures(),
		Navigator:   NewNavigator(bs, prober, h.cfg.Timing, h.cfg.Logger),
		Detector:    detector,
		Interceptor: h.intr,
		Pacer:       h.cfg.Pacer,
		Timing:      h.cfg.Timing,
		Metrics:     h.cfg.Metrics,
		Logger:      h.cfg.Logger,
	})

	out = controller.Execute(ctx, run, start)
	log.Info("attempt finished",
		"class", out.Class,
		"captured", out.Captured,
		"duplicates", out.Duplicates,
		"last_page", out.LastPage,
		"finished", out.Finished,
		"result", errorLabel(out.Err),
	)
	return out
}

func (h *Harvester) loginError(err error, page int, url string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return newRunError(ClassOf(err), page, url, err)
}

func (h *Harvester) loadSession(identity string, log *slog.Logger) *session.Session {
	if h.cfg.Sessions == nil {
		return nil
	}
	sess, err := h.cfg.Sessions.Load(identity)
	switch {
	case errors.Is(err, session.ErrNoSession):
		log.Info("no stored session, logging in from scratch")
		return nil
	case err != nil:
		log.Warn("failed to load session", "error", err)
		return nil
	}
	return sess
}

func (h *Harvester) saveSession(bs BrowserSession, identity string, log *slog.Logger) {
	if h.cfg.Sessions == nil {
		return
	}
	cookies, err := bs.Cookies()
	if err != nil {
		log.Warn("failed to read cookies", "error", err)
		return
	}
	if err := h.cfg.Sessions.Save(identity, &session.Session{Cookies: cookies, UserAgent: bs.UserAgent()}); err != nil {
		log.Error("failed to save session", "error", err)
		return
	}
	log.Debug("session saved", "cookies", len(cookies))
}

func (h *Harvester) userAgent() string {
	if len(h.cfg.UserAgents) == 0 {
		return ""
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg.UserAgents[h.rnd.Intn(len(h.cfg.UserAgents))]
}
