package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

type LoginState int

const (
	Unauthenticated LoginState = iota
	AwaitingCredentials
	Authenticated
)

func (s LoginState) String() string {
	switch s {
	case AwaitingCredentials:
		return "awaiting_credentials"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

var (
	accountIndicator = Present(accountMenu, "")
	loginForm        = Present(loginUser, "")
	loginRejected    = Present(loginAlert, "salah")
)

// Login drives the login form until the account menu shows up.
type Login struct {
	page     Page
	prober   *Prober
	detector *Detector
	timing   Timing
	state    LoginState
	logger   *slog.Logger
}

func NewLogin(page Page, prober *Prober, detector *Detector, timing Timing, logger *slog.Logger) *Login {
	return &Login{
		page:     page,
		prober:   prober,
		detector: detector,
		timing:   timing,
		logger:   logger.With("component", "login"),
	}
}

func (l *Login) State() LoginState {
	return l.state
}

// EnsureLoggedIn opens the login route and returns once the session is
// authenticated. Restored cookies usually redirect straight to the home page.
func (l *Login) EnsureLoggedIn(ctx context.Context, cred models.Credential) error {
	l.state = Unauthenticated
	log := l.logger.With("identity", cred.Identity)

	if !strings.Contains(l.page.URL(), loginPath) {
		if err := l.page.Goto(loginURL, loginReferer); err != nil {
			return fmt.Errorf("%w: failed to open login page: %v", ErrTransportAnomaly, err)
		}
	}

	attempts := l.timing.MaxLoginAttempts
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if l.prober.Probe(ctx, accountIndicator, l.timing.AccountProbe) {
			l.state = Authenticated
			log.Info("session authenticated")
			return nil
		}

		if l.state == AwaitingCredentials && l.prober.Probe(ctx, loginRejected, 0) {
			return fmt.Errorf("%w: credentials rejected for %s", ErrAuthFailure, cred.Identity)
		}

		if l.prober.Probe(ctx, loginForm, l.timing.LoginFormProbe) {
			log.Info("login form shown, submitting credentials", "attempt", i+1)
			if err := l.submit(cred); err != nil {
				log.Warn("failed to submit login form", "error", err)
			} else {
				l.state = AwaitingCredentials
			}
			if !sleep(ctx, l.timing.LoginSubmitDelay) {
				return ctx.Err()
			}
		}

		state, err := l.detector.Classify(ctx, l.timing.ChallengeCeiling)
		if err != nil {
			return err
		}
		if state == ChallengeFailed {
			return fmt.Errorf("%w: during login", ErrChallengeFailure)
		}
	}

	if l.prober.Probe(ctx, accountIndicator, l.timing.AccountProbe) {
		l.state = Authenticated
		return nil
	}

	return fmt.Errorf("%w: %s not logged in after %d attempts", ErrAuthFailure, cred.Identity, attempts)
}

func (l *Login) submit(cred models.Credential) error {
	if err := l.page.Fill(loginUser, cred.Identity, l.timing.LoginFormProbe); err != nil {
		return err
	}
	if err := l.page.Fill(loginPass, cred.Secret, l.timing.LoginFormProbe); err != nil {
		return err
	}
	return l.page.Press("Enter")
}
