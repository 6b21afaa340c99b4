package checkoutflow

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Coarse client-facing statuses. "expired" is produced locally by the
// countdown, never by the server.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusExpired  = "expired"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultValidity     = 30 * time.Minute
)

type Intent struct {
	ExternalID    string
	QRPayload     string
	QRImageBase64 string
	ExpiresAt     time.Time
}

type CreateFunc func(ctx context.Context) (Intent, error)

// StatusFunc returns pending|approved|rejected for an external id.
type StatusFunc func(ctx context.Context, externalID string) (string, error)

// Session drives one checkout attempt: guarded intent creation, then a
// fixed-interval poll loop bounded by the intent's validity window. All
// timers stop on terminal status or context cancellation (view teardown).
type Session struct {
	guard  *Guard
	create CreateFunc
	status StatusFunc
	ready  func() bool
	logger *slog.Logger

	PollInterval time.Duration
	Validity     time.Duration

	mu     sync.Mutex
	intent Intent
	has    bool
}

func NewSession(create CreateFunc, status StatusFunc, opts ...Option) *Session {
	s := &Session{
		guard:        NewGuard(DefaultMaxRetries),
		create:       create,
		status:       status,
		logger:       slog.Default(),
		PollInterval: DefaultPollInterval,
		Validity:     DefaultValidity,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type Option func(*Session)

// WithReady gates generation on required inputs (authenticated user,
// non-empty item list) being present.
func WithReady(ready func() bool) Option {
	return func(s *Session) { s.ready = ready }
}

func WithMaxRetries(n int) Option {
	return func(s *Session) { s.guard = NewGuard(n) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// EnsureIntent creates the intent at most once per session. Re-invocations
// after success return the already-created intent without touching the
// server; concurrent and repeated attempts are rejected by the guard.
func (s *Session) EnsureIntent(ctx context.Context) (Intent, error) {
	if s.ready != nil && !s.ready() {
		return Intent{}, ErrNotReady
	}

	if err := s.guard.Begin(); err != nil {
		if err == ErrAlreadyGenerated {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.has {
				return s.intent, nil
			}
		}
		return Intent{}, err
	}

	in, err := s.create(ctx)
	if err != nil {
		s.guard.Fail()
		return Intent{}, err
	}

	s.guard.Succeed()
	s.mu.Lock()
	s.intent = in
	s.has = true
	s.mu.Unlock()
	return in, nil
}

// Retry is the explicit user action: clears the guard and the stored
// intent, then generates exactly one new intent.
func (s *Session) Retry(ctx context.Context) (Intent, error) {
	s.guard.Reset()
	s.mu.Lock()
	s.has = false
	s.intent = Intent{}
	s.mu.Unlock()
	return s.EnsureIntent(ctx)
}

// PollUntilTerminal polls on a fixed interval while the status is pending
// and returns approved, rejected or expired. Cancelling ctx (navigation
// away) stops both the ticker and the countdown; the server-side work in
// flight is unaffected.
func (s *Session) PollUntilTerminal(ctx context.Context, in Intent) (string, error) {
	deadline := in.ExpiresAt
	if deadline.IsZero() {
		deadline = time.Now().Add(s.Validity)
	}

	countdown := time.NewTimer(time.Until(deadline))
	defer countdown.Stop()
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-countdown.C:
			return StatusExpired, nil
		case <-ticker.C:
			st, err := s.status(ctx, in.ExternalID)
			if err != nil {
				// transient; the next tick retries
				s.logger.Warn("status poll failed", "external_id", in.ExternalID, "err", err)
				continue
			}
			if st == StatusApproved || st == StatusRejected {
				return st, nil
			}
		}
	}
}
