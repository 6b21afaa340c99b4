package checkoutflow

import (
	"errors"
	"sync"
)

// Guard serializes intent generation for one checkout session. Mount
// effects, timer ticks and user clicks can all race to trigger generation;
// only the first caller through Begin proceeds. Modeled as a small state
// machine so "completed and in progress at the same time" is
// unrepresentable.
type State int

const (
	StateIdle State = iota
	StateInFlight
	StateDone
)

const DefaultMaxRetries = 3

var (
	ErrGenerationInFlight = errors.New("intent generation already in progress")
	ErrAlreadyGenerated   = errors.New("intent already generated for this session")
	ErrAlreadyAttempted   = errors.New("intent generation already attempted")
	ErrMaxRetries         = errors.New("max intent generation retries reached")
	ErrNotReady           = errors.New("required checkout inputs missing")
)

type Guard struct {
	mu         sync.Mutex
	state      State
	attempted  bool
	retries    int
	maxRetries int
}

func NewGuard(maxRetries int) *Guard {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Guard{maxRetries: maxRetries}
}

// Begin claims the session for one generation attempt. It fails unless the
// session is idle, unattempted and under the retry cap.
func (g *Guard) Begin() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StateInFlight:
		return ErrGenerationInFlight
	case StateDone:
		return ErrAlreadyGenerated
	}
	if g.attempted {
		return ErrAlreadyAttempted
	}
	if g.retries >= g.maxRetries {
		return ErrMaxRetries
	}

	g.state = StateInFlight
	g.attempted = true
	return nil
}

func (g *Guard) Succeed() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateDone
}

// Fail returns the session to idle and clears the attempted flag so a
// future automatic retry may run, counting against the cap.
func (g *Guard) Fail() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateIdle
	g.attempted = false
	g.retries++
}

// Reset is the user-initiated retry: the only sanctioned way to force
// regeneration after Done or after the cap was hit.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateIdle
	g.attempted = false
	g.retries = 0
}

func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Guard) Retries() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.retries
}
