// Package sync keeps the inbox reconciled with the server in the
// background and reports the outcome to the Bubble Tea runtime.
package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shopnotify/internal/api"
	"github.com/nhle/shopnotify/internal/clock"
	"github.com/nhle/shopnotify/internal/inbox"
)

// SyncState represents the current state of the resync loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the state of the last reconciliation.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// ResultMsg is a tea.Msg sent when a reconciliation completes.
type ResultMsg struct {
	// Full is true when the page was refetched, false for stats only.
	Full      bool
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the server rejects the access token.
type AuthErrorMsg struct {
	Message string
}

// fetchTimeout is the maximum time allowed for a single reconciliation.
const fetchTimeout = 30 * time.Second

// Target is what the Resyncer reconciles. *inbox.Inbox satisfies it.
type Target interface {
	FetchNotifications(ctx context.Context, p inbox.FetchParams) error
	RefreshStats(ctx context.Context) error
}

// Resyncer corrects drift between the local aggregate and the server. It
// loads the page once on Start, refreshes stats every interval and
// refetches the page on demand.
type Resyncer struct {
	target    Target
	interval  time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	status    SyncStatus
	resultCh  chan ResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// Option configures a Resyncer.
type Option func(*Resyncer)

// WithClock sets the clock that schedules the periodic refresh.
func WithClock(c clock.Clock) Option {
	return func(r *Resyncer) {
		r.clock = c
	}
}

// New creates a Resyncer. An interval of zero disables the periodic stats
// refresh; Refresh still works.
func New(target Target, interval time.Duration, logger *slog.Logger, opts ...Option) *Resyncer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Resyncer{
		target:    target,
		interval:  interval,
		clock:     clock.Real{},
		logger:    logger.With("component", "resync"),
		resultCh:  make(chan ResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start returns a tea.Cmd that starts the resync goroutine and subscribes
// to results. It returns nil if already running.
func (r *Resyncer) Start() tea.Cmd {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	go r.loop()

	return r.waitForResult()
}

// Stop halts the resync goroutine.
func (r *Resyncer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	close(r.stopCh)
	r.running = false
}

// Refresh triggers an immediate full refetch. Triggers that arrive while
// one is pending are coalesced.
func (r *Resyncer) Refresh() tea.Cmd {
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
	return nil
}

// Status returns the state of the last reconciliation.
func (r *Resyncer) Status() SyncStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Resyncer) loop() {
	tick := make(chan struct{}, 1)
	var timer clock.Timer
	// arm schedules the next periodic refresh, measured from the end of
	// the previous one.
	arm := func() {
		if r.interval <= 0 {
			return
		}
		timer = r.clock.AfterFunc(r.interval, func() {
			select {
			case tick <- struct{}{}:
			default:
			}
		})
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	// Load the first page immediately.
	r.reconcile(true)
	arm()

	for {
		select {
		case <-r.stopCh:
			return
		case <-tick:
			r.reconcile(false)
			arm()
		case <-r.triggerCh:
			r.reconcile(true)
		}
	}
}

// reconcile runs one reconciliation and reports it on the result channel.
func (r *Resyncer) reconcile(full bool) {
	r.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	var err error
	if full {
		err = r.target.FetchNotifications(ctx, inbox.FetchParams{})
	} else {
		err = r.target.RefreshStats(ctx)
	}

	if err != nil {
		r.setStatus(SyncError, err)
		r.logger.Warn("reconciliation failed", "full", full, "error", err)

		// Detect auth errors and emit a specific message.
		if api.IsAuthError(err) {
			r.sendResult(ResultMsg{
				Full:  full,
				Error: err,
				AuthError: &AuthErrorMsg{
					Message: fmt.Sprintf("session expired: %v. Run 'shopnotify login'.", err),
				},
			})
			return
		}

		r.sendResult(ResultMsg{Full: full, Error: err})
		return
	}

	r.setStatus(SyncIdle, nil)
	r.sendResult(ResultMsg{Full: full})
}

func (r *Resyncer) setStatus(state SyncState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.State = state
	r.status.Error = err
	if state == SyncIdle && err == nil {
		r.status.LastSync = r.clock.Now()
	}
}

// sendResult sends a ResultMsg on the result channel without blocking.
func (r *Resyncer) sendResult(msg ResultMsg) {
	select {
	case r.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the loop
	}
}

func (r *Resyncer) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-r.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next result.
// Call it after handling a ResultMsg to keep listening.
func (r *Resyncer) WaitForNextResult() tea.Cmd {
	return r.waitForResult()
}
