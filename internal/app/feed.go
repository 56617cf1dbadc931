package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shopnotify/internal/inbox"
)

// snapshotMsg carries the latest inbox state to the UI.
type snapshotMsg struct {
	snap inbox.Snapshot
}

// snapshotFeed hands inbox snapshots to the Bubble Tea runtime. Only the
// newest pending snapshot is kept, so a burst of pushes costs one redraw.
// Snapshots are taken under the inbox lock but published after it is
// released, so one can arrive after a newer one; those are dropped by Seq.
type snapshotFeed struct {
	mu   sync.Mutex
	ch   chan inbox.Snapshot
	last uint64
}

func newSnapshotFeed() *snapshotFeed {
	return &snapshotFeed{ch: make(chan inbox.Snapshot, 1)}
}

// publish replaces any undelivered snapshot with s unless s is older than
// the last one published. Safe to call from any goroutine.
func (f *snapshotFeed) publish(s inbox.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s.Seq != 0 && s.Seq <= f.last {
		return
	}
	f.last = s.Seq

	select {
	case <-f.ch:
	default:
	}
	f.ch <- s
}

// wait returns a tea.Cmd that blocks for the next snapshot. Re-issue it
// after handling each snapshotMsg.
func (f *snapshotFeed) wait() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{snap: <-f.ch}
	}
}
