package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iete-tsec/ascension-registration/models"
)

// Source is the slice of the registration repository the ledger reads.
type Source interface {
	ListSummaries(ctx context.Context) ([]models.TeamSummary, error)
}

// Snapshot is a consistent view of the ledger at one point in time.
type Snapshot struct {
	Teams    []models.TeamSummary `json:"teams"`
	Count    int                  `json:"count"`
	Capacity int                  `json:"capacity"`
	Closed   bool                 `json:"closed"`
	Loading  bool                 `json:"loading"`
}

// Ledger is the process-wide cache of registered teams and the single
// source of truth for the capacity gate. All display surfaces read from
// it; the registration and moderation workflows write through it.
//
// Refresh replaces the cached list wholesale from the Source; a failed
// refresh keeps the previous (possibly stale) list. RecordLocally appends
// optimistically after a successful submission, which is correct because
// the new record's registration time is the latest.
type Ledger struct {
	source   Source
	capacity int
	logger   *slog.Logger

	mu        sync.RWMutex
	teams     []models.TeamSummary
	loading   bool
	listeners []func(Snapshot)
}

func New(source Source, capacity int, logger *slog.Logger) *Ledger {
	return &Ledger{
		source:   source,
		capacity: capacity,
		logger:   logger,
		teams:    make([]models.TeamSummary, 0),
		loading:  true,
	}
}

// OnChange registers a listener invoked with a fresh snapshot after every
// mutation. Listeners must be registered before the ledger is shared.
func (l *Ledger) OnChange(fn func(Snapshot)) {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// Refresh reloads the team list from the source. The loading flag clears
// on completion whether or not the fetch succeeded; on failure the cached
// list is left untouched, so "not loading" means "may be stale".
func (l *Ledger) Refresh(ctx context.Context) error {
	teams, err := l.source.ListSummaries(ctx)

	l.mu.Lock()
	l.loading = false
	if err != nil {
		l.mu.Unlock()
		l.logger.Error("ledger refresh failed, keeping cached teams", slog.Any("error", err))
		return fmt.Errorf("failed to refresh ledger: %w", err)
	}
	l.teams = teams
	snapshot := l.snapshotLocked()
	listeners := l.listeners
	l.mu.Unlock()

	notify(listeners, snapshot)
	return nil
}

// RecordLocally appends a newly registered team without re-fetching.
func (l *Ledger) RecordLocally(team models.TeamSummary) {
	l.mu.Lock()
	l.teams = append(l.teams, team)
	snapshot := l.snapshotLocked()
	listeners := l.listeners
	l.mu.Unlock()

	notify(listeners, snapshot)
}

func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.teams)
}

func (l *Ledger) Capacity() int {
	return l.capacity
}

func (l *Ledger) IsClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.teams) >= l.capacity
}

func (l *Ledger) Loading() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loading
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() Snapshot {
	teams := make([]models.TeamSummary, len(l.teams))
	copy(teams, l.teams)
	return Snapshot{
		Teams:    teams,
		Count:    len(teams),
		Capacity: l.capacity,
		Closed:   len(teams) >= l.capacity,
		Loading:  l.loading,
	}
}

func notify(listeners []func(Snapshot), snapshot Snapshot) {
	for _, fn := range listeners {
		fn(snapshot)
	}
}
