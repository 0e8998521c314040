package state

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/filecrate/filecrate-go/internal/api"
)

// Generic fallback messages for the two sub-fetches.
const (
	msgFilesFailed = "could not fetch files"
	msgStatsFailed = "could not fetch statistics"
)

// ListingCache persists the last successful listing and stats snapshot for
// offline reads. Implemented by internal/cache; nil-safe via the snapshot
// field being optional.
type ListingCache interface {
	SaveSnapshot(ctx context.Context, files []string, stats Stats) error
	Purge() error
}

// Synchronizer fetches and holds the authoritative file listing and
// aggregate usage for the current session, re-synchronizing after every
// mutating operation. This resynchronize-after-mutation contract is the
// system's consistency guarantee: the client never trusts its own derived
// state over the remote authority.
type Synchronizer struct {
	mgr    *Manager
	store  *Store
	client *api.Client
	cache  ListingCache
	logger *slog.Logger

	// seq stamps each refresh cycle. A cycle only applies its results while
	// it is still the latest; results of superseded cycles are discarded
	// rather than racing to be last-write-wins.
	seq atomic.Uint64
}

// NewSynchronizer creates the synchronizer and binds the manager's
// login-refresh and logout-teardown hooks. cache may be nil.
func NewSynchronizer(mgr *Manager, store *Store, client *api.Client, cache ListingCache, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Synchronizer{
		mgr:    mgr,
		store:  store,
		client: client,
		cache:  cache,
		logger: logger,
	}

	teardown := func() {}
	if cache != nil {
		teardown = func() {
			if err := cache.Purge(); err != nil {
				logger.Warn("failed to purge listing cache", slog.String("error", err.Error()))
			}
		}
	}

	mgr.bindHooks(s.RefreshAll, teardown)

	return s
}

// RefreshAll performs, in order: profile validation (if not already done
// this session), the file-list fetch, and the stats fetch, all under the
// current session's credentials.
//
// If profile validation fails the whole sequence aborts — the manager has
// already invalidated the session and no fetch runs with an untrusted
// token. If the file-list or stats fetch fails independently, an error is
// recorded for that sub-fetch but a successful sibling fetch is kept:
// partial state is acceptable and stays visibly distinguishable through
// the per-scope errors.
//
// Entering the fetch phase clears the public-link mapping: a fresh listing
// invalidates previously minted links' relevance to the displayed state.
func (s *Synchronizer) RefreshAll(ctx context.Context) error {
	cycle := s.seq.Add(1)

	if err := s.mgr.EnsureValidated(ctx); err != nil {
		return err
	}

	s.store.BeginFetchCycle()

	prefix := s.mgr.ScopePrefix()

	filesErr := s.refreshFiles(ctx, cycle, prefix)
	statsErr := s.refreshStats(ctx, cycle)

	if filesErr == nil && statsErr == nil {
		s.writeCache(ctx)
	}

	return errors.Join(filesErr, statsErr)
}

func (s *Synchronizer) refreshFiles(ctx context.Context, cycle uint64, prefix string) error {
	names, err := s.client.ListFiles(ctx)
	if err != nil {
		if s.current(cycle) {
			s.store.SetError(ScopeFiles, api.Message(err, msgFilesFailed))
		}

		return err
	}

	if !s.current(cycle) {
		s.logger.Debug("discarding superseded file listing", slog.Uint64("cycle", cycle))
		return nil
	}

	entries := make([]FileEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, FileEntry{Name: name, ScopePrefix: prefix})
	}

	s.store.SetFiles(entries)
	s.store.ClearError(ScopeFiles)

	s.logger.Debug("file listing refreshed",
		slog.Uint64("cycle", cycle),
		slog.Int("count", len(entries)),
	)

	return nil
}

func (s *Synchronizer) refreshStats(ctx context.Context, cycle uint64) error {
	st, err := s.client.GetStats(ctx)
	if err != nil {
		if s.current(cycle) {
			s.store.SetError(ScopeStats, api.Message(err, msgStatsFailed))
		}

		return err
	}

	if !s.current(cycle) {
		s.logger.Debug("discarding superseded stats", slog.Uint64("cycle", cycle))
		return nil
	}

	s.store.SetStats(Stats{TotalFiles: st.TotalFiles, TotalSizeBytes: st.TotalSize})
	s.store.ClearError(ScopeStats)

	return nil
}

// current reports whether the given cycle is still the latest refresh.
func (s *Synchronizer) current(cycle uint64) bool {
	return s.seq.Load() == cycle
}

// writeCache persists the freshly fetched listing and stats for offline
// reads. Cache failures never affect the in-memory state.
func (s *Synchronizer) writeCache(ctx context.Context) {
	if s.cache == nil {
		return
	}

	files := s.store.Files()

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}

	if err := s.cache.SaveSnapshot(ctx, names, s.store.Stats()); err != nil {
		s.logger.Warn("failed to write listing cache", slog.String("error", err.Error()))
	}
}
