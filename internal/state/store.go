// Package state implements the client-side session and file-state
// synchronization core: the session manager, the directory synchronizer,
// and the operation coordinator. It keeps local state (token, profile,
// file listing, aggregate stats, transient public-link results) consistent
// with the remote service across user-triggered operations, each of which
// can fail independently.
package state

import (
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Scope identifies the functional area an error message is attached to,
// limiting it from clobbering unrelated state. At most one error per scope
// is visible at a time; a new attempt in the same scope replaces the
// previous error and success clears it.
type Scope string

const (
	ScopeAuth       Scope = "auth"
	ScopeUpload     Scope = "upload"
	ScopeDownload   Scope = "download"
	ScopeDelete     Scope = "delete"
	ScopePublicLink Scope = "publicLink"

	// The two sub-fetches of a refresh cycle fail independently; separate
	// scopes keep partial state visibly distinguishable (stale stats can sit
	// alongside a files error).
	ScopeFiles Scope = "files"
	ScopeStats Scope = "stats"
)

// FileEntry is one stored object belonging to the current user. Name is the
// verbatim name returned by the remote listing; ScopePrefix is the per-user
// path segment (e.g. "user_3") in deployments that scope storage paths, and
// empty otherwise.
type FileEntry struct {
	Name        string
	ScopePrefix string
}

// DisplayName returns the name shown to the user: the verbatim name with
// any owner-scope prefix stripped, NFC-normalized.
func (f FileEntry) DisplayName() string {
	name := f.Name
	if f.ScopePrefix != "" {
		name = strings.TrimPrefix(name, f.ScopePrefix+"/")
	}

	return norm.NFC.String(name)
}

// WireName returns the full storage path used in remote operations: the
// owner-scope prefix re-applied when the deployment scopes paths. Listings
// that already include the prefix pass through unchanged.
func (f FileEntry) WireName() string {
	if f.ScopePrefix == "" || strings.HasPrefix(f.Name, f.ScopePrefix+"/") {
		return f.Name
	}

	return f.ScopePrefix + "/" + f.Name
}

// Stats is the server-computed aggregate usage. The client never derives
// these from its own file list — remote truth only.
type Stats struct {
	TotalFiles     int64
	TotalSizeBytes int64
}

// PublicLink is a transiently displayed shareable link, keyed by file name.
// Entries live from the moment a link is minted until the next fetch cycle,
// the file's deletion, or logout.
type PublicLink struct {
	FileName string
	URL      string
}

// Store holds the directory state and transient UI state. It is owned by
// the synchronizer and coordinator — no other component writes it. The
// mutex exists because the watch daemon and CLI paths may share one store;
// overlapping writers are otherwise last-write-wins.
type Store struct {
	mu     sync.Mutex
	files  []FileEntry
	stats  Stats
	links  map[string]PublicLink
	errors map[Scope]string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		links:  make(map[string]PublicLink),
		errors: make(map[Scope]string),
	}
}

// Files returns a copy of the current file listing.
func (s *Store) Files() []FileEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]FileEntry, len(s.files))
	copy(out, s.files)

	return out
}

// SetFiles replaces the listing wholesale. There is no incremental patching:
// every refresh rewrites the full list from remote truth.
func (s *Store) SetFiles(files []FileEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = make([]FileEntry, len(files))
	copy(s.files, files)
}

// Stats returns the last server-reported aggregate usage.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// SetStats replaces the aggregate usage.
func (s *Store) SetStats(st Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats = st
}

// PublicLinks returns a copy of the transient public-link mapping.
func (s *Store) PublicLinks() map[string]PublicLink {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]PublicLink, len(s.links))
	for k, v := range s.links {
		out[k] = v
	}

	return out
}

// PublicLink returns the displayed link for a file name, if any.
func (s *Store) PublicLink(fileName string) (PublicLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pl, ok := s.links[fileName]

	return pl, ok
}

// SetPublicLink records a minted link, replacing any prior entry for the
// same file name.
func (s *Store) SetPublicLink(fileName, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.links[fileName] = PublicLink{FileName: fileName, URL: url}
}

// RemovePublicLink drops the displayed link for a file name, if present.
func (s *Store) RemovePublicLink(fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.links, fileName)
}

// BeginFetchCycle marks the start of a new directory fetch: previously
// minted links lose their relevance to the listing about to be displayed,
// so the mapping and the publicLink-scope error are cleared. The server-side
// links themselves remain valid.
func (s *Store) BeginFetchCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.links = make(map[string]PublicLink)
	delete(s.errors, ScopePublicLink)
}

// Error returns the visible error message for a scope, if any.
func (s *Store) Error(scope Scope) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.errors[scope]

	return msg, ok
}

// SetError records a scoped error message, replacing any prior message in
// that scope.
func (s *Store) SetError(scope Scope, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errors[scope] = msg
}

// ClearError removes the visible error for a scope.
func (s *Store) ClearError(scope Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.errors, scope)
}

// Reset wipes everything: file list, stats, public links, and all scoped
// errors. Called on logout and session invalidation.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = nil
	s.stats = Stats{}
	s.links = make(map[string]PublicLink)
	s.errors = make(map[Scope]string)
}
