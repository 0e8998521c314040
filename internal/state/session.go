package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/filecrate/filecrate-go/internal/api"
	"github.com/filecrate/filecrate-go/internal/tokenstore"
)

// Phase is the session lifecycle state. The only transitions are
// Unauthenticated -> Validating -> Active, and back to Unauthenticated on
// logout or profile-validation failure.
type Phase int

const (
	// Unauthenticated: no token, or the token was invalidated.
	Unauthenticated Phase = iota
	// Validating: a token exists (restored or freshly issued) but has not
	// been validated against the profile endpoint. It is not trusted yet;
	// file-manager state must not be shown.
	Validating
	// Active: profile validation succeeded this session.
	Active
)

func (p Phase) String() string {
	switch p {
	case Validating:
		return "validating"
	case Active:
		return "active"
	default:
		return "unauthenticated"
	}
}

// ErrNotAuthenticated is returned when a file operation is attempted
// outside the Active phase.
var ErrNotAuthenticated = errors.New("state: not authenticated")

// Generic per-scope fallback messages, used when the server error carries
// no structured detail.
const (
	msgRegisterFailed = "registration failed"
	msgLoginFailed    = "login failed"
)

// Session is the authenticated identity held for one logged-in user.
// UserID and Email are defined only after the token has been validated
// against the profile endpoint.
type Session struct {
	Token  string
	UserID int64
	Email  string
}

// hooks are bound by the synchronizer: refresh runs the full directory
// synchronization after a successful login, teardown wipes dependent
// durable state (listing cache) on logout/invalidation.
type hooks struct {
	refresh  func(context.Context) error
	teardown func()
}

// Manager owns the session: the token, its persistence across restarts,
// and the derived user identity. It is the dependency root — the
// synchronizer and coordinator are handed a *Manager rather than reaching
// for process-global state.
type Manager struct {
	client      *api.Client
	store       *Store
	tokenPath   string
	scopedPaths bool
	logger      *slog.Logger

	mu      sync.Mutex
	phase   Phase
	session Session
	hooks   hooks
}

// NewManager creates a session manager persisting its token at tokenPath.
// scopedPaths selects the per-user path scoping deployment variant. The
// returned manager is the api.TokenSource for authenticated calls.
func NewManager(store *Store, tokenPath string, scopedPaths bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:       store,
		tokenPath:   tokenPath,
		scopedPaths: scopedPaths,
		logger:      logger,
	}
}

// BindClient attaches the API client. Split from NewManager because the
// client needs the manager as its TokenSource.
func (m *Manager) BindClient(client *api.Client) {
	m.client = client
}

// bindHooks is called by the synchronizer to wire login-triggered refresh
// and logout-triggered cache teardown without inverting the dependency
// direction (manager stays the root).
func (m *Manager) bindHooks(refresh func(context.Context) error, teardown func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = hooks{refresh: refresh, teardown: teardown}
}

// Token implements api.TokenSource.
func (m *Manager) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Token == "" {
		return "", ErrNotAuthenticated
	}

	return m.session.Token, nil
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.phase
}

// Session returns a copy of the current session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session
}

// ScopePrefix returns the per-user storage path prefix, or "" when the
// deployment does not scope paths or the profile is not yet validated.
func (m *Manager) ScopePrefix() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.scopePrefixLocked()
}

func (m *Manager) scopePrefixLocked() string {
	if !m.scopedPaths || m.phase != Active {
		return ""
	}

	return fmt.Sprintf("user_%d", m.session.UserID)
}

// Restore reads a persisted token at startup. The token is not yet trusted:
// the phase becomes Validating and file-manager state must not be shown
// until profile validation succeeds.
func (m *Manager) Restore() error {
	tok, err := tokenstore.Load(m.tokenPath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if tok == "" {
		m.phase = Unauthenticated
		m.logger.Debug("no persisted token, starting unauthenticated")

		return nil
	}

	m.session = Session{Token: tok}
	m.phase = Validating
	m.logger.Debug("restored persisted token, pending validation")

	return nil
}

// Register creates a new account. On failure an auth-scope error is
// surfaced with the remote detail (or a generic fallback) and any prior
// session is left untouched. Registration does not log in by itself.
func (m *Manager) Register(ctx context.Context, email, password string) error {
	if err := m.client.Register(ctx, email, password); err != nil {
		m.store.SetError(ScopeAuth, api.Message(err, msgRegisterFailed))

		return err
	}

	m.store.ClearError(ScopeAuth)

	return nil
}

// Login authenticates with the service. On success the returned token is
// stored and persisted, and a full synchronization runs (which performs the
// profile validation that moves the session to Active). On failure an
// auth-scope error is surfaced and any prior session is left untouched.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	tok, err := m.client.Login(ctx, email, password)
	if err != nil {
		m.store.SetError(ScopeAuth, api.Message(err, msgLoginFailed))

		return err
	}

	if err := tokenstore.Save(m.tokenPath, tok); err != nil {
		return err
	}

	m.mu.Lock()
	m.session = Session{Token: tok}
	m.phase = Validating
	refresh := m.hooks.refresh
	m.mu.Unlock()

	m.store.ClearError(ScopeAuth)
	m.logger.Info("login successful, starting full synchronization")

	if refresh != nil {
		if err := refresh(ctx); err != nil {
			return err
		}
	}

	return nil
}

// EnsureValidated fetches the profile using the stored token unless it was
// already validated this session. Any failure — expired token, network
// error — means the token can no longer be trusted: the session is
// invalidated and the caller is routed to the unauthenticated state.
func (m *Manager) EnsureValidated(ctx context.Context) error {
	m.mu.Lock()

	switch m.phase {
	case Active:
		m.mu.Unlock()
		return nil
	case Unauthenticated:
		m.mu.Unlock()
		return ErrNotAuthenticated
	case Validating:
	}

	m.mu.Unlock()

	user, err := m.client.Me(ctx)
	if err != nil {
		m.logger.Warn("profile validation failed, invalidating session",
			slog.String("error", err.Error()),
		)
		m.invalidate()

		return fmt.Errorf("state: validating session: %w", err)
	}

	m.mu.Lock()
	m.session.UserID = user.ID
	m.session.Email = user.Email
	m.phase = Active
	m.mu.Unlock()

	m.store.ClearError(ScopeAuth)
	m.logger.Debug("profile validated",
		slog.Int64("user_id", user.ID),
	)

	return nil
}

// Logout clears the token, identity, and all dependent state — file list,
// stats, public links, transient errors, listing cache — unconditionally
// and synchronously. No remote call is made; logging out twice is fine.
func (m *Manager) Logout() error {
	m.invalidate()
	m.logger.Info("logged out")

	return nil
}

// invalidate is the shared teardown for logout and profile-validation
// failure: token gone from memory and durable storage, store wiped,
// phase back to Unauthenticated.
func (m *Manager) invalidate() {
	m.mu.Lock()
	m.session = Session{}
	m.phase = Unauthenticated
	teardown := m.hooks.teardown
	m.mu.Unlock()

	if err := tokenstore.Clear(m.tokenPath); err != nil {
		// The in-memory session is already gone; a leftover token file will
		// fail validation on next start.
		m.logger.Warn("failed to clear persisted token", slog.String("error", err.Error()))
	}

	m.store.Reset()

	if teardown != nil {
		teardown()
	}
}
