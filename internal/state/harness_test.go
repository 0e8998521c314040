package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/filecrate/filecrate-go/internal/api"
	"github.com/filecrate/filecrate-go/internal/tokenstore"
)

// fakeService is an in-memory stand-in for the storage service. Handlers can
// be forced to fail per endpoint to exercise the independent-failure paths.
type fakeService struct {
	mu sync.Mutex

	token    string
	email    string
	password string
	userID   int64

	files     []string
	totalSize int64

	failMe     bool
	failFiles  bool
	failStats  bool
	failUpload bool

	uploadCalls int
	deleteCalls int
	linkCalls   int
	meCalls     int
	listCalls   int
}

func newFakeService() *fakeService {
	return &fakeService{
		token:    "tok-1",
		email:    "user@example.com",
		password: "pw",
		userID:   3,
	}
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", f.handleRegister)
	mux.HandleFunc("POST /auth/login", f.handleLogin)
	mux.HandleFunc("GET /auth/me", f.handleMe)
	mux.HandleFunc("GET /files/", f.handleList)
	mux.HandleFunc("GET /files/stats", f.handleStats)
	mux.HandleFunc("POST /files/upload", f.handleUpload)
	mux.HandleFunc("GET /files/download/", f.handleDownload)
	mux.HandleFunc("DELETE /files/", f.handleDelete)
	mux.HandleFunc("POST /files/", f.handleLink)

	return mux
}

func (f *fakeService) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return r.Header.Get("Authorization") == "Bearer "+f.token
}

func detail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}

func (f *fakeService) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email string `json:"email"`
	}

	_ = json.NewDecoder(r.Body).Decode(&creds)

	f.mu.Lock()
	defer f.mu.Unlock()

	if creds.Email == f.email {
		detail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (f *fakeService) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	_ = json.NewDecoder(r.Body).Decode(&creds)

	f.mu.Lock()
	defer f.mu.Unlock()

	if creds.Email != f.email || creds.Password != f.password {
		detail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"access_token": f.token, "token_type": "bearer"})
}

func (f *fakeService) handleMe(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.meCalls++
	fail := f.failMe
	f.mu.Unlock()

	if fail || !f.authorized(r) {
		detail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":    f.userID,
		"email": f.email,
		"files": f.files,
	})
}

func (f *fakeService) handleList(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		detail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++

	if f.failFiles {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if f.files == nil {
		_, _ = w.Write([]byte("[]"))
		return
	}

	_ = json.NewEncoder(w).Encode(f.files)
}

func (f *fakeService) handleStats(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		detail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failStats {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]int64{
		"total_files": int64(len(f.files)),
		"total_size":  f.totalSize,
	})
}

func (f *fakeService) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		detail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		detail(w, http.StatusBadRequest, "Malformed upload")
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		detail(w, http.StatusBadRequest, "Missing file part")
		return
	}
	defer file.Close()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploadCalls++

	if f.failUpload {
		detail(w, http.StatusInternalServerError, "Storage quota exceeded")
		return
	}

	name := fmt.Sprintf("user_%d/%s", f.userID, hdr.Filename)
	f.files = append(f.files, name)
	f.totalSize += hdr.Size

	w.WriteHeader(http.StatusOK)
}

func (f *fakeService) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		detail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/files/download/")

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, stored := range f.files {
		if stored == name {
			_, _ = w.Write([]byte("content of " + name))
			return
		}
	}

	detail(w, http.StatusNotFound, "File not found")
}

func (f *fakeService) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		detail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/files/")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleteCalls++

	for i, stored := range f.files {
		if stored == name {
			f.files = append(f.files[:i], f.files[i+1:]...)
			w.WriteHeader(http.StatusNoContent)

			return
		}
	}

	detail(w, http.StatusNotFound, "File not found")
}

func (f *fakeService) handleLink(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		detail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/files/"), "/public-link")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.linkCalls++

	for _, stored := range f.files {
		if stored == name {
			_ = json.NewEncoder(w).Encode(map[string]string{
				"filename":     name,
				"public_token": "pub-abc",
				"public_url":   "http://service/public/pub-abc",
			})

			return
		}
	}

	detail(w, http.StatusNotFound, "File not found")
}

// recordingCache records snapshot writes and purges for assertions.
type recordingCache struct {
	mu        sync.Mutex
	snapshots [][]string
	purges    int
}

func (c *recordingCache) SaveSnapshot(_ context.Context, files []string, _ Stats) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := make([]string, len(files))
	copy(snap, files)
	c.snapshots = append(c.snapshots, snap)

	return nil
}

func (c *recordingCache) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purges++

	return nil
}

// testEnv wires a full state core against a fakeService.
type testEnv struct {
	svc   *fakeService
	srv   *httptest.Server
	store *Store
	mgr   *Manager
	sync  *Synchronizer
	coord *Coordinator
	cache *recordingCache

	tokenPath string
}

// newTestEnv builds the wired components. scopedPaths selects the per-user
// prefix deployment variant.
func newTestEnv(t *testing.T, scopedPaths bool) *testEnv {
	t.Helper()

	svc := newFakeService()
	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)

	store := NewStore()
	tokenPath := tokenstore.Path(t.TempDir())
	mgr := NewManager(store, tokenPath, scopedPaths, slog.Default())

	client := api.NewClient(srv.URL, http.DefaultClient, mgr, slog.Default())
	mgr.BindClient(client)

	cache := &recordingCache{}
	sync := NewSynchronizer(mgr, store, client, cache, slog.Default())
	coord := NewCoordinator(mgr, store, sync, client, slog.Default())

	return &testEnv{
		svc:       svc,
		srv:       srv,
		store:     store,
		mgr:       mgr,
		sync:      sync,
		coord:     coord,
		cache:     cache,
		tokenPath: tokenPath,
	}
}

// login performs a full login through the manager, failing the test on error.
func (e *testEnv) login(t *testing.T) {
	t.Helper()

	if err := e.mgr.Login(context.Background(), e.svc.email, e.svc.password); err != nil {
		t.Fatalf("login: %v", err)
	}
}
