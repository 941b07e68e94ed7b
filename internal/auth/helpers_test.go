package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/visarisk/agent/internal/identity"
	"github.com/visarisk/agent/internal/models"
	"github.com/visarisk/agent/internal/sessions"
)

// fakeBackend stands in for the remote credential exchange service.
type fakeBackend struct {
	t      *testing.T
	server *httptest.Server

	tokenHandler    http.HandlerFunc
	registerHandler http.HandlerFunc

	tokenCalls    atomic.Int32
	registerCalls atomic.Int32
	profileCalls  atomic.Int32
	logoutCalls   atomic.Int32

	lock          sync.Mutex
	lastAuth      string
	lastClientID  string
	lastRegister  models.RegisterRequest
	lastLogoutRef string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	f := &fakeBackend{t: t}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		f.lock.Lock()
		f.lastClientID = r.Header.Get("X-Client-ID")
		handler := f.tokenHandler
		f.lock.Unlock()
		handler(w, r)
	})
	mux.HandleFunc("/api/register/", func(w http.ResponseWriter, r *http.Request) {
		f.registerCalls.Add(1)
		var req models.RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lock.Lock()
		f.lastRegister = req
		handler := f.registerHandler
		f.lock.Unlock()
		if handler == nil {
			writeJSON(w, http.StatusCreated, map[string]any{"email": req.Email})
			return
		}
		handler(w, r)
	})
	mux.HandleFunc("/api/profile/", func(w http.ResponseWriter, r *http.Request) {
		f.profileCalls.Add(1)
		f.lock.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		f.lock.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"email": "profile@example.com",
			"role":  "parent",
		})
	})
	mux.HandleFunc("/api/logout/", func(w http.ResponseWriter, r *http.Request) {
		f.logoutCalls.Add(1)
		var req models.LogoutRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lock.Lock()
		f.lastLogoutRef = req.Refresh
		f.lock.Unlock()
		w.WriteHeader(http.StatusResetContent)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	f.respondTokens(signToken(t, jwt.MapClaims{"role": "student", "email": "sam@example.com"}), "R1")

	return f
}

func (f *fakeBackend) setTokenHandler(handler http.HandlerFunc) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.tokenHandler = handler
}

func (f *fakeBackend) setRegisterHandler(handler http.HandlerFunc) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.registerHandler = handler
}

func (f *fakeBackend) respondTokens(access, refresh string) {
	f.setTokenHandler(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":  access,
			"refreshToken": refresh,
		})
	})
}

func (f *fakeBackend) respondStatus(status int, body any) {
	f.setTokenHandler(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, body)
	})
}

func (f *fakeBackend) config() BackendConfig {
	return BackendConfig{
		BaseURL:  f.server.URL + "/api",
		Timeout:  2 * time.Second,
		ClientID: "test-client",
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

type recordedStates struct {
	lock   sync.Mutex
	states []models.SessionState
}

func (r *recordedStates) observe(state models.SessionState) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.states = append(r.states, state)
}

func (r *recordedStates) kinds() []models.StateKind {
	r.lock.Lock()
	defer r.lock.Unlock()
	kinds := make([]models.StateKind, 0, len(r.states))
	for _, state := range r.states {
		kinds = append(kinds, state.Kind)
	}
	return kinds
}

func newTestController(t *testing.T, backend BackendConfig, opts ...Option) (*Controller, *sessions.MemoryStore) {
	t.Helper()
	store := sessions.NewMemoryStore()
	resolver := identity.NewClaimsResolver(identity.DefaultRoleClaim, identity.DefaultEmailClaim, false)
	return NewController(NewBackend(backend), store, resolver, opts...), store
}

func (f *fakeBackend) clientID() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.lastClientID
}

func (f *fakeBackend) authorization() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.lastAuth
}

func (f *fakeBackend) registered() models.RegisterRequest {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.lastRegister
}

func (f *fakeBackend) logoutRefresh() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.lastLogoutRef
}
