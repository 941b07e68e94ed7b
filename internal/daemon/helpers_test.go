package daemon

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/visarisk/agent/internal/auth"
	"github.com/visarisk/agent/internal/config"
	"github.com/visarisk/agent/internal/metrics"
	"github.com/visarisk/agent/internal/sessions"
)

const (
	testPassword = "correct-password"
	takenEmail   = "taken@example.com"
)

// testBackend is a minimal credential exchange service. Any email works
// with testPassword; emails starting with "parent" get the parent role.
type testBackend struct {
	server        *httptest.Server
	tokenCalls    atomic.Int32
	registerCalls atomic.Int32
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()

	b := &testBackend{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/", func(w http.ResponseWriter, r *http.Request) {
		b.tokenCalls.Add(1)

		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		if body.Password != testPassword {
			writeTestJSON(w, http.StatusUnauthorized, map[string]any{
				"detail": "No active account found with the given credentials",
			})
			return
		}

		role := "student"
		if strings.HasPrefix(body.Email, "parent") {
			role = "parent"
		}

		writeTestJSON(w, http.StatusOK, map[string]any{
			"access":  signTestToken(t, body.Email, role),
			"refresh": "refresh-" + role,
		})
	})
	mux.HandleFunc("/api/register/", func(w http.ResponseWriter, r *http.Request) {
		b.registerCalls.Add(1)

		var body struct {
			Email string `json:"email"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		if body.Email == takenEmail {
			writeTestJSON(w, http.StatusBadRequest, map[string]any{
				"email": []string{"user with this email already exists."},
			})
			return
		}

		writeTestJSON(w, http.StatusCreated, map[string]any{"email": body.Email})
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)

	return b
}

func writeTestJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func signTestToken(t *testing.T, email, role string) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-" + role,
		"email": email,
		"role":  role,
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

type testApp struct {
	t        *testing.T
	backend  *testBackend
	config   *config.Config
	server   *Server
	registry *prometheus.Registry
	http     *httptest.Server
	client   *http.Client
}

func newTestApp(t *testing.T, mutate ...func(*config.Config)) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := newTestBackend(t)

	cfg := config.DefaultConfig()
	cfg.Login.Endpoint = backend.server.URL
	cfg.Login.Base = "/api"
	cfg.Secret = "test-secret-0123456789abcdef0123456789abcdef"
	for _, fn := range mutate {
		fn(cfg)
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.New(metrics.WithRegistry(registry))

	controller := auth.NewController(
		auth.NewBackend(cfg.GetBackendConfig()),
		sessions.NewMemoryStore(),
		cfg.NewResolver(),
		auth.WithRecorder(recorder),
	)

	server, err := NewServer(cfg, controller, WithMetrics(recorder, registry))
	require.NoError(t, err)
	t.Cleanup(server.Stop)

	httpServer := httptest.NewServer(server.Router())
	t.Cleanup(httpServer.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testApp{
		t:        t,
		backend:  backend,
		config:   cfg,
		server:   server,
		registry: registry,
		http:     httpServer,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// restore settles the session the way the agent does at startup.
func (a *testApp) restore() {
	a.server.Controller.RestoreSession(a.t.Context())
}

func (a *testApp) get(path, accept string) (*http.Response, string) {
	a.t.Helper()

	req, err := http.NewRequest(http.MethodGet, a.http.URL+path, nil)
	require.NoError(a.t, err)
	req.Header.Set("Accept", accept)

	return a.do(req)
}

func (a *testApp) post(path string, form url.Values) (*http.Response, string) {
	a.t.Helper()

	req, err := http.NewRequest(http.MethodPost, a.http.URL+path, strings.NewReader(form.Encode()))
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")

	return a.do(req)
}

func (a *testApp) do(req *http.Request) (*http.Response, string) {
	a.t.Helper()

	resp, err := a.client.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)

	return resp, string(body)
}

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// csrfFrom loads a form page and returns the token it carries.
func (a *testApp) csrfFrom(path string) string {
	a.t.Helper()

	resp, body := a.get(path, "text/html")
	require.Equal(a.t, http.StatusOK, resp.StatusCode)

	match := csrfPattern.FindStringSubmatch(body)
	require.Len(a.t, match, 2, "page %s has no CSRF token", path)
	return match[1]
}

var logoutTokenPattern = regexp.MustCompile(`name="logout_token" value="([^"]+)"`)

// logoutTokenFrom loads a signed in page and returns the token its log out
// form carries.
func (a *testApp) logoutTokenFrom(path string) string {
	a.t.Helper()

	resp, body := a.get(path, "text/html")
	require.Equal(a.t, http.StatusOK, resp.StatusCode)

	match := logoutTokenPattern.FindStringSubmatch(body)
	require.Len(a.t, match, 2, "page %s has no log out form", path)
	return match[1]
}

func (a *testApp) login(email string) *http.Response {
	a.t.Helper()

	resp, _ := a.post("/login", url.Values{
		"csrf_token": {a.csrfFrom("/login")},
		"email":      {email},
		"password":   {testPassword},
	})
	require.Equal(a.t, http.StatusSeeOther, resp.StatusCode)
	return resp
}
