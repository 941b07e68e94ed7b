// Package daemon serves the local Visarisk web application: the sign in
// and sign up forms, the pages protected by the access gate and the
// operational endpoints.
package daemon

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/visarisk/agent/internal/auth"
	"github.com/visarisk/agent/internal/config"
	"github.com/visarisk/agent/internal/gate"
	"github.com/visarisk/agent/internal/metrics"
	"github.com/visarisk/agent/internal/models"
)

//go:embed static/*
var staticFiles embed.FS

const cookieSessionName = "visarisk_session"

type ServerOption func(*Server)

// WithMetrics records request metrics on m and serves gatherer on the
// metrics endpoint.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.Metrics = m
		s.Gatherer = gatherer
	}
}

func NewServer(cfg *config.Config, controller *auth.Controller, opts ...ServerOption) (*Server, error) {

	funcMap := template.FuncMap{
		"title": func(value any) string {
			text := fmt.Sprint(value)
			if len(text) == 0 {
				return text
			}
			return strings.ToUpper(text[:1]) + text[1:]
		},
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(staticFiles, "static/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	server := &Server{
		Config:         cfg,
		Controller:     controller,
		Gate:           cfg.NewGate(),
		TemplateEngine: tmpl,
		Gatherer:       prometheus.DefaultGatherer,
		StartTime:      time.Now().UTC(),
		loginLimiter: NewPerMinuteRateLimiter(
			cfg.Server.Limits.LoginRequestsPerMinute,
			cfg.Server.Limits.LoginBurst,
		),
	}

	for _, opt := range opts {
		opt(server)
	}

	return server, nil
}

// Server is the local web application bound to one session controller.
type Server struct {
	Config         *config.Config
	Controller     *auth.Controller
	Gate           *gate.Gate
	TemplateEngine *template.Template
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	StartTime      time.Time
	TotalRequests  int64

	loginLimiter *RateLimiter
	routerOnce   sync.Once
	router       *gin.Engine
	server       *http.Server
}

// Router builds the gin engine once. Tests drive it directly.
func (s *Server) Router() http.Handler {
	s.routerOnce.Do(func() {
		s.router = s.newRouter()
	})
	return s.router
}

func (s *Server) newRouter() *gin.Engine {
	router := gin.New()

	router.Use(CorrelationMiddleware())
	router.Use(gin.CustomRecovery(
		func(c *gin.Context, recovered any) {
			err, ok := recovered.(error)
			if !ok {
				err = fmt.Errorf("%v", recovered)
			}
			s.getErrorPage(c, http.StatusInternalServerError, "Internal Server Error", err)
		},
	))
	router.Use(s.requestMiddleware())
	router.Use(s.corsMiddleware())
	router.Use(sessions.Sessions(cookieSessionName, getSessionStore(s.Config.GetSecret())))

	router.SetHTMLTemplate(s.TemplateEngine)

	s.setupRoutes(router)

	return router
}

// setupRoutes configures all the HTTP routes
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/styles.css", s.getStyle)

	if s.Config.Server.Health.Enabled {
		router.GET(s.Config.Server.Health.Path, s.healthHandler)
	}

	if s.Config.Server.Ready.Enabled {
		router.GET(s.Config.Server.Ready.Path, s.readyHandler)
	}

	if s.Config.Server.Metrics.Enabled {
		router.GET(s.Config.Server.Metrics.Path, gin.WrapH(
			promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}),
		))
	}

	router.GET("/", s.getIndexPage)

	router.GET(s.Gate.LoginPath, s.getLoginPage)
	router.POST(s.Gate.LoginPath, s.loginLimiter.Middleware(s.onLoginLimited), s.postLogin)

	router.GET("/register", s.getRegisterPage)
	router.POST("/register", s.postRegister)

	router.GET("/logout", s.logout)
	router.POST("/logout", s.logout)

	router.GET("/logs", s.getLogs)

	api := router.Group("/api/v1")
	{
		api.GET("/session", s.getSession)
		api.GET("/logs", s.getLogs)
	}

	router.GET("/dashboard/student",
		s.RequireSession(models.RoleStudent),
		s.getDashboardPage(models.RoleStudent, "Student dashboard"))
	router.GET("/dashboard/parent",
		s.RequireSession(models.RoleParent),
		s.getDashboardPage(models.RoleParent, "Parent dashboard"))

	router.GET("/assessment", s.RequireSession(), s.getAssessmentPage)
	router.GET("/trends", s.RequireSession(), s.getTrendsPage)

	router.NoRoute(s.getNotFoundPage)
}

// Start initializes and starts the web service
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	addr := s.Config.GetServerAddress()

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.Config.Server.Limits.ReadTimeout,
		WriteTimeout: s.Config.Server.Limits.WriteTimeout,
		IdleTimeout:  s.Config.Server.Limits.IdleTimeout,
	}

	s.server = server

	errChan := make(chan error, 1)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait a moment to see if the server fails to start
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start server: %w", err)
	case <-time.After(100 * time.Millisecond):
		logrus.WithField("address", s.Config.GetLocalServerUrl()).Info("Web service started")
		return nil
	}
}

func (s *Server) Stop() {
	s.loginLimiter.Stop()

	if s.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Server shutdown")
	}
	logrus.Info("Web service stopped")
}

func (s *Server) getStyle(c *gin.Context) {
	c.FileFromFS("static/styles.css", http.FS(staticFiles))
}

// getSessionStore keeps the form state (CSRF token, requested location) in
// a signed cookie. The app is served over plain http on localhost so the
// cookie cannot be Secure.
func getSessionStore(secret string) sessions.Store {
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	})
	return store
}
