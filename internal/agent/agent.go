// Package agent wires the session controller, the local web application
// and the metrics registry together.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/visarisk/agent/internal/auth"
	"github.com/visarisk/agent/internal/config"
	"github.com/visarisk/agent/internal/daemon"
	"github.com/visarisk/agent/internal/metrics"
	"github.com/visarisk/agent/internal/models"
	"github.com/visarisk/agent/internal/sessions"
)

const restoreTimeout = 5 * time.Second

// Session is a controller bound to the configured store. The CLI commands
// that do not serve pages use it directly.
type Session struct {
	Controller *auth.Controller
	Store      sessions.TrackedStore
}

func NewSession(cfg *config.Config, opts ...auth.Option) (*Session, error) {
	store, err := cfg.NewSessionStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	controller := auth.NewController(
		auth.NewBackend(cfg.GetBackendConfig()),
		store,
		cfg.NewResolver(),
		opts...,
	)

	return &Session{
		Controller: controller,
		Store:      store,
	}, nil
}

// Restore consults the store once. It never fails; an unusable record
// leaves the session unauthenticated.
func (s *Session) Restore(ctx context.Context) models.SessionState {
	ctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	s.Controller.RestoreSession(ctx)
	return s.Controller.State()
}

// Agent is a running local web application.
type Agent struct {
	*Session
	Server   *daemon.Server
	Registry *prometheus.Registry

	unsubscribe func()
}

func NewAgent(cfg *config.Config) (*Agent, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	recorder := metrics.New(
		metrics.WithRegistry(registry),
		metrics.WithNamespace(cfg.Server.Metrics.Namespace),
	)

	session, err := NewSession(cfg, auth.WithRecorder(recorder))
	if err != nil {
		return nil, err
	}

	server, err := daemon.NewServer(cfg, session.Controller, daemon.WithMetrics(recorder, registry))
	if err != nil {
		return nil, err
	}

	return &Agent{
		Session:  session,
		Server:   server,
		Registry: registry,
	}, nil
}

// StartWebService restores the persisted session and serves the local web
// application until Stop is called.
func StartWebService(cfg *config.Config) (*Agent, error) {
	agent, err := NewAgent(cfg)
	if err != nil {
		return nil, err
	}

	agent.unsubscribe = agent.Controller.Subscribe(func(state models.SessionState) {
		logrus.WithField("state", state.Kind.String()).Info("Session state changed")
	})

	// Serve first so the gate can show the loading page while restoring.
	if err := agent.Server.Start(); err != nil {
		agent.unsubscribe()
		return nil, err
	}

	state := agent.Restore(context.Background())

	logrus.WithFields(logrus.Fields{
		"state":   state.Kind.String(),
		"backend": cfg.GetLoginServerUrl(),
		"url":     cfg.GetLocalServerUrl(),
	}).Info("Agent ready")

	return agent, nil
}

func (a *Agent) Stop() {
	a.Server.Stop()
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}
