// Package auth owns the users session: it exchanges credentials with the
// backend, persists the result, derives the identity and publishes the
// session state that the rest of the agent reacts to.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/visarisk/agent/internal/common"
	"github.com/visarisk/agent/internal/identity"
	"github.com/visarisk/agent/internal/models"
	"github.com/visarisk/agent/internal/sessions"
)

const (
	ResultSuccess = "success"
)

// Recorder receives the outcome of every session operation.
type Recorder interface {
	ObserveLogin(result string)
	ObserveRegistration(result string)
	ObserveLogout()
	ObserveState(state models.SessionState)
}

type Option func(*Controller)

func WithRecorder(recorder Recorder) Option {
	return func(c *Controller) {
		c.recorder = recorder
	}
}

// Controller is the single writer of the session state.
type Controller struct {
	backend  *Backend
	store    sessions.Store
	resolver identity.Resolver
	recorder Recorder

	// opLock serializes login, logout, register and restore
	opLock sync.Mutex
	state  stateContainer
}

func NewController(backend *Backend, store sessions.Store, resolver identity.Resolver, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		store:    store,
		resolver: resolver,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.state = models.UnknownState()
	return c
}

// State returns a copy of the current session state.
func (c *Controller) State() models.SessionState {
	return c.state.get()
}

// Subscribe registers fn for every later state change, delivered in order.
// The returned function stops delivery; once it returns fn is not called
// again.
//
// fn runs while the operation that published the state still holds the
// controller. From inside fn, State is safe to call but the returned
// unsubscribe function, RestoreSession, Login, Register and Logout are not:
// each of them deadlocks. Hand such work to another goroutine.
func (c *Controller) Subscribe(fn func(models.SessionState)) func() {
	return c.state.subscribe(fn)
}

func (c *Controller) Backend() *Backend {
	return c.backend
}

func (c *Controller) publish(state models.SessionState) {

	logrus.WithFields(logrus.Fields{
		"state": state.Kind.String(),
	}).Debugln("Publishing session state")

	c.state.publish(state)

	if c.recorder != nil {
		c.recorder.ObserveState(state)
	}
}

// detached keeps the values of ctx but not its cancellation, so a session
// change that completes after the caller has gone away is still committed.
func (c *Controller) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.backend.Timeout())
}

// RestoreSession seeds the state from persisted credential material. It
// must run before any access decision is made.
func (c *Controller) RestoreSession(ctx context.Context) {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	credential, err := c.store.Read()

	if err != nil {
		logrus.WithError(err).Errorln("Failed to read stored session, starting signed out")
		c.discard()
		c.publish(models.UnauthenticatedState())
		return
	}

	found := c.resolver.Resolve(credential)

	if found == nil {
		if credential != nil {
			logrus.Warnln("Stored session is not usable, starting signed out")
			c.discard()
		}
		c.backend.ClearAuthorization()
		c.publish(models.UnauthenticatedState())
		return
	}

	c.backend.SetAuthorization(credential.AccessToken)
	found = c.enrich(ctx, found)

	logrus.WithFields(logrus.Fields{
		"role": found.Role.String(),
	}).Infoln("Restored session")

	c.publish(models.AuthenticatedState(found))
}

// Login exchanges email and password for credential material. On failure
// the state is left as it was and a *models.LoginError is returned.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	previous := c.State()
	c.publish(models.PendingState())

	exchangeCtx, cancel := c.detached(ctx)
	defer cancel()

	email = strings.TrimSpace(email)

	credential, err := c.backend.ExchangeCredentials(exchangeCtx, email, password)
	if err != nil {
		return c.failLogin(previous, err)
	}

	found := c.resolver.Resolve(&credential)
	if found == nil {
		return c.failLogin(previous, &models.LoginError{
			Kind:    models.ErrMalformedResponse,
			Message: malformedMessage,
			Err:     errors.New("issued access token is not usable"),
		})
	}

	if err := c.store.Write(credential); err != nil {
		logrus.WithError(err).Errorln("Failed to persist session")
		return c.failLogin(previous, &models.LoginError{
			Kind:    models.ErrUnknown,
			Message: "Signed in, but the session could not be saved on this device.",
			Err:     err,
		})
	}

	c.backend.SetAuthorization(credential.AccessToken)
	found = c.enrich(exchangeCtx, found)

	logrus.WithFields(logrus.Fields{
		"role":           found.Role.String(),
		"correlation_id": common.CorrelationID(ctx),
	}).Infoln("Login successful")

	c.publish(models.AuthenticatedState(found))

	if c.recorder != nil {
		c.recorder.ObserveLogin(ResultSuccess)
	}

	return nil
}

func (c *Controller) failLogin(previous models.SessionState, err error) error {

	c.publish(previous)

	if c.recorder != nil {
		c.recorder.ObserveLogin(string(models.KindOf(err)))
	}

	logrus.WithError(err).WithField("kind", models.KindOf(err)).Warnln("Login failed")

	return err
}

// Register creates a new account. It never signs the user in; a
// *models.RegisterError is returned on failure.
func (c *Controller) Register(ctx context.Context, profile models.RegistrationProfile) error {

	if profile.Password != profile.ConfirmPassword {
		return c.failRegistration(&models.RegisterError{
			Kind:     models.ErrPasswordMismatch,
			Messages: []string{"Passwords do not match."},
		})
	}

	request := profile.ToRequest()

	if !common.IsValidEmail(request.Email) {
		return c.failRegistration(&models.RegisterError{
			Kind:     models.ErrValidation,
			Messages: []string{"Email: Enter a valid email address."},
			Fields: map[string][]string{
				"email": {"Enter a valid email address."},
			},
		})
	}

	c.opLock.Lock()
	defer c.opLock.Unlock()

	registerCtx, cancel := c.detached(ctx)
	defer cancel()

	if err := c.backend.Register(registerCtx, request); err != nil {
		return c.failRegistration(err)
	}

	logrus.WithField("role", request.Role).Infoln("Registration successful")

	if c.recorder != nil {
		c.recorder.ObserveRegistration(ResultSuccess)
	}

	return nil
}

func (c *Controller) failRegistration(err error) error {
	if c.recorder != nil {
		c.recorder.ObserveRegistration(string(models.KindOf(err)))
	}
	logrus.WithError(err).WithField("kind", models.KindOf(err)).Warnln("Registration failed")
	return err
}

// Logout always ends in the signed out state with nothing persisted.
func (c *Controller) Logout(ctx context.Context) {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	c.publish(models.PendingState())

	if c.backend.HasLogout() {
		credential, err := c.store.Read()
		if err == nil && credential != nil && len(credential.RefreshToken) > 0 {
			logoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
			if err := c.backend.Logout(logoutCtx, credential.RefreshToken); err != nil {
				logrus.WithError(err).Warnln("Server side logout failed, continuing locally")
			}
			cancel()
		}
	}

	c.discard()
	c.publish(models.UnauthenticatedState())

	if c.recorder != nil {
		c.recorder.ObserveLogout()
	}

	logrus.Infoln("Logged out")
}

// discard removes persisted material and the outbound authorization.
func (c *Controller) discard() {
	if err := c.store.Clear(); err != nil {
		logrus.WithError(err).Errorln("Failed to clear stored session")
	}
	c.backend.ClearAuthorization()
}

// enrich fills a missing role from the profile endpoint when configured.
func (c *Controller) enrich(ctx context.Context, found *models.Identity) *models.Identity {

	if found.HasRole() || !c.backend.HasProfile() {
		return found
	}

	profile, err := c.backend.FetchProfile(ctx)
	if err != nil {
		logrus.WithError(err).Warnln("Failed to fetch profile, role stays unknown")
		return found
	}

	enriched := found.Clone()
	enriched.Role = models.ParseRole(profile.Role)
	if len(enriched.Email) == 0 {
		enriched.Email = profile.Email
	}
	return enriched
}
