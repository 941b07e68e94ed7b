package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/visarisk/agent/internal/common"
	"github.com/visarisk/agent/internal/models"
)

const (
	DefaultTokenPath    = "/token/"
	DefaultRegisterPath = "/register/"
	DefaultTimeout      = 10 * time.Second
)

const (
	loginFailedMessage        = "Login failed. Please check your credentials."
	registrationFailedMessage = "Registration failed. Please try again."
	unreachableMessage        = "Unable to reach the login server. Check your connection and try again."
	serverFailedMessage       = "The login server is unavailable. Please try again later."
	malformedMessage          = "The login server returned a response that could not be understood."
)

type BackendConfig struct {
	// BaseURL is the API root, e.g. http://127.0.0.1:8000/api
	BaseURL      string
	TokenPath    string
	RegisterPath string
	// ProfilePath and LogoutPath are optional.
	ProfilePath string
	LogoutPath  string
	Timeout     time.Duration
	ClientID    string
}

// Backend talks to the remote credential exchange service. It owns the
// bearer authorization applied to every authenticated request.
type Backend struct {
	config BackendConfig
	client *resty.Client

	lock  sync.RWMutex
	token string
}

func NewBackend(cfg BackendConfig) *Backend {
	return NewBackendWithClient(cfg, resty.New())
}

func NewBackendWithClient(cfg BackendConfig, client *resty.Client) *Backend {

	if len(cfg.TokenPath) == 0 {
		cfg.TokenPath = DefaultTokenPath
	}
	if len(cfg.RegisterPath) == 0 {
		cfg.RegisterPath = DefaultRegisterPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.ClientID) == 0 {
		cfg.ClientID = common.GetClientIdentifier().String()
	}

	client.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", common.GetUserAgent()).
		SetHeader("X-Client-ID", cfg.ClientID)

	return &Backend{
		config: cfg,
		client: client,
	}
}

func (b *Backend) Timeout() time.Duration {
	return b.config.Timeout
}

func (b *Backend) HasProfile() bool {
	return len(b.config.ProfilePath) > 0
}

func (b *Backend) HasLogout() bool {
	return len(b.config.LogoutPath) > 0
}

// SetAuthorization makes all later requests carry the access credential.
func (b *Backend) SetAuthorization(accessToken string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.token = accessToken
}

func (b *Backend) ClearAuthorization() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.token = ""
}

// Authorization returns the Authorization header value currently applied,
// or "" when signed out.
func (b *Backend) Authorization() string {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if len(b.token) == 0 {
		return ""
	}
	return "Bearer " + b.token
}

// Request returns a request builder for the backend API that carries the
// current authorization, if any.
func (b *Backend) Request(ctx context.Context) *resty.Request {
	req := b.newRequest(ctx)

	b.lock.RLock()
	token := b.token
	b.lock.RUnlock()

	if len(token) > 0 {
		req.SetAuthToken(token)
	}
	return req
}

func (b *Backend) newRequest(ctx context.Context) *resty.Request {
	req := b.client.R().SetContext(ctx)
	if id := common.CorrelationID(ctx); len(id) > 0 {
		req.SetHeader("X-Correlation-ID", id)
	}
	return req
}

// ExchangeCredentials posts the users email and password to the token
// endpoint. Errors are always *models.LoginError.
func (b *Backend) ExchangeCredentials(ctx context.Context, email, password string) (models.Credential, error) {

	resp, err := b.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.TokenRequest{
			Email:    email,
			Password: password,
		}).
		Post(b.config.TokenPath)

	if err != nil {
		logrus.WithError(err).WithField("path", b.config.TokenPath).Errorln("Failed to reach credential exchange endpoint")
		return models.Credential{}, &models.LoginError{
			Kind:    models.ErrNetwork,
			Message: unreachableMessage,
			Err:     err,
		}
	}

	status := resp.StatusCode()

	if resp.IsSuccess() {
		var tokens models.TokenResponse
		if err := json.Unmarshal(resp.Body(), &tokens); err != nil {
			return models.Credential{}, &models.LoginError{
				Kind:       models.ErrMalformedResponse,
				Message:    malformedMessage,
				StatusCode: status,
				Err:        fmt.Errorf("failed to decode token response: %w", err),
			}
		}

		credential := tokens.ToCredential()
		if credential.IsZero() {
			return models.Credential{}, &models.LoginError{
				Kind:       models.ErrMalformedResponse,
				Message:    malformedMessage,
				StatusCode: status,
				Err:        fmt.Errorf("token response did not contain an access token"),
			}
		}

		return credential, nil
	}

	body := parseErrorBody(resp.Body())

	logrus.WithFields(logrus.Fields{
		"status": status,
		"detail": body.Detail,
	}).Warnln("Credential exchange was rejected")

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.Credential{}, &models.LoginError{
			Kind:       models.ErrInvalidCredentials,
			Message:    body.Message(loginFailedMessage),
			StatusCode: status,
		}
	case status >= http.StatusInternalServerError:
		return models.Credential{}, &models.LoginError{
			Kind:       models.ErrServer,
			Message:    body.Message(serverFailedMessage),
			StatusCode: status,
		}
	default:
		return models.Credential{}, &models.LoginError{
			Kind:       models.ErrUnknown,
			Message:    body.Message(loginFailedMessage),
			StatusCode: status,
		}
	}
}

// Register posts a new account. Errors are always *models.RegisterError.
func (b *Backend) Register(ctx context.Context, request models.RegisterRequest) error {

	resp, err := b.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		Post(b.config.RegisterPath)

	if err != nil {
		logrus.WithError(err).WithField("path", b.config.RegisterPath).Errorln("Failed to reach registration endpoint")
		return &models.RegisterError{
			Kind:     models.ErrNetwork,
			Messages: []string{unreachableMessage},
			Err:      err,
		}
	}

	if resp.IsSuccess() {
		return nil
	}

	status := resp.StatusCode()
	body := parseErrorBody(resp.Body())

	logrus.WithFields(logrus.Fields{
		"status": status,
		"fields": len(body.Fields),
	}).Warnln("Registration was rejected")

	switch {
	case status >= http.StatusInternalServerError:
		return &models.RegisterError{
			Kind:       models.ErrServer,
			Messages:   []string{body.Message(serverFailedMessage)},
			StatusCode: status,
		}
	case status >= http.StatusBadRequest && len(body.Fields) > 0:
		return &models.RegisterError{
			Kind:       models.ErrValidation,
			Messages:   body.FieldMessages(),
			Fields:     body.Fields,
			StatusCode: status,
		}
	case status == http.StatusBadRequest && len(body.Detail) > 0:
		return &models.RegisterError{
			Kind:       models.ErrValidation,
			Messages:   []string{body.Detail},
			StatusCode: status,
		}
	default:
		return &models.RegisterError{
			Kind:       models.ErrUnknown,
			Messages:   []string{body.Message(registrationFailedMessage)},
			StatusCode: status,
		}
	}
}

// FetchProfile reads the signed in users profile. Requires authorization.
func (b *Backend) FetchProfile(ctx context.Context) (*models.Profile, error) {

	if !b.HasProfile() {
		return nil, fmt.Errorf("no profile endpoint configured")
	}

	resp, err := b.Request(ctx).Get(b.config.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("profile request failed with status: %s", resp.Status())
	}

	var profile models.Profile
	if err := json.Unmarshal(resp.Body(), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}

	return &profile, nil
}

// Logout asks the backend to revoke the renewal credential. Best effort.
func (b *Backend) Logout(ctx context.Context, refreshToken string) error {

	if !b.HasLogout() {
		return nil
	}

	resp, err := b.Request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.LogoutRequest{Refresh: refreshToken}).
		Post(b.config.LogoutPath)

	if err != nil {
		return fmt.Errorf("failed to invoke logout: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("logout failed with status: %s", resp.Status())
	}
	return nil
}
