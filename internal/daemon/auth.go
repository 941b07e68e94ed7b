package daemon

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/visarisk/agent/internal/gate"
	"github.com/visarisk/agent/internal/models"
)

const (
	registeredNotice  = "Registration successful! Please log in."
	expiredFormError  = "Your form expired. Please try again."
	missingLoginError = "Email and password are required."
	rateLimitedError  = "Too many login attempts. Please wait a minute and try again."
)

type LoginForm struct {
	Email     string `form:"email"`
	Password  string `form:"password"`
	Next      string `form:"next"`
	CSRFToken string `form:"csrf_token"`
}

type LoginPageData struct {
	TemplateData
	CSRFToken string
	Email     string
	Next      string
	Notice    string
	Error     string
}

type RegisterPageData struct {
	TemplateData
	CSRFToken string
	// Profile never carries the passwords back to the page.
	Profile models.RegistrationProfile
	Errors  []string
	Roles   []models.Role
}

// statusForKind maps a session error onto the HTTP status of the page
// that reports it.
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrInvalidCredentials:
		return http.StatusUnauthorized
	case models.ErrValidation, models.ErrPasswordMismatch:
		return http.StatusBadRequest
	case models.ErrNetwork, models.ErrServer, models.ErrMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) getLoginPage(c *gin.Context) {
	next := gate.SafeReturnTo(c.Query("next"))

	if state := s.Controller.State(); state.IsAuthenticated() {
		c.Redirect(http.StatusSeeOther, s.landingFor(c, next, state.Identity))
		return
	}

	data := LoginPageData{Next: next}
	if c.Query("registered") == "1" {
		data.Notice = registeredNotice
	}

	s.renderLogin(c, http.StatusOK, data)
}

func (s *Server) renderLogin(c *gin.Context, code int, data LoginPageData) {
	token, err := setCSRFToken(c)
	if err != nil {
		s.getErrorPage(c, http.StatusInternalServerError, "Failed to prepare the login form", err)
		return
	}

	data.TemplateData = s.GetTemplateData(c)
	data.CSRFToken = token

	s.renderHtml(c, code, "login.html", data)
}

func (s *Server) postLogin(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		s.getErrorPage(c, http.StatusBadRequest, "Invalid login request", err)
		return
	}

	form.Email = strings.TrimSpace(form.Email)
	form.Next = gate.SafeReturnTo(form.Next)

	data := LoginPageData{
		Email: form.Email,
		Next:  form.Next,
	}

	if !validateAndClearCSRFToken(c, form.CSRFToken) {
		data.Error = expiredFormError
		s.renderLogin(c, http.StatusForbidden, data)
		return
	}

	if len(form.Email) == 0 || len(form.Password) == 0 {
		data.Error = missingLoginError
		s.renderLogin(c, http.StatusBadRequest, data)
		return
	}

	err := s.Controller.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		// LoginError messages are written for the user
		data.Error = err.Error()

		LogWithCorrelation(c).WithField("kind", models.KindOf(err)).Info("Login rejected")

		s.renderLogin(c, statusForKind(models.KindOf(err)), data)
		return
	}

	c.Redirect(http.StatusSeeOther, s.landingFor(c, form.Next, s.Controller.State().Identity))
}

// landingFor picks where a signed in user goes: the explicit next
// location, then the location remembered by the gate, then the dashboard
// for their role.
func (s *Server) landingFor(c *gin.Context, next string, identity *models.Identity) string {
	remembered := takeReturnTo(c)

	if len(next) > 0 {
		return next
	}
	if len(remembered) > 0 {
		return remembered
	}
	if identity != nil {
		return identity.Role.DashboardPath()
	}
	return s.Gate.DefaultPath
}

func (s *Server) onLoginLimited(c *gin.Context) {
	if !s.canAcceptHtml(c) {
		c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
			Code:    http.StatusTooManyRequests,
			Title:   "Too many requests",
			Message: rateLimitedError,
		})
		return
	}

	s.renderLogin(c, http.StatusTooManyRequests, LoginPageData{
		Email: strings.TrimSpace(c.PostForm("email")),
		Next:  gate.SafeReturnTo(c.PostForm("next")),
		Error: rateLimitedError,
	})
}

func (s *Server) getRegisterPage(c *gin.Context) {
	s.renderRegister(c, http.StatusOK, RegisterPageData{
		Profile: models.RegistrationProfile{Role: string(models.RoleStudent)},
	})
}

func (s *Server) renderRegister(c *gin.Context, code int, data RegisterPageData) {
	token, err := setCSRFToken(c)
	if err != nil {
		s.getErrorPage(c, http.StatusInternalServerError, "Failed to prepare the registration form", err)
		return
	}

	data.TemplateData = s.GetTemplateData(c)
	data.CSRFToken = token
	data.Roles = []models.Role{models.RoleStudent, models.RoleParent}
	data.Profile.Password = ""
	data.Profile.ConfirmPassword = ""

	s.renderHtml(c, code, "register.html", data)
}

func (s *Server) postRegister(c *gin.Context) {
	var profile models.RegistrationProfile
	if err := c.ShouldBind(&profile); err != nil {
		s.getErrorPage(c, http.StatusBadRequest, "Invalid registration request", err)
		return
	}

	data := RegisterPageData{Profile: profile}

	if !validateAndClearCSRFToken(c, c.PostForm(csrfFormField)) {
		data.Errors = []string{expiredFormError}
		s.renderRegister(c, http.StatusForbidden, data)
		return
	}

	err := s.Controller.Register(c.Request.Context(), profile)
	if err != nil {
		var registerErr *models.RegisterError
		if errors.As(err, &registerErr) && len(registerErr.Messages) > 0 {
			data.Errors = registerErr.Messages
		} else {
			data.Errors = []string{err.Error()}
		}

		LogWithCorrelation(c).WithField("kind", models.KindOf(err)).Info("Registration rejected")

		s.renderRegister(c, statusForKind(models.KindOf(err)), data)
		return
	}

	c.Redirect(http.StatusSeeOther, s.Gate.LoginPath+"?registered=1")
}

// logout ends the session whatever the backend says and forgets any
// remembered location. A POST must carry the header form's logout token.
func (s *Server) logout(c *gin.Context) {
	if c.Request.Method == http.MethodPost && !validLogoutToken(c, c.PostForm(logoutFormField)) {
		LogWithCorrelation(c).Warn("Logout rejected: missing or invalid logout token")
		s.getErrorPage(c, http.StatusForbidden, expiredFormError)
		return
	}

	s.Controller.Logout(c.Request.Context())

	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		LogWithCorrelation(c).WithError(err).Warn("Failed to clear the cookie session")
	}

	if !s.canAcceptHtml(c) {
		c.JSON(http.StatusOK, s.Controller.State().ToResponse())
		return
	}

	c.Redirect(http.StatusSeeOther, s.Gate.LoginPath)
}
