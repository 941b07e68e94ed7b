package daemon

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/visarisk/agent/internal/gate"
	"github.com/visarisk/agent/internal/models"
)

const (
	// Context keys
	IdentityContextKey = "identity"

	returnToSessionKey = "_visarisk_return_to"
	suspendRetrySecs   = 1
)

// corsMiddleware restricts cross origin access to the local web app and any
// configured extra origins. Patterns may use a leading wildcard like
// "https://*.example.com".
func (s *Server) corsMiddleware() gin.HandlerFunc {
	security := s.Config.Server.Security.CORS

	allowedOrigins := append([]string{s.Config.GetLocalServerUrl()}, security.AllowedOrigins...)

	logrus.WithFields(logrus.Fields{
		"allowedOrigins": allowedOrigins,
	}).Debugln("CORS configuration")

	corsConfig := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			for _, pattern := range allowedOrigins {
				if matchOrigin(origin, pattern) {
					return true
				}
			}
			logrus.WithField("origin", origin).Debugln("CORS origin not allowed")
			return false
		},
		AllowMethods: security.AllowedMethods,
		AllowHeaders: security.AllowedHeaders,
		ExposeHeaders: []string{
			correlationIDHeader,
		},
		MaxAge: time.Duration(security.MaxAge) * time.Second,
	}

	if len(corsConfig.AllowMethods) == 0 {
		corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(corsConfig.AllowHeaders) == 0 {
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", correlationIDHeader}
	}

	return cors.New(corsConfig)
}

// matchOrigin checks if the given origin matches the pattern
// Supports exact matches and wildcard patterns like "https://*.example.com"
func matchOrigin(origin, pattern string) bool {
	if len(origin) == 0 {
		return false
	}

	if origin == pattern || pattern == "*" {
		return true
	}

	if strings.Contains(pattern, "*") {
		return matchWildcardOrigin(origin, pattern)
	}

	return false
}

// matchWildcardOrigin matches an origin against scheme://*.domain.tld.
// Nested subdomains match too.
func matchWildcardOrigin(origin, pattern string) bool {
	prefix, suffix, found := strings.Cut(pattern, "*")
	if !found {
		return false
	}

	// "https://*example.com" must not match "https://evilexample.com"
	if !strings.HasPrefix(suffix, ".") {
		return false
	}

	if !strings.HasPrefix(origin, prefix) || !strings.HasSuffix(origin, suffix) {
		return false
	}

	return len(origin) > len(prefix)+len(suffix)
}

// requestMiddleware counts, times and logs every request.
func (s *Server) requestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		atomic.AddInt64(&s.TotalRequests, 1)
		started := time.Now()

		c.Next()

		elapsed := time.Since(started)
		status := c.Writer.Status()

		if s.Metrics != nil {
			s.Metrics.ObserveRequest(c.FullPath(), status, elapsed)
		}

		entry := LogWithCorrelation(c).WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   status,
			"duration": elapsed.String(),
			"client":   c.ClientIP(),
		})

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Debug("Request served")
		}
	}
}

// RequireSession runs the access gate for the route. With roles set only
// identities holding one of them pass.
func (s *Server) RequireSession(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := s.Controller.State()
		decision := s.Gate.Decide(state, c.Request.URL.RequestURI(), roles...)

		LogWithCorrelation(c).WithFields(logrus.Fields{
			"state":   state.Kind.String(),
			"outcome": decision.Outcome.String(),
		}).Debug("Access gate decision")

		switch decision.Outcome {
		case gate.Allow:
			c.Set(IdentityContextKey, state.Identity)
			c.Next()
		case gate.Suspend:
			s.suspend(c)
		case gate.RedirectToLogin:
			s.redirectToLogin(c, decision)
		default:
			s.redirectToDefault(c, decision)
		}
	}
}

// suspend keeps the user on a neutral page until the session settles.
func (s *Server) suspend(c *gin.Context) {
	c.Header("Retry-After", strconv.Itoa(suspendRetrySecs))

	if !s.canAcceptHtml(c) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"outcome": gate.Suspend.String(),
			"state":   s.Controller.State().Kind.String(),
		})
		return
	}

	s.renderHtml(c, http.StatusOK, "loading.html", LoadingPageData{
		TemplateData: s.GetTemplateData(c),
		RetryAfter:   suspendRetrySecs,
		Location:     c.Request.URL.RequestURI(),
	})
	c.Abort()
}

func (s *Server) redirectToLogin(c *gin.Context, decision gate.Decision) {
	returnTo := gate.SafeReturnTo(decision.ReturnTo)

	location := decision.Location
	if len(returnTo) > 0 {
		session := sessions.Default(c)
		session.Set(returnToSessionKey, returnTo)
		if err := session.Save(); err != nil {
			LogWithCorrelation(c).WithError(err).Warn("Failed to remember the requested location")
		}
		location += "?" + url.Values{"next": {returnTo}}.Encode()
	}

	if !s.canAcceptHtml(c) {
		c.Header("Location", location)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"outcome":  decision.Outcome.String(),
			"location": location,
		})
		return
	}

	c.Redirect(http.StatusSeeOther, location)
	c.Abort()
}

func (s *Server) redirectToDefault(c *gin.Context, decision gate.Decision) {
	if !s.canAcceptHtml(c) {
		c.Header("Location", decision.Location)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"outcome":  decision.Outcome.String(),
			"location": decision.Location,
		})
		return
	}

	c.Redirect(http.StatusSeeOther, decision.Location)
	c.Abort()
}

// takeReturnTo pops the location remembered when the user was sent to log in.
func takeReturnTo(c *gin.Context) string {
	session := sessions.Default(c)
	returnTo, _ := session.Get(returnToSessionKey).(string)
	if len(returnTo) == 0 {
		return ""
	}

	session.Delete(returnToSessionKey)
	if err := session.Save(); err != nil {
		LogWithCorrelation(c).WithError(err).Warn("Failed to clear the requested location")
	}

	return gate.SafeReturnTo(returnTo)
}

func (s *Server) canAcceptHtml(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), gin.MIMEHTML)
}
