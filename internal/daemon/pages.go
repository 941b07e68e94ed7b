package daemon

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/visarisk/agent/internal/common"
	"github.com/visarisk/agent/internal/models"
)

// TemplateData is shared by every page.
type TemplateData struct {
	ServiceName string
	Version     string
	LoginServer string
	State       models.SessionStateResponse
	Identity    *models.Identity
	LogoutToken string
}

type ErrorPageData struct {
	TemplateData
	Error models.ErrorResponse
}

type LoadingPageData struct {
	TemplateData
	RetryAfter int
	Location   string
}

type DashboardPageData struct {
	TemplateData
	Title string
	Role  models.Role
}

func (s *Server) GetTemplateData(c *gin.Context) TemplateData {
	state := s.Controller.State()

	data := TemplateData{
		ServiceName: "Visarisk",
		Version:     common.GetVersion(),
		LoginServer: s.Config.GetLoginServerUrl(),
		State:       state.ToResponse(),
		Identity:    state.Identity,
	}

	if state.IsAuthenticated() {
		data.LogoutToken = logoutToken(c)
	}

	return data
}

// getErrorPage handles the request for the error page
func (s *Server) getErrorPage(c *gin.Context, code int, message string, err ...error) {

	var messages []string

	if len(err) == 0 {

		LogWithCorrelation(c).WithField("code", code).Errorln(message)

	} else {

		for _, e := range err {

			if e == nil {
				continue
			}

			LogWithCorrelation(c).WithError(e).Errorln(message)
			messages = append(messages, e.Error())
		}
	}

	// Don't show error details for 500 status codes
	showDetails := code != http.StatusInternalServerError
	errorMessage := fmt.Sprintf("An internal error occurred. Details are available in the logs at: %s.", time.Now().UTC().Format("2006-01-02 15:04:05"))

	if showDetails {
		errorMessage = strings.Join(messages, ". ")
	}

	errResponse := models.ErrorResponse{
		Code:    code,
		Title:   message,
		Message: errorMessage,
	}

	if s.canAcceptHtml(c) {

		data := ErrorPageData{
			TemplateData: s.GetTemplateData(c),
			Error:        errResponse,
		}

		s.renderHtml(c, code, "error.html", data)

	} else {

		c.JSON(code, errResponse)
	}

	c.Abort()
}

func (s *Server) renderHtml(c *gin.Context, code int, template string, data any) {

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(code)

	err := s.TemplateEngine.ExecuteTemplate(c.Writer, template, data)
	if err != nil {
		logrus.WithError(err).WithField("template", template).Errorln("Failed to render page")
		c.String(http.StatusInternalServerError, "Error rendering page: %v", err)
		return
	}
}

func (s *Server) getIndexPage(c *gin.Context) {
	s.renderHtml(c, http.StatusOK, "index.html", s.GetTemplateData(c))
}

func (s *Server) getNotFoundPage(c *gin.Context) {
	s.getErrorPage(c, http.StatusNotFound, "Page not found",
		fmt.Errorf("nothing lives at %s", c.Request.URL.Path))
}

// Protected pages. The gate middleware has already run.

func (s *Server) getDashboardPage(role models.Role, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.renderHtml(c, http.StatusOK, "dashboard.html", DashboardPageData{
			TemplateData: s.GetTemplateData(c),
			Title:        title,
			Role:         role,
		})
	}
}

func (s *Server) getAssessmentPage(c *gin.Context) {
	s.renderHtml(c, http.StatusOK, "assessment.html", s.GetTemplateData(c))
}

func (s *Server) getTrendsPage(c *gin.Context) {
	s.renderHtml(c, http.StatusOK, "trends.html", s.GetTemplateData(c))
}
