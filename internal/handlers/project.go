package handlers

import (
	"net/http"
	"strconv"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/services"
	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projectService         *services.ProjectService
	defaultInsightLanguage string
}

func NewProjectHandler(projectService *services.ProjectService, defaultInsightLanguage string) *ProjectHandler {
	return &ProjectHandler{
		projectService:         projectService,
		defaultInsightLanguage: defaultInsightLanguage,
	}
}

// ListProjects returns one page of trending projects
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	query := services.ProjectQuery{
		Search:   c.Query("search"),
		Language: c.Query("language"),
		Sort:     c.Query("sort"),
		Cursor:   c.Query("cursor"),
	}

	var err error
	if query.Days, err = optionalInt(c, "days"); err != nil {
		respondError(c, err, "")
		return
	}
	if query.Limit, err = optionalInt(c, "limit"); err != nil {
		respondError(c, err, "")
		return
	}
	offset, err := optionalInt(c, "offset")
	if err != nil {
		respondError(c, err, "")
		return
	}
	if offset != nil {
		query.Offset = *offset
	}

	page, err := h.projectService.ListProjects(c.Request.Context(), query)
	if err != nil {
		respondError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, page)
}

// ListLanguages returns project languages by popularity
func (h *ProjectHandler) ListLanguages(c *gin.Context) {
	languages, err := h.projectService.Languages(c.Request.Context())
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, languages)
}

// GetProject returns a single project
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.projectService.GetProject(c.Request.Context(), c.Param("owner"), c.Param("repo"))
	if err != nil {
		respondError(c, err, "Project not found")
		return
	}
	c.JSON(http.StatusOK, project)
}

// GetInsight returns the insight of a project in the requested language,
// whatever its status
func (h *ProjectHandler) GetInsight(c *gin.Context) {
	language := models.NormalizeLanguageCode(c.DefaultQuery("language", h.defaultInsightLanguage))

	insight, err := h.projectService.GetInsight(c.Request.Context(), c.Param("owner"), c.Param("repo"), language)
	if err != nil {
		respondError(c, err, "Insight not found")
		return
	}
	c.JSON(http.StatusOK, insight)
}

func optionalInt(c *gin.Context, key string) (*int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &models.ValidationError{Field: key, Message: "Invalid " + key + " parameter"}
	}
	return &value, nil
}
