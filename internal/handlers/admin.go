package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/services"
	"github.com/gin-gonic/gin"
)

const (
	defaultAnalyzeLimit = 50
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type AdminHandler struct {
	jobService       *services.JobService
	projectService   *services.ProjectService
	exportService    *services.ExportService
	insightLanguages []string
}

func NewAdminHandler(jobService *services.JobService, projectService *services.ProjectService, exportService *services.ExportService, insightLanguages []string) *AdminHandler {
	return &AdminHandler{
		jobService:       jobService,
		projectService:   projectService,
		exportService:    exportService,
		insightLanguages: insightLanguages,
	}
}

type analyzeRequest struct {
	Limit     int      `json:"limit"`
	Languages []string `json:"languages"`
}

type reanalyzeRequest struct {
	Languages []string `json:"languages"`
}

// TriggerScrape queues a scrape run
func (h *AdminHandler) TriggerScrape(c *gin.Context) {
	var req models.ScrapeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	job, err := h.jobService.CreateScrapeJob(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": job.ID,
		"status":  job.Status,
	})
}

// AnalyzeMissing queues analysis for projects that have no completed insight
func (h *AdminHandler) AnalyzeMissing(c *gin.Context) {
	var req analyzeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.Limit < 0 {
		respondError(c, &models.ValidationError{Field: "limit", Message: "Limit must not be negative"}, "")
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultAnalyzeLimit
	}
	if len(req.Languages) == 0 {
		req.Languages = h.insightLanguages
	}

	dispatched, err := h.jobService.DispatchMissing(c.Request.Context(), req.Languages, req.Limit)
	if err != nil {
		respondError(c, err, "")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"dispatched": dispatched})
}

// Reanalyze forces regeneration of one project's insights
func (h *AdminHandler) Reanalyze(c *gin.Context) {
	var req reanalyzeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if len(req.Languages) == 0 {
		req.Languages = h.insightLanguages
	}

	jobs, err := h.jobService.Reanalyze(c.Request.Context(), c.Param("owner"), c.Param("repo"), req.Languages)
	if err != nil {
		respondError(c, err, "Project not found")
		return
	}

	taskIDs := make([]string, 0, len(jobs))
	for _, job := range jobs {
		taskIDs = append(taskIDs, job.ID)
	}
	c.JSON(http.StatusAccepted, gin.H{"task_ids": taskIDs})
}

// GetTask returns the state of a queued job
func (h *AdminHandler) GetTask(c *gin.Context) {
	job, err := h.jobService.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Task not found")
		return
	}

	response := gin.H{
		"task_id":      job.ID,
		"type":         job.JobType,
		"status":       job.Status,
		"created_at":   job.CreatedAt,
		"started_at":   job.StartedAt,
		"completed_at": job.CompletedAt,
	}
	if job.Result != nil {
		if json.Valid([]byte(*job.Result)) {
			response["result"] = json.RawMessage(*job.Result)
		} else {
			response["result"] = *job.Result
		}
	}
	if job.ErrorMessage != nil {
		response["error"] = *job.ErrorMessage
	}
	c.JSON(http.StatusOK, response)
}

// Stats summarises the catalogue and the job queue
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.projectService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "")
		return
	}
	queue, err := h.jobService.QueueStats(c.Request.Context())
	if err != nil {
		respondError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_projects":  stats.TotalProjects,
		"new_projects_7d": stats.NewProjects7d,
		"top_languages":   stats.TopLanguages,
		"insights":        stats.Insights,
		"jobs":            queue,
	})
}

// Export downloads the catalogue as an XLSX workbook
func (h *AdminHandler) Export(c *gin.Context) {
	insightLanguage := c.Query("insight_language")
	if insightLanguage == "" && len(h.insightLanguages) > 0 {
		insightLanguage = h.insightLanguages[0]
	}
	filter := models.ProjectFilter{
		Language: c.Query("language"),
		Search:   c.Query("search"),
	}

	var buf bytes.Buffer
	if err := h.exportService.WriteWorkbook(c.Request.Context(), &buf, filter, models.NormalizeLanguageCode(insightLanguage)); err != nil {
		respondError(c, err, "")
		return
	}

	filename := fmt.Sprintf("ideabase-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// bindOptionalJSON decodes the request body into dst; an empty body keeps the
// zero value. It writes a 400 and returns false on malformed input.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}
