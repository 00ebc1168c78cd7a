package handlers

import (
	"github.com/alimgiray/ideabase/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Routes bundles the handlers mounted by SetupRoutes
type Routes struct {
	Project    *ProjectHandler
	Admin      *AdminHandler
	Health     *HealthHandler
	NotFound   *NotFoundHandler
	AdminToken string
}

// SetupRoutes registers the read API, the admin API and the health check
func SetupRoutes(router *gin.Engine, r Routes) {
	router.GET("/health", r.Health.Health)

	api := router.Group("/api/v1")
	{
		api.GET("/projects", r.Project.ListProjects)
		api.GET("/languages", r.Project.ListLanguages)

		admin := api.Group("/admin")
		admin.Use(middleware.AdminRequired(r.AdminToken))
		{
			admin.POST("/scrape", r.Admin.TriggerScrape)
			admin.POST("/analyze", r.Admin.AnalyzeMissing)
			admin.POST("/projects/:owner/:repo/reanalyze", r.Admin.Reanalyze)
			admin.GET("/tasks/:id", r.Admin.GetTask)
			admin.GET("/stats", r.Admin.Stats)
			admin.GET("/export", r.Admin.Export)
		}

		api.GET("/:owner/:repo", r.Project.GetProject)
		api.GET("/:owner/:repo/insights", r.Project.GetInsight)
	}

	router.NoRoute(r.NotFound.NotFound)
}
