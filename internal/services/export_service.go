package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/repositories"
	"github.com/xuri/excelize/v2"
)

const (
	projectsSheet  = "Projects"
	languagesSheet = "Languages"
	exportPageSize = 200
)

var projectHeaders = []interface{}{
	"Project", "Description", "Language", "Stars", "Forks", "Repository", "Homepage",
	"Trending Date", "First Seen", "Insight Status", "Business Value", "Market Opportunity",
	"Startup Ideas", "Target Audience", "Competition Analysis",
}

// ExportService writes the catalogue with insights as an XLSX workbook
type ExportService struct {
	projectRepo *repositories.ProjectRepository
	insightRepo *repositories.InsightRepository
}

func NewExportService(projectRepo *repositories.ProjectRepository, insightRepo *repositories.InsightRepository) *ExportService {
	return &ExportService{
		projectRepo: projectRepo,
		insightRepo: insightRepo,
	}
}

// WriteWorkbook writes one row per project matching filter, with the insight
// in insightLanguage, plus a language summary sheet
func (s *ExportService) WriteWorkbook(ctx context.Context, w io.Writer, filter models.ProjectFilter, insightLanguage string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", projectsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(projectsSheet, "A1", &projectHeaders); err != nil {
		return err
	}
	if err := f.SetColWidth(projectsSheet, "A", "A", 32); err != nil {
		return err
	}
	if err := f.SetColWidth(projectsSheet, "K", "O", 60); err != nil {
		return err
	}

	row := 2
	var after *models.Cursor
	for {
		projects, err := s.projectRepo.List(ctx, filter, models.Page{Limit: exportPageSize, After: after})
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}
		if len(projects) == 0 {
			break
		}

		for _, project := range projects {
			values, err := s.projectRow(ctx, project, insightLanguage)
			if err != nil {
				return err
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(projectsSheet, cell, &values); err != nil {
				return err
			}
			row++
		}
		after = models.CursorAfter(projects[len(projects)-1], models.SortTrending)
	}

	if err := s.writeLanguages(ctx, f); err != nil {
		return err
	}

	return f.Write(w)
}

func (s *ExportService) projectRow(ctx context.Context, project *models.Project, insightLanguage string) ([]interface{}, error) {
	homepage := ""
	if project.HomepageURL != nil {
		homepage = *project.HomepageURL
	}

	values := []interface{}{
		project.FullName,
		project.Description,
		project.Language,
		project.StarsCount,
		project.ForksCount,
		project.RepositoryURL,
		homepage,
		project.TrendingDate.Format("2006-01-02"),
		project.CreatedAt.Format("2006-01-02"),
	}

	insight, err := s.insightRepo.Get(ctx, project.ID, insightLanguage)
	if errors.Is(err, models.ErrNotFound) {
		return append(values, "", "", "", "", "", ""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load insight for %s: %w", project.FullName, err)
	}
	return append(values,
		string(insight.Status),
		insight.BusinessValue,
		insight.MarketOpportunity,
		insight.StartupIdeas,
		insight.TargetAudience,
		insight.CompetitionAnalysis,
	), nil
}

func (s *ExportService) writeLanguages(ctx context.Context, f *excelize.File) error {
	languages, err := s.projectRepo.Languages(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to load languages: %w", err)
	}
	if _, err := f.NewSheet(languagesSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(languagesSheet, "A1", &[]interface{}{"Language", "Projects"}); err != nil {
		return err
	}
	for i, lc := range languages {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(languagesSheet, cell, &[]interface{}{lc.Language, lc.Count}); err != nil {
			return err
		}
	}
	return nil
}
