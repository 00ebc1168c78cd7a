package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/services"
	"github.com/spf13/cobra"
)

func newScrapeCommand(ctx *commandContext) *cobra.Command {
	var languages []string
	var timeRange string
	var force bool

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape now and queue analysis for new projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}

			stats, err := a.Orchestrator.RunOnce(cmd.Context(), models.ScrapeRequest{
				Languages: languages,
				TimeRange: models.TimeRange(timeRange),
				Force:     force,
			})
			if stats != nil {
				fmt.Fprintln(cmd.OutOrStdout(), renderRunStats(stats))
			}
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&languages, "language", "l", nil, "Language filter to scrape, repeatable (\"all\" for no filter)")
	cmd.Flags().StringVar(&timeRange, "time-range", "", "daily, weekly or monthly")
	cmd.Flags().BoolVar(&force, "force", false, "Queue analysis even for projects already analysed")
	return cmd
}

func renderRunStats(stats *models.RunStats) string {
	labels := make([]string, 0, len(stats.Languages))
	for label := range stats.Languages {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	rows := make([][]string, 0, len(labels)+1)
	for _, label := range labels {
		ls := stats.Languages[label]
		rows = append(rows, []string{
			label, strconv.Itoa(ls.Scraped), strconv.Itoa(ls.New), strconv.Itoa(ls.Updated),
			strconv.Itoa(ls.Skipped + ls.Invalid), strconv.Itoa(ls.Dispatched), ls.Error,
		})
	}
	rows = append(rows, []string{
		"total", strconv.Itoa(stats.TotalScraped), strconv.Itoa(stats.NewProjects), strconv.Itoa(stats.UpdatedProjects),
		strconv.Itoa(stats.Skipped + stats.Invalid), strconv.Itoa(stats.Dispatched), "",
	})

	return renderTable(
		[]string{"Language", "Scraped", "New", "Updated", "Skipped", "Queued", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var languages []string
	var limit int

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Generate missing insights now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if err := a.Config.RequireAI(); err != nil {
				return err
			}
			if len(languages) == 0 {
				languages = a.Config.AI.Languages
			}

			var rows [][]string
			for _, language := range languages {
				language = models.NormalizeLanguageCode(language)
				projects, err := a.Projects.ListMissingInsight(cmd.Context(), language, limit)
				if err != nil {
					return err
				}
				for _, project := range projects {
					insight, err := a.Engine.Analyze(cmd.Context(), project, language, services.AnalyzeOptions{})
					if err != nil {
						return err
					}
					reason := ""
					if insight.ErrorMessage != nil {
						reason = *insight.ErrorMessage
					}
					rows = append(rows, []string{project.FullName, language, string(insight.Status), reason})
				}
			}

			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Every project already has an insight.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Project", "Language", "Status", "Error"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&languages, "language", "l", nil, "Insight language, repeatable (defaults to INSIGHT_LANGUAGES)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum projects per language")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalogue and queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			stats, err := a.ProjectService.Stats(cmd.Context())
			if err != nil {
				return err
			}
			queue, err := a.JobService.QueueStats(cmd.Context())
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Projects", strconv.Itoa(stats.TotalProjects)},
				{"New in 7 days", strconv.Itoa(stats.NewProjects7d)},
			}
			for _, status := range []models.InsightStatus{models.InsightStatusCompleted, models.InsightStatusPending, models.InsightStatusFailed} {
				rows = append(rows, []string{"Insights " + string(status), strconv.Itoa(stats.Insights[string(status)])})
			}
			for _, jobType := range []models.JobType{models.JobTypeScrape, models.JobTypeAnalyze} {
				counts := queue[jobType]
				rows = append(rows, []string{
					string(jobType) + " jobs queued",
					strconv.Itoa(counts[models.JobStatusPending] + counts[models.JobStatusInProgress]),
				})
			}
			if len(stats.TopLanguages) > 0 {
				top := make([]string, 0, len(stats.TopLanguages))
				for _, lc := range stats.TopLanguages {
					top = append(top, fmt.Sprintf("%s (%d)", lc.Language, lc.Count))
				}
				rows = append(rows, []string{"Top languages", strings.Join(top, ", ")})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newLanguagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List project languages by popularity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			languages, err := a.ProjectService.Languages(cmd.Context())
			if err != nil {
				return err
			}
			if len(languages) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects stored yet.")
				return nil
			}

			rows := make([][]string, 0, len(languages))
			for _, lc := range languages {
				rows = append(rows, []string{lc.Language, strconv.Itoa(lc.Count)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Language", "Projects"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var output string
	var language string
	var insightLanguage string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalogue with insights to an XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(output) == "" {
				return errors.New("--output is required")
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if insightLanguage == "" {
				insightLanguage = a.Config.AI.DefaultLanguage
			}

			file, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := a.ExportService.WriteWorkbook(cmd.Context(), file, models.ProjectFilter{Language: language}, models.NormalizeLanguageCode(insightLanguage)); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination .xlsx file")
	cmd.Flags().StringVar(&language, "language", "", "Only export projects in this programming language")
	cmd.Flags().StringVar(&insightLanguage, "insight-language", "", "Insight language to include")
	return cmd
}
