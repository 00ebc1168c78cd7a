package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Feed fetches one trending listing
type Feed interface {
	Fetch(ctx context.Context, language string, timeRange models.TimeRange) (*Listing, error)
}

// ProjectStore persists trending candidates
type ProjectStore interface {
	Upsert(ctx context.Context, candidate *models.CandidateProject) (*models.Project, bool, error)
}

// Dispatcher queues analysis work for a stored project
type Dispatcher interface {
	DispatchAnalysis(ctx context.Context, project *models.Project, languages []string, force bool) (int, error)
}

// Enricher adds metadata to a candidate before it is stored
type Enricher interface {
	Enrich(ctx context.Context, candidate *models.CandidateProject) error
}

type OrchestratorConfig struct {
	// Languages are the trending filters scraped when a request names none; "" is all languages
	Languages []string
	// InsightLanguages are the output languages analysis is dispatched for
	InsightLanguages []string
	TimeRange        models.TimeRange
	Concurrency      int
	FetchTimeout     time.Duration
	RunTimeout       time.Duration
}

// Orchestrator runs one scrape: fetch every language filter, upsert the
// candidates and hand new or stale projects to the dispatcher.
type Orchestrator struct {
	feed       Feed
	projects   ProjectStore
	dispatcher Dispatcher
	enricher   Enricher
	cfg        OrchestratorConfig
}

// NewOrchestrator creates an orchestrator. enricher may be nil.
func NewOrchestrator(feed Feed, projects ProjectStore, dispatcher Dispatcher, enricher Enricher, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.TimeRange == "" {
		cfg.TimeRange = models.TimeRangeDaily
	}
	return &Orchestrator{
		feed:       feed,
		projects:   projects,
		dispatcher: dispatcher,
		enricher:   enricher,
		cfg:        cfg,
	}
}

// RunOnce performs one scrape run. A failing language filter is recorded in
// the stats and does not stop the others; storage and configuration errors
// cancel the run and are returned together with the partial stats.
func (o *Orchestrator) RunOnce(ctx context.Context, req models.ScrapeRequest) (*models.RunStats, error) {
	timeRange := o.cfg.TimeRange
	if req.TimeRange != "" {
		parsed, err := models.ParseTimeRange(string(req.TimeRange))
		if err != nil {
			return nil, err
		}
		timeRange = parsed
	}

	languages := scrapeLanguages(req.Languages)
	if len(languages) == 0 {
		languages = scrapeLanguages(o.cfg.Languages)
	}
	if len(languages) == 0 {
		languages = []string{""}
	}

	if o.cfg.RunTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := models.NewRunStats()
	results := make([]*models.LanguageRunStats, len(languages))
	sem := make(chan struct{}, o.cfg.Concurrency)

	var wg sync.WaitGroup
	var fatalOnce sync.Once
	var fatalErr error

	for i, language := range languages {
		wg.Add(1)
		go func(i int, language string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = &models.LanguageRunStats{Error: ctx.Err().Error()}
				return
			}
			defer func() { <-sem }()

			ls, err := o.scrapeLanguage(ctx, language, timeRange, req.Force)
			results[i] = ls
			if err != nil {
				fatalOnce.Do(func() {
					fatalErr = err
					cancel()
				})
			}
		}(i, language)
	}
	wg.Wait()

	for i, language := range languages {
		stats.Add(languageLabel(language), results[i])
	}
	stats.FinishedAt = time.Now()

	logger.WithFields(logrus.Fields{
		"component":  "orchestrator",
		"scraped":    stats.TotalScraped,
		"new":        stats.NewProjects,
		"updated":    stats.UpdatedProjects,
		"skipped":    stats.Skipped,
		"dispatched": stats.Dispatched,
		"failed":     stats.FailedLanguages,
		"duration":   stats.FinishedAt.Sub(stats.StartedAt).String(),
	}).Info("Scrape run finished")

	if fatalErr != nil {
		return stats, fatalErr
	}
	return stats, nil
}

// scrapeLanguage handles one language filter. The returned error is non-nil
// only for failures that must abort the whole run.
func (o *Orchestrator) scrapeLanguage(ctx context.Context, language string, timeRange models.TimeRange, force bool) (*models.LanguageRunStats, error) {
	ls := &models.LanguageRunStats{}
	log := logger.WithFields(logrus.Fields{
		"component": "orchestrator",
		"language":  languageLabel(language),
	})

	listing, err := o.fetch(ctx, language, timeRange)
	if err != nil {
		if errors.Is(err, models.ErrConfiguration) {
			ls.Error = err.Error()
			return ls, err
		}
		log.WithError(err).Warn("Trending fetch failed")
		ls.Error = err.Error()
		return ls, nil
	}

	for candidate := range listing.All() {
		if ctx.Err() != nil {
			ls.Error = fmt.Sprintf("run cancelled: %v", ctx.Err())
			break
		}
		ls.Scraped++

		if o.enricher != nil {
			if err := o.enrich(ctx, &candidate); err != nil {
				log.WithError(err).WithField("project", candidate.FullName()).Debug("Metadata enrichment failed")
			}
		}

		project, isNew, err := o.projects.Upsert(ctx, &candidate)
		if err != nil {
			var validationErr *models.ValidationError
			if errors.As(err, &validationErr) {
				ls.Invalid++
				log.WithError(err).WithField("project", candidate.FullName()).Warn("Skipping invalid candidate")
				continue
			}
			ls.Error = err.Error()
			return ls, fmt.Errorf("failed to store %s: %w", candidate.FullName(), err)
		}
		if isNew {
			ls.New++
		} else {
			ls.Updated++
		}

		dispatched, err := o.dispatcher.DispatchAnalysis(ctx, project, o.cfg.InsightLanguages, force)
		if err != nil {
			ls.Error = err.Error()
			return ls, fmt.Errorf("failed to dispatch analysis for %s: %w", project.FullName, err)
		}
		ls.Dispatched += dispatched
	}

	ls.Skipped = listing.Skipped()
	entry := log.WithFields(logrus.Fields{
		"scraped":    ls.Scraped,
		"skipped":    ls.Skipped,
		"new":        ls.New,
		"dispatched": ls.Dispatched,
	})
	if errs := listing.Errors(); len(errs) > 0 {
		entry = entry.WithField("first_skip_reason", errs[0].Error())
	}
	if ls.Scraped == 0 && ls.Error == "" {
		entry.Warn("Trending page had no usable entries")
	} else {
		entry.Info("Language scraped")
	}
	return ls, nil
}

func (o *Orchestrator) fetch(ctx context.Context, language string, timeRange models.TimeRange) (*Listing, error) {
	if o.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.FetchTimeout)
		defer cancel()
	}
	return o.feed.Fetch(ctx, language, timeRange)
}

func (o *Orchestrator) enrich(ctx context.Context, candidate *models.CandidateProject) error {
	if o.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.FetchTimeout)
		defer cancel()
	}
	return o.enricher.Enrich(ctx, candidate)
}

// scrapeLanguages lower-cases and dedupes filters; "all" and "" both mean no filter
func scrapeLanguages(languages []string) []string {
	seen := make(map[string]bool, len(languages))
	out := make([]string, 0, len(languages))
	for _, language := range languages {
		language = strings.ToLower(strings.TrimSpace(language))
		if language == "all" {
			language = ""
		}
		if seen[language] {
			continue
		}
		seen[language] = true
		out = append(out, language)
	}
	return out
}

func languageLabel(language string) string {
	if language == "" {
		return "all"
	}
	return language
}
