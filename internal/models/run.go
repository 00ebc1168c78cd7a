package models

import "time"

// LanguageRunStats counts what one language filter contributed to a scrape run
type LanguageRunStats struct {
	Scraped    int    `json:"scraped"`
	Skipped    int    `json:"skipped"`
	Invalid    int    `json:"invalid"`
	New        int    `json:"new"`
	Updated    int    `json:"updated"`
	Dispatched int    `json:"dispatched"`
	Error      string `json:"error,omitempty"`
}

// RunStats summarises one scrape run
type RunStats struct {
	TotalScraped    int                          `json:"total_scraped"`
	NewProjects     int                          `json:"new_projects"`
	UpdatedProjects int                          `json:"updated_projects"`
	Skipped         int                          `json:"skipped"`
	Invalid         int                          `json:"invalid"`
	Dispatched      int                          `json:"dispatched"`
	FailedLanguages int                          `json:"failed_languages"`
	Languages       map[string]*LanguageRunStats `json:"languages"`
	StartedAt       time.Time                    `json:"started_at"`
	FinishedAt      time.Time                    `json:"finished_at"`
}

func NewRunStats() *RunStats {
	return &RunStats{
		Languages: make(map[string]*LanguageRunStats),
		StartedAt: time.Now(),
	}
}

// Add folds one language's counters into the totals
func (s *RunStats) Add(label string, ls *LanguageRunStats) {
	s.Languages[label] = ls
	s.TotalScraped += ls.Scraped
	s.NewProjects += ls.New
	s.UpdatedProjects += ls.Updated
	s.Skipped += ls.Skipped
	s.Invalid += ls.Invalid
	s.Dispatched += ls.Dispatched
	if ls.Error != "" {
		s.FailedLanguages++
	}
}
