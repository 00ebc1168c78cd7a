package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Project is a repository observed on the trending page. Owner and Name
// together identify it; the numeric ID is a storage key only.
type Project struct {
	ID            int64     `json:"id"`
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	Language      string    `json:"language"`
	StarsCount    int       `json:"stars_count"`
	ForksCount    int       `json:"forks_count"`
	RepositoryURL string    `json:"repository_url"`
	HomepageURL   *string   `json:"homepage_url"`
	TrendingDate  time.Time `json:"trending_date"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdated   time.Time `json:"last_updated"`
}

// CandidateProject is a parsed trending entry that has not been stored yet
type CandidateProject struct {
	Owner         string
	Name          string
	Description   string
	Language      string
	StarsCount    int
	ForksCount    int
	RepositoryURL string
	HomepageURL   *string
	TrendingDate  time.Time
}

var repositoryNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FullName returns "owner/name"
func (c *CandidateProject) FullName() string {
	return c.Owner + "/" + c.Name
}

// Validate checks the identity and counters of a candidate
func (c *CandidateProject) Validate() error {
	c.Owner = strings.TrimSpace(c.Owner)
	c.Name = strings.TrimSpace(c.Name)

	if c.Owner == "" {
		return &ValidationError{Field: "owner", Message: "Project owner is required"}
	}
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: "Project name is required"}
	}
	if !repositoryNamePattern.MatchString(c.Owner) || !repositoryNamePattern.MatchString(c.Name) {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("Invalid repository name %q", c.FullName())}
	}
	if c.StarsCount < 0 || c.ForksCount < 0 {
		return &ValidationError{Field: "stars_count", Message: "Counts must not be negative"}
	}
	if c.RepositoryURL == "" {
		c.RepositoryURL = "https://github.com/" + c.FullName()
	}
	return nil
}

// ProjectSort selects the listing order
type ProjectSort string

const (
	SortTrending ProjectSort = "trending"
	SortStars    ProjectSort = "stars"
)

// ParseProjectSort maps a query value to a sort mode, "" meaning trending
func ParseProjectSort(value string) (ProjectSort, error) {
	switch ProjectSort(strings.ToLower(strings.TrimSpace(value))) {
	case "", SortTrending:
		return SortTrending, nil
	case SortStars:
		return SortStars, nil
	default:
		return "", &ValidationError{Field: "sort", Message: fmt.Sprintf("Unknown sort %q", value)}
	}
}

// ProjectFilter narrows a listing
type ProjectFilter struct {
	Language string
	Search   string
	Since    *time.Time
}

// Page is a listing window. After, when set, takes precedence over Offset.
type Page struct {
	Limit  int
	Offset int
	Sort   ProjectSort
	After  *Cursor
}

// ProjectPage is the API listing envelope
type ProjectPage struct {
	Data       []*Project `json:"data"`
	Total      int        `json:"total"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
	NextCursor string     `json:"next_cursor,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// LanguageCount is a programming language with its project count
type LanguageCount struct {
	Language string `json:"language"`
	Count    int    `json:"count"`
}

// ProjectStats summarises the catalogue for the admin stats endpoint
type ProjectStats struct {
	TotalProjects int             `json:"total_projects"`
	NewProjects7d int             `json:"new_projects_7d"`
	TopLanguages  []LanguageCount `json:"top_languages"`
	Insights      map[string]int  `json:"insights"`
}
