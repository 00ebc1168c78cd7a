package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubMetadataService fills in what the trending page does not show
// (homepage URL, exact counters) from the GitHub REST API.
type GitHubMetadataService struct {
	client *github.Client
}

// NewGitHubMetadataService creates the enricher. An empty token uses
// unauthenticated requests. apiBaseURL overrides the API endpoint when set.
func NewGitHubMetadataService(token, apiBaseURL string) (*GitHubMetadataService, error) {
	client := createGitHubClient(token)
	if apiBaseURL != "" {
		base, err := url.Parse(strings.TrimRight(apiBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API url: %w", err)
		}
		client.BaseURL = base
	}
	return &GitHubMetadataService{client: client}, nil
}

func createGitHubClient(token string) *github.Client {
	if token == "" {
		return github.NewClient(http.DefaultClient)
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	return github.NewClient(oauth2.NewClient(context.Background(), ts))
}

// Enrich updates candidate in place with repository metadata
func (s *GitHubMetadataService) Enrich(ctx context.Context, candidate *models.CandidateProject) error {
	repo, _, err := s.client.Repositories.Get(ctx, candidate.Owner, candidate.Name)
	if err != nil {
		return fmt.Errorf("failed to get repository %s: %w", candidate.FullName(), err)
	}

	if homepage := strings.TrimSpace(repo.GetHomepage()); homepage != "" {
		candidate.HomepageURL = &homepage
	}
	if repo.StargazersCount != nil {
		candidate.StarsCount = repo.GetStargazersCount()
	}
	if repo.ForksCount != nil {
		candidate.ForksCount = repo.GetForksCount()
	}
	if description := strings.TrimSpace(repo.GetDescription()); description != "" {
		candidate.Description = description
	}
	if language := strings.TrimSpace(repo.GetLanguage()); language != "" {
		candidate.Language = language
	}
	if htmlURL := repo.GetHTMLURL(); htmlURL != "" {
		candidate.RepositoryURL = htmlURL
	}
	return nil
}
