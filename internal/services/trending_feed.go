package services

import (
	"context"
	"fmt"
	"iter"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alimgiray/ideabase/internal/models"
)

const trendingUserAgent = "Mozilla/5.0 (compatible; ideabase/1.0; +https://github.com/alimgiray/ideabase)"

// TrendingFeed fetches and parses the GitHub trending page
type TrendingFeed struct {
	baseURL    string
	token      string
	httpClient *http.Client
	now        func() time.Time
}

// NewTrendingFeed creates a feed reading from baseURL (normally https://github.com)
func NewTrendingFeed(baseURL, token string, timeout time.Duration) *TrendingFeed {
	if baseURL == "" {
		baseURL = "https://github.com"
	}
	return &TrendingFeed{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// URL builds the trending page address for a language filter and window
func (f *TrendingFeed) URL(language string, timeRange models.TimeRange) string {
	address := f.baseURL + "/trending"
	if language = strings.TrimSpace(language); language != "" {
		address += "/" + url.PathEscape(strings.ToLower(language))
	}
	if timeRange == models.TimeRangeWeekly || timeRange == models.TimeRangeMonthly {
		address += "?since=" + string(timeRange)
	}
	return address
}

// Fetch downloads one trending page. Entries are parsed lazily by the returned Listing.
func (f *TrendingFeed) Fetch(ctx context.Context, language string, timeRange models.TimeRange) (*Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(language, timeRange), nil)
	if err != nil {
		return nil, &models.SourceUnavailableError{Language: language, Err: err}
	}
	req.Header.Set("User-Agent", trendingUserAgent)
	req.Header.Set("Accept", "text/html")
	if f.token != "" {
		req.Header.Set("Authorization", "token "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &models.SourceUnavailableError{Language: language, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.SourceUnavailableError{Language: language, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &models.SourceUnavailableError{Language: language, Err: fmt.Errorf("parse document: %w", err)}
	}

	observed := f.now().UTC()
	articles := doc.Find("article.Box-row")
	entries := make([]func() (models.CandidateProject, error), 0, articles.Length())
	articles.Each(func(_ int, article *goquery.Selection) {
		entries = append(entries, func() (models.CandidateProject, error) {
			return parseTrendingArticle(article, observed)
		})
	})
	return newListing(entries), nil
}

func parseTrendingArticle(article *goquery.Selection, observed time.Time) (models.CandidateProject, error) {
	href, ok := article.Find("h2 a").First().Attr("href")
	if !ok {
		return models.CandidateProject{}, fmt.Errorf("entry has no repository link")
	}

	parts := strings.Split(strings.Trim(strings.TrimSpace(href), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return models.CandidateProject{}, fmt.Errorf("unexpected repository link %q", href)
	}

	candidate := models.CandidateProject{
		Owner:         parts[0],
		Name:          parts[1],
		Description:   collapseSpace(article.Find("p").First().Text()),
		Language:      collapseSpace(article.Find("span[itemprop='programmingLanguage']").First().Text()),
		RepositoryURL: "https://github.com/" + parts[0] + "/" + parts[1],
		TrendingDate:  observed,
	}

	counters := article.Find("a.Link--muted")
	candidate.StarsCount = parseCount(counters.Eq(0).Text())
	candidate.ForksCount = parseCount(counters.Eq(1).Text())

	if err := candidate.Validate(); err != nil {
		return models.CandidateProject{}, err
	}
	return candidate, nil
}

// parseCount reads "1,234", "1.2k" or "3m". Anything else is 0.
func parseCount(text string) int {
	text = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(text), ",", ""))
	if text == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(text, "k"):
		multiplier = 1_000
		text = strings.TrimSuffix(text, "k")
	case strings.HasSuffix(text, "m"):
		multiplier = 1_000_000
		text = strings.TrimSuffix(text, "m")
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	count := value*multiplier + 0.5
	if count >= math.MaxInt32 {
		return 0
	}
	return int(count)
}

func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Listing is a finite, single-use sequence of trending candidates.
// Malformed entries are skipped and counted instead of ending the sequence.
type Listing struct {
	mu       sync.Mutex
	entries  []func() (models.CandidateProject, error)
	consumed bool
	skipped  int
	errs     []error
}

func newListing(entries []func() (models.CandidateProject, error)) *Listing {
	return &Listing{entries: entries}
}

// Len returns the number of raw entries on the page
func (l *Listing) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// All yields valid candidates. Only the first call yields anything.
func (l *Listing) All() iter.Seq[models.CandidateProject] {
	return func(yield func(models.CandidateProject) bool) {
		l.mu.Lock()
		if l.consumed {
			l.mu.Unlock()
			return
		}
		l.consumed = true
		entries := l.entries
		l.mu.Unlock()

		for _, next := range entries {
			candidate, err := next()
			if err != nil {
				l.mu.Lock()
				l.skipped++
				l.errs = append(l.errs, err)
				l.mu.Unlock()
				continue
			}
			if !yield(candidate) {
				return
			}
		}
	}
}

// Skipped returns how many entries were dropped as malformed so far
func (l *Listing) Skipped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.skipped
}

// Errors returns the reasons entries were skipped
func (l *Listing) Errors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}
