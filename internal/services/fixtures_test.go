package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alimgiray/ideabase/internal/models"
)

type trendingEntry struct {
	href        string
	description string
	language    string
	stars       string
	forks       string
}

func trendingPage(entries ...trendingEntry) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"Box\">")
	for _, e := range entries {
		b.WriteString(`<article class="Box-row">`)
		if e.href != "" {
			fmt.Fprintf(&b, `<h2 class="h3 lh-condensed"><a href="%s">%s</a></h2>`, e.href, strings.Trim(e.href, "/"))
		} else {
			b.WriteString(`<h2 class="h3 lh-condensed">no link</h2>`)
		}
		fmt.Fprintf(&b, `<p class="col-9 color-fg-muted my-1 pr-4">  %s  </p>`, e.description)
		b.WriteString(`<div class="f6 color-fg-muted mt-2">`)
		if e.language != "" {
			fmt.Fprintf(&b, `<span itemprop="programmingLanguage">%s</span>`, e.language)
		}
		fmt.Fprintf(&b, `<a class="Link--muted d-inline-block mr-3" href="%s/stargazers"><svg></svg> %s </a>`, e.href, e.stars)
		fmt.Fprintf(&b, `<a class="Link--muted d-inline-block mr-3" href="%s/forks"><svg></svg> %s </a>`, e.href, e.forks)
		b.WriteString(`</div></article>`)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

// fakeGenerator returns a canned response and counts calls
type fakeGenerator struct {
	response string
	err      error
	calls    atomic.Int32
}

func (g *fakeGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls.Add(1)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

const taggedResponse = `<analysis>
<business_value>Saves time</business_value>
<market_opportunity>Large</market_opportunity>
<startup_ideas>Hosted version</startup_ideas>
<target_audience>Developers</target_audience>
<competition_analysis>Few rivals</competition_analysis>
</analysis>`

// fakeFeed serves fixed candidates or errors per language filter
type fakeFeed struct {
	mu       sync.Mutex
	listings map[string][]models.CandidateProject
	errs     map[string]error
	fetched  []string
}

func (f *fakeFeed) Fetch(ctx context.Context, language string, timeRange models.TimeRange) (*Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, language)
	if err := f.errs[language]; err != nil {
		return nil, err
	}
	var entries []func() (models.CandidateProject, error)
	for _, c := range f.listings[language] {
		entries = append(entries, func() (models.CandidateProject, error) { return c, nil })
	}
	return newListing(entries), nil
}
