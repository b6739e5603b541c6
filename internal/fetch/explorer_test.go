package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobmemory "github.com/swingradar/festival-crawler/internal/blob/memory"
)

// fakeFetcher serves canned pages and records which URLs were requested.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]Page
	fail  map[string]bool
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if f.fail[url] {
		return Page{}, fmt.Errorf("fetch %s: connection refused", url)
	}
	page, ok := f.pages[url]
	if !ok {
		return Page{URL: url, StatusCode: http.StatusOK, Body: []byte("<html><body>stub</body></html>")}, nil
	}
	return page, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func mainPageWithLinks(n int) Page {
	var sb strings.Builder
	sb.WriteString("<html><body><h1>Swing Out Festival</h1>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, `<a href="/schedule-%d">Schedule day %d</a>`, i, i)
	}
	sb.WriteString("</body></html>")
	return Page{
		URL:        "https://fest.example.com/",
		StatusCode: http.StatusOK,
		Body:       []byte(sb.String()),
	}
}

func TestExploreCapsPageBudget(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[string]Page{"https://fest.example.com/": mainPageWithLinks(30)},
		fail:  map[string]bool{},
	}
	e := NewExplorer(ExplorerConfig{ExploreBudget: 30 * time.Second}, fetcher, nil, nil, nil, nil)

	res, err := e.Explore(context.Background(), "https://fest.example.com/", "sess-1")
	require.NoError(t, err)

	// Main page plus at most 14 linked pages.
	assert.Equal(t, MaxPages, res.PagesExplored)
	assert.Equal(t, MaxPages, fetcher.callCount())
}

func TestExploreToleratesIndividualFailures(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[string]Page{"https://fest.example.com/": mainPageWithLinks(3)},
		fail: map[string]bool{
			"https://fest.example.com/schedule-1": true,
		},
	}
	e := NewExplorer(ExplorerConfig{}, fetcher, nil, nil, nil, nil)

	res, err := e.Explore(context.Background(), "https://fest.example.com/", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.PagesExplored)
	assert.NotContains(t, res.PageURLs, "https://fest.example.com/schedule-1")
}

func TestExploreFailsWhenMainPageFails(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[string]Page{},
		fail:  map[string]bool{"https://down.example.com/": true},
	}
	e := NewExplorer(ExplorerConfig{}, fetcher, nil, nil, nil, nil)

	_, err := e.Explore(context.Background(), "https://down.example.com/", "sess-1")
	assert.Error(t, err)
}

func TestExploreConcatenatesWithSeparators(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[string]Page{"https://fest.example.com/": mainPageWithLinks(2)},
		fail:  map[string]bool{},
	}
	e := NewExplorer(ExplorerConfig{}, fetcher, nil, nil, nil, nil)

	res, err := e.Explore(context.Background(), "https://fest.example.com/", "sess-1")
	require.NoError(t, err)
	assert.Contains(t, res.Content, "--- PAGE: https://fest.example.com/ ---")
	assert.Contains(t, res.Content, "--- PAGE: https://fest.example.com/schedule-0 ---")
	assert.Contains(t, res.Content, "Swing Out Festival")
}

func TestExploreArchivesSnapshots(t *testing.T) {
	t.Parallel()

	store := blobmemory.New()
	fetcher := &fakeFetcher{
		pages: map[string]Page{"https://fest.example.com/": mainPageWithLinks(1)},
		fail:  map[string]bool{},
	}
	e := NewExplorer(ExplorerConfig{}, fetcher, nil, nil, store, nil)

	_, err := e.Explore(context.Background(), "https://fest.example.com/", "sess-9")
	require.NoError(t, err)
}

func TestRenderDetector(t *testing.T) {
	t.Parallel()

	d := NewRenderDetector(0)
	assert.True(t, d.ShouldRender(Page{StatusCode: 200, Body: []byte(`<div id="root"></div>`)}))
	assert.True(t, d.ShouldRender(Page{StatusCode: 200, Body: nil}))
	assert.False(t, d.ShouldRender(Page{StatusCode: 200, Body: []byte(strings.Repeat("<p>content</p>", 500))}))
	assert.False(t, d.ShouldRender(Page{StatusCode: 404, Body: nil}))
	assert.False(t, d.ShouldRender(Page{StatusCode: 200, Rendered: true}))
}
