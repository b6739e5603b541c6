package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/swingradar/festival-crawler/internal/blob"
)

// MaxPages is the crawl budget: the main page plus up to MaxPages-1 linked
// pages.
const MaxPages = 15

// pageSeparator delimits page bodies in the concatenated output.
const pageSeparator = "\n\n--- PAGE: %s ---\n\n"

// ExplorerConfig controls a crawl session.
type ExplorerConfig struct {
	MaxPages      int
	ExploreBudget time.Duration
	SnapshotPath  string
}

// Result carries the concatenated content of all successfully fetched pages.
type Result struct {
	Content       string
	PagesExplored int
	PageURLs      []string
}

// Explorer fetches the main page and a prioritized subset of its links.
type Explorer struct {
	cfg       ExplorerConfig
	fetcher   PageFetcher
	headless  PageFetcher
	detector  *RenderDetector
	converter *Converter
	snapshots blob.Store
	logger    *zap.Logger
}

// NewExplorer builds an Explorer. headless and snapshots may be nil.
func NewExplorer(
	cfg ExplorerConfig,
	fetcher PageFetcher,
	headless PageFetcher,
	detector *RenderDetector,
	snapshots blob.Store,
	logger *zap.Logger,
) *Explorer {
	if cfg.MaxPages <= 0 || cfg.MaxPages > MaxPages {
		cfg.MaxPages = MaxPages
	}
	if cfg.ExploreBudget <= 0 {
		cfg.ExploreBudget = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explorer{
		cfg:       cfg,
		fetcher:   fetcher,
		headless:  headless,
		detector:  detector,
		converter: NewConverter(),
		snapshots: snapshots,
		logger:    logger,
	}
}

// Explore fetches startURL and its highest-priority same-origin links under a
// single shared deadline. Individual page failures are tolerated; only a
// failed main-page fetch fails the exploration.
func (e *Explorer) Explore(ctx context.Context, startURL, sessionID string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ExploreBudget)
	defer cancel()

	main, err := e.fetchMain(ctx, startURL)
	if err != nil {
		return Result{}, fmt.Errorf("fetch main page: %w", err)
	}
	e.snapshot(ctx, sessionID, main)

	base, err := url.Parse(main.URL)
	if err != nil {
		return Result{}, fmt.Errorf("parse main url: %w", err)
	}

	links, err := ExtractLinks(base, main.Body)
	if err != nil {
		e.logger.Warn("link extraction failed, continuing with main page only",
			zap.String("url", main.URL), zap.Error(err))
		links = nil
	}
	if extra := e.cfg.MaxPages - 1; len(links) > extra {
		links = links[:extra]
	}

	pages := e.fetchLinked(ctx, sessionID, links)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(pageSeparator, main.URL))
	sb.WriteString(e.converter.Convert(main.Body))
	urls := []string{main.URL}
	for _, p := range pages {
		sb.WriteString(fmt.Sprintf(pageSeparator, p.URL))
		sb.WriteString(e.converter.Convert(p.Body))
		urls = append(urls, p.URL)
	}

	return Result{
		Content:       sb.String(),
		PagesExplored: len(urls),
		PageURLs:      urls,
	}, nil
}

// fetchMain fetches the entry page, promoting to the headless renderer once
// when the body looks JavaScript-rendered.
func (e *Explorer) fetchMain(ctx context.Context, startURL string) (Page, error) {
	page, err := e.fetcher.Fetch(ctx, startURL)
	if err != nil {
		return Page{}, err
	}
	if e.headless == nil || e.detector == nil || !e.detector.ShouldRender(page) {
		return page, nil
	}
	rendered, err := e.headless.Fetch(ctx, startURL)
	if err != nil {
		e.logger.Warn("headless render failed, using plain fetch",
			zap.String("url", startURL), zap.Error(err))
		return page, nil
	}
	return rendered, nil
}

// fetchLinked fans out over the prioritized links; every failure is logged
// and dropped, the join never fails as a whole. Results keep priority order.
func (e *Explorer) fetchLinked(ctx context.Context, sessionID string, links []Link) []Page {
	results := make([]*Page, len(links))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, link := range links {
		g.Go(func() error {
			page, err := e.fetcher.Fetch(gctx, link.URL)
			if err != nil {
				e.logger.Warn("linked page fetch failed",
					zap.String("url", link.URL), zap.Error(err))
				return nil
			}
			e.snapshot(gctx, sessionID, page)
			mu.Lock()
			results[i] = &page
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	pages := make([]Page, 0, len(links))
	for _, p := range results {
		if p != nil {
			pages = append(pages, *p)
		}
	}
	return pages
}

// snapshot archives the raw page body; failures are logged, never fatal.
func (e *Explorer) snapshot(ctx context.Context, sessionID string, page Page) {
	if e.snapshots == nil || len(page.Body) == 0 {
		return
	}
	sum := sha256.Sum256(page.Body)
	path := fmt.Sprintf("%s/%s.html", sessionID, hex.EncodeToString(sum[:]))
	if prefix := strings.Trim(e.cfg.SnapshotPath, "/"); prefix != "" {
		path = prefix + "/" + path
	}
	uri, err := e.snapshots.PutObject(ctx, path, "text/html; charset=utf-8", bytes.NewReader(page.Body))
	if err != nil {
		e.logger.Warn("page snapshot failed", zap.String("url", page.URL), zap.Error(err))
		return
	}
	e.logger.Debug("page snapshot stored", zap.String("url", page.URL), zap.String("uri", uri))
}
