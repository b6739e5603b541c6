// Package pipeline wires the validation, crawl, extraction, scoring, and
// import stages into the two public entry points. Both entry points convert
// every internal failure into a success:false result instead of returning an
// error, so callers never need their own recovery layer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/swingradar/festival-crawler/internal/extract"
	"github.com/swingradar/festival-crawler/internal/festival"
	"github.com/swingradar/festival-crawler/internal/fetch"
	"github.com/swingradar/festival-crawler/internal/normalize"
	"github.com/swingradar/festival-crawler/internal/progress"
	"github.com/swingradar/festival-crawler/internal/score"
	"github.com/swingradar/festival-crawler/internal/urlcheck"
)

// Explorer is the crawl stage consumed by the scraper.
type Explorer interface {
	Explore(ctx context.Context, startURL, sessionID string) (fetch.Result, error)
}

// Extractor is the model-extraction stage consumed by the scraper.
type Extractor interface {
	Extract(ctx context.Context, content string) (extract.RawFestival, error)
}

// Scraper runs the acquisition half of the pipeline: URL validation, bounded
// crawl, extraction, normalization, and confidence scoring.
type Scraper struct {
	validator  *urlcheck.Validator
	explorer   Explorer
	extractor  Extractor
	normalizer *normalize.Normalizer
	scorer     *score.Scorer
	notifier   *progress.Notifier
	ids        festival.IDGenerator
	logger     *zap.Logger
}

// NewScraper wires the scrape pipeline. notifier may be nil.
func NewScraper(
	validator *urlcheck.Validator,
	explorer Explorer,
	extractor Extractor,
	notifier *progress.Notifier,
	ids festival.IDGenerator,
	logger *zap.Logger,
) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		validator:  validator,
		explorer:   explorer,
		extractor:  extractor,
		normalizer: normalize.New(),
		scorer:     score.New(),
		notifier:   notifier,
		ids:        ids,
		logger:     logger,
	}
}

// ScrapeFestivalURL runs the full scrape for one URL. It never returns an
// error: failures are encoded in the result with a code and message.
func (s *Scraper) ScrapeFestivalURL(ctx context.Context, rawURL string) (result festival.ScrapeResult) {
	started := time.Now()
	result.Metadata = festival.ScrapeMetadata{URL: rawURL, Timestamp: started.UTC()}

	sessionID, err := s.ids.NewID()
	if err != nil {
		sessionID = "session-unknown"
	}
	logger := s.logger.With(zap.String("session_id", sessionID), zap.String("url", rawURL))

	defer func() {
		result.Metadata.ProcessingTimeMS = time.Since(started).Milliseconds()
		if r := recover(); r != nil {
			logger.Error("scrape panicked", zap.Any("panic", r))
			result = s.fail(sessionID, result.Metadata, festival.CodeInternal,
				fmt.Sprintf("unexpected internal failure: %v", r))
			result.Metadata.ProcessingTimeMS = time.Since(started).Milliseconds()
		}
	}()

	s.notifier.SendProgress(sessionID, progress.StageValidatingURL, 5, "validating url", nil)
	canonical, err := s.validator.Validate(rawURL)
	if err != nil {
		logger.Warn("url rejected", zap.Error(err))
		return s.fail(sessionID, result.Metadata, festival.CodeOf(err), festival.MessageOf(err))
	}
	result.Metadata.URL = canonical

	s.notifier.SendProgress(sessionID, progress.StageExploring, 15, "exploring site pages", nil)
	pages, err := s.explorer.Explore(ctx, canonical, sessionID)
	result.Metadata.PagesExplored = pages.PagesExplored
	if err != nil {
		logger.Warn("exploration failed", zap.Error(err))
		return s.fail(sessionID, result.Metadata, classifyStageErr(err), festival.MessageOf(err))
	}
	logger.Info("exploration complete", zap.Int("pages", pages.PagesExplored))

	s.notifier.SendProgress(sessionID, progress.StageExtracting, 50, "extracting festival data", nil)
	raw, err := s.extractor.Extract(ctx, pages.Content)
	if err != nil {
		logger.Warn("extraction failed", zap.Error(err))
		return s.fail(sessionID, result.Metadata, classifyStageErr(err), festival.MessageOf(err))
	}

	s.notifier.SendProgress(sessionID, progress.StageNormalizing, 75, "normalizing extracted data", nil)
	data := s.normalizer.Normalize(raw, canonical)

	s.notifier.SendProgress(sessionID, progress.StageScoring, 90, "scoring extraction confidence", nil)
	confidence := s.scorer.Score(data)

	s.notifier.SendCompletion(sessionID, fmt.Sprintf("scraped %q with confidence %.2f", data.Name, confidence))
	logger.Info("scrape complete",
		zap.String("festival", data.Name),
		zap.Float64("confidence", confidence))

	result.Success = true
	result.Data = &data
	result.Confidence = confidence
	return result
}

func (s *Scraper) fail(sessionID string, meta festival.ScrapeMetadata, code festival.Code, message string) festival.ScrapeResult {
	s.notifier.SendError(sessionID, code, message)
	return festival.ScrapeResult{
		ErrorCode: code,
		Error:     message,
		Metadata:  meta,
	}
}

// classifyStageErr keeps typed codes and maps bare context deadline failures
// to TIMEOUT; anything else from a network stage is an external failure.
func classifyStageErr(err error) festival.Code {
	var fe *festival.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return festival.CodeTimeout
	}
	return festival.CodeExternalService
}
