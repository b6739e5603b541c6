package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/swingradar/festival-crawler/internal/festival"
	"github.com/swingradar/festival-crawler/internal/progress"
	"github.com/swingradar/festival-crawler/internal/validate"
)

// StoreImporter is the transactional write stage.
type StoreImporter interface {
	Import(ctx context.Context, data festival.FestivalData, opts festival.ImportOptions) (string, festival.ImportStats, error)
}

// ImportService runs the persistence half of the pipeline: validation,
// duplicate detection, and the transactional import.
type ImportService struct {
	validator *validate.Validator
	detector  festival.DuplicateDetector
	importer  StoreImporter
	notifier  *progress.Notifier
	ids       festival.IDGenerator
	logger    *zap.Logger
}

// NewImportService wires the import pipeline. detector and notifier may be
// nil; a nil detector disables the pre-write duplicate check.
func NewImportService(
	validator *validate.Validator,
	detector festival.DuplicateDetector,
	importer StoreImporter,
	notifier *progress.Notifier,
	ids festival.IDGenerator,
	logger *zap.Logger,
) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		validator: validator,
		detector:  detector,
		importer:  importer,
		notifier:  notifier,
		ids:       ids,
		logger:    logger,
	}
}

// ImportFestivalData validates data, consults the duplicate detector, and
// persists the festival atomically. It never returns an error.
func (s *ImportService) ImportFestivalData(ctx context.Context, data festival.FestivalData, opts festival.ImportOptions) (result festival.ImportResult) {
	sessionID, err := s.ids.NewID()
	if err != nil {
		sessionID = "session-unknown"
	}
	logger := s.logger.With(zap.String("session_id", sessionID), zap.String("festival", data.Name))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("import panicked", zap.Any("panic", r))
			result = s.fail(sessionID, festival.CodeInternal,
				fmt.Sprintf("unexpected internal failure: %v", r), result.Warnings)
		}
	}()

	s.notifier.SendProgress(sessionID, progress.StageValidating, 10, "validating festival data", nil)
	report := s.validator.Validate(data)
	result.Warnings = report.Warnings()
	if !report.IsValid {
		logger.Warn("validation rejected import", zap.Strings("errors", report.Errors()))
		res := s.fail(sessionID, festival.CodeValidation, "festival data failed validation", result.Warnings)
		res.Errors = report.Errors()
		return res
	}

	if opts.ValidateOnly {
		s.notifier.SendCompletion(sessionID, "validation passed, import skipped")
		result.Success = true
		return result
	}

	if s.detector != nil {
		s.notifier.SendProgress(sessionID, progress.StageDuplicateCheck, 30, "checking for duplicates", nil)
		dupes, dErr := s.detector.DetectDuplicates(ctx, report.Normalized)
		switch {
		case dErr != nil:
			// Detection is advisory; a broken detector must not block imports.
			logger.Warn("duplicate detection failed", zap.Error(dErr))
			result.Warnings = append(result.Warnings, "duplicate detection unavailable")
		case dupes.HasDuplicates:
			if match, ok := dupes.HighConfidence(); ok && !opts.SkipDuplicates {
				msg := fmt.Sprintf("high-confidence duplicate of existing festival %q", match.ExistingName)
				logger.Warn("import blocked by duplicate", zap.String("existing_id", match.ExistingID))
				res := s.fail(sessionID, festival.CodeConflict, msg, result.Warnings)
				res.Errors = []string{msg}
				return res
			}
			for _, m := range dupes.Festivals {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("similar festival %q (%s confidence)", m.ExistingName, m.MatchType))
			}
		}
	}

	s.notifier.SendProgress(sessionID, progress.StageImporting, 60, "writing festival", nil)
	eventID, stats, err := s.importer.Import(ctx, report.Normalized, opts)
	if err != nil {
		logger.Error("import transaction failed", zap.Error(err))
		res := s.fail(sessionID, festival.CodeOf(err), festival.MessageOf(err), result.Warnings)
		res.Errors = []string{festival.MessageOf(err)}
		return res
	}

	s.notifier.SendCompletion(sessionID, fmt.Sprintf("imported festival %s", eventID))
	logger.Info("import complete", zap.String("event_id", eventID))

	result.Success = true
	result.FestivalID = eventID
	result.Stats = stats
	return result
}

func (s *ImportService) fail(sessionID string, code festival.Code, message string, warnings []string) festival.ImportResult {
	s.notifier.SendError(sessionID, code, message)
	return festival.ImportResult{
		ErrorCode: code,
		Errors:    []string{message},
		Warnings:  warnings,
	}
}
