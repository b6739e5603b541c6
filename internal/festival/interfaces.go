package festival

import (
	"context"
	"time"
)

// Completer is the language-model completion capability consumed by the
// extraction client. Implementations live outside the pipeline core.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// MatchConfidence tiers a duplicate-detection hit.
type MatchConfidence string

// Duplicate match tiers.
const (
	MatchHigh   MatchConfidence = "high"
	MatchMedium MatchConfidence = "medium"
	MatchLow    MatchConfidence = "low"
)

// DuplicateMatch describes one existing festival similar to the candidate.
type DuplicateMatch struct {
	MatchType    MatchConfidence
	ExistingName string
	ExistingID   string
}

// DuplicateReport is the result of a pre-write duplicate check.
type DuplicateReport struct {
	HasDuplicates bool
	Festivals     []DuplicateMatch
}

// HighConfidence returns the first high-tier match, if any.
func (r DuplicateReport) HighConfidence() (DuplicateMatch, bool) {
	for _, m := range r.Festivals {
		if m.MatchType == MatchHigh {
			return m, true
		}
	}
	return DuplicateMatch{}, false
}

// DuplicateDetector checks whether similar festivals already exist. The
// implementation is an external collaborator; the importer only consumes the
// contract.
type DuplicateDetector interface {
	DetectDuplicates(ctx context.Context, data FestivalData) (DuplicateReport, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints identifiers for sessions and persisted rows.
type IDGenerator interface {
	NewID() (string, error)
}
