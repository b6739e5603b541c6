package festival

import "time"

// ScrapeMetadata records how a scrape run went, independent of its outcome.
type ScrapeMetadata struct {
	URL              string    `json:"url"`
	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	PagesExplored    int       `json:"pages_explored"`
}

// ScrapeResult is what the scrape entry point returns. It never accompanies
// an error: failures are encoded as Success=false with a code and message.
type ScrapeResult struct {
	Success    bool           `json:"success"`
	Data       *FestivalData  `json:"data,omitempty"`
	Confidence float64        `json:"confidence"`
	ErrorCode  Code           `json:"error_code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metadata   ScrapeMetadata `json:"metadata"`
}

// ImportOptions tune a single import request.
type ImportOptions struct {
	SkipDuplicates bool `json:"skip_duplicates"`
	GeocodeVenue   bool `json:"geocode_venue"`
	ValidateOnly   bool `json:"validate_only"`
}

// ImportStats counts entities created (not reused) by one import.
type ImportStats struct {
	VenuesCreated    int `json:"venues_created"`
	TeachersCreated  int `json:"teachers_created"`
	MusiciansCreated int `json:"musicians_created"`
	PricesCreated    int `json:"prices_created"`
	TagsCreated      int `json:"tags_created"`
}

// ImportResult is what the import entry point returns; like ScrapeResult it
// is never accompanied by an error.
type ImportResult struct {
	Success    bool        `json:"success"`
	FestivalID string      `json:"festival_id,omitempty"`
	ErrorCode  Code        `json:"error_code,omitempty"`
	Errors     []string    `json:"errors"`
	Warnings   []string    `json:"warnings"`
	Stats      ImportStats `json:"stats"`
}
