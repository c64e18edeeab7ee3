package model

import "time"

// ResultsExport is the top-level JSON structure for result export.
type ResultsExport struct {
	ExportedAt  time.Time        `json:"exported_at"`
	ScoringMode string           `json:"scoring_mode"`
	Sections    []SectionExport  `json:"sections"`
	FullMocks   []FullMockExport `json:"full_mocks"`
}

// SectionExport holds one Listening or Reading result with its band.
type SectionExport struct {
	ID         string    `json:"id"`
	Section    string    `json:"section"`
	TestID     string    `json:"test_id"`
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	Correct    int       `json:"correct"`
	Incorrect  int       `json:"incorrect"`
	Unanswered int       `json:"unanswered"`
	Band       string    `json:"band"`
	CreatedAt  time.Time `json:"created_at"`
}

// FullMockExport holds one full mock result. OverallBand is empty while the
// writing band is pending or a section is below the minimum band.
type FullMockExport struct {
	ID             string    `json:"id"`
	TestID         string    `json:"test_id"`
	Name           string    `json:"name"`
	ListeningScore int       `json:"listening_score"`
	ReadingScore   int       `json:"reading_score"`
	ListeningBand  string    `json:"listening_band"`
	ReadingBand    string    `json:"reading_band"`
	WritingBand    string    `json:"writing_band,omitempty"`
	OverallBand    string    `json:"overall_band,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
