package results

import (
	"time"

	"github.com/ieltsprep/mockcenter/internal/model"
	"github.com/ieltsprep/mockcenter/internal/scoring"
)

// Export collects every stored result with its bands.
func (s *Service) Export() (model.ResultsExport, error) {
	out := model.ResultsExport{
		ExportedAt:  time.Now().UTC(),
		ScoringMode: string(s.conv.Mode),
		Sections:    []model.SectionExport{},
		FullMocks:   []model.FullMockExport{},
	}
	if out.ScoringMode == "" {
		out.ScoringMode = string(scoring.ModeRaw)
	}

	for _, section := range []scoring.Section{scoring.SectionListening, scoring.SectionReading} {
		views, err := s.ListSection(section, "")
		if err != nil {
			return out, err
		}
		for _, v := range views {
			out.Sections = append(out.Sections, model.SectionExport{
				ID:         v.Result.ID,
				Section:    string(section),
				TestID:     v.Result.TestID,
				Name:       v.Result.Name,
				Score:      v.Result.Score,
				Total:      v.Result.Total,
				Correct:    v.Tally.Correct,
				Incorrect:  v.Tally.Incorrect,
				Unanswered: v.Tally.Unanswered,
				Band:       v.Band.String(),
				CreatedAt:  v.Result.CreatedAt,
			})
		}
	}

	mocks, err := s.ListFullMocks("", "")
	if err != nil {
		return out, err
	}
	for _, v := range mocks {
		e := model.FullMockExport{
			ID:             v.Result.ID,
			TestID:         v.Result.TestID,
			Name:           v.Result.Name,
			ListeningScore: v.Result.ListeningScore,
			ReadingScore:   v.Result.ReadingScore,
			ListeningBand:  v.ListeningBand.String(),
			ReadingBand:    v.ReadingBand.String(),
			CreatedAt:      v.Result.CreatedAt,
		}
		if v.Result.WritingBand != nil {
			e.WritingBand = v.Result.WritingBand.String()
		}
		if v.Composite != nil {
			e.OverallBand = v.Composite.Overall.String()
		}
		out.FullMocks = append(out.FullMocks, e)
	}
	return out, nil
}
