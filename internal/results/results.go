// Package results scores submissions against the test catalogue and
// assembles stored results into views with their bands.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ieltsprep/mockcenter/internal/llm"
	"github.com/ieltsprep/mockcenter/internal/model"
	"github.com/ieltsprep/mockcenter/internal/scoring"
	"github.com/ieltsprep/mockcenter/internal/store"
)

// PartSize is the number of questions in one Listening part or result block.
const PartSize = 10

// ErrNotFound is returned when a test or result does not exist.
var ErrNotFound = sql.ErrNoRows

// WritingAssessor suggests a writing band for two task responses.
type WritingAssessor interface {
	AssessWriting(ctx context.Context, task1, task2 string) (*llm.WritingAssessment, error)
}

// Service scores and loads results.
type Service struct {
	store    *store.Store
	conv     scoring.Converter
	assessor WritingAssessor
}

// NewService creates a Service using the given scoring mode. assessor may be
// nil, in which case writing suggestions are unavailable.
func NewService(s *store.Store, mode scoring.Mode, assessor WritingAssessor) *Service {
	return &Service{store: s, conv: scoring.NewConverter(mode), assessor: assessor}
}

// Mode returns the scoring mode in use.
func (s *Service) Mode() scoring.Mode {
	return s.conv.Mode
}

// SectionSubmission is a Listening or Reading answer sheet.
type SectionSubmission struct {
	TestID  string            `json:"test_id"`
	Answers map[string]string `json:"answers"`
}

// FullMockSubmission is a complete mock answer sheet.
type FullMockSubmission struct {
	TestID           string               `json:"test_id"`
	ListeningAnswers map[string]string    `json:"listening_answers"`
	ReadingAnswers   map[string]string    `json:"reading_answers"`
	Writing          model.WritingAnswers `json:"writing_answers"`
}

func displayName(u *model.User) (id, name string) {
	if u == nil {
		return "", ""
	}
	if u.DisplayName != "" {
		return u.ID, u.DisplayName
	}
	return u.ID, u.Email
}

func (s *Service) answerKey(testID string, section scoring.Section) (model.AnswerKey, error) {
	test, err := s.store.GetTest(testID)
	if err != nil {
		return nil, fmt.Errorf("get test %s: %w", testID, err)
	}
	key := test.KeyFor(section)
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: test %s has no %s answer key", scoring.ErrInvalidInput, testID, section)
	}
	return key, nil
}

// SubmitSection scores a Listening or Reading submission and stores it.
func (s *Service) SubmitSection(section scoring.Section, user *model.User, sub SectionSubmission) (model.SectionView, error) {
	if _, err := scoring.ParseSection(string(section)); err != nil {
		return model.SectionView{}, err
	}
	key, err := s.answerKey(sub.TestID, section)
	if err != nil {
		return model.SectionView{}, err
	}
	tally, err := scoring.TallyAnswers(key.QuestionIDs(), sub.Answers, key)
	if err != nil {
		return model.SectionView{}, err
	}

	uid, name := displayName(user)
	r := model.SectionResult{
		Section:        section,
		TestID:         sub.TestID,
		UserID:         uid,
		Name:           name,
		Answers:        sub.Answers,
		CorrectAnswers: key,
		Score:          tally.RawScore(),
		Total:          tally.Total(),
	}
	// Validate before storing so unscorable submissions never persist.
	if _, err := s.conv.BandFor(section, r.Score, r.Total); err != nil {
		return model.SectionView{}, err
	}
	id, err := s.store.CreateSectionResult(r)
	if err != nil {
		return model.SectionView{}, fmt.Errorf("store %s result: %w", section, err)
	}
	slog.Info("scored section", "section", section, "id", id, "test_id", r.TestID, "score", r.Score, "total", r.Total)
	return s.SectionView(section, id)
}

// SectionView loads a stored section result with its tally, band and parts.
func (s *Service) SectionView(section scoring.Section, id string) (model.SectionView, error) {
	r, err := s.store.GetSectionResult(section, id)
	if err != nil {
		return model.SectionView{}, err
	}
	return s.buildSectionView(r)
}

func (s *Service) buildSectionView(r model.SectionResult) (model.SectionView, error) {
	tally, err := scoring.TallyAnswers(r.CorrectAnswers.QuestionIDs(), r.Answers, r.CorrectAnswers)
	if err != nil {
		return model.SectionView{}, err
	}
	band, err := s.conv.BandFor(r.Section, r.Score, r.Total)
	if err != nil {
		return model.SectionView{}, fmt.Errorf("result %s: %w", r.ID, err)
	}
	v := model.SectionView{
		Result:     r,
		Tally:      tally,
		Band:       band,
		PartScores: tally.PartScores((r.Total+PartSize-1)/PartSize, PartSize),
	}
	if r.Total > 0 {
		v.Accuracy = r.Score * 100 / r.Total
	}
	return v, nil
}

// ListSection returns section results newest first. An empty userID lists
// every user's results.
func (s *Service) ListSection(section scoring.Section, userID string) ([]model.SectionView, error) {
	list, err := s.store.ListSectionResults(section, userID)
	if err != nil {
		return nil, err
	}
	views := make([]model.SectionView, 0, len(list))
	for _, r := range list {
		v, err := s.buildSectionView(r)
		if err != nil {
			slog.Warn("skipping unscorable result", "section", section, "id", r.ID, "error", err)
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

// DeleteSection removes a section result. It returns ErrNotFound when the
// result does not exist.
func (s *Service) DeleteSection(section scoring.Section, id string) error {
	ok, err := s.store.DeleteSectionResult(section, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// SubmitFullMock scores the listening and reading parts of a full mock and
// stores it with the writing band pending.
func (s *Service) SubmitFullMock(user *model.User, sub FullMockSubmission) (model.FullMockView, error) {
	test, err := s.store.GetTest(sub.TestID)
	if err != nil {
		return model.FullMockView{}, fmt.Errorf("get test %s: %w", sub.TestID, err)
	}
	if test.Kind != model.KindFullMock {
		return model.FullMockView{}, fmt.Errorf("%w: test %s is not a full mock", scoring.ErrInvalidInput, test.ID)
	}

	lt, err := scoreSection(test, scoring.SectionListening, sub.ListeningAnswers)
	if err != nil {
		return model.FullMockView{}, err
	}
	rt, err := scoreSection(test, scoring.SectionReading, sub.ReadingAnswers)
	if err != nil {
		return model.FullMockView{}, err
	}

	uid, name := displayName(user)
	r := model.FullMockResult{
		TestID:           test.ID,
		UserID:           uid,
		Name:             name,
		ListeningAnswers: sub.ListeningAnswers,
		ReadingAnswers:   sub.ReadingAnswers,
		ListeningScore:   lt.RawScore(),
		ListeningTotal:   lt.Total(),
		ReadingScore:     rt.RawScore(),
		ReadingTotal:     rt.Total(),
		Writing:          sub.Writing,
	}
	if _, err := s.buildFullMockView(r); err != nil {
		return model.FullMockView{}, err
	}
	id, err := s.store.CreateFullMockResult(r)
	if err != nil {
		return model.FullMockView{}, fmt.Errorf("store full mock result: %w", err)
	}
	slog.Info("scored full mock", "id", id, "test_id", r.TestID,
		"listening", r.ListeningScore, "reading", r.ReadingScore)
	return s.FullMockView(id)
}

func scoreSection(test model.Test, section scoring.Section, answers map[string]string) (scoring.Tally, error) {
	key := test.KeyFor(section)
	if len(key) == 0 {
		return scoring.Tally{}, fmt.Errorf("%w: test %s has no %s answer key", scoring.ErrInvalidInput, test.ID, section)
	}
	t, err := scoring.TallyAnswers(key.QuestionIDs(), answers, key)
	if err != nil {
		return scoring.Tally{}, fmt.Errorf("%s: %w", section, err)
	}
	return t, nil
}

// FullMockView loads a full mock result with its section bands, writing
// report and, once the writing band is assigned, the overall band.
func (s *Service) FullMockView(id string) (model.FullMockView, error) {
	r, err := s.store.GetFullMockResult(id)
	if err != nil {
		return model.FullMockView{}, err
	}
	return s.buildFullMockView(r)
}

func (s *Service) buildFullMockView(r model.FullMockResult) (model.FullMockView, error) {
	lb, err := s.conv.BandForListening(r.ListeningScore, r.ListeningTotal)
	if err != nil {
		return model.FullMockView{}, fmt.Errorf("listening: %w", err)
	}
	rb, err := s.conv.BandForReading(r.ReadingScore, r.ReadingTotal)
	if err != nil {
		return model.FullMockView{}, fmt.Errorf("reading: %w", err)
	}
	v := model.FullMockView{
		Result:        r,
		ListeningBand: lb,
		ReadingBand:   rb,
		Writing:       scoring.ReportWriting(r.Writing.Task1, r.Writing.Task2),
	}
	if r.WritingBand == nil {
		v.PendingWriting = true
		return v, nil
	}
	comp, err := s.conv.Aggregate(r.ListeningScore, r.ListeningTotal, r.ReadingScore, r.ReadingTotal, *r.WritingBand)
	if err != nil {
		if !errors.Is(err, scoring.ErrInvalidInput) {
			return model.FullMockView{}, err
		}
		// A section below the minimum band has no overall band.
		v.Problem = err.Error()
		return v, nil
	}
	v.Composite = &comp
	return v, nil
}

// ListFullMocks returns full mock views newest first, optionally filtered.
func (s *Service) ListFullMocks(userID, testID string) ([]model.FullMockView, error) {
	list, err := s.store.ListFullMockResults(userID, testID)
	if err != nil {
		return nil, err
	}
	views := make([]model.FullMockView, 0, len(list))
	for _, r := range list {
		v, err := s.buildFullMockView(r)
		if err != nil {
			slog.Warn("skipping unscorable full mock", "id", r.ID, "error", err)
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

// DeleteFullMock removes a full mock result. It returns ErrNotFound when the
// result does not exist.
func (s *Service) DeleteFullMock(id string) error {
	ok, err := s.store.DeleteFullMockResult(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// AssignWriting records the examiner's writing band and returns the updated view.
func (s *Service) AssignWriting(id string, band scoring.Band, feedback string, by *model.User) (model.FullMockView, error) {
	if !band.IsNumeric() {
		return model.FullMockView{}, fmt.Errorf("%w: writing band must be numeric", scoring.ErrInvalidInput)
	}
	assignedBy := ""
	if by != nil {
		assignedBy = by.ID
	}
	if err := s.store.AssignWritingBand(id, band, feedback, assignedBy); err != nil {
		return model.FullMockView{}, err
	}
	slog.Info("assigned writing band", "id", id, "band", band, "by", assignedBy)
	return s.FullMockView(id)
}

// ErrNoAssessor is returned by SuggestWriting when no LLM is configured.
var ErrNoAssessor = errors.New("writing assessment is not configured")

// SuggestWriting asks the assessor for a writing band. The suggestion is
// not stored.
func (s *Service) SuggestWriting(ctx context.Context, id string) (*llm.WritingAssessment, error) {
	if s.assessor == nil {
		return nil, ErrNoAssessor
	}
	r, err := s.store.GetFullMockResult(id)
	if err != nil {
		return nil, err
	}
	report := scoring.ReportWriting(r.Writing.Task1, r.Writing.Task2)
	if report.CompletedTasks == 0 {
		return nil, fmt.Errorf("%w: no writing tasks to assess", scoring.ErrInvalidInput)
	}
	return s.assessor.AssessWriting(ctx, r.Writing.Task1, r.Writing.Task2)
}
