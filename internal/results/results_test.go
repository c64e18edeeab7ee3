package results

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ieltsprep/mockcenter/internal/llm"
	"github.com/ieltsprep/mockcenter/internal/model"
	"github.com/ieltsprep/mockcenter/internal/scoring"
	"github.com/ieltsprep/mockcenter/internal/store"
)

type fakeAssessor struct {
	band  float64
	calls int
}

func (f *fakeAssessor) AssessWriting(_ context.Context, task1, task2 string) (*llm.WritingAssessment, error) {
	f.calls++
	b, err := scoring.NumericBand(f.band)
	if err != nil {
		return nil, err
	}
	return &llm.WritingAssessment{Band: b, Feedback: "ok"}, nil
}

// fortyKey returns q1..q40 each accepting "a".
func fortyKey() model.AnswerKey {
	k := model.AnswerKey{}
	for i := 1; i <= 40; i++ {
		k[fmt.Sprintf("q%d", i)] = []string{"a"}
	}
	return k
}

// answersCorrect answers the first n questions correctly and the rest wrong.
func answersCorrect(n int) map[string]string {
	a := map[string]string{}
	for i := 1; i <= 40; i++ {
		if i <= n {
			a[fmt.Sprintf("q%d", i)] = "A"
		} else {
			a[fmt.Sprintf("q%d", i)] = "b"
		}
	}
	return a
}

func newTestService(t *testing.T, assessor WritingAssessor) (*Service, *store.Store) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	for _, tt := range []model.Test{
		{ID: "L1", Kind: model.KindListening, Title: "Listening 1", Answers: fortyKey()},
		{ID: "R1", Kind: model.KindReading, Title: "Reading 1", Answers: fortyKey()},
		{ID: "F1", Kind: model.KindFullMock, Title: "Full 1", ListeningAnswers: fortyKey(), ReadingAnswers: fortyKey()},
		{ID: "W1", Kind: model.KindWriting, Title: "Writing 1"},
	} {
		if err := s.UpsertTest(tt); err != nil {
			t.Fatalf("UpsertTest: %v", err)
		}
	}
	return NewService(s, scoring.ModeRaw, assessor), s
}

var student = &model.User{ID: "u1", Email: "alice@example.com", Role: model.UserRoleStudent}

func TestSubmitSection(t *testing.T) {
	svc, _ := newTestService(t, nil)

	v, err := svc.SubmitSection(scoring.SectionListening, student, SectionSubmission{
		TestID:  "L1",
		Answers: answersCorrect(35),
	})
	if err != nil {
		t.Fatalf("SubmitSection: %v", err)
	}
	if v.Result.Score != 35 || v.Result.Total != 40 {
		t.Errorf("score = %d/%d, want 35/40", v.Result.Score, v.Result.Total)
	}
	if v.Band.String() != "8.0" {
		t.Errorf("band = %s, want 8.0", v.Band)
	}
	if v.Result.Name != "alice@example.com" || v.Result.UserID != "u1" {
		t.Errorf("unexpected owner %q/%q", v.Result.UserID, v.Result.Name)
	}
	want := []int{10, 10, 10, 5}
	for i, p := range v.PartScores {
		if p != want[i] {
			t.Fatalf("PartScores = %v, want %v", v.PartScores, want)
		}
	}
	if v.Accuracy != 87 {
		t.Errorf("Accuracy = %d, want 87", v.Accuracy)
	}

	again, err := svc.SectionView(scoring.SectionListening, v.Result.ID)
	if err != nil {
		t.Fatalf("SectionView: %v", err)
	}
	if again.Tally.Correct != 35 || again.Tally.Incorrect != 5 {
		t.Errorf("reloaded tally = %+v", again.Tally)
	}
}

func TestSubmitSectionBelowMinimum(t *testing.T) {
	svc, _ := newTestService(t, nil)
	v, err := svc.SubmitSection(scoring.SectionReading, student, SectionSubmission{TestID: "R1", Answers: map[string]string{}})
	if err != nil {
		t.Fatalf("SubmitSection: %v", err)
	}
	if v.Band.IsNumeric() || v.Tally.Unanswered != 40 {
		t.Errorf("expected below-minimum band with 40 unanswered, got %s %+v", v.Band, v.Tally)
	}
}

func TestSubmitSectionErrors(t *testing.T) {
	svc, _ := newTestService(t, nil)

	tests := []struct {
		name    string
		section scoring.Section
		sub     SectionSubmission
		wantErr error
	}{
		{"unknown test", scoring.SectionListening, SectionSubmission{TestID: "nope", Answers: map[string]string{}}, ErrNotFound},
		{"wrong kind", scoring.SectionReading, SectionSubmission{TestID: "L1", Answers: map[string]string{}}, scoring.ErrInvalidInput},
		{"missing answers", scoring.SectionListening, SectionSubmission{TestID: "L1"}, scoring.ErrInvalidInput},
		{"writing section", scoring.SectionWriting, SectionSubmission{TestID: "W1", Answers: map[string]string{}}, scoring.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitSection(tt.section, student, tt.sub)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestListAndDeleteSection(t *testing.T) {
	svc, _ := newTestService(t, nil)
	other := &model.User{ID: "u2", DisplayName: "Bob"}

	first, err := svc.SubmitSection(scoring.SectionReading, student, SectionSubmission{TestID: "R1", Answers: answersCorrect(30)})
	if err != nil {
		t.Fatalf("SubmitSection: %v", err)
	}
	if _, err := svc.SubmitSection(scoring.SectionReading, other, SectionSubmission{TestID: "R1", Answers: answersCorrect(20)}); err != nil {
		t.Fatalf("SubmitSection: %v", err)
	}

	all, err := svc.ListSection(scoring.SectionReading, "")
	if err != nil {
		t.Fatalf("ListSection: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 results, got %d", len(all))
	}
	mine, _ := svc.ListSection(scoring.SectionReading, "u1")
	if len(mine) != 1 || mine[0].Band.String() != "7.0" {
		t.Errorf("unexpected own results %+v", mine)
	}

	if err := svc.DeleteSection(scoring.SectionReading, first.Result.ID); err != nil {
		t.Fatalf("DeleteSection: %v", err)
	}
	if err := svc.DeleteSection(scoring.SectionReading, first.Result.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestFullMockLifecycle(t *testing.T) {
	assessor := &fakeAssessor{band: 6.5}
	svc, _ := newTestService(t, assessor)
	admin := &model.User{ID: "admin-1", Role: model.UserRoleAdmin}

	v, err := svc.SubmitFullMock(student, FullMockSubmission{
		TestID:           "F1",
		ListeningAnswers: answersCorrect(35),
		ReadingAnswers:   answersCorrect(33),
		Writing:          model.WritingAnswers{Task1: "short chart summary", Task2: "an opinion essay"},
	})
	if err != nil {
		t.Fatalf("SubmitFullMock: %v", err)
	}
	if !v.PendingWriting || v.Composite != nil {
		t.Fatalf("expected pending writing, got %+v", v)
	}
	if v.ListeningBand.String() != "8.0" || v.ReadingBand.String() != "7.5" {
		t.Errorf("section bands = %s/%s, want 8.0/7.5", v.ListeningBand, v.ReadingBand)
	}
	if v.Writing.CompletedTasks != 2 || v.Writing.Task1.MeetsLength {
		t.Errorf("unexpected writing report %+v", v.Writing)
	}

	suggestion, err := svc.SuggestWriting(context.Background(), v.Result.ID)
	if err != nil {
		t.Fatalf("SuggestWriting: %v", err)
	}
	if suggestion.Band.String() != "6.5" || assessor.calls != 1 {
		t.Errorf("unexpected suggestion %+v", suggestion)
	}
	// Suggestions are never stored.
	still, _ := svc.FullMockView(v.Result.ID)
	if !still.PendingWriting {
		t.Error("suggestion must not assign the writing band")
	}

	band, _ := scoring.NumericBand(7.0)
	assigned, err := svc.AssignWriting(v.Result.ID, band, "Well organised", admin)
	if err != nil {
		t.Fatalf("AssignWriting: %v", err)
	}
	if assigned.PendingWriting || assigned.Composite == nil {
		t.Fatalf("expected composite after assignment, got %+v", assigned)
	}
	if got := assigned.Composite.Overall.String(); got != "7.5" {
		t.Errorf("overall = %s, want 7.5", got)
	}
	if assigned.Result.WritingAssignedBy != "admin-1" {
		t.Errorf("assigned by = %q", assigned.Result.WritingAssignedBy)
	}

	if _, err := svc.AssignWriting(v.Result.ID, scoring.BelowMinimum(), "", admin); !errors.Is(err, scoring.ErrInvalidInput) {
		t.Errorf("below-minimum writing band error = %v", err)
	}
	if _, err := svc.AssignWriting("missing", band, "", admin); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing result error = %v", err)
	}
}

func TestFullMockBelowMinimumSection(t *testing.T) {
	svc, _ := newTestService(t, nil)
	v, err := svc.SubmitFullMock(student, FullMockSubmission{
		TestID:           "F1",
		ListeningAnswers: answersCorrect(5),
		ReadingAnswers:   answersCorrect(30),
	})
	if err != nil {
		t.Fatalf("SubmitFullMock: %v", err)
	}
	band, _ := scoring.NumericBand(6.0)
	assigned, err := svc.AssignWriting(v.Result.ID, band, "", nil)
	if err != nil {
		t.Fatalf("AssignWriting: %v", err)
	}
	if assigned.Composite != nil || assigned.Problem == "" {
		t.Errorf("expected a problem instead of an overall band, got %+v", assigned)
	}
}

func TestSubmitFullMockErrors(t *testing.T) {
	svc, _ := newTestService(t, nil)
	if _, err := svc.SubmitFullMock(student, FullMockSubmission{TestID: "L1", ListeningAnswers: map[string]string{}, ReadingAnswers: map[string]string{}}); !errors.Is(err, scoring.ErrInvalidInput) {
		t.Errorf("non-full-mock test error = %v", err)
	}
	if _, err := svc.SubmitFullMock(student, FullMockSubmission{TestID: "F1", ReadingAnswers: map[string]string{}}); !errors.Is(err, scoring.ErrInvalidInput) {
		t.Errorf("missing listening answers error = %v", err)
	}
}

func TestSuggestWritingErrors(t *testing.T) {
	svc, _ := newTestService(t, nil)
	if _, err := svc.SuggestWriting(context.Background(), "x"); !errors.Is(err, ErrNoAssessor) {
		t.Errorf("error = %v, want ErrNoAssessor", err)
	}

	svc, _ = newTestService(t, &fakeAssessor{band: 6})
	v, err := svc.SubmitFullMock(student, FullMockSubmission{
		TestID:           "F1",
		ListeningAnswers: answersCorrect(20),
		ReadingAnswers:   answersCorrect(20),
	})
	if err != nil {
		t.Fatalf("SubmitFullMock: %v", err)
	}
	if _, err := svc.SuggestWriting(context.Background(), v.Result.ID); !errors.Is(err, scoring.ErrInvalidInput) {
		t.Errorf("empty writing error = %v", err)
	}
}

func TestNormalizedMode(t *testing.T) {
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()
	key := model.AnswerKey{}
	answers := map[string]string{}
	for i := 1; i <= 20; i++ {
		id := fmt.Sprintf("q%d", i)
		key[id] = []string{"a"}
		if i <= 15 {
			answers[id] = "a"
		}
	}
	if err := s.UpsertTest(model.Test{ID: "L20", Kind: model.KindListening, Answers: key}); err != nil {
		t.Fatalf("UpsertTest: %v", err)
	}

	raw := NewService(s, scoring.ModeRaw, nil)
	norm := NewService(s, scoring.ModeNormalized, nil)
	rv, err := raw.SubmitSection(scoring.SectionListening, nil, SectionSubmission{TestID: "L20", Answers: answers})
	if err != nil {
		t.Fatalf("raw SubmitSection: %v", err)
	}
	nv, err := norm.SectionView(scoring.SectionListening, rv.Result.ID)
	if err != nil {
		t.Fatalf("normalized SectionView: %v", err)
	}
	if rv.Band.String() != "5.0" || nv.Band.String() != "7.0" {
		t.Errorf("raw/normalized = %s/%s, want 5.0/7.0", rv.Band, nv.Band)
	}
	if len(rv.PartScores) != 2 {
		t.Errorf("PartScores = %v, want two blocks", rv.PartScores)
	}
}
