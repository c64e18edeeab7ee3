package model

import (
	"context"
	"time"

	"github.com/ieltsprep/mockcenter/internal/scoring"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent takes mock tests and sees their own results.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher can view every result.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin manages users, tests and writing bands.
	UserRoleAdmin UserRole = "admin"
)

// IsValid reports whether r is a known role.
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleStudent, UserRoleTeacher, UserRoleAdmin:
		return true
	}
	return false
}

// User represents a system user.
type User struct {
	ID           string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession backs an issued bearer token; deleting it revokes the token.
type AuthSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// TestKind is the type of a mock test in the catalogue.
type TestKind string

const (
	KindListening TestKind = "listening"
	KindReading   TestKind = "reading"
	KindWriting   TestKind = "writing"
	KindFullMock  TestKind = "fullmock"
)

// IsValid reports whether k is a known test kind.
func (k TestKind) IsValid() bool {
	switch k {
	case KindListening, KindReading, KindWriting, KindFullMock:
		return true
	}
	return false
}

// AnswerKey maps question ids to their accepted answers.
type AnswerKey map[string][]string

// QuestionIDs returns the keys of the answer key.
func (k AnswerKey) QuestionIDs() []string {
	ids := make([]string, 0, len(k))
	for id := range k {
		ids = append(ids, id)
	}
	return ids
}

// Test is one entry of the test catalogue. Full mock tests carry separate
// listening and reading keys; single-section tests use Answers.
type Test struct {
	ID               string    `json:"id"`
	Kind             TestKind  `json:"kind"`
	Title            string    `json:"title"`
	Answers          AnswerKey `json:"answers,omitempty"`
	ListeningAnswers AnswerKey `json:"listening_answers,omitempty"`
	ReadingAnswers   AnswerKey `json:"reading_answers,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// KeyFor returns the answer key used to score section within this test.
func (t Test) KeyFor(section scoring.Section) AnswerKey {
	if t.Kind == KindFullMock {
		switch section {
		case scoring.SectionListening:
			return t.ListeningAnswers
		case scoring.SectionReading:
			return t.ReadingAnswers
		}
		return nil
	}
	if string(t.Kind) == string(section) {
		return t.Answers
	}
	return nil
}

// SectionResult is a stored Listening or Reading submission.
type SectionResult struct {
	ID             string            `json:"id"`
	Section        scoring.Section   `json:"section"`
	TestID         string            `json:"test_id"`
	UserID         string            `json:"user_id"`
	Name           string            `json:"name"`
	Answers        map[string]string `json:"answers"`
	CorrectAnswers AnswerKey         `json:"correct_answers"`
	Score          int               `json:"score"`
	Total          int               `json:"total"`
	CreatedAt      time.Time         `json:"created_at"`
}

// WritingAnswers holds the two writing task responses.
type WritingAnswers struct {
	Task1 string `json:"task1"`
	Task2 string `json:"task2"`
}

// FullMockResult is a stored full mock submission. WritingBand stays nil
// until an admin assigns it.
type FullMockResult struct {
	ID                string            `json:"id"`
	TestID            string            `json:"test_id"`
	UserID            string            `json:"user_id"`
	Name              string            `json:"name"`
	ListeningAnswers  map[string]string `json:"listening_answers"`
	ReadingAnswers    map[string]string `json:"reading_answers"`
	ListeningScore    int               `json:"listening_score"`
	ListeningTotal    int               `json:"listening_total"`
	ReadingScore      int               `json:"reading_score"`
	ReadingTotal      int               `json:"reading_total"`
	Writing           WritingAnswers    `json:"writing_answers"`
	WritingBand       *scoring.Band     `json:"writing_band,omitempty"`
	WritingFeedback   string            `json:"writing_feedback,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	WritingAssignedAt *time.Time        `json:"writing_assigned_at,omitempty"`
	WritingAssignedBy string            `json:"writing_assigned_by,omitempty"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	ScoringMode   scoring.Mode
	JWTSecret     string
	TokenTTL      time.Duration
	AllowedOrigin []string // CORS origins for the API; empty allows any
	PromptVariant string   // Writing assessment prompt variant (strict, standard, lenient)
	Lang          string   // Default page language
	SecureCookies bool
}

// TestImport is used for loading the test catalogue from JSON.
type TestImport struct {
	ID               string    `json:"id"`
	Kind             TestKind  `json:"kind"`
	Title            string    `json:"title"`
	Answers          AnswerKey `json:"answers"`
	ListeningAnswers AnswerKey `json:"listening_answers"`
	ReadingAnswers   AnswerKey `json:"reading_answers"`
}

// SectionView combines a stored section result with its computed scoring.
type SectionView struct {
	Result     SectionResult `json:"result"`
	Tally      scoring.Tally `json:"tally"`
	Band       scoring.Band  `json:"band"`
	PartScores []int         `json:"part_scores"`
	Accuracy   int           `json:"accuracy"`
}

// FullMockView combines a stored full mock result with its computed bands.
// Composite is nil while the writing band is pending.
type FullMockView struct {
	Result         FullMockResult        `json:"result"`
	ListeningBand  scoring.Band          `json:"listening_band"`
	ReadingBand    scoring.Band          `json:"reading_band"`
	Composite      *scoring.Composite    `json:"composite,omitempty"`
	PendingWriting bool                  `json:"pending_writing"`
	Writing        scoring.WritingReport `json:"writing"`
	Problem        string                `json:"problem,omitempty"`
}
