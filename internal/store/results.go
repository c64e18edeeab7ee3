package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ieltsprep/mockcenter/internal/model"
	"github.com/ieltsprep/mockcenter/internal/scoring"
)

const sectionColumns = `id, section, test_id, user_id, name, answers_json, correct_json, score, total, created_at`

// CreateSectionResult stores a Listening or Reading result and returns its ID.
// A missing ID is generated.
func (s *Store) CreateSectionResult(r model.SectionResult) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	answers, err := encodeJSON(r.Answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	correct, err := encodeJSON(r.CorrectAnswers)
	if err != nil {
		return "", fmt.Errorf("encode correct answers: %w", err)
	}
	_, err = s.exec(
		`INSERT INTO section_results (`+sectionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Section, r.TestID, r.UserID, r.Name, answers, correct, r.Score, r.Total, r.CreatedAt,
	)
	if err != nil {
		slog.Error("failed to store section result", "section", r.Section, "test_id", r.TestID, "error", err)
		return "", err
	}
	return r.ID, nil
}

func scanSectionResult(row rowScanner) (model.SectionResult, error) {
	var r model.SectionResult
	var answers, correct string
	err := row.Scan(&r.ID, &r.Section, &r.TestID, &r.UserID, &r.Name, &answers, &correct, &r.Score, &r.Total, &r.CreatedAt)
	if err != nil {
		return r, err
	}
	if err := decodeJSON(answers, &r.Answers); err != nil {
		return r, fmt.Errorf("decode answers of result %s: %w", r.ID, err)
	}
	if err := decodeJSON(correct, &r.CorrectAnswers); err != nil {
		return r, fmt.Errorf("decode correct answers of result %s: %w", r.ID, err)
	}
	if r.Answers == nil {
		r.Answers = map[string]string{}
	}
	if r.CorrectAnswers == nil {
		r.CorrectAnswers = model.AnswerKey{}
	}
	return r, nil
}

// GetSectionResult returns a result of the given section, or sql.ErrNoRows.
func (s *Store) GetSectionResult(section scoring.Section, id string) (model.SectionResult, error) {
	return scanSectionResult(s.queryRow(
		`SELECT `+sectionColumns+` FROM section_results WHERE section = ? AND id = ?`, section, id,
	))
}

// ListSectionResults returns results of a section, newest first. A non-empty
// userID restricts the list to that user.
func (s *Store) ListSectionResults(section scoring.Section, userID string) ([]model.SectionResult, error) {
	query := `SELECT ` + sectionColumns + ` FROM section_results WHERE section = ?`
	args := []any{section}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id`
	rows, err := s.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.SectionResult
	for rows.Next() {
		r, err := scanSectionResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteSectionResult removes a result. It reports whether a row was deleted.
func (s *Store) DeleteSectionResult(section scoring.Section, id string) (bool, error) {
	res, err := s.exec(`DELETE FROM section_results WHERE section = ? AND id = ?`, section, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
