package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ieltsprep/mockcenter/internal/model"
	"github.com/ieltsprep/mockcenter/internal/scoring"
)

const fullMockColumns = `id, test_id, user_id, name, listening_json, reading_json,
	listening_score, listening_total, reading_score, reading_total, task1, task2,
	writing_band, writing_feedback, writing_assigned_at, writing_assigned_by, created_at`

// CreateFullMockResult stores a full mock submission and returns its ID.
func (s *Store) CreateFullMockResult(r model.FullMockResult) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	listening, err := encodeJSON(r.ListeningAnswers)
	if err != nil {
		return "", fmt.Errorf("encode listening answers: %w", err)
	}
	reading, err := encodeJSON(r.ReadingAnswers)
	if err != nil {
		return "", fmt.Errorf("encode reading answers: %w", err)
	}
	var band sql.NullString
	if r.WritingBand != nil {
		band = sql.NullString{String: r.WritingBand.String(), Valid: true}
	}
	_, err = s.exec(
		`INSERT INTO fullmock_results (`+fullMockColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TestID, r.UserID, r.Name, listening, reading,
		r.ListeningScore, r.ListeningTotal, r.ReadingScore, r.ReadingTotal,
		r.Writing.Task1, r.Writing.Task2,
		band, r.WritingFeedback, r.WritingAssignedAt, r.WritingAssignedBy, r.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func scanFullMock(row rowScanner) (model.FullMockResult, error) {
	var r model.FullMockResult
	var listening, reading string
	var band sql.NullString
	err := row.Scan(
		&r.ID, &r.TestID, &r.UserID, &r.Name, &listening, &reading,
		&r.ListeningScore, &r.ListeningTotal, &r.ReadingScore, &r.ReadingTotal,
		&r.Writing.Task1, &r.Writing.Task2,
		&band, &r.WritingFeedback, &r.WritingAssignedAt, &r.WritingAssignedBy, &r.CreatedAt,
	)
	if err != nil {
		return r, err
	}
	if err := decodeJSON(listening, &r.ListeningAnswers); err != nil {
		return r, fmt.Errorf("decode listening answers of result %s: %w", r.ID, err)
	}
	if err := decodeJSON(reading, &r.ReadingAnswers); err != nil {
		return r, fmt.Errorf("decode reading answers of result %s: %w", r.ID, err)
	}
	if band.Valid {
		b, err := scoring.ParseBand(band.String)
		if err != nil {
			return r, fmt.Errorf("stored writing band of result %s: %w", r.ID, err)
		}
		r.WritingBand = &b
	}
	return r, nil
}

// GetFullMockResult returns a full mock result, or sql.ErrNoRows.
func (s *Store) GetFullMockResult(id string) (model.FullMockResult, error) {
	return scanFullMock(s.queryRow(`SELECT `+fullMockColumns+` FROM fullmock_results WHERE id = ?`, id))
}

// ListFullMockResults returns full mock results newest first, optionally
// restricted to one user and/or one test.
func (s *Store) ListFullMockResults(userID, testID string) ([]model.FullMockResult, error) {
	query := `SELECT ` + fullMockColumns + ` FROM fullmock_results WHERE 1=1`
	var args []any
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	if testID != "" {
		query += ` AND test_id = ?`
		args = append(args, testID)
	}
	query += ` ORDER BY created_at DESC, id`
	rows, err := s.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.FullMockResult
	for rows.Next() {
		r, err := scanFullMock(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// AssignWritingBand records the writing band given by an examiner.
// It returns sql.ErrNoRows when the result does not exist.
func (s *Store) AssignWritingBand(id string, band scoring.Band, feedback, assignedBy string) error {
	res, err := s.exec(
		`UPDATE fullmock_results
		 SET writing_band = ?, writing_feedback = ?, writing_assigned_at = ?, writing_assigned_by = ?
		 WHERE id = ?`,
		band.String(), feedback, time.Now().UTC(), assignedBy, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteFullMockResult removes a result. It reports whether a row was deleted.
func (s *Store) DeleteFullMockResult(id string) (bool, error) {
	res, err := s.exec(`DELETE FROM fullmock_results WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
