package store

import (
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ieltsprep/mockcenter/internal/model"
)

const userColumns = `id, email, display_name, password_hash, role, active, created_at`

// CreateUser inserts a new user and returns its ID. Emails are stored lower-cased.
func (s *Store) CreateUser(u model.User) (string, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := s.exec(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.Role, u.Active, time.Now().UTC(),
	)
	if err != nil {
		slog.Error("failed to create user", "email", u.Email, "error", err)
		return "", err
	}
	slog.Info("created user", "id", u.ID, "email", u.Email, "role", u.Role)
	return u.ID, nil
}

func (s *Store) getUser(where string, arg any) (*model.User, error) {
	var u model.User
	err := s.queryRow(`SELECT `+userColumns+` FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail returns a user by email, or nil if none exists.
func (s *Store) GetUserByEmail(email string) (*model.User, error) {
	return s.getUser(`email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

// GetUserByID returns a user by ID, or nil if none exists.
func (s *Store) GetUserByID(id string) (*model.User, error) {
	return s.getUser(`id = ?`, id)
}

// ListUsers returns all users.
func (s *Store) ListUsers() ([]model.User, error) {
	rows, err := s.query(`SELECT ` + userColumns + ` FROM users ORDER BY created_at, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ToggleUserActive flips the active flag on a user.
func (s *Store) ToggleUserActive(id string) error {
	_, err := s.exec(`UPDATE users SET active = NOT active WHERE id = ?`, id)
	return err
}

// DeleteUser removes a user and all of their auth sessions. It reports
// whether the user existed.
func (s *Store) DeleteUser(id string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.rebind(`DELETE FROM auth_sessions WHERE user_id = ?`), id); err != nil {
		return false, err
	}
	res, err := tx.Exec(s.rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	if n > 0 {
		slog.Info("deleted user", "id", id)
	}
	return n > 0, nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.queryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
