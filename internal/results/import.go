package results

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ieltsprep/mockcenter/internal/model"
	"github.com/ieltsprep/mockcenter/internal/scoring"
)

// ImportTests loads a JSON test catalogue file. A file whose content was
// already imported under the same name is skipped.
func (s *Service) ImportTests(name string, data []byte) (imported int, skipped bool, err error) {
	hash := sha256sum(data)
	storedHash, err := s.store.GetImportedFileHash(name)
	if err != nil {
		return 0, false, fmt.Errorf("check import status for %s: %w", name, err)
	}
	if storedHash == hash {
		slog.Info("test file unchanged, skipping", "name", name)
		return 0, true, nil
	}
	if storedHash != "" {
		slog.Info("test file changed since last import, updating", "name", name)
	}

	var tests []model.TestImport
	if err := json.Unmarshal(data, &tests); err != nil {
		return 0, false, fmt.Errorf("%w: parse %s: %v", scoring.ErrInvalidInput, name, err)
	}
	for i, ti := range tests {
		if err := validateImport(ti); err != nil {
			return 0, false, fmt.Errorf("test %d in %s: %w", i, name, err)
		}
	}

	for _, ti := range tests {
		title := ti.Title
		if title == "" {
			title = ti.ID
		}
		err := s.store.UpsertTest(model.Test{
			ID:               ti.ID,
			Kind:             ti.Kind,
			Title:            title,
			Answers:          ti.Answers,
			ListeningAnswers: ti.ListeningAnswers,
			ReadingAnswers:   ti.ReadingAnswers,
		})
		if err != nil {
			return imported, false, fmt.Errorf("store test %s from %s: %w", ti.ID, name, err)
		}
		imported++
	}

	if err := s.store.SetImportedFileHash(name, hash); err != nil {
		return imported, false, fmt.Errorf("record import for %s: %w", name, err)
	}
	slog.Info("imported tests", "name", name, "count", imported)
	return imported, false, nil
}

func validateImport(ti model.TestImport) error {
	if ti.ID == "" {
		return fmt.Errorf("%w: id is required", scoring.ErrInvalidInput)
	}
	if !ti.Kind.IsValid() {
		return fmt.Errorf("%w: test %s has unknown kind %q", scoring.ErrInvalidInput, ti.ID, ti.Kind)
	}
	switch ti.Kind {
	case model.KindListening, model.KindReading:
		if len(ti.Answers) == 0 {
			return fmt.Errorf("%w: test %s has no answers", scoring.ErrInvalidInput, ti.ID)
		}
	case model.KindFullMock:
		if len(ti.ListeningAnswers) == 0 || len(ti.ReadingAnswers) == 0 {
			return fmt.Errorf("%w: full mock %s needs listening and reading answers", scoring.ErrInvalidInput, ti.ID)
		}
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
