package scoring

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Status is the classification of one question.
type Status string

const (
	StatusCorrect    Status = "correct"
	StatusIncorrect  Status = "incorrect"
	StatusUnanswered Status = "unanswered"
)

// Outcome is the classified answer for one question.
type Outcome struct {
	QuestionID string   `json:"question_id"`
	Number     int      `json:"number"`
	Answer     string   `json:"answer"`
	Accepted   []string `json:"accepted"`
	Status     Status   `json:"status"`
}

// Tally is the per-question classification of a submission.
type Tally struct {
	Correct     int               `json:"correct"`
	Incorrect   int               `json:"incorrect"`
	Unanswered  int               `json:"unanswered"`
	Order       []string          `json:"order"`
	PerQuestion map[string]Status `json:"per_question"`
	Outcomes    []Outcome         `json:"outcomes"`
}

// RawScore is the number of correct answers.
func (t Tally) RawScore() int {
	return t.Correct
}

// Total is the number of questions tallied.
func (t Tally) Total() int {
	return len(t.Order)
}

// PartScores returns correct counts per consecutive block of partSize
// question numbers (1..partSize, partSize+1..2*partSize, ...). Questions
// numbered 0 or beyond parts*partSize are ignored.
func (t Tally) PartScores(parts, partSize int) []int {
	if parts <= 0 || partSize <= 0 {
		return nil
	}
	out := make([]int, parts)
	for _, o := range t.Outcomes {
		if o.Status != StatusCorrect || o.Number < 1 {
			continue
		}
		idx := (o.Number - 1) / partSize
		if idx < parts {
			out[idx]++
		}
	}
	return out
}

// TallyAnswers classifies every question id against the accepted answers.
// A question missing from correctAnswers has no accepted answers, so it is
// incorrect unless unanswered.
func TallyAnswers(questionIDs []string, userAnswers map[string]string, correctAnswers map[string][]string) (Tally, error) {
	if userAnswers == nil {
		return Tally{}, fmt.Errorf("%w: user answers map is missing", ErrInvalidInput)
	}
	if correctAnswers == nil {
		return Tally{}, fmt.Errorf("%w: correct answers map is missing", ErrInvalidInput)
	}

	order := SortQuestionIDs(questionIDs)
	t := Tally{
		Order:       order,
		PerQuestion: make(map[string]Status, len(order)),
		Outcomes:    make([]Outcome, 0, len(order)),
	}

	for _, id := range order {
		answer := normalizeAnswer(userAnswers[id])
		accepted := make([]string, 0, len(correctAnswers[id]))
		for _, a := range correctAnswers[id] {
			accepted = append(accepted, normalizeAnswer(a))
		}

		var st Status
		switch {
		case isUnanswered(answer):
			st = StatusUnanswered
			t.Unanswered++
		case contains(accepted, answer):
			st = StatusCorrect
			t.Correct++
		default:
			st = StatusIncorrect
			t.Incorrect++
		}

		t.PerQuestion[id] = st
		t.Outcomes = append(t.Outcomes, Outcome{
			QuestionID: id,
			Number:     QuestionNumber(id),
			Answer:     answer,
			Accepted:   accepted,
			Status:     st,
		})
	}
	return t, nil
}

// SortQuestionIDs returns the distinct ids ordered by their embedded number,
// so "q2" precedes "q10". Equal numbers fall back to string order.
func SortQuestionIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := QuestionNumber(out[i]), QuestionNumber(out[j])
		if ni != nj {
			return ni < nj
		}
		return out[i] < out[j]
	})
	return out
}

// QuestionNumber returns the first run of digits in id, or 0.
func QuestionNumber(id string) int {
	start := strings.IndexAny(id, "0123456789")
	if start < 0 {
		return 0
	}
	end := start
	for end < len(id) && id[end] >= '0' && id[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(id[start:end])
	if err != nil {
		return 0
	}
	return n
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isUnanswered(normalized string) bool {
	return normalized == "" || normalized == "null" || normalized == "undefined"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
