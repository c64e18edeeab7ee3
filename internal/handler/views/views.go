// Package views renders the localised HTML result pages.
package views

import (
	"context"
	"strings"

	appI18n "github.com/ieltsprep/mockcenter/internal/i18n"
	"github.com/ieltsprep/mockcenter/internal/scoring"
)

func sectionLabel(ctx context.Context, s scoring.Section) string {
	switch s {
	case scoring.SectionListening:
		return appI18n.T(ctx, "SectionListening")
	case scoring.SectionReading:
		return appI18n.T(ctx, "SectionReading")
	case scoring.SectionWriting:
		return appI18n.T(ctx, "SectionWriting")
	}
	return string(s)
}

func statusLabel(ctx context.Context, st scoring.Status) string {
	switch st {
	case scoring.StatusCorrect:
		return appI18n.T(ctx, "Correct")
	case scoring.StatusIncorrect:
		return appI18n.T(ctx, "Incorrect")
	}
	return appI18n.T(ctx, "Unanswered")
}

func answerText(ctx context.Context, o scoring.Outcome) string {
	if o.Status == scoring.StatusUnanswered {
		return appI18n.T(ctx, "NoAnswer")
	}
	return o.Answer
}

func acceptedText(accepted []string) string {
	return strings.Join(accepted, " / ")
}

// taskClass marks a writing task that falls short of its minimum length.
func taskClass(t scoring.TaskReport) string {
	if t.MeetsLength {
		return "correct"
	}
	return "incorrect"
}
