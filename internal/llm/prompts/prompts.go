package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/ieltsprep/mockcenter/internal/scoring"
)

//go:embed templates/*.txt
var templateFS embed.FS

var taskResponseRegex = regexp.MustCompile(`(?i)</?\s*task-response\b[^>]*>`)

const maxResponseRunes = 10000

// PromptVariant represents a writing assessment prompt variant.
type PromptVariant string

const (
	// PromptStrict awards the lower band when in doubt.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient gives the benefit of the doubt.
	PromptLenient PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

var (
	loadOnce         sync.Once
	loadErr          error
	writingTemplates map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// WritingData holds template data for writing assessment prompts.
type WritingData struct {
	Task1         string
	Task2         string
	Task1Words    int
	Task2Words    int
	Task1MinWords int
	Task2MinWords int
}

// Load parses the embedded prompt templates once.
func Load() error {
	loadOnce.Do(func() {
		writingTemplates = make(map[PromptVariant]*template.Template)
		for _, v := range []PromptVariant{PromptStrict, PromptStandard, PromptLenient} {
			file := "templates/writing_" + string(v) + ".txt"
			content, err := templateFS.ReadFile(file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New("writing").Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			writingTemplates[v] = tmpl
		}
	})
	return loadErr
}

// BuildWritingPrompt builds the assessment prompt for two task responses.
func BuildWritingPrompt(variant PromptVariant, task1, task2 string) (string, error) {
	if err := Load(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := writingTemplates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := WritingData{
		Task1:         sanitizeResponse(task1),
		Task2:         sanitizeResponse(task2),
		Task1Words:    scoring.CountWords(task1),
		Task2Words:    scoring.CountWords(task2),
		Task1MinWords: scoring.Task1MinWords,
		Task2MinWords: scoring.Task2MinWords,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeResponse(text string) string {
	text = taskResponseRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text == "" {
		return "[No response provided]"
	}

	if utf8.RuneCountInString(text) > maxResponseRunes {
		runes := []rune(text)
		text = string(runes[:maxResponseRunes]) + "\n\n[Response truncated due to length]"
	}
	return text
}
