package scoring

import "strings"

// Minimum word counts for the two writing tasks.
const (
	Task1MinWords = 150
	Task2MinWords = 250
)

// TaskReport describes one writing task response.
type TaskReport struct {
	Words       int  `json:"words"`
	MinWords    int  `json:"min_words"`
	Complete    bool `json:"complete"`
	MeetsLength bool `json:"meets_length"`
	WordsNeeded int  `json:"words_needed"`
}

// WritingReport summarises both writing tasks.
type WritingReport struct {
	Task1          TaskReport `json:"task1"`
	Task2          TaskReport `json:"task2"`
	TotalWords     int        `json:"total_words"`
	CompletedTasks int        `json:"completed_tasks"`
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ReportWriting builds word-count statistics for the two task responses.
func ReportWriting(task1, task2 string) WritingReport {
	r := WritingReport{
		Task1: taskReport(task1, Task1MinWords),
		Task2: taskReport(task2, Task2MinWords),
	}
	r.TotalWords = r.Task1.Words + r.Task2.Words
	for _, t := range []TaskReport{r.Task1, r.Task2} {
		if t.Complete {
			r.CompletedTasks++
		}
	}
	return r
}

func taskReport(text string, minWords int) TaskReport {
	words := CountWords(text)
	t := TaskReport{
		Words:       words,
		MinWords:    minWords,
		Complete:    words > 0,
		MeetsLength: words >= minWords,
	}
	if !t.MeetsLength {
		t.WordsNeeded = minWords - words
	}
	return t
}
