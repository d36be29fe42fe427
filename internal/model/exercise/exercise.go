// Package exercise models generated practice items and their grading.
package exercise

import (
	"errors"
	"strings"
)

// Type is the exercise format.
type Type string

const (
	MultipleChoice Type = "multiple_choice"
	FillInBlank    Type = "fill_in_blank"
)

var (
	ErrUnknownType   = errors.New("unknown exercise type")
	ErrEmptyQuestion = errors.New("exercise question is empty")
	ErrEmptyAnswer   = errors.New("exercise correct answer is empty")
	ErrNoOptions     = errors.New("multiple choice exercise has no options")
)

// Exercise is a single generated practice item.
type Exercise struct {
	Question      string   `json:"question"`
	Type          Type     `json:"type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// Normalize trims fields and drops options for anything but multiple choice.
func (e *Exercise) Normalize() {
	e.Question = strings.TrimSpace(e.Question)
	e.Type = Type(strings.ToLower(strings.TrimSpace(string(e.Type))))
	e.CorrectAnswer = strings.TrimSpace(e.CorrectAnswer)
	e.Explanation = strings.TrimSpace(e.Explanation)

	if e.Type != MultipleChoice {
		e.Options = []string{}
		return
	}
	options := make([]string, 0, len(e.Options))
	for _, opt := range e.Options {
		if opt = strings.TrimSpace(opt); opt != "" {
			options = append(options, opt)
		}
	}
	e.Options = options
}

// Validate checks the exercise can be presented and graded.
func (e Exercise) Validate() error {
	switch e.Type {
	case MultipleChoice:
		if len(e.Options) == 0 {
			return ErrNoOptions
		}
	case FillInBlank:
	default:
		return ErrUnknownType
	}
	if strings.TrimSpace(e.Question) == "" {
		return ErrEmptyQuestion
	}
	if strings.TrimSpace(e.CorrectAnswer) == "" {
		return ErrEmptyAnswer
	}
	return nil
}

// Grade compares answer with the correct answer ignoring case and
// surrounding whitespace.
func (e Exercise) Grade(answer string) bool {
	return normalizeAnswer(answer) == normalizeAnswer(e.CorrectAnswer)
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// View is what the learner sees before answering.
type View struct {
	Question string   `json:"question"`
	Type     Type     `json:"type"`
	Options  []string `json:"options"`
}

// Public hides the answer and explanation.
func (e Exercise) Public() View {
	return View{
		Question: e.Question,
		Type:     e.Type,
		Options:  append([]string{}, e.Options...),
	}
}

// Feedback is the graded outcome of an answer.
type Feedback struct {
	IsCorrect     bool   `json:"isCorrect"`
	Answer        string `json:"answer"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
	XPAwarded     int    `json:"xpAwarded"`
}
