// Package question defines the per-kind capability contract for the ten
// supported question types: answer-shape validation and, where the kind
// is objectively checkable, automatic scoring. Callers dispatch on the
// question's type tag through Kind instead of branching ad hoc.
package question

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/excellencehub/proctor-backend/internal/model"
)

// BlankMarker splits fill-in-the-blank question text into blanks.
const BlankMarker = "___"

// numericalTolerance absorbs float formatting noise in numerical answers.
const numericalTolerance = 1e-6

// Kind is the capability contract implemented per question type.
type Kind interface {
	// ValidateShape checks that the raw answer values have the shape
	// this kind expects (single string, ordered sequence, ...).
	ValidateShape(q model.Question, values []string) error

	// AutoGradable reports whether Score produces a final result
	// without human review.
	AutoGradable() bool

	// Score returns earned points for the answer, up to q.Points.
	// Only meaningful when AutoGradable is true.
	Score(q model.Question, values []string) float64
}

var kinds = map[model.QuestionType]Kind{
	model.QuestionTypeMultipleChoice:     singleChoice{},
	model.QuestionTypeMultipleChoiceMany: multiChoice{},
	model.QuestionTypeTrueFalse:          trueFalse{},
	model.QuestionTypeShortAnswer:        freeText{},
	model.QuestionTypeEssay:              freeText{},
	model.QuestionTypeFillInBlank:        fillInBlank{},
	model.QuestionTypeNumerical:          numerical{},
	model.QuestionTypeCode:               freeText{},
	model.QuestionTypeMatching:           matching{},
	model.QuestionTypeOrdering:           ordering{},
}

// For returns the Kind for a question type.
func For(t model.QuestionType) (Kind, error) {
	k, ok := kinds[t]
	if !ok {
		return nil, fmt.Errorf("unknown question type %q", t)
	}
	return k, nil
}

// BlankCount returns the number of blank placeholders in question text.
func BlankCount(text string) int {
	return strings.Count(text, BlankMarker)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func requireSingle(values []string) error {
	if len(values) != 1 {
		return fmt.Errorf("expected a single value, got %d", len(values))
	}
	return nil
}

// ─── single choice / true-false ─────────────────────────────────────

type singleChoice struct{}

func (singleChoice) ValidateShape(q model.Question, values []string) error {
	if err := requireSingle(values); err != nil {
		return err
	}
	if len(q.Options) > 0 && !containsFold(q.Options, values[0]) {
		return fmt.Errorf("value %q is not one of the options", values[0])
	}
	return nil
}

func (singleChoice) AutoGradable() bool { return true }

func (singleChoice) Score(q model.Question, values []string) float64 {
	if len(values) == 1 && len(q.CorrectAnswer) == 1 &&
		normalize(values[0]) == normalize(q.CorrectAnswer[0]) {
		return q.Points
	}
	return 0
}

type trueFalse struct{}

func (trueFalse) ValidateShape(q model.Question, values []string) error {
	if err := requireSingle(values); err != nil {
		return err
	}
	v := normalize(values[0])
	if v != "true" && v != "false" {
		return fmt.Errorf("expected true or false, got %q", values[0])
	}
	return nil
}

func (trueFalse) AutoGradable() bool { return true }

func (trueFalse) Score(q model.Question, values []string) float64 {
	return singleChoice{}.Score(q, values)
}

// ─── multi-select ───────────────────────────────────────────────────

type multiChoice struct{}

func (multiChoice) ValidateShape(q model.Question, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("expected at least one selected option")
	}
	for _, v := range values {
		if len(q.Options) > 0 && !containsFold(q.Options, v) {
			return fmt.Errorf("value %q is not one of the options", v)
		}
	}
	return nil
}

func (multiChoice) AutoGradable() bool { return true }

// Score awards full points only for an exact selection set; order of
// selection does not matter.
func (multiChoice) Score(q model.Question, values []string) float64 {
	if len(values) != len(q.CorrectAnswer) {
		return 0
	}
	want := make(map[string]bool, len(q.CorrectAnswer))
	for _, c := range q.CorrectAnswer {
		want[normalize(c)] = true
	}
	for _, v := range values {
		if !want[normalize(v)] {
			return 0
		}
	}
	return q.Points
}

// ─── free text (short answer, essay, code) ──────────────────────────

type freeText struct{}

func (freeText) ValidateShape(q model.Question, values []string) error {
	return requireSingle(values)
}

func (freeText) AutoGradable() bool { return false }

func (freeText) Score(model.Question, []string) float64 { return 0 }

// ─── fill in the blank ──────────────────────────────────────────────

type fillInBlank struct{}

func (fillInBlank) ValidateShape(q model.Question, values []string) error {
	blanks := BlankCount(q.QuestionText)
	if blanks == 0 {
		blanks = 1
	}
	if len(values) != blanks {
		return fmt.Errorf("expected %d blank values, got %d", blanks, len(values))
	}
	return nil
}

func (fillInBlank) AutoGradable() bool { return true }

// Score awards per-blank partial credit, compared positionally.
func (fillInBlank) Score(q model.Question, values []string) float64 {
	if len(q.CorrectAnswer) == 0 {
		return 0
	}
	correct := 0
	for i, want := range q.CorrectAnswer {
		if i < len(values) && normalize(values[i]) == normalize(want) {
			correct++
		}
	}
	return q.Points * float64(correct) / float64(len(q.CorrectAnswer))
}

// ─── numerical ──────────────────────────────────────────────────────

type numerical struct{}

func (numerical) ValidateShape(q model.Question, values []string) error {
	if err := requireSingle(values); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(values[0]), 64); err != nil {
		return fmt.Errorf("expected a number, got %q", values[0])
	}
	return nil
}

func (numerical) AutoGradable() bool { return true }

func (numerical) Score(q model.Question, values []string) float64 {
	if len(values) != 1 || len(q.CorrectAnswer) != 1 {
		return 0
	}
	got, err1 := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
	want, err2 := strconv.ParseFloat(strings.TrimSpace(q.CorrectAnswer[0]), 64)
	if err1 != nil || err2 != nil {
		return 0
	}
	if math.Abs(got-want) <= numericalTolerance {
		return q.Points
	}
	return 0
}

// ─── matching ───────────────────────────────────────────────────────

type matching struct{}

func (matching) ValidateShape(q model.Question, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("expected at least one matched pair")
	}
	return nil
}

func (matching) AutoGradable() bool { return true }

// Score awards per-pair partial credit, compared positionally.
func (matching) Score(q model.Question, values []string) float64 {
	if len(q.CorrectAnswer) == 0 {
		return 0
	}
	correct := 0
	for i, want := range q.CorrectAnswer {
		if i < len(values) && normalize(values[i]) == normalize(want) {
			correct++
		}
	}
	return q.Points * float64(correct) / float64(len(q.CorrectAnswer))
}

// ─── ordering ───────────────────────────────────────────────────────

type ordering struct{}

func (ordering) ValidateShape(q model.Question, values []string) error {
	if len(values) < 2 {
		return fmt.Errorf("expected an ordered sequence of at least two items")
	}
	return nil
}

func (ordering) AutoGradable() bool { return true }

// Score is all-or-nothing: the whole sequence must be in order.
func (ordering) Score(q model.Question, values []string) float64 {
	if len(values) != len(q.CorrectAnswer) {
		return 0
	}
	for i, want := range q.CorrectAnswer {
		if normalize(values[i]) != normalize(want) {
			return 0
		}
	}
	return q.Points
}

func containsFold(options []string, v string) bool {
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}
