package gallery

import (
	"fmt"
	"strconv"
	"strings"
)

// SearchCriteria is an immutable per-run snapshot of a gallery's search.
type SearchCriteria struct {
	Keyword        string   `json:"keyword"`
	ExcludeKeyword string   `json:"exclude_keyword"`
	MinPrice       *float64 `json:"min_price,omitempty"`
	MaxPrice       *float64 `json:"max_price,omitempty"`
}

// CriterionType is the answer format an evaluation criterion demands.
type CriterionType string

const (
	YesNo          CriterionType = "yes_no"
	YesNoUncertain CriterionType = "yes_no_uncertain"
	IntType        CriterionType = "int"
	FloatType      CriterionType = "float"
	OpenEnded      CriterionType = "open_ended"
)

// EvaluationCriterion is one question put to the LLM Analyzer for every item.
// Hard criteria are the subset the gallery owner marks mandatory: an item is
// relevant only if every hard criterion's answer is affirmative.
type EvaluationCriterion struct {
	Question string        `json:"question"`
	Type     CriterionType `json:"type"`
	Hard     bool          `json:"hard"`
}

// EvaluationCriteria is the ordered sequence of criteria evaluated per item.
type EvaluationCriteria struct {
	Criteria []EvaluationCriterion `json:"criteria"`
}

// CriterionAnswer is a single parsed, typed answer.
type CriterionAnswer struct {
	Type      CriterionType
	Yes       bool // YesNo, YesNoUncertain
	Uncertain bool // YesNoUncertain only
	Int       int64
	Float     float64
	Text      string // OpenEnded
}

// Affirmative reports whether the answer counts as "affirmative" in its
// type's natural sense, used by hard-criterion satisfaction checks.
func (a CriterionAnswer) Affirmative() bool {
	switch a.Type {
	case YesNo:
		return a.Yes
	case YesNoUncertain:
		return a.Yes && !a.Uncertain
	case IntType:
		return a.Int != 0
	case FloatType:
		return a.Float != 0
	case OpenEnded:
		return a.Text != "" && a.Text != "I cannot answer this."
	default:
		return false
	}
}

// HardCriteriaIndices returns the positions of criteria marked hard.
func (ec EvaluationCriteria) HardCriteriaIndices() []int {
	idx := make([]int, 0, len(ec.Criteria))
	for i, c := range ec.Criteria {
		if c.Hard {
			idx = append(idx, i)
		}
	}
	return idx
}

// DescribeCriteria renders the exact per-criterion prompt text the LLM
// Analyzer's system prompt embeds, one line per criterion, in order.
func (ec EvaluationCriteria) DescribeCriteria() string {
	var b strings.Builder
	for i, c := range ec.Criteria {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, c.Question, formatHint(c.Type))
	}
	return b.String()
}

func formatHint(t CriterionType) string {
	switch t {
	case YesNo:
		return "(ONLY ANSWER WITH 'Y' for Yes, or 'N' for No)"
	case YesNoUncertain:
		return "(ONLY ANSWER WITH 'Y' for Yes, 'N' for No, or 'U' for Uncertain)"
	case IntType:
		return "(ONLY ANSWER WITH A WHOLE NUMBER)"
	case FloatType:
		return "(ONLY ANSWER WITH A NUMBER, DECIMALS ALLOWED)"
	case OpenEnded:
		return "(ANSWER IN AT MOST 200 CHARACTERS)"
	default:
		return ""
	}
}

// ErrAnswerCountMismatch is returned when the LLM's answer list length
// does not match the number of criteria.
var ErrAnswerCountMismatch = fmt.Errorf("answer count does not match criteria count")

// ParseAnswers parses the raw per-criterion answer strings against this
// criteria set's types. Returns ErrAnswerCountMismatch on length mismatch,
// or a format error naming the offending criterion index.
func (ec EvaluationCriteria) ParseAnswers(answers []string) ([]CriterionAnswer, error) {
	if len(answers) != len(ec.Criteria) {
		return nil, ErrAnswerCountMismatch
	}
	out := make([]CriterionAnswer, len(answers))
	for i, raw := range answers {
		ans, err := parseAnswer(ec.Criteria[i].Type, raw)
		if err != nil {
			return nil, fmt.Errorf("criterion %d: %w", i, err)
		}
		out[i] = ans
	}
	return out, nil
}

// ParseAnswersAndCheckHardCriteria parses answers and reports whether every
// hard criterion's answer is affirmative. A gallery with zero hard criteria
// vacuously satisfies them.
func (ec EvaluationCriteria) ParseAnswersAndCheckHardCriteria(answers []string) ([]CriterionAnswer, bool, error) {
	parsed, err := ec.ParseAnswers(answers)
	if err != nil {
		return nil, false, err
	}
	for _, idx := range ec.HardCriteriaIndices() {
		if !parsed[idx].Affirmative() {
			return parsed, false, nil
		}
	}
	return parsed, true, nil
}

func parseAnswer(t CriterionType, raw string) (CriterionAnswer, error) {
	trimmed := strings.TrimSpace(raw)
	switch t {
	case YesNo:
		switch strings.ToUpper(trimmed) {
		case "Y":
			return CriterionAnswer{Type: t, Yes: true}, nil
		case "N":
			return CriterionAnswer{Type: t, Yes: false}, nil
		default:
			return CriterionAnswer{}, fmt.Errorf("expected Y or N, got %q", raw)
		}
	case YesNoUncertain:
		switch strings.ToUpper(trimmed) {
		case "Y":
			return CriterionAnswer{Type: t, Yes: true}, nil
		case "N":
			return CriterionAnswer{Type: t, Yes: false}, nil
		case "U":
			return CriterionAnswer{Type: t, Uncertain: true}, nil
		default:
			return CriterionAnswer{}, fmt.Errorf("expected Y, N or U, got %q", raw)
		}
	case IntType:
		v, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return CriterionAnswer{}, fmt.Errorf("expected integer, got %q", raw)
		}
		return CriterionAnswer{Type: t, Int: v}, nil
	case FloatType:
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return CriterionAnswer{}, fmt.Errorf("expected float, got %q", raw)
		}
		return CriterionAnswer{Type: t, Float: v}, nil
	case OpenEnded:
		if len(trimmed) > 200 {
			trimmed = trimmed[:200]
		}
		return CriterionAnswer{Type: t, Text: trimmed}, nil
	default:
		return CriterionAnswer{}, fmt.Errorf("unknown criterion type %q", t)
	}
}
