package gallery

import (
	"strings"
	"testing"
)

func TestParseAnswersYesNo(t *testing.T) {
	crit := EvaluationCriteria{Criteria: []EvaluationCriterion{
		{Question: "Is it new?", Type: YesNo, Hard: true},
	}}

	answers, hardSatisfied, err := crit.ParseAnswersAndCheckHardCriteria([]string{"Y"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(answers) != 1 || !answers[0].Affirmative() {
		t.Fatalf("expected affirmative answer, got %+v", answers)
	}
	if !hardSatisfied {
		t.Fatal("expected hard criteria satisfied")
	}
}

func TestParseAnswersHardCriterionFailed(t *testing.T) {
	crit := EvaluationCriteria{Criteria: []EvaluationCriterion{
		{Question: "Is it new?", Type: YesNo, Hard: true},
		{Question: "Any notes?", Type: OpenEnded},
	}}

	_, hardSatisfied, err := crit.ParseAnswersAndCheckHardCriteria([]string{"N", "looks worn"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if hardSatisfied {
		t.Fatal("expected hard criteria NOT satisfied")
	}
}

func TestParseAnswersCountMismatch(t *testing.T) {
	crit := EvaluationCriteria{Criteria: []EvaluationCriterion{
		{Question: "Is it new?", Type: YesNo},
	}}

	if _, err := crit.ParseAnswers([]string{"Y", "extra"}); err != ErrAnswerCountMismatch {
		t.Fatalf("expected ErrAnswerCountMismatch, got %v", err)
	}
}

func TestParseAnswersIntAndFloat(t *testing.T) {
	crit := EvaluationCriteria{Criteria: []EvaluationCriterion{
		{Question: "How many?", Type: IntType},
		{Question: "What price?", Type: FloatType},
	}}

	answers, err := crit.ParseAnswers([]string{"3", "19.99"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if answers[0].Int != 3 {
		t.Fatalf("expected int 3, got %d", answers[0].Int)
	}
	if answers[1].Float != 19.99 {
		t.Fatalf("expected float 19.99, got %f", answers[1].Float)
	}
}

func TestDescribeCriteriaIncludesFormatHints(t *testing.T) {
	crit := EvaluationCriteria{Criteria: []EvaluationCriterion{
		{Question: "Is it new?", Type: YesNo},
	}}

	desc := crit.DescribeCriteria()
	if desc == "" {
		t.Fatal("expected non-empty description")
	}
	if !strings.Contains(desc, "(ONLY ANSWER WITH 'Y' for Yes, or 'N' for No)") {
		t.Fatalf("expected the YesNo format hint in the description, got %q", desc)
	}
}

func TestHardCriteriaIndices(t *testing.T) {
	crit := EvaluationCriteria{Criteria: []EvaluationCriterion{
		{Question: "a", Hard: true},
		{Question: "b", Hard: false},
		{Question: "c", Hard: true},
	}}

	indices := crit.HardCriteriaIndices()
	if len(indices) != 2 || indices[0] != 0 || indices[1] != 2 {
		t.Fatalf("expected [0 2], got %v", indices)
	}
}
