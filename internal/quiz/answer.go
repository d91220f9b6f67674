package quiz

import (
	"encoding/json"
	"fmt"
)

// Answer is a tagged union keyed by the question's declared type. Exactly one
// of Selected, Text or Bool carries the value; the others stay zero. The wire
// form matches the frontend contract:
//
//	{"question_id": "...", "answer_type": "multiple_choice", "value": 2}
type Answer struct {
	QuestionID string
	Type       QuestionType
	Selected   *int   // multiple_choice: index into Question.Options
	Text       string // short_answer
	Bool       *bool  // true_false
}

// SelectedOption builds a multiple-choice answer.
func SelectedOption(questionID string, index int) Answer {
	return Answer{QuestionID: questionID, Type: TypeMultipleChoice, Selected: &index}
}

// TextAnswer builds a short-answer value.
func TextAnswer(questionID, text string) Answer {
	return Answer{QuestionID: questionID, Type: TypeShortAnswer, Text: text}
}

// BoolAnswer builds a true/false answer.
func BoolAnswer(questionID string, v bool) Answer {
	return Answer{QuestionID: questionID, Type: TypeTrueFalse, Bool: &v}
}

type answerWire struct {
	QuestionID string          `json:"question_id"`
	Type       QuestionType    `json:"answer_type"`
	Value      json.RawMessage `json:"value"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	var value any
	switch a.Type {
	case TypeMultipleChoice:
		if a.Selected != nil {
			value = *a.Selected
		}
	case TypeShortAnswer:
		value = a.Text
	case TypeTrueFalse:
		if a.Bool != nil {
			value = *a.Bool
		}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(answerWire{QuestionID: a.QuestionID, Type: a.Type, Value: raw})
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var w answerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Answer{QuestionID: w.QuestionID, Type: w.Type}
	if len(w.Value) == 0 || string(w.Value) == "null" {
		*a = out
		return nil
	}
	switch w.Type {
	case TypeMultipleChoice:
		var idx int
		if err := json.Unmarshal(w.Value, &idx); err != nil {
			return fmt.Errorf("answer %s: multiple_choice value must be an option index: %w", w.QuestionID, err)
		}
		out.Selected = &idx
	case TypeShortAnswer:
		if err := json.Unmarshal(w.Value, &out.Text); err != nil {
			return fmt.Errorf("answer %s: short_answer value must be a string: %w", w.QuestionID, err)
		}
	case TypeTrueFalse:
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			return fmt.Errorf("answer %s: true_false value must be a boolean: %w", w.QuestionID, err)
		}
		out.Bool = &b
	default:
		return fmt.Errorf("answer %s: unknown answer_type %q", w.QuestionID, w.Type)
	}
	*a = out
	return nil
}
