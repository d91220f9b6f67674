package quiz

import (
	"encoding/json"
	"testing"
)

func TestAnswerWireFormat(t *testing.T) {
	a := SelectedOption("q1", 2)
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"question_id":"q1","answer_type":"multiple_choice","value":2}`
	if string(b) != want {
		t.Fatalf("wire form = %s, want %s", b, want)
	}

	var back Answer
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.QuestionID != "q1" || back.Selected == nil || *back.Selected != 2 {
		t.Fatalf("round trip: %+v", back)
	}
}

func TestAnswerUnmarshalShapes(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantErr bool
		check   func(t *testing.T, a Answer)
	}{
		{
			name: "short answer",
			in:   `{"question_id":"q1","answer_type":"short_answer","value":"coolant"}`,
			check: func(t *testing.T, a Answer) {
				if a.Text != "coolant" || a.Selected != nil || a.Bool != nil {
					t.Fatalf("short answer: %+v", a)
				}
			},
		},
		{
			name: "true false",
			in:   `{"question_id":"q1","answer_type":"true_false","value":false}`,
			check: func(t *testing.T, a Answer) {
				if a.Bool == nil || *a.Bool {
					t.Fatalf("true_false: %+v", a)
				}
			},
		},
		{
			name: "null value means skipped",
			in:   `{"question_id":"q1","answer_type":"multiple_choice","value":null}`,
			check: func(t *testing.T, a Answer) {
				if a.Selected != nil {
					t.Fatalf("null value must leave the union empty: %+v", a)
				}
			},
		},
		{
			name:    "string where index expected",
			in:      `{"question_id":"q1","answer_type":"multiple_choice","value":"b"}`,
			wantErr: true,
		},
		{
			name:    "number where boolean expected",
			in:      `{"question_id":"q1","answer_type":"true_false","value":1}`,
			wantErr: true,
		},
		{
			name:    "unknown answer type",
			in:      `{"question_id":"q1","answer_type":"essay","value":"..."}`,
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var a Answer
			err := json.Unmarshal([]byte(tc.in), &a)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("want error for %s", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			tc.check(t, a)
		})
	}
}

func TestLearnerViewStripsKeysWithoutAliasing(t *testing.T) {
	key := TextAnswer("q1", "secret")
	q := Quiz{
		ID: "quiz-1",
		Questions: []Question{
			{ID: "q1", Type: TypeShortAnswer, CorrectAnswer: &key, Explanation: "because", Points: 1},
		},
	}
	lv := q.LearnerView()
	if lv.Questions[0].CorrectAnswer != nil || lv.Questions[0].Explanation != "" {
		t.Fatalf("learner view leaked: %+v", lv.Questions[0])
	}
	if q.Questions[0].CorrectAnswer == nil {
		t.Fatal("learner view mutated the source quiz")
	}
}
