package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/winbro-training/quizcert/internal/attempt"
	"github.com/winbro-training/quizcert/internal/quiz"
)

func CreateQuizHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q quiz.Quiz
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		created, err := svc.CreateQuiz(r.Context(), q)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func PublishQuizHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := svc.PublishQuiz(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// GetQuizHandler serves the full quiz to callers with quiz:view-full and the
// answer-key-stripped view to everyone else.
func GetQuizHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		var (
			q   quiz.Quiz
			err error
		)
		if canViewAll(r, "quiz:view-full") {
			q, err = svc.GetQuiz(r.Context(), id)
		} else {
			q, err = svc.GetQuizForLearner(r.Context(), id)
		}
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}
