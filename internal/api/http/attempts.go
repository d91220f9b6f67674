package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/winbro-training/quizcert/internal/attempt"
	authmw "github.com/winbro-training/quizcert/internal/auth/middleware"
	"github.com/winbro-training/quizcert/internal/quiz"
)

// POST /quiz-attempts {quiz_id, course_id?}: the user comes from the token,
// never the body.
func CreateAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req struct {
			QuizID   string `json:"quiz_id"`
			CourseID string `json:"course_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuizID == "" {
			http.Error(w, "quiz_id required", http.StatusBadRequest)
			return
		}
		a, err := svc.Start(r.Context(), userID, req.QuizID, req.CourseID)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

func GetAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Get(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			httpError(w, err)
			return
		}
		if a.UserID != authmw.SubjectFromContext(r.Context()) && !canViewAll(r, "attempt:view-all") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /quiz-attempts?quiz_id=...&status=...&limit=50&offset=0
// Callers without attempt:view-all are scoped to their own attempts.
func ListAttemptsHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if !canViewAll(r, "attempt:view-all") {
			userID = authmw.SubjectFromContext(r.Context())
		}
		list, err := svc.List(r.Context(), attempt.ListOpts{
			QuizID: strings.TrimSpace(r.URL.Query().Get("quiz_id")),
			UserID: userID,
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			httpError(w, err)
			return
		}
		if list == nil {
			list = []quiz.Attempt{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// PATCH /quiz-attempts/{attemptID}: autosave answers and/or abandon.
func UpdateAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := svc.Get(r.Context(), id)
		if err != nil {
			httpError(w, err)
			return
		}
		if a.UserID != authmw.SubjectFromContext(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req struct {
			Answers []quiz.Answer      `json:"answers"`
			Status  quiz.AttemptStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Answers != nil {
			if a, err = svc.SaveAnswers(r.Context(), id, req.Answers); err != nil {
				httpError(w, err)
				return
			}
		}
		if req.Status == quiz.AttemptAbandoned {
			if a, err = svc.Abandon(r.Context(), id); err != nil {
				httpError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// POST /quiz-attempts/{attemptID}/submit {answers: [...]}
func SubmitAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := svc.Get(r.Context(), id)
		if err != nil {
			httpError(w, err)
			return
		}
		if a.UserID != authmw.SubjectFromContext(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req struct {
			Answers []quiz.Answer `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, _, err = svc.Submit(r.Context(), id, req.Answers)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}
