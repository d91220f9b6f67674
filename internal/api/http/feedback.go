package http

import (
	"net/http"
	"strings"

	"github.com/winbro-training/quizcert/internal/attempt"
	authmw "github.com/winbro-training/quizcert/internal/auth/middleware"
	"github.com/winbro-training/quizcert/internal/grading"
)

// GET /quiz-feedback?quiz_attempt_id=...
func ListFeedbackHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(r.URL.Query().Get("quiz_attempt_id"))
		if attemptID == "" {
			http.Error(w, "quiz_attempt_id required", http.StatusBadRequest)
			return
		}
		a, err := svc.Get(r.Context(), attemptID)
		if err != nil {
			httpError(w, err)
			return
		}
		if a.UserID != authmw.SubjectFromContext(r.Context()) && !canViewAll(r, "attempt:view-all") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		fb, err := svc.Feedback(r.Context(), attemptID)
		if err != nil {
			httpError(w, err)
			return
		}
		if fb == nil {
			fb = []grading.QuestionResult{}
		}
		writeJSON(w, http.StatusOK, fb)
	}
}
