package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/winbro-training/quizcert/internal/attempt"
	authmw "github.com/winbro-training/quizcert/internal/auth/middleware"
)

type pageResponse struct {
	Data    attempt.Page `json:"data"`
	Success bool         `json:"success"`
}

// GET /quiz-certificate/{attemptID}: the single fetch behind the score /
// feedback / certificate page.
func QuizCertificatePageHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := svc.CertificatePage(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			httpError(w, err)
			return
		}
		if page.Attempt.UserID != authmw.SubjectFromContext(r.Context()) && !canViewAll(r, "attempt:view-all") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse{Data: page, Success: true})
	}
}
