package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/winbro-training/quizcert/internal/cert"
	"github.com/winbro-training/quizcert/internal/quiz"
	"github.com/winbro-training/quizcert/internal/rbac"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// httpError maps typed domain errors to status codes; callers never have to
// string-match.
func httpError(w http.ResponseWriter, err error) {
	var limitErr *quiz.AttemptLimitError
	var degenerate *quiz.DegenerateQuizError
	switch {
	case errors.Is(err, quiz.ErrQuizNotFound),
		errors.Is(err, quiz.ErrAttemptNotFound),
		errors.Is(err, cert.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &limitErr),
		errors.Is(err, quiz.ErrNotPublished),
		errors.Is(err, quiz.ErrQuizPublished),
		errors.Is(err, quiz.ErrAttemptClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &degenerate):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// canViewAll reports whether the caller may see other users' records.
func canViewAll(r *http.Request, perm string) bool {
	return rbac.NewChecker(nil).Has(rbac.RoleFromContext(r.Context()), perm)
}
