package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/winbro-training/quizcert/internal/attempt"
	authmw "github.com/winbro-training/quizcert/internal/auth/middleware"
	"github.com/winbro-training/quizcert/internal/cert"
)

func ListCertificatesHandler(store cert.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		list, err := store.ListByUser(r.Context(), userID)
		if err != nil {
			httpError(w, err)
			return
		}
		if list == nil {
			list = []cert.Certificate{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetCertificateHandler(store cert.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetByID(r.Context(), chi.URLParam(r, "certID"))
		if err != nil {
			httpError(w, err)
			return
		}
		if c.UserID != authmw.SubjectFromContext(r.Context()) && !canViewAll(r, "cert:view-all") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// POST /certificates/{certID}/share hands back the public verification URL;
// the token inside it is the only thing a third party needs.
func ShareCertificateHandler(store cert.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetByID(r.Context(), chi.URLParam(r, "certID"))
		if err != nil {
			httpError(w, err)
			return
		}
		if c.UserID != authmw.SubjectFromContext(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"share_url": c.VerificationURL})
	}
}

func RevokeCertificateHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.RevokeCertificate(r.Context(), chi.URLParam(r, "certID"))
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// GET /certificates/verify/{token}: public, fails closed.
func VerifyCertificateHandler(svc *cert.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Verify(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
