package prp

import (
	"net/http"

	"github.com/gorilla/mux"

	"inventory/internal/middleware"
	"inventory/internal/models"
)

// PushRequest — выгрузка, присланная самим PRP.
type PushRequest struct {
	Complete  bool     `json:"complete"`
	Employees []Record `json:"employees"`
}

// RegisterRoutes вешает POST <prefix>/employees под SharedSecretAuth.
func RegisterRoutes(r *mux.Router, s *Syncer, secret string) {
	sub := r.PathPrefix("/api/prp").Subrouter()
	sub.Use(middleware.SharedSecretAuth(secret))
	sub.HandleFunc("/employees", pushHandler(s)).Methods(http.MethodPost)
	sub.HandleFunc("/pull", pullHandler(s)).Methods(http.MethodPost)
}

func pushHandler(s *Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PushRequest
		if err := models.DecodeJSON(r, &req); err != nil {
			models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
			return
		}
		st, err := s.Apply(r.Context(), req.Employees, req.Complete)
		if err != nil {
			middleware.Log(r).WithError(err).Error("prp push failed")
			models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "sync failed", nil)
			return
		}
		models.WriteJSON(w, http.StatusOK, st)
	}
}

func pullHandler(s *Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.Pull(r.Context())
		if err != nil {
			middleware.Log(r).WithError(err).Error("prp pull failed")
			models.WriteProblem(w, http.StatusBadGateway, "Bad Gateway", err.Error(), nil)
			return
		}
		models.WriteJSON(w, http.StatusOK, st)
	}
}
