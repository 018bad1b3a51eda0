package admin

import (
	"github.com/gorilla/mux"

	"inventory/internal/assignment"
	"inventory/internal/controller"
	"inventory/internal/export"
	"inventory/internal/jobs"
	"inventory/internal/qrcode"
)

type Dependencies struct {
	Assignments *assignment.Service
	QR          *qrcode.Service // nil — QR выключен
	Export      export.Source
	Reconciler  *controller.Reconciler
	Jobs        *jobs.Scheduler
}

func Attach(r *mux.Router, d Dependencies) {
	h := &Handler{d: d}
	sub := r.PathPrefix("/api").Subrouter()

	// assignments
	sub.HandleFunc("/assignments", h.List).Methods("GET")
	sub.HandleFunc("/assignments", h.Create).Methods("POST")
	sub.HandleFunc("/assignments/by-number/{number}", h.GetByNumber).Methods("GET")
	sub.HandleFunc("/assignments/{id:[0-9]+}", h.Get).Methods("GET")
	sub.HandleFunc("/assignments/{id:[0-9]+}", h.Update).Methods("PUT")
	sub.HandleFunc("/assignments/{id:[0-9]+}/return", h.Return).Methods("POST")
	sub.HandleFunc("/assignments/{id:[0-9]+}/cancel", h.Cancel).Methods("POST")
	sub.HandleFunc("/assignments/{id:[0-9]+}/extend", h.Extend).Methods("POST")
	sub.HandleFunc("/assignments/{id:[0-9]+}/transfer", h.Transfer).Methods("POST")

	// qr
	sub.HandleFunc("/assignments/{id:[0-9]+}/qr", h.QRList).Methods("GET")
	sub.HandleFunc("/assignments/{id:[0-9]+}/qr", h.QRRegenerate).Methods("POST")
	sub.HandleFunc("/qr/{code}.png", h.QRImage).Methods("GET")
	sub.HandleFunc("/qr/{code}", h.QRDelete).Methods("DELETE")

	// export
	sub.HandleFunc("/export/assignments", h.ExportJSON).Methods("GET")
	sub.HandleFunc("/export/assignments.xlsx", h.ExportXLSX).Methods("GET")

	// maintenance
	sub.HandleFunc("/devices/{id:[0-9]+}/reconcile", h.Reconcile).Methods("POST")
	sub.HandleFunc("/jobs", h.JobsStatus).Methods("GET")
	sub.HandleFunc("/jobs/{name}/run", h.JobRun).Methods("POST")
}
