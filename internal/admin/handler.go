package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"inventory/internal/assignment"
	"inventory/internal/export"
	"inventory/internal/jobs"
	"inventory/internal/logs"
	"inventory/internal/middleware"
	"inventory/internal/models"
	"inventory/internal/qrcode"
	"inventory/internal/repo"
)

type Handler struct {
	d Dependencies
}

type listResponse struct {
	Items  []models.Assignment `json:"items"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// ---------- assignments ----------

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.d.Assignments.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, total, err := h.d.Assignments.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.Assignment{}
	}
	models.WriteJSON(w, http.StatusOK, listResponse{Items: rows, Total: total, Limit: f.PageSize(), Offset: f.Offset})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.d.Assignments.Get(r.Context(), pathID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	a, err := h.d.Assignments.GetByAssignmentID(r.Context(), mux.Vars(r)["number"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.d.Assignments.Update(r.Context(), pathID(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.d.Assignments.Return(r.Context(), pathID(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.d.Assignments.Cancel(r.Context(), pathID(r), req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.d.Assignments.Extend(r.Context(), pathID(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.d.Assignments.Transfer(r.Context(), pathID(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, res)
}

// ---------- qr ----------

func (h *Handler) QRList(w http.ResponseWriter, r *http.Request) {
	if !h.qrEnabled(w) {
		return
	}
	rows, err := h.d.QR.List(r.Context(), pathID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.AssignmentQRCode{}
	}
	models.WriteJSON(w, http.StatusOK, rows)
}

// QRRegenerate выпускает новый код; прежние деактивируются.
func (h *Handler) QRRegenerate(w http.ResponseWriter, r *http.Request) {
	if !h.qrEnabled(w) {
		return
	}
	a, err := h.d.Assignments.Get(r.Context(), pathID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	qr, err := h.d.QR.Issue(r.Context(), a)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, qr)
}

func (h *Handler) QRImage(w http.ResponseWriter, r *http.Request) {
	if !h.qrEnabled(w) {
		return
	}
	png, err := h.d.QR.Image(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	_, _ = w.Write(png)
}

func (h *Handler) QRDelete(w http.ResponseWriter, r *http.Request) {
	if !h.qrEnabled(w) {
		return
	}
	if err := h.d.QR.Delete(r.Context(), mux.Vars(r)["code"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) qrEnabled(w http.ResponseWriter) bool {
	if h.d.QR == nil {
		models.WriteProblem(w, http.StatusNotImplemented, "Not Implemented", "qr codes are disabled", nil)
		return false
	}
	return true
}

// ---------- export ----------

func (h *Handler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	models.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="assignments.xlsx"`)
	if err := export.WriteXLSX(w, rows); err != nil {
		middleware.Log(r).WithError(err).Error("xlsx export failed")
	}
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) ([]export.Row, bool) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	rows, err := export.Snapshot(r.Context(), h.d.Export, f)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return rows, true
}

// ---------- maintenance ----------

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	status, updated, err := h.d.Reconciler.Reconcile(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{"device_id": id, "status": status, "updated": updated})
}

func (h *Handler) JobsStatus(w http.ResponseWriter, r *http.Request) {
	if h.d.Jobs == nil {
		models.WriteJSON(w, http.StatusOK, []jobs.JobStatus{})
		return
	}
	models.WriteJSON(w, http.StatusOK, h.d.Jobs.Status())
}

func (h *Handler) JobRun(w http.ResponseWriter, r *http.Request) {
	if h.d.Jobs == nil {
		h.fail(w, r, jobs.ErrUnknownJob)
		return
	}
	name := mux.Vars(r)["name"]
	if err := h.d.Jobs.RunNow(r.Context(), name); err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{"job": name, "ok": true})
}

// ---------- utils ----------

func pathID(r *http.Request) uint {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return uint(id)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := models.DecodeJSON(r, v); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return false
	}
	return true
}

// fail: валидация — 422 с полями, не найдено — 404, остальное — 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	reqid := middleware.GetRequestID(r)
	if v, ok := assignment.AsValidation(err); ok {
		models.WriteProblem(w, http.StatusUnprocessableEntity, "Validation Failed", v.Error(),
			map[string]any{"fields": v.Fields})
		return
	}
	switch {
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, qrcode.ErrObjectNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", err.Error(), nil)
	case errors.Is(err, jobs.ErrUnknownJob):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", err.Error(), nil)
	default:
		logs.Logger.WithError(err).WithField("reqid", reqid).Error(fmt.Sprintf("%s %s failed", r.Method, r.URL.Path))
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error",
			"unexpected server error (see logs by reqid)", map[string]any{"reqid": reqid})
	}
}
