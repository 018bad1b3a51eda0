package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"inventory/config"
	"inventory/internal/models"
)

func memConfig(t *testing.T) *config.Config {
	cfg := &config.Config{}
	cfg.Server.Address = "127.0.0.1"
	cfg.Server.HTTPPort = "0"
	cfg.Logging.Level = "error"
	cfg.Sequence.Backend = "db"
	cfg.QR.Enabled = true
	cfg.QR.Storage = "fs"
	cfg.QR.Dir = t.TempDir()
	cfg.QR.Size = 128
	cfg.PRP.SharedSecret = "s3cret"
	cfg.Jobs.OverdueInterval = time.Hour
	return cfg
}

func newApp(t *testing.T) *App {
	t.Helper()
	a := &App{}
	a.initialize(memConfig(t), prometheus.NewRegistry())
	return a
}

func do(a *App, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func TestInMemoryAppServesAPI(t *testing.T) {
	a := newApp(t)
	require.NotNil(t, a.mem)

	require.Equal(t, http.StatusOK, do(a, http.MethodGet, "/healthz", nil, nil).Code)
	require.Equal(t, http.StatusOK, do(a, http.MethodGet, "/metrics", nil, nil).Code)

	dev := &models.Device{AssetTag: "PC-001", Name: "ThinkPad"}
	a.mem.AddDevice(dev)
	emp := &models.Employee{FullName: "A. Member", IsActive: true, IsActiveEmployee: true}
	a.mem.AddEmployee(emp)

	today := time.Now().Format("2006-01-02")
	rec := do(a, http.MethodPost, "/api/assignments", map[string]any{
		"device_id":       dev.ID,
		"assignee_id":     emp.ID,
		"assignment_type": "PERMANENT",
		"assigned_date":   today,
		"purpose":         "Committee work",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	d, _ := a.mem.Device(dev.ID)
	require.Equal(t, models.DeviceStatusAssigned, d.Status)

	rec = do(a, http.MethodGet, "/api/jobs", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPRPPushRequiresSecret(t *testing.T) {
	a := newApp(t)
	body := map[string]any{"complete": false, "employees": []map[string]any{
		{"prp_id": "P-1", "full_name": "New Member", "email": "NM@example.org"},
	}}

	rec := do(a, http.MethodPost, "/api/prp/employees", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(a, http.MethodPost, "/api/prp/employees", body, map[string]string{"Authorization": "Bearer s3cret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	e, err := a.mem.Employees().GetByPRPID(t.Context(), "P-1")
	require.NoError(t, err)
	require.Equal(t, "nm@example.org", e.Email)
}
