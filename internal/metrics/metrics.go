package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — счётчики сервиса. Методы безопасны на nil-получателе,
// поэтому компоненты можно собирать без метрик (тесты, утилиты).
type Metrics struct {
	operations  *prometheus.CounterVec
	qrFailures  prometheus.Counter
	prpRecords  *prometheus.CounterVec
	jobRuns     *prometheus.CounterVec
	overdueSeen prometheus.Counter
}

// New регистрирует метрики в reg (prometheus.DefaultRegisterer, если nil).
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "inventory"
	}
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "operations_total",
			Help:      "Assignment lifecycle operations by operation and result (ok, invalid, error).",
		}, []string{"op", "result"}),
		qrFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "qr",
			Name:      "issue_failures_total",
			Help:      "QR code issuance failures (best effort, never fatal).",
		}),
		prpRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prp_sync",
			Name:      "records_total",
			Help:      "PRP records processed by outcome (created, updated, unchanged, deactivated, skipped).",
		}, []string{"outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job runs by job and result.",
		}, []string{"job", "result"}),
		overdueSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "overdue_marked_total",
			Help:      "Assignments flipped to OVERDUE by the sweep.",
		}),
	}
	reg.MustRegister(m.operations, m.qrFailures, m.prpRecords, m.jobRuns, m.overdueSeen)
	return m
}

func (m *Metrics) Operation(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) QRFailure() {
	if m == nil {
		return
	}
	m.qrFailures.Inc()
}

func (m *Metrics) PRPRecords(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.prpRecords.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
}

func (m *Metrics) OverdueMarked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.overdueSeen.Add(float64(n))
}
