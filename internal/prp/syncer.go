package prp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"inventory/internal/logs"
	"inventory/internal/metrics"
	"inventory/internal/models"
	"inventory/internal/repo"
)

// EmployeeStore — локальные сотрудники (repo.EmployeeStore или memstore).
type EmployeeStore interface {
	GetByPRPID(ctx context.Context, prpID string) (*models.Employee, error)
	Create(ctx context.Context, e *models.Employee) error
	Save(ctx context.Context, e *models.Employee) error
	ListSynced(ctx context.Context) ([]models.Employee, error)
}

type Fetcher interface {
	FetchAll(ctx context.Context) ([]Record, error)
}

// Stats — итог одного прогона синхронизации.
type Stats struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Unchanged   int `json:"unchanged"`
	Deactivated int `json:"deactivated"`
	Skipped     int `json:"skipped"`
}

// Syncer применяет выгрузку PRP к локальным сотрудникам. Односторонне:
// сопоставление по prp_id, локальные записи без prp_id не трогаются.
type Syncer struct {
	store   EmployeeStore
	fetcher Fetcher
	Now     func() time.Time
	Metrics *metrics.Metrics
}

func NewSyncer(store EmployeeStore, fetcher Fetcher) *Syncer {
	return &Syncer{store: store, fetcher: fetcher, Now: time.Now}
}

// Pull забирает полную выгрузку и применяет её.
func (s *Syncer) Pull(ctx context.Context) (Stats, error) {
	if s.fetcher == nil {
		return Stats{}, errors.New("prp: client is not configured")
	}
	records, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		return Stats{}, err
	}
	return s.Apply(ctx, records, true)
}

// Apply применяет записи. complete=true — выгрузка полная: синхронизированные
// ранее сотрудники, которых в ней нет, помечаются как недействующие.
func (s *Syncer) Apply(ctx context.Context, records []Record, complete bool) (Stats, error) {
	var st Stats
	now := s.Now().UTC()
	seen := make(map[string]struct{}, len(records))

	for i := range records {
		rec := &records[i]
		if rec.PRPID == "" {
			st.Skipped++
			continue
		}
		if _, dup := seen[rec.PRPID]; dup {
			st.Skipped++
			continue
		}
		seen[rec.PRPID] = struct{}{}

		emp, err := s.store.GetByPRPID(ctx, rec.PRPID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			emp = &models.Employee{IsActive: true}
			apply(emp, rec, now)
			if err := s.store.Create(ctx, emp); err != nil {
				return st, fmt.Errorf("prp: create %s: %w", rec.PRPID, err)
			}
			st.Created++
		case err != nil:
			return st, fmt.Errorf("prp: load %s: %w", rec.PRPID, err)
		default:
			changed := apply(emp, rec, now)
			if err := s.store.Save(ctx, emp); err != nil {
				return st, fmt.Errorf("prp: update %s: %w", rec.PRPID, err)
			}
			if changed {
				st.Updated++
			} else {
				st.Unchanged++
			}
		}
	}

	if complete {
		synced, err := s.store.ListSynced(ctx)
		if err != nil {
			return st, fmt.Errorf("prp: list synced: %w", err)
		}
		for i := range synced {
			emp := &synced[i]
			if emp.PRPID == nil {
				continue
			}
			if _, ok := seen[*emp.PRPID]; ok || !emp.IsActiveEmployee {
				continue
			}
			emp.IsActiveEmployee = false
			emp.PRPSyncedAt = &now
			if err := s.store.Save(ctx, emp); err != nil {
				return st, fmt.Errorf("prp: deactivate %s: %w", *emp.PRPID, err)
			}
			st.Deactivated++
		}
	}

	s.Metrics.PRPRecords("created", st.Created)
	s.Metrics.PRPRecords("updated", st.Updated)
	s.Metrics.PRPRecords("deactivated", st.Deactivated)
	s.Metrics.PRPRecords("skipped", st.Skipped)
	logs.Logger.WithFields(logrus.Fields{
		"created":     st.Created,
		"updated":     st.Updated,
		"unchanged":   st.Unchanged,
		"deactivated": st.Deactivated,
		"skipped":     st.Skipped,
		"complete":    complete,
	}).Info("prp sync applied")
	return st, nil
}

// apply переносит поля записи в сотрудника; true — что-то изменилось.
func apply(e *models.Employee, r *Record, now time.Time) bool {
	changed := false
	set := func(dst *string, v string) {
		v = strings.TrimSpace(v)
		if *dst != v {
			*dst = v
			changed = true
		}
	}
	if e.PRPID == nil || *e.PRPID != r.PRPID {
		id := r.PRPID
		e.PRPID = &id
		changed = true
	}
	set(&e.EmployeeNumber, r.EmployeeNumber)
	set(&e.FullName, r.FullName)
	set(&e.Email, strings.ToLower(r.Email))
	set(&e.Department, r.Department)
	set(&e.Designation, r.Designation)
	if active := r.IsActiveEmployee(); e.IsActiveEmployee != active {
		e.IsActiveEmployee = active
		changed = true
	}
	if len(r.Raw) > 0 {
		e.PRPRecord = datatypes.JSON(r.Raw)
	}
	e.PRPSyncedAt = &now
	return changed
}
