package memstore

import (
	"context"
	"sort"
	"time"

	"inventory/internal/models"
	"inventory/internal/repo"
)

// Employees — сотрудники для синхронизации с PRP; вызывается вне InTx.
type Employees struct{ s *Store }

func (s *Store) Employees() *Employees { return &Employees{s: s} }

func (v *Employees) GetByPRPID(_ context.Context, prpID string) (*models.Employee, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, e := range v.s.employees {
		if e.PRPID != nil && *e.PRPID == prpID {
			return &e, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (v *Employees) Create(_ context.Context, e *models.Employee) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if e.PRPID != nil {
		for _, other := range v.s.employees {
			if other.PRPID != nil && *other.PRPID == *e.PRPID {
				return repo.ErrDuplicate
			}
		}
	}
	now := time.Now().UTC()
	e.ID = v.s.id()
	e.CreatedAt, e.UpdatedAt = now, now
	v.s.employees[e.ID] = *e
	return nil
}

func (v *Employees) Save(_ context.Context, e *models.Employee) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.employees[e.ID]; !ok {
		return repo.ErrNotFound
	}
	e.UpdatedAt = time.Now().UTC()
	v.s.employees[e.ID] = *e
	return nil
}

func (v *Employees) ListSynced(_ context.Context) ([]models.Employee, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []models.Employee
	for _, e := range v.s.employees {
		if e.PRPID != nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Directory — чтение для выгрузок и сверки статусов устройств.
type Directory struct{ s *Store }

func (s *Store) Directory() *Directory { return &Directory{s: s} }

func (v *Directory) ListAssignments(ctx context.Context, f repo.AssignmentFilter) ([]models.Assignment, int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return assignments{v.s}.List(ctx, f)
}

func (v *Directory) ListDevices(_ context.Context) ([]models.Device, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return sortedValues(v.s.devices, func(d models.Device) uint { return d.ID }), nil
}

func (v *Directory) DevicesByIDs(_ context.Context, ids []uint) ([]models.Device, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return pick(v.s.devices, ids), nil
}

func (v *Directory) EmployeesByIDs(_ context.Context, ids []uint) ([]models.Employee, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return pick(v.s.employees, ids), nil
}

func (v *Directory) LocationsByIDs(_ context.Context, ids []uint) ([]models.Location, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return pick(v.s.locations, ids), nil
}

func pick[T any](m map[uint]T, ids []uint) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := m[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

func sortedValues[T any](m map[uint]T, key func(T) uint) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}
