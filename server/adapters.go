package server

import (
	"context"

	"gorm.io/gorm"

	"inventory/internal/assignment"
	"inventory/internal/models"
	"inventory/internal/repo"
	"inventory/internal/sequence"
)

// gormStore реализует assignment.Store поверх repo.* в одной транзакции gorm.
type gormStore struct {
	db    *gorm.DB
	redis *sequence.Redis // nil — счётчик в таблице assignment_sequences
}

func newGormStore(db *gorm.DB, rs *sequence.Redis) assignment.Store {
	return &gormStore{db: db, redis: rs}
}

func (s *gormStore) InTx(ctx context.Context, fn func(ctx context.Context, tx assignment.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, s.bind(tx))
	})
}

func (s *gormStore) bind(tx *gorm.DB) assignment.Tx {
	as := repo.NewAssignmentStore(tx)
	var seq assignment.SequenceIssuer = repo.NewSequenceStore(tx)
	if s.redis != nil {
		seq = s.redis.Bind(as)
	}
	return assignment.Tx{
		Devices:     repo.NewDeviceStore(tx),
		Assignments: as,
		Employees:   repo.NewEmployeeStore(tx),
		Locations:   repo.NewLocationStore(tx),
		Sequence:    seq,
	}
}

// readModel — чтение для выгрузки и сверки статусов (export.Source, controller.DeviceLister).
type readModel struct {
	devices     *repo.DeviceStore
	assignments *repo.AssignmentStore
	employees   *repo.EmployeeStore
	locations   *repo.LocationStore
}

func newReadModel(db *gorm.DB) *readModel {
	return &readModel{
		devices:     repo.NewDeviceStore(db),
		assignments: repo.NewAssignmentStore(db),
		employees:   repo.NewEmployeeStore(db),
		locations:   repo.NewLocationStore(db),
	}
}

func (m *readModel) ListAssignments(ctx context.Context, f repo.AssignmentFilter) ([]models.Assignment, int64, error) {
	return m.assignments.List(ctx, f)
}

func (m *readModel) DevicesByIDs(ctx context.Context, ids []uint) ([]models.Device, error) {
	return m.devices.ListByIDs(ctx, ids)
}

func (m *readModel) EmployeesByIDs(ctx context.Context, ids []uint) ([]models.Employee, error) {
	return m.employees.ListByIDs(ctx, ids)
}

func (m *readModel) LocationsByIDs(ctx context.Context, ids []uint) ([]models.Location, error) {
	return m.locations.ListByIDs(ctx, ids)
}

func (m *readModel) ListDevices(ctx context.Context) ([]models.Device, error) {
	return m.devices.List(ctx)
}
