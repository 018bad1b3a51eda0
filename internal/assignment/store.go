package assignment

import (
	"context"
	"time"

	"inventory/internal/models"
	"inventory/internal/repo"
)

// Репозитории, которые нужны движку. Реализации: repo.* поверх gorm
// (см. server/adapters.go) и memstore для режима без БД.

type DeviceRegistry interface {
	// LockForUpdate читает устройство и держит блокировку строки до конца транзакции.
	LockForUpdate(ctx context.Context, id uint) (*models.Device, error)
	SetStatus(ctx context.Context, id uint, status models.DeviceStatus) error
}

type Repository interface {
	Get(ctx context.Context, id uint) (*models.Assignment, error)
	GetByAssignmentID(ctx context.Context, assignmentID string) (*models.Assignment, error)
	Create(ctx context.Context, a *models.Assignment) error
	Save(ctx context.Context, a *models.Assignment) error
	ActiveForDevice(ctx context.Context, deviceID, excludeID uint) ([]models.Assignment, error)
	DueForOverdue(ctx context.Context, today time.Time) ([]models.Assignment, error)
	List(ctx context.Context, f repo.AssignmentFilter) ([]models.Assignment, int64, error)
}

type EmployeeDirectory interface {
	Get(ctx context.Context, id uint) (*models.Employee, error)
}

type LocationDirectory interface {
	Get(ctx context.Context, id uint) (*models.Location, error)
}

type SequenceIssuer interface {
	Next(ctx context.Context, year int) (int, error)
}

// Tx — набор репозиториев, привязанных к одной транзакции.
type Tx struct {
	Devices     DeviceRegistry
	Assignments Repository
	Employees   EmployeeDirectory
	Locations   LocationDirectory
	Sequence    SequenceIssuer
}

// Store выполняет fn атомарно: ошибка из fn откатывает все изменения.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// QRIssuer — выпуск QR после успешного commit; сбой не откатывает назначение.
type QRIssuer interface {
	Issue(ctx context.Context, a *models.Assignment) (*models.AssignmentQRCode, error)
}
