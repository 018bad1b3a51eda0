package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inventory/internal/models"
)

type DeviceStore struct{ db *gorm.DB }

func NewDeviceStore(db *gorm.DB) *DeviceStore { return &DeviceStore{db: db} }

func (s *DeviceStore) Create(ctx context.Context, d *models.Device) error {
	if d.Status == "" {
		d.Status = models.DeviceStatusAvailable
	}
	return s.db.WithContext(ctx).Create(d).Error
}

func (s *DeviceStore) Get(ctx context.Context, id uint) (*models.Device, error) {
	var d models.Device
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// LockForUpdate читает устройство с блокировкой строки (SELECT ... FOR UPDATE).
// Имеет смысл только внутри транзакции: блокировка держится до commit/rollback.
func (s *DeviceStore) LockForUpdate(ctx context.Context, id uint) (*models.Device, error) {
	var d models.Device
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (s *DeviceStore) GetStatus(ctx context.Context, id uint) (models.DeviceStatus, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return d.Status, nil
}

func (s *DeviceStore) SetStatus(ctx context.Context, id uint, status models.DeviceStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DeviceStore) List(ctx context.Context) ([]models.Device, error) {
	var rows []models.Device
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *DeviceStore) ListByIDs(ctx context.Context, ids []uint) ([]models.Device, error) {
	var rows []models.Device
	if len(ids) == 0 {
		return rows, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}
