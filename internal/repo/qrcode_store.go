package repo

import (
	"context"

	"gorm.io/gorm"

	"inventory/internal/models"
)

type QRCodeStore struct{ db *gorm.DB }

func NewQRCodeStore(db *gorm.DB) *QRCodeStore { return &QRCodeStore{db: db} }

// Activate деактивирует прежние активные коды назначения и сохраняет новый — в одной транзакции.
func (s *QRCodeStore) Activate(ctx context.Context, qr *models.AssignmentQRCode) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AssignmentQRCode{}).
			Where("assignment_id = ? AND is_active = ?", qr.AssignmentID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		qr.IsActive = true
		return tx.Create(qr).Error
	})
}

func (s *QRCodeStore) GetByCode(ctx context.Context, code string) (*models.AssignmentQRCode, error) {
	var qr models.AssignmentQRCode
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&qr).Error; err != nil {
		return nil, notFound(err)
	}
	return &qr, nil
}

func (s *QRCodeStore) Active(ctx context.Context, assignmentID uint) (*models.AssignmentQRCode, error) {
	var qr models.AssignmentQRCode
	err := s.db.WithContext(ctx).
		Where("assignment_id = ? AND is_active = ?", assignmentID, true).
		Order("id desc").
		First(&qr).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &qr, nil
}

func (s *QRCodeStore) ListForAssignment(ctx context.Context, assignmentID uint) ([]models.AssignmentQRCode, error) {
	var rows []models.AssignmentQRCode
	err := s.db.WithContext(ctx).Where("assignment_id = ?", assignmentID).Order("id desc").Find(&rows).Error
	return rows, err
}

func (s *QRCodeStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.AssignmentQRCode{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
