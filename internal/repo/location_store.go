package repo

import (
	"context"

	"gorm.io/gorm"

	"inventory/internal/models"
)

type LocationStore struct{ db *gorm.DB }

func NewLocationStore(db *gorm.DB) *LocationStore { return &LocationStore{db: db} }

func (s *LocationStore) Get(ctx context.Context, id uint) (*models.Location, error) {
	var l models.Location
	if err := s.db.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (s *LocationStore) Create(ctx context.Context, l *models.Location) error {
	return s.db.WithContext(ctx).Create(l).Error
}

func (s *LocationStore) ListByIDs(ctx context.Context, ids []uint) ([]models.Location, error) {
	var rows []models.Location
	if len(ids) == 0 {
		return rows, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}
