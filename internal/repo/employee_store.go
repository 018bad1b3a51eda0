package repo

import (
	"context"

	"gorm.io/gorm"

	"inventory/internal/models"
)

type EmployeeStore struct{ db *gorm.DB }

func NewEmployeeStore(db *gorm.DB) *EmployeeStore { return &EmployeeStore{db: db} }

func (s *EmployeeStore) Get(ctx context.Context, id uint) (*models.Employee, error) {
	var e models.Employee
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *EmployeeStore) GetByPRPID(ctx context.Context, prpID string) (*models.Employee, error) {
	var e models.Employee
	if err := s.db.WithContext(ctx).Where("prp_id = ?", prpID).First(&e).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *EmployeeStore) Create(ctx context.Context, e *models.Employee) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		if _, ok := uniqueViolation(err); ok {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *EmployeeStore) Save(ctx context.Context, e *models.Employee) error {
	return s.db.WithContext(ctx).Save(e).Error
}

// ListSynced — все сотрудники, пришедшие из PRP (prp_id не пуст).
func (s *EmployeeStore) ListSynced(ctx context.Context) ([]models.Employee, error) {
	var rows []models.Employee
	err := s.db.WithContext(ctx).Where("prp_id IS NOT NULL").Order("id asc").Find(&rows).Error
	return rows, err
}

func (s *EmployeeStore) ListByIDs(ctx context.Context, ids []uint) ([]models.Employee, error) {
	var rows []models.Employee
	if len(ids) == 0 {
		return rows, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}
