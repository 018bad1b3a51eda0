package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"inventory/internal/models"
)

var holdingStatuses = []models.AssignmentStatus{models.StatusAssigned, models.StatusOverdue}

type AssignmentStore struct{ db *gorm.DB }

func NewAssignmentStore(db *gorm.DB) *AssignmentStore { return &AssignmentStore{db: db} }

func (s *AssignmentStore) Get(ctx context.Context, id uint) (*models.Assignment, error) {
	var a models.Assignment
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *AssignmentStore) GetByAssignmentID(ctx context.Context, assignmentID string) (*models.Assignment, error) {
	var a models.Assignment
	err := s.db.WithContext(ctx).Where("assignment_id = ?", assignmentID).First(&a).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *AssignmentStore) Create(ctx context.Context, a *models.Assignment) error {
	return translateWrite(s.db.WithContext(ctx).Create(a).Error)
}

func (s *AssignmentStore) Save(ctx context.Context, a *models.Assignment) error {
	return translateWrite(s.db.WithContext(ctx).Save(a).Error)
}

// ActiveForDevice — назначения, удерживающие устройство, кроме excludeID.
// Вызывается под блокировкой строки устройства, поэтому видит зафиксированное состояние.
func (s *AssignmentStore) ActiveForDevice(ctx context.Context, deviceID, excludeID uint) ([]models.Assignment, error) {
	var rows []models.Assignment
	q := s.db.WithContext(ctx).
		Where("device_id = ? AND is_active = ? AND status IN ?", deviceID, true, holdingStatuses)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DueForOverdue — активные ASSIGNED с истёкшей ожидаемой датой возврата.
func (s *AssignmentStore) DueForOverdue(ctx context.Context, today time.Time) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := s.db.WithContext(ctx).
		Where("status = ? AND is_active = ? AND expected_return_date IS NOT NULL AND expected_return_date < ?",
			models.StatusAssigned, true, today).
		Order("id asc").
		Find(&rows).Error
	return rows, err
}

func (s *AssignmentStore) List(ctx context.Context, f AssignmentFilter) ([]models.Assignment, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Assignment{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.DeviceID != 0 {
		q = q.Where("device_id = ?", f.DeviceID)
	}
	if f.AssigneeID != 0 {
		q = q.Where("assignee_id = ?", f.AssigneeID)
	}
	if f.LocationID != 0 {
		q = q.Where("location_id = ?", f.LocationID)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if f.OverdueOnly {
		q = q.Where("is_overdue = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Assignment
	err := q.Order("assigned_date desc, id desc").
		Limit(f.PageSize()).
		Offset(f.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// MaxSequence — наибольший номер среди assignment_id вида ASN-<year>-NNNN.
// Нужен только для начального заполнения счётчика года; нечитаемые номера пропускаются.
func (s *AssignmentStore) MaxSequence(ctx context.Context, year int) (int, error) {
	prefix := fmt.Sprintf("ASN-%04d-", year)
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("assignment_id LIKE ?", prefix+"%").
		Pluck("assignment_id", &ids).Error
	if err != nil {
		return 0, err
	}
	return MaxSequenceOf(prefix, ids), nil
}

func MaxSequenceOf(prefix string, ids []string) int {
	maxSeq := 0
	for _, id := range ids {
		n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
		if err != nil || !strings.HasPrefix(id, prefix) {
			continue
		}
		if n > maxSeq {
			maxSeq = n
		}
	}
	return maxSeq
}
