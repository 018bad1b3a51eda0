package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inventory/internal/models"
)

// SequenceStore выдаёт номера назначений из строки-счётчика года.
// Строка блокируется FOR UPDATE до конца транзакции вызывающего,
// поэтому параллельные создания в одном году сериализуются.
type SequenceStore struct {
	db          *gorm.DB
	assignments *AssignmentStore
}

func NewSequenceStore(db *gorm.DB) *SequenceStore {
	return &SequenceStore{db: db, assignments: NewAssignmentStore(db)}
}

func (s *SequenceStore) Next(ctx context.Context, year int) (int, error) {
	row, err := s.lock(ctx, year)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// первая выдача в году: продолжаем серию уже существующих номеров
		if err := s.seed(ctx, year); err != nil {
			return 0, err
		}
		row, err = s.lock(ctx, year)
	}
	if err != nil {
		return 0, err
	}

	row.LastValue++
	err = s.db.WithContext(ctx).Model(&models.AssignmentSequence{}).
		Where("year = ?", year).
		Update("last_value", row.LastValue).Error
	if err != nil {
		return 0, err
	}
	return row.LastValue, nil
}

// Current — последний выданный номер года (0, если номеров не было).
func (s *SequenceStore) Current(ctx context.Context, year int) (int, error) {
	var row models.AssignmentSequence
	err := s.db.WithContext(ctx).Where("year = ?", year).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.assignments.MaxSequence(ctx, year)
	}
	return row.LastValue, err
}

func (s *SequenceStore) seed(ctx context.Context, year int) error {
	start, err := s.assignments.MaxSequence(ctx, year)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.AssignmentSequence{Year: year, LastValue: start}).Error
}

func (s *SequenceStore) lock(ctx context.Context, year int) (*models.AssignmentSequence, error) {
	var row models.AssignmentSequence
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("year = ?", year).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
