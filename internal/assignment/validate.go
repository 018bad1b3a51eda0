package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"inventory/internal/models"
	"inventory/internal/repo"
)

// Input — поля создания/правки назначения.
type Input struct {
	DeviceID              uint
	AssigneeID            uint
	AssignedByID          *uint
	LocationID            *uint
	Type                  models.AssignmentType
	AssignedDate          time.Time
	ExpectedReturnDate    *time.Time
	Purpose               string
	Notes                 string
	ConditionAtAssignment models.Condition
	EmergencyContactName  string
	EmergencyContactPhone string
}

// Config — окна допустимых дат и прочие ограничения.
type Config struct {
	PastWindowDays    int
	FutureWindowDays  int
	MaxSpanYears      int
	TransferAheadDays int
	PurposeMinLength  int
}

func DefaultConfig() Config {
	return Config{
		PastWindowDays:    30,
		FutureWindowDays:  90,
		MaxSpanYears:      2,
		TransferAheadDays: 30,
		PurposeMinLength:  5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PastWindowDays <= 0 {
		c.PastWindowDays = d.PastWindowDays
	}
	if c.FutureWindowDays <= 0 {
		c.FutureWindowDays = d.FutureWindowDays
	}
	if c.MaxSpanYears <= 0 {
		c.MaxSpanYears = d.MaxSpanYears
	}
	if c.TransferAheadDays <= 0 {
		c.TransferAheadDays = d.TransferAheadDays
	}
	if c.PurposeMinLength <= 0 {
		c.PurposeMinLength = d.PurposeMinLength
	}
	return c
}

// lockDevice блокирует строку устройства; (nil, nil) — устройства нет.
func lockDevice(ctx context.Context, tx Tx, id uint) (*models.Device, error) {
	if id == 0 {
		return nil, nil
	}
	dev, err := tx.Devices.LockForUpdate(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock device %d: %w", id, err)
	}
	return dev, nil
}

// validate нормализует in и проверяет его. existing != nil — правка существующей
// записи: нижняя граница assigned_date не проверяется, своё же устройство
// считается доступным. dev должен быть уже заблокирован вызывающим.
func (s *Service) validate(ctx context.Context, tx Tx, in *Input, existing *models.Assignment, dev *models.Device, today time.Time) error {
	v := &ValidationError{}
	editing := existing != nil

	if !in.Type.Valid() {
		v.Add("assignment_type", CodeInvalidChoice, fmt.Sprintf("unknown assignment type %q", in.Type))
	}
	if in.ConditionAtAssignment == "" {
		in.ConditionAtAssignment = models.ConditionGood
	} else if !in.ConditionAtAssignment.Valid() {
		v.Add("condition_at_assignment", CodeInvalidChoice, fmt.Sprintf("unknown condition %q", in.ConditionAtAssignment))
	}

	in.Purpose = strings.TrimSpace(in.Purpose)
	if utf8.RuneCountInString(in.Purpose) < s.cfg.PurposeMinLength {
		v.Add("purpose", CodeTooShort, fmt.Sprintf("purpose must be at least %d characters", s.cfg.PurposeMinLength))
	}
	in.Notes = strings.TrimSpace(in.Notes)
	in.EmergencyContactName = strings.TrimSpace(in.EmergencyContactName)
	in.EmergencyContactPhone = strings.TrimSpace(in.EmergencyContactPhone)

	s.validateDates(in, editing, today, v)

	// устройство
	switch {
	case in.DeviceID == 0:
		v.Add("device", CodeRequired, "device is required")
	case dev == nil:
		v.Add("device", CodeNotFound, fmt.Sprintf("device %d not found", in.DeviceID))
	case editing && !existing.HoldsDevice() && existing.DeviceID == dev.ID:
		// закрытая запись устройство не держит: его текущий держатель не конфликт
	default:
		var excludeID uint
		if editing {
			excludeID = existing.ID
		}
		others, err := tx.Assignments.ActiveForDevice(ctx, dev.ID, excludeID)
		if err != nil {
			return fmt.Errorf("check active assignments: %w", err)
		}
		sameDevice := editing && existing.DeviceID == dev.ID
		if len(others) > 0 {
			v.Add("device", CodeDeviceAssigned, fmt.Sprintf("device is already assigned (%s)", others[0].AssignmentID))
		} else if !sameDevice && dev.Status != models.DeviceStatusAvailable {
			v.Add("device", CodeDeviceUnavailable, fmt.Sprintf("device is %s, not AVAILABLE", dev.Status))
		}
	}

	// сотрудник; при правке без смены — не перепроверяем
	if in.AssigneeID == 0 {
		v.Add("assignee", CodeRequired, "assignee is required")
	} else if !editing || existing.AssigneeID != in.AssigneeID {
		if err := s.checkAssignee(ctx, tx, in.AssigneeID, "assignee", v); err != nil {
			return err
		}
	}

	if in.AssignedByID != nil && (!editing || !sameUint(existing.AssignedByID, in.AssignedByID)) {
		if _, err := tx.Employees.Get(ctx, *in.AssignedByID); errors.Is(err, repo.ErrNotFound) {
			v.Add("assigned_by", CodeNotFound, fmt.Sprintf("user %d not found", *in.AssignedByID))
		} else if err != nil {
			return fmt.Errorf("load assigner: %w", err)
		}
	}

	if in.LocationID != nil && (!editing || !sameUint(existing.LocationID, in.LocationID)) {
		if err := s.checkLocation(ctx, tx, *in.LocationID, "location", v); err != nil {
			return err
		}
	}

	return v.OrNil()
}

func (s *Service) validateDates(in *Input, editing bool, today time.Time, v *ValidationError) {
	if in.AssignedDate.IsZero() {
		v.Add("assigned_date", CodeRequired, "assigned date is required")
	} else {
		in.AssignedDate = dateOf(in.AssignedDate)
		earliest := today.AddDate(0, 0, -s.cfg.PastWindowDays)
		latest := today.AddDate(0, 0, s.cfg.FutureWindowDays)
		if !editing && in.AssignedDate.Before(earliest) {
			v.Add("assigned_date", CodeDateOutOfRange,
				fmt.Sprintf("assigned date cannot be more than %d days in the past", s.cfg.PastWindowDays))
		}
		if in.AssignedDate.After(latest) {
			v.Add("assigned_date", CodeDateOutOfRange,
				fmt.Sprintf("assigned date cannot be more than %d days in the future", s.cfg.FutureWindowDays))
		}
	}

	switch in.Type {
	case models.AssignmentPermanent:
		in.ExpectedReturnDate = nil
		return
	case models.AssignmentTemporary:
		if in.ExpectedReturnDate == nil {
			v.Add("expected_return_date", CodeRequired, "expected return date is required for temporary assignments")
			return
		}
	}
	if in.ExpectedReturnDate == nil || in.AssignedDate.IsZero() {
		return
	}
	in.ExpectedReturnDate = datePtr(*in.ExpectedReturnDate)
	s.checkExpected(*in.ExpectedReturnDate, in.AssignedDate, v)
}

func (s *Service) checkExpected(expected, assigned time.Time, v *ValidationError) {
	if !expected.After(assigned) {
		v.Add("expected_return_date", CodeBeforeAssigned, "expected return date must be after the assigned date")
		return
	}
	if expected.After(assigned.AddDate(s.cfg.MaxSpanYears, 0, 0)) {
		v.Add("expected_return_date", CodeSpanTooLong,
			fmt.Sprintf("assignment cannot span more than %d years", s.cfg.MaxSpanYears))
	}
}

func (s *Service) checkAssignee(ctx context.Context, tx Tx, id uint, field string, v *ValidationError) error {
	emp, err := tx.Employees.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		v.Add(field, CodeNotFound, fmt.Sprintf("employee %d not found", id))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load employee %d: %w", id, err)
	}
	if !emp.CanReceiveAssignments() {
		v.Add(field, CodeAssigneeIneligible, "assignee must be an active employee")
	}
	return nil
}

func (s *Service) checkLocation(ctx context.Context, tx Tx, id uint, field string, v *ValidationError) error {
	loc, err := tx.Locations.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		v.Add(field, CodeNotFound, fmt.Sprintf("location %d not found", id))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load location %d: %w", id, err)
	}
	if !loc.IsActive {
		v.Add(field, CodeLocationInactive, "location is not active")
	}
	return nil
}

// checkInvariants — инварианты записи, проверяются перед каждым сохранением.
func checkInvariants(a *models.Assignment, today time.Time) error {
	v := &ValidationError{}
	if a.ExpectedReturnDate != nil && !a.ExpectedReturnDate.After(a.AssignedDate) {
		v.Add("expected_return_date", CodeBeforeAssigned, "expected return date must be after the assigned date")
	}
	if a.ActualReturnDate != nil {
		if a.ActualReturnDate.Before(a.AssignedDate) {
			v.Add("actual_return_date", CodeBeforeAssigned, "return date cannot be before the assigned date")
		}
		if a.ActualReturnDate.After(dateOf(today)) {
			v.Add("actual_return_date", CodeInFuture, "return date cannot be in the future")
		}
	}
	if a.Status == models.StatusReturned && a.ActualReturnDate == nil {
		v.Add("actual_return_date", CodeRequired, "returned assignments must have a return date")
	}
	if a.ConditionAtReturn != "" && a.ActualReturnDate == nil {
		v.Add("condition_at_return", CodeRequiresReturn, "return condition requires a return date")
	}
	return v.OrNil()
}

func sameUint(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
