package assignment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"inventory/internal/logs"
	"inventory/internal/metrics"
	"inventory/internal/models"
	"inventory/internal/repo"
)

// Service — жизненный цикл назначений: create/return/cancel/extend/transfer.
// Каждая операция — одна транзакция: запись назначения и статус устройства
// фиксируются вместе или не фиксируются вовсе. QR выпускается после commit.
type Service struct {
	store   Store
	qr      QRIssuer
	cfg     Config
	Now     func() time.Time
	Metrics *metrics.Metrics
}

func New(store Store, qr QRIssuer, cfg Config) *Service {
	return &Service{store: store, qr: qr, cfg: cfg.withDefaults(), Now: time.Now}
}

// Result — назначение после операции плюс best-effort побочные эффекты.
type Result struct {
	Assignment *models.Assignment       `json:"assignment"`
	QRCode     *models.AssignmentQRCode `json:"qr_code,omitempty"`
	Warnings   []string                 `json:"warnings,omitempty"`
}

type ReturnInput struct {
	ReturnDate *time.Time // пусто — сегодня
	Condition  models.Condition
	Notes      string
}

type ExtendInput struct {
	NewReturnDate time.Time
	Reason        string
}

type TransferInput struct {
	AssigneeID    *uint
	LocationID    *uint
	EffectiveDate time.Time // пусто — сегодня
	Reason        string
}

func (s *Service) today() time.Time { return dateOf(s.Now()) }

// -------- Create --------

func (s *Service) Create(ctx context.Context, in Input) (*Result, error) {
	var created *models.Assignment
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		today := s.today()
		dev, err := lockDevice(ctx, tx, in.DeviceID)
		if err != nil {
			return err
		}
		if err := s.validate(ctx, tx, &in, nil, dev, today); err != nil {
			return err
		}

		year := s.Now().Year()
		seq, err := tx.Sequence.Next(ctx, year)
		if err != nil {
			return fmt.Errorf("issue assignment id: %w", err)
		}

		a := &models.Assignment{
			AssignmentID: FormatID(year, seq),
			Status:       models.StatusAssigned,
			IsActive:     true,
		}
		applyInput(a, in)
		if err := s.persist(ctx, tx, a, dev, today, true); err != nil {
			return err
		}
		created = a
		return nil
	})
	s.observe("create", err)
	if err != nil {
		return nil, err
	}

	logs.Logger.WithFields(logrus.Fields{
		"assignment_id": created.AssignmentID,
		"device_id":     created.DeviceID,
		"assignee_id":   created.AssigneeID,
	}).Info("assignment created")

	res := &Result{Assignment: created}
	s.issueQR(ctx, res)
	return res, nil
}

// -------- Update (правка существующей записи) --------

func (s *Service) Update(ctx context.Context, id uint, in Input) (*Result, error) {
	var updated *models.Assignment
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		today := s.today()
		a, err := tx.Assignments.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("assignment %d: %w", id, err)
		}
		if in.DeviceID != a.DeviceID && !a.HoldsDevice() {
			return invalid("device", CodeImmutable, "device cannot be changed on a closed assignment")
		}

		// блокируем оба устройства в порядке id, чтобы не получить взаимную блокировку
		oldDev, newDev, err := lockPair(ctx, tx, a.DeviceID, in.DeviceID)
		if err != nil {
			return err
		}
		if a, err = tx.Assignments.Get(ctx, id); err != nil {
			return fmt.Errorf("assignment %d: %w", id, err)
		}
		if err := s.validate(ctx, tx, &in, a, newDev, today); err != nil {
			return err
		}

		applyInput(a, in)
		if err := s.persist(ctx, tx, a, newDev, today, false); err != nil {
			return err
		}
		if oldDev != nil && oldDev.ID != newDev.ID {
			if err := s.release(ctx, tx, oldDev, a.ID); err != nil {
				return err
			}
		}
		updated = a
		return nil
	})
	s.observe("update", err)
	if err != nil {
		return nil, err
	}
	return &Result{Assignment: updated}, nil
}

// -------- Return / Cancel --------

func (s *Service) Return(ctx context.Context, id uint, in ReturnInput) (*models.Assignment, error) {
	a, err := s.mutate(ctx, "return", id, func(a *models.Assignment, today time.Time) error {
		if !a.HoldsDevice() {
			return invalid("status", CodeInvalidTransition,
				fmt.Sprintf("cannot return an assignment in status %s", a.Status))
		}
		rd := today
		if in.ReturnDate != nil && !in.ReturnDate.IsZero() {
			rd = dateOf(*in.ReturnDate)
		}
		v := &ValidationError{}
		if rd.Before(a.AssignedDate) {
			v.Add("actual_return_date", CodeBeforeAssigned, "return date cannot be before the assigned date")
		}
		if rd.After(today) {
			v.Add("actual_return_date", CodeInFuture, "return date cannot be in the future")
		}
		if in.Condition != "" && !in.Condition.Valid() {
			v.Add("condition_at_return", CodeInvalidChoice, fmt.Sprintf("unknown condition %q", in.Condition))
		}
		if err := v.OrNil(); err != nil {
			return err
		}

		a.Status = models.StatusReturned
		a.IsActive = false
		a.ActualReturnDate = &rd
		a.ConditionAtReturn = in.Condition
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			a.ReturnNotes = notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logs.Logger.WithFields(logrus.Fields{
		"assignment_id": a.AssignmentID,
		"device_id":     a.DeviceID,
	}).Info("assignment returned")
	return a, nil
}

func (s *Service) Cancel(ctx context.Context, id uint, reason string) (*models.Assignment, error) {
	a, err := s.mutate(ctx, "cancel", id, func(a *models.Assignment, today time.Time) error {
		if !a.HoldsDevice() {
			return invalid("status", CodeInvalidTransition,
				fmt.Sprintf("cannot cancel an assignment in status %s", a.Status))
		}
		a.Status = models.StatusCancelled
		a.IsActive = false
		line := fmt.Sprintf("[%s] Cancelled", today.Format(dateLayout))
		if r := strings.TrimSpace(reason); r != "" {
			line += ": " + r
		}
		appendNote(a, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logs.Logger.WithFields(logrus.Fields{
		"assignment_id": a.AssignmentID,
		"device_id":     a.DeviceID,
	}).Info("assignment cancelled")
	return a, nil
}

// -------- Extend --------

// Extend заменяет ожидаемую дату возврата. Допустимо и для OVERDUE:
// продление на будущую дату возвращает статус ASSIGNED.
func (s *Service) Extend(ctx context.Context, id uint, in ExtendInput) (*models.Assignment, error) {
	return s.mutate(ctx, "extend", id, func(a *models.Assignment, today time.Time) error {
		if !a.HoldsDevice() {
			return invalid("status", CodeInvalidTransition,
				fmt.Sprintf("cannot extend an assignment in status %s", a.Status))
		}
		if a.Type == models.AssignmentPermanent {
			return invalid("assignment_type", CodeNotExtendable, "permanent assignments have no return date to extend")
		}
		if in.NewReturnDate.IsZero() {
			return invalid("expected_return_date", CodeRequired, "new return date is required")
		}
		nd := dateOf(in.NewReturnDate)
		v := &ValidationError{}
		s.checkExpected(nd, a.AssignedDate, v)
		if !v.Has("expected_return_date") && nd.Before(today) {
			v.Add("expected_return_date", CodeInPast, "new return date cannot be in the past")
		}
		if err := v.OrNil(); err != nil {
			return err
		}

		prev := "none"
		if a.ExpectedReturnDate != nil {
			prev = a.ExpectedReturnDate.Format(dateLayout)
		}
		a.ExpectedReturnDate = &nd
		line := fmt.Sprintf("[%s] Extended from %s to %s", today.Format(dateLayout), prev, nd.Format(dateLayout))
		if r := strings.TrimSpace(in.Reason); r != "" {
			line += ": " + r
		}
		appendNote(a, line)
		return nil
	})
}

// -------- Transfer --------

func (s *Service) Transfer(ctx context.Context, id uint, in TransferInput) (*Result, error) {
	var transferred *models.Assignment
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		today := s.today()
		a, dev, err := s.loadLocked(ctx, tx, id)
		if err != nil {
			return err
		}
		if !a.HoldsDevice() {
			return invalid("status", CodeInvalidTransition,
				fmt.Sprintf("cannot transfer an assignment in status %s", a.Status))
		}

		changeAssignee := in.AssigneeID != nil && *in.AssigneeID != a.AssigneeID
		changeLocation := in.LocationID != nil && !sameUint(a.LocationID, in.LocationID)
		if !changeAssignee && !changeLocation {
			return invalid("transfer", CodeNoChange, "transfer must change the assignee or the location")
		}

		v := &ValidationError{}
		effective := today
		if !in.EffectiveDate.IsZero() {
			effective = dateOf(in.EffectiveDate)
		}
		if effective.Before(a.AssignedDate) {
			v.Add("effective_date", CodeBeforeAssigned, "effective date cannot be before the assigned date")
		}
		if effective.After(today.AddDate(0, 0, s.cfg.TransferAheadDays)) {
			v.Add("effective_date", CodeDateOutOfRange,
				fmt.Sprintf("effective date cannot be more than %d days in the future", s.cfg.TransferAheadDays))
		}
		if changeAssignee {
			if err := s.checkAssignee(ctx, tx, *in.AssigneeID, "assignee", v); err != nil {
				return err
			}
		}
		if changeLocation {
			if err := s.checkLocation(ctx, tx, *in.LocationID, "location", v); err != nil {
				return err
			}
		}
		if err := v.OrNil(); err != nil {
			return err
		}

		changes := make([]string, 0, 2)
		if changeAssignee {
			changes = append(changes, fmt.Sprintf("assignee %d -> %d", a.AssigneeID, *in.AssigneeID))
			a.AssigneeID = *in.AssigneeID
		}
		if changeLocation {
			changes = append(changes, fmt.Sprintf("location %s -> %d", uintOrNone(a.LocationID), *in.LocationID))
			loc := *in.LocationID
			a.LocationID = &loc
		}
		line := fmt.Sprintf("[%s] Transferred (effective %s): %s",
			today.Format(dateLayout), effective.Format(dateLayout), strings.Join(changes, "; "))
		if r := strings.TrimSpace(in.Reason); r != "" {
			line += ": " + r
		}
		appendNote(a, line)

		if err := s.persist(ctx, tx, a, dev, today, false); err != nil {
			return err
		}
		transferred = a
		return nil
	})
	s.observe("transfer", err)
	if err != nil {
		return nil, err
	}

	logs.Logger.WithFields(logrus.Fields{
		"assignment_id": transferred.AssignmentID,
		"assignee_id":   transferred.AssigneeID,
	}).Info("assignment transferred")

	res := &Result{Assignment: transferred}
	s.issueQR(ctx, res)
	return res, nil
}

// -------- Overdue sweep --------

// MarkOverdue переводит просроченные ASSIGNED в OVERDUE. Кандидаты читаются
// без блокировок, поэтому каждый перечитывается под блокировкой устройства в
// своей транзакции; закрытые за это время пропускаются. Сбой одного кандидата
// не откатывает остальных.
func (s *Service) MarkOverdue(ctx context.Context) (int, error) {
	today := s.today()
	var due []models.Assignment
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		due, err = tx.Assignments.DueForOverdue(ctx, today)
		return err
	})
	if err != nil {
		s.observe("mark_overdue", err)
		return 0, fmt.Errorf("load overdue candidates: %w", err)
	}

	marked := 0
	var errs []error
	for _, c := range due {
		flipped, err := s.markOverdue(ctx, c.ID, today)
		if err != nil {
			logs.Logger.WithError(err).WithField("assignment_id", c.AssignmentID).Warn("overdue sweep: candidate failed")
			errs = append(errs, fmt.Errorf("mark %s overdue: %w", c.AssignmentID, err))
			continue
		}
		if flipped {
			marked++
		}
	}
	err = errors.Join(errs...)
	s.observe("mark_overdue", err)
	s.Metrics.OverdueMarked(marked)
	return marked, err
}

func (s *Service) markOverdue(ctx context.Context, id uint, today time.Time) (bool, error) {
	flipped := false
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		a, dev, err := s.loadLocked(ctx, tx, id)
		if err != nil {
			return err
		}
		if a.Status != models.StatusAssigned || !a.IsActive ||
			a.ExpectedReturnDate == nil || !a.ExpectedReturnDate.Before(today) {
			return nil
		}
		if err := s.persist(ctx, tx, a, dev, today, false); err != nil {
			return err
		}
		flipped = a.Status == models.StatusOverdue
		return nil
	})
	return flipped, err
}

// -------- Read --------

func (s *Service) Get(ctx context.Context, id uint) (*models.Assignment, error) {
	var a *models.Assignment
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		a, err = tx.Assignments.Get(ctx, id)
		return err
	})
	return a, err
}

func (s *Service) GetByAssignmentID(ctx context.Context, assignmentID string) (*models.Assignment, error) {
	var a *models.Assignment
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		a, err = tx.Assignments.GetByAssignmentID(ctx, assignmentID)
		return err
	})
	return a, err
}

func (s *Service) List(ctx context.Context, f repo.AssignmentFilter) ([]models.Assignment, int64, error) {
	var (
		rows  []models.Assignment
		total int64
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		rows, total, err = tx.Assignments.List(ctx, f)
		return err
	})
	return rows, total, err
}

// -------- internals --------

// mutate — общий каркас return/cancel/extend: загрузка под блокировкой
// устройства, изменение, пересчёт просрочки, сохранение, синхронизация устройства.
func (s *Service) mutate(ctx context.Context, op string, id uint, apply func(a *models.Assignment, today time.Time) error) (*models.Assignment, error) {
	var out *models.Assignment
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		today := s.today()
		a, dev, err := s.loadLocked(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := apply(a, today); err != nil {
			return err
		}
		if err := s.persist(ctx, tx, a, dev, today, false); err != nil {
			return err
		}
		out = a
		return nil
	})
	s.observe(op, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// loadLocked блокирует устройство назначения и перечитывает назначение уже под блокировкой.
func (s *Service) loadLocked(ctx context.Context, tx Tx, id uint) (*models.Assignment, *models.Device, error) {
	a, err := tx.Assignments.Get(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("assignment %d: %w", id, err)
	}
	dev, err := tx.Devices.LockForUpdate(ctx, a.DeviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock device %d: %w", a.DeviceID, err)
	}
	if a, err = tx.Assignments.Get(ctx, id); err != nil {
		return nil, nil, fmt.Errorf("assignment %d: %w", id, err)
	}
	return a, dev, nil
}

func lockPair(ctx context.Context, tx Tx, oldID, newID uint) (oldDev, newDev *models.Device, err error) {
	if oldID == newID {
		d, err := lockDevice(ctx, tx, oldID)
		return d, d, err
	}
	first, second := oldID, newID
	if second < first {
		first, second = second, first
	}
	locked := map[uint]*models.Device{}
	for _, id := range []uint{first, second} {
		d, err := lockDevice(ctx, tx, id)
		if err != nil {
			return nil, nil, err
		}
		locked[id] = d
	}
	return locked[oldID], locked[newID], nil
}

// persist — пересчёт просрочки, инварианты, запись и синхронизация статуса устройства.
// dev уже заблокирован вызывающим.
func (s *Service) persist(ctx context.Context, tx Tx, a *models.Assignment, dev *models.Device, today time.Time, create bool) error {
	if a.Type == models.AssignmentPermanent {
		a.ExpectedReturnDate = nil
	}
	EvaluateOverdue(a, today)
	if err := checkInvariants(a, today); err != nil {
		return err
	}

	var err error
	if create {
		err = tx.Assignments.Create(ctx, a)
	} else {
		err = tx.Assignments.Save(ctx, a)
	}
	if errors.Is(err, repo.ErrActiveAssignmentExists) {
		return deviceTaken()
	}
	if err != nil {
		return fmt.Errorf("save assignment: %w", err)
	}

	if a.HoldsDevice() {
		return setDeviceStatus(ctx, tx, dev, models.DeviceStatusAssigned)
	}
	return s.release(ctx, tx, dev, a.ID)
}

// release освобождает устройство, если его не удерживает никакое другое назначение.
// Меняется только ASSIGNED: MAINTENANCE/RETIRED/LOST выставляются вручную и остаются.
func (s *Service) release(ctx context.Context, tx Tx, dev *models.Device, excludeID uint) error {
	if dev.Status != models.DeviceStatusAssigned {
		return nil
	}
	others, err := tx.Assignments.ActiveForDevice(ctx, dev.ID, excludeID)
	if err != nil {
		return fmt.Errorf("check active assignments: %w", err)
	}
	if len(others) > 0 {
		logs.Logger.WithFields(logrus.Fields{
			"device_id":     dev.ID,
			"assignment_id": others[0].AssignmentID,
		}).Debug("device still held by another assignment, status kept")
		return nil
	}
	return setDeviceStatus(ctx, tx, dev, models.DeviceStatusAvailable)
}

func setDeviceStatus(ctx context.Context, tx Tx, dev *models.Device, status models.DeviceStatus) error {
	if dev.Status == status {
		return nil
	}
	if err := tx.Devices.SetStatus(ctx, dev.ID, status); err != nil {
		return fmt.Errorf("set device %d status: %w", dev.ID, err)
	}
	dev.Status = status
	return nil
}

func (s *Service) issueQR(ctx context.Context, res *Result) {
	if s.qr == nil {
		return
	}
	code, err := s.qr.Issue(ctx, res.Assignment)
	if err != nil {
		s.Metrics.QRFailure()
		logs.Logger.WithError(err).
			WithField("assignment_id", res.Assignment.AssignmentID).
			Warn("qr code issuance failed")
		res.Warnings = append(res.Warnings, "QR code could not be generated: "+err.Error())
		return
	}
	res.QRCode = code
}

func (s *Service) observe(op string, err error) {
	switch _, isValidation := AsValidation(err); {
	case err == nil:
		s.Metrics.Operation(op, "ok")
	case isValidation:
		s.Metrics.Operation(op, "invalid")
	default:
		s.Metrics.Operation(op, "error")
	}
}

func applyInput(a *models.Assignment, in Input) {
	a.DeviceID = in.DeviceID
	a.AssigneeID = in.AssigneeID
	a.AssignedByID = in.AssignedByID
	a.LocationID = in.LocationID
	a.Type = in.Type
	a.AssignedDate = in.AssignedDate
	a.ExpectedReturnDate = in.ExpectedReturnDate
	a.Purpose = in.Purpose
	a.Notes = mergeNotes(a.Notes, in.Notes)
	a.ConditionAtAssignment = in.ConditionAtAssignment
	a.EmergencyContactName = in.EmergencyContactName
	a.EmergencyContactPhone = in.EmergencyContactPhone
}

// auditLine — строки, которые пишут cancel/extend/transfer.
var auditLine = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}\] (Cancelled|Extended|Transferred)\b`)

// mergeNotes заменяет заметки правкой, но сохраняет журнальные строки,
// которых в правке нет.
func mergeNotes(current, edited string) string {
	kept := make(map[string]bool)
	for _, l := range strings.Split(edited, "\n") {
		kept[strings.TrimSpace(l)] = true
	}
	out := strings.TrimSpace(edited)
	for _, l := range strings.Split(current, "\n") {
		l = strings.TrimSpace(l)
		if !auditLine.MatchString(l) || kept[l] {
			continue
		}
		if out == "" {
			out = l
		} else {
			out += "\n" + l
		}
		kept[l] = true
	}
	return out
}

func appendNote(a *models.Assignment, line string) {
	if strings.TrimSpace(a.Notes) == "" {
		a.Notes = line
		return
	}
	a.Notes += "\n" + line
}

func uintOrNone(v *uint) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *v)
}
