package assignment_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory/internal/assignment"
	"inventory/internal/memstore"
	"inventory/internal/models"
	"inventory/internal/repo"
)

var asnPattern = regexp.MustCompile(`^ASN-2026-\d{4}$`)

type fakeQR struct {
	mu     sync.Mutex
	err    error
	issued []string
}

func (f *fakeQR) Issue(_ context.Context, a *models.Assignment) (*models.AssignmentQRCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.issued = append(f.issued, a.AssignmentID)
	return &models.AssignmentQRCode{AssignmentID: a.ID, Code: "code-" + a.AssignmentID, IsActive: true}, nil
}

type fixture struct {
	store    *memstore.Store
	svc      *assignment.Service
	qr       *fakeQR
	now      time.Time
	device   uint
	employee uint
	other    uint
	location uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memstore.New(),
		qr:    &fakeQR{},
		now:   time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}
	dev := &models.Device{AssetTag: "PRL-0001", Name: "ThinkPad T14"}
	f.store.AddDevice(dev)
	f.device = dev.ID

	emp := &models.Employee{FullName: "A. Mensah", IsActive: true, IsActiveEmployee: true}
	f.store.AddEmployee(emp)
	f.employee = emp.ID

	other := &models.Employee{FullName: "K. Osei", IsActive: true, IsActiveEmployee: true}
	f.store.AddEmployee(other)
	f.other = other.ID

	loc := &models.Location{Code: "MAIN-201", Name: "Committee room", IsActive: true}
	f.store.AddLocation(loc)
	f.location = loc.ID

	f.svc = assignment.New(f.store, f.qr, assignment.DefaultConfig())
	f.svc.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) today() time.Time {
	return time.Date(f.now.Year(), f.now.Month(), f.now.Day(), 0, 0, 0, 0, time.UTC)
}

func (f *fixture) days(n int) time.Time { return f.today().AddDate(0, 0, n) }

func (f *fixture) daysPtr(n int) *time.Time {
	d := f.days(n)
	return &d
}

func (f *fixture) temporary() assignment.Input {
	return assignment.Input{
		DeviceID:           f.device,
		AssigneeID:         f.employee,
		Type:               models.AssignmentTemporary,
		AssignedDate:       f.today(),
		ExpectedReturnDate: f.daysPtr(10),
		Purpose:            "Laptop for fieldwork",
	}
}

func (f *fixture) deviceStatus(t *testing.T) models.DeviceStatus {
	t.Helper()
	d, ok := f.store.Device(f.device)
	require.True(t, ok)
	return d.Status
}

func (f *fixture) create(t *testing.T, in assignment.Input) *models.Assignment {
	t.Helper()
	res, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	return res.Assignment
}

func activeHolders(store *memstore.Store, deviceID uint) int {
	n := 0
	for _, a := range store.Assignments() {
		if a.DeviceID == deviceID && a.HoldsDevice() {
			n++
		}
	}
	return n
}

func TestCreate(t *testing.T) {
	t.Run("temporary assignment takes the device", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.Create(context.Background(), f.temporary())
		require.NoError(t, err)

		a := res.Assignment
		require.Regexp(t, asnPattern, a.AssignmentID)
		require.Equal(t, models.StatusAssigned, a.Status)
		require.True(t, a.IsActive)
		require.False(t, a.IsOverdue)
		require.Equal(t, models.ConditionGood, a.ConditionAtAssignment)
		require.Equal(t, models.DeviceStatusAssigned, f.deviceStatus(t))

		require.NotNil(t, res.QRCode)
		require.Empty(t, res.Warnings)
		require.Equal(t, []string{a.AssignmentID}, f.qr.issued)
	})

	t.Run("second assignment for the same device is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.create(t, f.temporary())

		_, err := f.svc.Create(context.Background(), f.temporary())
		require.Error(t, err)
		require.True(t, assignment.HasCode(err, "device", assignment.CodeDeviceAssigned), err.Error())
		require.Equal(t, 1, activeHolders(f.store, f.device))
	})

	t.Run("past expected return date is flagged overdue on save", func(t *testing.T) {
		f := newFixture(t)
		in := f.temporary()
		in.AssignedDate = f.days(-5)
		in.ExpectedReturnDate = f.daysPtr(-1)

		a := f.create(t, in)
		require.True(t, a.IsOverdue)
		require.Equal(t, models.StatusOverdue, a.Status)
		require.Equal(t, models.DeviceStatusAssigned, f.deviceStatus(t))
	})

	t.Run("permanent assignment drops the expected return date", func(t *testing.T) {
		f := newFixture(t)
		in := f.temporary()
		in.Type = models.AssignmentPermanent
		in.ExpectedReturnDate = f.daysPtr(400)

		a := f.create(t, in)
		require.Nil(t, a.ExpectedReturnDate)
		stored := f.store.Assignments()
		require.Len(t, stored, 1)
		require.Nil(t, stored[0].ExpectedReturnDate)
	})

	t.Run("unavailable device", func(t *testing.T) {
		f := newFixture(t)
		d := &models.Device{AssetTag: "PRL-0099", Status: models.DeviceStatusMaintenance}
		f.store.AddDevice(d)
		in := f.temporary()
		in.DeviceID = d.ID

		_, err := f.svc.Create(context.Background(), in)
		require.True(t, assignment.HasCode(err, "device", assignment.CodeDeviceUnavailable))
	})

	t.Run("unknown device", func(t *testing.T) {
		f := newFixture(t)
		in := f.temporary()
		in.DeviceID = 9999

		_, err := f.svc.Create(context.Background(), in)
		require.True(t, assignment.HasCode(err, "device", assignment.CodeNotFound))
	})

	t.Run("ineligible assignee", func(t *testing.T) {
		f := newFixture(t)
		left := &models.Employee{FullName: "Former staff", IsActive: true, IsActiveEmployee: false}
		f.store.AddEmployee(left)
		in := f.temporary()
		in.AssigneeID = left.ID

		_, err := f.svc.Create(context.Background(), in)
		require.True(t, assignment.HasCode(err, "assignee", assignment.CodeAssigneeIneligible))
		require.Equal(t, models.DeviceStatusAvailable, f.deviceStatus(t))
		require.Empty(t, f.store.Assignments())
	})

	t.Run("inactive location", func(t *testing.T) {
		f := newFixture(t)
		loc := &models.Location{Code: "OLD-1", IsActive: false}
		f.store.AddLocation(loc)
		in := f.temporary()
		in.LocationID = &loc.ID

		_, err := f.svc.Create(context.Background(), in)
		require.True(t, assignment.HasCode(err, "location", assignment.CodeLocationInactive))
	})

	t.Run("temporary requires a return date", func(t *testing.T) {
		f := newFixture(t)
		in := f.temporary()
		in.ExpectedReturnDate = nil

		_, err := f.svc.Create(context.Background(), in)
		require.True(t, assignment.HasCode(err, "expected_return_date", assignment.CodeRequired))
	})

	t.Run("short purpose is rejected after trimming", func(t *testing.T) {
		f := newFixture(t)
		in := f.temporary()
		in.Purpose = "  abcd   "

		_, err := f.svc.Create(context.Background(), in)
		require.True(t, assignment.HasCode(err, "purpose", assignment.CodeTooShort))
	})

	t.Run("span longer than two years", func(t *testing.T) {
		f := newFixture(t)
		in := f.temporary()
		end := f.today().AddDate(2, 0, 1)
		in.ExpectedReturnDate = &end

		_, err := f.svc.Create(context.Background(), in)
		require.True(t, assignment.HasCode(err, "expected_return_date", assignment.CodeSpanTooLong))
	})

	t.Run("errors are reported per field", func(t *testing.T) {
		f := newFixture(t)
		in := f.temporary()
		in.Purpose = ""
		in.AssigneeID = 0
		in.Type = "LOAN"

		_, err := f.svc.Create(context.Background(), in)
		v, ok := assignment.AsValidation(err)
		require.True(t, ok)
		assert.Contains(t, v.Fields, "purpose")
		assert.Contains(t, v.Fields, "assignee")
		assert.Contains(t, v.Fields, "assignment_type")
	})
}

func TestCreateDateBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		assigned int
		expected *int
		field    string
		code     string
	}{
		{name: "30 days in the past accepted", assigned: -30},
		{name: "31 days in the past rejected", assigned: -31, field: "assigned_date", code: assignment.CodeDateOutOfRange},
		{name: "90 days ahead accepted", assigned: 90},
		{name: "91 days ahead rejected", assigned: 91, field: "assigned_date", code: assignment.CodeDateOutOfRange},
		{name: "return date equal to assigned date rejected", assigned: 0, expected: intPtr(0),
			field: "expected_return_date", code: assignment.CodeBeforeAssigned},
		{name: "return date before assigned date rejected", assigned: 0, expected: intPtr(-1),
			field: "expected_return_date", code: assignment.CodeBeforeAssigned},
		{name: "return date one day after accepted", assigned: 0, expected: intPtr(1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			in := f.temporary()
			in.AssignedDate = f.days(tc.assigned)
			if tc.expected != nil {
				in.ExpectedReturnDate = f.daysPtr(tc.assigned + *tc.expected)
			} else {
				in.ExpectedReturnDate = f.daysPtr(tc.assigned + 10)
			}

			_, err := f.svc.Create(context.Background(), in)
			if tc.field == "" {
				require.NoError(t, err)
				return
			}
			require.True(t, assignment.HasCode(err, tc.field, tc.code), "%v", err)
		})
	}
}

func intPtr(v int) *int { return &v }

func TestReturn(t *testing.T) {
	t.Run("return releases the device", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())

		f.now = f.now.AddDate(0, 0, 10)
		rd := f.today()
		got, err := f.svc.Return(context.Background(), a.ID, assignment.ReturnInput{
			ReturnDate: &rd,
			Condition:  models.ConditionFair,
			Notes:      "scratched lid",
		})
		require.NoError(t, err)
		require.Equal(t, models.StatusReturned, got.Status)
		require.False(t, got.IsActive)
		require.Equal(t, rd, *got.ActualReturnDate)
		require.Equal(t, models.ConditionFair, got.ConditionAtReturn)
		require.Equal(t, "scratched lid", got.ReturnNotes)
		require.Equal(t, models.DeviceStatusAvailable, f.deviceStatus(t))
	})

	t.Run("return date defaults to today", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())

		got, err := f.svc.Return(context.Background(), a.ID, assignment.ReturnInput{})
		require.NoError(t, err)
		require.Equal(t, f.today(), *got.ActualReturnDate)
	})

	t.Run("overdue assignment can be returned", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())
		f.now = f.now.AddDate(0, 0, 20)

		got, err := f.svc.Return(context.Background(), a.ID, assignment.ReturnInput{})
		require.NoError(t, err)
		require.Equal(t, models.StatusReturned, got.Status)
		require.False(t, got.IsOverdue)
	})

	t.Run("future return date rejected", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())

		_, err := f.svc.Return(context.Background(), a.ID, assignment.ReturnInput{ReturnDate: f.daysPtr(1)})
		require.True(t, assignment.HasCode(err, "actual_return_date", assignment.CodeInFuture))
		require.Equal(t, models.DeviceStatusAssigned, f.deviceStatus(t))
	})

	t.Run("return date before assignment rejected", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())

		_, err := f.svc.Return(context.Background(), a.ID, assignment.ReturnInput{ReturnDate: f.daysPtr(-1)})
		require.True(t, assignment.HasCode(err, "actual_return_date", assignment.CodeBeforeAssigned))
	})

	t.Run("returned assignment cannot be returned again", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())
		_, err := f.svc.Return(context.Background(), a.ID, assignment.ReturnInput{})
		require.NoError(t, err)

		_, err = f.svc.Return(context.Background(), a.ID, assignment.ReturnInput{})
		require.True(t, assignment.HasCode(err, "status", assignment.CodeInvalidTransition))
	})

	t.Run("unknown assignment", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Return(context.Background(), 4242, assignment.ReturnInput{})
		require.ErrorIs(t, err, repo.ErrNotFound)
	})

	t.Run("device in maintenance keeps its status", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())
		require.NoError(t, f.store.InTx(context.Background(), func(ctx context.Context, tx assignment.Tx) error {
			return tx.Devices.SetStatus(ctx, f.device, models.DeviceStatusMaintenance)
		}))

		_, err := f.svc.Return(context.Background(), a.ID, assignment.ReturnInput{})
		require.NoError(t, err)
		require.Equal(t, models.DeviceStatusMaintenance, f.deviceStatus(t))
	})
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, f.temporary())

	got, err := f.svc.Cancel(context.Background(), a.ID, "  raised in error ")
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, got.Status)
	require.False(t, got.IsActive)
	require.Contains(t, got.Notes, "[2026-03-15] Cancelled: raised in error")
	require.Equal(t, models.DeviceStatusAvailable, f.deviceStatus(t))

	_, err = f.svc.Cancel(context.Background(), a.ID, "again")
	require.True(t, assignment.HasCode(err, "status", assignment.CodeInvalidTransition))

	// устройство снова свободно
	next := f.create(t, f.temporary())
	require.NotEqual(t, a.AssignmentID, next.AssignmentID)
}

func TestExtend(t *testing.T) {
	t.Run("replaces the date and records an audit line", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())

		got, err := f.svc.Extend(context.Background(), a.ID, assignment.ExtendInput{
			NewReturnDate: f.days(30),
			Reason:        "project extended",
		})
		require.NoError(t, err)
		require.Equal(t, f.days(30), *got.ExpectedReturnDate)
		require.Contains(t, got.Notes, "Extended from 2026-03-25 to 2026-04-14: project extended")
		require.Equal(t, models.DeviceStatusAssigned, f.deviceStatus(t))
	})

	t.Run("overdue assignment extended to a future date is assigned again", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())
		f.now = f.now.AddDate(0, 0, 12)
		n, err := f.svc.MarkOverdue(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, n)

		got, err := f.svc.Extend(context.Background(), a.ID, assignment.ExtendInput{NewReturnDate: f.days(7)})
		require.NoError(t, err)
		require.Equal(t, models.StatusAssigned, got.Status)
		require.False(t, got.IsOverdue)
	})

	t.Run("past date rejected", func(t *testing.T) {
		f := newFixture(t)
		in := f.temporary()
		in.AssignedDate = f.days(-10)
		in.ExpectedReturnDate = f.daysPtr(5)
		a := f.create(t, in)

		_, err := f.svc.Extend(context.Background(), a.ID, assignment.ExtendInput{NewReturnDate: f.days(-2)})
		require.True(t, assignment.HasCode(err, "expected_return_date", assignment.CodeInPast))
	})

	t.Run("permanent assignment cannot be extended", func(t *testing.T) {
		f := newFixture(t)
		in := f.temporary()
		in.Type = models.AssignmentPermanent
		a := f.create(t, in)

		_, err := f.svc.Extend(context.Background(), a.ID, assignment.ExtendInput{NewReturnDate: f.days(30)})
		require.True(t, assignment.HasCode(err, "assignment_type", assignment.CodeNotExtendable))
	})

	t.Run("returned assignment cannot be extended", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())
		_, err := f.svc.Return(context.Background(), a.ID, assignment.ReturnInput{})
		require.NoError(t, err)

		_, err = f.svc.Extend(context.Background(), a.ID, assignment.ExtendInput{NewReturnDate: f.days(30)})
		require.True(t, assignment.HasCode(err, "status", assignment.CodeInvalidTransition))
	})
}

func TestTransfer(t *testing.T) {
	t.Run("changes assignee and reissues the qr code", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())

		res, err := f.svc.Transfer(context.Background(), a.ID, assignment.TransferInput{
			AssigneeID: &f.other,
			LocationID: &f.location,
			Reason:     "handover",
		})
		require.NoError(t, err)
		require.Equal(t, f.other, res.Assignment.AssigneeID)
		require.Equal(t, f.location, *res.Assignment.LocationID)
		require.Contains(t, res.Assignment.Notes, "Transferred (effective 2026-03-15)")
		require.Contains(t, res.Assignment.Notes, "handover")
		require.Len(t, f.qr.issued, 2)
		require.Equal(t, models.DeviceStatusAssigned, f.deviceStatus(t))
	})

	t.Run("no change rejected", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())

		_, err := f.svc.Transfer(context.Background(), a.ID, assignment.TransferInput{AssigneeID: &f.employee})
		require.True(t, assignment.HasCode(err, "transfer", assignment.CodeNoChange))
	})

	t.Run("effective date horizon", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())

		_, err := f.svc.Transfer(context.Background(), a.ID, assignment.TransferInput{
			AssigneeID:    &f.other,
			EffectiveDate: f.days(31),
		})
		require.True(t, assignment.HasCode(err, "effective_date", assignment.CodeDateOutOfRange))

		_, err = f.svc.Transfer(context.Background(), a.ID, assignment.TransferInput{
			AssigneeID:    &f.other,
			EffectiveDate: f.days(30),
		})
		require.NoError(t, err)
	})

	t.Run("effective date before assignment rejected", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())

		_, err := f.svc.Transfer(context.Background(), a.ID, assignment.TransferInput{
			AssigneeID:    &f.other,
			EffectiveDate: f.days(-1),
		})
		require.True(t, assignment.HasCode(err, "effective_date", assignment.CodeBeforeAssigned))
	})

	t.Run("closed assignment cannot be transferred", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())
		_, err := f.svc.Cancel(context.Background(), a.ID, "")
		require.NoError(t, err)

		_, err = f.svc.Transfer(context.Background(), a.ID, assignment.TransferInput{AssigneeID: &f.other})
		require.True(t, assignment.HasCode(err, "status", assignment.CodeInvalidTransition))
	})
}

func TestUpdate(t *testing.T) {
	t.Run("edit keeps the device and skips the lower date bound", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())
		f.now = f.now.AddDate(0, 0, 45)

		in := f.temporary()
		in.AssignedDate = a.AssignedDate
		in.ExpectedReturnDate = a.ExpectedReturnDate
		in.Purpose = "Laptop for fieldwork in the north"
		res, err := f.svc.Update(context.Background(), a.ID, in)
		require.NoError(t, err)
		require.Equal(t, "Laptop for fieldwork in the north", res.Assignment.Purpose)
		require.Equal(t, models.StatusOverdue, res.Assignment.Status)
		require.Equal(t, models.DeviceStatusAssigned, f.deviceStatus(t))
	})

	t.Run("moving to another device releases the old one", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())
		spare := &models.Device{AssetTag: "PRL-0002"}
		f.store.AddDevice(spare)

		in := f.temporary()
		in.DeviceID = spare.ID
		_, err := f.svc.Update(context.Background(), a.ID, in)
		require.NoError(t, err)

		require.Equal(t, models.DeviceStatusAvailable, f.deviceStatus(t))
		d, _ := f.store.Device(spare.ID)
		require.Equal(t, models.DeviceStatusAssigned, d.Status)
	})

	t.Run("closed assignment can be corrected after the device moved on", func(t *testing.T) {
		f := newFixture(t)
		first := f.create(t, f.temporary())
		_, err := f.svc.Return(context.Background(), first.ID, assignment.ReturnInput{})
		require.NoError(t, err)

		next := f.temporary()
		next.AssigneeID = f.other
		second := f.create(t, next)

		edit := f.temporary()
		edit.AssignedDate = first.AssignedDate
		edit.ExpectedReturnDate = first.ExpectedReturnDate
		edit.Purpose = "Laptop for fieldwork, corrected"
		res, err := f.svc.Update(context.Background(), first.ID, edit)
		require.NoError(t, err)
		require.Equal(t, models.StatusReturned, res.Assignment.Status)
		require.False(t, res.Assignment.IsActive)
		require.Equal(t, "Laptop for fieldwork, corrected", res.Assignment.Purpose)

		require.Equal(t, models.DeviceStatusAssigned, f.deviceStatus(t))
		require.Equal(t, 1, activeHolders(f.store, f.device))
		got, err := f.svc.Get(context.Background(), second.ID)
		require.NoError(t, err)
		require.Equal(t, models.StatusAssigned, got.Status)
	})

	t.Run("edited notes keep the audit trail", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())
		_, err := f.svc.Extend(context.Background(), a.ID, assignment.ExtendInput{
			NewReturnDate: f.days(20),
			Reason:        "audit season",
		})
		require.NoError(t, err)

		in := f.temporary()
		in.ExpectedReturnDate = f.daysPtr(20)
		in.Notes = "Charger included"
		res, err := f.svc.Update(context.Background(), a.ID, in)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(res.Assignment.Notes, "Charger included\n"))
		require.Contains(t, res.Assignment.Notes, "Extended from")

		// повторная правка с уже сохранённым журналом не дублирует строки
		in.Notes = res.Assignment.Notes
		res, err = f.svc.Update(context.Background(), a.ID, in)
		require.NoError(t, err)
		require.Equal(t, 1, strings.Count(res.Assignment.Notes, "Extended from"))
	})

	t.Run("moving to a held device is rejected", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, f.temporary())
		busy := &models.Device{AssetTag: "PRL-0003"}
		f.store.AddDevice(busy)
		in := f.temporary()
		in.DeviceID = busy.ID
		f.create(t, in)

		_, err := f.svc.Update(context.Background(), a.ID, in)
		require.True(t, assignment.HasCode(err, "device", assignment.CodeDeviceAssigned))
	})
}

// staleStore отдаёт заранее снятый список кандидатов на просрочку,
// как будто его прочитали до конкурирующей транзакции.
type staleStore struct {
	inner *memstore.Store
	due   []models.Assignment
}

func (s staleStore) InTx(ctx context.Context, fn func(ctx context.Context, tx assignment.Tx) error) error {
	return s.inner.InTx(ctx, func(ctx context.Context, tx assignment.Tx) error {
		tx.Assignments = staleDue{Repository: tx.Assignments, due: s.due}
		return fn(ctx, tx)
	})
}

type staleDue struct {
	assignment.Repository
	due []models.Assignment
}

func (r staleDue) DueForOverdue(context.Context, time.Time) ([]models.Assignment, error) {
	return r.due, nil
}

func TestMarkOverdueSkipsCandidatesClosedMeanwhile(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, f.temporary())
	f.now = f.now.AddDate(0, 0, 11)
	stale := f.store.Assignments()
	require.Len(t, stale, 1)

	_, err := f.svc.Return(context.Background(), first.ID, assignment.ReturnInput{})
	require.NoError(t, err)
	next := f.temporary()
	next.AssigneeID = f.other
	second := f.create(t, next)

	sweep := assignment.New(staleStore{inner: f.store, due: stale}, nil, assignment.DefaultConfig())
	sweep.Now = f.svc.Now
	n, err := sweep.MarkOverdue(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	got, err := f.svc.Get(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusReturned, got.Status)
	require.False(t, got.IsActive)
	require.NotNil(t, got.ActualReturnDate)

	got, err = f.svc.Get(context.Background(), second.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAssigned, got.Status)
	require.Equal(t, models.DeviceStatusAssigned, f.deviceStatus(t))
	require.Equal(t, 1, activeHolders(f.store, f.device))
}

func TestMarkOverdueIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	f.create(t, f.temporary())
	f.store.AddAssignment(&models.Assignment{
		AssignmentID:       "ASN-2026-0900",
		DeviceID:           999,
		AssigneeID:         f.other,
		Type:               models.AssignmentTemporary,
		Status:             models.StatusAssigned,
		AssignedDate:       f.days(-5),
		ExpectedReturnDate: f.daysPtr(1),
		Purpose:            "Imported record",
		IsActive:           true,
	})
	f.now = f.now.AddDate(0, 0, 11)

	n, err := f.svc.MarkOverdue(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ASN-2026-0900")
	require.Equal(t, 1, n)
	require.Equal(t, models.DeviceStatusAssigned, f.deviceStatus(t))
}

func TestMarkOverdue(t *testing.T) {
	f := newFixture(t)
	f.create(t, f.temporary())

	n, err := f.svc.MarkOverdue(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	f.now = f.now.AddDate(0, 0, 11)
	n, err = f.svc.MarkOverdue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = f.svc.MarkOverdue(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	got := f.store.Assignments()[0]
	require.Equal(t, models.StatusOverdue, got.Status)
	require.True(t, got.IsOverdue)
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	f := newFixture(t)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), f.temporary())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assignment.HasCode(err, "device", assignment.CodeDeviceAssigned):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, workers-1, rejected)
	require.Equal(t, 1, activeHolders(f.store, f.device))
}

func TestConcurrentCreateUniqueIDs(t *testing.T) {
	f := newFixture(t)
	devices := make([]uint, 10)
	for i := range devices {
		d := &models.Device{AssetTag: "BULK-" + string(rune('A'+i))}
		f.store.AddDevice(d)
		devices[i] = d.ID
	}

	var wg sync.WaitGroup
	for _, id := range devices {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			in := f.temporary()
			in.DeviceID = id
			_, err := f.svc.Create(context.Background(), in)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, a := range f.store.Assignments() {
		require.False(t, seen[a.AssignmentID], "duplicate %s", a.AssignmentID)
		seen[a.AssignmentID] = true
	}
	require.Len(t, seen, len(devices))
}

func TestSequenceContinuesFromExistingIDs(t *testing.T) {
	f := newFixture(t)
	old := &models.Device{AssetTag: "PRL-OLD"}
	f.store.AddDevice(old)
	rd := f.days(-3)
	f.store.AddAssignment(&models.Assignment{
		AssignmentID:     "ASN-2026-0041",
		DeviceID:         old.ID,
		AssigneeID:       f.employee,
		Type:             models.AssignmentTemporary,
		Status:           models.StatusReturned,
		AssignedDate:     f.days(-20),
		ActualReturnDate: &rd,
	})
	f.store.AddAssignment(&models.Assignment{
		AssignmentID: "ASN-2025-0900",
		DeviceID:     old.ID,
		AssigneeID:   f.employee,
		Status:       models.StatusReturned,
	})

	a := f.create(t, f.temporary())
	require.Equal(t, "ASN-2026-0042", a.AssignmentID)
}

func TestQRFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	f.qr.err = errors.New("storage offline")

	res, err := f.svc.Create(context.Background(), f.temporary())
	require.NoError(t, err)
	require.Nil(t, res.QRCode)
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "storage offline")
	require.Len(t, f.store.Assignments(), 1)
	require.Equal(t, models.DeviceStatusAssigned, f.deviceStatus(t))
}

func TestList(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, f.temporary())
	spare := &models.Device{AssetTag: "PRL-0002"}
	f.store.AddDevice(spare)
	in := f.temporary()
	in.DeviceID = spare.ID
	f.create(t, in)
	_, err := f.svc.Return(context.Background(), first.ID, assignment.ReturnInput{})
	require.NoError(t, err)

	rows, total, err := f.svc.List(context.Background(), repo.AssignmentFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, spare.ID, rows[0].DeviceID)

	got, err := f.svc.GetByAssignmentID(context.Background(), first.AssignmentID)
	require.NoError(t, err)
	require.Equal(t, models.StatusReturned, got.Status)
}
