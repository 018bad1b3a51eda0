package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"inventory/internal/assignment"
	"inventory/internal/models"
	"inventory/internal/repo"
)

// Store — in-memory хранилище для режима без БД (database.driver = "").
// Транзакции сериализуются одним мьютексом; при ошибке состояние
// откатывается к снимку. Те же ограничения уникальности, что и в БД.
type Store struct {
	mu sync.Mutex

	devices     map[uint]models.Device
	employees   map[uint]models.Employee
	locations   map[uint]models.Location
	assignments map[uint]models.Assignment
	qrcodes     map[uint]models.AssignmentQRCode
	sequences   map[int]int
	nextID      uint
}

func New() *Store {
	return &Store{
		devices:     make(map[uint]models.Device),
		employees:   make(map[uint]models.Employee),
		locations:   make(map[uint]models.Location),
		assignments: make(map[uint]models.Assignment),
		qrcodes:     make(map[uint]models.AssignmentQRCode),
		sequences:   make(map[int]int),
	}
}

type snapshot struct {
	devices     map[uint]models.Device
	employees   map[uint]models.Employee
	locations   map[uint]models.Location
	assignments map[uint]models.Assignment
	qrcodes     map[uint]models.AssignmentQRCode
	sequences   map[int]int
	nextID      uint
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		devices:     cloneMap(s.devices),
		employees:   cloneMap(s.employees),
		locations:   cloneMap(s.locations),
		assignments: cloneMap(s.assignments),
		qrcodes:     cloneMap(s.qrcodes),
		sequences:   cloneMap(s.sequences),
		nextID:      s.nextID,
	}
}

func (s *Store) restore(sn snapshot) {
	s.devices = sn.devices
	s.employees = sn.employees
	s.locations = sn.locations
	s.assignments = sn.assignments
	s.qrcodes = sn.qrcodes
	s.sequences = sn.sequences
	s.nextID = sn.nextID
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

// InTx реализует assignment.Store.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx assignment.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn := s.snapshot()
	defer func() {
		if rec := recover(); rec != nil {
			s.restore(sn)
			panic(rec)
		}
		if err != nil {
			s.restore(sn)
		}
	}()

	return fn(ctx, assignment.Tx{
		Devices:     devices{s},
		Assignments: assignments{s},
		Employees:   employees{s},
		Locations:   locations{s},
		Sequence:    sequence{s},
	})
}

// -------- наполнение и просмотр (вне транзакций) --------

func (s *Store) AddDevice(d *models.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.id()
	}
	if d.Status == "" {
		d.Status = models.DeviceStatusAvailable
	}
	s.devices[d.ID] = *d
}

func (s *Store) AddEmployee(e *models.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.id()
	}
	s.employees[e.ID] = *e
}

func (s *Store) AddLocation(l *models.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.id()
	}
	s.locations[l.ID] = *l
}

// AddAssignment кладёт запись как есть, минуя движок (импорт исторических данных).
func (s *Store) AddAssignment(a *models.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.id()
	}
	s.assignments[a.ID] = *a
}

func (s *Store) Device(id uint) (models.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	return d, ok
}

func (s *Store) Assignments() []models.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// -------- устройства --------

type devices struct{ s *Store }

func (v devices) LockForUpdate(_ context.Context, id uint) (*models.Device, error) {
	d, ok := v.s.devices[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &d, nil
}

func (v devices) SetStatus(_ context.Context, id uint, status models.DeviceStatus) error {
	d, ok := v.s.devices[id]
	if !ok {
		return repo.ErrNotFound
	}
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	v.s.devices[id] = d
	return nil
}

// -------- назначения --------

type assignments struct{ s *Store }

func (v assignments) Get(_ context.Context, id uint) (*models.Assignment, error) {
	a, ok := v.s.assignments[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &a, nil
}

func (v assignments) GetByAssignmentID(_ context.Context, assignmentID string) (*models.Assignment, error) {
	for _, a := range v.s.assignments {
		if a.AssignmentID == assignmentID {
			return &a, nil
		}
	}
	return nil, repo.ErrNotFound
}

// checkUnique — аналог уникальных индексов БД.
func (v assignments) checkUnique(a *models.Assignment) error {
	for id, other := range v.s.assignments {
		if id == a.ID {
			continue
		}
		if other.AssignmentID == a.AssignmentID {
			return fmt.Errorf("%w: assignment_id %s", repo.ErrDuplicate, a.AssignmentID)
		}
		if a.HoldsDevice() && other.HoldsDevice() && other.DeviceID == a.DeviceID {
			return repo.ErrActiveAssignmentExists
		}
	}
	return nil
}

func (v assignments) Create(_ context.Context, a *models.Assignment) error {
	if err := v.checkUnique(a); err != nil {
		return err
	}
	now := time.Now().UTC()
	a.ID = v.s.id()
	a.CreatedAt = now
	a.UpdatedAt = now
	v.s.assignments[a.ID] = *a
	return nil
}

func (v assignments) Save(_ context.Context, a *models.Assignment) error {
	if _, ok := v.s.assignments[a.ID]; !ok {
		return repo.ErrNotFound
	}
	if err := v.checkUnique(a); err != nil {
		return err
	}
	a.UpdatedAt = time.Now().UTC()
	v.s.assignments[a.ID] = *a
	return nil
}

func (v assignments) ActiveForDevice(_ context.Context, deviceID, excludeID uint) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range v.s.assignments {
		if a.DeviceID == deviceID && a.ID != excludeID && a.HoldsDevice() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v assignments) DueForOverdue(_ context.Context, today time.Time) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range v.s.assignments {
		if a.Status == models.StatusAssigned && a.IsActive &&
			a.ExpectedReturnDate != nil && a.ExpectedReturnDate.Before(today) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v assignments) List(_ context.Context, f repo.AssignmentFilter) ([]models.Assignment, int64, error) {
	var all []models.Assignment
	for _, a := range v.s.assignments {
		if f.Matches(&a) {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].AssignedDate.Equal(all[j].AssignedDate) {
			return all[i].AssignedDate.After(all[j].AssignedDate)
		}
		return all[i].ID > all[j].ID
	})
	total := int64(len(all))
	if f.Offset >= len(all) {
		return []models.Assignment{}, total, nil
	}
	end := f.Offset + f.PageSize()
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], total, nil
}

// -------- справочники --------

type employees struct{ s *Store }

func (v employees) Get(_ context.Context, id uint) (*models.Employee, error) {
	e, ok := v.s.employees[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &e, nil
}

type locations struct{ s *Store }

func (v locations) Get(_ context.Context, id uint) (*models.Location, error) {
	l, ok := v.s.locations[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &l, nil
}

// -------- номера назначений --------

type sequence struct{ s *Store }

func (v sequence) Next(_ context.Context, year int) (int, error) {
	last, ok := v.s.sequences[year]
	if !ok {
		prefix := fmt.Sprintf("ASN-%04d-", year)
		ids := make([]string, 0, len(v.s.assignments))
		for _, a := range v.s.assignments {
			ids = append(ids, a.AssignmentID)
		}
		last = repo.MaxSequenceOf(prefix, ids)
	}
	last++
	v.s.sequences[year] = last
	return last, nil
}
