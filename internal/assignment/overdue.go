package assignment

import (
	"time"

	"inventory/internal/models"
)

const dateLayout = "2006-01-02"

// dateOf — календарная дата t (в её часовом поясе) как полночь UTC.
// Так же gorm отдаёт колонки типа date.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t time.Time) *time.Time {
	d := dateOf(t)
	return &d
}

// EvaluateOverdue приводит IsOverdue и Status к дате today.
// Идемпотентна: повторный вызов в тот же день ничего не меняет.
// OVERDUE без просроченной даты (продление) возвращается в ASSIGNED.
func EvaluateOverdue(a *models.Assignment, today time.Time) {
	today = dateOf(today)
	past := a.ExpectedReturnDate != nil && dateOf(*a.ExpectedReturnDate).Before(today)

	switch {
	case past && (a.Status == models.StatusAssigned || a.Status == models.StatusOverdue):
		a.IsOverdue = true
		a.Status = models.StatusOverdue
	case a.Status == models.StatusOverdue:
		a.IsOverdue = false
		a.Status = models.StatusAssigned
	default:
		a.IsOverdue = false
	}
}
