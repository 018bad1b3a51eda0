package memstore

import (
	"context"
	"sort"
	"time"

	"inventory/internal/models"
	"inventory/internal/repo"
)

// QRCodes — хранилище строк QR поверх Store; вызывается вне InTx.
type QRCodes struct{ s *Store }

func (s *Store) QRCodes() *QRCodes { return &QRCodes{s: s} }

func (q *QRCodes) Activate(_ context.Context, qr *models.AssignmentQRCode) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for id, other := range q.s.qrcodes {
		if other.AssignmentID == qr.AssignmentID && other.IsActive {
			other.IsActive = false
			q.s.qrcodes[id] = other
		}
	}
	now := time.Now().UTC()
	qr.ID = q.s.id()
	qr.IsActive = true
	qr.CreatedAt = now
	qr.UpdatedAt = now
	q.s.qrcodes[qr.ID] = *qr
	return nil
}

func (q *QRCodes) GetByCode(_ context.Context, code string) (*models.AssignmentQRCode, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, qr := range q.s.qrcodes {
		if qr.Code == code {
			return &qr, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (q *QRCodes) Active(_ context.Context, assignmentID uint) (*models.AssignmentQRCode, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var best *models.AssignmentQRCode
	for _, qr := range q.s.qrcodes {
		if qr.AssignmentID == assignmentID && qr.IsActive && (best == nil || qr.ID > best.ID) {
			c := qr
			best = &c
		}
	}
	if best == nil {
		return nil, repo.ErrNotFound
	}
	return best, nil
}

func (q *QRCodes) ListForAssignment(_ context.Context, assignmentID uint) ([]models.AssignmentQRCode, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var out []models.AssignmentQRCode
	for _, qr := range q.s.qrcodes {
		if qr.AssignmentID == assignmentID {
			out = append(out, qr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (q *QRCodes) Delete(_ context.Context, id uint) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.qrcodes[id]; !ok {
		return repo.ErrNotFound
	}
	delete(q.s.qrcodes, id)
	return nil
}
