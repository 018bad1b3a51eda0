package qrcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	goqr "github.com/skip2/go-qrcode"
	"gorm.io/datatypes"

	"inventory/internal/logs"
	"inventory/internal/models"
)

const (
	FormatPNG   = "PNG"
	DefaultSize = 256
)

// Repository — строки AssignmentQRCode (repo.QRCodeStore или memstore).
type Repository interface {
	// Activate деактивирует прежние активные коды назначения и сохраняет qr активным.
	Activate(ctx context.Context, qr *models.AssignmentQRCode) error
	GetByCode(ctx context.Context, code string) (*models.AssignmentQRCode, error)
	Active(ctx context.Context, assignmentID uint) (*models.AssignmentQRCode, error)
	ListForAssignment(ctx context.Context, assignmentID uint) ([]models.AssignmentQRCode, error)
	Delete(ctx context.Context, id uint) error
}

// Payload — то, что попадает в QR и в колонку payload.
type Payload struct {
	AssignmentID string `json:"assignment_id"`
	DeviceID     uint   `json:"device_id"`
	AssigneeID   uint   `json:"assignee_id"`
	Code         string `json:"code"`
	URL          string `json:"url,omitempty"`
}

type Service struct {
	repo    Repository
	storage Storage
	size    int
	baseURL string
}

func New(repo Repository, storage Storage, size int, baseURL string) *Service {
	if size <= 0 {
		size = DefaultSize
	}
	return &Service{repo: repo, storage: storage, size: size, baseURL: strings.TrimRight(baseURL, "/")}
}

// Issue рендерит и сохраняет новый активный QR назначения (реализует assignment.QRIssuer).
// Если строку сохранить не удалось, картинка удаляется — сирот в хранилище не остаётся.
func (s *Service) Issue(ctx context.Context, a *models.Assignment) (*models.AssignmentQRCode, error) {
	if a == nil || a.ID == 0 {
		return nil, errors.New("qr: assignment is not persisted")
	}
	code := uuid.NewString()
	p := Payload{
		AssignmentID: a.AssignmentID,
		DeviceID:     a.DeviceID,
		AssigneeID:   a.AssigneeID,
		Code:         code,
	}
	if s.baseURL != "" {
		p.URL = fmt.Sprintf("%s/assignments/%s", s.baseURL, a.AssignmentID)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	content := string(raw)
	if p.URL != "" {
		content = p.URL + "?qr=" + code
	}
	png, err := goqr.Encode(content, goqr.Medium, s.size)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}

	key := imageKey(a.AssignmentID, code)
	if err := s.storage.Put(ctx, key, png, "image/png"); err != nil {
		return nil, fmt.Errorf("store qr image: %w", err)
	}

	row := &models.AssignmentQRCode{
		Code:         code,
		AssignmentID: a.ID,
		Payload:      datatypes.JSON(raw),
		Size:         s.size,
		Format:       FormatPNG,
		ImageKey:     key,
	}
	if err := s.repo.Activate(ctx, row); err != nil {
		if derr := s.storage.Delete(ctx, key); derr != nil {
			logs.Logger.WithError(derr).WithField("key", key).Warn("qr: cleanup of orphaned image failed")
		}
		return nil, fmt.Errorf("save qr code: %w", err)
	}

	logs.Logger.WithFields(logrus.Fields{
		"assignment_id": a.AssignmentID,
		"code":          code,
	}).Debug("qr code issued")
	return row, nil
}

// Delete удаляет QR вместе с картинкой. Сначала картинка: при сбое строка
// остаётся и удаление можно повторить.
func (s *Service) Delete(ctx context.Context, code string) error {
	qr, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if qr.ImageKey != "" {
		if err := s.storage.Delete(ctx, qr.ImageKey); err != nil {
			return fmt.Errorf("delete qr image: %w", err)
		}
	}
	return s.repo.Delete(ctx, qr.ID)
}

// Image — PNG по коду.
func (s *Service) Image(ctx context.Context, code string) ([]byte, error) {
	qr, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.storage.Get(ctx, qr.ImageKey)
}

func (s *Service) Active(ctx context.Context, assignmentID uint) (*models.AssignmentQRCode, error) {
	return s.repo.Active(ctx, assignmentID)
}

func (s *Service) List(ctx context.Context, assignmentID uint) ([]models.AssignmentQRCode, error) {
	return s.repo.ListForAssignment(ctx, assignmentID)
}

func imageKey(assignmentID, code string) string {
	return fmt.Sprintf("qr/%s/%s.png", assignmentID, code)
}
