package controller

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"inventory/internal/assignment"
	"inventory/internal/logs"
	"inventory/internal/models"
)

// DeviceLister — все устройства (repo.DeviceStore через адаптер или memstore.Directory).
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
}

// Reconciler сверяет статус устройств с активными назначениями.
// Каждое устройство — отдельная транзакция под блокировкой его строки.
type Reconciler struct {
	Store   assignment.Store
	Devices DeviceLister
}

func NewReconciler(store assignment.Store, devices DeviceLister) *Reconciler {
	return &Reconciler{Store: store, Devices: devices}
}

// Summary — итог полного прохода.
type Summary struct {
	Checked int `json:"checked"`
	Fixed   int `json:"fixed"`
}

// DesiredStatus: удерживаемое AVAILABLE становится ASSIGNED, ничем не
// удерживаемое ASSIGNED становится AVAILABLE. MAINTENANCE/RETIRED/LOST не меняются.
func DesiredStatus(current models.DeviceStatus, held bool) models.DeviceStatus {
	switch {
	case held && current == models.DeviceStatusAvailable:
		return models.DeviceStatusAssigned
	case !held && current == models.DeviceStatusAssigned:
		return models.DeviceStatusAvailable
	}
	return current
}

// Reconcile приводит статус одного устройства к набору его активных назначений.
func (r *Reconciler) Reconcile(ctx context.Context, deviceID uint) (status models.DeviceStatus, updated bool, err error) {
	err = r.Store.InTx(ctx, func(ctx context.Context, tx assignment.Tx) error {
		dev, err := tx.Devices.LockForUpdate(ctx, deviceID)
		if err != nil {
			return err
		}
		holders, err := tx.Assignments.ActiveForDevice(ctx, deviceID, 0)
		if err != nil {
			return err
		}
		status = DesiredStatus(dev.Status, len(holders) > 0)
		if status == dev.Status {
			return nil
		}
		if err := tx.Devices.SetStatus(ctx, deviceID, status); err != nil {
			return err
		}
		logs.Logger.WithFields(logrus.Fields{
			"device_id": deviceID,
			"from":      dev.Status,
			"to":        status,
			"holders":   len(holders),
		}).Warn("device status drift corrected")
		updated = true
		return nil
	})
	return status, updated, err
}

func (r *Reconciler) ReconcileAll(ctx context.Context) (Summary, error) {
	var sum Summary
	devs, err := r.Devices.ListDevices(ctx)
	if err != nil {
		return sum, fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		_, updated, err := r.Reconcile(ctx, d.ID)
		if err != nil {
			return sum, fmt.Errorf("reconcile device %d: %w", d.ID, err)
		}
		sum.Checked++
		if updated {
			sum.Fixed++
		}
	}
	return sum, nil
}
