package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"inventory/internal/assignment"
	"inventory/internal/controller"
	"inventory/internal/logs"
	"inventory/internal/prp"
)

var ErrUnknownJob = errors.New("unknown job")

const (
	JobOverdue   = "overdue_sweep"
	JobReconcile = "device_reconcile"
	JobPRPPull   = "prp_pull"
)

func OverdueSweep(svc *assignment.Service, every time.Duration) Job {
	return Job{Name: JobOverdue, Interval: every, Run: func(ctx context.Context) error {
		n, err := svc.MarkOverdue(ctx)
		if n > 0 {
			logs.Logger.WithField("marked", n).Info("assignments marked overdue")
		}
		return err
	}}
}

func DeviceReconcile(r *controller.Reconciler, every time.Duration) Job {
	return Job{Name: JobReconcile, Interval: every, Run: func(ctx context.Context) error {
		sum, err := r.ReconcileAll(ctx)
		if sum.Fixed > 0 {
			logs.Logger.WithFields(logrus.Fields{"checked": sum.Checked, "fixed": sum.Fixed}).Warn("device statuses reconciled")
		}
		return err
	}}
}

// PRPPull — nil syncer даёт выключенную задачу.
func PRPPull(s *prp.Syncer, every time.Duration) Job {
	if s == nil {
		return Job{Name: JobPRPPull}
	}
	return Job{Name: JobPRPPull, Interval: every, Run: func(ctx context.Context) error {
		_, err := s.Pull(ctx)
		return err
	}}
}
