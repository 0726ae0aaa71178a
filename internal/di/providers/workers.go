package providers

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/do/v2"

	"github.com/rentwise/rentwise-server/internal/config"
	"github.com/rentwise/rentwise-server/internal/logger"
	"github.com/rentwise/rentwise-server/internal/service"
)

// OutboxJob periodically applies assignments left pending by acceptances.
type OutboxJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (j *OutboxJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideOutboxJob provides the assignment outbox drainer.
func ProvideOutboxJob(i do.Injector) (*OutboxJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i).Component("outbox")
	invitations := do.MustInvoke[*service.InvitationService](i)

	ctx, cancel := context.WithCancel(context.Background())
	job := &OutboxJob{cancel: cancel, done: make(chan struct{})}

	go runPeriodic(ctx, job.done, cfg.Invitation.OutboxInterval, log, func(ctx context.Context) {
		report, err := invitations.DrainOutbox(ctx, outboxBatchSize)
		if err != nil {
			log.Warn("Outbox drain failed", "error", err)
			return
		}
		if report.Applied+report.Retired+report.Failed > 0 {
			log.Info("Outbox drained",
				"applied", report.Applied,
				"retired", report.Retired,
				"failed", report.Failed,
			)
		}
	})

	return job, nil
}

// ReconcileJob periodically repairs assignments and statuses.
type ReconcileJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (j *ReconcileJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideReconcileJob provides the reconciliation job. It runs once at startup.
func ProvideReconcileJob(i do.Injector) (*ReconcileJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i).Component("reconcile")
	invitations := do.MustInvoke[*service.InvitationService](i)

	ctx, cancel := context.WithCancel(context.Background())
	job := &ReconcileJob{cancel: cancel, done: make(chan struct{})}

	go runPeriodic(ctx, job.done, cfg.Invitation.ReconcileInterval, log, func(ctx context.Context) {
		report, err := invitations.Reconcile(ctx)
		if err != nil {
			log.Warn("Reconcile failed", "error", err)
			return
		}
		if !report.Clean() {
			log.Info("Reconcile repaired state",
				"outbox_drained", report.OutboxDrained,
				"assignments_repaired", len(report.AssignmentsRepaired),
				"status_corrections", len(report.StatusCorrections),
				"orphans", len(report.Orphans),
				"failures", len(report.Failures),
			)
		}
	})

	return job, nil
}

// runPeriodic calls fn immediately and then every interval until ctx is
// canceled. A zero interval runs fn once.
func runPeriodic(ctx context.Context, done chan<- struct{}, interval time.Duration, log *slog.Logger, fn func(context.Context)) {
	defer close(done)

	fn(ctx)
	if interval <= 0 {
		log.Info("Periodic job disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("Periodic job started", "interval", interval)
	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-ctx.Done():
			return
		}
	}
}
