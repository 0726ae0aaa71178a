package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/store"
)

// DrainReport summarizes one pass over the assignment outbox.
type DrainReport struct {
	Applied int `json:"applied"`
	Retired int `json:"retired"`
	Failed  int `json:"failed"`
}

// DrainOutbox applies pending assignment entries, oldest first.
// A limit of zero drains everything pending.
func (s *InvitationService) DrainOutbox(ctx context.Context, limit int) (_ *DrainReport, err error) {
	ctx, span := tracer.Start(ctx, "InvitationService.DrainOutbox")
	defer func() { endSpan(span, err) }()

	report, _, err := s.drainOutbox(ctx, limit)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("outbox.applied", report.Applied),
		attribute.Int("outbox.failed", report.Failed),
	)
	return report, nil
}

func (s *InvitationService) drainOutbox(ctx context.Context, limit int) (*DrainReport, []domain.RepairFailure, error) {
	entries, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) ([]*domain.AssignmentEntry, error) {
		return s.repo.ListPendingAssignments(ctx, limit)
	})
	if err != nil {
		return nil, nil, translateStoreError(err, "outbox not found")
	}

	report := &DrainReport{}
	var failures []domain.RepairFailure
	for _, entry := range entries {
		applied, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (bool, error) {
			return s.repo.ApplyAssignment(ctx, entry.ID, s.now())
		})
		switch {
		case errors.Is(err, store.ErrNotFound):
			report.Retired++
		case err != nil:
			report.Failed++
			failures = append(failures, domain.RepairFailure{
				InvitationID: entry.InvitationID,
				PropertyID:   entry.PropertyID,
				Error:        err.Error(),
			})
			recErr := storageExec(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
				return s.repo.RecordAssignmentFailure(ctx, entry.ID, err.Error())
			})
			if recErr != nil {
				s.logger.Warn("failed to record assignment failure", "entry_id", entry.ID, "error", recErr)
			}
		case applied:
			report.Applied++
		default:
			report.Retired++
		}
	}

	if len(entries) > 0 {
		s.logger.Info("assignment outbox drained",
			"applied", report.Applied,
			"retired", report.Retired,
			"failed", report.Failed,
		)
	}
	return report, failures, nil
}

// Reconcile restores the invariant between accepted invitations and property
// tenant sets. It is idempotent and safe to run at any time, concurrently
// with normal traffic.
//
// The pass drains the assignment outbox, re-applies the assignment of every
// accepted invitation whose tenant is missing, and corrects any property whose
// status disagrees with its tenant set. Assignments with no accepted
// invitation behind them are reported as orphans and left in place for review.
func (s *InvitationService) Reconcile(ctx context.Context) (_ *domain.RepairReport, err error) {
	ctx, span := tracer.Start(ctx, "InvitationService.Reconcile")
	defer func() { endSpan(span, err) }()

	report := &domain.RepairReport{
		StartedAt:           s.now(),
		AssignmentsRepaired: []domain.OrphanAssignment{},
		StatusCorrections:   []domain.StatusCorrection{},
		Orphans:             []domain.OrphanAssignment{},
		Failures:            []domain.RepairFailure{},
	}

	drain, failures, err := s.drainOutbox(ctx, 0)
	if err != nil {
		return nil, err
	}
	report.OutboxDrained = drain.Applied + drain.Retired
	report.Failures = append(report.Failures, failures...)

	if err := s.repairAssignments(ctx, report); err != nil {
		return nil, err
	}
	if err := s.repairStatuses(ctx, report); err != nil {
		return nil, err
	}

	orphans, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) ([]domain.OrphanAssignment, error) {
		return s.repo.ListOrphanAssignments(ctx)
	})
	if err != nil {
		return nil, translateStoreError(err, "assignments not found")
	}
	for _, o := range orphans {
		s.logger.Warn("tenant assigned without an accepted invitation",
			"property_id", o.PropertyID,
			"tenant_id", o.TenantID,
		)
	}
	report.Orphans = append(report.Orphans, orphans...)
	report.FinishedAt = s.now()

	span.SetAttributes(
		attribute.Int("reconcile.scanned", report.InvitationsScanned),
		attribute.Int("reconcile.repaired", len(report.AssignmentsRepaired)),
		attribute.Int("reconcile.orphans", len(report.Orphans)),
	)

	if report.Clean() {
		s.logger.Debug("reconcile found nothing to repair", "scanned", report.InvitationsScanned)
	} else {
		s.logger.Info("reconcile completed",
			"outbox_drained", report.OutboxDrained,
			"scanned", report.InvitationsScanned,
			"assignments_repaired", len(report.AssignmentsRepaired),
			"status_corrections", len(report.StatusCorrections),
			"orphans", len(report.Orphans),
			"failures", len(report.Failures),
		)
	}
	return report, nil
}

// repairAssignments re-applies missing assignments for accepted invitations.
func (s *InvitationService) repairAssignments(ctx context.Context, report *domain.RepairReport) error {
	accepted, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) ([]*domain.Invitation, error) {
		return s.repo.ListAcceptedInvitations(ctx)
	})
	if err != nil {
		return translateStoreError(err, "invitations not found")
	}
	report.InvitationsScanned = len(accepted)

	properties := make(map[string]*domain.Property)
	for _, inv := range accepted {
		property, ok := properties[inv.PropertyID]
		if !ok {
			property, err = storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (*domain.Property, error) {
				return s.repo.GetProperty(ctx, inv.PropertyID)
			})
			if err != nil {
				report.Failures = append(report.Failures, domain.RepairFailure{
					InvitationID: inv.ID,
					PropertyID:   inv.PropertyID,
					Error:        err.Error(),
				})
				continue
			}
			properties[inv.PropertyID] = property
		}
		if property.HasTenant(inv.TenantID) {
			continue
		}

		applied, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (bool, error) {
			return s.repo.ReapplyAssignment(ctx, inv.ID, s.now())
		})
		if err != nil {
			report.Failures = append(report.Failures, domain.RepairFailure{
				InvitationID: inv.ID,
				PropertyID:   inv.PropertyID,
				Error:        err.Error(),
			})
			continue
		}
		if applied {
			s.logger.Info("restored missing assignment",
				"invitation_id", inv.ID,
				"property_id", inv.PropertyID,
				"tenant_id", inv.TenantID,
			)
			report.AssignmentsRepaired = append(report.AssignmentsRepaired, domain.OrphanAssignment{
				PropertyID: inv.PropertyID,
				TenantID:   inv.TenantID,
			})
			property.TenantIDs = append(property.TenantIDs, inv.TenantID)
		}
	}
	return nil
}

// repairStatuses corrects properties whose status disagrees with their tenant set.
func (s *InvitationService) repairStatuses(ctx context.Context, report *domain.RepairReport) error {
	properties, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) ([]*domain.Property, error) {
		return s.repo.ListProperties(ctx)
	})
	if err != nil {
		return translateStoreError(err, "properties not found")
	}

	for _, p := range properties {
		if p.StatusConsistent() {
			continue
		}

		status, changed, err := s.syncStatus(ctx, p.ID)
		if err != nil {
			report.Failures = append(report.Failures, domain.RepairFailure{PropertyID: p.ID, Error: err.Error()})
			continue
		}
		if changed {
			s.logger.Info("corrected property status", "property_id", p.ID, "from", p.Status, "to", status)
			report.StatusCorrections = append(report.StatusCorrections, domain.StatusCorrection{
				PropertyID: p.ID,
				From:       p.Status,
				To:         status,
			})
		}
	}
	return nil
}

func (s *InvitationService) syncStatus(ctx context.Context, propertyID string) (domain.PropertyStatus, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()
	return s.repo.SyncPropertyStatus(ctx, propertyID)
}
