package domain

import "time"

// OrphanAssignment is a tenant assigned to a property without an accepted invitation.
// Reconciliation reports these for manual review and leaves them in place.
type OrphanAssignment struct {
	PropertyID string `json:"propertyId"`
	TenantID   string `json:"tenantId"`
}

// StatusCorrection records a property whose status disagreed with its tenant set.
type StatusCorrection struct {
	PropertyID string         `json:"propertyId"`
	From       PropertyStatus `json:"from"`
	To         PropertyStatus `json:"to"`
}

// RepairFailure records an item reconciliation could not fix on this pass.
type RepairFailure struct {
	InvitationID string `json:"invitationId,omitempty"`
	PropertyID   string `json:"propertyId,omitempty"`
	Error        string `json:"error"`
}

// RepairReport summarizes one reconciliation pass.
type RepairReport struct {
	StartedAt           time.Time          `json:"startedAt"`
	FinishedAt          time.Time          `json:"finishedAt"`
	OutboxDrained       int                `json:"outboxDrained"`
	InvitationsScanned  int                `json:"invitationsScanned"`
	AssignmentsRepaired []OrphanAssignment `json:"assignmentsRepaired"`
	StatusCorrections   []StatusCorrection `json:"statusCorrections"`
	Orphans             []OrphanAssignment `json:"orphans"`
	Failures            []RepairFailure    `json:"failures"`
}

// Clean reports whether the pass found nothing to repair.
func (r *RepairReport) Clean() bool {
	return r.OutboxDrained == 0 && len(r.AssignmentsRepaired) == 0 &&
		len(r.StatusCorrections) == 0 && len(r.Orphans) == 0 && len(r.Failures) == 0
}
