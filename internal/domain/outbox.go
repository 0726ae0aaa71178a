package domain

import "time"

// AssignmentEntry is a durable request to add a tenant to a property.
// It is written in the same transaction that accepts an invitation and
// applied afterwards, so the assignment survives a failure between the two.
type AssignmentEntry struct {
	ID           string     `json:"id"`
	InvitationID string     `json:"invitationId"`
	PropertyID   string     `json:"propertyId"`
	TenantID     string     `json:"tenantId"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"lastError,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	ProcessedAt  *time.Time `json:"processedAt,omitempty"`
}

// IsProcessed reports whether the assignment has been applied.
func (e *AssignmentEntry) IsProcessed() bool {
	return e.ProcessedAt != nil
}

// AssignmentSource records how a tenant came to be assigned to a property.
type AssignmentSource string

const (
	// AssignmentInvitation comes from an accepted invitation.
	AssignmentInvitation AssignmentSource = "invitation"
	// AssignmentDirect is a landlord assignment with no invitation.
	AssignmentDirect AssignmentSource = "direct"
	// AssignmentLegacy was carried over by the legacy import.
	AssignmentLegacy AssignmentSource = "legacy"
)
