package domain

import "time"

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	// InvitationPending is the only state from which a transition is legal.
	InvitationPending InvitationStatus = "pending"
	// InvitationAccepted is terminal.
	InvitationAccepted InvitationStatus = "accepted"
	// InvitationDeclined is terminal.
	InvitationDeclined InvitationStatus = "declined"
)

// IsTerminal reports whether no further transition is allowed.
func (s InvitationStatus) IsTerminal() bool {
	return s == InvitationAccepted || s == InvitationDeclined
}

// Open reports whether the status occupies the (property, tenant) slot.
// At most one open invitation may exist per pair.
func (s InvitationStatus) Open() bool {
	return s == InvitationPending || s == InvitationAccepted
}

// DefaultInvitationTTL is how long an invitation stays advertised to the tenant.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// Invitation is a landlord's proposal that a tenant occupy a property.
type Invitation struct {
	Record
	PropertyID string           `json:"propertyId"`
	LandlordID string           `json:"landlordId"`
	TenantID   string           `json:"tenantId"`
	Message    string           `json:"message"`
	Status     InvitationStatus `json:"status"`
	ExpiresAt  time.Time        `json:"expiresAt"`
	AcceptedAt *time.Time       `json:"acceptedAt,omitempty"`
	DeclinedAt *time.Time       `json:"declinedAt,omitempty"`
}

// IsExpired reports whether the advertised expiry has passed.
// Expiry is informational and does not block acceptance.
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
