package domain

import "slices"

// PropertyStatus is the occupancy state of a property.
type PropertyStatus string

const (
	// PropertyAvailable means the property has no assigned tenants.
	PropertyAvailable PropertyStatus = "available"
	// PropertyRented means at least one tenant is assigned.
	PropertyRented PropertyStatus = "rented"
	// PropertyMaintenance takes the property off the market. Only a landlord sets it.
	PropertyMaintenance PropertyStatus = "maintenance"
)

// Valid reports whether s is a known status.
func (s PropertyStatus) Valid() bool {
	switch s {
	case PropertyAvailable, PropertyRented, PropertyMaintenance:
		return true
	}
	return false
}

// Property is a rentable unit owned by a landlord.
type Property struct {
	Record
	LandlordID string         `json:"landlordId"`
	Title      string         `json:"title"`
	Address    string         `json:"address"`
	Status     PropertyStatus `json:"status"`
	// TenantIDs is a set. The store never holds duplicates and order carries no meaning.
	TenantIDs []string `json:"tenantIds"`
}

// HasTenant reports whether tenantID is assigned to the property.
func (p *Property) HasTenant(tenantID string) bool {
	return slices.Contains(p.TenantIDs, tenantID)
}

// StatusConsistent reports whether status agrees with the tenant set:
// rented exactly when at least one tenant is assigned. A property under
// maintenance with no tenants is consistent.
func (p *Property) StatusConsistent() bool {
	if len(p.TenantIDs) > 0 {
		return p.Status == PropertyRented
	}
	return p.Status != PropertyRented
}

// ExpectedStatus returns the status the tenant set implies.
// Maintenance is preserved for an empty property.
func (p *Property) ExpectedStatus() PropertyStatus {
	if len(p.TenantIDs) > 0 {
		return PropertyRented
	}
	if p.Status == PropertyMaintenance {
		return PropertyMaintenance
	}
	return PropertyAvailable
}
