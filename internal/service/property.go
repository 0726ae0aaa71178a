package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
	domainerrors "github.com/rentwise/rentwise-server/internal/errors"
	"github.com/rentwise/rentwise-server/internal/id"
	"github.com/rentwise/rentwise-server/internal/store"
)

// PropertyService handles property creation, lookup, and landlord status changes.
// Tenant assignment lives in InvitationService.
type PropertyService struct {
	store   store.PropertyStore
	logger  *slog.Logger
	timeout time.Duration
}

// NewPropertyService creates a new property service.
func NewPropertyService(store store.PropertyStore, logger *slog.Logger, timeout time.Duration) *PropertyService {
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	return &PropertyService{store: store, logger: logger, timeout: timeout}
}

// CreatePropertyRequest contains the data needed to list a property.
type CreatePropertyRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Address string `json:"address" validate:"max=500"`
}

// SetStatusRequest changes a property's status.
// Rented is derived from tenant assignment and cannot be set directly.
type SetStatusRequest struct {
	Status domain.PropertyStatus `json:"status" validate:"required,oneof=available maintenance"`
}

// CreateProperty creates an available property owned by landlordID.
func (s *PropertyService) CreateProperty(ctx context.Context, landlordID string, req CreatePropertyRequest) (*domain.Property, error) {
	req.Title = normalizeText(req.Title)
	req.Address = normalizeText(req.Address)
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	propertyID, err := id.Generate(id.PrefixProperty)
	if err != nil {
		return nil, fmt.Errorf("generate property ID: %w", err)
	}

	p := &domain.Property{
		LandlordID: landlordID,
		Title:      req.Title,
		Address:    req.Address,
		Status:     domain.PropertyAvailable,
		TenantIDs:  []string{},
	}
	p.ID = propertyID
	p.InitTimestamps(time.Now())

	if err := storageExec(ctx, s.timeout, func(ctx context.Context) error {
		return s.store.CreateProperty(ctx, p)
	}); err != nil {
		return nil, translateStoreError(err, "property not found")
	}

	s.logger.Info("property created", "property_id", p.ID, "landlord_id", landlordID)
	return p, nil
}

// GetProperty returns a property visible to userID: its landlord, an assigned
// tenant, or an admin.
func (s *PropertyService) GetProperty(ctx context.Context, userID string, role domain.Role, propertyID string) (*domain.Property, error) {
	p, err := storageCall(ctx, s.timeout, func(ctx context.Context) (*domain.Property, error) {
		return s.store.GetProperty(ctx, propertyID)
	})
	if err != nil {
		return nil, translateStoreError(err, "property not found")
	}
	if role != domain.RoleAdmin && p.LandlordID != userID && !p.HasTenant(userID) {
		return nil, domainerrors.NotFound("property not found")
	}
	return p, nil
}

// ListProperties returns the properties relevant to the caller: owned ones for
// a landlord, rented ones for a tenant, all of them for an admin.
func (s *PropertyService) ListProperties(ctx context.Context, userID string, role domain.Role) ([]*domain.Property, error) {
	props, err := storageCall(ctx, s.timeout, func(ctx context.Context) ([]*domain.Property, error) {
		switch role {
		case domain.RoleAdmin:
			return s.store.ListProperties(ctx)
		case domain.RoleTenant:
			return s.store.ListPropertiesByTenant(ctx, userID)
		default:
			return s.store.ListPropertiesByLandlord(ctx, userID)
		}
	})
	if err != nil {
		return nil, translateStoreError(err, "properties not found")
	}
	if props == nil {
		props = []*domain.Property{}
	}
	return props, nil
}

// SetStatus changes the status of an empty property owned by landlordID.
func (s *PropertyService) SetStatus(ctx context.Context, landlordID, propertyID string, req SetStatusRequest) (*domain.Property, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	p, err := storageCall(ctx, s.timeout, func(ctx context.Context) (*domain.Property, error) {
		return s.store.GetProperty(ctx, propertyID)
	})
	if err != nil {
		return nil, translateStoreError(err, "property not found")
	}
	if p.LandlordID != landlordID {
		return nil, domainerrors.Forbidden("only the property's landlord can change its status")
	}

	err = storageExec(ctx, s.timeout, func(ctx context.Context) error {
		return s.store.SetPropertyStatus(ctx, propertyID, req.Status)
	})
	if errors.Is(err, store.ErrPropertyOccupied) {
		return nil, domainerrors.Conflict("property has assigned tenants; remove them first")
	}
	if err != nil {
		return nil, translateStoreError(err, "property not found")
	}

	s.logger.Info("property status changed", "property_id", propertyID, "from", p.Status, "to", req.Status)

	return storageCall(ctx, s.timeout, func(ctx context.Context) (*domain.Property, error) {
		p, err := s.store.GetProperty(ctx, propertyID)
		return p, translateStoreError(err, "property not found")
	})
}
