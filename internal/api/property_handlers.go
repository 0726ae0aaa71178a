package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/service"
)

func (s *Server) registerPropertyRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createProperty",
		Method:        http.MethodPost,
		Path:          "/api/v1/properties",
		Summary:       "Create property",
		Description:   "Creates a property owned by the caller. New properties are available with no tenants.",
		Tags:          []string{"Properties"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateProperty)

	huma.Register(s.api, huma.Operation{
		OperationID: "listProperties",
		Method:      http.MethodGet,
		Path:        "/api/v1/properties",
		Summary:     "List properties",
		Description: "Lists properties the caller owns, or rents when the caller is a tenant",
		Tags:        []string{"Properties"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListProperties)

	huma.Register(s.api, huma.Operation{
		OperationID: "getProperty",
		Method:      http.MethodGet,
		Path:        "/api/v1/properties/{id}",
		Summary:     "Get property",
		Description: "Returns a property visible to the caller",
		Tags:        []string{"Properties"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetProperty)

	huma.Register(s.api, huma.Operation{
		OperationID: "setPropertyStatus",
		Method:      http.MethodPatch,
		Path:        "/api/v1/properties/{id}/status",
		Summary:     "Set property status",
		Description: "Switches an unoccupied property between available and maintenance",
		Tags:        []string{"Properties"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetPropertyStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "assignTenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/properties/{id}/tenants",
		Summary:     "Assign tenant",
		Description: "Adds a tenant directly, without an invitation",
		Tags:        []string{"Properties"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAssignTenant)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeTenant",
		Method:      http.MethodDelete,
		Path:        "/api/v1/properties/{id}/tenants/{tenantID}",
		Summary:     "Remove tenant",
		Description: "Removes a tenant and deletes every invitation for the pair",
		Tags:        []string{"Properties"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRemoveTenant)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPropertyInvitations",
		Method:      http.MethodGet,
		Path:        "/api/v1/properties/{id}/invitations",
		Summary:     "List property invitations",
		Description: "Lists every invitation issued for a property the caller owns",
		Tags:        []string{"Properties"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListPropertyInvitations)
}

// CreatePropertyRequest is the request body for creating a property.
type CreatePropertyRequest struct {
	Title   string `json:"title" maxLength:"200" doc:"Display title"`
	Address string `json:"address,omitempty" maxLength:"500" doc:"Street address"`
}

// CreatePropertyInput wraps the create property request for Huma.
type CreatePropertyInput struct {
	Authorization string `header:"Authorization"`
	Body          CreatePropertyRequest
}

// PropertyInput identifies a property by path.
type PropertyInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Property ID"`
}

// SetPropertyStatusRequest is the request body for a manual status change.
type SetPropertyStatusRequest struct {
	Status string `json:"status" enum:"available,maintenance" doc:"New status"`
}

// SetPropertyStatusInput wraps the status change request for Huma.
type SetPropertyStatusInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Property ID"`
	Body          SetPropertyStatusRequest
}

// AssignTenantRequest is the request body for a direct assignment.
type AssignTenantRequest struct {
	TenantID string `json:"tenantId" doc:"Tenant user ID"`
}

// AssignTenantInput wraps the assignment request for Huma.
type AssignTenantInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Property ID"`
	Body          AssignTenantRequest
}

// RemoveTenantInput identifies a tenancy by path.
type RemoveTenantInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Property ID"`
	TenantID      string `path:"tenantID" doc:"Tenant user ID"`
}

// PropertyOutput wraps a single property for Huma.
type PropertyOutput struct {
	Body *domain.Property
}

// ListPropertiesResponse contains a property listing.
type ListPropertiesResponse struct {
	Properties []*domain.Property `json:"properties"`
}

// ListPropertiesOutput wraps the property listing for Huma.
type ListPropertiesOutput struct {
	Body ListPropertiesResponse
}

// TenantChangeOutput wraps the result of an assignment change for Huma.
type TenantChangeOutput struct {
	Body *service.TenantChangeResult
}

func (s *Server) handleCreateProperty(ctx context.Context, input *CreatePropertyInput) (*PropertyOutput, error) {
	user, err := s.RequireLandlord(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.services.Properties.CreateProperty(ctx, user.ID, service.CreatePropertyRequest{
		Title:   input.Body.Title,
		Address: input.Body.Address,
	})
	if err != nil {
		return nil, err
	}
	return &PropertyOutput{Body: p}, nil
}

func (s *Server) handleListProperties(ctx context.Context, _ *struct{}) (*ListPropertiesOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.services.Properties.ListProperties(ctx, user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &ListPropertiesOutput{Body: ListPropertiesResponse{Properties: list}}, nil
}

func (s *Server) handleGetProperty(ctx context.Context, input *PropertyInput) (*PropertyOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.services.Properties.GetProperty(ctx, user.ID, user.Role, input.ID)
	if err != nil {
		return nil, err
	}
	return &PropertyOutput{Body: p}, nil
}

func (s *Server) handleSetPropertyStatus(ctx context.Context, input *SetPropertyStatusInput) (*PropertyOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.services.Properties.SetStatus(ctx, userID, input.ID, service.SetStatusRequest{
		Status: domain.PropertyStatus(input.Body.Status),
	})
	if err != nil {
		return nil, err
	}
	return &PropertyOutput{Body: p}, nil
}

func (s *Server) handleAssignTenant(ctx context.Context, input *AssignTenantInput) (*TenantChangeOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Invitations.AssignTenant(ctx, userID, input.ID, input.Body.TenantID)
	if err != nil {
		return nil, err
	}
	return &TenantChangeOutput{Body: res}, nil
}

func (s *Server) handleRemoveTenant(ctx context.Context, input *RemoveTenantInput) (*TenantChangeOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Invitations.RemoveTenant(ctx, userID, input.ID, input.TenantID)
	if err != nil {
		return nil, err
	}
	return &TenantChangeOutput{Body: res}, nil
}

func (s *Server) handleListPropertyInvitations(ctx context.Context, input *PropertyInput) (*ListInvitationsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.services.Invitations.ListPropertyInvitations(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &ListInvitationsOutput{Body: ListInvitationsResponse{Invitations: list}}, nil
}
