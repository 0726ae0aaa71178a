package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/service"
)

func (s *Server) registerInvitationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createInvitation",
		Method:        http.MethodPost,
		Path:          "/api/v1/invitations",
		Summary:       "Invite tenant",
		Description:   "Invites a tenant to one of the caller's properties and opens a conversation with them",
		Tags:          []string{"Invitations"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateInvitation)

	huma.Register(s.api, huma.Operation{
		OperationID: "listInvitations",
		Method:      http.MethodGet,
		Path:        "/api/v1/invitations",
		Summary:     "List invitations",
		Description: "Lists invitations the caller issued or received",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListInvitations)

	huma.Register(s.api, huma.Operation{
		OperationID: "getInvitation",
		Method:      http.MethodGet,
		Path:        "/api/v1/invitations/{id}",
		Summary:     "Get invitation",
		Description: "Returns an invitation the caller issued or received",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetInvitation)

	huma.Register(s.api, huma.Operation{
		OperationID: "acceptInvitation",
		Method:      http.MethodPost,
		Path:        "/api/v1/invitations/{id}/accept",
		Summary:     "Accept invitation",
		Description: "Accepts a pending invitation addressed to the caller and assigns them to the property. " +
			"Exactly one of any number of concurrent accepts succeeds; the rest receive ALREADY_PROCESSED.",
		Tags:     []string{"Invitations"},
		Security: []map[string][]string{{"bearer": {}}},
	}, s.handleAcceptInvitation)

	huma.Register(s.api, huma.Operation{
		OperationID: "declineInvitation",
		Method:      http.MethodPost,
		Path:        "/api/v1/invitations/{id}/decline",
		Summary:     "Decline invitation",
		Description: "Declines a pending invitation addressed to the caller",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeclineInvitation)
}

// CreateInvitationRequest is the request body for inviting a tenant.
type CreateInvitationRequest struct {
	PropertyID string `json:"propertyId" doc:"Property to invite the tenant to"`
	TenantID   string `json:"tenantId" doc:"Invited tenant's user ID"`
	Message    string `json:"message,omitempty" maxLength:"2000" doc:"Personal message seeded into the conversation"`
}

// CreateInvitationInput wraps the invitation request for Huma.
type CreateInvitationInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateInvitationRequest
}

// CreateInvitationOutput wraps the created invitation for Huma.
type CreateInvitationOutput struct {
	Body *service.CreateInvitationResult
}

// ListInvitationsInput selects which side of the caller's invitations to list.
type ListInvitationsInput struct {
	Authorization string `header:"Authorization"`
	As            string `query:"as" enum:"landlord,tenant" doc:"List as landlord (issued) or tenant (received). Defaults from the caller's role."`
}

// ListInvitationsResponse contains an invitation listing.
type ListInvitationsResponse struct {
	Invitations []*domain.Invitation `json:"invitations"`
}

// ListInvitationsOutput wraps the invitation listing for Huma.
type ListInvitationsOutput struct {
	Body ListInvitationsResponse
}

// InvitationInput identifies an invitation by path.
type InvitationInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Invitation ID"`
}

// InvitationOutput wraps a single invitation for Huma.
type InvitationOutput struct {
	Body *domain.Invitation
}

// AcceptInvitationOutput wraps the acceptance result for Huma.
type AcceptInvitationOutput struct {
	Body *service.AcceptInvitationResult
}

// DeclineInvitationOutput wraps the decline result for Huma.
type DeclineInvitationOutput struct {
	Body *service.DeclineInvitationResult
}

func (s *Server) handleCreateInvitation(ctx context.Context, input *CreateInvitationInput) (*CreateInvitationOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Invitations.CreateInvitation(ctx, userID, service.CreateInvitationRequest{
		PropertyID: input.Body.PropertyID,
		TenantID:   input.Body.TenantID,
		Message:    input.Body.Message,
	})
	if err != nil {
		return nil, err
	}
	return &CreateInvitationOutput{Body: res}, nil
}

func (s *Server) handleListInvitations(ctx context.Context, input *ListInvitationsInput) (*ListInvitationsOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	asLandlord := user.Role == domain.RoleLandlord
	switch input.As {
	case "landlord":
		asLandlord = true
	case "tenant":
		asLandlord = false
	}

	list, err := s.services.Invitations.ListInvitations(ctx, user.ID, asLandlord)
	if err != nil {
		return nil, err
	}
	return &ListInvitationsOutput{Body: ListInvitationsResponse{Invitations: list}}, nil
}

func (s *Server) handleGetInvitation(ctx context.Context, input *InvitationInput) (*InvitationOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := s.services.Invitations.GetInvitation(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &InvitationOutput{Body: inv}, nil
}

func (s *Server) handleAcceptInvitation(ctx context.Context, input *InvitationInput) (*AcceptInvitationOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Invitations.AcceptInvitation(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &AcceptInvitationOutput{Body: res}, nil
}

func (s *Server) handleDeclineInvitation(ctx context.Context, input *InvitationInput) (*DeclineInvitationOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Invitations.DeclineInvitation(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &DeclineInvitationOutput{Body: res}, nil
}
