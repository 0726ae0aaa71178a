package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rentwise/rentwise-server/internal/domain"
	"github.com/rentwise/rentwise-server/internal/service"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "reconcile",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/reconcile",
		Summary:     "Reconcile assignments",
		Description: "Drains pending assignments, restores assignments missing for accepted invitations, " +
			"corrects property statuses, and reports orphaned assignments. Safe to run repeatedly.",
		Tags:     []string{"Admin"},
		Security: []map[string][]string{{"bearer": {}}},
	}, s.handleReconcile)

	huma.Register(s.api, huma.Operation{
		OperationID: "drainOutbox",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/outbox/drain",
		Summary:     "Drain assignment outbox",
		Description: "Applies pending property assignments left behind by acceptances",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDrainOutbox)

	huma.Register(s.api, huma.Operation{
		OperationID:   "provisionUser",
		Method:        http.MethodPost,
		Path:          "/api/v1/admin/users",
		Summary:       "Provision user",
		Description:   "Adds a user to the directory",
		Tags:          []string{"Admin"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleProvisionUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)
}

// ReconcileOutput wraps the repair report for Huma.
type ReconcileOutput struct {
	Body *domain.RepairReport
}

// DrainOutboxInput bounds one drain pass.
type DrainOutboxInput struct {
	Authorization string `header:"Authorization"`
	Limit         int    `query:"limit" minimum:"0" maximum:"10000" doc:"Maximum entries to process (0 for the default)"`
}

// DrainOutboxOutput wraps the drain report for Huma.
type DrainOutboxOutput struct {
	Body *service.DrainReport
}

// ProvisionUserRequest is the request body for provisioning a user.
type ProvisionUserRequest struct {
	DisplayName string `json:"displayName,omitempty" maxLength:"100"`
	Email       string `json:"email" format:"email"`
	Role        string `json:"role" enum:"landlord,tenant,admin"`
}

// ProvisionUserInput wraps the provisioning request for Huma.
type ProvisionUserInput struct {
	Authorization string `header:"Authorization"`
	Body          ProvisionUserRequest
}

// UserOutput wraps a single user for Huma.
type UserOutput struct {
	Body *domain.User
}

func (s *Server) handleReconcile(ctx context.Context, _ *struct{}) (*ReconcileOutput, error) {
	if _, err := s.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	report, err := s.services.Invitations.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	return &ReconcileOutput{Body: report}, nil
}

func (s *Server) handleDrainOutbox(ctx context.Context, input *DrainOutboxInput) (*DrainOutboxOutput, error) {
	if _, err := s.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	report, err := s.services.Invitations.DrainOutbox(ctx, input.Limit)
	if err != nil {
		return nil, err
	}
	return &DrainOutboxOutput{Body: report}, nil
}

func (s *Server) handleProvisionUser(ctx context.Context, input *ProvisionUserInput) (*UserOutput, error) {
	if _, err := s.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	user, err := s.services.Users.Provision(ctx, service.ProvisionUserRequest{
		DisplayName: input.Body.DisplayName,
		Email:       input.Body.Email,
		Role:        domain.Role(input.Body.Role),
	})
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: user}, nil
}

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: user}, nil
}
