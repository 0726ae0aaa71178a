package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rentwise/rentwise-server/internal/domain"
	domainerrors "github.com/rentwise/rentwise-server/internal/errors"
	"github.com/rentwise/rentwise-server/internal/id"
	"github.com/rentwise/rentwise-server/internal/store"
)

// InvitationRepository is the persistence the invitation lifecycle needs.
type InvitationRepository interface {
	store.InvitationStore
	store.PropertyStore
	store.OutboxStore
}

// InvitationConfig tunes the invitation lifecycle.
type InvitationConfig struct {
	// TTL sets ExpiresAt on new invitations. Expiry is advisory.
	TTL time.Duration
	// StorageTimeout bounds each storage round trip.
	StorageTimeout time.Duration
}

// InvitationService orchestrates invitation creation, the guarded
// accept/decline transitions, and tenant assignment on properties.
type InvitationService struct {
	repo          InvitationRepository
	conversations Conversations
	notifier      Notifier
	users         UserLookup
	logger        *slog.Logger
	cfg           InvitationConfig
	now           func() time.Time
}

// NewInvitationService creates a new invitation service.
func NewInvitationService(
	repo InvitationRepository,
	conversations Conversations,
	notifier Notifier,
	users UserLookup,
	logger *slog.Logger,
	cfg InvitationConfig,
) *InvitationService {
	if cfg.TTL <= 0 {
		cfg.TTL = domain.DefaultInvitationTTL
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = DefaultStorageTimeout
	}
	return &InvitationService{
		repo:          repo,
		conversations: conversations,
		notifier:      notifier,
		users:         users,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
}

// CreateInvitationRequest contains the data needed to invite a tenant.
type CreateInvitationRequest struct {
	LandlordID string `json:"-" validate:"required,entityid"`
	PropertyID string `json:"propertyId" validate:"required,entityid"`
	TenantID   string `json:"tenantId" validate:"required,entityid,nefield=LandlordID"`
	Message    string `json:"message" validate:"max=2000"`
}

// CreateInvitationResult is returned after creating an invitation.
type CreateInvitationResult struct {
	Invitation     *domain.Invitation `json:"invitation"`
	ConversationID string             `json:"conversationId,omitempty"`
	Warnings       []Warning          `json:"warnings"`
}

// AcceptInvitationResult is returned after accepting an invitation.
type AcceptInvitationResult struct {
	Invitation *domain.Invitation `json:"invitation"`
	// Property is nil only if it could not be re-read after the transition.
	Property *domain.Property `json:"property,omitempty"`
	Warnings []Warning        `json:"warnings"`
}

// DeclineInvitationResult is returned after declining an invitation.
type DeclineInvitationResult struct {
	Invitation *domain.Invitation `json:"invitation"`
	Warnings   []Warning          `json:"warnings"`
}

// TenantChangeResult is returned by RemoveTenant and AssignTenant.
type TenantChangeResult struct {
	Property           *domain.Property `json:"property"`
	Changed            bool             `json:"changed"`
	InvitationsDeleted int              `json:"invitationsDeleted"`
	Warnings           []Warning        `json:"warnings"`
}

type transitionInput struct {
	TenantID     string `json:"tenantId" validate:"required,entityid"`
	InvitationID string `json:"invitationId" validate:"required,entityid"`
}

type tenantInput struct {
	LandlordID string `json:"-" validate:"required,entityid"`
	PropertyID string `json:"propertyId" validate:"required,entityid"`
	TenantID   string `json:"tenantId" validate:"required,entityid,nefield=LandlordID"`
}

// CreateInvitation invites a tenant to one of the landlord's properties.
//
// The insert is the only step that can fail the request: a second open
// invitation for the same pair is rejected by the store's unique index and
// reported as CONFLICT. The conversation and tenant notification that follow
// are best effort and surface as warnings.
func (s *InvitationService) CreateInvitation(ctx context.Context, landlordID string, req CreateInvitationRequest) (_ *CreateInvitationResult, err error) {
	ctx, span := tracer.Start(ctx, "InvitationService.CreateInvitation", trace.WithAttributes(
		attribute.String("property.id", req.PropertyID),
		attribute.String("tenant.id", req.TenantID),
	))
	defer func() { endSpan(span, err) }()

	req.LandlordID = landlordID
	req.Message = normalizeText(req.Message)
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	property, err := s.ownedProperty(ctx, landlordID, req.PropertyID, "only the property's landlord can invite tenants")
	if err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, req.TenantID); err != nil {
		return nil, err
	}

	invitationID, err := id.Generate(id.PrefixInvitation)
	if err != nil {
		return nil, fmt.Errorf("generate invitation ID: %w", err)
	}

	now := s.now()
	inv := &domain.Invitation{
		PropertyID: property.ID,
		LandlordID: landlordID,
		TenantID:   req.TenantID,
		Message:    req.Message,
		Status:     domain.InvitationPending,
		ExpiresAt:  now.Add(s.cfg.TTL),
	}
	inv.ID = invitationID
	inv.InitTimestamps(now)

	err = storageExec(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		return s.repo.CreateInvitation(ctx, inv)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, domainerrors.Conflict("an open invitation already exists for this tenant and property")
	}
	if err != nil {
		return nil, translateStoreError(err, "property not found")
	}

	s.logger.Info("invitation created",
		"invitation_id", inv.ID,
		"property_id", inv.PropertyID,
		"tenant_id", inv.TenantID,
	)

	effects := context.WithoutCancel(ctx)
	var warn warnings

	content := inv.Message
	if content == "" {
		content = "You have been invited to " + propertyLabel(property)
	}
	conversationID, convErr := storageCall(effects, s.cfg.StorageTimeout, func(ctx context.Context) (string, error) {
		return s.conversations.CreateConversation(ctx, ConversationSeed{
			PropertyID:   property.ID,
			LandlordID:   landlordID,
			TenantID:     inv.TenantID,
			InvitationID: inv.ID,
			SenderID:     landlordID,
			Content:      content,
		})
	})
	if convErr != nil {
		s.logger.Warn("failed to create invitation conversation",
			"invitation_id", inv.ID,
			"error", convErr,
		)
		warn.add(StepConversation, "conversation could not be created")
	}

	landlordName := s.displayName(effects, landlordID, "Your landlord")
	s.notify(effects, domain.Notification{
		UserID: inv.TenantID,
		Title:  "New property invitation",
		Body:   fmt.Sprintf("%s invited you to %s", landlordName, propertyLabel(property)),
		Type:   domain.NotificationInvitationReceived,
		Data: map[string]string{
			"invitationId":   inv.ID,
			"propertyId":     property.ID,
			"conversationId": conversationID,
		},
	}, &warn)

	return &CreateInvitationResult{
		Invitation:     inv,
		ConversationID: conversationID,
		Warnings:       warn.list(),
	}, nil
}

// AcceptInvitation performs the guarded pending -> accepted transition for the
// tenant the invitation is addressed to, then applies its effects in order:
// property assignment, conversation message, landlord notification.
//
// Exactly one of any number of concurrent calls succeeds; the rest get
// ALREADY_PROCESSED. The assignment is durable once the guard commits: if
// applying it fails here, the outbox drainer and Reconcile finish it.
func (s *InvitationService) AcceptInvitation(ctx context.Context, tenantID, invitationID string) (_ *AcceptInvitationResult, err error) {
	ctx, span := tracer.Start(ctx, "InvitationService.AcceptInvitation", trace.WithAttributes(
		attribute.String("invitation.id", invitationID),
		attribute.String("tenant.id", tenantID),
	))
	defer func() { endSpan(span, err) }()

	if err := validate.Validate(transitionInput{TenantID: tenantID, InvitationID: invitationID}); err != nil {
		return nil, err
	}

	var entry *domain.AssignmentEntry
	inv, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (*domain.Invitation, error) {
		inv, e, err := s.repo.AcceptInvitation(ctx, invitationID, tenantID, s.now())
		entry = e
		return inv, err
	})
	if err != nil {
		return nil, transitionError(err)
	}

	s.logger.Info("invitation accepted",
		"invitation_id", inv.ID,
		"property_id", inv.PropertyID,
		"tenant_id", inv.TenantID,
	)

	effects := context.WithoutCancel(ctx)
	var warn warnings

	property := s.applyAssignment(effects, entry, &warn)

	tenantName := s.displayName(effects, inv.TenantID, "The tenant")
	s.recordLifecycleMessage(effects, inv, tenantName+" accepted the invitation", &warn)

	s.notify(effects, domain.Notification{
		UserID: inv.LandlordID,
		Title:  "Invitation accepted",
		Body:   tenantName + " accepted your invitation",
		Type:   domain.NotificationInvitationAccepted,
		Data: map[string]string{
			"invitationId": inv.ID,
			"propertyId":   inv.PropertyID,
			"tenantId":     inv.TenantID,
		},
	}, &warn)

	return &AcceptInvitationResult{
		Invitation: inv,
		Property:   property,
		Warnings:   warn.list(),
	}, nil
}

// DeclineInvitation performs the guarded pending -> declined transition.
// The property is never touched.
func (s *InvitationService) DeclineInvitation(ctx context.Context, tenantID, invitationID string) (_ *DeclineInvitationResult, err error) {
	ctx, span := tracer.Start(ctx, "InvitationService.DeclineInvitation", trace.WithAttributes(
		attribute.String("invitation.id", invitationID),
		attribute.String("tenant.id", tenantID),
	))
	defer func() { endSpan(span, err) }()

	if err := validate.Validate(transitionInput{TenantID: tenantID, InvitationID: invitationID}); err != nil {
		return nil, err
	}

	inv, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (*domain.Invitation, error) {
		return s.repo.DeclineInvitation(ctx, invitationID, tenantID, s.now())
	})
	if err != nil {
		return nil, transitionError(err)
	}

	s.logger.Info("invitation declined",
		"invitation_id", inv.ID,
		"property_id", inv.PropertyID,
		"tenant_id", inv.TenantID,
	)

	effects := context.WithoutCancel(ctx)
	var warn warnings

	tenantName := s.displayName(effects, inv.TenantID, "The tenant")
	s.recordLifecycleMessage(effects, inv, tenantName+" declined the invitation", &warn)

	s.notify(effects, domain.Notification{
		UserID: inv.LandlordID,
		Title:  "Invitation declined",
		Body:   tenantName + " declined your invitation",
		Type:   domain.NotificationInvitationDeclined,
		Data: map[string]string{
			"invitationId": inv.ID,
			"propertyId":   inv.PropertyID,
			"tenantId":     inv.TenantID,
		},
	}, &warn)

	return &DeclineInvitationResult{Invitation: inv, Warnings: warn.list()}, nil
}

// RemoveTenant removes a tenant from the landlord's property and deletes every
// invitation for the pair, so the tenant can be invited again later.
// Removing a tenant who is not assigned succeeds with Changed false.
func (s *InvitationService) RemoveTenant(ctx context.Context, landlordID, propertyID, tenantID string) (_ *TenantChangeResult, err error) {
	ctx, span := tracer.Start(ctx, "InvitationService.RemoveTenant", trace.WithAttributes(
		attribute.String("property.id", propertyID),
		attribute.String("tenant.id", tenantID),
	))
	defer func() { endSpan(span, err) }()

	if err := validate.Validate(tenantInput{LandlordID: landlordID, PropertyID: propertyID, TenantID: tenantID}); err != nil {
		return nil, err
	}
	if _, err := s.ownedProperty(ctx, landlordID, propertyID, "only the property's landlord can remove tenants"); err != nil {
		return nil, err
	}

	removal, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (*store.TenantRemoval, error) {
		return s.repo.RemoveTenant(ctx, propertyID, tenantID)
	})
	if err != nil {
		return nil, translateStoreError(err, "property not found")
	}

	s.logger.Info("tenant removed",
		"property_id", propertyID,
		"tenant_id", tenantID,
		"was_assigned", removal.Removed,
		"invitations_deleted", removal.InvitationsDeleted,
	)

	effects := context.WithoutCancel(ctx)
	var warn warnings

	property, err := storageCall(effects, s.cfg.StorageTimeout, func(ctx context.Context) (*domain.Property, error) {
		return s.repo.GetProperty(ctx, propertyID)
	})
	if err != nil {
		return nil, translateStoreError(err, "property not found")
	}

	if removal.Removed {
		s.notify(effects, domain.Notification{
			UserID: tenantID,
			Title:  "Removed from property",
			Body:   "You are no longer a tenant of " + propertyLabel(property),
			Type:   domain.NotificationTenantRemoved,
			Data:   map[string]string{"propertyId": propertyID},
		}, &warn)
	}

	return &TenantChangeResult{
		Property:           property,
		Changed:            removal.Removed,
		InvitationsDeleted: removal.InvitationsDeleted,
		Warnings:           warn.list(),
	}, nil
}

// AssignTenant adds a tenant to the landlord's property without an invitation.
// The assignment is recorded as direct, so reconciliation never reports it as an orphan.
func (s *InvitationService) AssignTenant(ctx context.Context, landlordID, propertyID, tenantID string) (_ *TenantChangeResult, err error) {
	ctx, span := tracer.Start(ctx, "InvitationService.AssignTenant", trace.WithAttributes(
		attribute.String("property.id", propertyID),
		attribute.String("tenant.id", tenantID),
	))
	defer func() { endSpan(span, err) }()

	if err := validate.Validate(tenantInput{LandlordID: landlordID, PropertyID: propertyID, TenantID: tenantID}); err != nil {
		return nil, err
	}
	if _, err := s.ownedProperty(ctx, landlordID, propertyID, "only the property's landlord can assign tenants"); err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, tenantID); err != nil {
		return nil, err
	}

	added, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (bool, error) {
		return s.repo.AddTenant(ctx, propertyID, tenantID, domain.AssignmentDirect)
	})
	if err != nil {
		return nil, translateStoreError(err, "property not found")
	}

	effects := context.WithoutCancel(ctx)
	var warn warnings

	property, err := storageCall(effects, s.cfg.StorageTimeout, func(ctx context.Context) (*domain.Property, error) {
		return s.repo.GetProperty(ctx, propertyID)
	})
	if err != nil {
		return nil, translateStoreError(err, "property not found")
	}

	if added {
		s.logger.Info("tenant assigned", "property_id", propertyID, "tenant_id", tenantID)
		s.notify(effects, domain.Notification{
			UserID: tenantID,
			Title:  "Added to property",
			Body:   "You are now a tenant of " + propertyLabel(property),
			Type:   domain.NotificationTenantAssigned,
			Data:   map[string]string{"propertyId": propertyID},
		}, &warn)
	}

	return &TenantChangeResult{Property: property, Changed: added, Warnings: warn.list()}, nil
}

// GetInvitation returns an invitation visible to userID as its landlord or tenant.
// Invitations addressed to someone else are reported as not found.
func (s *InvitationService) GetInvitation(ctx context.Context, userID, invitationID string) (*domain.Invitation, error) {
	inv, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (*domain.Invitation, error) {
		return s.repo.GetInvitation(ctx, invitationID)
	})
	if err != nil {
		return nil, translateStoreError(err, "invitation not found")
	}
	if inv.LandlordID != userID && inv.TenantID != userID {
		return nil, domainerrors.NotFound("invitation not found")
	}
	return inv, nil
}

// ListInvitations returns the invitations userID issued (asLandlord) or received.
func (s *InvitationService) ListInvitations(ctx context.Context, userID string, asLandlord bool) ([]*domain.Invitation, error) {
	invs, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) ([]*domain.Invitation, error) {
		if asLandlord {
			return s.repo.ListInvitationsByLandlord(ctx, userID)
		}
		return s.repo.ListInvitationsByTenant(ctx, userID)
	})
	if err != nil {
		return nil, translateStoreError(err, "invitations not found")
	}
	if invs == nil {
		invs = []*domain.Invitation{}
	}
	return invs, nil
}

// ListPropertyInvitations returns every invitation for one of the landlord's properties.
func (s *InvitationService) ListPropertyInvitations(ctx context.Context, landlordID, propertyID string) ([]*domain.Invitation, error) {
	if _, err := s.ownedProperty(ctx, landlordID, propertyID, "only the property's landlord can list its invitations"); err != nil {
		return nil, err
	}
	invs, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) ([]*domain.Invitation, error) {
		return s.repo.ListInvitationsByProperty(ctx, propertyID)
	})
	if err != nil {
		return nil, translateStoreError(err, "property not found")
	}
	if invs == nil {
		invs = []*domain.Invitation{}
	}
	return invs, nil
}

// applyAssignment applies the outbox entry written by acceptance and returns
// the property as it stands afterwards. A failure leaves the entry pending.
func (s *InvitationService) applyAssignment(ctx context.Context, entry *domain.AssignmentEntry, warn *warnings) *domain.Property {
	_, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (bool, error) {
		return s.repo.ApplyAssignment(ctx, entry.ID, s.now())
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		// The invitation was removed between the guard and here.
		s.logger.Debug("assignment entry vanished before apply", "entry_id", entry.ID)
	case err != nil:
		s.logger.Warn("property assignment deferred to outbox",
			"entry_id", entry.ID,
			"property_id", entry.PropertyID,
			"tenant_id", entry.TenantID,
			"error", err,
		)
		recErr := storageExec(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
			return s.repo.RecordAssignmentFailure(ctx, entry.ID, err.Error())
		})
		if recErr != nil {
			s.logger.Warn("failed to record assignment failure", "entry_id", entry.ID, "error", recErr)
		}
		warn.add(StepPropertyAssignment, "property assignment is queued and will be retried")
	}

	property, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (*domain.Property, error) {
		return s.repo.GetProperty(ctx, entry.PropertyID)
	})
	if err != nil {
		s.logger.Debug("could not reload property after acceptance", "property_id", entry.PropertyID, "error", err)
		return nil
	}
	return property
}

// recordLifecycleMessage appends a tenant-authored message to the invitation's
// conversation and refreshes its preview. A missing conversation is skipped.
func (s *InvitationService) recordLifecycleMessage(ctx context.Context, inv *domain.Invitation, content string, warn *warnings) {
	conv, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (*domain.Conversation, error) {
		return s.conversations.FindConversationByInvitation(ctx, inv.ID)
	})
	if err != nil {
		s.logger.Warn("failed to look up invitation conversation", "invitation_id", inv.ID, "error", err)
		warn.add(StepConversation, "conversation could not be updated")
		return
	}
	if conv == nil {
		s.logger.Debug("no conversation for invitation, skipping message", "invitation_id", inv.ID)
		return
	}

	err = storageExec(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		if err := s.conversations.AppendMessage(ctx, conv.ID, inv.TenantID, content); err != nil {
			return err
		}
		return s.conversations.RefreshPreview(ctx, conv.ID, content, s.now())
	})
	if err != nil {
		s.logger.Warn("failed to append lifecycle message",
			"invitation_id", inv.ID,
			"conversation_id", conv.ID,
			"error", err,
		)
		warn.add(StepConversation, "conversation could not be updated")
	}
}

// notify delivers n, turning any failure into a warning.
func (s *InvitationService) notify(ctx context.Context, n domain.Notification, warn *warnings) {
	err := storageExec(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		return s.notifier.Notify(ctx, n)
	})
	if err != nil {
		s.logger.Warn("failed to notify user",
			"user_id", n.UserID,
			"type", n.Type,
			"error", err,
		)
		warn.add(StepNotification, "notification could not be delivered")
	}
}

// ownedProperty loads a property and checks that landlordID owns it.
func (s *InvitationService) ownedProperty(ctx context.Context, landlordID, propertyID, forbiddenMsg string) (*domain.Property, error) {
	property, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (*domain.Property, error) {
		return s.repo.GetProperty(ctx, propertyID)
	})
	if err != nil {
		return nil, translateStoreError(err, "property not found")
	}
	if property.LandlordID != landlordID {
		return nil, domainerrors.Forbidden(forbiddenMsg)
	}
	return property, nil
}

// requireUser fails with a validation error when tenantID is not in the directory.
func (s *InvitationService) requireUser(ctx context.Context, tenantID string) error {
	_, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (*domain.User, error) {
		return s.users.GetUser(ctx, tenantID)
	})
	if errors.Is(err, domainerrors.ErrNotFound) || errors.Is(err, store.ErrNotFound) {
		return domainerrors.ValidationWithDetails("tenant does not exist",
			map[string]string{"tenantId": "must reference an existing user"})
	}
	if err != nil {
		return translateStoreError(err, "tenant not found")
	}
	return nil
}

// displayName resolves a user's name for messages, falling back when the lookup fails.
func (s *InvitationService) displayName(ctx context.Context, userID, fallback string) string {
	u, err := storageCall(ctx, s.cfg.StorageTimeout, func(ctx context.Context) (*domain.User, error) {
		return s.users.GetUser(ctx, userID)
	})
	if err != nil || u == nil || u.Name() == "" {
		return fallback
	}
	return u.Name()
}

// transitionError maps guarded-transition failures. A guard miss is the
// expected outcome of a duplicate or concurrent request, not a server error.
func transitionError(err error) error {
	if errors.Is(err, store.ErrNotPending) {
		return domainerrors.AlreadyProcessed("invitation not found or already processed")
	}
	return translateStoreError(err, "invitation not found")
}

func propertyLabel(p *domain.Property) string {
	if p.Title != "" {
		return p.Title
	}
	if p.Address != "" {
		return p.Address
	}
	return "a property"
}
