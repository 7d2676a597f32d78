package workspace

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service provides workspace registry business logic.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new workspace service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Create creates a new workspace. The owner becomes the first member.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req *CreateWorkspaceRequest) (*Workspace, error) {
	settings := req.Settings
	if settings == nil {
		settings = map[string]any{}
	}

	ws := &Workspace{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Settings:    settings,
	}

	member := &Member{
		WorkspaceID: ws.ID,
		UserID:      ownerID,
		Role:        RoleOwner,
		Permissions: []string{"read", "write", "admin"},
		JoinedAt:    time.Now(),
	}
	if err := s.repo.CreateWithOwner(ctx, ws, member); err != nil {
		return nil, err
	}

	s.logger.Info("workspace created",
		zap.String("workspace_id", ws.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("name", ws.Name),
	)

	return ws, nil
}

// Get retrieves a workspace by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Workspace, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByUser lists workspaces the user belongs to.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Workspace, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Update applies a partial update to a workspace.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateWorkspaceRequest) (*Workspace, error) {
	ws, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		ws.Name = *req.Name
	}
	if req.Description != nil {
		ws.Description = *req.Description
	}
	if req.IsPublic != nil {
		ws.IsPublic = *req.IsPublic
	}
	if req.Settings != nil {
		ws.Settings = *req.Settings
	}

	if err := s.repo.Update(ctx, ws); err != nil {
		return nil, err
	}

	return ws, nil
}

// Delete deletes a workspace and, through the database cascade, its members,
// sessions, events and comments. Live cursors of the deleted sessions are not
// touched here; they age out of the presence store within one TTL.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("workspace deleted", zap.String("workspace_id", id.String()))
	return nil
}

// AddMember adds a member to a workspace. Adding a user who is already a
// member is rejected: the caller must use UpdateMemberRole to change role or
// permissions, a re-add must never escalate them.
func (s *Service) AddMember(ctx context.Context, workspaceID, userID uuid.UUID, role Role, permissions []string) (*Member, error) {
	if role == "" {
		role = RoleMember
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	if _, err := s.repo.GetByID(ctx, workspaceID); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetMember(ctx, workspaceID, userID)
	if err != nil && !errors.Is(err, ErrMemberNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}

	member := &Member{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		Permissions: permissions,
		JoinedAt:    time.Now(),
	}

	if err := s.repo.AddMember(ctx, member); err != nil {
		return nil, err
	}

	s.logger.Info("workspace member added",
		zap.String("workspace_id", workspaceID.String()),
		zap.String("user_id", userID.String()),
		zap.String("role", string(role)),
	)

	return member, nil
}

// ListMembers lists workspace members ordered by join time.
func (s *Service) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]Member, error) {
	if _, err := s.repo.GetByID(ctx, workspaceID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, workspaceID)
}

// UpdateMemberRole changes an existing member's role.
func (s *Service) UpdateMemberRole(ctx context.Context, workspaceID, userID uuid.UUID, role Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	return s.repo.UpdateMemberRole(ctx, workspaceID, userID, role)
}

// RemoveMember removes a member from a workspace.
func (s *Service) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	return s.repo.RemoveMember(ctx, workspaceID, userID)
}
