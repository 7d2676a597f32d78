package workspace

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for workspace data access.
type Repository interface {
	// Workspace operations
	CreateWithOwner(ctx context.Context, ws *Workspace, owner *Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*Workspace, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Workspace, error)
	Update(ctx context.Context, ws *Workspace) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Member operations
	AddMember(ctx context.Context, member *Member) error
	GetMember(ctx context.Context, workspaceID, userID uuid.UUID) (*Member, error)
	ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]Member, error)
	UpdateMemberRole(ctx context.Context, workspaceID, userID uuid.UUID, role Role) error
	RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error
}

// repository implements Repository using GORM.
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new workspace repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// CreateWithOwner creates a workspace and its owner membership in one
// transaction. A workspace row must never exist without its owner member.
func (r *repository) CreateWithOwner(ctx context.Context, ws *Workspace, owner *Member) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ws).Error; err != nil {
			return err
		}
		return tx.Create(owner).Error
	})
}

// GetByID retrieves a workspace by ID.
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Workspace, error) {
	var ws Workspace
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&ws).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, err
	}
	return &ws, nil
}

// ListByUser lists workspaces the user is a member of.
func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Workspace, error) {
	if limit <= 0 {
		limit = 20
	}

	var workspaces []*Workspace
	err := r.db.WithContext(ctx).
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ?", userID).
		Order("workspaces.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&workspaces).Error
	if err != nil {
		return nil, err
	}
	return workspaces, nil
}

// Update updates a workspace.
func (r *repository) Update(ctx context.Context, ws *Workspace) error {
	return r.db.WithContext(ctx).Save(ws).Error
}

// Delete deletes a workspace. Members, sessions, events and comments go with
// it through the foreign key cascade.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&Workspace{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWorkspaceNotFound
	}
	return nil
}

// AddMember adds a member to a workspace.
func (r *repository) AddMember(ctx context.Context, member *Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// GetMember retrieves a workspace member.
func (r *repository) GetMember(ctx context.Context, workspaceID, userID uuid.UUID) (*Member, error) {
	var member Member
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// ListMembers lists all members of a workspace ordered by join time.
func (r *repository) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]Member, error) {
	var members []Member
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// UpdateMemberRole updates a member's role.
func (r *repository) UpdateMemberRole(ctx context.Context, workspaceID, userID uuid.UUID, role Role) error {
	result := r.db.WithContext(ctx).
		Model(&Member{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Updates(map[string]interface{}{"role": role, "updated_at": gorm.Expr("NOW()")})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// RemoveMember removes a member from a workspace.
func (r *repository) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Delete(&Member{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}
