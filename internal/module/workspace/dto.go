package workspace

import (
	"time"

	"github.com/codehive/collab-server/internal/shared/jsontype"
	"github.com/google/uuid"
)

// CreateWorkspaceRequest represents a request to create a workspace.
type CreateWorkspaceRequest struct {
	Name        string       `json:"name" binding:"required,min=1,max=100"`
	Description string       `json:"description" binding:"max=500"`
	IsPublic    bool         `json:"is_public"`
	Settings    jsontype.Map `json:"settings"`
}

// UpdateWorkspaceRequest represents a partial workspace update.
type UpdateWorkspaceRequest struct {
	Name        *string       `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string       `json:"description" binding:"omitempty,max=500"`
	IsPublic    *bool         `json:"is_public"`
	Settings    *jsontype.Map `json:"settings"`
}

// AddMemberRequest represents a request to add a workspace member.
type AddMemberRequest struct {
	UserID      uuid.UUID        `json:"user_id" binding:"required"`
	Role        Role             `json:"role" binding:"omitempty,oneof=owner admin member viewer"`
	Permissions jsontype.Strings `json:"permissions"`
}

// UpdateMemberRoleRequest represents a request to change a member's role.
type UpdateMemberRoleRequest struct {
	Role Role `json:"role" binding:"required,oneof=admin member viewer"`
}

// WorkspaceResponse represents a workspace in API responses.
type WorkspaceResponse struct {
	ID          uuid.UUID    `json:"id"`
	OwnerID     uuid.UUID    `json:"owner_id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	IsPublic    bool         `json:"is_public"`
	Settings    jsontype.Map `json:"settings"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	Members []Member `json:"members,omitempty"`
}

// ToResponse converts a Workspace to WorkspaceResponse.
func (w *Workspace) ToResponse(members []Member) *WorkspaceResponse {
	return &WorkspaceResponse{
		ID:          w.ID,
		OwnerID:     w.OwnerID,
		Name:        w.Name,
		Description: w.Description,
		IsPublic:    w.IsPublic,
		Settings:    w.Settings,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
		Members:     members,
	}
}
