package workspace

import (
	"time"

	"github.com/codehive/collab-server/internal/shared/jsontype"
	"github.com/google/uuid"
)

// Role represents a workspace member's role.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Workspace represents a development workspace.
type Workspace struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID     uuid.UUID    `json:"owner_id" gorm:"type:uuid;not null;index"`
	Name        string       `json:"name" gorm:"not null"`
	Description string       `json:"description,omitempty"`
	IsPublic    bool         `json:"is_public" gorm:"not null;default:false"`
	Settings    jsontype.Map `json:"settings" gorm:"type:jsonb"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// Relations (not loaded by default)
	Members []Member `json:"members,omitempty" gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name.
func (Workspace) TableName() string {
	return "workspaces"
}

// Member represents a workspace member. The (workspace, user) pair is unique.
type Member struct {
	WorkspaceID uuid.UUID        `json:"workspace_id" gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID        `json:"user_id" gorm:"type:uuid;primaryKey"`
	Role        Role             `json:"role" gorm:"not null;default:member"`
	Permissions jsontype.Strings `json:"permissions" gorm:"type:jsonb"`
	JoinedAt    time.Time        `json:"joined_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName returns the database table name.
func (Member) TableName() string {
	return "workspace_members"
}
