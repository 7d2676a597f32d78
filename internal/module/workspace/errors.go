package workspace

import "errors"

var (
	// ErrWorkspaceNotFound is returned when a workspace does not exist.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrMemberNotFound is returned when a workspace member does not exist.
	ErrMemberNotFound = errors.New("workspace member not found")
	// ErrAlreadyMember is returned when adding a user who is already a member.
	// Duplicate adds are rejected rather than upserted so a re-add can never
	// silently change an existing member's role or permissions.
	ErrAlreadyMember = errors.New("user is already a workspace member")
	// ErrInvalidRole is returned when a role is not one of the known roles.
	ErrInvalidRole = errors.New("invalid workspace role")
)
