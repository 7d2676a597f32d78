package workspace

import (
	"errors"
	"net/http"

	"github.com/codehive/collab-server/internal/shared/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for the workspace registry.
type Handler struct {
	service *Service
}

// NewHandler creates a new workspace handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers workspace routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	workspaces := r.Group("/workspaces")
	{
		workspaces.POST("", h.Create)
		workspaces.GET("", h.ListMine)
		workspaces.GET("/:id", h.Get)
		workspaces.PATCH("/:id", h.Update)
		workspaces.DELETE("/:id", h.Delete)

		// Members
		workspaces.POST("/:id/members", h.AddMember)
		workspaces.GET("/:id/members", h.ListMembers)
		workspaces.PATCH("/:id/members/:user_id", h.UpdateMemberRole)
		workspaces.DELETE("/:id/members/:user_id", h.RemoveMember)
	}
}

// Create handles workspace creation.
func (h *Handler) Create(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := h.service.Create(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	members, _ := h.service.ListMembers(c.Request.Context(), ws.ID)
	c.JSON(http.StatusCreated, ws.ToResponse(members))
}

// ListMine handles listing the caller's workspaces.
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var query struct {
		Limit  int `form:"limit,default=20"`
		Offset int `form:"offset,default=0"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	workspaces, err := h.service.ListByUser(c.Request.Context(), userID, query.Limit, query.Offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspaces": workspaces})
}

// Get handles getting a workspace with its members.
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.getWorkspaceID(c)
	if !ok {
		return
	}

	ws, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	members, err := h.service.ListMembers(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ws.ToResponse(members))
}

// Update handles a partial workspace update.
func (h *Handler) Update(c *gin.Context) {
	id, ok := h.getWorkspaceID(c)
	if !ok {
		return
	}

	var req UpdateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ws.ToResponse(nil))
}

// Delete handles workspace deletion.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := h.getWorkspaceID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AddMember handles adding a workspace member.
func (h *Handler) AddMember(c *gin.Context) {
	id, ok := h.getWorkspaceID(c)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.service.AddMember(c.Request.Context(), id, req.UserID, req.Role, req.Permissions)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, member)
}

// ListMembers handles listing workspace members.
func (h *Handler) ListMembers(c *gin.Context) {
	id, ok := h.getWorkspaceID(c)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// UpdateMemberRole handles changing a member's role.
func (h *Handler) UpdateMemberRole(c *gin.Context) {
	id, ok := h.getWorkspaceID(c)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.UpdateMemberRole(c.Request.Context(), id, targetID, req.Role); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RemoveMember handles removing a workspace member.
func (h *Handler) RemoveMember(c *gin.Context) {
	id, ok := h.getWorkspaceID(c)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.service.RemoveMember(c.Request.Context(), id, targetID); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// getUserID extracts the authenticated user ID from context.
func (h *Handler) getUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}

	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		return uuid.Nil, false
	}

	return userID, true
}

// getWorkspaceID parses the workspace ID path parameter.
func (h *Handler) getWorkspaceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return uuid.Nil, false
	}
	return id, true
}

// handleError handles service errors.
func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrWorkspaceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "workspace_not_found"})
	case errors.Is(err, ErrMemberNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "member_not_found"})
	case errors.Is(err, ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": "user_already_member"})
	case errors.Is(err, ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
