package collaboration

import (
	"errors"
	"net/http"

	"github.com/codehive/collab-server/internal/shared/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for collaboration sessions.
type Handler struct {
	service    *Service
	eventLimit int
}

// NewHandler creates a new collaboration handler. eventLimit is the page
// size used for event queries when the caller does not pass one.
func NewHandler(service *Service, eventLimit int) *Handler {
	if eventLimit <= 0 {
		eventLimit = 50
	}
	return &Handler{service: service, eventLimit: eventLimit}
}

// RegisterRoutes registers collaboration routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	collab := r.Group("/collaboration")
	{
		sessions := collab.Group("/sessions")
		{
			sessions.POST("", h.CreateSession)
			sessions.GET("", h.ListSessions)
			sessions.GET("/:id", h.GetSession)
			sessions.POST("/:id/join", h.JoinSession)
			sessions.POST("/:id/leave", h.LeaveSession)
			sessions.POST("/:id/deactivate", h.DeactivateSession)
			sessions.GET("/:id/events", h.GetSessionEvents)
			sessions.POST("/:id/events", h.RecordEvent)
			sessions.GET("/:id/cursors", h.GetActiveCursors)
			sessions.GET("/:id/comments", h.GetSessionComments)
		}

		collab.GET("/events/:id", h.GetEvent)
		collab.POST("/cursor", h.UpdateCursor)

		comments := collab.Group("/comments")
		{
			comments.POST("", h.AddComment)
			comments.GET("/:id", h.GetComment)
			comments.POST("/:id/resolve", h.ResolveComment)
			comments.POST("/:id/unresolve", h.UnresolveComment)
		}
	}
}

// ========== Session Handlers ==========

// CreateSession handles session creation.
func (h *Handler) CreateSession(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// ListSessions handles listing sessions for a workspace.
func (h *Handler) ListSessions(c *gin.Context) {
	var query struct {
		WorkspaceID uuid.UUID `form:"workspace_id" binding:"required"`
		Limit       int       `form:"limit,default=20"`
		Offset      int       `form:"offset,default=0"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessions, err := h.service.ListWorkspaceSessions(c.Request.Context(), query.WorkspaceID, query.Limit, query.Offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession handles getting a session.
func (h *Handler) GetSession(c *gin.Context) {
	id, ok := h.getSessionID(c)
	if !ok {
		return
	}

	session, err := h.service.GetSession(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// JoinSession handles joining a session.
func (h *Handler) JoinSession(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}
	id, ok := h.getSessionID(c)
	if !ok {
		return
	}

	session, err := h.service.JoinSession(c.Request.Context(), id, userID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// LeaveSession handles leaving a session.
func (h *Handler) LeaveSession(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}
	id, ok := h.getSessionID(c)
	if !ok {
		return
	}

	if err := h.service.LeaveSession(c.Request.Context(), id, userID); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeactivateSession handles deactivating a session.
func (h *Handler) DeactivateSession(c *gin.Context) {
	id, ok := h.getSessionID(c)
	if !ok {
		return
	}

	if err := h.service.DeactivateSession(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ========== Event Handlers ==========

// GetSessionEvents handles fetching a session's recent events in
// chronological order.
func (h *Handler) GetSessionEvents(c *gin.Context) {
	id, ok := h.getSessionID(c)
	if !ok {
		return
	}

	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if query.Limit <= 0 {
		query.Limit = h.eventLimit
	}

	events, err := h.service.GetSessionEvents(c.Request.Context(), id, query.Limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// RecordEvent handles logging an edit or file event.
func (h *Handler) RecordEvent(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}
	id, ok := h.getSessionID(c)
	if !ok {
		return
	}

	var req RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.service.RecordEvent(c.Request.Context(), id, userID, req.EventType, req.Payload)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"event": event})
}

// GetEvent handles getting a single event.
func (h *Handler) GetEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	event, err := h.service.GetEvent(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": event})
}

// ========== Cursor Handlers ==========

// UpdateCursor handles a live cursor position update.
func (h *Handler) UpdateCursor(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}
	userName := c.GetString(middleware.UserNameKey)

	var req UpdateCursorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.service.UpdateCursor(c.Request.Context(), userID, userName, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetActiveCursors handles listing a session's live cursors.
func (h *Handler) GetActiveCursors(c *gin.Context) {
	id, ok := h.getSessionID(c)
	if !ok {
		return
	}

	cursors, err := h.service.ActiveCursors(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cursors": cursors})
}

// ========== Comment Handlers ==========

// AddComment handles adding an anchored code comment.
func (h *Handler) AddComment(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.service.AddComment(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// GetComment handles getting a single comment.
func (h *Handler) GetComment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment id"})
		return
	}

	comment, err := h.service.GetComment(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// GetSessionComments handles listing comments for a session, optionally
// filtered to one file.
func (h *Handler) GetSessionComments(c *gin.Context) {
	id, ok := h.getSessionID(c)
	if !ok {
		return
	}

	filePath := c.Query("file_path")

	var comments []*CodeComment
	var err error
	if filePath != "" {
		comments, err = h.service.GetFileComments(c.Request.Context(), id, filePath)
	} else {
		comments, err = h.service.ListSessionComments(c.Request.Context(), id)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// ResolveComment handles marking a comment resolved.
func (h *Handler) ResolveComment(c *gin.Context) {
	h.setCommentResolved(c, true)
}

// UnresolveComment handles marking a comment unresolved.
func (h *Handler) UnresolveComment(c *gin.Context) {
	h.setCommentResolved(c, false)
}

func (h *Handler) setCommentResolved(c *gin.Context, resolved bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment id"})
		return
	}

	if resolved {
		err = h.service.ResolveComment(c.Request.Context(), id)
	} else {
		err = h.service.UnresolveComment(c.Request.Context(), id)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ========== Helpers ==========

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

// getSessionID parses the session ID path parameter.
func (h *Handler) getSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return uuid.Nil, false
	}
	return id, true
}

// handleError handles service errors.
func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
	case errors.Is(err, ErrSessionInactive):
		c.JSON(http.StatusGone, gin.H{"error": "session_inactive"})
	case errors.Is(err, ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "event_not_found"})
	case errors.Is(err, ErrInvalidEventType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_event_type"})
	case errors.Is(err, ErrCommentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "comment_not_found"})
	case errors.Is(err, ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_comment_content"})
	case errors.Is(err, ErrInvalidColumnRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_column_range"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
