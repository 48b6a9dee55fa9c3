package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mill-alert-service/internal/actionitem"
	"mill-alert-service/internal/alertconfig"
	"mill-alert-service/internal/db"
	"mill-alert-service/internal/escalation"
	"mill-alert-service/internal/logging"
	"mill-alert-service/internal/models"
	"mill-alert-service/internal/ws"
)

type Handler struct {
	db        *db.DB
	logger    *logging.Logger
	scheduler *escalation.Scheduler
	items     *actionitem.Manager
	wsManager *ws.Manager
}

func NewHandler(db *db.DB, logger *logging.Logger, scheduler *escalation.Scheduler, items *actionitem.Manager, wsManager *ws.Manager) *Handler {
	return &Handler{db: db, logger: logger, scheduler: scheduler, items: items, wsManager: wsManager}
}

type raiseAlertRequest struct {
	Type    models.AlertType    `json:"type" binding:"required"`
	Context models.AlertContext `json:"context"`
}

func (h *Handler) RaiseAlert(c *gin.Context) {
	var req raiseAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid raise alert request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	id, err := h.scheduler.RaiseAlert(c.Request.Context(), req.Type, req.Context)
	if err != nil {
		if errors.Is(err, alertconfig.ErrUnknownAlertType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("Failed to raise alert: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to raise alert"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) GetAlert(c *gin.Context) {
	id := c.Param("id")
	alert, err := h.db.GetAlert(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, escalation.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		h.logger.Errorf("Failed to get alert %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alert"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) ListOpenAlerts(c *gin.Context) {
	alerts, err := h.db.ListOpenAlerts(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to list open alerts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *Handler) ListAlertsByMill(c *gin.Context) {
	millID, err := strconv.ParseInt(c.Param("mill_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mill_id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	alerts, total, err := h.db.ListAlertsByMill(c.Request.Context(), millID, limit, offset)
	if err != nil {
		h.logger.Errorf("Failed to list alerts for mill %d: %v", millID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "total": total})
}

type lifecycleRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	h.lifecycle(c, h.scheduler.Acknowledge)
}

func (h *Handler) BeginWork(c *gin.Context) {
	h.lifecycle(c, h.scheduler.BeginWork)
}

func (h *Handler) ResolveAlert(c *gin.Context) {
	h.lifecycle(c, h.scheduler.Resolve)
}

func (h *Handler) lifecycle(c *gin.Context, op func(ctx context.Context, alertID, userID string) error) {
	id := c.Param("id")
	var req lifecycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	err := op(c.Request.Context(), id, req.UserID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"id": id})
	case errors.Is(err, escalation.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
	case errors.Is(err, escalation.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Errorf("Alert lifecycle call failed for %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Operation failed"})
	}
}

type createActionItemRequest struct {
	Title          string          `json:"title" binding:"required"`
	Description    string          `json:"description"`
	Priority       models.Severity `json:"priority"`
	DueDate        time.Time       `json:"due_date" binding:"required"`
	AssignedToID   int64           `json:"assigned_to_id" binding:"required"`
	MillID         int64           `json:"mill_id"`
	RelatedAlertID string          `json:"related_alert_id"`
	CreatedBy      int64           `json:"created_by" binding:"required"`
}

func (h *Handler) CreateActionItem(c *gin.Context) {
	var req createActionItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid action item request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item, err := h.items.Create(c.Request.Context(), actionitem.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		DueDate:        req.DueDate,
		AssignedToID:   req.AssignedToID,
		MillID:         req.MillID,
		RelatedAlertID: req.RelatedAlertID,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		h.logger.Errorf("Failed to create action item: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create action item"})
		return
	}
	c.JSON(http.StatusCreated, item)
}

type updateStatusRequest struct {
	Status models.ActionItemStatus `json:"status" binding:"required"`
	UserID int64                   `json:"user_id" binding:"required"`
}

func (h *Handler) UpdateActionItemStatus(c *gin.Context) {
	id := c.Param("id")
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item, err := h.items.UpdateStatus(c.Request.Context(), id, req.Status, req.UserID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, item)
	case errors.Is(err, actionitem.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Action item not found"})
	case errors.Is(err, actionitem.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Errorf("Failed to update action item %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update action item"})
	}
}

type reassignRequest struct {
	AssigneeID int64 `json:"assignee_id" binding:"required"`
	ActorID    int64 `json:"actor_id" binding:"required"`
}

func (h *Handler) ReassignActionItem(c *gin.Context) {
	id := c.Param("id")
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item, err := h.items.Reassign(c.Request.Context(), id, req.AssigneeID, req.ActorID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, item)
	case errors.Is(err, actionitem.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Action item not found"})
	default:
		h.logger.Errorf("Failed to reassign action item %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reassign action item"})
	}
}

func (h *Handler) ListActionItemsForUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	items, err := h.items.ListForUser(c.Request.Context(), userID, filterFromQuery(c))
	if err != nil {
		h.logger.Errorf("Failed to list action items for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list action items"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) ListActionItemsForMill(c *gin.Context) {
	millID, err := strconv.ParseInt(c.Param("mill_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mill_id"})
		return
	}

	items, err := h.items.ListForMill(c.Request.Context(), millID, filterFromQuery(c))
	if err != nil {
		h.logger.Errorf("Failed to list action items for mill %d: %v", millID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list action items"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) CountOverdueActionItems(c *gin.Context) {
	var f actionitem.Filter
	if v := c.Query("mill_id"); v != "" {
		millID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mill_id"})
			return
		}
		f.MillID = millID
	}
	if v := c.Query("user_id"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
			return
		}
		f.UserID = userID
	}

	count, err := h.items.CountOverdue(c.Request.Context(), f)
	if err != nil {
		h.logger.Errorf("Failed to count overdue action items: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count overdue action items"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handler) GetNotificationsByUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	notifications, err := h.db.GetNotificationsByRecipient(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Errorf("Failed to get notifications for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocket attaches a dashboard session to the in-app notification feed.
func (h *Handler) WebSocket(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed for user %d: %v", userID, err)
		return
	}
	h.wsManager.AddConnection(userID, conn)

	go func() {
		defer func() {
			h.wsManager.RemoveConnection(userID, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func filterFromQuery(c *gin.Context) actionitem.Filter {
	var f actionitem.Filter
	if v := c.Query("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			f.Statuses = append(f.Statuses, models.ActionItemStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	if v := c.Query("priority"); v != "" {
		for _, p := range strings.Split(v, ",") {
			f.Priorities = append(f.Priorities, models.Severity(strings.ToUpper(strings.TrimSpace(p))))
		}
	}
	return f
}
