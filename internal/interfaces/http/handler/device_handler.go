package handler

import (
	"context"
	"errors"
	"io"

	appdevice "github.com/bizops/backend/internal/application/device"
	"github.com/bizops/backend/internal/interfaces/http/dto"
	"github.com/bizops/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdmissionChecker runs one admission cycle
type AdmissionChecker interface {
	Check(ctx context.Context, input appdevice.CheckInput) *appdevice.Decision
}

// SessionManager serves the tenant's device registry
type SessionManager interface {
	List(ctx context.Context, tenantID uuid.UUID, query appdevice.ListSessionsQuery) ([]appdevice.SessionResponse, int64, error)
	Usage(ctx context.Context, tenantID uuid.UUID) (*appdevice.UsageResponse, error)
	Revoke(ctx context.Context, tenantID, sessionID uuid.UUID) (*appdevice.SessionResponse, error)
}

// DeviceHandler handles device admission and registry endpoints
type DeviceHandler struct {
	BaseHandler
	admission AdmissionChecker
	sessions  SessionManager
}

// NewDeviceHandler creates a new DeviceHandler
func NewDeviceHandler(admission AdmissionChecker, sessions SessionManager) *DeviceHandler {
	return &DeviceHandler{admission: admission, sessions: sessions}
}

// CheckAdmission handles POST /api/v1/devices/admission
//
// Always answers 200 with the decision; a denial is a decision, not an error.
func (h *DeviceHandler) CheckAdmission(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	identity, ok := middleware.GetDeviceIdentity(c)
	if !ok {
		h.InternalError(c, "Device identity was not resolved")
		return
	}

	// The body is optional; a chunked request may still carry none.
	var req dto.AdmissionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			h.BindError(c, err)
			return
		}
	}
	if req.DeviceName != "" {
		identity.DeviceName = req.DeviceName
	}

	decision := h.admission.Check(c.Request.Context(), appdevice.CheckInput{
		TenantID:    principal.TenantID,
		PrincipalID: principal.UserID,
		Identity:    identity,
	})
	h.Success(c, dto.ToAdmissionResponse(decision))
}

// List handles GET /api/v1/devices
func (h *DeviceHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	req := dto.DefaultListDevicesRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	sessions, total, err := h.sessions.List(c.Request.Context(), tenantID, req.ToQuery())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, sessions, total, req.Page, req.PageSize)
}

// Usage handles GET /api/v1/devices/usage
func (h *DeviceHandler) Usage(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	usage, err := h.sessions.Usage(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, usage)
}

// Revoke handles DELETE /api/v1/devices/:id
func (h *DeviceHandler) Revoke(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BindError(c, err)
		return
	}
	sessionID, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid session id")
		return
	}

	session, err := h.sessions.Revoke(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session)
}

// RegisterRoutes mounts the device routes on rg
func (h *DeviceHandler) RegisterRoutes(rg *gin.RouterGroup, identity gin.HandlerFunc) {
	devices := rg.Group("/devices")
	devices.POST("/admission", identity, h.CheckAdmission)
	devices.GET("", h.List)
	devices.GET("/usage", h.Usage)
	devices.DELETE("/:id", h.Revoke)
}
