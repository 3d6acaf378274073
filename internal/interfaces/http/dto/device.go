package dto

import (
	appdevice "github.com/bizops/backend/internal/application/device"
	"github.com/bizops/backend/internal/domain/device"
)

// AdmissionRequest is the optional body of an admission check
type AdmissionRequest struct {
	DeviceName string `json:"device_name" binding:"omitempty,max=100"`
}

// AdmissionResponse is the decision returned to the client shell
type AdmissionResponse struct {
	Allowed     bool              `json:"allowed"`
	Outcome     appdevice.Outcome `json:"outcome"`
	DeviceID    string            `json:"device_id"`
	DeviceType  device.Type       `json:"device_type"`
	Plan        string            `json:"plan,omitempty"`
	ActiveCount device.Counts     `json:"active_count"`
	Limits      device.Limits     `json:"limits"`
	Error       string            `json:"error,omitempty"`
}

// ToAdmissionResponse converts an admission decision
func ToAdmissionResponse(d *appdevice.Decision) AdmissionResponse {
	return AdmissionResponse{
		Allowed:     d.Allowed,
		Outcome:     d.Outcome,
		DeviceID:    d.DeviceID,
		DeviceType:  d.DeviceType,
		Plan:        d.Plan.String(),
		ActiveCount: d.ActiveCount,
		Limits:      d.Limits,
		Error:       d.Error,
	}
}

// ListDevicesRequest holds the query parameters of the session listing
type ListDevicesRequest struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string `form:"order_by"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	DeviceType string `form:"device_type" binding:"omitempty,oneof=desktop mobile"`
	ActiveOnly bool   `form:"active_only"`
}

// DefaultListDevicesRequest returns a listing request with defaults
func DefaultListDevicesRequest() ListDevicesRequest {
	return ListDevicesRequest{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "asc",
	}
}

// ToQuery converts the request into a service query
func (r ListDevicesRequest) ToQuery() appdevice.ListSessionsQuery {
	return appdevice.ListSessionsQuery{
		Page:       r.Page,
		PageSize:   r.PageSize,
		OrderBy:    r.OrderBy,
		OrderDir:   r.OrderDir,
		DeviceType: device.Type(r.DeviceType),
		ActiveOnly: r.ActiveOnly,
	}
}

// DeviceHeaders carries the installation token sent by native clients
type DeviceHeaders struct {
	DeviceID string `header:"X-Device-ID" binding:"omitempty,device_id"`
}
