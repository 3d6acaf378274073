package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appdevice "github.com/bizops/backend/internal/application/device"
	"github.com/bizops/backend/internal/domain/device"
	"github.com/bizops/backend/internal/domain/identity"
	"github.com/bizops/backend/internal/domain/shared"
	"github.com/bizops/backend/internal/infrastructure/auth"
	"github.com/bizops/backend/internal/interfaces/http/dto"
	"github.com/bizops/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

type mockAdmission struct {
	mock.Mock
}

func (m *mockAdmission) Check(ctx context.Context, input appdevice.CheckInput) *appdevice.Decision {
	args := m.Called(ctx, input)
	return args.Get(0).(*appdevice.Decision)
}

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) List(ctx context.Context, tenantID uuid.UUID, query appdevice.ListSessionsQuery) ([]appdevice.SessionResponse, int64, error) {
	args := m.Called(ctx, tenantID, query)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]appdevice.SessionResponse), args.Get(1).(int64), args.Error(2)
}

func (m *mockSessions) Usage(ctx context.Context, tenantID uuid.UUID) (*appdevice.UsageResponse, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appdevice.UsageResponse), args.Error(1)
}

func (m *mockSessions) Revoke(ctx context.Context, tenantID, sessionID uuid.UUID) (*appdevice.SessionResponse, error) {
	args := m.Called(ctx, tenantID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appdevice.SessionResponse), args.Error(1)
}

type deviceHandlerFixture struct {
	router    *gin.Engine
	admission *mockAdmission
	sessions  *mockSessions
}

// newDeviceHandlerFixture mounts the handler behind a stub auth step that
// installs principal (skipped when principal is nil).
func newDeviceHandlerFixture(principal *auth.Principal) *deviceHandlerFixture {
	f := &deviceHandlerFixture{admission: &mockAdmission{}, sessions: &mockSessions{}}

	router := gin.New()
	router.Use(middleware.RequestID(), func(c *gin.Context) {
		if principal != nil {
			c.Set(middleware.PrincipalKey, *principal)
		}
		c.Next()
	})
	identity := middleware.DeviceIdentity(middleware.DeviceIdentityConfig{
		CookieName:   "bizops_device_id",
		CookieMaxAge: time.Hour,
	})
	NewDeviceHandler(f.admission, f.sessions).RegisterRoutes(router.Group("/api/v1"), identity)
	f.router = router
	return f
}

func (f *deviceHandlerFixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, data any) dto.Response {
	t.Helper()
	resp := dto.Response{Data: data}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCheckAdmission_Admitted(t *testing.T) {
	principal := auth.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	f := newDeviceHandlerFixture(&principal)

	f.admission.On("Check", mock.Anything, mock.MatchedBy(func(in appdevice.CheckInput) bool {
		return in.TenantID == principal.TenantID &&
			in.PrincipalID == principal.UserID &&
			in.Identity.DeviceID == "install-1" &&
			in.Identity.DeviceType == device.TypeMobile &&
			in.Identity.DeviceName == "iPhone"
	})).Return(&appdevice.Decision{
		Outcome:     appdevice.OutcomeAdmitted,
		Allowed:     true,
		DeviceID:    "install-1",
		DeviceType:  device.TypeMobile,
		Plan:        identity.TenantPlanPro,
		ActiveCount: device.Counts{Mobile: 1},
		Limits:      device.Limits{Desktop: 1, Mobile: 2},
	})

	w := f.do(http.MethodPost, "/api/v1/devices/admission", "", map[string]string{
		middleware.DeviceIDHeader: "install-1",
		"User-Agent":              "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var body dto.AdmissionResponse
	resp := decodeResponse(t, w, &body)
	assert.True(t, resp.Success)
	assert.True(t, body.Allowed)
	assert.Equal(t, appdevice.OutcomeAdmitted, body.Outcome)
	assert.Equal(t, "pro", body.Plan)
	assert.Equal(t, device.Limits{Desktop: 1, Mobile: 2}, body.Limits)
	assert.Equal(t, "install-1", w.Header().Get(middleware.DeviceIDHeader))
	f.admission.AssertExpectations(t)
}

func TestCheckAdmission_DeniedIsStill200(t *testing.T) {
	principal := auth.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	f := newDeviceHandlerFixture(&principal)

	message := device.DenialMessage(device.TypeDesktop, 1, identity.TenantPlanFree)
	f.admission.On("Check", mock.Anything, mock.Anything).Return(&appdevice.Decision{
		Outcome:    appdevice.OutcomeDenied,
		DeviceID:   "install-2",
		DeviceType: device.TypeDesktop,
		Plan:       identity.TenantPlanFree,
		Error:      message,
	})

	w := f.do(http.MethodPost, "/api/v1/devices/admission", "", map[string]string{middleware.DeviceIDHeader: "install-2"})

	require.Equal(t, http.StatusOK, w.Code)
	var body dto.AdmissionResponse
	decodeResponse(t, w, &body)
	assert.False(t, body.Allowed)
	assert.Equal(t, "Limit of 1 desktop device(s) reached for the FREE plan.", body.Error)
}

func TestCheckAdmission_DeviceNameOverride(t *testing.T) {
	principal := auth.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	f := newDeviceHandlerFixture(&principal)

	f.admission.On("Check", mock.Anything, mock.MatchedBy(func(in appdevice.CheckInput) bool {
		return in.Identity.DeviceName == "Front desk"
	})).Return(&appdevice.Decision{Outcome: appdevice.OutcomeAdmitted, Allowed: true})

	w := f.do(http.MethodPost, "/api/v1/devices/admission", `{"device_name":"Front desk"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	f.admission.AssertExpectations(t)
}

func TestCheckAdmission_BadBody(t *testing.T) {
	principal := auth.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	f := newDeviceHandlerFixture(&principal)

	w := f.do(http.MethodPost, "/api/v1/devices/admission", `{"device_name":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeInvalidJSON)

	w = f.do(http.MethodPost, "/api/v1/devices/admission", `{"device_name":"`+strings.Repeat("n", 101)+`"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeValidation)

	f.admission.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}

func TestCheckAdmission_ChunkedEmptyBody(t *testing.T) {
	principal := auth.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	f := newDeviceHandlerFixture(&principal)

	f.admission.On("Check", mock.Anything, mock.Anything).
		Return(&appdevice.Decision{Outcome: appdevice.OutcomeAdmitted, Allowed: true})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/admission", io.NopCloser(strings.NewReader("")))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body dto.AdmissionResponse
	decodeResponse(t, w, &body)
	assert.True(t, body.Allowed)
	f.admission.AssertExpectations(t)
}

func TestCheckAdmission_TenantlessPrincipalPassesThrough(t *testing.T) {
	principal := auth.Principal{UserID: uuid.New()}
	f := newDeviceHandlerFixture(&principal)

	f.admission.On("Check", mock.Anything, mock.MatchedBy(func(in appdevice.CheckInput) bool {
		return in.TenantID == uuid.Nil
	})).Return(&appdevice.Decision{Outcome: appdevice.OutcomeDeferred})

	w := f.do(http.MethodPost, "/api/v1/devices/admission", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body dto.AdmissionResponse
	decodeResponse(t, w, &body)
	assert.Equal(t, appdevice.OutcomeDeferred, body.Outcome)
	assert.False(t, body.Allowed)
}

func TestCheckAdmission_Unauthenticated(t *testing.T) {
	f := newDeviceHandlerFixture(nil)

	w := f.do(http.MethodPost, "/api/v1/devices/admission", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListDevices(t *testing.T) {
	principal := auth.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	f := newDeviceHandlerFixture(&principal)

	sessions := []appdevice.SessionResponse{{ID: uuid.New(), DeviceID: "a", DeviceType: device.TypeDesktop, IsActive: true, HoldsSlot: true}}
	f.sessions.On("List", mock.Anything, principal.TenantID, appdevice.ListSessionsQuery{
		Page: 2, PageSize: 1, OrderBy: "created_at", OrderDir: "asc", DeviceType: device.TypeDesktop, ActiveOnly: true,
	}).Return(sessions, int64(3), nil)

	w := f.do(http.MethodGet, "/api/v1/devices?page=2&page_size=1&device_type=desktop&active_only=true", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body []appdevice.SessionResponse
	resp := decodeResponse(t, w, &body)
	require.Len(t, body, 1)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(3), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	f.sessions.AssertExpectations(t)
}

func TestListDevices_Validation(t *testing.T) {
	principal := auth.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	f := newDeviceHandlerFixture(&principal)

	w := f.do(http.MethodGet, "/api/v1/devices?device_type=tablet", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/v1/devices?page_size=1000", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDevices_RequiresTenant(t *testing.T) {
	f := newDeviceHandlerFixture(&auth.Principal{UserID: uuid.New()})

	w := f.do(http.MethodGet, "/api/v1/devices", "", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeNoTenant)
}

func TestUsage(t *testing.T) {
	principal := auth.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	f := newDeviceHandlerFixture(&principal)

	f.sessions.On("Usage", mock.Anything, principal.TenantID).Return(&appdevice.UsageResponse{
		TenantID:    principal.TenantID,
		Plan:        "premium",
		Limits:      device.Limits{Desktop: 1, Mobile: 9},
		ActiveCount: device.Counts{Desktop: 1, Mobile: 4},
	}, nil)

	w := f.do(http.MethodGet, "/api/v1/devices/usage", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body appdevice.UsageResponse
	decodeResponse(t, w, &body)
	assert.Equal(t, 9, body.Limits.Mobile)
	assert.Equal(t, 4, body.ActiveCount.Mobile)
}

func TestUsage_TenantNotFound(t *testing.T) {
	principal := auth.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	f := newDeviceHandlerFixture(&principal)

	f.sessions.On("Usage", mock.Anything, principal.TenantID).
		Return(nil, shared.NewDomainError("TENANT_NOT_FOUND", "Tenant not found"))

	w := f.do(http.MethodGet, "/api/v1/devices/usage", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeTenantNotFound)
}

func TestRevoke(t *testing.T) {
	principal := auth.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	f := newDeviceHandlerFixture(&principal)
	sessionID := uuid.New()
	revokedAt := time.Now().UTC()

	f.sessions.On("Revoke", mock.Anything, principal.TenantID, sessionID).
		Return(&appdevice.SessionResponse{ID: sessionID, IsActive: false, RevokedAt: &revokedAt}, nil)

	w := f.do(http.MethodDelete, "/api/v1/devices/"+sessionID.String(), "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body appdevice.SessionResponse
	decodeResponse(t, w, &body)
	assert.False(t, body.IsActive)
	assert.NotNil(t, body.RevokedAt)
}

func TestRevoke_Errors(t *testing.T) {
	principal := auth.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	f := newDeviceHandlerFixture(&principal)

	t.Run("invalid id", func(t *testing.T) {
		w := f.do(http.MethodDelete, "/api/v1/devices/not-a-uuid", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		f.sessions.On("Revoke", mock.Anything, principal.TenantID, id).Return(nil, shared.ErrNotFound)

		w := f.do(http.MethodDelete, "/api/v1/devices/"+id.String(), "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("already revoked", func(t *testing.T) {
		id := uuid.New()
		f.sessions.On("Revoke", mock.Anything, principal.TenantID, id).
			Return(nil, shared.NewDomainError("ALREADY_REVOKED", "Device session is already revoked"))

		w := f.do(http.MethodDelete, "/api/v1/devices/"+id.String(), "", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		id := uuid.New()
		f.sessions.On("Revoke", mock.Anything, principal.TenantID, id).Return(nil, errors.New("connection reset"))

		w := f.do(http.MethodDelete, "/api/v1/devices/"+id.String(), "", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})
}
