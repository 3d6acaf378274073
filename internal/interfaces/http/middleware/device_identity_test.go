package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bizops/backend/internal/domain/device"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookieName = "bizops_device_id"

func newDeviceRouter() *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), DeviceIdentity(DeviceIdentityConfig{
		CookieName:   testCookieName,
		CookieMaxAge: 24 * time.Hour,
	}))
	router.GET("/identity", func(c *gin.Context) {
		identity, ok := GetDeviceIdentity(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"device_id":   identity.DeviceID,
			"device_type": identity.DeviceType,
			"device_name": identity.DeviceName,
		})
	})
	return router
}

func deviceCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookieName {
			return c
		}
	}
	t.Fatalf("cookie %s not set", testCookieName)
	return nil
}

func TestDeviceIdentity_HeaderWins(t *testing.T) {
	router := newDeviceRouter()

	req := httptest.NewRequest(http.MethodGet, "/identity", nil)
	req.Header.Set(DeviceIDHeader, "native-install-1")
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: "browser-install"})
	req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 14) Mobile")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"device_id":"native-install-1"`)
	assert.Contains(t, w.Body.String(), `"device_type":"mobile"`)
	assert.Contains(t, w.Body.String(), `"device_name":"Android Device"`)
	assert.Equal(t, "native-install-1", w.Header().Get(DeviceIDHeader))
	assert.Equal(t, "native-install-1", deviceCookie(t, w).Value)
}

func TestDeviceIdentity_CookieReused(t *testing.T) {
	router := newDeviceRouter()

	req := httptest.NewRequest(http.MethodGet, "/identity", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: "browser-install"})
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "browser-install", w.Header().Get(DeviceIDHeader))
	assert.Contains(t, w.Body.String(), `"device_type":"desktop"`)

	cookie := deviceCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 86400, cookie.MaxAge)
}

func TestDeviceIdentity_MintsWhenMissing(t *testing.T) {
	router := newDeviceRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/identity", nil))

	require.Equal(t, http.StatusOK, w.Code)
	minted := w.Header().Get(DeviceIDHeader)
	require.NoError(t, device.ValidateDeviceID(minted))
	assert.Equal(t, minted, deviceCookie(t, w).Value)

	// The browser sends the cookie back and keeps its identity.
	req := httptest.NewRequest(http.MethodGet, "/identity", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: minted})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, minted, w.Header().Get(DeviceIDHeader))
}

func TestDeviceIdentity_InvalidCookieReplaced(t *testing.T) {
	router := newDeviceRouter()

	req := httptest.NewRequest(http.MethodGet, "/identity", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: strings.Repeat("x", device.MaxDeviceIDLength+1)})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.LessOrEqual(t, len(w.Header().Get(DeviceIDHeader)), device.MaxDeviceIDLength)
}

func TestDeviceIdentity_InvalidHeaderRejected(t *testing.T) {
	tests := []struct {
		name     string
		deviceID string
	}{
		{"too long", strings.Repeat("y", device.MaxDeviceIDLength+1)},
		{"invalid utf8", "dev-\xff\xfe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newDeviceRouter()

			req := httptest.NewRequest(http.MethodGet, "/identity", nil)
			req.Header.Set(DeviceIDHeader, tt.deviceID)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			info := decodeError(t, w)
			require.Len(t, info.Details, 1)
			assert.Equal(t, DeviceIDHeader, info.Details[0].Field)
		})
	}
}

func TestDeviceIdentity_InvalidUTF8CookieReplaced(t *testing.T) {
	router := newDeviceRouter()

	req := httptest.NewRequest(http.MethodGet, "/identity", nil)
	req.Header.Set("Cookie", testCookieName+"=dev-\xff\xfe")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	minted := w.Header().Get(DeviceIDHeader)
	assert.NotEqual(t, "dev-\xff\xfe", minted)
	assert.NoError(t, device.ValidateDeviceID(minted))
}
