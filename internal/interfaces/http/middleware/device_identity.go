package middleware

import (
	"net/http"
	"time"

	"github.com/bizops/backend/internal/domain/device"
	"github.com/bizops/backend/internal/infrastructure/logger"
	"github.com/bizops/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Device identity keys
const (
	DeviceIDHeader    = "X-Device-ID"
	DeviceIdentityKey = "device_identity"
)

// DeviceIdentityConfig configures how browser installations persist their id
type DeviceIdentityConfig struct {
	CookieName   string
	CookieMaxAge time.Duration
	Secure       bool
}

// DeviceIdentity resolves the calling installation's identity.
// Native clients send X-Device-ID; browsers keep the id in a cookie. A caller
// with neither gets a fresh id, returned in both the cookie and the response header.
func DeviceIdentity(cfg DeviceIdentityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var headers dto.DeviceHeaders
		if err := c.ShouldBindHeader(&headers); err != nil {
			HandleValidationError(c, err)
			c.Abort()
			return
		}

		store := &requestIdentityStore{header: headers.DeviceID}
		if v, err := c.Cookie(cfg.CookieName); err == nil {
			store.cookie = v
		}
		identity := device.ResolveIdentity(store, c.Request.UserAgent())

		if store.minted {
			logger.L(c.Request.Context()).Debug("Issued new device id")
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, identity.DeviceID, int(cfg.CookieMaxAge.Seconds()), "/", "", cfg.Secure, true)
		c.Header(DeviceIDHeader, identity.DeviceID)

		c.Set(DeviceIdentityKey, identity)
		c.Request = c.Request.WithContext(logger.WithDeviceID(c.Request.Context(), identity.DeviceID))
		c.Next()
	}
}

// GetDeviceIdentity returns the identity resolved by DeviceIdentity
func GetDeviceIdentity(c *gin.Context) (device.Identity, bool) {
	v, ok := c.Get(DeviceIdentityKey)
	if !ok {
		return device.Identity{}, false
	}
	id, ok := v.(device.Identity)
	return id, ok
}

// requestIdentityStore adapts one request's header and cookie to device.IdentityStore.
// Saving only marks the id as minted; the cookie is written by the middleware.
type requestIdentityStore struct {
	header string
	cookie string
	minted bool
}

func (s *requestIdentityStore) Load() (string, error) {
	if s.header != "" {
		return s.header, nil
	}
	return s.cookie, nil
}

func (s *requestIdentityStore) Save(deviceID string) error {
	s.header = ""
	s.cookie = deviceID
	s.minted = true
	return nil
}
