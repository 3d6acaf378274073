package device

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bizops/backend/internal/domain/shared"
)

// Type is the device class quotas are partitioned by
type Type string

const (
	TypeDesktop Type = "desktop"
	TypeMobile  Type = "mobile"
)

// Types lists every device class in display order
var Types = []Type{TypeDesktop, TypeMobile}

// String returns the class name as used in user-facing messages
func (t Type) String() string {
	return string(t)
}

// IsValid reports whether t is a known class
func (t Type) IsValid() bool {
	return t == TypeDesktop || t == TypeMobile
}

// MaxDeviceIDLength bounds the opaque installation token
const MaxDeviceIDLength = 128

// ErrInvalidDeviceID is returned for a device id that cannot be stored
var ErrInvalidDeviceID = shared.NewDomainError("INVALID_DEVICE_ID", "Device id must be 1-128 printable characters without whitespace")

// Identity describes one client installation
type Identity struct {
	DeviceID   string
	DeviceType Type
	DeviceName string
}

var mobileSignature = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini|mobile`)

// Classify derives the device class from a user-agent-like string.
func Classify(userAgent string) Type {
	if mobileSignature.MatchString(userAgent) {
		return TypeMobile
	}
	return TypeDesktop
}

// DefaultDeviceName is used when no platform token is recognised
const DefaultDeviceName = "Unknown Device"

var nameRules = []struct {
	token string
	name  string
}{
	{"iphone", "iPhone"},
	{"ipad", "iPad"},
	{"android", "Android Device"},
	{"windows", "Windows PC"},
	{"mac", "Mac"},
	{"linux", "Linux PC"},
}

// Label returns the human-readable device name. First matching rule wins.
func Label(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, rule := range nameRules {
		if strings.Contains(ua, rule.token) {
			return rule.name
		}
	}
	return DefaultDeviceName
}

// ValidateDeviceID checks that id can be stored as a device token
func ValidateDeviceID(id string) error {
	if id == "" || len(id) > MaxDeviceIDLength || !utf8.ValidString(id) {
		return ErrInvalidDeviceID
	}
	for _, r := range id {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return ErrInvalidDeviceID
		}
	}
	return nil
}
