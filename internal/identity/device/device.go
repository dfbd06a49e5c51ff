// Package device derives stable device references from User-Agent strings.
// Identities carry the fingerprints; agreement signatures carry the reference.
package device

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// Fingerprint hashes browser family, major version, OS and form factor.
// Minor browser upgrades keep the fingerprint; the IP address is never part of it.
func (s *Service) Fingerprint(userAgent string) string {
	if !s.enabled || userAgent == "" {
		return ""
	}

	ua := useragent.New(userAgent)
	browser, version := ua.Browser()

	major := "unknown"
	if v, _, _ := strings.Cut(version, "."); v != "" {
		major = v
	}
	platform := "desktop"
	if ua.Mobile() {
		platform = "mobile"
	}

	data := fmt.Sprintf("%s|%s|%s|%s", orUnknown(browser), major, orUnknown(ua.OS()), platform)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// Known reports whether current matches any stored fingerprint, comparing
// in constant time.
func (s *Service) Known(stored []string, current string) bool {
	if current == "" {
		return false
	}
	for _, fp := range stored {
		if subtle.ConstantTimeCompare([]byte(fp), []byte(current)) == 1 {
			return true
		}
	}
	return false
}

// Reference is the device reference recorded with an agreement signature,
// e.g. "Chrome on macOS".
func (s *Service) Reference(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

func orUnknown(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
