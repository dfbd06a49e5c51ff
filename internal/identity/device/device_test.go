package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DeviceServiceSuite struct {
	suite.Suite
	svc *Service
}

func (s *DeviceServiceSuite) SetupTest() {
	s.svc = NewService(true)
}

func TestDeviceServiceSuite(t *testing.T) {
	suite.Run(t, new(DeviceServiceSuite))
}

const (
	chromeMac = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	safariIOS = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

func (s *DeviceServiceSuite) TestReference() {
	s.Run("empty user agent is an unknown device", func() {
		s.Equal("Unknown Device", s.svc.Reference(""))
	})

	s.Run("desktop reference names browser and OS", func() {
		ref := s.svc.Reference(chromeMac)
		s.Contains(ref, "Chrome")
		s.Contains(ref, " on ")
		s.Equal(ref, strings.TrimSpace(ref))
	})

	s.Run("mobile reference names the platform", func() {
		s.Contains(s.svc.Reference(safariIOS), "iPhone")
	})
}

func (s *DeviceServiceSuite) TestFingerprint() {
	s.Run("disabled service yields no fingerprint", func() {
		s.Empty(NewService(false).Fingerprint(chromeMac))
	})

	s.Run("deterministic", func() {
		fp := s.svc.Fingerprint(chromeMac)
		s.Equal(fp, s.svc.Fingerprint(chromeMac))
		s.Len(fp, 64)
	})

	s.Run("minor browser upgrades keep the fingerprint", func() {
		a := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.109 Safari/537.36"
		b := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.224 Safari/537.36"
		s.Equal(s.svc.Fingerprint(a), s.svc.Fingerprint(b))
	})

	s.Run("major upgrades change it", func() {
		a := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
		b := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
		s.NotEqual(s.svc.Fingerprint(a), s.svc.Fingerprint(b))
	})
}

func (s *DeviceServiceSuite) TestKnown() {
	fp := s.svc.Fingerprint(chromeMac)
	s.True(s.svc.Known([]string{"other", fp}, fp))
	s.False(s.svc.Known([]string{"other"}, fp))
	s.False(s.svc.Known([]string{""}, ""))
}
