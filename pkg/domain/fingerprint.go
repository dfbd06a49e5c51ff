package domain

import (
	"encoding/hex"
	"strings"

	dErrors "covenant/pkg/domain-errors"
)

// FaceFingerprintLength is the hex length of a face-derived hash (SHA-256).
const FaceFingerprintLength = 64

// FaceFingerprint is the sole minting authority for an identity.
// The zero value means "no fingerprint available".
type FaceFingerprint string

// ParseFaceFingerprint accepts exactly 64 hex characters in any case and
// returns the lower-cased form. Anything else is a validation error, never
// a silent "not minted".
func ParseFaceFingerprint(s string) (FaceFingerprint, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != FaceFingerprintLength {
		return "", dErrors.New(dErrors.CodeValidation, "face fingerprint must be 64 hex characters")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "face fingerprint must be hex encoded")
	}
	return FaceFingerprint(s), nil
}

func (f FaceFingerprint) String() string { return string(f) }
func (f FaceFingerprint) IsNil() bool    { return f == "" }

// Redacted returns a short prefix safe for logs.
func (f FaceFingerprint) Redacted() string {
	if len(f) < 8 {
		return "<none>"
	}
	return string(f[:8]) + "…"
}

// ContactAnchor is the phone-equivalent lookup key of an identity.
// It is only a legacy minting key when no fingerprint exists.
type ContactAnchor string

// ParseContactAnchor normalizes an anchor by stripping whitespace, dashes and
// parentheses. A leading '+' is kept.
func ParseContactAnchor(s string) (ContactAnchor, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", dErrors.New(dErrors.CodeValidation, "contact anchor contains invalid characters")
		}
	}
	out := b.String()
	digits := strings.TrimPrefix(out, "+")
	if len(digits) < 6 || len(digits) > 15 {
		return "", dErrors.New(dErrors.CodeValidation, "contact anchor must have 6 to 15 digits")
	}
	return ContactAnchor(out), nil
}

func (a ContactAnchor) String() string { return string(a) }
func (a ContactAnchor) IsNil() bool    { return a == "" }
