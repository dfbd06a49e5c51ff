// Package domain provides type-safe identifiers and validated value objects
// so ledger code cannot mix up identity, block and partner keys.
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "covenant/pkg/domain-errors"
)

// IdentityID identifies an enrolled human. It is never derived from biometrics.
type IdentityID uuid.UUID

// BlockID names a geographic/administrative block (regional reserve key).
type BlockID string

// PartnerID names a revenue partner subject to corporate tribute.
type PartnerID string

// AgreementVersion is the version tag of the signed agreement (e.g. "v1").
type AgreementVersion string

const maxKeyLength = 128

// NewIdentityID returns a fresh random identity ID.
func NewIdentityID() IdentityID {
	return IdentityID(uuid.New())
}

func ParseIdentityID(s string) (IdentityID, error) {
	if s == "" {
		return IdentityID{}, dErrors.New(dErrors.CodeInvalidInput, "identity ID cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return IdentityID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid identity ID format")
	}
	if id == uuid.Nil {
		return IdentityID{}, dErrors.New(dErrors.CodeInvalidInput, "identity ID cannot be nil")
	}
	return IdentityID(id), nil
}

func ParseBlockID(s string) (BlockID, error) {
	v, err := parseKey(s, "block ID")
	return BlockID(v), err
}

func ParsePartnerID(s string) (PartnerID, error) {
	v, err := parseKey(s, "partner ID")
	return PartnerID(v), err
}

func ParseAgreementVersion(s string) (AgreementVersion, error) {
	v, err := parseKey(s, "agreement version")
	return AgreementVersion(v), err
}

func (id IdentityID) String() string      { return uuid.UUID(id).String() }
func (id BlockID) String() string         { return string(id) }
func (id PartnerID) String() string       { return string(id) }
func (v AgreementVersion) String() string { return string(v) }
func (id IdentityID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id BlockID) IsNil() bool            { return id == "" }
func (id PartnerID) IsNil() bool          { return id == "" }
func (v AgreementVersion) IsNil() bool    { return v == "" }

func (id IdentityID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *IdentityID) UnmarshalText(b []byte) error {
	parsed, err := ParseIdentityID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// parseKey validates free-form string keys used as store primary keys.
func parseKey(s, label string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	if !utf8.ValidString(s) || len(s) > maxKeyLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
		}
	}
	return s, nil
}
