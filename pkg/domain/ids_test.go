package domain

import (
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "covenant/pkg/domain-errors"
)

// TestParseIdentityID_Invariants validates the parsing invariant:
// "identity IDs must be valid, non-empty, non-nil UUIDs"
//
// Justification: This is a pure function enforcing a domain invariant at trust boundaries.
func TestParseIdentityID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseIdentityID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseIdentityID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseIdentityID(uuid.Nil.String())
		require.Error(t, err)
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		raw := uuid.New()
		got, err := ParseIdentityID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, IdentityID(raw), got)
	})
}

func TestParseKeys(t *testing.T) {
	t.Run("trims block id", func(t *testing.T) {
		got, err := ParseBlockID("  NG-LAGOS ")
		require.NoError(t, err)
		assert.Equal(t, BlockID("NG-LAGOS"), got)
	})

	t.Run("rejects control characters", func(t *testing.T) {
		_, err := ParsePartnerID("acme\x00corp")
		require.Error(t, err)
	})

	t.Run("rejects oversized keys", func(t *testing.T) {
		_, err := ParseBlockID(strings.Repeat("a", maxKeyLength+1))
		require.Error(t, err)
	})

	t.Run("rejects empty agreement version", func(t *testing.T) {
		_, err := ParseAgreementVersion(" ")
		require.Error(t, err)
	})
}

// TestParseFaceFingerprint covers the fixed-length hash contract: malformed
// input is a validation error, never treated as "not minted".
func TestParseFaceFingerprint(t *testing.T) {
	valid := strings.Repeat("ab", 32)

	t.Run("accepts 64 hex characters", func(t *testing.T) {
		fp, err := ParseFaceFingerprint(valid)
		require.NoError(t, err)
		assert.Equal(t, FaceFingerprint(valid), fp)
	})

	t.Run("lower-cases input", func(t *testing.T) {
		fp, err := ParseFaceFingerprint(strings.ToUpper(valid))
		require.NoError(t, err)
		assert.Equal(t, FaceFingerprint(valid), fp)
	})

	t.Run("rejects short hash", func(t *testing.T) {
		_, err := ParseFaceFingerprint(valid[:63])
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects non-hex characters", func(t *testing.T) {
		_, err := ParseFaceFingerprint(strings.Repeat("zz", 32))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("redacted form never exposes the full hash", func(t *testing.T) {
		fp := FaceFingerprint(valid)
		assert.Equal(t, "abababab…", fp.Redacted())
		assert.Equal(t, "<none>", FaceFingerprint("").Redacted())
	})
}

func TestParseContactAnchor(t *testing.T) {
	t.Run("strips formatting", func(t *testing.T) {
		a, err := ParseContactAnchor("+234 (803) 555-0100")
		require.NoError(t, err)
		assert.Equal(t, ContactAnchor("+2348035550100"), a)
	})

	t.Run("rejects letters", func(t *testing.T) {
		_, err := ParseContactAnchor("call-me-maybe")
		require.Error(t, err)
	})

	t.Run("rejects too few digits", func(t *testing.T) {
		_, err := ParseContactAnchor("12345")
		require.Error(t, err)
	})
}

func TestAmounts(t *testing.T) {
	t.Run("parses decimal strings", func(t *testing.T) {
		d, err := ParseAmount("1000.25", "gross")
		require.NoError(t, err)
		assert.True(t, d.Equal(decimal.RequireFromString("1000.25")))
	})

	t.Run("rejects negative amounts", func(t *testing.T) {
		_, err := ParseAmount("-1", "gross")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects NaN text", func(t *testing.T) {
		_, err := ParseAmount("NaN", "gross")
		require.Error(t, err)
	})

	t.Run("rejects excess precision", func(t *testing.T) {
		_, err := ParseAmount("0.000000001", "gross")
		require.Error(t, err)
	})

	t.Run("float conversion rejects non-finite values", func(t *testing.T) {
		_, err := AmountFromFloat(posInf(), "gross")
		require.Error(t, err)
		_, err = AmountFromFloat(nan(), "gross")
		require.Error(t, err)
	})

	t.Run("round never increases the value", func(t *testing.T) {
		d := decimal.RequireFromString("0.123456789")
		assert.True(t, RoundAmount(d).Equal(decimal.RequireFromString("0.12345678")))
	})
}

func posInf() float64 { return math.Inf(1) }
func nan() float64    { return math.NaN() }
