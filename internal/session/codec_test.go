package session

import (
	"encoding/base64"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/config"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(&config.Config{}, nil)
	require.NoError(t, err)
	return codec
}

func testRecord() *models.SessionRecord {
	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &models.SessionRecord{
		AdminID:     "adm-1001",
		DisplayName: "Direction",
		Email:       "direction@school.test",
		Token:       "0f2e8a6c4b1d9e7f0f2e8a6c4b1d9e7f0f2e8a6c4b1d9e7f0f2e8a6c4b1d9e7f",
		CreatedAt:   created,
		ExpiresAt:   created.Add(8 * time.Hour),
	}
}

func TestGenerateToken(t *testing.T) {
	hexPattern := regexp.MustCompile(`^[0-9a-f]{64}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateToken()
		require.NoError(t, err)
		assert.Regexp(t, hexPattern, token)
		assert.False(t, seen[token], "tokens must not repeat")
		seen[token] = true
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	rec := testRecord()

	encoded, err := codec.Encode(rec)
	require.NoError(t, err)
	assert.NotContains(t, encoded, rec.Token, "token must not appear in the encoded form")
	assert.NotContains(t, encoded, rec.Email)

	decoded := codec.Decode(encoded)
	require.NotNil(t, decoded)
	assert.Equal(t, rec.AdminID, decoded.AdminID)
	assert.Equal(t, rec.DisplayName, decoded.DisplayName)
	assert.Equal(t, rec.Email, decoded.Email)
	assert.Equal(t, rec.Token, decoded.Token)
	assert.True(t, rec.ExpiresAt.Equal(decoded.ExpiresAt))
}

func TestCodec_RoundTripAfterCacheClear(t *testing.T) {
	codec := newTestCodec(t)

	encoded, err := codec.Encode(testRecord())
	require.NoError(t, err)

	codec.ClearCache()
	require.NotNil(t, codec.Decode(encoded), "decode must work from the wrapped DEK alone")
}

func TestCodec_DecodeGarbage(t *testing.T) {
	codec := newTestCodec(t)

	inputs := []string{
		"",
		"not base64 !!!",
		base64.RawURLEncoding.EncodeToString([]byte("not json")),
		base64.RawURLEncoding.EncodeToString([]byte(`{"v":"v1","p":"x","k":"y","kid":""}`)),
	}
	for _, input := range inputs {
		assert.Nil(t, codec.Decode(input), "input %q", input)
	}
}

func TestCodec_DecodeTampered(t *testing.T) {
	codec := newTestCodec(t)

	encoded, err := codec.Encode(testRecord())
	require.NoError(t, err)

	tampered := []byte(encoded)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}
	assert.Nil(t, codec.Decode(string(tampered)))

	assert.Nil(t, codec.Decode(encoded[:len(encoded)-10]), "truncated input")
}

func TestCodec_DecodeFromAnotherCodec(t *testing.T) {
	first := newTestCodec(t)
	second := newTestCodec(t)

	encoded, err := first.Encode(testRecord())
	require.NoError(t, err)

	assert.Nil(t, second.Decode(encoded), "a different master key must not open the envelope")
}

func TestCodec_DecodeRejectsEmptyIdentity(t *testing.T) {
	codec := newTestCodec(t)

	rec := testRecord()
	rec.AdminID = ""
	encoded, err := codec.Encode(rec)
	require.NoError(t, err)
	assert.Nil(t, codec.Decode(encoded))

	rec = testRecord()
	rec.Token = ""
	encoded, err = codec.Encode(rec)
	require.NoError(t, err)
	assert.Nil(t, codec.Decode(encoded))
}
