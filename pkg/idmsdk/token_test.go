package idmsdk

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestInspectToken(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "anonymous",
		"iss":        "idm.example.com",
		"exp":        exp.Unix(),
		"session_id": "01J0000000000000000000000",
	}).SignedString([]byte("unrelated-key"))
	require.NoError(t, err)

	info, err := InspectToken(raw)
	require.NoError(t, err)
	require.Equal(t, "anonymous", info.Subject)
	require.Equal(t, "idm.example.com", info.Issuer)
	require.Equal(t, "01J0000000000000000000000", info.SessionID)
	require.True(t, exp.Equal(info.ExpiresAt))
}

func TestInspectTokenOpaque(t *testing.T) {
	t.Parallel()

	_, err := InspectToken("")
	require.Error(t, err)

	_, err = InspectToken("tok-123")
	require.Error(t, err)
}
