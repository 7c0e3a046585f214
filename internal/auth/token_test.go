package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestClientToken_RoundTrip(t *testing.T) {
	id := NewClientID()
	tok, err := SignClientToken(id, "s3cret", time.Hour)
	require.NoError(t, err)

	got, err := ParseClientToken(tok, "s3cret")
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestClientToken_Expired(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   NewClientID(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = ParseClientToken(tok, "s3cret")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestClientToken_Rejects(t *testing.T) {
	id := NewClientID()
	tok, err := SignClientToken(id, "s3cret", time.Hour)
	require.NoError(t, err)

	_, err = ParseClientToken(tok, "other")
	require.ErrorIs(t, err, ErrInvalidToken)

	notUUID, err := SignClientToken("user-42", "s3cret", time.Hour)
	require.NoError(t, err)
	_, err = ParseClientToken(notUUID, "s3cret")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseClientToken("garbage", "s3cret")
	require.ErrorIs(t, err, ErrInvalidToken)
}
