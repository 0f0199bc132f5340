package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("s3cret", "employee-portal")
	token, err := tm.GenerateToken("sess-1", "emp-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "emp-1", claims.Subject)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	t.Parallel()

	token, err := NewTokenManager("other", "employee-portal").GenerateToken("sess-1", "emp-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = NewTokenManager("s3cret", "employee-portal").ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("s3cret", "employee-portal")
	token, err := tm.GenerateToken("sess-1", "emp-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsOtherIssuer(t *testing.T) {
	t.Parallel()

	token, err := NewTokenManager("s3cret", "someone-else").GenerateToken("sess-1", "emp-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = NewTokenManager("s3cret", "employee-portal").ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager("s3cret", "employee-portal").ParseToken("not-a-jwt")
	assert.Error(t, err)
}
