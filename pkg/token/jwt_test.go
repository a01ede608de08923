package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", 1, 1)

	access, err := m.GenerateToken("user-1", "alice", "patient")
	require.NoError(t, err)

	claims, err := m.VerifyTyped(access, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)

	_, err = m.VerifyTyped(access, TypeRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestJWTManager_RejectsForeignSignature(t *testing.T) {
	issued, err := NewJWTManager("one", 1, 1).GenerateToken("u", "alice", "patient")
	require.NoError(t, err)

	_, err = NewJWTManager("two", 1, 1).VerifyToken(issued)
	assert.Error(t, err)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("secret", 0, 0)
	issued, err := m.GenerateToken("u", "alice", "patient")
	require.NoError(t, err)

	_, err = m.VerifyToken(issued)
	assert.Error(t, err)
}
