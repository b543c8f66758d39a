package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestVerifyUser(t *testing.T) {
	token, err := GenerateToken(&Payload{ID: "user-1"}, testSecret, time.Minute)
	require.NoError(t, err)

	assert.NoError(t, VerifyUser(token, "user-1", testSecret))
	assert.ErrorIs(t, VerifyUser(token, "user-2", testSecret), ErrSubjectMismatch)
	assert.Error(t, VerifyUser(token, "user-1", "other-secret"))
	assert.Error(t, VerifyUser("not-a-token", "user-1", testSecret))
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken(&Payload{ID: "user-1"}, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, testSecret)
	assert.Error(t, err)
}
