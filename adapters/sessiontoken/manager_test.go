package sessiontoken

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return NewManager(key, ttl)
}

func TestIssueAndParse(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, err := m.Issue("s1", "")
	require.NoError(t, err)

	session, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "s1", session.ID)
	assert.Empty(t, session.UserID)
	assert.False(t, session.Authenticated())

	bound, err := m.Issue("s1", "u1")
	require.NoError(t, err)

	session, err = m.Parse(bound)
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.True(t, session.Authenticated())
}

func TestParseRejectsExpired(t *testing.T) {
	m := newTestManager(t, -time.Minute)

	token, err := m.Issue("s1", "")
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsForeignKey(t *testing.T) {
	m := newTestManager(t, time.Hour)
	other := newTestManager(t, time.Hour)

	token, err := other.Issue("s1", "")
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsWrongMethod(t *testing.T) {
	m := newTestManager(t, time.Hour)

	// HS256 token signed with an arbitrary secret must not pass, even
	// before the key check.
	claims := jwt.RegisteredClaims{
		ID:       "s1",
		Audience: jwt.ClaimStrings{Audience},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsWrongAudience(t *testing.T) {
	m := newTestManager(t, time.Hour)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "s1",
			Audience:  jwt.ClaimStrings{"somewhere:else"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(m.signKey)
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	m := newTestManager(t, time.Hour)

	_, err := m.Parse("not.a.token")
	assert.Error(t, err)

	_, err = m.Parse("")
	assert.Error(t, err)
}
