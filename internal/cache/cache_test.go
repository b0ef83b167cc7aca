package cache

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finflow/internal/identity"
)

func token(t *testing.T, uid int64) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": uid}).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestManager_ResetAll(t *testing.T) {
	m := NewManager()
	c := New[string](time.Minute)
	c.Put("k", []string{"v"}, 1)
	calls := 0
	m.Register(c)
	m.Register(ResetFunc(func() { calls++ }))

	assert.Equal(t, 2, m.ResetAll())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, calls)
}

func TestManager_WatchIdentityResetsOnUserChange(t *testing.T) {
	p := identity.NewProvider()
	require.NoError(t, p.Login(token(t, 1)))

	m := NewManager()
	resets := 0
	m.Register(ResetFunc(func() { resets++ }))
	m.WatchIdentity(p)
	assert.Equal(t, 0, resets, "subscribing must not reset")

	require.NoError(t, p.Login(token(t, 1)))
	assert.Equal(t, 0, resets, "same user re-login keeps caches")

	require.NoError(t, p.Login(token(t, 2)))
	assert.Equal(t, 1, resets)

	p.Logout()
	assert.Equal(t, 2, resets)

	m.Stop()
	require.NoError(t, p.Login(token(t, 3)))
	assert.Equal(t, 2, resets)
}
