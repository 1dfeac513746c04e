package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/rally-session/token"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRevokedTokenCache(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cache := token.NewInMemoryRevokedTokenCache()

	require.NoError(t, cache.Add("old", now.Add(-time.Minute)))
	require.NoError(t, cache.Add("current", now.Add(time.Hour)))
	require.True(t, cache.IsRevoked("old"))
	require.False(t, cache.IsRevoked("other"))

	require.Equal(t, 1, cache.Cleanup(now))
	require.False(t, cache.IsRevoked("old"))
	require.True(t, cache.IsRevoked("current"))
}
