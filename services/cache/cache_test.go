package cachesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

func TestMemoryBlacklist(t *testing.T) {
	ctx := context.Background()
	bl := NewMemoryBlacklist()

	require.NoError(t, bl.Revoke(ctx, "a", time.Hour))
	require.NoError(t, bl.Revoke(ctx, "expired", 0))
	require.NoError(t, bl.Revoke(ctx, "", time.Hour))

	tests := []struct {
		jti  string
		want bool
	}{
		{"a", true},
		{"expired", false},
		{"unknown", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.jti, func(t *testing.T) {
			got, err := bl.IsRevoked(ctx, tt.jti)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_withoutRedis(t *testing.T) {
	bl, err := New(&core.Config{})
	require.NoError(t, err)
	assert.IsType(t, &memoryBlacklist{}, bl)
	assert.NoError(t, bl.Close())
}
