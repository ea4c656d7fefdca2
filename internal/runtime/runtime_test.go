package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/insightdeck/insightdeck/config"
)

func TestNewLimitsDefaults(t *testing.T) {
	l := NewLimits(0, 0)
	require.Equal(t, config.DefaultMaxConcurrentRequests, l.MaxConcurrentRequests)
	require.Equal(t, config.DefaultMaxOpenSessions, l.MaxOpenSessions)
	require.Equal(t, int64(config.DefaultMaxUploadBytes), l.MaxUploadBytes)
	require.Equal(t, config.DefaultOperationTimeout, l.OperationTimeout)
}

func TestControllerSessionCapacity(t *testing.T) {
	c := NewController(NewLimits(1, 1))

	require.NoError(t, c.AcquireSession(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, c.AcquireSession(ctx))

	c.ReleaseSession()
	require.NoError(t, c.AcquireSession(context.Background()))
	c.ReleaseSession()
}

func TestControllerRequestCapacity(t *testing.T) {
	c := NewController(NewLimits(2, 2))
	require.NoError(t, c.AcquireRequest(context.Background()))
	require.NoError(t, c.AcquireRequest(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, c.AcquireRequest(ctx))

	c.ReleaseRequest()
	c.ReleaseRequest()
}
