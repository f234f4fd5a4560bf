package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestStoreChecker_ReflectsPingOutcome(t *testing.T) {
	var fail atomic.Bool
	c := NewStoreChecker("store", PingerFunc(func(context.Context) error {
		if fail.Load() {
			return errors.New("connection refused")
		}
		return nil
	}), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx, 10*time.Millisecond)

	require.Eventually(t, c.IsHealthy, time.Second, 5*time.Millisecond)

	fail.Store(true)
	require.Eventually(t, func() bool { return !c.IsHealthy() }, time.Second, 5*time.Millisecond)
}

type staticChecker bool

func (s staticChecker) Name() string                         { return "static" }
func (s staticChecker) IsHealthy() bool                      { return bool(s) }
func (s staticChecker) Start(context.Context, time.Duration) {}

func TestService_AggregatesDependencies(t *testing.T) {
	require.True(t, NewService(staticChecker(true), staticChecker(true)).IsHealthy())
	require.False(t, NewService(staticChecker(true), staticChecker(false)).IsHealthy())
	require.True(t, NewService().IsHealthy())
}
