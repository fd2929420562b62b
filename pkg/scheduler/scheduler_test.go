package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAddRejectsBadSpecAndDuplicates(t *testing.T) {
	s := New(time.UTC, nil)

	require.Error(t, s.Add("expire", "not a cron", time.Second, func(context.Context) error { return nil }))
	require.NoError(t, s.Add("expire", "0 23 * * *", time.Second, func(context.Context) error { return nil }))
	require.Error(t, s.Add("expire", "0 23 * * *", time.Second, func(context.Context) error { return nil }))
}

func TestAddEmptySpecDisablesJob(t *testing.T) {
	s := New(time.UTC, nil)
	require.NoError(t, s.Add("daily", "", time.Second, func(context.Context) error { return nil }))

	_, ok := s.Next("daily")
	require.False(t, ok)
}

func TestNextUsesLocation(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)
	s := New(loc, nil)
	require.NoError(t, s.Add("expire", "0 23 * * *", time.Second, func(context.Context) error { return nil }))
	s.Start()
	defer s.Stop(context.Background())

	next, ok := s.Next("expire")
	require.True(t, ok)
	require.Equal(t, 23, next.In(loc).Hour())
}

func TestRunAppliesTimeoutAndLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := New(time.UTC, zap.New(core))

	var deadline bool
	s.Run("ok", 50*time.Millisecond, func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return nil
	})
	s.Run("broken", time.Second, func(context.Context) error { return errors.New("db down") })

	require.True(t, deadline)
	require.Equal(t, 1, logs.FilterMessage("scheduled job finished").Len())
	require.Equal(t, 1, logs.FilterMessage("scheduled job failed").Len())
}
