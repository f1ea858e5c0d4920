// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rdiagd/rdiag/internal/coordkey"
)

func TestRun_NormalSucceedsWhenNoHigh(t *testing.T) {
	s := New()
	got, err := Run(context.Background(), s, coordkey.PriorityNormal, "test", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
	require.Zero(t, s.HighCount())
	require.Zero(t, s.NormalCount())
}

func TestRun_NormalPreemptedByHighThenRetries(t *testing.T) {
	s := New()
	ctx := context.Background()

	var attempts atomic.Int32
	normalStarted := make(chan struct{})
	releaseNormal := make(chan struct{})

	normalDone := make(chan error, 1)
	go func() {
		_, err := Run(ctx, s, coordkey.PriorityNormal, "normal", func(attemptCtx context.Context) (int, error) {
			n := attempts.Add(1)
			if n == 1 {
				close(normalStarted)
			}
			select {
			case <-attemptCtx.Done():
				return 0, attemptCtx.Err()
			case <-releaseNormal:
				return 7, nil
			}
		})
		normalDone <- err
	}()

	<-normalStarted // NORMAL is now registered and running its first attempt

	highResult, err := Run(ctx, s, coordkey.PriorityHigh, "high", func(ctx context.Context) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, highResult)

	// The HIGH firing should have cancelled NORMAL's first attempt; let it
	// succeed on a later attempt.
	close(releaseNormal)

	require.NoError(t, <-normalDone)
	require.GreaterOrEqual(t, attempts.Load(), int32(2), "normal must have retried at least once")

	require.Zero(t, s.HighCount())
	require.Zero(t, s.NormalCount())
}

func TestRun_NormalPreemptedManyTimesEventuallySucceeds(t *testing.T) {
	s := New()
	ctx := context.Background()

	const rounds = 12
	var normalAttempts atomic.Int32
	normalStarted := make(chan struct{}, rounds+2)
	allowFinish := make(chan struct{})

	normalDone := make(chan struct{})
	go func() {
		_, err := Run(ctx, s, coordkey.PriorityNormal, "normal", func(attemptCtx context.Context) (int, error) {
			normalAttempts.Add(1)
			normalStarted <- struct{}{}
			select {
			case <-attemptCtx.Done():
				return 0, attemptCtx.Err()
			case <-allowFinish:
				return 99, nil
			}
		})
		require.NoError(t, err)
		close(normalDone)
	}()

	for i := 0; i < rounds; i++ {
		<-normalStarted
		_, err := Run(ctx, s, coordkey.PriorityHigh, "high", func(context.Context) (int, error) {
			return i, nil
		})
		require.NoError(t, err)
	}

	<-normalStarted
	close(allowFinish)
	<-normalDone

	require.GreaterOrEqual(t, normalAttempts.Load(), int32(rounds))
	require.Zero(t, s.HighCount())
	require.Zero(t, s.NormalCount())
}

func TestRun_HighNeverWaitsForNormal(t *testing.T) {
	s := New()
	ctx := context.Background()

	normalBlocked := make(chan struct{})
	releaseNormal := make(chan struct{})
	go func() {
		_, _ = Run(ctx, s, coordkey.PriorityNormal, "normal", func(attemptCtx context.Context) (int, error) {
			close(normalBlocked)
			select {
			case <-attemptCtx.Done():
				return 0, attemptCtx.Err()
			case <-releaseNormal:
				return 1, nil
			}
		})
	}()
	<-normalBlocked

	start := time.Now()
	_, err := Run(ctx, s, coordkey.PriorityHigh, "high", func(context.Context) (int, error) {
		return 1, nil
	})
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Less(t, elapsed, 500*time.Millisecond, "high must not block behind normal")

	close(releaseNormal)
}

func TestRun_CallerCancelDuringDrain(t *testing.T) {
	s := New()

	highBlocked := make(chan struct{})
	releaseHigh := make(chan struct{})
	go func() {
		_, _ = Run(context.Background(), s, coordkey.PriorityHigh, "high", func(ctx context.Context) (int, error) {
			close(highBlocked)
			<-releaseHigh
			return 1, nil
		})
	}()
	<-highBlocked

	normalCtx, cancel := context.WithCancel(context.Background())
	normalErrCh := make(chan error, 1)
	normalStarted := make(chan struct{})
	go func() {
		_, err := Run(normalCtx, s, coordkey.PriorityNormal, "normal", func(context.Context) (int, error) {
			return 0, nil
		})
		normalErrCh <- err
	}()

	// give the normal goroutine a moment to enter the drain loop
	time.Sleep(20 * time.Millisecond)
	close(normalStarted)
	cancel()

	err := <-normalErrCh
	require.Error(t, err)
	require.True(t, coordkey.IsCancelled(err))

	close(releaseHigh)
	require.Eventually(t, func() bool {
		return s.HighCount() == 0 && s.NormalCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRun_HostFailurePropagatesWithoutRetry(t *testing.T) {
	s := New()
	var calls atomic.Int32
	wantErr := coordkey.NewHostFailure("test", context.DeadlineExceeded)
	// DeadlineExceeded as the wrapped cause would normally look like a
	// cancellation; HostFailure's Kind must still win the classification.
	_, err := Run(context.Background(), s, coordkey.PriorityNormal, "test", func(context.Context) (int, error) {
		calls.Add(1)
		return 0, wantErr
	})
	require.Error(t, err)
	k, ok := coordkey.KindOf(err)
	require.True(t, ok)
	require.Equal(t, coordkey.KindHostFailure, k)
	require.EqualValues(t, 1, calls.Load())
}
