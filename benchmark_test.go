package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMeasureRunsWarmupsBeforeAttempts(t *testing.T) {
	calls := 0
	benchmark := &Benchmark{Warmup: 2, Attempts: 1}

	result, measurement, err := benchmark.Measure(context.Background(), "fake", func(context.Context) (Result, error) {
		calls++
		time.Sleep(time.Millisecond)
		r := NewResult()
		r.Rows = 7
		r.Add("A", 1)
		return r, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, "fake", measurement.Pipeline)
	require.Equal(t, 7, measurement.Rows)
	require.Greater(t, measurement.Duration, time.Duration(0))
	require.Equal(t, int64(1), result.Groups["A"].Count)
}

func TestMeasureKeepsBestAttempt(t *testing.T) {
	delays := []time.Duration{30 * time.Millisecond, 5 * time.Millisecond, 15 * time.Millisecond}
	call := 0
	benchmark := &Benchmark{Attempts: len(delays)}

	_, measurement, err := benchmark.Measure(context.Background(), "fake", func(context.Context) (Result, error) {
		time.Sleep(delays[call])
		call++
		return NewResult(), nil
	})
	require.NoError(t, err)
	require.Less(t, measurement.Duration, 30*time.Millisecond)
}

func TestMeasurePropagatesPipelineFailure(t *testing.T) {
	benchmark := &Benchmark{Attempts: 1}

	_, _, err := benchmark.Measure(context.Background(), "fake", func(context.Context) (Result, error) {
		return Result{}, pipelineErrorf(KindScheduling, "aggregate", "partition 3 failed")
	})
	require.Error(t, err)

	kind, ok := ErrorKindOf(err)
	require.True(t, ok)
	require.Equal(t, KindScheduling, kind)
}
