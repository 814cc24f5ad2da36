package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupStatMean(t *testing.T) {
	result := NewResult()
	result.Add("A", 2)
	result.Add("A", 4)
	result.Add("B", 10)

	require.InDelta(t, 3, result.Groups["A"].Mean(), 1e-12)
	require.Equal(t, int64(2), result.Groups["A"].Count)
	require.InDelta(t, 10, result.Groups["B"].Mean(), 1e-12)
	require.Equal(t, []string{"A", "B"}, result.Keys())
}

func TestMergeCombinesPartials(t *testing.T) {
	whole := NewResult()
	left, right := NewResult(), NewResult()
	values := []struct {
		key   string
		value float64
	}{
		{"A", 1.5}, {"B", -2}, {"A", 3}, {"C", 0.25}, {"B", 7},
	}
	for i, v := range values {
		whole.Add(v.key, v.value)
		whole.Rows++
		if i < 2 {
			left.Add(v.key, v.value)
			left.Rows++
		} else {
			right.Add(v.key, v.value)
			right.Rows++
		}
	}

	merged := NewResult()
	merged.Merge(left)
	merged.Merge(right)

	require.Equal(t, whole.Rows, merged.Rows)
	require.NoError(t, CompareResults(whole, merged, 1e-12))
}

func TestCompareResultsDetectsMissingKey(t *testing.T) {
	a, b := NewResult(), NewResult()
	a.Add("A", 1)
	a.Add("B", 1)
	b.Add("A", 1)

	err := CompareResults(a, b, 1e-9)
	require.Error(t, err)
	kind, ok := ErrorKindOf(err)
	require.True(t, ok)
	require.Equal(t, KindMismatch, kind)
}

func TestCompareResultsDetectsInventedKey(t *testing.T) {
	a, b := NewResult(), NewResult()
	a.Add("A", 1)
	b.Add("A", 1)
	b.Add("Z", 1)

	err := CompareResults(a, b, 1e-9)
	require.Error(t, err)
	kind, _ := ErrorKindOf(err)
	require.Equal(t, KindMismatch, kind)
}

func TestCompareResultsDetectsMeanDrift(t *testing.T) {
	a, b := NewResult(), NewResult()
	a.Add("A", 100)
	b.Add("A", 101)

	err := CompareResults(a, b, 1e-9)
	require.Error(t, err)
	kind, _ := ErrorKindOf(err)
	require.Equal(t, KindMismatch, kind)

	require.NoError(t, CompareResults(a, b, 0.05))
}

func TestCompareResultsDetectsCountDrift(t *testing.T) {
	a, b := NewResult(), NewResult()
	a.Add("A", 1)
	a.Add("A", 1)
	b.Add("A", 2)

	err := CompareResults(a, b, 1e-9)
	require.Error(t, err)
}
