package main

import (
	"fmt"
	"math"
	"sort"
)

// GroupStat is the aggregate state of one grouping key. Sum and count are
// carried separately so per-partition partials merge into an exact global
// mean instead of averaging averages.
type GroupStat struct {
	Sum   float64
	Count int64
	Min   float64
	Max   float64
}

func (g GroupStat) Mean() float64 {
	if g.Count == 0 {
		return 0
	}
	return g.Sum / float64(g.Count)
}

func (g GroupStat) merge(other GroupStat) GroupStat {
	if g.Count == 0 {
		return other
	}
	if other.Count == 0 {
		return g
	}
	return GroupStat{
		Sum:   g.Sum + other.Sum,
		Count: g.Count + other.Count,
		Min:   math.Min(g.Min, other.Min),
		Max:   math.Max(g.Max, other.Max),
	}
}

// Result is the aggregated table a pipeline produces: grouping key to
// aggregate state, plus the number of data rows scanned to produce it.
type Result struct {
	Groups map[string]GroupStat
	Rows   int
}

func NewResult() Result {
	return Result{Groups: make(map[string]GroupStat)}
}

func (r *Result) Add(key string, value float64) {
	stat, ok := r.Groups[key]
	if !ok {
		r.Groups[key] = GroupStat{Sum: value, Count: 1, Min: value, Max: value}
		return
	}
	r.Groups[key] = stat.merge(GroupStat{Sum: value, Count: 1, Min: value, Max: value})
}

// Merge folds another partial result into r.
func (r *Result) Merge(other Result) {
	for key, stat := range other.Groups {
		r.Groups[key] = r.Groups[key].merge(stat)
	}
	r.Rows += other.Rows
}

// Keys returns the grouping keys in deterministic order.
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r.Groups))
	for key := range r.Groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func relativeDiff(a, b float64) float64 {
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		scale = 1
	}
	return diff / scale
}

// CompareResults verifies that two pipelines computed the same aggregation:
// identical key sets, identical counts, and means that agree within the
// relative tolerance. A disagreement is a pipeline bug, not a performance
// difference, and is surfaced as its own error kind.
func CompareResults(a, b Result, tolerance float64) error {
	for _, key := range a.Keys() {
		if _, ok := b.Groups[key]; !ok {
			return pipelineErrorf(KindMismatch, "verify", "group %q present in one result but not in the other", key)
		}
	}
	for _, key := range b.Keys() {
		if _, ok := a.Groups[key]; !ok {
			return pipelineErrorf(KindMismatch, "verify", "group %q present in one result but not in the other", key)
		}
	}
	for _, key := range a.Keys() {
		left, right := a.Groups[key], b.Groups[key]
		if left.Count != right.Count {
			return pipelineErrorf(KindMismatch, "verify", "group %q counts differ: %v != %v", key, left.Count, right.Count)
		}
		if diff := relativeDiff(left.Mean(), right.Mean()); diff > tolerance {
			return pipelineErrorf(
				KindMismatch, "verify",
				"group %q means differ beyond tolerance %v: %v != %v (relative diff %v)",
				key, tolerance, left.Mean(), right.Mean(), diff,
			)
		}
	}
	return nil
}

func (r Result) String() string {
	out := ""
	for _, key := range r.Keys() {
		stat := r.Groups[key]
		out += fmt.Sprintf("%v: mean=%.6f count=%v\n", key, stat.Mean(), stat.Count)
	}
	return out
}
