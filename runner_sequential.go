package main

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/shirou/gopsutil/v3/mem"
)

// loadExpansionFactor is a coarse estimate of how much larger the eagerly
// parsed table is compared to the CSV text on disk. Used only for the
// best-effort out-of-memory guard before loading.
const loadExpansionFactor = 6

// SequentialRunner loads the whole dataset into memory in one step and then
// runs filter, group-by and aggregate over the in-memory table. Large inputs
// exceeding available memory are an expected failure mode and are surfaced
// as such instead of waiting for the OOM killer.
type SequentialRunner struct {
	Threshold float64
}

func (r *SequentialRunner) Name() string { return "sequential" }

func (r *SequentialRunner) Run(ctx context.Context, path string) (Result, error) {
	if err := checkMemoryBudget(path); err != nil {
		return Result{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return Result{}, wrapPipelineError(KindIO, "load", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	// Eager load: the entire table materializes before any row is filtered.
	records, err := reader.ReadAll()
	if err != nil {
		return Result{}, wrapPipelineError(KindDataFormat, "load", err)
	}
	if len(records) == 0 {
		return Result{}, pipelineErrorf(KindDataFormat, "load", "dataset %v has no header row", path)
	}
	if err := validateHeader(records[0]); err != nil {
		return Result{}, err
	}

	result := NewResult()
	for i, record := range records[1:] {
		if i%4096 == 0 && ctx.Err() != nil {
			return Result{}, wrapPipelineError(KindIO, "aggregate", ctx.Err())
		}
		key, value, err := parseRecord(record)
		if err != nil {
			return Result{}, err
		}
		result.Rows++
		if value > r.Threshold {
			result.Add(key, value)
		}
	}
	return result, nil
}

// checkMemoryBudget rejects datasets whose parsed form clearly cannot fit in
// the memory currently available. Best effort: passing the check does not
// guarantee the load succeeds.
func checkMemoryBudget(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return wrapPipelineError(KindIO, "load", err)
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		Logger.Warnf("failed to read memory stats, skipping budget check: %v", err)
		return nil
	}
	need := uint64(stat.Size()) * loadExpansionFactor
	if need > vm.Available {
		return pipelineErrorf(
			KindOutOfMemory, "load",
			"dataset %v needs ~%v bytes to load eagerly but only %v bytes are available",
			path, need, vm.Available,
		)
	}
	return nil
}
