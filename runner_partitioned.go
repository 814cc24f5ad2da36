package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"sync"
)

// PartitionedRunner declares a lazy, partitioned view over the dataset and
// executes filter, group-by and aggregate per partition, merging the partial
// aggregates at the end. Nothing is read from disk until Collect runs.
type PartitionedRunner struct {
	Threshold     float64
	PartitionRows int
}

func (r *PartitionedRunner) Name() string { return "partitioned" }

func (r *PartitionedRunner) Run(ctx context.Context, path string) (Result, error) {
	return r.Scan(path).Collect(ctx)
}

// Scan builds the deferred plan. It performs no I/O: the file may not even
// exist yet at this point.
func (r *PartitionedRunner) Scan(path string) *PartitionPlan {
	return &PartitionPlan{
		path:          path,
		threshold:     r.Threshold,
		partitionRows: r.PartitionRows,
	}
}

// PartitionPlan is the deferred filter -> group-by -> aggregate computation.
type PartitionPlan struct {
	path          string
	threshold     float64
	partitionRows int
}

// partition is a contiguous byte range of the dataset file, aligned to
// record boundaries, holding roughly partitionRows records.
type partition struct {
	index      int
	begin, end int64
}

// Collect materializes the plan: it splits the file into partitions, runs
// one worker per partition and merges the per-partition partial aggregates.
// Any independent partition failure aborts the whole run; partial results
// are never returned.
func (p *PartitionPlan) Collect(ctx context.Context) (Result, error) {
	file, err := os.Open(p.path)
	if err != nil {
		return Result{}, wrapPipelineError(KindIO, "load", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return Result{}, wrapPipelineError(KindIO, "load", err)
	}

	headerEnd, err := validateFileHeader(file)
	if err != nil {
		return Result{}, err
	}

	partitions, err := splitPartitions(file, headerEnd, stat.Size(), p.partitionRows)
	if err != nil {
		return Result{}, wrapPipelineError(KindIO, "plan", err)
	}
	Logger.Debugf("split %v into %v partitions", p.path, len(partitions))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, len(partitions))
	failures := make([]error, len(partitions))
	var wg sync.WaitGroup
	wg.Add(len(partitions))
	for _, part := range partitions {
		go func(part partition) {
			defer wg.Done()
			result, err := p.runPartition(ctx, part)
			if err != nil {
				failures[part.index] = err
				cancel()
				return
			}
			results[part.index] = result
		}(part)
	}
	wg.Wait()

	for index, err := range failures {
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}
		Logger.Errorf("partition %v failed: %v", index, err)
		var pe *PipelineError
		if errors.As(err, &pe) {
			return Result{}, err
		}
		return Result{}, pipelineErrorf(KindScheduling, "aggregate", "partition %v failed: %v", index, err)
	}
	// only cancellations remain, so the run as a whole was interrupted
	for _, err := range failures {
		if err != nil {
			return Result{}, wrapPipelineError(KindIO, "aggregate", err)
		}
	}

	merged := NewResult()
	for _, result := range results {
		merged.Merge(result)
	}
	return merged, nil
}

// runPartition scans one byte range with its own file descriptor so workers
// never share read positions.
func (p *PartitionPlan) runPartition(ctx context.Context, part partition) (Result, error) {
	file, err := os.Open(p.path)
	if err != nil {
		return Result{}, wrapPipelineError(KindIO, "aggregate", err)
	}
	defer file.Close()

	section := io.NewSectionReader(file, part.begin, part.end-part.begin)
	reader := csv.NewReader(bufio.NewReaderSize(section, 1<<19))
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	result := NewResult()
	for i := 0; ; i++ {
		if i%4096 == 0 && ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, wrapPipelineError(KindDataFormat, "aggregate", err)
		}
		key, value, err := parseRecord(record)
		if err != nil {
			return Result{}, err
		}
		result.Rows++
		if value > p.threshold {
			result.Add(key, value)
		}
	}
	return result, nil
}

// validateFileHeader reads just the header line, checks it against the fixed
// schema and returns the byte offset where data rows begin.
func validateFileHeader(file *os.File) (int64, error) {
	buffered := bufio.NewReader(io.NewSectionReader(file, 0, 1<<20))
	line, err := buffered.ReadString('\n')
	if err != nil && err != io.EOF {
		return 0, wrapPipelineError(KindIO, "load", err)
	}
	header, err := csv.NewReader(bytes.NewReader([]byte(line))).Read()
	if err != nil {
		return 0, pipelineErrorf(KindDataFormat, "load", "failed to parse header line: %v", err)
	}
	if err := validateHeader(header); err != nil {
		return 0, err
	}
	return int64(len(line)), nil
}

// splitPartitions carves [begin, size) into byte ranges of roughly
// partitionRows records each, aligned so that no record straddles two
// partitions. The rows-per-partition target converts to a byte step through
// an average record length sampled from the head of the file.
func splitPartitions(file *os.File, begin, size int64, partitionRows int) ([]partition, error) {
	if begin >= size {
		return nil, nil
	}
	recordBytes, err := estimateRecordBytes(file, begin, size)
	if err != nil {
		return nil, err
	}
	step := int64(partitionRows) * recordBytes
	if step <= 0 {
		step = size - begin
	}

	partitions := make([]partition, 0)
	base := begin
	for {
		targetEnd := base + step
		if targetEnd >= size {
			partitions = append(partitions, partition{index: len(partitions), begin: base, end: size})
			break
		}
		aligned, err := nextRecordBoundary(file, targetEnd, size)
		if err != nil {
			return nil, err
		}
		if aligned >= size {
			partitions = append(partitions, partition{index: len(partitions), begin: base, end: size})
			break
		}
		partitions = append(partitions, partition{index: len(partitions), begin: base, end: aligned})
		base = aligned
	}
	return partitions, nil
}

// nextRecordBoundary returns the offset right after the first newline at or
// past offset.
func nextRecordBoundary(file *os.File, offset, size int64) (int64, error) {
	reader := bufio.NewReader(io.NewSectionReader(file, offset, size-offset))
	for {
		b, err := reader.ReadByte()
		if err == io.EOF {
			return size, nil
		}
		if err != nil {
			return 0, err
		}
		offset++
		if b == '\n' {
			return offset, nil
		}
	}
}

// estimateRecordBytes samples the head of the data section to derive an
// average record length.
func estimateRecordBytes(file *os.File, begin, size int64) (int64, error) {
	window := int64(64 * 1024)
	if begin+window > size {
		window = size - begin
	}
	buf := make([]byte, window)
	n, err := file.ReadAt(buf, begin)
	if err != nil && err != io.EOF {
		return 0, err
	}
	lines := int64(bytes.Count(buf[:n], []byte{'\n'}))
	if lines == 0 {
		return int64(n) + 1, nil
	}
	return int64(n) / lines, nil
}
