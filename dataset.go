package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DatasetColumns is the fixed schema of the generated file. Both runners
// validate the header against it instead of inferring types from content.
var DatasetColumns = []string{"user_id", "category", "value", "timestamp"}

const (
	columnUserId = iota
	columnCategory
	columnValue
	columnTimestamp
	columnCount
)

const timestampLayout = "2006-01-02 15:04:05"

type DatasetConfig struct {
	Path       string
	Rows       int
	Seed       int64
	Categories int
	MaxUserId  int64
	ValueSigma float64
	StartTime  time.Time
}

func NewDatasetConfig(config Config) DatasetConfig {
	return DatasetConfig{
		Path:       config.DatasetPath,
		Rows:       config.Rows,
		Seed:       config.Seed,
		Categories: config.Categories,
		MaxUserId:  100_000,
		ValueSigma: 100,
		StartTime:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// categoryName maps a category index to its label: A, B, C, ... then C26,
// C27, ... once the alphabet runs out.
func categoryName(index int) string {
	if index < 26 {
		return string(rune('A' + index))
	}
	return fmt.Sprintf("C%v", index)
}

// EnsureDataset generates the CSV file at d.Path unless it already exists.
// Existing files are reused untouched so repeated runs are cheap and
// byte-identical; stale files with a different schema are caught later by
// the runners, not here.
func EnsureDataset(d DatasetConfig) error {
	if d.Rows <= 0 {
		return pipelineErrorf(KindConfig, "generate", "row count must be positive, got %v", d.Rows)
	}
	if _, err := os.Stat(d.Path); err == nil {
		Logger.Infof("dataset %v already exists, skip generation", d.Path)
		return nil
	}
	Logger.Infof("generating dataset %v with %v rows (seed %v)", d.Path, d.Rows, d.Seed)

	if dir := filepath.Dir(d.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return wrapPipelineError(KindIO, "generate", err)
		}
	}

	// Written to a temp name first so an interrupted run never leaves a
	// truncated file that a later run would happily reuse.
	tmp := d.Path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return wrapPipelineError(KindIO, "generate", err)
	}
	defer os.Remove(tmp)

	buffered := bufio.NewWriterSize(file, 1<<20)
	writer := csv.NewWriter(buffered)
	if err := writer.Write(DatasetColumns); err != nil {
		file.Close()
		return wrapPipelineError(KindIO, "generate", err)
	}

	rng := rand.New(rand.NewSource(d.Seed))
	record := make([]string, columnCount)
	for i := 0; i < d.Rows; i++ {
		record[columnUserId] = strconv.FormatInt(1+rng.Int63n(d.MaxUserId), 10)
		record[columnCategory] = categoryName(rng.Intn(d.Categories))
		record[columnValue] = strconv.FormatFloat(rng.NormFloat64()*d.ValueSigma, 'f', 6, 64)
		record[columnTimestamp] = d.StartTime.Add(time.Duration(i) * time.Second).Format(timestampLayout)
		if err := writer.Write(record); err != nil {
			file.Close()
			return wrapPipelineError(KindIO, "generate", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return wrapPipelineError(KindIO, "generate", err)
	}
	if err := buffered.Flush(); err != nil {
		file.Close()
		return wrapPipelineError(KindIO, "generate", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return wrapPipelineError(KindIO, "generate", err)
	}
	if err := file.Close(); err != nil {
		return wrapPipelineError(KindIO, "generate", err)
	}
	if err := os.Rename(tmp, d.Path); err != nil {
		return wrapPipelineError(KindIO, "generate", err)
	}
	Logger.Infof("dataset generated at %v", d.Path)
	return nil
}

// validateHeader checks the loaded header against the fixed schema.
func validateHeader(header []string) error {
	if len(header) != len(DatasetColumns) {
		return pipelineErrorf(KindDataFormat, "load", "expected %v columns %v, got %v", len(DatasetColumns), DatasetColumns, header)
	}
	for i, column := range DatasetColumns {
		if header[i] != column {
			return pipelineErrorf(KindDataFormat, "load", "expected column #%v to be %q, got %q", i, column, header[i])
		}
	}
	return nil
}

// parseRecord extracts the grouping key and the aggregated value of a data
// row. The remaining columns only need to be present, not parsed.
func parseRecord(record []string) (string, float64, error) {
	if len(record) != columnCount {
		return "", 0, pipelineErrorf(KindDataFormat, "load", "expected %v fields, got %v: %v", columnCount, len(record), record)
	}
	value, err := strconv.ParseFloat(record[columnValue], 64)
	if err != nil {
		return "", 0, pipelineErrorf(KindDataFormat, "load", "failed to parse value %q: %v", record[columnValue], err)
	}
	return record[columnCategory], value, nil
}
