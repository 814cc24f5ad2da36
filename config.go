package main

import (
	"github.com/spf13/viper"
)

// Config collects every knob of a benchmark run. All values come from CLI
// flags, an optional config file or ETL_* environment variables; there is no
// other process-wide state.
type Config struct {
	DatasetPath     string
	Rows            int
	Seed            int64
	Categories      int
	PartitionRows   int
	FilterThreshold float64
	Warmup          int
	Attempts        int
	Tolerance       float64
	SaveReport      bool
	ReportPath      string
	ResultsDb       string
}

func DefaultConfig() Config {
	return Config{
		DatasetPath:     "data/large_dataset.csv",
		Rows:            1_000_000,
		Seed:            42,
		Categories:      4,
		PartitionRows:   100_000,
		FilterThreshold: 0,
		Warmup:          0,
		Attempts:        1,
		Tolerance:       1e-9,
		SaveReport:      false,
		ReportPath:      "benchmark_report.csv",
		ResultsDb:       "",
	}
}

func LoadConfig(v *viper.Viper) Config {
	return Config{
		DatasetPath:     v.GetString("dataset-path"),
		Rows:            v.GetInt("rows"),
		Seed:            v.GetInt64("seed"),
		Categories:      v.GetInt("categories"),
		PartitionRows:   v.GetInt("partition-size"),
		FilterThreshold: v.GetFloat64("filter-threshold"),
		Warmup:          v.GetInt("warmup"),
		Attempts:        v.GetInt("attempts"),
		Tolerance:       v.GetFloat64("tolerance"),
		SaveReport:      v.GetBool("save-report"),
		ReportPath:      v.GetString("report-path"),
		ResultsDb:       v.GetString("results-db"),
	}
}

// Validate runs before any file I/O so that a bad configuration never
// touches the disk.
func (c Config) Validate() error {
	if c.DatasetPath == "" {
		return pipelineErrorf(KindConfig, "config", "dataset path must not be empty")
	}
	if c.Rows <= 0 {
		return pipelineErrorf(KindConfig, "config", "row count must be positive, got %v", c.Rows)
	}
	if c.Categories <= 0 {
		return pipelineErrorf(KindConfig, "config", "category count must be positive, got %v", c.Categories)
	}
	if c.PartitionRows <= 0 {
		return pipelineErrorf(KindConfig, "config", "partition size must be positive, got %v", c.PartitionRows)
	}
	if c.Attempts <= 0 {
		return pipelineErrorf(KindConfig, "config", "attempts must be positive, got %v", c.Attempts)
	}
	if c.Warmup < 0 {
		return pipelineErrorf(KindConfig, "config", "warmup must not be negative, got %v", c.Warmup)
	}
	if c.Tolerance <= 0 {
		return pipelineErrorf(KindConfig, "config", "tolerance must be positive, got %v", c.Tolerance)
	}
	if c.SaveReport && c.ReportPath == "" {
		return pipelineErrorf(KindConfig, "config", "report path must not be empty when report saving is enabled")
	}
	return nil
}
