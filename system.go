package main

import (
	"context"
	"runtime"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// PipelineRunner is a black-box pipeline: load the dataset, filter, group
// and aggregate, and hand back the small result table. How it schedules the
// work internally is its own business.
type PipelineRunner interface {
	Name() string
	Run(ctx context.Context, path string) (Result, error)
}

type SysInfo struct {
	Arch     string
	Hostname string
	Platform string
	CPUCount int
	CPUFreq  float64
	RAM      float64
}

func HostStat() SysInfo {
	hostStat, _ := host.Info()
	cpuStat, _ := cpu.Info()
	vmStat, _ := mem.VirtualMemory()
	totalFreq := 0.0
	for _, c := range cpuStat {
		totalFreq += c.Mhz
	}
	info := SysInfo{
		Arch:     runtime.GOARCH,
		Hostname: hostStat.Hostname,
		Platform: hostStat.Platform,
		CPUCount: len(cpuStat),
	}
	if len(cpuStat) > 0 {
		info.CPUFreq = totalFreq / float64(len(cpuStat)) * 1000
	}
	if vmStat != nil {
		info.RAM = float64(vmStat.Total) / 1024 / 1024 / 1024
	}
	return info
}

// System orchestrates one benchmark run: ensure the dataset exists, run the
// sequential pipeline, run the partitioned pipeline, verify the two results
// agree and assemble the comparison report. Runners execute strictly one
// after another on the calling goroutine so one pipeline's execution never
// pollutes the other's measurement window.
type System struct {
	config    Config
	benchmark Benchmark
	runners   []PipelineRunner
}

func NewSystem(config Config) *System {
	return &System{
		config:    config,
		benchmark: Benchmark{Warmup: config.Warmup, Attempts: config.Attempts},
		runners: []PipelineRunner{
			&SequentialRunner{Threshold: config.FilterThreshold},
			&PartitionedRunner{Threshold: config.FilterThreshold, PartitionRows: config.PartitionRows},
		},
	}
}

func (s *System) Run(ctx context.Context) (Report, error) {
	if err := s.config.Validate(); err != nil {
		return Report{}, err
	}

	info := HostStat()
	Logger.Infof("starting ETL benchmark, host stat: %+v", info)

	if err := EnsureDataset(NewDatasetConfig(s.config)); err != nil {
		return Report{}, err
	}

	results := make([]Result, 0, len(s.runners))
	measurements := make([]Measurement, 0, len(s.runners))
	for _, runner := range s.runners {
		Logger.Infof("running %v pipeline on %v", runner.Name(), s.config.DatasetPath)
		result, measurement, err := s.benchmark.Measure(ctx, runner.Name(), func(ctx context.Context) (Result, error) {
			return runner.Run(ctx, s.config.DatasetPath)
		})
		if err != nil {
			return Report{}, err
		}
		results = append(results, result)
		measurements = append(measurements, measurement)
	}

	for i := 1; i < len(results); i++ {
		if err := CompareResults(results[0], results[i], s.config.Tolerance); err != nil {
			return Report{}, err
		}
	}
	Logger.Infof("pipeline results agree within tolerance %v", s.config.Tolerance)
	Logger.Debugf("aggregation output:\n%v", results[0])

	return BuildReport(uuid.NewString(), info, measurements), nil
}
