package main

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

const memorySampleInterval = 10 * time.Millisecond

// Measurement is one pipeline invocation's recorded cost: wall-clock
// duration, peak resident memory observed during the measurement window and
// the number of data rows the pipeline scanned.
type Measurement struct {
	Pipeline string
	Duration time.Duration
	PeakRSS  uint64
	Rows     int
}

// Benchmark wraps pipeline invocations with timing and memory measurement.
// Warmup runs are discarded; measured attempts keep the fastest one so the
// default of a single attempt stays a deterministic single measurement.
type Benchmark struct {
	Warmup   int
	Attempts int
}

func (b *Benchmark) Measure(ctx context.Context, name string, run func(context.Context) (Result, error)) (Result, Measurement, error) {
	for i := 0; i < b.Warmup; i++ {
		Logger.Infof("running warmup #%v/%v for pipeline %v", i+1, b.Warmup, name)
		if _, err := run(ctx); err != nil {
			return Result{}, Measurement{}, err
		}
	}

	attempts := b.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var best Measurement
	var result Result
	for i := 0; i < attempts; i++ {
		Logger.Infof("running workload #%v/%v for pipeline %v", i+1, attempts, name)

		sampler := startMemorySampler()
		start := time.Now()
		current, err := run(ctx)
		elapsed := time.Since(start)
		peak := sampler.Stop()

		if err != nil {
			return Result{}, Measurement{}, err
		}

		measurement := Measurement{Pipeline: name, Duration: elapsed, PeakRSS: peak, Rows: current.Rows}
		if i == 0 || measurement.Duration < best.Duration {
			best = measurement
			result = current
		}
	}
	Logger.Infof("pipeline %v: duration=%v peak_rss=%v rows=%v", name, best.Duration, best.PeakRSS, best.Rows)
	return result, best, nil
}

// memorySampler polls the resident set size of this process while a
// measurement window is open and keeps the maximum it observed.
type memorySampler struct {
	peak chan uint64
	stop chan struct{}
}

func startMemorySampler() *memorySampler {
	s := &memorySampler{
		peak: make(chan uint64, 1),
		stop: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *memorySampler) loop() {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		Logger.Warnf("failed to attach memory sampler: %v", err)
		s.peak <- 0
		return
	}
	ticker := time.NewTicker(memorySampleInterval)
	defer ticker.Stop()

	peak := sampleRSS(proc, 0)
	for {
		select {
		case <-ticker.C:
			peak = sampleRSS(proc, peak)
		case <-s.stop:
			s.peak <- sampleRSS(proc, peak)
			return
		}
	}
}

func sampleRSS(proc *process.Process, peak uint64) uint64 {
	info, err := proc.MemoryInfo()
	if err != nil {
		return peak
	}
	if info.RSS > peak {
		return info.RSS
	}
	return peak
}

// Stop ends the sampling window and returns the peak RSS seen inside it.
func (s *memorySampler) Stop() uint64 {
	close(s.stop)
	return <-s.peak
}
