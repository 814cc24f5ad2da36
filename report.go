package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

// Report is the outcome of one benchmark run: an ordered sequence of
// measurements plus the derived conclusion. It is an explicit value returned
// by System.Run and handed to printing and persisting, never process-wide
// state.
type Report struct {
	RunID        string
	Host         SysInfo
	Measurements []Measurement
	Conclusion   string
}

func BuildReport(runID string, host SysInfo, measurements []Measurement) Report {
	return Report{
		RunID:        runID,
		Host:         host,
		Measurements: measurements,
		Conclusion:   deriveConclusion(measurements),
	}
}

func deriveConclusion(measurements []Measurement) string {
	if len(measurements) < 2 {
		return ""
	}
	fastest, leanest := measurements[0], measurements[0]
	for _, m := range measurements[1:] {
		if m.Duration < fastest.Duration {
			fastest = m
		}
		if m.PeakRSS < leanest.PeakRSS {
			leanest = m
		}
	}
	parts := make([]string, 0, 2)
	slowest := measurements[0]
	for _, m := range measurements {
		if m.Duration > slowest.Duration {
			slowest = m
		}
	}
	if fastest.Duration > 0 && slowest.Pipeline != fastest.Pipeline {
		ratio := float64(slowest.Duration) / float64(fastest.Duration)
		parts = append(parts, fmt.Sprintf("%v was %.2fx faster", fastest.Pipeline, ratio))
	}
	heaviest := measurements[0]
	for _, m := range measurements {
		if m.PeakRSS > heaviest.PeakRSS {
			heaviest = m
		}
	}
	if heaviest.Pipeline != leanest.Pipeline {
		saved := float64(heaviest.PeakRSS-leanest.PeakRSS) / (1 << 20)
		parts = append(parts, fmt.Sprintf("%v used %.1f MB less peak memory", leanest.Pipeline, saved))
	}
	if len(parts) == 0 {
		return "pipelines performed identically"
	}
	return strings.Join(parts, "; ")
}

// Render formats the comparison table for the terminal, highlighting the
// fastest pipeline.
func (r Report) Render() string {
	var fastest string
	var best time.Duration
	for i, m := range r.Measurements {
		if i == 0 || m.Duration < best {
			fastest, best = m.Pipeline, m.Duration
		}
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "=== Performance Comparison (run %v) ===\n", r.RunID)
	fmt.Fprintf(&builder, "host: %v/%v, %v CPUs, %.1f GB RAM\n", r.Host.Platform, r.Host.Arch, r.Host.CPUCount, r.Host.RAM)

	writer := tabwriter.NewWriter(&builder, 2, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "pipeline\tduration\tpeak memory\trows")
	for _, m := range r.Measurements {
		name := m.Pipeline
		if name == fastest {
			name = color.New(color.FgGreen, color.Bold).Sprint(name)
		}
		fmt.Fprintf(writer, "%v\t%v\t%.1f MB\t%v\n", name, m.Duration.Round(time.Millisecond), float64(m.PeakRSS)/(1<<20), m.Rows)
	}
	writer.Flush()

	if r.Conclusion != "" {
		fmt.Fprintf(&builder, "conclusion: %v\n", r.Conclusion)
	}
	return builder.String()
}

// Save persists the report as a small CSV file, one row per pipeline.
func (r Report) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return wrapPipelineError(KindIO, "report", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"pipeline", "duration_seconds", "memory_bytes", "rows"}); err != nil {
		return wrapPipelineError(KindIO, "report", err)
	}
	for _, m := range r.Measurements {
		record := []string{
			m.Pipeline,
			strconv.FormatFloat(m.Duration.Seconds(), 'f', 6, 64),
			strconv.FormatUint(m.PeakRSS, 10),
			strconv.Itoa(m.Rows),
		}
		if err := writer.Write(record); err != nil {
			return wrapPipelineError(KindIO, "report", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return wrapPipelineError(KindIO, "report", err)
	}
	Logger.Infof("report saved to %v", path)
	return nil
}
