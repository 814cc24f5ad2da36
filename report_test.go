package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testMeasurements() []Measurement {
	return []Measurement{
		{Pipeline: "sequential", Duration: 200 * time.Millisecond, PeakRSS: 64 << 20, Rows: 1000},
		{Pipeline: "partitioned", Duration: 100 * time.Millisecond, PeakRSS: 32 << 20, Rows: 1000},
	}
}

func TestConclusionNamesWinners(t *testing.T) {
	report := BuildReport("run-1", SysInfo{}, testMeasurements())
	require.Contains(t, report.Conclusion, "partitioned was 2.00x faster")
	require.Contains(t, report.Conclusion, "partitioned used 32.0 MB less peak memory")
}

func TestConclusionForSplitWinners(t *testing.T) {
	measurements := []Measurement{
		{Pipeline: "sequential", Duration: 100 * time.Millisecond, PeakRSS: 64 << 20, Rows: 1000},
		{Pipeline: "partitioned", Duration: 150 * time.Millisecond, PeakRSS: 16 << 20, Rows: 1000},
	}
	report := BuildReport("run-2", SysInfo{}, measurements)
	require.Contains(t, report.Conclusion, "sequential was 1.50x faster")
	require.Contains(t, report.Conclusion, "partitioned used 48.0 MB less peak memory")
}

func TestRenderListsAllPipelines(t *testing.T) {
	report := BuildReport("run-3", SysInfo{Platform: "linux", Arch: "amd64", CPUCount: 8, RAM: 32}, testMeasurements())
	rendered := report.Render()
	require.Contains(t, rendered, "run-3")
	require.Contains(t, rendered, "sequential")
	require.Contains(t, rendered, "partitioned")
	require.Contains(t, rendered, "conclusion:")
}

func TestSaveWritesOneRowPerPipeline(t *testing.T) {
	report := BuildReport("run-4", SysInfo{}, testMeasurements())
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, report.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "pipeline,duration_seconds,memory_bytes,rows", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "sequential,0.200000,"))
	require.True(t, strings.HasPrefix(lines[2], "partitioned,0.100000,"))
}
