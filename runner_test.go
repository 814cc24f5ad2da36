package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunnersAgree(t *testing.T) {
	dataset := testDataset(t, 5000)
	require.NoError(t, EnsureDataset(dataset))

	sequential := &SequentialRunner{Threshold: 0}
	partitioned := &PartitionedRunner{Threshold: 0, PartitionRows: 500}

	a, err := sequential.Run(context.Background(), dataset.Path)
	require.NoError(t, err)
	b, err := partitioned.Run(context.Background(), dataset.Path)
	require.NoError(t, err)

	require.Equal(t, 5000, a.Rows)
	require.Equal(t, 5000, b.Rows)
	require.Equal(t, a.Keys(), b.Keys())
	require.NoError(t, CompareResults(a, b, 1e-9))
}

func TestRunnersKeepAllCategoriesWithoutFilter(t *testing.T) {
	dataset := testDataset(t, 1000)
	require.NoError(t, EnsureDataset(dataset))

	// threshold below any generated value, so nothing is filtered out
	threshold := -1e18
	sequential := &SequentialRunner{Threshold: threshold}
	partitioned := &PartitionedRunner{Threshold: threshold, PartitionRows: 100}

	a, err := sequential.Run(context.Background(), dataset.Path)
	require.NoError(t, err)
	b, err := partitioned.Run(context.Background(), dataset.Path)
	require.NoError(t, err)

	require.Len(t, a.Groups, dataset.Categories)
	require.Len(t, b.Groups, dataset.Categories)

	var total int64
	for _, stat := range a.Groups {
		total += stat.Count
	}
	require.Equal(t, int64(1000), total)
	require.NoError(t, CompareResults(a, b, 1e-9))
}

func TestRunnersFailOnStaleSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stale.csv")
	require.NoError(t, os.WriteFile(path, []byte("foo,bar\n1,2\n3,4\n"), 0o644))

	for _, runner := range []PipelineRunner{
		&SequentialRunner{Threshold: 0},
		&PartitionedRunner{Threshold: 0, PartitionRows: 100},
	} {
		_, err := runner.Run(context.Background(), path)
		require.Error(t, err, "runner %v", runner.Name())

		kind, ok := ErrorKindOf(err)
		require.True(t, ok)
		require.Equal(t, KindDataFormat, kind)

		stage, _ := ErrorStageOf(err)
		require.Equal(t, "load", stage)
	}
}

func TestPartitionedFailsOnMalformedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "malformed.csv")
	content := "user_id,category,value,timestamp\n" +
		"1,A,1.5,2023-01-01 00:00:00\n" +
		"2,B,not-a-number,2023-01-01 00:00:01\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	partitioned := &PartitionedRunner{Threshold: 0, PartitionRows: 100}
	_, err := partitioned.Run(context.Background(), path)
	require.Error(t, err)

	kind, ok := ErrorKindOf(err)
	require.True(t, ok)
	require.Equal(t, KindDataFormat, kind)
}

func TestSplitPartitionsCoverDataSection(t *testing.T) {
	dataset := testDataset(t, 2000)
	require.NoError(t, EnsureDataset(dataset))

	file, err := os.Open(dataset.Path)
	require.NoError(t, err)
	defer file.Close()

	stat, err := file.Stat()
	require.NoError(t, err)

	headerEnd, err := validateFileHeader(file)
	require.NoError(t, err)

	partitions, err := splitPartitions(file, headerEnd, stat.Size(), 100)
	require.NoError(t, err)
	require.Greater(t, len(partitions), 1)

	require.Equal(t, headerEnd, partitions[0].begin)
	for i := 1; i < len(partitions); i++ {
		require.Equal(t, partitions[i-1].end, partitions[i].begin)
	}
	require.Equal(t, stat.Size(), partitions[len(partitions)-1].end)

	// every boundary lands right after a newline so no record straddles
	buf := make([]byte, 1)
	for _, part := range partitions {
		_, err := file.ReadAt(buf, part.end-1)
		require.NoError(t, err)
		require.Equal(t, byte('\n'), buf[0])
	}
}

func TestPartitionedRespectsCancellation(t *testing.T) {
	dataset := testDataset(t, 5000)
	require.NoError(t, EnsureDataset(dataset))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	partitioned := &PartitionedRunner{Threshold: 0, PartitionRows: 100}
	_, err := partitioned.Run(ctx, dataset.Path)
	require.Error(t, err)
}
