// Package scan implements the parallel scan executor: planning
// newline-aligned partitions over memory-mapped files and streaming typed
// record batches out of each partition.
package scan

import (
	"bytes"
	"os"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lflog/lflog/pkg/errors"
	"github.com/lflog/lflog/pkg/mmap"
)

const (
	// DefaultThreads is the target partition count per scan when neither
	// the option nor LFLOGTHREADS overrides it.
	DefaultThreads = 8

	// DefaultBatchRows is the batch flush threshold.
	DefaultBatchRows = 8192

	// minPartitionBytes keeps the planner from producing lots of tiny
	// partitions for small files.
	minPartitionBytes = 64 * 1024
)

// Threads resolves the scan parallelism: an explicit option wins, then the
// LFLOGTHREADS environment variable, then DefaultThreads.
func Threads(opt int) int {
	if opt > 0 {
		return opt
	}
	if env := os.Getenv("LFLOGTHREADS"); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			return n
		}
	}
	return DefaultThreads
}

// ExpandGlob resolves an input path or glob to a list of files. A path that
// names an existing file is returned as-is; otherwise it is treated as a
// doublestar glob. Zero matches is an input error.
func ExpandGlob(pattern string) ([]string, error) {
	if info, err := os.Stat(pattern); err == nil && !info.IsDir() {
		return []string{pattern}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "invalid glob pattern "+pattern)
	}

	var files []string
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, errors.New(errors.ErrorTypeInput, "no files found for path: "+pattern)
	}
	return files, nil
}

// Partition is a newline-aligned half-open byte range [Start, End) of one
// memory-mapped file. No line straddles two partitions.
type Partition struct {
	Region *mmap.Region
	Start  int64
	End    int64
}

// Plan memory-maps every file and splits each into byte ranges sized so the
// partition count per file approximates threads, with boundaries advanced to
// the next newline. Each returned partition holds one region reference; the
// consumer releases it when done with the partition.
func Plan(paths []string, threads int) ([]Partition, error) {
	if threads < 1 {
		threads = 1
	}

	var partitions []Partition
	for _, path := range paths {
		region, err := mmap.Open(path)
		if err != nil {
			// Roll back references taken so far.
			for _, p := range partitions {
				_ = p.Region.Release()
			}
			return nil, err
		}

		parts := planFile(region, threads)
		if len(parts) == 0 {
			_ = region.Release()
			continue
		}
		// Open granted one reference; the first partition adopts it.
		for i := 1; i < len(parts); i++ {
			region.Retain()
		}
		partitions = append(partitions, parts...)
	}
	return partitions, nil
}

func planFile(region *mmap.Region, threads int) []Partition {
	size := region.Size()
	if size == 0 {
		return nil
	}

	count := threads
	if size/int64(count) < minPartitionBytes {
		count = int(size / minPartitionBytes)
		if count < 1 {
			count = 1
		}
	}

	data := region.Data()
	var parts []Partition
	start := int64(0)
	for i := 1; i <= count; i++ {
		end := size
		if i < count {
			end = nextLineStart(data, size*int64(i)/int64(count))
		}
		if end > start {
			parts = append(parts, Partition{Region: region, Start: start, End: end})
			start = end
		}
		if start >= size {
			break
		}
	}
	return parts
}

// nextLineStart returns the offset just past the first newline at or after
// from, or the end of data when no newline follows.
func nextLineStart(data []byte, from int64) int64 {
	if from >= int64(len(data)) {
		return int64(len(data))
	}
	idx := bytes.IndexByte(data[from:], '\n')
	if idx < 0 {
		return int64(len(data))
	}
	return from + int64(idx) + 1
}
