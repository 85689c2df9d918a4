// Package mmap provides memory-mapped file I/O for zero-copy reading of log
// files. A Region is mapped once and shared read-only by any number of
// concurrent partition scans; it is unmapped when the last reference is
// released.
package mmap

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/lflog/lflog/pkg/errors"
)

// Region is a read-only memory mapping of a whole file.
type Region struct {
	path string
	file *os.File
	data []byte
	refs atomic.Int32
}

// Open maps the file at path. The returned region holds one reference; an
// empty file yields a region with zero-length data and no mapping.
func Open(path string) (*Region, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "failed to open file "+path)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "failed to stat file "+path)
	}

	r := &Region{path: abs, file: file}
	r.refs.Store(1)

	size := stat.Size()
	if size == 0 {
		return r, nil
	}

	data, err := mmapFile(int(file.Fd()), int(size))
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "failed to mmap file "+path)
	}
	// Non-fatal; scans work without the hint.
	_ = adviseSequential(data)

	r.data = data
	return r, nil
}

// Path returns the absolute path of the mapped file.
func (r *Region) Path() string {
	return r.path
}

// Data returns the mapped bytes. The slice stays valid until the last
// reference is released.
func (r *Region) Data() []byte {
	return r.data
}

// Size returns the length of the mapping in bytes.
func (r *Region) Size() int64 {
	return int64(len(r.data))
}

// Retain adds a reference to the region.
func (r *Region) Retain() {
	r.refs.Add(1)
}

// Release drops a reference. When the count reaches zero the mapping is
// unmapped and the file closed; any slices into Data become invalid.
func (r *Region) Release() error {
	if r.refs.Add(-1) != 0 {
		return nil
	}

	var err error
	if r.data != nil {
		err = munmapFile(r.data)
		r.data = nil
	}
	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	return err
}
