//go:build linux

package mmap

import (
	"syscall"
)

// mmapFile wraps the mmap system call for read-only shared mappings.
func mmapFile(fd int, length int) ([]byte, error) {
	return syscall.Mmap(fd, 0, length, syscall.PROT_READ, syscall.MAP_SHARED)
}

// munmapFile wraps the munmap system call.
func munmapFile(b []byte) error {
	return syscall.Munmap(b)
}

// adviseSequential hints the kernel that the mapping is read front to back.
func adviseSequential(b []byte) error {
	return syscall.Madvise(b, syscall.MADV_SEQUENTIAL)
}
