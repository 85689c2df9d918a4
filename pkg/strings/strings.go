// Package strings provides zero-copy string/byte conversions for the scan
// hot path.
package strings

import (
	"unsafe"
)

// BytesToString converts a byte slice to a string without copying. The
// caller must not mutate b while the string is alive.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// StringToBytes converts a string to a byte slice without copying. The
// returned slice must not be mutated.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
