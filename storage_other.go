// FILE: storage_other.go

//go:build !unix

package linelog

import "math"

// diskFreeSpace is not measured on this platform; the free space check always passes
func diskFreeSpace(path string) (int64, error) {
	return math.MaxInt64, nil
}
