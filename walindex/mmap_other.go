//go:build !unix

package walindex

// mapSharedMemory falls back to a heap buffer on platforms without a unix
// mmap equivalent wired up here; cross-process coordination degrades to
// single-process, matching vfs/os_other.go's lock fallback.
func mapSharedMemory(path string) ([]byte, error) {
	return make([]byte, mmapRegionSize), nil
}

func unmapSharedMemory(data []byte) error { return nil }

const mmapRegionSize = 4096
