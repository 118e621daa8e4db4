//go:build unix

package walindex

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapRegionSize is the size of the mapped "<db>-shm" region. The lookup
// table (pageToFrames) and the lock and reader slots live in Go fields of
// the Index, not in the region, treating the wal-index's internal layout as
// implementation-defined so long as the query contract holds (§4.5).
const mmapRegionSize = 4096

// mapSharedMemory backs an Index's region with a real shared mmap of
// "<db>-shm", creating the file and sizing it to mmapRegionSize. New calls
// it for every Index; since the Index keeps its state outside the mapping,
// the mapping gives no cross-process visibility of that state.
func mapSharedMemory(path string) ([]byte, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := f.Truncate(mmapRegionSize); err != nil {
		return nil, err
	}
	return unix.Mmap(int(f.Fd()), 0, mmapRegionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func unmapSharedMemory(data []byte) error {
	return unix.Munmap(data)
}
