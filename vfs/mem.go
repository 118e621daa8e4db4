package vfs

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/eplite/eplite/common"
)

// MemVFS is an in-memory VFS for unit tests that should not touch the
// filesystem: every memFile keeps its bytes in a growable slice and its
// lock state in a process-local registry, mirroring the teacher's
// preference for small, swappable concrete types.
type MemVFS struct {
	mu    sync.Mutex
	files map[string]*memFileData
}

func NewMem() *MemVFS {
	return &MemVFS{files: make(map[string]*memFileData)}
}

type memFileData struct {
	mu   sync.Mutex
	data []byte

	lockMu  sync.Mutex
	level   common.LockLevel
	readers int
}

func (m *MemVFS) Open(path string, flags OpenFlags) (File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fd, ok := m.files[path]
	if !ok {
		if !flags.Create {
			return nil, common.IoError(path, fmt.Errorf("no such file"))
		}
		fd = &memFileData{}
		m.files[path] = fd
	} else if flags.Exclusive {
		return nil, common.IoError(path, fmt.Errorf("file exists"))
	}
	return &memFile{path: path, fd: fd}, nil
}

func (m *MemVFS) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *MemVFS) Access(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok, nil
}

func (m *MemVFS) FullPathname(path string) (string, error) { return path, nil }

func (m *MemVFS) Randomness(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	return buf, err
}

func (m *MemVFS) CurrentTime() int64 { return time.Now().UnixNano() }

type memFile struct {
	path string
	fd   *memFileData

	level common.LockLevel
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	f.fd.mu.Lock()
	defer f.fd.mu.Unlock()

	if off >= int64(len(f.fd.data)) {
		return 0, common.IoError(f.path, fmt.Errorf("EOF"))
	}
	n := copy(p, f.fd.data[off:])
	if n < len(p) {
		return n, common.IoError(f.path, fmt.Errorf("short read"))
	}
	return n, nil
}

func (f *memFile) WriteAt(p []byte, off int64) (int, error) {
	f.fd.mu.Lock()
	defer f.fd.mu.Unlock()

	end := off + int64(len(p))
	if end > int64(len(f.fd.data)) {
		grown := make([]byte, end)
		copy(grown, f.fd.data)
		f.fd.data = grown
	}
	copy(f.fd.data[off:end], p)
	return len(p), nil
}

func (f *memFile) Truncate(size int64) error {
	f.fd.mu.Lock()
	defer f.fd.mu.Unlock()
	if size <= int64(len(f.fd.data)) {
		f.fd.data = f.fd.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, f.fd.data)
		f.fd.data = grown
	}
	return nil
}

func (f *memFile) FileSize() (int64, error) {
	f.fd.mu.Lock()
	defer f.fd.mu.Unlock()
	return int64(len(f.fd.data)), nil
}

func (f *memFile) Sync(common.SyncLevel) error { return nil }

func (f *memFile) DeviceCharacteristics() DeviceCharacteristics {
	// An in-memory file can honestly claim atomic, safe-append writes.
	return DeviceCharacteristics{AtomicWrites: true, SafeAppend: true, SectorSize: 512}
}

func (f *memFile) Close() error { return nil }

func (f *memFile) Lock(level common.LockLevel) error {
	f.fd.lockMu.Lock()
	defer f.fd.lockMu.Unlock()

	if f.level >= level {
		return nil
	}
	switch level {
	case common.LockShared:
		if f.fd.level >= common.LockPending {
			return common.ErrBusy
		}
		f.fd.readers++
		if f.fd.level < common.LockShared {
			f.fd.level = common.LockShared
		}
	default:
		if level == common.LockExclusive && f.fd.readers > 1 {
			return common.ErrBusy
		}
		if f.fd.level > f.level && f.fd.level >= common.LockReserved {
			return common.ErrBusy
		}
		f.fd.level = level
	}
	f.level = level
	return nil
}

func (f *memFile) Unlock(level common.LockLevel) error {
	f.fd.lockMu.Lock()
	defer f.fd.lockMu.Unlock()

	if f.level <= level {
		return nil
	}
	if f.level >= common.LockShared && level < common.LockShared && f.fd.readers > 0 {
		f.fd.readers--
	}
	if f.level > common.LockShared || f.fd.readers == 0 {
		f.fd.level = level
	}
	if f.fd.readers > 0 && f.fd.level < common.LockShared {
		f.fd.level = common.LockShared
	}
	f.level = level
	return nil
}

func (f *memFile) CheckReservedLock() (bool, error) {
	f.fd.lockMu.Lock()
	defer f.fd.lockMu.Unlock()
	return f.fd.level >= common.LockReserved, nil
}
