//go:build !unix

package vfs

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eplite/eplite/common"
)

// OSVFS is the default, OS-backed VFS for platforms without fcntl
// byte-range locks (e.g. Windows). Locking degrades to a process-local
// registry keyed by absolute path: it enforces the same SHARED < RESERVED
// < PENDING < EXCLUSIVE ladder for connections within this process, but —
// unlike the unix build — cannot see a writer in a different process.
type OSVFS struct{}

func NewOS() *OSVFS { return &OSVFS{} }

var lockRegistry = struct {
	mu    sync.Mutex
	files map[string]*fileLockState
}{files: make(map[string]*fileLockState)}

type fileLockState struct {
	mu      sync.Mutex
	readers int
	level   common.LockLevel
}

func lockStateFor(path string) *fileLockState {
	lockRegistry.mu.Lock()
	defer lockRegistry.mu.Unlock()
	st, ok := lockRegistry.files[path]
	if !ok {
		st = &fileLockState{}
		lockRegistry.files[path] = st
	}
	return st
}

func (OSVFS) Open(path string, flags OpenFlags) (File, error) {
	mode := os.O_RDWR
	if flags.ReadOnly {
		mode = os.O_RDONLY
	}
	if flags.Create {
		mode |= os.O_CREATE
	}
	if flags.Exclusive {
		mode |= os.O_EXCL
	}
	f, err := os.OpenFile(path, mode, 0644)
	if err != nil {
		return nil, common.IoError(path, err)
	}
	abs, _ := filepath.Abs(path)
	return &osFile{f: f, path: path, state: lockStateFor(abs)}, nil
}

func (OSVFS) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return common.IoError(path, err)
	}
	return nil
}

func (OSVFS) Access(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, common.IoError(path, err)
}

func (OSVFS) FullPathname(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", common.IoError(path, err)
	}
	return abs, nil
}

func (OSVFS) Randomness(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (OSVFS) CurrentTime() int64 { return time.Now().UnixNano() }

type osFile struct {
	f     *os.File
	path  string
	state *fileLockState

	level common.LockLevel
}

func (o *osFile) ReadAt(p []byte, off int64) (int, error) {
	n, err := o.f.ReadAt(p, off)
	if err != nil {
		return n, common.IoError(fmt.Sprintf("%s@%d", o.path, off), err)
	}
	return n, nil
}

func (o *osFile) WriteAt(p []byte, off int64) (int, error) {
	n, err := o.f.WriteAt(p, off)
	if err != nil {
		return n, common.IoError(fmt.Sprintf("%s@%d", o.path, off), err)
	}
	return n, nil
}

func (o *osFile) Truncate(size int64) error {
	if err := o.f.Truncate(size); err != nil {
		return common.IoError(o.path, err)
	}
	return nil
}

func (o *osFile) FileSize() (int64, error) {
	fi, err := o.f.Stat()
	if err != nil {
		return 0, common.IoError(o.path, err)
	}
	return fi.Size(), nil
}

func (o *osFile) Sync(level common.SyncLevel) error {
	if level == common.SyncNormal {
		return nil
	}
	if err := o.f.Sync(); err != nil {
		return common.IoError(o.path, err)
	}
	return nil
}

func (o *osFile) DeviceCharacteristics() DeviceCharacteristics {
	return DefaultDeviceCharacteristics()
}

func (o *osFile) Close() error {
	_ = o.Unlock(common.LockNone)
	if err := o.f.Close(); err != nil {
		return common.IoError(o.path, err)
	}
	return nil
}

func (o *osFile) Lock(level common.LockLevel) error {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()

	if o.level >= level {
		return nil
	}

	switch level {
	case common.LockShared:
		if o.state.level >= common.LockPending {
			return common.ErrBusy
		}
		o.state.readers++
		if o.state.level < common.LockShared {
			o.state.level = common.LockShared
		}
	case common.LockReserved, common.LockPending, common.LockExclusive:
		if level == common.LockExclusive && o.state.readers > 1 {
			return common.ErrBusy
		}
		if o.state.level > o.level && o.state.level >= common.LockReserved {
			return common.ErrBusy
		}
		o.state.level = level
	}

	o.level = level
	return nil
}

func (o *osFile) Unlock(level common.LockLevel) error {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()

	if o.level <= level {
		return nil
	}

	if o.level >= common.LockShared && level < common.LockShared {
		if o.state.readers > 0 {
			o.state.readers--
		}
	}
	if o.level > common.LockShared || o.state.readers == 0 {
		o.state.level = level
	}
	if o.state.readers > 0 && o.state.level < common.LockShared {
		o.state.level = common.LockShared
	}

	o.level = level
	return nil
}

func (o *osFile) CheckReservedLock() (bool, error) {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	return o.state.level >= common.LockReserved, nil
}
