//go:build unix

package vfs

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/eplite/eplite/common"
)

// OSVFS is the default, OS-backed VFS. It uses fcntl byte-range locks on a
// handful of well-known offsets (vfs/lockbytes.go) to implement the five
// escalation levels across processes, matching the protocol in §3.10.
type OSVFS struct{}

// NewOS returns the default OS-backed VFS.
func NewOS() *OSVFS { return &OSVFS{} }

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
	return &osFile{f: f, path: path}, nil
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

// osFile implements File over a real *os.File plus the fcntl byte-range
// lock ladder. heldLevel is protected by mu and mirrors what this handle
// currently believes it holds; the authoritative state lives in the kernel.
type osFile struct {
	f    *os.File
	path string

	mu        sync.Mutex
	heldLevel common.LockLevel
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

func (o *osFile) tryLock(typ int16, start, length int64) error {
	fl := unix.Flock_t{Type: typ, Whence: 0, Start: start, Len: length}
	if err := unix.FcntlFlock(o.f.Fd(), unix.F_SETLK, &fl); err != nil {
		if err == unix.EACCES || err == unix.EAGAIN {
			return common.ErrBusy
		}
		return common.IoError(o.path, err)
	}
	return nil
}

func (o *osFile) Lock(level common.LockLevel) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.heldLevel >= level {
		return nil
	}

	switch level {
	case common.LockShared:
		// A pending exclusive writer (someone holding PENDING) blocks new
		// readers; a non-blocking probe of that byte enforces it.
		if err := o.tryLock(unix.F_RDLCK, pendingByte, 1); err != nil {
			return err
		}
		if err := o.tryLock(unix.F_UNLCK, pendingByte, 1); err != nil {
			return err
		}
		if err := o.tryLock(unix.F_RDLCK, sharedFirst, sharedSize); err != nil {
			return err
		}
	case common.LockReserved:
		if err := o.tryLock(unix.F_WRLCK, reservedByte, 1); err != nil {
			return err
		}
	case common.LockPending:
		if err := o.tryLock(unix.F_WRLCK, pendingByte, 1); err != nil {
			return err
		}
	case common.LockExclusive:
		if o.heldLevel < common.LockPending {
			if err := o.tryLock(unix.F_WRLCK, pendingByte, 1); err != nil {
				return err
			}
		}
		if err := o.tryLock(unix.F_WRLCK, sharedFirst, sharedSize); err != nil {
			return err
		}
	}

	o.heldLevel = level
	return nil
}

func (o *osFile) Unlock(level common.LockLevel) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.heldLevel <= level {
		return nil
	}

	if level < common.LockExclusive && o.heldLevel >= common.LockExclusive {
		if err := o.tryLock(unix.F_RDLCK, sharedFirst, sharedSize); err != nil {
			return err
		}
	}
	if level < common.LockPending && o.heldLevel >= common.LockPending {
		_ = o.tryLock(unix.F_UNLCK, pendingByte, 1)
	}
	if level < common.LockReserved && o.heldLevel >= common.LockReserved {
		_ = o.tryLock(unix.F_UNLCK, reservedByte, 1)
	}
	if level == common.LockNone && o.heldLevel >= common.LockShared {
		_ = o.tryLock(unix.F_UNLCK, sharedFirst, sharedSize)
	}

	o.heldLevel = level
	return nil
}

func (o *osFile) CheckReservedLock() (bool, error) {
	fl := unix.Flock_t{Type: unix.F_WRLCK, Whence: 0, Start: reservedByte, Len: 1}
	if err := unix.FcntlFlock(o.f.Fd(), unix.F_GETLK, &fl); err != nil {
		return false, common.IoError(o.path, err)
	}
	return fl.Type != unix.F_UNLCK, nil
}
