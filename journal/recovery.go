package journal

import (
	"encoding/binary"

	"github.com/eplite/eplite/common"
	"github.com/eplite/eplite/vfs"
)

// IsHot implements §4.3's hot-journal test: file exists non-empty, header
// well-formed, the database has no reserved lock, and (if a super-journal
// is referenced in the journal's reserved tail) that super-journal file
// still exists.
func IsHot(v vfs.VFS, dbFile vfs.File, journalPath string) (bool, error) {
	ok, err := v.Access(journalPath)
	if err != nil || !ok {
		return false, err
	}

	f, err := v.Open(journalPath, vfs.OpenFlags{ReadOnly: true})
	if err != nil {
		return false, nil // unreadable journal is not actionable as hot
	}
	defer f.Close()

	size, err := f.FileSize()
	if err != nil || size == 0 {
		return false, nil
	}

	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return false, nil
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return false, nil
	}
	if h.PageCount <= 0 && h.PageCount != SafeAppendSentinel {
		return false, nil
	}

	reserved, err := dbFile.CheckReservedLock()
	if err != nil {
		return false, err
	}
	if reserved {
		return false, nil
	}

	if superPath := readSuperJournalName(f, size); superPath != "" {
		exists, _ := v.Access(superPath)
		if !exists {
			return false, nil
		}
	}

	return true, nil
}

// Recover implements §4.3's recovery algorithm: validate each page record's
// checksum, write originals back, truncate on shrink, then invalidate.
// Acquires EXCLUSIVE on dbFile for the duration, as the spec requires.
func Recover(v vfs.VFS, dbFile vfs.File, journalPath string) error {
	if err := dbFile.Lock(common.LockExclusive); err != nil {
		return err
	}
	defer dbFile.Unlock(common.LockShared)

	f, err := v.Open(journalPath, vfs.OpenFlags{})
	if err != nil {
		return err
	}
	defer f.Close()

	size, err := f.FileSize()
	if err != nil {
		return err
	}

	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return err
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return err
	}

	sector := int(h.SectorSize)
	if sector <= 0 {
		sector = HeaderSize
	}
	pageSize := int(h.PageSize)
	recordSize := int64(4 + pageSize + 4)

	pageCount := int64(h.PageCount)
	if h.PageCount == SafeAppendSentinel {
		pageCount = (size - int64(sector)) / recordSize
	}

	off := int64(sector)
	for i := int64(0); i < pageCount; i++ {
		if off+recordSize > size {
			break // torn tail; stop processing this segment
		}
		rec := make([]byte, recordSize)
		if _, err := f.ReadAt(rec, off); err != nil {
			break
		}
		pageNo := binary.BigEndian.Uint32(rec[0:4])
		original := rec[4 : 4+pageSize]
		wantCk := binary.BigEndian.Uint32(rec[4+pageSize:])
		if checksum(h.ChecksumNonce, original) != wantCk {
			break // invalid checksum; abandon the remainder of this segment
		}

		dstOff := int64(pageNo-1) * int64(pageSize)
		if _, err := dbFile.WriteAt(original, dstOff); err != nil {
			return err
		}
		off += recordSize
	}

	if h.InitialDBSize > 0 {
		if err := dbFile.Truncate(int64(h.InitialDBSize) * int64(pageSize)); err != nil {
			return err
		}
	}

	if err := dbFile.Sync(common.SyncFull); err != nil {
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}
	return v.Delete(journalPath)
}

// readSuperJournalName reads a NUL-terminated pathname from the journal's
// reserved tail, if one was written by a multi-database commit (§4.3). The
// tail begins immediately after the last page record; for a single-segment
// journal that is simply from the end of the last record to EOF.
func readSuperJournalName(f vfs.File, size int64) string {
	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return ""
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return ""
	}
	sector := int64(h.SectorSize)
	if sector <= 0 {
		return ""
	}
	recordSize := int64(4 + int(h.PageSize) + 4)
	pageCount := int64(h.PageCount)
	if h.PageCount == SafeAppendSentinel {
		pageCount = (size - sector) / recordSize
	}
	tailOff := sector + pageCount*recordSize
	if tailOff >= size {
		return ""
	}
	tail := make([]byte, size-tailOff)
	if _, err := f.ReadAt(tail, tailOff); err != nil {
		return ""
	}
	n := 0
	for n < len(tail) && tail[n] != 0 {
		n++
	}
	if n == 0 {
		return ""
	}
	return string(tail[:n])
}
