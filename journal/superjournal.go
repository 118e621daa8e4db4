package journal

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/eplite/eplite/common"
	"github.com/eplite/eplite/vfs"
)

// SuperJournal coordinates the two-phase, multi-database commit protocol
// (§4.3 "Multi-database commit"): a listing file naming every participating
// rollback journal, whose own existence is the atomic multi-file commit
// point. Named with a random suffix (google/uuid) the way a real multi-file
// commit needs a name unlikely to collide with a concurrent transaction's
// own super-journal.
type SuperJournal struct {
	vfs  vfs.VFS
	path string
	file vfs.File
}

// NewSuperJournal creates a super-journal next to dir, named
// "<dir>/eplite-mj-<uuid>".
func NewSuperJournal(v vfs.VFS, dir string) (*SuperJournal, error) {
	path := fmt.Sprintf("%s/eplite-mj-%s", dir, uuid.NewString())
	f, err := v.Open(path, vfs.OpenFlags{Create: true, Exclusive: true})
	if err != nil {
		return nil, err
	}
	return &SuperJournal{vfs: v, path: path, file: f}, nil
}

func (s *SuperJournal) Path() string { return s.path }

// WriteMembers writes the NUL-separated list of participating journal
// pathnames and syncs the file before any individual journal header
// references it. The containing directory is not synced.
func (s *SuperJournal) WriteMembers(journalPaths []string) error {
	var buf []byte
	for _, p := range journalPaths {
		buf = append(buf, p...)
		buf = append(buf, 0)
	}
	if _, err := s.file.WriteAt(buf, 0); err != nil {
		return err
	}
	return s.file.Sync(common.SyncFull)
}

// Commit is the multi-file commit point (§4.3): deleting the super-journal
// makes the whole multi-database transaction visible atomically, since
// recovery treats any rollback journal naming a now-vanished super-journal
// as no longer hot.
func (s *SuperJournal) Commit() error {
	if err := s.file.Close(); err != nil {
		return err
	}
	return s.vfs.Delete(s.path)
}

// AttachToJournal writes this super-journal's pathname into j's reserved
// tail (immediately after its last page record) and syncs twice, per
// §4.3: "sync each journal twice (before and after writing the
// super-journal name)". The first sync is SyncHeader's responsibility;
// this performs the write and the second sync.
func (s *SuperJournal) AttachToJournal(j *Journal) error {
	tailOff := int64(j.sectorSize) + int64(len(j.order))*int64(4+j.pageSize+4)
	name := append([]byte(s.path), 0)
	if _, err := j.file.WriteAt(name, tailOff); err != nil {
		return err
	}
	return j.file.Sync(common.SyncFull)
}
