package eplite

// IncrementalVacuum reclaims up to nPages trailing freelist pages by
// truncating them off the end of the file, the way §4.7's incremental
// vacuum mode shrinks a database without relocating every live page (full
// auto-vacuum page relocation is out of scope; see DESIGN.md). Only the
// freelist pages that are already the last pages in the file are eligible,
// since truncating past a live page would corrupt the database.
func (db *DB) IncrementalVacuum(nPages int) (reclaimed int, err error) {
	if err := db.p.BeginWrite(); err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			db.p.Rollback()
		}
	}()

	for reclaimed < nPages {
		free, ferr := db.p.FreelistPages()
		if ferr != nil {
			return reclaimed, ferr
		}
		last := db.p.Header().DatabaseSizePages
		if !containsPage(free, last) {
			break
		}
		if rerr := db.p.ReclaimTrailingFreePage(last); rerr != nil {
			return reclaimed, rerr
		}
		reclaimed++
	}

	if err := db.p.Commit(); err != nil {
		return reclaimed, err
	}
	return reclaimed, nil
}

// Vacuum reclaims every trailing free page the incremental step can reach.
// Full VACUUM's page-relocating rebuild (moving live pages down to fill
// holes left by freed pages in the middle of the file) is not implemented;
// see DESIGN.md.
func (db *DB) Vacuum() (reclaimed int, err error) {
	return db.IncrementalVacuum(int(db.p.Header().TotalFreelistPages))
}

func containsPage(pages []uint32, n uint32) bool {
	for _, p := range pages {
		if p == n {
			return true
		}
	}
	return false
}
