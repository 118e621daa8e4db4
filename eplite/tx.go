package eplite

// SavepointBegin opens a named savepoint nested inside the current write
// transaction (§5 supplement: "additional journal segments").
func (db *DB) SavepointBegin(name string) error { return db.p.SavepointBegin(name) }

// SavepointRelease keeps every write made since name but forgets the mark.
func (db *DB) SavepointRelease(name string) error { return db.p.SavepointRelease(name) }

// SavepointRollback undoes every write made since name without ending the
// surrounding write transaction.
func (db *DB) SavepointRollback(name string) error { return db.p.SavepointRollback(name) }
