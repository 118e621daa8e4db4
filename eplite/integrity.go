package eplite

import (
	"fmt"

	"github.com/eplite/eplite/btreeengine"
)

// IntegrityCheck walks every cataloged b-tree plus the freelist and
// reports every invariant violation found, rather than stopping at the
// first — grounded on bbolt's Tx.Check (reachable-page accounting) and
// §4.6/§3.7's on-disk invariants (§5 supplement: "IntegrityCheck").
func (db *DB) IntegrityCheck() ([]string, error) {
	var problems []string

	entries, err := db.Catalog().All()
	if err != nil {
		return nil, err
	}

	reachable := map[uint32]bool{}
	catalog := db.Catalog().Tree()
	catIssues, err := catalog.Check()
	if err != nil {
		return nil, err
	}
	for _, issue := range catIssues {
		problems = append(problems, "catalog: "+issue)
	}
	if err := catalog.Walk(func(pageNo uint32) { reachable[pageNo] = true }); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Type != btreeengine.TypeTable && e.Type != btreeengine.TypeIndex {
			continue // views/triggers own no root page of their own
		}
		kind := btreeengine.Table
		if e.Type == btreeengine.TypeIndex {
			kind = btreeengine.Index
		}
		tree := db.OpenTree(e.RootPage, kind, db.Collation(""))

		issues, err := tree.Check()
		if err != nil {
			return nil, err
		}
		for _, issue := range issues {
			problems = append(problems, fmt.Sprintf("%s %q: %s", e.Type, e.Name, issue))
		}

		if err := tree.Walk(func(pageNo uint32) {
			if reachable[pageNo] {
				problems = append(problems, fmt.Sprintf("page %d: referenced by more than one b-tree", pageNo))
			}
			reachable[pageNo] = true
		}); err != nil {
			return nil, err
		}
	}

	freePages, err := db.p.FreelistPages()
	if err != nil {
		return nil, err
	}
	if got, want := len(freePages), int(db.p.Header().TotalFreelistPages); got != want {
		problems = append(problems, fmt.Sprintf("freelist: walked %d pages but header claims %d", got, want))
	}
	free := make(map[uint32]bool, len(freePages))
	for _, n := range freePages {
		if free[n] {
			problems = append(problems, fmt.Sprintf("page %d: appears twice in the freelist", n))
		}
		free[n] = true
		if reachable[n] {
			problems = append(problems, fmt.Sprintf("page %d: both in the freelist and reachable from a b-tree", n))
		}
	}

	total := db.p.Header().DatabaseSizePages
	for n := uint32(1); n <= total; n++ {
		if !reachable[n] && !free[n] {
			problems = append(problems, fmt.Sprintf("page %d: neither reachable nor free", n))
		}
	}

	return problems, nil
}
