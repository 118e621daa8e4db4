package testutil

import (
	"os"
	"testing"
)

// TempDir creates a scratch directory for a test that needs a real file on
// disk (e.g. exercising vfs.NewOS instead of vfs.NewMem), removed during
// cleanup.
func TempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}
