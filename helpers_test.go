package forestkv

import "testing"

// newTestDB opens a fresh database backed by a temp file and registers its
// Close with t.Cleanup, the way the teacher's own helpers_test.go gives
// every test a throwaway db.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := t.TempDir() + "/forestkv.db"
	db, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
