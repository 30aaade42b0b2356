package forestkv

import "testing"

func TestCreateAndGetCollection(t *testing.T) {
	db := newTestDB(t)

	tx := db.WriteTx()
	users, err := tx.CreateCollection([]byte("users"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := users.Put([]byte("alice"), []byte("admin")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	read := db.ReadTx()
	defer read.Rollback()
	got, ok, err := read.GetCollection([]byte("users"))
	if err != nil || !ok {
		t.Fatalf("expected to find collection, ok=%v err=%v", ok, err)
	}
	val, ok, err := got.Find([]byte("alice"))
	if err != nil || !ok || string(val) != "admin" {
		t.Fatalf("expected admin, got val=%q ok=%v err=%v", val, ok, err)
	}
}

func TestCreateCollectionDuplicateNameFails(t *testing.T) {
	db := newTestDB(t)
	tx := db.WriteTx()
	defer tx.Rollback()

	if _, err := tx.CreateCollection([]byte("users")); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := tx.CreateCollection([]byte("users")); err != ErrCollectionExists {
		t.Fatalf("expected ErrCollectionExists, got %v", err)
	}
}

func TestCreateCollectionEmptyNameRejected(t *testing.T) {
	db := newTestDB(t)
	tx := db.WriteTx()
	defer tx.Rollback()

	if _, err := tx.CreateCollection(nil); err == nil {
		t.Fatalf("expected empty collection name to be rejected")
	}
}

func TestGetCollectionUnknownNameNotFound(t *testing.T) {
	db := newTestDB(t)
	tx := db.WriteTx()
	defer tx.Rollback()

	_, ok, err := tx.GetCollection([]byte("ghost"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected unknown collection to report ok=false")
	}
}

func TestDeleteCollectionRemovesHeaderButNotRoot(t *testing.T) {
	db := newTestDB(t)

	tx := db.WriteTx()
	if _, err := tx.CreateCollection([]byte("temp")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := tx.DeleteCollection([]byte("temp")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := tx.DeleteCollection([]byte("temp")); err != nil {
		t.Fatalf("expected deleting an absent collection to be a no-op, got %v", err)
	}
	if err := tx.DeleteCollection(nil); err == nil {
		t.Fatalf("expected deleting the root collection to fail")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	read := db.ReadTx()
	defer read.Rollback()
	if _, ok, _ := read.GetCollection([]byte("temp")); ok {
		t.Fatalf("expected deleted collection to be gone")
	}
}

func TestCollectionIDIsMonotonicAndPersists(t *testing.T) {
	db := newTestDB(t)

	tx := db.WriteTx()
	users, err := tx.CreateCollection([]byte("users"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	first, err := users.ID()
	if err != nil {
		t.Fatalf("id failed: %v", err)
	}
	second, err := users.ID()
	if err != nil {
		t.Fatalf("id failed: %v", err)
	}
	if first != 0 || second != 1 {
		t.Fatalf("expected ids 0 then 1, got %d then %d", first, second)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	tx2 := db.WriteTx()
	users2, ok, err := tx2.GetCollection([]byte("users"))
	if err != nil || !ok {
		t.Fatalf("expected to reload collection, ok=%v err=%v", ok, err)
	}
	third, err := users2.ID()
	if err != nil {
		t.Fatalf("id failed: %v", err)
	}
	if third != 2 {
		t.Fatalf("expected counter to survive across transactions, got %d", third)
	}
	if err := tx2.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
}

func TestNestedCollectionsAreIndependentOfRootCollection(t *testing.T) {
	db := newTestDB(t)

	tx := db.WriteTx()
	accounts, err := tx.CreateCollection([]byte("accounts"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := accounts.Put([]byte("balance"), []byte("100")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := tx.GetRootCollection().Put([]byte("unrelated"), []byte("x")); err != nil {
		t.Fatalf("root put failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	read := db.ReadTx()
	defer read.Rollback()
	if _, ok, _ := read.GetRootCollection().Find([]byte("balance")); ok {
		t.Fatalf("expected 'balance' to live only inside the accounts collection")
	}
	accounts, ok, err := read.GetCollection([]byte("accounts"))
	if err != nil || !ok {
		t.Fatalf("expected accounts collection, ok=%v err=%v", ok, err)
	}
	val, ok, err := accounts.Find([]byte("balance"))
	if err != nil || !ok || string(val) != "100" {
		t.Fatalf("expected balance 100, got val=%q ok=%v err=%v", val, ok, err)
	}
}
