package database_test

import (
	"path/filepath"
	"testing"

	"rexdb/pkg/concurrency"
	"rexdb/pkg/database"
	"rexdb/pkg/rid"
)

func setupDatabase(t *testing.T) (*database.Database, string) {
	t.Parallel()
	folder := filepath.Join(t.TempDir(), "data")
	db, err := database.Open(folder, nil, nil)
	if err != nil {
		t.Fatal("failed to open database:", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, folder
}

func TestDatabaseCreateAndUseIndex(t *testing.T) {
	db, _ := setupDatabase(t)
	index, err := db.CreateIndex("orders")
	if err != nil {
		t.Fatal("failed to create index:", err)
	}
	if _, err := db.CreateIndex("orders"); err == nil {
		t.Error("creating a duplicate index should fail")
	}
	if _, err := db.CreateIndex("no spaces allowed"); err == nil {
		t.Error("non-alphanumeric index names should be rejected")
	}

	txn := concurrency.NewTransaction()
	for i := int64(0); i < 100; i++ {
		if _, err := index.Insert(i, rid.New(i, 0), txn); err != nil {
			t.Fatalf("failed to insert key %d: %v", i, err)
		}
	}
	same, err := db.GetIndex("orders")
	if err != nil {
		t.Fatal("failed to get index:", err)
	}
	values, err := same.GetValue(50)
	if err != nil || len(values) != 1 || values[0].PageID != 50 {
		t.Errorf("lookup through the shared handle failed: %v (%v)", values, err)
	}
}

func TestDatabasePersistsAcrossReopen(t *testing.T) {
	db, folder := setupDatabase(t)
	index, err := db.CreateIndex("users")
	if err != nil {
		t.Fatal("failed to create index:", err)
	}
	txn := concurrency.NewTransaction()
	for i := int64(0); i < 200; i++ {
		if _, err := index.Insert(i, rid.New(i, 1), txn); err != nil {
			t.Fatalf("failed to insert key %d: %v", i, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatal("failed to close database:", err)
	}

	reopened, err := database.Open(folder, nil, nil)
	if err != nil {
		t.Fatal("failed to reopen database:", err)
	}
	defer reopened.Close()
	index, err = reopened.GetIndex("users")
	if err != nil {
		t.Fatal("failed to reopen index:", err)
	}
	for i := int64(0); i < 200; i++ {
		values, err := index.GetValue(i)
		if err != nil || len(values) != 1 {
			t.Fatalf("key %d lost across reopen: %v (%v)", i, values, err)
		}
	}
}

func TestDatabaseBackup(t *testing.T) {
	db, _ := setupDatabase(t)
	index, err := db.CreateIndex("events")
	if err != nil {
		t.Fatal("failed to create index:", err)
	}
	txn := concurrency.NewTransaction()
	for i := int64(0); i < 50; i++ {
		if _, err := index.Insert(i, rid.New(i, 2), txn); err != nil {
			t.Fatalf("failed to insert key %d: %v", i, err)
		}
	}

	backupFolder := filepath.Join(t.TempDir(), "backup")
	if err := db.Backup(backupFolder); err != nil {
		t.Fatal("backup failed:", err)
	}

	restored, err := database.Open(backupFolder, nil, nil)
	if err != nil {
		t.Fatal("failed to open backup:", err)
	}
	defer restored.Close()
	restoredIndex, err := restored.GetIndex("events")
	if err != nil {
		t.Fatal("failed to open backup index:", err)
	}
	for i := int64(0); i < 50; i++ {
		values, err := restoredIndex.GetValue(i)
		if err != nil || len(values) != 1 || values[0].SlotNum != 2 {
			t.Fatalf("backup lost key %d: %v (%v)", i, values, err)
		}
	}
}
