package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func testBackend(t *testing.T, db Database) {
	t.Helper()
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key: got %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q", got)
	}
	if err := db.Put([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("got %q", got)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	testBackend(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("original")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'X'
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("stored value aliased caller buffer: %q", got)
	}
}

func TestBoltDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := NewBoltDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	testBackend(t, db)
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Values survive reopen.
	db, err = NewBoltDB(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("got %q", got)
	}
}
