package storage

import (
	"bytes"
	"testing"
)

func TestMemDBPutGet(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Fatalf("unexpected value %q", got)
	}
	if _, err := db.Get([]byte("missing")); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestMemDBGetIsolatesCaller(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	if err := db.Put([]byte("k"), []byte{1, 2, 3}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got[0] = 0xFF
	again, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again[0] != 1 {
		t.Fatal("stored value mutated through a returned slice")
	}
}

func TestMemDBApplyBatch(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	entries := []BatchEntry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}
	if err := db.ApplyBatch(entries); err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	for _, entry := range entries {
		got, err := db.Get(entry.Key)
		if err != nil {
			t.Fatalf("get %q: %v", entry.Key, err)
		}
		if !bytes.Equal(got, entry.Value) {
			t.Fatalf("key %q: got %q want %q", entry.Key, got, entry.Value)
		}
	}
}

func TestLevelDBReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := NewLevelDB(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.ApplyBatch([]BatchEntry{{Key: []byte("k"), Value: []byte("v")}}); err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	db.Close()

	reopened, err := NewLevelDB(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Fatalf("unexpected value %q", got)
	}
	if _, err := reopened.Get([]byte("missing")); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}
