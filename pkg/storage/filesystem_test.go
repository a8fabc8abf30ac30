package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFilesystemWriteRead(t *testing.T) {
	ctx := context.Background()
	store := NewFilesystemStorage(NewConfig("", "", "", StandaloneBucket, t.TempDir()))

	if _, err := store.Read(ctx, "cards/0xabc/missing"); err != ErrNotFound {
		t.Fatalf("Wrong error for missing key : got %v, want %v", err, ErrNotFound)
	}

	if err := store.Write(ctx, "cards/0xabc/0x01", []byte("one"), nil); err != nil {
		t.Fatalf("Failed to write : %s", err)
	}

	b, err := store.Read(ctx, "cards/0xabc/0x01")
	if err != nil {
		t.Fatalf("Failed to read : %s", err)
	}
	if string(b) != "one" {
		t.Fatalf("Wrong body : got %q, want %q", b, "one")
	}
}

func TestFilesystemListSearchClear(t *testing.T) {
	ctx := context.Background()
	store := NewFilesystemStorage(NewConfig("", "", "", StandaloneBucket, t.TempDir()))

	for _, key := range []string{"cards/0xabc/0x02", "cards/0xabc/0x01", "cards/0xdef/0x03"} {
		if err := store.Write(ctx, key, []byte(key), nil); err != nil {
			t.Fatalf("Failed to write %s : %s", key, err)
		}
	}

	keys, err := store.List(ctx, "cards/0xabc/")
	if err != nil {
		t.Fatalf("Failed to list : %s", err)
	}
	if diff := cmp.Diff([]string{"cards/0xabc/0x01", "cards/0xabc/0x02"}, keys); diff != "" {
		t.Fatalf("Wrong keys (-want +got) :\n%s", diff)
	}

	objects, err := store.Search(ctx, map[string]string{"path": "cards/0xabc"})
	if err != nil {
		t.Fatalf("Failed to search : %s", err)
	}
	if len(objects) != 2 {
		t.Fatalf("Wrong object count : got %d, want %d", len(objects), 2)
	}

	empty, err := store.List(ctx, "cards/0x999")
	if err != nil {
		t.Fatalf("Failed to list empty path : %s", err)
	}
	if len(empty) != 0 {
		t.Fatalf("Expected no keys, got %v", empty)
	}

	if err := store.Clear(ctx, map[string]string{"path": "cards/0xabc"}); err != nil {
		t.Fatalf("Failed to clear : %s", err)
	}
	if _, err := store.Read(ctx, "cards/0xabc/0x01"); err != ErrNotFound {
		t.Fatalf("Expected cleared key to be gone, got %v", err)
	}
	if _, err := store.Read(ctx, "cards/0xdef/0x03"); err != nil {
		t.Fatalf("Clear removed a key outside the path : %s", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	if _, ok := New(NewConfig("", "", "", "Standalone", "./tmp")).(FilesystemStorage); !ok {
		t.Fatalf("Expected filesystem storage for standalone bucket")
	}
	if _, ok := New(NewConfig("us-east-1", "", "", "gacha-cards", "")).(S3Storage); !ok {
		t.Fatalf("Expected S3 storage for named bucket")
	}
}
