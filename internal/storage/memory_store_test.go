package storage

import (
	"testing"
	"time"
)

func TestMemoryStoreMarksAndExpires(t *testing.T) {
	store, err := NewStore("memory", "", Options{TransactionTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	mem := store.(*memoryStore)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return clock }

	if seen, _ := store.SeenTransaction("tx1"); seen {
		t.Fatalf("expected unseen transaction")
	}
	if err := store.MarkTransaction("tx1"); err != nil {
		t.Fatalf("MarkTransaction: %v", err)
	}
	if seen, _ := store.SeenTransaction("tx1"); !seen {
		t.Fatalf("expected transaction to be seen")
	}

	clock = clock.Add(2 * time.Hour)
	if seen, _ := store.SeenTransaction("tx1"); seen {
		t.Fatalf("expected entry to expire")
	}
	if len(mem.keys) != 0 {
		t.Fatalf("expired key should be dropped, have %d", len(mem.keys))
	}
}

func TestPersistent(t *testing.T) {
	cases := map[string]bool{"bbolt": true, " BBolt ": true, "memory": false, "none": false, "": false}
	for typ, want := range cases {
		if got := Persistent(typ); got != want {
			t.Fatalf("Persistent(%q) = %v, want %v", typ, got, want)
		}
	}
}
