package store

import (
	"path/filepath"
	"testing"

	"github.com/chazu/norn/vm"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nouns.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTestStore(t)
	n := vm.Cell(vm.ByteAtom(1), vm.Atom([]byte("payload")))

	h, err := s.Put(n)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if h != n.ContentHash() {
		t.Error("Put returned a foreign hash")
	}

	got, ok, err := s.Get(h)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v, want hit", ok, err)
	}
	if !got.Equal(n) {
		t.Errorf("Get = %s, want %s", got, n)
	}

	if _, ok, err := s.Get(vm.ByteAtom(9).ContentHash()); err != nil || ok {
		t.Errorf("Get of absent hash = %v, %v, want clean miss", ok, err)
	}
}

func TestKeyTable(t *testing.T) {
	s := openTestStore(t)
	key := vm.Cell(vm.ByteAtom(1), vm.Atom([]byte("k")))

	if err := s.StoreKey(key, vm.ByteAtom(9)); err != nil {
		t.Fatalf("StoreKey failed: %v", err)
	}

	// Structural equality, not identity, finds the entry.
	got, ok, err := s.LoadKey(vm.Cell(vm.ByteAtom(1), vm.Atom([]byte("k"))))
	if err != nil || !ok {
		t.Fatalf("LoadKey = %v, %v, want hit", ok, err)
	}
	if !got.Equal(vm.ByteAtom(9)) {
		t.Errorf("LoadKey = %s, want 9", got)
	}

	// Overwrite under the same key.
	if err := s.StoreKey(key, vm.ByteAtom(10)); err != nil {
		t.Fatalf("StoreKey failed: %v", err)
	}
	got, _, _ = s.LoadKey(key)
	if !got.Equal(vm.ByteAtom(10)) {
		t.Errorf("LoadKey after overwrite = %s, want 10", got)
	}
}

func TestEvaluatorAgainstStore(t *testing.T) {
	s := openTestStore(t)
	in := vm.NewInterp(vm.WithMemo(s))

	// Store 21 under its hash via opcode 11, read it back via opcode 12.
	if _, err := in.Eval(vm.Cell(vm.ByteAtom(21), vm.List(vm.ByteAtom(11), vm.ByteAtom(0), vm.ByteAtom(1)))); err != nil {
		t.Fatalf("Eval failed: %v", err)
	}

	h := vm.ByteAtom(21).ContentHash()
	got, err := in.Eval(vm.Cell(vm.Atom(h[:]), vm.List(vm.ByteAtom(12), vm.ByteAtom(0), vm.ByteAtom(1))))
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	want := vm.Cell(vm.ByteAtom(0), vm.ByteAtom(21))
	if !got.Equal(want) {
		t.Errorf("retrieve = %s, want %s", got, want)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nouns.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	n := vm.List(vm.ByteAtom(4), vm.ByteAtom(5), vm.ByteAtom(6))
	h, err := s.Put(n)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, ok, err := s.Get(h)
	if err != nil || !ok {
		t.Fatalf("Get after reopen = %v, %v, want hit", ok, err)
	}
	if !got.Equal(n) {
		t.Errorf("Get after reopen = %s, want %s", got, n)
	}
}
