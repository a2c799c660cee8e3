package vm

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Memo is the pair of tables behind opcodes 11-14: nouns stored under
// their content hash, and nouns stored under another noun as key. Keys
// compare by structural equality. Implementations must be safe for the
// single evaluator that owns them; sharing one Memo between evaluators
// requires it to be safe for concurrent use.
type Memo interface {
	StoreHash(h [HashSize]byte, n *Noun) error
	LoadHash(h [HashSize]byte) (*Noun, bool, error)
	StoreKey(key, value *Noun) error
	LoadKey(key *Noun) (*Noun, bool, error)
}

// ---------------------------------------------------------------------------
// MemoTable: the default unbounded in-memory tables
// ---------------------------------------------------------------------------

// MemoTable keeps both tables in process memory with no eviction. Entries
// live until the table is dropped. The key table is indexed by the key
// noun's encoding, which is deterministic and injective, so lookups agree
// with structural equality.
type MemoTable struct {
	mu     sync.RWMutex
	byHash map[[HashSize]byte]*Noun
	byKey  map[string]*Noun
}

// NewMemoTable creates empty tables.
func NewMemoTable() *MemoTable {
	return &MemoTable{
		byHash: make(map[[HashSize]byte]*Noun),
		byKey:  make(map[string]*Noun),
	}
}

func (m *MemoTable) StoreHash(h [HashSize]byte, n *Noun) error {
	m.mu.Lock()
	m.byHash[h] = n
	m.mu.Unlock()
	return nil
}

func (m *MemoTable) LoadHash(h [HashSize]byte) (*Noun, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.byHash[h]
	return n, ok, nil
}

func (m *MemoTable) StoreKey(key, value *Noun) error {
	k := string(Encode(key))
	m.mu.Lock()
	m.byKey[k] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoTable) LoadKey(key *Noun) (*Noun, bool, error) {
	k := string(Encode(key))
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.byKey[k]
	return n, ok, nil
}

// ---------------------------------------------------------------------------
// BoundedMemo: LRU-evicting tables for hosts that cap memory
// ---------------------------------------------------------------------------

// BoundedMemo holds at most capacity entries per table, evicting the least
// recently used. A host that opts into a capacity accepts that a lookup
// may miss where the unbounded table would hit; runs that stay under the
// bound behave identically to MemoTable.
type BoundedMemo struct {
	byHash *lru.Cache
	byKey  *lru.Cache
}

// NewBoundedMemo creates LRU tables holding capacity entries each.
func NewBoundedMemo(capacity int) (*BoundedMemo, error) {
	byHash, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	byKey, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &BoundedMemo{byHash: byHash, byKey: byKey}, nil
}

func (m *BoundedMemo) StoreHash(h [HashSize]byte, n *Noun) error {
	m.byHash.Add(h, n)
	return nil
}

func (m *BoundedMemo) LoadHash(h [HashSize]byte) (*Noun, bool, error) {
	v, ok := m.byHash.Get(h)
	if !ok {
		return nil, false, nil
	}
	return v.(*Noun), true, nil
}

func (m *BoundedMemo) StoreKey(key, value *Noun) error {
	m.byKey.Add(string(Encode(key)), value)
	return nil
}

func (m *BoundedMemo) LoadKey(key *Noun) (*Noun, bool, error) {
	v, ok := m.byKey.Get(string(Encode(key)))
	if !ok {
		return nil, false, nil
	}
	return v.(*Noun), true, nil
}
