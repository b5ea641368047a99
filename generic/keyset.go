package generic

import "sort"

// KeySet is an unordered set of comparable keys. The ledger uses it as the
// dirty set: cells touched since the last save.
//
// There is intentionally no Remove. Undoing an edit leaves the cell marked,
// because the restored value may still differ from what is persisted.
type KeySet[K comparable] struct {
	keys map[K]struct{}
}

func NewKeySet[K comparable]() *KeySet[K] {
	return &KeySet[K]{keys: make(map[K]struct{})}
}

func (s *KeySet[K]) Mark(k K) {
	s.keys[k] = struct{}{}
}

func (s *KeySet[K]) Has(k K) bool {
	_, ok := s.keys[k]
	return ok
}

func (s *KeySet[K]) Len() int {
	return len(s.keys)
}

// Clear empties the set.
func (s *KeySet[K]) Clear() {
	s.keys = make(map[K]struct{})
}

// Sorted returns the keys ordered by less.
func (s *KeySet[K]) Sorted(less func(a, b K) bool) []K {
	out := make([]K, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
