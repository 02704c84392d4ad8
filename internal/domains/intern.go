package domains

import "sync"

// Intern maps canonical key strings to their hashed identifiers so that
// the hash is computed once per distinct key across the whole build.
// Safe for concurrent use; the driver analyzes functions in parallel.
type Intern struct {
	mu     sync.Mutex
	hashes map[string]Hash
}

// NewIntern returns an empty intern table.
func NewIntern() *Intern {
	return &Intern{hashes: make(map[string]Hash)}
}

// Hash returns the hashed identifier for k, computing and caching it on
// first use.
func (t *Intern) Hash(k Key) Hash {
	canon := k.Canon()
	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.hashes[canon]; ok {
		return h
	}
	h := k.Hash()
	t.hashes[canon] = h
	return h
}

// Lookup returns the cached hash for a canonical string, if present.
func (t *Intern) Lookup(canon string) (Hash, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.hashes[canon]
	return h, ok
}
