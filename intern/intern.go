// Package intern provides a string-interning pool for the stream,
// event, and member names that repeat across every decoded packet.
// Interning them once at plan-construction time means the decode hot
// path compares and copies a Handle (a uint64) instead of a string.
// There is no process-wide pool: each Pool is independent, and
// plan.Compile creates one per Plan. A Handle is the xxHash64 of the
// string's content, so identical strings get the same Handle in every
// Pool, but a Pool's String only resolves names interned into it.
package intern

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/barectf-tools/ctfdecode/errs"
)

// Handle is an opaque, cheaply-comparable reference to an interned
// string. The zero Handle never refers to a real string.
type Handle uint64

// Pool maps interned strings to handles and back. It is safe for
// concurrent use; a Plan built once at startup is typically shared by
// many decoder instances, so Pool.String may be called concurrently
// from each of their decode loops.
type Pool struct {
	mu    sync.RWMutex
	names map[Handle]string
}

// NewPool creates an empty interning pool.
func NewPool() *Pool {
	return &Pool{names: make(map[Handle]string)}
}

// Intern returns the Handle for name, hashed with xxHash64. A second
// Intern call for an identical string returns the same Handle without
// allocating. ErrNameHashCollision signals two distinct strings
// hashing identically, which plan construction treats as a schema
// error rather than silently aliasing two different names.
func (p *Pool) Intern(name string) (Handle, error) {
	h := Handle(xxhash.Sum64String(name))

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.names[h]; ok {
		if existing != name {
			return 0, errs.ErrNameHashCollision
		}

		return h, nil
	}

	p.names[h] = name

	return h, nil
}

// String returns the string a Handle was interned from, and whether
// it is known to this pool.
func (p *Pool) String(h Handle) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	name, ok := p.names[h]

	return name, ok
}

// MustIntern is a convenience wrapper for call sites that already know
// the name is unique (e.g. tests constructing a Plan by hand). It
// panics on collision.
func (p *Pool) MustIntern(name string) Handle {
	h, err := p.Intern(name)
	if err != nil {
		panic(err)
	}

	return h
}
