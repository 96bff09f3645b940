package secretstore

import (
	"runtime"
	"sync"
)

// Plaintext holds token cache contents outside their encrypted form. The
// memory is locked when the platform allows it and zeroed by Wipe.
type Plaintext struct {
	data   []byte
	locked bool
	mu     sync.Mutex
}

// Protect takes ownership of data. Callers must not use data after Wipe.
func Protect(data []byte) *Plaintext {
	p := &Plaintext{data: data}
	p.locked = mlock(data)

	runtime.SetFinalizer(p, func(p *Plaintext) {
		p.Wipe()
	})

	return p
}

// Bytes returns the protected slice, or nil after Wipe.
func (p *Plaintext) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data
}

// Locked reports whether the memory is mlocked.
func (p *Plaintext) Locked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked
}

// Len returns the length of the data.
func (p *Plaintext) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.data)
}

// Wipe zeros and unlocks the memory. Safe to call multiple times.
func (p *Plaintext) Wipe() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.data == nil {
		return
	}

	clear(p.data)
	if p.locked {
		munlock(p.data)
		p.locked = false
	}
	p.data = nil

	runtime.SetFinalizer(p, nil)
}
