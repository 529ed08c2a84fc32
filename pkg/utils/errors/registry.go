package errors

import (
	"fmt"
	"sync"
)

var registry = struct {
	sync.Mutex
	codes map[int]*Errno
}{codes: make(map[int]*Errno)}

// Register records e under its code and returns it. Registering a code twice
// panics at init time.
func Register(e *Errno) *Errno {
	registry.Lock()
	defer registry.Unlock()

	if existing, ok := registry.codes[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	registry.codes[e.Code] = e
	return e
}
