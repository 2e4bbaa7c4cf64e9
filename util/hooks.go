package util

import "sync"

var (
	hooks   = make(map[string][]func() error)
	hooksMu sync.RWMutex
)

// Hook a function to execute on an event
func Hook(event string, fn func() error) {
	hooksMu.Lock()
	defer hooksMu.Unlock()

	hooks[event] = append(hooks[event], fn)
}

// Trigger all hooks for specified event in reverse order of registration.
// All hooks are run. The first error is returned.
func Trigger(event string) (err error) {
	hooksMu.RLock()
	fns := hooks[event]
	hooksMu.RUnlock()

	for i := len(fns) - 1; i >= 0; i-- {
		if e := fns[i](); e != nil && err == nil {
			err = e
		}
	}
	return
}
