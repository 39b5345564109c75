// Package errors - error hooks for in-process observers
package errors

import (
	"sync"
)

// ErrorHook is called for every enhanced error built while hooks are
// registered. Hooks must be fast and must not build enhanced errors
// themselves.
type ErrorHook func(ee *EnhancedError)

var (
	errorHooks []ErrorHook
	hooksMutex sync.RWMutex
)

// AddErrorHook registers a hook that observes every built error.
// Used by observability to count errors per component and category.
func AddErrorHook(hook ErrorHook) {
	hooksMutex.Lock()
	errorHooks = append(errorHooks, hook)
	hooksMutex.Unlock()
	updateActiveReporting()
}

// ClearErrorHooks removes all registered hooks, primarily for tests.
func ClearErrorHooks() {
	hooksMutex.Lock()
	errorHooks = nil
	hooksMutex.Unlock()
	updateActiveReporting()
}

// notifyHooks invokes all registered hooks for the given error.
func notifyHooks(ee *EnhancedError) {
	hooksMutex.RLock()
	hooks := errorHooks
	hooksMutex.RUnlock()

	for _, hook := range hooks {
		hook(ee)
	}
}

// hasHooks reports whether any hooks are registered.
func hasHooks() bool {
	hooksMutex.RLock()
	defer hooksMutex.RUnlock()
	return len(errorHooks) > 0
}
