package utilities

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Utility)
)

// Register adds a utility. Registering the same key twice panics.
func Register(u Utility) {
	registryMu.Lock()
	defer registryMu.Unlock()
	key := strings.ToUpper(u.Key)
	if key == "" {
		panic("utilities: Register utility without key")
	}
	if _, dup := registry[key]; dup {
		panic("utilities: Register called twice for utility " + key)
	}
	u.Key = key
	registry[key] = u
}

// Get returns a utility by case-insensitive key.
func Get(key string) (Utility, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	u, ok := registry[strings.ToUpper(key)]
	return u, ok
}

// Lookup is Get with an error wrapping ErrUtilityNotFound for unknown keys.
func Lookup(key string) (Utility, error) {
	u, ok := Get(key)
	if !ok {
		return Utility{}, fmt.Errorf("%w: %s", ErrUtilityNotFound, key)
	}
	return u, nil
}

// List returns a sorted list of registered utility keys.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var keys []string
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns every registered utility, sorted by key.
func All() []Utility {
	var out []Utility
	for _, k := range List() {
		u, _ := Get(k)
		out = append(out, u)
	}
	return out
}
