package fetch

import (
	"fmt"
	"sort"
	"sync"
)

var (
	mu       sync.RWMutex
	fetchers = make(map[string]Fetcher)
)

// Register adds a fetcher to the global registry. Called from provider
// package init functions.
func Register(f Fetcher) {
	mu.Lock()
	defer mu.Unlock()
	fetchers[f.Name()] = f
}

// Get returns a fetcher by provider name.
func Get(name string) (Fetcher, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := fetchers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return f, nil
}

// List returns all registered provider names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(fetchers))
	for name := range fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
