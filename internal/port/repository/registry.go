package repository

import (
	"fmt"
	"sort"
	"sync"
)

// Factory is a constructor function that creates a new Reader instance.
type Factory func(config map[string]string) (Reader, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a reader factory available by name.
// It is typically called from an init() function in the adapter package.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("repository: duplicate registration for %q", name))
	}
	factories[name] = factory
}

// New creates a new Reader by name using the registered factory.
func New(name string, config map[string]string) (Reader, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("repository: unknown reader %q", name)
	}
	return factory(config)
}

// Available returns the sorted names of all registered readers.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
