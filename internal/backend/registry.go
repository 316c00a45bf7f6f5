package backend

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Factory constructs a fresh, unconnected Backend for one URL scheme.
// lockKey seeds the backend's native-advisory-lock name; backends that use
// the insert-sentinel lock ignore it. Callers typically pass a stable,
// deployment-scoped string (e.g. the database name).
type Factory func(lockKey string) Backend

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register binds scheme (the `scheme` in `scheme[+driver]://...`, §6) to a
// Factory. Driver packages call this from an init() func so that importing
// a backend package for its side effect is enough to make it available by
// URL scheme — the core never imports a concrete driver package directly.
// Registering the same scheme twice panics: it is a build-time wiring
// mistake, not a runtime condition.
func Register(scheme string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	scheme = strings.ToLower(scheme)
	if _, exists := registry[scheme]; exists {
		panic(fmt.Sprintf("backend: scheme %q already registered", scheme))
	}
	registry[scheme] = factory
}

// ErrUnknownScheme reports a connection URL whose scheme has no registered
// Factory, typically because the matching driver package was never
// imported for its registration side effect.
type ErrUnknownScheme struct {
	Scheme string
}

func (e ErrUnknownScheme) Error() string {
	return fmt.Sprintf("backend: unknown scheme %q (no driver registered)", e.Scheme)
}

// New parses rawURL's scheme per §6's `scheme[+driver]://...` grammar and
// constructs the registered Backend for it. Only the portion before `+`, if
// any, selects the driver; everything else is left in the URL for the
// backend's own Connect to parse.
func New(rawURL, lockKey string) (Backend, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("backend: parse connection url: %w", err)
	}
	scheme := u.Scheme
	if i := strings.Index(scheme, "+"); i >= 0 {
		scheme = scheme[:i]
	}
	scheme = strings.ToLower(scheme)

	registryMu.RLock()
	factory, ok := registry[scheme]
	registryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownScheme{Scheme: scheme}
	}
	return factory(lockKey), nil
}

// Schemes returns every currently registered scheme, sorted for stable
// output.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for scheme := range registry {
		out = append(out, scheme)
	}
	sort.Strings(out)
	return out
}
