// Package scriptmig is the extension point for code-script migrations
// (§9 design note: "the core must treat a code-script step's apply/rollback
// as an opaque callable taking a connection handle"). It implements
// strategy (b) in the compiled-in form: migration authors register Go
// functions at program build time under a stable key, and a stub source
// file in the migration directory — carrying only directives plus the key
// — is what the loader actually discovers. No interpreter or embedded VM
// ships in the core; that tradeoff is documented in DESIGN.md.
package scriptmig

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/deicod/yoyo/internal/graph"
)

// Conn func invoked with the live connection handle the engine passes to
// graph.Payload.Func (opaque to the core, §3).
type Conn = any

// Func is one apply or rollback callable.
type Func func(ctx context.Context, conn Conn) error

// entry is one registered migration's apply/rollback pair.
type entry struct {
	apply    Func
	rollback Func
}

// Host is a process-local registry of compiled-in migration callables,
// keyed by the same id the loader assigns the migration (its file stem).
// Register from an init() func in the package that owns the migration
// logic; Host itself is safe for concurrent use.
type Host struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewHost constructs an empty Host.
func NewHost() *Host {
	return &Host{entries: map[string]entry{}}
}

// Register binds id to apply/rollback callables. rollback may be nil for an
// irreversible migration. Registering the same id twice panics: it is a
// build-time wiring mistake caught at startup, not a runtime condition.
func (h *Host) Register(id string, apply, rollback Func) {
	if apply == nil {
		panic(fmt.Sprintf("scriptmig: %s: apply callable is required", id))
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.entries[id]; exists {
		panic(fmt.Sprintf("scriptmig: %s: already registered", id))
	}
	h.entries[id] = entry{apply: apply, rollback: rollback}
}

// Lookup returns the registered entry for id, if any.
func (h *Host) Lookup(id string) (apply, rollback Func, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, found := h.entries[id]
	if !found {
		return nil, nil, false
	}
	return e.apply, e.rollback, true
}

var (
	dependsDirective      = regexp.MustCompile(`(?i)^//\s*depends:\s*(.+)$`)
	transactionalDirective = regexp.MustCompile(`(?i)^//\s*transactional:\s*(true|false)\s*$`)
)

// Loader implements loader.ScriptLoader over a Host: the stub file at
// fsys/dir/name (extension Ext, default ".go") carries only `// depends:`/
// `// transactional:` directive comments (§6 grammar, generalized from `--`
// to `//`); the executable payload comes from whatever the migration's
// author registered into Host under the file's stem.
type Loader struct {
	Host *Host
	Ext  string // source extension this loader claims, e.g. ".go"
}

// NewLoader constructs a Loader bound to host, claiming Ext (".go" if empty).
func NewLoader(host *Host, ext string) *Loader {
	if ext == "" {
		ext = ".go"
	}
	return &Loader{Host: host, Ext: ext}
}

// Extensions implements loader.ScriptLoader.
func (l *Loader) Extensions() []string { return []string{l.Ext} }

// Load implements loader.ScriptLoader: it reads the stub file for its
// directives only, then resolves the executable steps from l.Host.
func (l *Loader) Load(ctx context.Context, fsys fs.FS, filePath string) (*graph.Migration, error) {
	name := path.Base(filePath)
	stem := strings.TrimSuffix(name, path.Ext(name))

	raw, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("scriptmig: read %s: %w", filePath, err)
	}

	apply, rollback, ok := l.Host.Lookup(stem)
	if !ok {
		return nil, fmt.Errorf("scriptmig: %s: no callable registered for id %q (register it with Host.Register before loading)", filePath, stem)
	}

	dependsOn := map[string]struct{}{}
	transactional := true
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if m := dependsDirective.FindStringSubmatch(line); m != nil {
			for _, id := range strings.Fields(m[1]) {
				dependsOn[id] = struct{}{}
			}
			continue
		}
		if m := transactionalDirective.FindStringSubmatch(line); m != nil {
			transactional = strings.EqualFold(m[1], "true")
		}
	}

	sum := sha256.Sum256(raw)

	m := graph.NewMigration(stem)
	m.SourcePath = filePath
	m.Kind = graph.KindInlineCodeScript
	m.DependsOn = dependsOn
	m.Transactional = transactional
	m.ContentHash = hex.EncodeToString(sum[:])
	m.Steps = []graph.Step{{
		Apply:    graph.Payload{Func: apply},
		Rollback: rollbackPayload(rollback),
	}}
	return m, nil
}

func rollbackPayload(rollback Func) graph.Payload {
	if rollback == nil {
		return graph.Payload{}
	}
	return graph.Payload{Func: rollback}
}
