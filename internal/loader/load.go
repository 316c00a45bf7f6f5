// Package loader discovers migration source files, parses SQL migrations
// into steps, and extracts dependency/transactional directives. Code-script
// migrations are delegated to an external ScriptLoader (§6, §9 design note);
// the core only ever sees the resulting graph.Migration.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/deicod/yoyo/internal/graph"
)

// PackageResolver resolves a `package:<name>:<subpath>` source specifier into
// a filesystem sub-tree. It is the core's seam onto the language runtime's
// package-data lookup, which spec.md §6 treats as an external collaborator.
type PackageResolver interface {
	Resolve(pkg, subpath string) (fs.FS, string, error)
}

// ScriptLoader parses a non-SQL migration file (e.g. a .py script) into a
// graph.Migration. The core treats its apply/rollback as opaque callables
// (§3, §9 design note); no such loader ships in this module.
type ScriptLoader interface {
	Load(ctx context.Context, fsys fs.FS, path string) (*graph.Migration, error)
	Extensions() []string
}

// Options configures a Load call.
type Options struct {
	PackageResolver PackageResolver
	ScriptLoaders   map[string]ScriptLoader // keyed by file extension, e.g. ".py"
}

// Result is the loader's output: the ordered, de-duplicated migrations plus
// any post-apply hooks discovered alongside them.
type Result struct {
	Migrations []*graph.Migration
	PostApply  []*graph.Migration
}

const postApplyStem = "post-apply"

// SinglePostApply reduces Result.PostApply to the one hook spec.md's engine
// expects, erroring if more than one source specifier each contributed a
// post-apply file. Returns (nil, nil) when no hook was found.
func (r Result) SinglePostApply() (*graph.Migration, error) {
	switch len(r.PostApply) {
	case 0:
		return nil, nil
	case 1:
		return r.PostApply[0], nil
	default:
		paths := make([]string, len(r.PostApply))
		for i, m := range r.PostApply {
			paths[i] = m.SourcePath
		}
		return nil, fmt.Errorf("loader: multiple post-apply hooks found: %s", strings.Join(paths, ", "))
	}
}

// Load resolves every source specifier against fsys and returns the combined,
// stem-deduplicated set of migrations. A specifier may be a filesystem path
// (optionally containing `*`, `?`, `[...]` glob metacharacters) or the
// prefixed form `package:<pkg>:<subpath>`.
func Load(ctx context.Context, fsys fs.FS, specs []string, opts Options) (Result, error) {
	var all []*graph.Migration
	var postApply []*graph.Migration
	seen := make(map[string]string) // id -> source path, for duplicate detection

	for _, spec := range specs {
		dirFS, roots, err := resolveSpec(fsys, spec, opts.PackageResolver)
		if err != nil {
			return Result{}, err
		}
		for _, root := range roots {
			migs, hooks, err := loadDir(ctx, dirFS, root, opts)
			if err != nil {
				return Result{}, err
			}
			for _, m := range migs {
				if prev, dup := seen[m.ID]; dup {
					return Result{}, fmt.Errorf("loader: duplicate migration id %q in %s and %s", m.ID, prev, m.SourcePath)
				}
				seen[m.ID] = m.SourcePath
				all = append(all, m)
			}
			postApply = append(postApply, hooks...)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return Result{Migrations: all, PostApply: postApply}, nil
}

func resolveSpec(fsys fs.FS, spec string, resolver PackageResolver) (fs.FS, []string, error) {
	if strings.HasPrefix(spec, "package:") {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) != 3 {
			return nil, nil, fmt.Errorf("loader: malformed package specifier %q", spec)
		}
		if resolver == nil {
			return nil, nil, fmt.Errorf("loader: no package resolver configured for %q", spec)
		}
		pkgFS, root, err := resolver.Resolve(parts[1], parts[2])
		if err != nil {
			return nil, nil, fmt.Errorf("loader: resolve %q: %w", spec, err)
		}
		return pkgFS, []string{root}, nil
	}

	if strings.ContainsAny(spec, "*?[") {
		matches, err := fs.Glob(fsys, spec)
		if err != nil {
			return nil, nil, fmt.Errorf("loader: glob %q: %w", spec, err)
		}
		return fsys, matches, nil
	}

	return fsys, []string{spec}, nil
}

// loadDir scans a single resolved directory for .sql pairs, script files,
// and post-apply hooks.
func loadDir(ctx context.Context, fsys fs.FS, dir string, opts Options) ([]*graph.Migration, []*graph.Migration, error) {
	info, err := fs.Stat(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("loader: inspect %s: %w", dir, err)
	}
	if !info.IsDir() {
		return loadSingleFile(ctx, fsys, dir, opts)
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: read %s: %w", dir, err)
	}

	downByStem := make(map[string]string)
	var upFiles []string
	var scriptFiles []string
	var hookFiles []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		lower := strings.ToLower(name)
		stem, ext := splitStem(name)

		switch {
		case strings.HasPrefix(lower, postApplyStem+"."):
			hookFiles = append(hookFiles, name)
		case strings.HasSuffix(lower, ".rollback.sql"):
			downByStem[strings.TrimSuffix(stem, ".rollback")] = name
		case ext == ".sql":
			upFiles = append(upFiles, name)
		default:
			if _, ok := opts.ScriptLoaders[ext]; ok {
				scriptFiles = append(scriptFiles, name)
			}
		}
	}

	var migs []*graph.Migration
	for _, name := range upFiles {
		m, err := loadSQLMigration(fsys, dir, name, downByStem)
		if err != nil {
			return nil, nil, err
		}
		migs = append(migs, m)
	}

	for _, name := range scriptFiles {
		ext := path.Ext(name)
		loader := opts.ScriptLoaders[ext]
		m, err := loader.Load(ctx, fsys, path.Join(dir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("loader: %s: %w", name, err)
		}
		migs = append(migs, m)
	}

	versions := map[string]string{}
	for _, m := range migs {
		if prev, dup := versions[m.ID]; dup {
			return nil, nil, fmt.Errorf("loader: duplicate version %q in %s and %s", m.ID, prev, m.SourcePath)
		}
		versions[m.ID] = m.SourcePath
	}

	var hooks []*graph.Migration
	for _, name := range hookFiles {
		m, err := loadSQLMigration(fsys, dir, name, nil)
		if err != nil {
			return nil, nil, err
		}
		m.ID = postApplyStem
		m.IsPostApply = true
		hooks = append(hooks, m)
	}

	return migs, hooks, nil
}

func loadSingleFile(ctx context.Context, fsys fs.FS, p string, opts Options) ([]*graph.Migration, []*graph.Migration, error) {
	name := path.Base(p)
	dir := path.Dir(p)
	if path.Ext(name) == ".sql" {
		m, err := loadSQLMigration(fsys, dir, name, nil)
		if err != nil {
			return nil, nil, err
		}
		if m.IsPostApply {
			return nil, []*graph.Migration{m}, nil
		}
		return []*graph.Migration{m}, nil, nil
	}
	ext := path.Ext(name)
	if sl, ok := opts.ScriptLoaders[ext]; ok {
		m, err := sl.Load(ctx, fsys, p)
		if err != nil {
			return nil, nil, err
		}
		return []*graph.Migration{m}, nil, nil
	}
	return nil, nil, fmt.Errorf("loader: unrecognized source file %q", p)
}

func splitStem(name string) (stem, ext string) {
	ext = path.Ext(name)
	return strings.TrimSuffix(name, ext), strings.ToLower(ext)
}
