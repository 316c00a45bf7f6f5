package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"

	"github.com/deicod/yoyo/internal/graph"
)

// loadSQLMigration reads the up file at dir/name plus its sibling rollback
// file (looked up in downByStem, keyed by stem), splits both into
// statements, and pairs them per §4.1: apply statement i pairs with rollback
// statement n-1-i only when counts match; otherwise the entire rollback file
// attaches to the last apply step.
func loadSQLMigration(fsys fs.FS, dir, name string, downByStem map[string]string) (*graph.Migration, error) {
	stem, _ := splitStem(name)
	fullPath := path.Join(dir, name)

	raw, err := fs.ReadFile(fsys, fullPath)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", fullPath, err)
	}
	sql := string(raw)

	dirs := parseDirectives(sql)
	applyStatements := SplitStatements(sql)

	var rollbackStatements []string
	var rollbackPath string
	rollbackRaw := ""
	if downName, ok := downByStem[stem]; ok {
		rollbackPath = path.Join(dir, downName)
		downRaw, err := fs.ReadFile(fsys, rollbackPath)
		if err != nil {
			return nil, fmt.Errorf("loader: read %s: %w", rollbackPath, err)
		}
		rollbackRaw = string(downRaw)
		rollbackStatements = SplitStatements(rollbackRaw)
	}

	m := graph.NewMigration(stem)
	m.SourcePath = fullPath
	m.Kind = graph.KindSQLPair
	m.DependsOn = dirs.dependsOn
	if dirs.sawTxDirective {
		m.Transactional = dirs.transactional
	}
	m.IsPostApply = stem == graph.PostApplyID
	m.ContentHash = contentHash(sql + rollbackRaw)

	m.Steps = buildSQLSteps(applyStatements, rollbackStatements)
	return m, nil
}

// contentHash returns a hex-encoded sha256 digest of a migration's combined
// source, stored as migration_hash for drift detection.
func contentHash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// buildSQLSteps pairs apply statements with rollback statements in reverse
// order. When the counts match, statement i pairs with rollback statement
// n-1-i. Otherwise every rollback statement is attached, in original file
// order, to the last apply step.
func buildSQLSteps(applyStatements, rollbackStatements []string) []graph.Step {
	steps := make([]graph.Step, 0, len(applyStatements))
	n := len(applyStatements)
	rn := len(rollbackStatements)

	pairwise := n > 0 && rn == n
	for i, stmt := range applyStatements {
		step := graph.Step{Apply: graph.Payload{SQL: stmt}}
		if pairwise {
			step.Rollback = graph.Payload{SQL: rollbackStatements[n-1-i]}
		}
		steps = append(steps, step)
	}

	if !pairwise && rn > 0 && n > 0 {
		last := &steps[n-1]
		last.Rollback = graph.Payload{SQL: joinStatements(rollbackStatements)}
	} else if !pairwise && rn > 0 && n == 0 {
		steps = append(steps, graph.Step{Rollback: graph.Payload{SQL: joinStatements(rollbackStatements)}})
	}

	return steps
}

func joinStatements(statements []string) string {
	out := ""
	for i, s := range statements {
		if i > 0 {
			out += ";\n"
		}
		out += s
	}
	return out
}
