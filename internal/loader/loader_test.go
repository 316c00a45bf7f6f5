package loader

import (
	"context"
	"testing"
	"testing/fstest"
)

func TestSplitStatementsHandlesCommentsAndQuotes(t *testing.T) {
	sql := `
-- a comment with a ; inside
CREATE TABLE t (id INT, name TEXT DEFAULT 'semi;colon');
/* block ; comment */
INSERT INTO t (id) VALUES (1);
`
	stmts := SplitStatements(sql)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2: %#v", len(stmts), stmts)
	}
}

func TestSplitStatementsHandlesDollarQuoting(t *testing.T) {
	sql := `CREATE FUNCTION f() RETURNS void AS $body$
BEGIN
  -- not a real terminator: ;
  PERFORM 1;
END;
$body$ LANGUAGE plpgsql;`
	stmts := SplitStatements(sql)
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1: %#v", len(stmts), stmts)
	}
}

func TestParseDirectives(t *testing.T) {
	sql := "-- depends: 0001 0002\n-- transactional: false\nCREATE TABLE t(id int);"
	d := parseDirectives(sql)
	if len(d.dependsOn) != 2 {
		t.Fatalf("expected 2 deps, got %v", d.dependsOn)
	}
	if d.transactional {
		t.Fatal("expected transactional=false")
	}
}

func TestLoadDiscoversAndPairsRollback(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0001_init.sql":          &fstest.MapFile{Data: []byte("CREATE TABLE t(id INT);")},
		"migrations/0001_init.rollback.sql": &fstest.MapFile{Data: []byte("DROP TABLE t;")},
		"migrations/0002_add.sql":           &fstest.MapFile{Data: []byte("-- depends: 0001_init\nALTER TABLE t ADD c INT;")},
	}

	res, err := Load(context.Background(), fsys, []string{"migrations"}, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(res.Migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(res.Migrations))
	}
	first := res.Migrations[0]
	if first.ID != "0001_init" {
		t.Fatalf("unexpected id %q", first.ID)
	}
	if len(first.Steps) != 1 || first.Steps[0].Rollback.SQL != "DROP TABLE t" {
		t.Fatalf("unexpected steps: %+v", first.Steps)
	}

	second := res.Migrations[1]
	if _, ok := second.DependsOn["0001_init"]; !ok {
		t.Fatalf("expected dependency on 0001_init, got %v", second.DependsOn)
	}
}

func TestLoadDetectsDuplicateIDAcrossDirectories(t *testing.T) {
	fsys := fstest.MapFS{
		"a/0001.sql": &fstest.MapFile{Data: []byte("SELECT 1;")},
		"b/0001.sql": &fstest.MapFile{Data: []byte("SELECT 1;")},
	}
	_, err := Load(context.Background(), fsys, []string{"a", "b"}, Options{})
	if err == nil {
		t.Fatal("expected duplicate id error across directories")
	}
}

func TestLoadSeparatesPostApplyHook(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0001.sql":       &fstest.MapFile{Data: []byte("SELECT 1;")},
		"migrations/post-apply.sql": &fstest.MapFile{Data: []byte("ANALYZE;")},
	}
	res, err := Load(context.Background(), fsys, []string{"migrations"}, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(res.Migrations) != 1 {
		t.Fatalf("post-apply hook leaked into graph vertices: %+v", res.Migrations)
	}
	if len(res.PostApply) != 1 {
		t.Fatalf("expected 1 post-apply hook, got %d", len(res.PostApply))
	}
}

func TestLoadEmptyDirectoryIsNotAnError(t *testing.T) {
	fsys := fstest.MapFS{}
	res, err := Load(context.Background(), fsys, []string{"migrations"}, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(res.Migrations) != 0 {
		t.Fatalf("expected no migrations, got %d", len(res.Migrations))
	}
}
