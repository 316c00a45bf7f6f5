package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestNewCmdScaffoldsApplyAndRollbackFiles(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	savedSources := flags.sources
	flags.sources = []string{"migrations"}
	defer func() { flags.sources = savedSources }()

	cmd := newNewCmd()
	if err := cmd.Flags().Set("depends", "0001_init"); err != nil {
		t.Fatal(err)
	}
	out := &bytes.Buffer{}
	cmd.SetOut(out)

	if err := cmd.RunE(cmd, []string{"0002_add_column"}); err != nil {
		t.Fatalf("run new: %v", err)
	}

	up, err := os.ReadFile(filepath.Join("migrations", "0002_add_column.sql"))
	if err != nil {
		t.Fatalf("read up file: %v", err)
	}
	if !bytes.Contains(up, []byte("-- depends: 0001_init")) {
		t.Fatalf("expected depends directive, got %q", up)
	}

	if _, err := os.Stat(filepath.Join("migrations", "0002_add_column.rollback.sql")); err != nil {
		t.Fatalf("expected rollback file: %v", err)
	}
}
