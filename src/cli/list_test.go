package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"oci-volume-backup/src/cli"
)

func TestListCmd_Table(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "db.tar.gz"), "db")
	writeFile(t, filepath.Join(root, "web.tar.gz"), "web")
	writeFile(t, filepath.Join(root, "checksums.txt"), "0123456789abcdef0123  db.tar.gz\n")

	var out, err bytes.Buffer
	cmd := cli.NewRootCmd(&out, &err)
	cmd.SetArgs([]string{"list", "--target-dir", root})
	if _, e := cmd.ExecuteC(); e != nil {
		t.Fatalf("unexpected error: %v", e)
	}
	s := out.String()
	if !strings.Contains(s, "VOLUME") || !strings.Contains(s, "SHA256") {
		t.Fatalf("missing header in table output: %q", s)
	}
	if !strings.Contains(s, "db.tar.gz") || !strings.Contains(s, "0123456789ab") || !strings.Contains(s, "web.tar.gz") {
		t.Fatalf("missing expected rows: %q", s)
	}
	if strings.Index(s, "db.tar.gz") > strings.Index(s, "web.tar.gz") {
		t.Fatalf("rows must be sorted by volume: %q", s)
	}
}

func TestListCmd_JSONEmpty(t *testing.T) {
	var out, err bytes.Buffer
	cmd := cli.NewRootCmd(&out, &err)
	cmd.SetArgs([]string{"list", "-t", t.TempDir(), "-o", "json"})
	if _, e := cmd.ExecuteC(); e != nil {
		t.Fatalf("unexpected error: %v", e)
	}
	var entries []map[string]any
	if e := json.Unmarshal(out.Bytes(), &entries); e != nil {
		t.Fatalf("unmarshal: %v\n%s", e, out.String())
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %v", entries)
	}
}

func TestListCmd_MissingDir(t *testing.T) {
	cmd := cli.NewRootCmd(nil, nil)
	cmd.SetArgs([]string{"list", "-t", filepath.Join(t.TempDir(), "nope")})
	if _, e := cmd.ExecuteC(); e == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
