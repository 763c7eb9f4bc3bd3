package cli_test

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"oci-volume-backup/src/cli"
)

func archive(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func hexSum(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

func TestVerifyCmd_TableOK(t *testing.T) {
	root := t.TempDir()
	data := archive(t, "_data/file", "hello")
	writeFile(t, filepath.Join(root, "db.tar.gz"), string(data))
	writeFile(t, filepath.Join(root, "checksums.txt"), fmt.Sprintf("%s  db.tar.gz\n", hexSum(data)))

	var out, errBuf bytes.Buffer
	cmd := cli.NewRootCmd(&out, &errBuf)
	cmd.SetArgs([]string{"verify", "--target-dir", root})
	if _, err := cmd.ExecuteC(); err != nil {
		t.Fatalf("verify command failed: %v; stderr=%s", err, errBuf.String())
	}
	output := out.String()
	if !strings.Contains(output, "FILE") || !strings.Contains(output, "STATUS") {
		t.Fatalf("expected table header in output; got:\n%s", output)
	}
	if !strings.Contains(output, "db.tar.gz") || !strings.Contains(output, "ok") {
		t.Fatalf("expected ok row; got:\n%s", output)
	}
}

func TestVerifyCmd_JSONReportsMismatch(t *testing.T) {
	root := t.TempDir()
	data := archive(t, "_data/file", "initial")
	writeFile(t, filepath.Join(root, "db.tar.gz"), string(data))
	writeFile(t, filepath.Join(root, "checksums.txt"), fmt.Sprintf("%s  db.tar.gz\n", hexSum(data)))
	// Replace the archive after checksums are written.
	writeFile(t, filepath.Join(root, "db.tar.gz"), string(archive(t, "_data/file", "mutated")))

	var out, errBuf bytes.Buffer
	cmd := cli.NewRootCmd(&out, &errBuf)
	cmd.SetArgs([]string{"verify", "--target-dir", root, "--output", "json"})
	_, err := cmd.ExecuteC()
	if err == nil {
		t.Fatalf("expected verify to fail on mismatch")
	}

	var results []struct {
		File     string `json:"file"`
		Status   string `json:"status"`
		Expected string `json:"expected"`
		Actual   string `json:"actual"`
	}
	if err := json.Unmarshal(out.Bytes(), &results); err != nil {
		t.Fatalf("unmarshal verify json: %v\n%s", err, out.String())
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Status != "mismatch" {
		t.Fatalf("expected mismatch status, got %s", results[0].Status)
	}
	if results[0].Expected == results[0].Actual {
		t.Fatalf("expected differing hashes, got %+v", results[0])
	}
}
