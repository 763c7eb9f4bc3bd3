package verify_test

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dir "oci-volume-backup/src/backend/directory"
	"oci-volume-backup/src/verify"
)

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func sum(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

func TestDir(t *testing.T) {
	root := t.TempDir()
	good := tarGz(t, map[string]string{"data/a": "hello"})
	changed := tarGz(t, map[string]string{"data/b": "world"})
	broken := []byte("not gzip at all")

	require.NoError(t, os.WriteFile(filepath.Join(root, "good.tar.gz"), good, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "changed.tar.gz"), changed, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.tar.gz"), broken, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "extra.tar.gz"), good, 0o644))

	b, err := dir.New(root)
	require.NoError(t, err)
	require.NoError(t, b.WriteChecksums(map[string]string{
		"good.tar.gz":    sum(good),
		"changed.tar.gz": sum([]byte("something else")),
		"broken.tar.gz":  sum(broken),
		"gone.tar.gz":    "deadbeef",
	}))

	results, err := verify.Dir(root)
	require.NoError(t, err)
	byFile := map[string]verify.Result{}
	var order []string
	for _, r := range results {
		byFile[r.File] = r
		order = append(order, r.File)
	}
	assert.Equal(t, []string{"broken.tar.gz", "changed.tar.gz", "extra.tar.gz", "gone.tar.gz", "good.tar.gz"}, order)

	assert.Equal(t, verify.StatusOK, byFile["good.tar.gz"].Status)
	assert.Equal(t, 1, byFile["good.tar.gz"].Entries)
	assert.Equal(t, verify.StatusMismatch, byFile["changed.tar.gz"].Status)
	assert.Equal(t, sum(changed), byFile["changed.tar.gz"].Actual)
	assert.Equal(t, verify.StatusCorrupt, byFile["broken.tar.gz"].Status)
	assert.NotEmpty(t, byFile["broken.tar.gz"].Detail)
	assert.Equal(t, verify.StatusMissing, byFile["gone.tar.gz"].Status)
	assert.Equal(t, verify.StatusUnrecorded, byFile["extra.tar.gz"].Status)
	assert.False(t, verify.AllOK(results))
}

func TestDir_AllOK(t *testing.T) {
	root := t.TempDir()
	data := tarGz(t, map[string]string{"x": "1", "y": "22"})
	require.NoError(t, os.WriteFile(filepath.Join(root, "v.tar.gz"), data, 0o644))
	b, err := dir.New(root)
	require.NoError(t, err)
	require.NoError(t, b.WriteChecksums(map[string]string{"v.tar.gz": sum(data)}))

	results, err := verify.Dir(root)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Entries)
	assert.True(t, verify.AllOK(results))
}

func TestFile_TruncatedArchive(t *testing.T) {
	data := tarGz(t, map[string]string{"big": string(bytes.Repeat([]byte("z"), 64<<10))})
	p := filepath.Join(t.TempDir(), "t.tar.gz")
	require.NoError(t, os.WriteFile(p, data[:len(data)/2], 0o644))
	r := verify.File(p, "")
	assert.Equal(t, verify.StatusCorrupt, r.Status)
	assert.Equal(t, sum(data[:len(data)/2]), r.Actual)
}

func TestFile_ReadErrorIsCorrupt(t *testing.T) {
	// opening a directory succeeds but every read fails
	p := filepath.Join(t.TempDir(), "d.tar.gz")
	require.NoError(t, os.Mkdir(p, 0o755))
	r := verify.File(p, "")
	assert.Equal(t, verify.StatusCorrupt, r.Status)
	assert.NotEmpty(t, r.Detail)
}

func TestDir_MissingRoot(t *testing.T) {
	_, err := verify.Dir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
