package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oci-volume-backup/src/errdefs"
)

func TestPruneCmd_RemovesOrphans(t *testing.T) {
	srv := startServer(t, engineHandler("podman", fakeVolume{name: "live"}))
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "live.tar.gz"), "a")
	writeFile(t, filepath.Join(root, "gone.tar.gz"), "b")
	writeFile(t, filepath.Join(root, "checksums.txt"), "11  gone.tar.gz\n22  live.tar.gz\n")

	out, err := runCLI(t, append([]string{"prune", "-y", "-P", testPassword, "-t", root}, connArgs(srv)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "delete")
	assert.Contains(t, out, "Deleted 1 archive(s)")
	assert.FileExists(t, filepath.Join(root, "live.tar.gz"))
	_, err = os.Stat(filepath.Join(root, "gone.tar.gz"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "22  live.tar.gz\n", readFile(t, filepath.Join(root, "checksums.txt")))
}

func TestPruneCmd_DryRunDoesNotDelete(t *testing.T) {
	srv := startServer(t, engineHandler("podman"))
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "gone.tar.gz"), "b")

	out, err := runCLI(t, append([]string{"--dry-run", "prune", "-P", testPassword, "-t", root}, connArgs(srv)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "gone.tar.gz")
	assert.FileExists(t, filepath.Join(root, "gone.tar.gz"))
}

func TestPruneCmd_DeclineKeepsFiles(t *testing.T) {
	srv := startServer(t, engineHandler("podman", fakeVolume{name: "live"}))
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "gone.tar.gz"), "b")

	_, err := runCLI(t, append([]string{"prune", "-P", testPassword, "-t", root}, connArgs(srv)...)...)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "gone.tar.gz"))
}

func TestPruneCmd_EmptyCatalogRefused(t *testing.T) {
	srv := startServer(t, engineHandler("podman"))
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.tar.gz"), "a")
	writeFile(t, filepath.Join(root, "b.tar.gz"), "b")

	_, err := runCLI(t, append([]string{"prune", "-y", "-P", testPassword, "-t", root}, connArgs(srv)...)...)
	require.ErrorIs(t, err, errdefs.ErrConfiguration)
	assert.ErrorContains(t, err, "--allow-empty-catalog")
	assert.FileExists(t, filepath.Join(root, "a.tar.gz"))
	assert.FileExists(t, filepath.Join(root, "b.tar.gz"))
}

func TestPruneCmd_EmptyCatalogAllowed(t *testing.T) {
	srv := startServer(t, engineHandler("podman"))
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.tar.gz"), "a")

	out, err := runCLI(t, append([]string{"prune", "-y", "--allow-empty-catalog", "-P", testPassword, "-t", root}, connArgs(srv)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 archive(s)")
	_, err = os.Stat(filepath.Join(root, "a.tar.gz"))
	assert.True(t, os.IsNotExist(err))
}
